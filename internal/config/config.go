// Package config loads the application configuration from environment
// variables, with optional .env file support.
package config

import (
	"errors"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	PChome   PChomeConfig
	Database DatabaseConfig
	Notify   NotifyConfig
	Logging  LoggingConfig
}

// PChomeConfig holds PChome API settings. The ECWEBSESS session cookie is
// the only required setting in the whole configuration.
type PChomeConfig struct {
	Session      string        `envconfig:"PCHOME_ECWEBSESS"`
	TraceListURL string        `envconfig:"PCHOME_TRACE_LIST_URL" default:"https://ecvip.pchome.com.tw/fsapi/member/products/trace/list"`
	ButtonURL    string        `envconfig:"PCHOME_BUTTON_URL"     default:"https://ecapi.pchome.com.tw/ecshop/prodapi/v2/prod/button"`
	PageSize     int           `envconfig:"PCHOME_PAGE_SIZE"      default:"100"`
	Timeout      time.Duration `envconfig:"PCHOME_TIMEOUT"        default:"30s"`
}

// DatabaseConfig holds the SQLite database settings.
type DatabaseConfig struct {
	Path string `envconfig:"DB_PATH" default:"./db/prices.db"`
}

// NotifyConfig holds notification transport settings. Every transport is
// optional; an empty value disables that transport.
type NotifyConfig struct {
	SlackWebhookURL  string        `envconfig:"SLACK_WEBHOOK_URL"`
	TelegramBotToken string        `envconfig:"TELEGRAM_BOT_TOKEN"`
	TelegramChatID   string        `envconfig:"TELEGRAM_CHAT_ID"`
	Timeout          time.Duration `envconfig:"NOTIFY_TIMEOUT" default:"10s"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `envconfig:"LOG_LEVEL"  default:"info"` // debug, info, warn, error
	Format string `envconfig:"LOG_FORMAT" default:"text"` // text, json
}

// Load reads configuration from the environment. A .env file in the
// working directory is loaded first if present (silent skip if not),
// matching the scheduled-job deployment where secrets live beside the
// binary.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := envconfig.Process("", cfg); err != nil {
		return nil, err
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadLocal reads configuration for commands that only touch the local
// database. The PChome session is not required here, so inspecting
// tracked products or run history works without credentials.
func LoadLocal() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := envconfig.Process("", cfg); err != nil {
		return nil, err
	}

	if cfg.Database.Path == "" {
		return nil, errors.New("DB_PATH must not be empty")
	}

	return cfg, nil
}

func validate(cfg *Config) error {
	var errs []error

	if cfg.PChome.Session == "" {
		errs = append(errs, errors.New(
			"PCHOME_ECWEBSESS is required; copy the ECWEBSESS cookie from a logged-in browser session"))
	}
	if cfg.Database.Path == "" {
		errs = append(errs, errors.New("DB_PATH must not be empty"))
	}
	if cfg.Notify.TelegramBotToken != "" && cfg.Notify.TelegramChatID == "" {
		errs = append(errs, errors.New("TELEGRAM_CHAT_ID is required when TELEGRAM_BOT_TOKEN is set"))
	}

	return errors.Join(errs...)
}
