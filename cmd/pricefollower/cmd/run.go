package cmd

import (
	"context"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/donaldgifford/pchome-price-follower/internal/config"
	"github.com/donaldgifford/pchome-price-follower/internal/engine"
	"github.com/donaldgifford/pchome-price-follower/internal/notify"
	"github.com/donaldgifford/pchome-price-follower/internal/pchome"
	"github.com/donaldgifford/pchome-price-follower/pkg/logger"
)

func runCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Sync the tracking list and record current prices",
		Long: "Fetch the PChome tracking list, mirror it into the local database,\n" +
			"record the current price of every tracked product, and send alerts\n" +
			"for products that hit a new historical low.",
		Example: `  pricefollower run
  pricefollower run --db /var/lib/pricefollower/prices.db`,
		RunE: runRun,
	}
}

func runRun(c *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	ctx := c.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	s, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() { _ = s.Close() }()

	if err := s.Migrate(ctx); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	client := pchome.NewAPIClient(cfg.PChome.Session,
		pchome.WithTraceListURL(cfg.PChome.TraceListURL),
		pchome.WithButtonURL(cfg.PChome.ButtonURL),
		pchome.WithPageSize(cfg.PChome.PageSize),
		pchome.WithHTTPClient(&http.Client{Timeout: cfg.PChome.Timeout}),
	)

	notifiers := buildNotifiers(cfg)
	if len(notifiers) == 0 {
		log.Info("no notification transport configured, new lows are logged only")
	}

	eng := engine.NewEngine(s, client, notifiers, engine.WithLogger(log))

	summary, err := eng.Run(ctx)
	if summary != nil {
		// A failed run still reports whatever prefix committed.
		if jsonOutput() {
			_ = outputJSON(summary)
		} else {
			_ = printRunSummary(summary)
		}
	}
	return err
}

// buildNotifiers returns one sink per configured transport. An absent
// setting disables that transport; with none configured the list is empty
// and no alert counts as sent.
func buildNotifiers(cfg *config.Config) []notify.Notifier {
	httpClient := &http.Client{Timeout: cfg.Notify.Timeout}

	var notifiers []notify.Notifier
	if cfg.Notify.SlackWebhookURL != "" {
		notifiers = append(notifiers, notify.NewSlackNotifier(
			cfg.Notify.SlackWebhookURL,
			notify.WithSlackHTTPClient(httpClient),
		))
	}
	if cfg.Notify.TelegramBotToken != "" {
		notifiers = append(notifiers, notify.NewTelegramNotifier(
			cfg.Notify.TelegramBotToken,
			cfg.Notify.TelegramChatID,
			notify.WithTelegramHTTPClient(httpClient),
		))
	}
	return notifiers
}
