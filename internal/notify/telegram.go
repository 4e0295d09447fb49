package notify

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Characters the Telegram MarkdownV2 parser requires to be escaped.
const markdownV2Specials = "_*[]()~`>#+=|{}.!-"

// TelegramNotifier implements Notifier via the Telegram bot sendMessage
// API.
type TelegramNotifier struct {
	chatID string
	apiURL string
	client *http.Client
}

// TelegramOption configures a TelegramNotifier.
type TelegramOption func(*TelegramNotifier)

// WithTelegramHTTPClient sets a custom HTTP client.
func WithTelegramHTTPClient(c *http.Client) TelegramOption {
	return func(t *TelegramNotifier) {
		t.client = c
	}
}

// WithTelegramAPIURL overrides the derived sendMessage endpoint.
func WithTelegramAPIURL(u string) TelegramOption {
	return func(t *TelegramNotifier) {
		t.apiURL = u
	}
}

// NewTelegramNotifier creates a new TelegramNotifier for the given bot
// token and chat id.
func NewTelegramNotifier(botToken, chatID string, opts ...TelegramOption) *TelegramNotifier {
	t := &TelegramNotifier{
		chatID: chatID,
		apiURL: "https://api.telegram.org/bot" + botToken + "/sendMessage",
		client: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

type telegramPayload struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

// SendPriceDropAlert sends a MarkdownV2 text message. Telegram reports
// success with HTTP 200.
func (t *TelegramNotifier) SendPriceDropAlert(ctx context.Context, alert *Alert) error {
	payload := telegramPayload{
		ChatID:    t.chatID,
		Text:      buildTelegramText(alert),
		ParseMode: "MarkdownV2",
	}

	status, body, err := postJSON(ctx, t.client, t.apiURL, payload)
	if err != nil {
		return fmt.Errorf("sending telegram message: %w", err)
	}
	if status != http.StatusOK {
		return fmt.Errorf("telegram returned %d: %s", status, body)
	}
	return nil
}

func buildTelegramText(alert *Alert) string {
	drop := escapeMarkdownV2(fmt.Sprintf("-%s (%.1f%%)",
		formatNT(alert.Drop()), alert.DropPercent()))

	return fmt.Sprintf(
		"🔔 *價格警報*\n\n"+
			"*%s*\n"+
			"💰 `%s`（歷史新低！）\n"+
			"📉 前次低價：%s\n"+
			"🔻 降幅：%s\n"+
			"[查看商品](%s)",
		escapeMarkdownV2(alert.ProductName),
		formatNT(alert.CurrentPrice),
		escapeMarkdownV2(formatNT(alert.HistoricalLow)),
		drop,
		alert.ProductURL(),
	)
}

// escapeMarkdownV2 escapes the fixed set of characters MarkdownV2 treats
// as markup.
func escapeMarkdownV2(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if strings.ContainsRune(markdownV2Specials, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// compile-time interface check
var _ Notifier = (*TelegramNotifier)(nil)
