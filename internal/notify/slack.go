package notify

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// SlackNotifier implements Notifier via an incoming-webhook Block Kit
// message.
type SlackNotifier struct {
	webhookURL string
	client     *http.Client
}

// SlackOption configures a SlackNotifier.
type SlackOption func(*SlackNotifier)

// WithSlackHTTPClient sets a custom HTTP client.
func WithSlackHTTPClient(c *http.Client) SlackOption {
	return func(s *SlackNotifier) {
		s.client = c
	}
}

// NewSlackNotifier creates a new SlackNotifier posting to webhookURL.
func NewSlackNotifier(webhookURL string, opts ...SlackOption) *SlackNotifier {
	s := &SlackNotifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// slackMessage is the Block Kit webhook JSON structure.
type slackMessage struct {
	Blocks []slackBlock `json:"blocks"`
}

type slackBlock struct {
	Type     string         `json:"type"`
	Text     *slackText     `json:"text,omitempty"`
	Fields   []slackText    `json:"fields,omitempty"`
	Elements []slackElement `json:"elements,omitempty"`
}

type slackText struct {
	Type  string `json:"type"`
	Text  string `json:"text"`
	Emoji bool   `json:"emoji,omitempty"`
}

type slackElement struct {
	Type string     `json:"type"`
	Text *slackText `json:"text,omitempty"`
	URL  string     `json:"url,omitempty"`
}

// SendPriceDropAlert posts a structured card with the product, current
// price, previous historical low, and drop percentage. Slack reports
// success with HTTP 200.
func (s *SlackNotifier) SendPriceDropAlert(ctx context.Context, alert *Alert) error {
	status, body, err := postJSON(ctx, s.client, s.webhookURL, buildSlackMessage(alert))
	if err != nil {
		return fmt.Errorf("sending slack webhook: %w", err)
	}
	if status != http.StatusOK {
		return fmt.Errorf("slack returned %d: %s", status, body)
	}
	return nil
}

func buildSlackMessage(alert *Alert) slackMessage {
	return slackMessage{
		Blocks: []slackBlock{
			{
				Type: "header",
				Text: &slackText{
					Type:  "plain_text",
					Text:  "🔔 PChome 價格新低通知",
					Emoji: true,
				},
			},
			{
				Type: "section",
				Fields: []slackText{
					{Type: "mrkdwn", Text: "*📦 商品*\n" + alert.ProductName},
					{Type: "mrkdwn", Text: "*💰 當前價格*\n" + formatNT(alert.CurrentPrice)},
					{Type: "mrkdwn", Text: "*📉 歷史最低*\n" + formatNT(alert.HistoricalLow)},
					{
						Type: "mrkdwn",
						Text: fmt.Sprintf("*🔻 降幅*\n-%s (%.1f%%)",
							formatNT(alert.Drop()), alert.DropPercent()),
					},
				},
			},
			{
				Type: "actions",
				Elements: []slackElement{
					{
						Type: "button",
						Text: &slackText{
							Type:  "plain_text",
							Text:  "🔗 查看商品",
							Emoji: true,
						},
						URL: alert.ProductURL(),
					},
				},
			},
		},
	}
}

// compile-time interface check
var _ Notifier = (*SlackNotifier)(nil)
