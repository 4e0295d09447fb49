// Package notify defines the notification interface and implementations
// for price-drop alert delivery.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/dustin/go-humanize"
)

// Alert contains the data needed to send a price-drop notification.
type Alert struct {
	ProductID     string
	ProductName   string
	CurrentPrice  int64
	HistoricalLow int64
}

// Drop returns the absolute price drop against the previous historical low.
func (a *Alert) Drop() int64 {
	return a.HistoricalLow - a.CurrentPrice
}

// DropPercent returns the drop as a percentage of the previous historical
// low. A non-positive previous low yields 0 instead of a division error.
func (a *Alert) DropPercent() float64 {
	if a.HistoricalLow <= 0 {
		return 0
	}
	return float64(a.Drop()) / float64(a.HistoricalLow) * 100
}

// ProductURL returns the storefront link for the product.
func (a *Alert) ProductURL() string {
	return "https://24h.pchome.com.tw/prod/" + a.ProductID
}

// Notifier defines the interface for sending price-drop notifications.
// Implementations report delivery failure through the returned error and
// must never panic across this boundary.
type Notifier interface {
	SendPriceDropAlert(ctx context.Context, alert *Alert) error
}

// formatNT renders an integer NT$ amount with thousands separators.
func formatNT(n int64) string {
	return "NT$" + humanize.Comma(n)
}

// postJSON sends payload as a JSON POST and returns the response status
// and body.
func postJSON(
	ctx context.Context,
	client *http.Client,
	url string,
	payload any,
) (int, []byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, fmt.Errorf("marshaling payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("reading response body: %w", err)
	}

	return resp.StatusCode, respBody, nil
}
