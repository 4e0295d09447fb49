package pchome

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	domain "github.com/donaldgifford/pchome-price-follower/pkg/types"
)

const (
	defaultTraceListURL = "https://ecvip.pchome.com.tw/fsapi/member/products/trace/list"
	defaultButtonURL    = "https://ecapi.pchome.com.tw/ecshop/prodapi/v2/prod/button"
	defaultPageSize     = 100

	sessionCookie = "ECWEBSESS"
	userAgent     = "Mozilla/5.0 AppleWebKit/537.36"

	// The button API addresses products by SKU, which is the product id
	// plus a variant suffix. -000 is the base variant.
	baseVariantSuffix = "-000"
)

// APIClient implements CatalogClient against the PChome member APIs.
type APIClient struct {
	session      string
	traceListURL string
	buttonURL    string
	pageSize     int
	client       *http.Client
}

// Option configures the APIClient.
type Option func(*APIClient)

// WithTraceListURL overrides the trace-list endpoint.
func WithTraceListURL(u string) Option {
	return func(c *APIClient) {
		c.traceListURL = u
	}
}

// WithButtonURL overrides the button (price lookup) endpoint.
func WithButtonURL(u string) Option {
	return func(c *APIClient) {
		c.buttonURL = u
	}
}

// WithPageSize overrides the trace-list page size.
func WithPageSize(n int) Option {
	return func(c *APIClient) {
		c.pageSize = n
	}
}

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *APIClient) {
		c.client = hc
	}
}

// NewAPIClient creates a PChome API client authenticated with the given
// ECWEBSESS session cookie value.
func NewAPIClient(session string, opts ...Option) *APIClient {
	c := &APIClient{
		session:      session,
		traceListURL: defaultTraceListURL,
		buttonURL:    defaultButtonURL,
		pageSize:     defaultPageSize,
		client:       &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type traceListResponse struct {
	Rows []struct {
		ID        string   `json:"Id"`
		Name      string   `json:"Name"`
		BrandList []string `json:"BrandList"`
	} `json:"Rows"`
	TotalPages int `json:"TotalPages"`
}

// FetchTrackingList implements CatalogClient.FetchTrackingList. It walks
// the paginated trace-list endpoint to completion and concatenates the
// rows in upstream order.
func (c *APIClient) FetchTrackingList(ctx context.Context) ([]domain.TrackedProduct, error) {
	var products []domain.TrackedProduct

	for page := 1; ; page++ {
		u := fmt.Sprintf("%s?page=%d&limit=%d", c.traceListURL, page, c.pageSize)

		body, err := c.get(ctx, u)
		if err != nil {
			return nil, fmt.Errorf("fetching trace list page %d: %w", page, err)
		}

		var resp traceListResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, fmt.Errorf("parsing trace list page %d: %w", page, err)
		}

		for _, row := range resp.Rows {
			products = append(products, domain.TrackedProduct{
				ID:     row.ID,
				Name:   row.Name,
				Brands: row.BrandList,
			})
		}

		totalPages := resp.TotalPages
		if totalPages < 1 {
			totalPages = 1
		}
		if page >= totalPages {
			break
		}
	}

	return products, nil
}

type buttonItem struct {
	ID    string `json:"Id"`
	Price struct {
		// Low is the promotional price (null when no promotion runs),
		// P the regular online price, M the market/list price.
		Low *float64 `json:"Low"`
		P   *float64 `json:"P"`
		M   *float64 `json:"M"`
	} `json:"Price"`
}

// FetchPrices implements CatalogClient.FetchPrices with one batched button
// API call. The effective price prefers the promotional price when present
// and non-zero, falling back to the regular price. Items resolving to a
// zero price are treated as unpriced and omitted. When the response
// repeats a product id (variant rows), the first occurrence wins.
func (c *APIClient) FetchPrices(
	ctx context.Context,
	ids []string,
) (map[string]domain.ProductPrice, error) {
	prices := make(map[string]domain.ProductPrice)
	if len(ids) == 0 {
		return prices, nil
	}

	skus := make([]string, len(ids))
	for i, id := range ids {
		skus[i] = id + baseVariantSuffix
	}

	params := url.Values{}
	params.Set("id", strings.Join(skus, ","))
	params.Set("fields", "Id,Price")

	body, err := c.get(ctx, c.buttonURL+"?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("fetching prices: %w", err)
	}

	var items []buttonItem
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, fmt.Errorf("parsing price response: %w", err)
	}

	for _, item := range items {
		id := stripVariantSuffix(item.ID)
		if _, seen := prices[id]; seen {
			continue
		}

		regular := int64(0)
		if item.Price.P != nil {
			regular = int64(*item.Price.P)
		}

		current := regular
		if item.Price.Low != nil && *item.Price.Low != 0 {
			current = int64(*item.Price.Low)
		}

		if current == 0 {
			continue
		}

		prices[id] = domain.ProductPrice{
			ProductID:     id,
			Price:         current,
			OriginalPrice: regular,
		}
	}

	return prices, nil
}

// stripVariantSuffix turns a SKU like "DYAJCZ-A900GDXHQ-000" back into the
// bare product id.
func stripVariantSuffix(sku string) string {
	if idx := strings.LastIndex(sku, "-"); idx >= 0 {
		return sku[:idx]
	}
	return sku
}

// get performs an authenticated GET and returns the response body.
// 403 maps to ErrSessionExpired; any other non-200 status is a transport
// error.
func (c *APIClient) get(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	req.AddCookie(&http.Cookie{Name: sessionCookie, Value: c.session})

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusForbidden {
		return nil, ErrSessionExpired
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf(
			"PChome API error (status %d): %s",
			resp.StatusCode,
			string(body),
		)
	}

	return body, nil
}

// compile-time interface check
var _ CatalogClient = (*APIClient)(nil)
