// Package pchome provides a PChome member API client abstracted behind an
// interface for testability.
package pchome

import (
	"context"
	"errors"

	domain "github.com/donaldgifford/pchome-price-follower/pkg/types"
)

// ErrSessionExpired signals that PChome rejected the ECWEBSESS session
// cookie (HTTP 403). The cookie must be refreshed from a logged-in browser
// session.
var ErrSessionExpired = errors.New("session expired or invalid, update PCHOME_ECWEBSESS")

// CatalogClient defines the interface for fetching the user's tracking
// list and current prices from PChome.
type CatalogClient interface {
	// FetchTrackingList pages through the trace-list endpoint and returns
	// the full tracking list in upstream order.
	FetchTrackingList(ctx context.Context) ([]domain.TrackedProduct, error)

	// FetchPrices resolves current prices for the given product ids in a
	// single batched call. Products the upstream does not price are absent
	// from the returned map.
	FetchPrices(ctx context.Context, ids []string) (map[string]domain.ProductPrice, error)
}
