// Package store defines the datastore abstraction for the price follower.
// All business logic depends on the Store interface, never on concrete
// implementations. This enables mock-based testing without a database file.
package store

import (
	"context"
	"errors"

	domain "github.com/donaldgifford/pchome-price-follower/pkg/types"
)

// ErrProductNotTracked is returned when a price is recorded for a product
// id that has no row in the products table. The reconciliation ordering
// (products are synced before prices are recorded) makes this an internal
// invariant violation rather than an expected condition.
var ErrProductNotTracked = errors.New("product is not tracked")

// Store defines all data access operations for the price follower.
// Every mutation commits atomically within the call; callers never span a
// transaction across calls.
type Store interface {
	// Products
	TrackedProductIDs(ctx context.Context) (map[string]struct{}, error)
	UpsertProduct(ctx context.Context, id, name string) error
	RemoveProduct(ctx context.Context, id string) error
	ListProducts(ctx context.Context) ([]domain.Product, error)

	// Price history
	//
	// HistoricalLow and LatestPrice return nil when the product has no
	// observations. RecordPrice appends an observation stamped now and
	// refreshes the owning product's updated_at; it fails with
	// ErrProductNotTracked for unknown ids.
	HistoricalLow(ctx context.Context, id string) (*int64, error)
	LatestPrice(ctx context.Context, id string) (*int64, error)
	RecordPrice(ctx context.Context, id string, price int64) error
	PriceHistory(ctx context.Context, id string, limit int) ([]domain.PriceRecord, error)

	// Run bookkeeping
	InsertRunRecord(ctx context.Context) (id string, err error)
	CompleteRunRecord(ctx context.Context, id, status, errText string, summary *domain.RunSummary) error
	ListRunRecords(ctx context.Context, limit int) ([]domain.RunRecord, error)

	// Migrations
	Migrate(ctx context.Context) error

	// Health
	Ping(ctx context.Context) error

	Close() error
}
