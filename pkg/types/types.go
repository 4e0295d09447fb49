// Package domain defines the core business types for the price follower.
package domain

import "time"

// TrackedProduct is an entry in the user's PChome tracking list. It is
// rebuilt from every fetch; only the id and name are persisted.
type TrackedProduct struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	Brands []string `json:"brands,omitempty"`
}

// ProductPrice is the current price for a product as returned by the
// button API. Price is the effective price (promotional when present,
// regular otherwise); OriginalPrice is the regular online price.
// Prices are integer NT$.
type ProductPrice struct {
	ProductID     string `json:"product_id"`
	Price         int64  `json:"price"`
	OriginalPrice int64  `json:"original_price"`
}

// Product is a persisted tracked product.
type Product struct {
	ID        string    `json:"id"         db:"id"`
	Name      string    `json:"name"       db:"name"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// PriceRecord is one persisted price observation.
type PriceRecord struct {
	ProductID  string    `json:"product_id"  db:"product_id"`
	Price      int64     `json:"price"       db:"price"`
	RecordedAt time.Time `json:"recorded_at" db:"recorded_at"`
}

// RunSummary holds the counters for one reconciliation run.
type RunSummary struct {
	Tracked    int `json:"tracked"`
	Added      int `json:"added"`
	Removed    int `json:"removed"`
	Unpriced   int `json:"unpriced"`
	NewLows    int `json:"new_lows"`
	AlertsSent int `json:"alerts_sent"`
}

// Run status constants.
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// RunRecord records a single execution of the reconciliation job.
type RunRecord struct {
	ID          string     `json:"id"                     db:"id"`
	StartedAt   time.Time  `json:"started_at"             db:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty" db:"completed_at"`
	Status      string     `json:"status"                 db:"status"`
	Error       string     `json:"error,omitempty"        db:"error"`
	Tracked     int        `json:"tracked"                db:"tracked"`
	Added       int        `json:"added"                  db:"added"`
	Removed     int        `json:"removed"                db:"removed"`
	NewLows     int        `json:"new_lows"               db:"new_lows"`
	AlertsSent  int        `json:"alerts_sent"            db:"alerts_sent"`
}
