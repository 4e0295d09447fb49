package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // pure Go SQLite driver, no CGO required

	domain "github.com/donaldgifford/pchome-price-follower/pkg/types"
)

// SQLiteStore implements Store on a single SQLite database file. The batch
// job is the only writer, so the connection pool is capped at one
// connection.
type SQLiteStore struct {
	db      *sql.DB
	nowFunc func() time.Time
}

// SQLiteOption configures the SQLiteStore.
type SQLiteOption func(*SQLiteStore)

// WithNowFunc overrides the time source for testing.
func WithNowFunc(f func() time.Time) SQLiteOption {
	return func(s *SQLiteStore) {
		s.nowFunc = f
	}
}

// NewSQLiteStore opens (creating if necessary) the database file at path.
// The parent directory is created when missing so a fresh checkout works
// without setup.
func NewSQLiteStore(path string, opts ...SQLiteOption) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	dsn := path + "?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}

	// SQLite supports a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &SQLiteStore{
		db:      db,
		nowFunc: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close closes the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Ping verifies the database file is reachable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Migrate applies pending SQL schema migrations.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	return RunMigrations(ctx, s.db)
}

// TrackedProductIDs returns the set of product ids currently persisted.
func (s *SQLiteStore) TrackedProductIDs(ctx context.Context) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ctx, queryTrackedProductIDs)
	if err != nil {
		return nil, fmt.Errorf("querying tracked product ids: %w", err)
	}
	defer rows.Close()

	ids := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning product id: %w", err)
		}
		ids[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating product ids: %w", err)
	}

	return ids, nil
}

// UpsertProduct inserts the product or, when it already exists, refreshes
// its name and updated_at. created_at is preserved across upserts.
func (s *SQLiteStore) UpsertProduct(ctx context.Context, id, name string) error {
	now := s.nowFunc().UTC()
	if _, err := s.db.ExecContext(ctx, queryUpsertProduct, id, name, now, now); err != nil {
		return fmt.Errorf("upserting product %s: %w", id, err)
	}
	return nil
}

// RemoveProduct deletes the product; its price history is removed by the
// ON DELETE CASCADE constraint. Removing an absent id is a no-op.
func (s *SQLiteStore) RemoveProduct(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, queryRemoveProduct, id); err != nil {
		return fmt.Errorf("removing product %s: %w", id, err)
	}
	return nil
}

// ListProducts returns all persisted products ordered by id.
func (s *SQLiteStore) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, queryListProducts)
	if err != nil {
		return nil, fmt.Errorf("querying products: %w", err)
	}
	defer rows.Close()

	var products []domain.Product
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning product: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating products: %w", err)
	}

	return products, nil
}

// HistoricalLow returns the minimum price ever observed for the product,
// or nil when it has no observations.
func (s *SQLiteStore) HistoricalLow(ctx context.Context, id string) (*int64, error) {
	var low sql.NullInt64
	if err := s.db.QueryRowContext(ctx, queryHistoricalLow, id).Scan(&low); err != nil {
		return nil, fmt.Errorf("querying historical low for %s: %w", id, err)
	}
	if !low.Valid {
		return nil, nil
	}
	return &low.Int64, nil
}

// LatestPrice returns the most recently recorded price for the product,
// or nil when it has no observations.
func (s *SQLiteStore) LatestPrice(ctx context.Context, id string) (*int64, error) {
	var price int64
	err := s.db.QueryRowContext(ctx, queryLatestPrice, id).Scan(&price)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying latest price for %s: %w", id, err)
	}
	return &price, nil
}

// RecordPrice appends one observation stamped now and refreshes the owning
// product's updated_at. Both writes commit in one transaction.
func (s *SQLiteStore) RecordPrice(ctx context.Context, id string, price int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	now := s.nowFunc().UTC()

	res, err := tx.ExecContext(ctx, queryRecordPrice, id, price, now, id)
	if err != nil {
		return fmt.Errorf("recording price for %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking recorded rows for %s: %w", id, err)
	}
	if affected == 0 {
		return fmt.Errorf("recording price for %s: %w", id, ErrProductNotTracked)
	}

	if _, err := tx.ExecContext(ctx, queryTouchProduct, now, id); err != nil {
		return fmt.Errorf("touching product %s: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing price record for %s: %w", id, err)
	}
	return nil
}

// PriceHistory returns up to limit observations for the product, newest
// first.
func (s *SQLiteStore) PriceHistory(ctx context.Context, id string, limit int) ([]domain.PriceRecord, error) {
	rows, err := s.db.QueryContext(ctx, queryPriceHistory, id, limit)
	if err != nil {
		return nil, fmt.Errorf("querying price history for %s: %w", id, err)
	}
	defer rows.Close()

	var records []domain.PriceRecord
	for rows.Next() {
		var r domain.PriceRecord
		if err := rows.Scan(&r.ProductID, &r.Price, &r.RecordedAt); err != nil {
			return nil, fmt.Errorf("scanning price record: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating price history: %w", err)
	}

	return records, nil
}

// CountObservations returns the number of observations for the product.
func (s *SQLiteStore) CountObservations(ctx context.Context, id string) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, queryCountObservations, id).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting observations for %s: %w", id, err)
	}
	return n, nil
}

// InsertRunRecord creates a run row in "running" status and returns its id.
func (s *SQLiteStore) InsertRunRecord(ctx context.Context) (string, error) {
	id := uuid.NewString()
	now := s.nowFunc().UTC()

	if _, err := s.db.ExecContext(ctx, queryInsertRunRecord, id, now, domain.RunStatusRunning); err != nil {
		return "", fmt.Errorf("inserting run record: %w", err)
	}
	return id, nil
}

// CompleteRunRecord finalizes a run row with its status and summary counts.
// A nil summary writes zero counts (a run that failed before any work).
func (s *SQLiteStore) CompleteRunRecord(
	ctx context.Context,
	id, status, errText string,
	summary *domain.RunSummary,
) error {
	if summary == nil {
		summary = &domain.RunSummary{}
	}

	now := s.nowFunc().UTC()
	_, err := s.db.ExecContext(ctx, queryCompleteRunRecord,
		now, status, errText,
		summary.Tracked, summary.Added, summary.Removed,
		summary.NewLows, summary.AlertsSent,
		id,
	)
	if err != nil {
		return fmt.Errorf("completing run record %s: %w", id, err)
	}
	return nil
}

// ListRunRecords returns up to limit run records, newest first.
func (s *SQLiteStore) ListRunRecords(ctx context.Context, limit int) ([]domain.RunRecord, error) {
	rows, err := s.db.QueryContext(ctx, queryListRunRecords, limit)
	if err != nil {
		return nil, fmt.Errorf("querying run records: %w", err)
	}
	defer rows.Close()

	var runs []domain.RunRecord
	for rows.Next() {
		var (
			r         domain.RunRecord
			completed sql.NullTime
		)
		err := rows.Scan(
			&r.ID, &r.StartedAt, &completed, &r.Status, &r.Error,
			&r.Tracked, &r.Added, &r.Removed, &r.NewLows, &r.AlertsSent,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning run record: %w", err)
		}
		if completed.Valid {
			r.CompletedAt = &completed.Time
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating run records: %w", err)
	}

	return runs, nil
}

// compile-time interface check
var _ Store = (*SQLiteStore)(nil)
