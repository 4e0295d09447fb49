// Package engine implements the reconciliation run: syncing the persisted
// product set against the fetched tracking list, classifying each product
// against its historical low, and dispatching price-drop alerts.
package engine

import (
	"context"
	"fmt"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
	"log/slog"

	"github.com/donaldgifford/pchome-price-follower/internal/notify"
	"github.com/donaldgifford/pchome-price-follower/internal/pchome"
	"github.com/donaldgifford/pchome-price-follower/internal/store"
	domain "github.com/donaldgifford/pchome-price-follower/pkg/types"
)

// Engine orchestrates one reconciliation run.
type Engine struct {
	store     store.Store
	catalog   pchome.CatalogClient
	notifiers []notify.Notifier
	log       *slog.Logger
}

// NewEngine creates a new Engine with injected dependencies. The notifier
// list may be empty; alerts are then counted as new lows but not sent.
func NewEngine(
	s store.Store,
	c pchome.CatalogClient,
	notifiers []notify.Notifier,
	opts ...EngineOption,
) *Engine {
	eng := &Engine{
		store:     s,
		catalog:   c,
		notifiers: notifiers,
		log:       slog.Default(),
	}
	for _, opt := range opts {
		opt(eng)
	}
	return eng
}

// EngineOption configures the Engine.
type EngineOption func(*Engine)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.log = l
	}
}

// Run executes one reconciliation:
//  1. fetch the tracking list and sync the persisted product set to it,
//  2. fetch current prices for all tracked products in one batched call,
//  3. classify each product against its historical low, alerting on new
//     lows, and append the observation.
//
// Store mutations commit individually, so a run aborted by a fetch or
// store error leaves every previously committed step intact. The returned
// summary always reflects the work that committed, even on error.
func (eng *Engine) Run(ctx context.Context) (*domain.RunSummary, error) {
	summary := &domain.RunSummary{}

	runID, err := eng.store.InsertRunRecord(ctx)
	if err != nil {
		return summary, fmt.Errorf("inserting run record: %w", err)
	}

	trackingList, err := eng.catalog.FetchTrackingList(ctx)
	if err != nil {
		return eng.fail(ctx, runID, summary, fmt.Errorf("fetching tracking list: %w", err))
	}
	summary.Tracked = len(trackingList)
	eng.log.Info("fetched tracking list", "products", len(trackingList))

	if err := eng.syncProducts(ctx, trackingList, summary); err != nil {
		return eng.fail(ctx, runID, summary, err)
	}

	ids := make([]string, 0, len(trackingList))
	for _, p := range trackingList {
		ids = append(ids, p.ID)
	}

	// One batched lookup for the whole list; this is the only price fetch
	// of the run.
	prices, err := eng.catalog.FetchPrices(ctx, ids)
	if err != nil {
		return eng.fail(ctx, runID, summary, fmt.Errorf("fetching prices: %w", err))
	}
	eng.log.Info("fetched prices", "resolved", len(prices))

	for _, product := range trackingList {
		if err := eng.processProduct(ctx, &product, prices, summary); err != nil {
			return eng.fail(ctx, runID, summary, err)
		}
	}

	if err := eng.store.CompleteRunRecord(
		ctx, runID, domain.RunStatusCompleted, "", summary,
	); err != nil {
		eng.log.Error("completing run record failed", "run_id", runID, "error", err)
	}

	return summary, nil
}

// syncProducts makes the persisted product set mirror the fetched tracking
// list: ids new to the list are added in list order, ids that disappeared
// are removed in sorted order. An empty list therefore removes every
// persisted product.
func (eng *Engine) syncProducts(
	ctx context.Context,
	trackingList []domain.TrackedProduct,
	summary *domain.RunSummary,
) error {
	existing, err := eng.store.TrackedProductIDs(ctx)
	if err != nil {
		return fmt.Errorf("listing tracked products: %w", err)
	}

	current := make(map[string]struct{}, len(trackingList))
	for _, p := range trackingList {
		current[p.ID] = struct{}{}
	}

	for _, p := range trackingList {
		if _, ok := existing[p.ID]; ok {
			continue
		}
		if err := eng.store.UpsertProduct(ctx, p.ID, p.Name); err != nil {
			return fmt.Errorf("adding product %s: %w", p.ID, err)
		}
		summary.Added++
		eng.log.Info("added product", "id", p.ID, "name", p.Name)
	}

	existingIDs := maps.Keys(existing)
	slices.Sort(existingIDs)
	for _, id := range existingIDs {
		if _, ok := current[id]; ok {
			continue
		}
		if err := eng.store.RemoveProduct(ctx, id); err != nil {
			return fmt.Errorf("removing product %s: %w", id, err)
		}
		summary.Removed++
		eng.log.Info("removed product", "id", id)
	}

	return nil
}

// processProduct classifies one product and appends its observation. The
// historical low is read before the new price is recorded, so an
// observation never counts against itself.
func (eng *Engine) processProduct(
	ctx context.Context,
	product *domain.TrackedProduct,
	prices map[string]domain.ProductPrice,
	summary *domain.RunSummary,
) error {
	price, ok := prices[product.ID]
	if !ok {
		summary.Unpriced++
		eng.log.Warn("price unavailable", "id", product.ID, "name", product.Name)
		return nil
	}

	low, err := eng.store.HistoricalLow(ctx, product.ID)
	if err != nil {
		return fmt.Errorf("reading historical low for %s: %w", product.ID, err)
	}

	switch {
	case low == nil:
		eng.log.Info("first observation",
			"id", product.ID, "name", product.Name, "price", price.Price)

	case price.Price < *low:
		summary.NewLows++
		alert := &notify.Alert{
			ProductID:     product.ID,
			ProductName:   product.Name,
			CurrentPrice:  price.Price,
			HistoricalLow: *low,
		}
		eng.log.Info("new historical low",
			"id", product.ID, "name", product.Name,
			"price", price.Price, "previous_low", *low,
			"drop_pct", alert.DropPercent())

		for _, n := range eng.notifiers {
			if sendErr := eng.send(ctx, n, alert); sendErr != nil {
				eng.log.Warn("notification failed",
					"id", product.ID, "error", sendErr)
				continue
			}
			summary.AlertsSent++
		}

	default:
		eng.log.Debug("no new low",
			"id", product.ID, "name", product.Name,
			"price", price.Price, "historical_low", *low)
	}

	if err := eng.store.RecordPrice(ctx, product.ID, price.Price); err != nil {
		return fmt.Errorf("recording price for %s: %w", product.ID, err)
	}

	return nil
}

// send invokes one notifier, converting a panic into an error so no
// transport failure can escape the alert loop.
func (eng *Engine) send(
	ctx context.Context,
	n notify.Notifier,
	alert *notify.Alert,
) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("notifier panic: %v", r)
		}
	}()
	return n.SendPriceDropAlert(ctx, alert)
}

// fail finalizes the run record with the error and returns the partial
// summary alongside it.
func (eng *Engine) fail(
	ctx context.Context,
	runID string,
	summary *domain.RunSummary,
	runErr error,
) (*domain.RunSummary, error) {
	if err := eng.store.CompleteRunRecord(
		ctx, runID, domain.RunStatusFailed, runErr.Error(), summary,
	); err != nil {
		eng.log.Error("completing run record failed", "run_id", runID, "error", err)
	}
	return summary, runErr
}
