package engine

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/donaldgifford/pchome-price-follower/internal/notify"
	"github.com/donaldgifford/pchome-price-follower/internal/pchome"
	"github.com/donaldgifford/pchome-price-follower/internal/store"
	"github.com/donaldgifford/pchome-price-follower/pkg/logger"
	domain "github.com/donaldgifford/pchome-price-follower/pkg/types"
)

// fakeCatalog is a scripted CatalogClient.
type fakeCatalog struct {
	list      []domain.TrackedProduct
	listErr   error
	prices    map[string]domain.ProductPrice
	pricesErr error

	priceCalls int
	lastIDs    []string
}

func (f *fakeCatalog) FetchTrackingList(_ context.Context) ([]domain.TrackedProduct, error) {
	return f.list, f.listErr
}

func (f *fakeCatalog) FetchPrices(
	_ context.Context,
	ids []string,
) (map[string]domain.ProductPrice, error) {
	f.priceCalls++
	f.lastIDs = ids
	if f.pricesErr != nil {
		return nil, f.pricesErr
	}
	return f.prices, nil
}

// fakeNotifier records alerts and optionally fails or panics.
type fakeNotifier struct {
	calls    []notify.Alert
	err      error
	panicMsg string
}

func (f *fakeNotifier) SendPriceDropAlert(_ context.Context, a *notify.Alert) error {
	if f.panicMsg != "" {
		panic(f.panicMsg)
	}
	f.calls = append(f.calls, *a)
	return f.err
}

var _ pchome.CatalogClient = (*fakeCatalog)(nil)
var _ notify.Notifier = (*fakeNotifier)(nil)

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()

	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "prices.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func newTestEngine(
	s store.Store,
	c pchome.CatalogClient,
	notifiers ...notify.Notifier,
) *Engine {
	return NewEngine(s, c, notifiers, WithLogger(logger.Discard()))
}

func seedProduct(t *testing.T, s *store.SQLiteStore, id, name string, prices ...int64) {
	t.Helper()

	ctx := context.Background()
	require.NoError(t, s.UpsertProduct(ctx, id, name))
	for _, p := range prices {
		require.NoError(t, s.RecordPrice(ctx, id, p))
	}
}

func mustLow(t *testing.T, s *store.SQLiteStore, id string) int64 {
	t.Helper()

	low, err := s.HistoricalLow(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, low)
	return *low
}

func lastRun(t *testing.T, s *store.SQLiteStore) domain.RunRecord {
	t.Helper()

	runs, err := s.ListRunRecords(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	return runs[0]
}

func TestRun_FirstObservation(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	catalog := &fakeCatalog{
		list: []domain.TrackedProduct{{ID: "A", Name: "Widget"}},
		prices: map[string]domain.ProductPrice{
			"A": {ProductID: "A", Price: 100, OriginalPrice: 100},
		},
	}
	sink := &fakeNotifier{}

	summary, err := newTestEngine(s, catalog, sink).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, &domain.RunSummary{Tracked: 1, Added: 1}, summary)
	assert.Empty(t, sink.calls, "first observation never alerts")
	assert.Equal(t, int64(100), mustLow(t, s, "A"))

	run := lastRun(t, s)
	assert.Equal(t, domain.RunStatusCompleted, run.Status)
	assert.Equal(t, 1, run.Tracked)
	assert.Equal(t, 1, run.Added)
}

func TestRun_NewLowSendsAlertAndRecordsAfter(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	seedProduct(t, s, "A", "Widget", 100)

	catalog := &fakeCatalog{
		list: []domain.TrackedProduct{{ID: "A", Name: "Widget"}},
		prices: map[string]domain.ProductPrice{
			"A": {ProductID: "A", Price: 80, OriginalPrice: 100},
		},
	}
	sink := &fakeNotifier{}

	summary, err := newTestEngine(s, catalog, sink).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.NewLows)
	assert.Equal(t, 1, summary.AlertsSent)
	assert.Zero(t, summary.Added)

	require.Len(t, sink.calls, 1)
	alert := sink.calls[0]
	assert.Equal(t, "A", alert.ProductID)
	assert.Equal(t, "Widget", alert.ProductName)
	assert.Equal(t, int64(80), alert.CurrentPrice)
	assert.Equal(t, int64(100), alert.HistoricalLow, "alert carries the previous low")
	assert.Equal(t, int64(20), alert.Drop())

	// The new price was recorded after the comparison, so the low has
	// moved.
	assert.Equal(t, int64(80), mustLow(t, s, "A"))
}

func TestRun_NewLowWithoutSinks(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	seedProduct(t, s, "A", "Widget", 100)

	catalog := &fakeCatalog{
		list: []domain.TrackedProduct{{ID: "A", Name: "Widget"}},
		prices: map[string]domain.ProductPrice{
			"A": {ProductID: "A", Price: 80},
		},
	}

	summary, err := newTestEngine(s, catalog).Run(context.Background())
	require.NoError(t, err)

	// With no sinks registered the new low is detected and recorded, but
	// nothing counts as sent.
	assert.Equal(t, 1, summary.NewLows)
	assert.Zero(t, summary.AlertsSent)
	assert.Equal(t, int64(80), mustLow(t, s, "A"))

	run := lastRun(t, s)
	assert.Equal(t, domain.RunStatusCompleted, run.Status)
	assert.Zero(t, run.AlertsSent)
}

func TestRun_NoNewLow(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	seedProduct(t, s, "A", "Widget", 100)

	catalog := &fakeCatalog{
		list: []domain.TrackedProduct{{ID: "A", Name: "Widget"}},
		prices: map[string]domain.ProductPrice{
			"A": {ProductID: "A", Price: 100},
		},
	}
	sink := &fakeNotifier{}

	summary, err := newTestEngine(s, catalog, sink).Run(context.Background())
	require.NoError(t, err)

	assert.Zero(t, summary.NewLows)
	assert.Empty(t, sink.calls, "an equal price is not a new low")

	// Still recorded.
	history, err := s.PriceHistory(context.Background(), "A", 10)
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestRun_RemovalMirrorsTrackingList(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	seedProduct(t, s, "A", "Alpha", 100, 90)
	seedProduct(t, s, "B", "Beta", 50)

	catalog := &fakeCatalog{
		list: []domain.TrackedProduct{{ID: "B", Name: "Beta"}},
		prices: map[string]domain.ProductPrice{
			"B": {ProductID: "B", Price: 55},
		},
	}

	summary, err := newTestEngine(s, catalog).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Removed)

	ids, err := s.TrackedProductIDs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]struct{}{"B": {}}, ids)

	// A's history went with it.
	n, err := s.CountObservations(context.Background(), "A")
	require.NoError(t, err)
	assert.Zero(t, n)

	// B is untouched and gained an observation.
	assert.Equal(t, int64(50), mustLow(t, s, "B"))
}

func TestRun_EmptyTrackingListRemovesEverything(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	seedProduct(t, s, "A", "Alpha", 100)
	seedProduct(t, s, "B", "Beta", 50)

	catalog := &fakeCatalog{prices: map[string]domain.ProductPrice{}}

	summary, err := newTestEngine(s, catalog).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, &domain.RunSummary{Removed: 2}, summary)

	ids, err := s.TrackedProductIDs(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestRun_MissingPriceSkipsRecording(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	catalog := &fakeCatalog{
		list: []domain.TrackedProduct{
			{ID: "A", Name: "Alpha"},
			{ID: "C", Name: "Gamma"},
		},
		prices: map[string]domain.ProductPrice{
			"A": {ProductID: "A", Price: 100},
		},
	}

	summary, err := newTestEngine(s, catalog).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Tracked)
	assert.Equal(t, 1, summary.Unpriced)
	assert.Zero(t, summary.NewLows)

	// C stays tracked but has no observation this run.
	n, err := s.CountObservations(context.Background(), "C")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRun_BatchedPriceFetch(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	catalog := &fakeCatalog{
		list: []domain.TrackedProduct{
			{ID: "A", Name: "Alpha"},
			{ID: "B", Name: "Beta"},
			{ID: "C", Name: "Gamma"},
		},
		prices: map[string]domain.ProductPrice{},
	}

	_, err := newTestEngine(s, catalog).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, catalog.priceCalls, "prices are fetched in one batched call")
	assert.Equal(t, []string{"A", "B", "C"}, catalog.lastIDs)
}

func TestRun_NotificationFailureIsBestEffort(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	seedProduct(t, s, "A", "Widget", 100)

	catalog := &fakeCatalog{
		list: []domain.TrackedProduct{{ID: "A", Name: "Widget"}},
		prices: map[string]domain.ProductPrice{
			"A": {ProductID: "A", Price: 80},
		},
	}
	failing := &fakeNotifier{err: errors.New("webhook down")}
	working := &fakeNotifier{}

	summary, err := newTestEngine(s, catalog, failing, working).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.NewLows)
	assert.Equal(t, 1, summary.AlertsSent, "only the successful sink counts")
	assert.Len(t, working.calls, 1)

	// The failed send did not block recording.
	assert.Equal(t, int64(80), mustLow(t, s, "A"))
}

func TestRun_NotifierPanicIsContained(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	seedProduct(t, s, "A", "Widget", 100)

	catalog := &fakeCatalog{
		list: []domain.TrackedProduct{{ID: "A", Name: "Widget"}},
		prices: map[string]domain.ProductPrice{
			"A": {ProductID: "A", Price: 80},
		},
	}
	sink := &fakeNotifier{panicMsg: "transport exploded"}

	summary, err := newTestEngine(s, catalog, sink).Run(context.Background())
	require.NoError(t, err, "a panicking sink must not abort the run")

	assert.Equal(t, 1, summary.NewLows)
	assert.Zero(t, summary.AlertsSent)
	assert.Equal(t, int64(80), mustLow(t, s, "A"))
}

func TestRun_TrackingListErrorAbortsBeforeMutations(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	seedProduct(t, s, "A", "Alpha", 100)

	catalog := &fakeCatalog{listErr: pchome.ErrSessionExpired}

	summary, err := newTestEngine(s, catalog).Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, pchome.ErrSessionExpired)
	assert.Equal(t, &domain.RunSummary{}, summary)

	// No membership changes happened.
	ids, idErr := s.TrackedProductIDs(context.Background())
	require.NoError(t, idErr)
	assert.Equal(t, map[string]struct{}{"A": {}}, ids)

	run := lastRun(t, s)
	assert.Equal(t, domain.RunStatusFailed, run.Status)
	assert.Contains(t, run.Error, "session expired")
}

func TestRun_PriceFetchErrorKeepsCommittedSync(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	catalog := &fakeCatalog{
		list:      []domain.TrackedProduct{{ID: "A", Name: "Alpha"}},
		pricesErr: errors.New("connection reset"),
	}

	summary, err := newTestEngine(s, catalog).Run(context.Background())
	require.Error(t, err)

	// The sync committed before the failure and survives it.
	assert.Equal(t, 1, summary.Added)
	ids, idErr := s.TrackedProductIDs(context.Background())
	require.NoError(t, idErr)
	assert.Equal(t, map[string]struct{}{"A": {}}, ids)

	run := lastRun(t, s)
	assert.Equal(t, domain.RunStatusFailed, run.Status)
	assert.Equal(t, 1, run.Added)
}

func TestRun_ZeroPriceDegenerate(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	seedProduct(t, s, "A", "Freebie", 0)

	catalog := &fakeCatalog{
		list: []domain.TrackedProduct{{ID: "A", Name: "Freebie"}},
		prices: map[string]domain.ProductPrice{
			"A": {ProductID: "A", Price: 0},
		},
	}
	sink := &fakeNotifier{}

	summary, err := newTestEngine(s, catalog, sink).Run(context.Background())
	require.NoError(t, err)

	// Zero is a valid price: recorded, compared, no alert since 0 < 0 is
	// false, and no division error anywhere.
	assert.Zero(t, summary.NewLows)
	assert.Zero(t, summary.Unpriced)
	assert.Empty(t, sink.calls)

	n, nErr := s.CountObservations(context.Background(), "A")
	require.NoError(t, nErr)
	assert.Equal(t, 2, n)
}
