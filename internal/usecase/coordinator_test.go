package usecase

import (
	"context"
	"sync"
	"testing"

	"FinVault/internal/domain/models"
	domrepo "FinVault/internal/domain/repository"
	"FinVault/internal/repository"
	pkgcache "FinVault/pkg/cache"
	pkgsqlite "FinVault/pkg/sqlite"

	"github.com/guregu/null/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

// fakeProvider serves canned rows per dataset and counts the ranges it
// was asked for.
type fakeProvider struct {
	mu         sync.Mutex
	priceCalls []models.DateRange
	prices     []models.PriceBar
	statements []models.StatementRow
	trades     []models.InsiderTrade
	news       []models.NewsItem
	fail       error
}

func (f *fakeProvider) FetchPrices(_ context.Context, ticker string, rng models.DateRange) ([]models.PriceBar, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.priceCalls = append(f.priceCalls, rng)
	if f.fail != nil {
		return nil, f.fail
	}
	var out []models.PriceBar
	for _, b := range f.prices {
		if b.Ticker == ticker && rng.Contains(b.Time) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeProvider) FetchStatements(_ context.Context, ticker string, st models.StatementType, pk models.PeriodKind, rng models.DateRange) ([]models.StatementRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return nil, f.fail
	}
	var out []models.StatementRow
	for _, r := range f.statements {
		if r.Ticker == ticker && r.StatementType == st && r.PeriodKind == pk && rng.Contains(r.FiscalPeriodEnd) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeProvider) FetchInsiderTrades(_ context.Context, ticker string, rng models.DateRange) ([]models.InsiderTrade, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return nil, f.fail
	}
	var out []models.InsiderTrade
	for _, t := range f.trades {
		if t.Ticker == ticker && rng.Contains(t.TransactionDate) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeProvider) FetchNews(_ context.Context, ticker string, rng models.DateRange) ([]models.NewsItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return nil, f.fail
	}
	var out []models.NewsItem
	for _, n := range f.news {
		if n.Ticker == ticker && rng.Contains(n.Date) {
			out = append(out, n)
		}
	}
	return out, nil
}

func (f *fakeProvider) priceCallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.priceCalls)
}

func newTestCoordinator(t *testing.T, p *fakeProvider) (*Coordinator, *repository.SQLiteStore) {
	t.Helper()
	client, err := pkgsqlite.NewClient(pkgsqlite.WithPath(":memory:"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.InitSchema(context.Background(), repository.SchemaStatements()))

	store := repository.NewSQLiteStore(client)
	return NewCoordinator(store, p, pkgcache.NewMemoryCache()), store
}

func pricesFor(ticker string, days ...string) []models.PriceBar {
	out := make([]models.PriceBar, 0, len(days))
	for i, d := range days {
		out = append(out, models.PriceBar{
			Ticker: ticker,
			Time:   d,
			Close:  null.FloatFrom(float64(100 + i)),
		})
	}
	return out
}

func barDates(bars []models.PriceBar) []string {
	out := make([]string, 0, len(bars))
	for _, b := range bars {
		out = append(out, b.Time)
	}
	return out
}

func TestGetPricesFetchesOnlyTrailingGap(t *testing.T) {
	p := &fakeProvider{prices: pricesFor("AAPL",
		"2023-01-06", "2023-01-09", "2023-01-10")}
	c, store := newTestCoordinator(t, p)
	ctx := context.Background()

	require.NoError(t, store.UpsertPrices(ctx, pricesFor("AAPL",
		"2023-01-01", "2023-01-02", "2023-01-03", "2023-01-04", "2023-01-05")))

	got, err := c.GetPrices(ctx, "AAPL", models.DateRange{Start: "2023-01-03", End: "2023-01-10"})
	require.NoError(t, err)

	require.Equal(t, 1, p.priceCallCount())
	assert.Equal(t, models.DateRange{Start: "2023-01-06", End: "2023-01-10"}, p.priceCalls[0])
	assert.Equal(t, []string{
		"2023-01-03", "2023-01-04", "2023-01-05",
		"2023-01-06", "2023-01-09", "2023-01-10",
	}, barDates(got))
}

func TestGetPricesCoveredMakesNoProviderCall(t *testing.T) {
	p := &fakeProvider{}
	c, store := newTestCoordinator(t, p)
	ctx := context.Background()

	require.NoError(t, store.UpsertPrices(ctx, pricesFor("AAPL",
		"2023-01-02", "2023-01-03", "2023-01-04", "2023-01-05")))

	got, err := c.GetPrices(ctx, "AAPL", models.DateRange{Start: "2023-01-02", End: "2023-01-05"})
	require.NoError(t, err)
	assert.Len(t, got, 4)
	assert.Equal(t, 0, p.priceCallCount())
}

func TestGetPricesIdempotent(t *testing.T) {
	p := &fakeProvider{prices: pricesFor("AAPL", "2023-01-03", "2023-01-04")}
	c, _ := newTestCoordinator(t, p)
	ctx := context.Background()
	rng := models.DateRange{Start: "2023-01-03", End: "2023-01-04"}

	first, err := c.GetPrices(ctx, "AAPL", rng)
	require.NoError(t, err)
	second, err := c.GetPrices(ctx, "AAPL", rng)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	// The second read is resident; the provider is not consulted again.
	assert.Equal(t, 1, p.priceCallCount())
}

func TestGetPricesWeekendHoleNotRefetched(t *testing.T) {
	// A real trading week: the provider has bars for Friday and Monday
	// and nothing in between. Once it has answered, the weekend counts
	// as covered and the provider is never asked for it again.
	p := &fakeProvider{prices: pricesFor("AAPL", "2023-01-06", "2023-01-09")}
	c, _ := newTestCoordinator(t, p)
	ctx := context.Background()
	rng := models.DateRange{Start: "2023-01-06", End: "2023-01-09"}

	for i := 0; i < 3; i++ {
		got, err := c.GetPrices(ctx, "AAPL", rng)
		require.NoError(t, err)
		assert.Equal(t, []string{"2023-01-06", "2023-01-09"}, barDates(got))
	}
	assert.Equal(t, 1, p.priceCallCount())
}

func TestGetPricesEmptyAnswerRecordedAsCovered(t *testing.T) {
	// The provider answers a sub-range with zero rows (a holiday
	// stretch). The answered range is remembered, so repeating the same
	// request costs no further provider calls even across Invalidate.
	p := &fakeProvider{}
	c, store := newTestCoordinator(t, p)
	ctx := context.Background()
	rng := models.DateRange{Start: "2023-12-23", End: "2023-12-26"}

	_, err := c.GetPrices(ctx, "AAPL", rng)
	require.NoError(t, err)
	require.Equal(t, 1, p.priceCallCount())

	_, err = c.GetPrices(ctx, "AAPL", rng)
	require.NoError(t, err)
	assert.Equal(t, 1, p.priceCallCount())

	// The answered range survives in the store, not just the cache.
	require.NoError(t, c.Invalidate(ctx, "AAPL"))
	_, err = c.GetPrices(ctx, "AAPL", rng)
	require.NoError(t, err)
	assert.Equal(t, 1, p.priceCallCount())

	spans, err := store.CoveredRanges(ctx, models.PricesKey(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, []models.DateRange{rng}, spans)
}

func TestGetPricesFailedFetchNotRecordedAsCovered(t *testing.T) {
	p := &fakeProvider{fail: domrepo.ErrProviderTransient}
	c, _ := newTestCoordinator(t, p)
	ctx := context.Background()
	rng := models.DateRange{Start: "2023-01-03", End: "2023-01-04"}

	_, err := c.GetPrices(ctx, "AAPL", rng)
	require.Error(t, err)

	// The provider recovers; the gap is still detected and filled.
	p.mu.Lock()
	p.fail = nil
	p.prices = pricesFor("AAPL", "2023-01-03", "2023-01-04")
	p.mu.Unlock()

	got, err := c.GetPrices(ctx, "AAPL", rng)
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, 2, p.priceCallCount())
}

func TestGetPricesPartialOnProviderFailure(t *testing.T) {
	p := &fakeProvider{fail: domrepo.ErrProviderTransient}
	c, store := newTestCoordinator(t, p)
	ctx := context.Background()

	require.NoError(t, store.UpsertPrices(ctx, pricesFor("AAPL", "2023-01-03", "2023-01-04")))

	got, err := c.GetPrices(ctx, "AAPL", models.DateRange{Start: "2023-01-03", End: "2023-01-10"})

	var ge *GapError
	require.ErrorAs(t, err, &ge)
	assert.Equal(t, []models.DateRange{{Start: "2023-01-05", End: "2023-01-10"}}, ge.Gaps)
	assert.ErrorIs(t, err, domrepo.ErrProviderTransient)
	// Resident rows still come back.
	assert.Equal(t, []string{"2023-01-03", "2023-01-04"}, barDates(got))
}

func TestGetPricesUnknownTickerEmpty(t *testing.T) {
	p := &fakeProvider{}
	c, _ := newTestCoordinator(t, p)

	got, err := c.GetPrices(context.Background(), "NOPE", models.DateRange{Start: "2023-01-03", End: "2023-01-04"})
	require.NoError(t, err)
	assert.Empty(t, got)
	// The provider was asked once and its empty answer is not an error.
	assert.Equal(t, 1, p.priceCallCount())
}

func TestGetPricesValidatesRange(t *testing.T) {
	c, _ := newTestCoordinator(t, &fakeProvider{})

	_, err := c.GetPrices(context.Background(), "AAPL", models.DateRange{Start: "2023-02-01", End: "2023-01-01"})
	assert.Error(t, err)

	_, err = c.GetPrices(context.Background(), "", models.DateRange{Start: "2023-01-01", End: "2023-01-02"})
	assert.Error(t, err)
}

func TestConcurrentGetsSameKeySingleFill(t *testing.T) {
	p := &fakeProvider{prices: pricesFor("AAPL", "2023-01-03", "2023-01-04", "2023-01-05")}
	c, _ := newTestCoordinator(t, p)
	rng := models.DateRange{Start: "2023-01-03", End: "2023-01-05"}

	g, ctx := errgroup.WithContext(context.Background())
	for i := 0; i < 8; i++ {
		g.Go(func() error {
			_, err := c.GetPrices(ctx, "AAPL", rng)
			return err
		})
	}
	require.NoError(t, g.Wait())

	// The per-key lock serializes fills; followers find the data resident.
	assert.Equal(t, 1, p.priceCallCount())
}

func TestPutPricesLastWriteWinsAndNoShrink(t *testing.T) {
	p := &fakeProvider{}
	c, _ := newTestCoordinator(t, p)
	ctx := context.Background()

	require.NoError(t, c.PutPrices(ctx, []models.PriceBar{
		{Ticker: "AAPL", Time: "2023-01-03", Close: null.FloatFrom(100)},
		{Ticker: "AAPL", Time: "2023-01-04", Close: null.FloatFrom(101)},
	}))
	// Overlapping put replaces one row and adds one; nothing shrinks.
	require.NoError(t, c.PutPrices(ctx, []models.PriceBar{
		{Ticker: "AAPL", Time: "2023-01-04", Close: null.FloatFrom(200)},
		{Ticker: "AAPL", Time: "2023-01-05", Close: null.FloatFrom(201)},
	}))

	got, err := c.GetPrices(ctx, "AAPL", models.DateRange{Start: "2023-01-03", End: "2023-01-05"})
	require.NoError(t, err)
	require.Equal(t, []string{"2023-01-03", "2023-01-04", "2023-01-05"}, barDates(got))
	assert.Equal(t, 200.0, got[1].Close.Float64)
	assert.Equal(t, 0, p.priceCallCount())
}

func TestPutPricesValidates(t *testing.T) {
	c, _ := newTestCoordinator(t, &fakeProvider{})

	err := c.PutPrices(context.Background(), []models.PriceBar{{Ticker: "", Time: "2023-01-03"}})
	assert.Error(t, err)

	err = c.PutPrices(context.Background(), []models.PriceBar{{Ticker: "AAPL", Time: "Jan 3"}})
	assert.Error(t, err)
}

func TestGetStatementsQuarterlySpacingIsNotAGap(t *testing.T) {
	p := &fakeProvider{}
	c, store := newTestCoordinator(t, p)
	ctx := context.Background()

	rows := []models.StatementRow{
		{
			Ticker: "AAPL", FiscalPeriodEnd: "2023-03-31",
			StatementType: models.StatementIncome, PeriodKind: models.PeriodQuarterly,
			Items: map[string]null.Float{"totalRevenue": null.FloatFrom(1)},
		},
		{
			Ticker: "AAPL", FiscalPeriodEnd: "2023-06-30",
			StatementType: models.StatementIncome, PeriodKind: models.PeriodQuarterly,
			Items: map[string]null.Float{"totalRevenue": null.FloatFrom(2)},
		},
	}
	require.NoError(t, store.UpsertStatements(ctx, rows))

	got, err := c.GetStatements(ctx, "AAPL", models.StatementIncome, models.PeriodQuarterly,
		models.DateRange{Start: "2023-03-31", End: "2023-06-30"})
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestInvalidateDropsCacheNotStore(t *testing.T) {
	p := &fakeProvider{prices: pricesFor("AAPL", "2023-01-03")}
	c, _ := newTestCoordinator(t, p)
	ctx := context.Background()
	rng := models.DateRange{Start: "2023-01-03", End: "2023-01-03"}

	_, err := c.GetPrices(ctx, "AAPL", rng)
	require.NoError(t, err)
	require.NoError(t, c.Invalidate(ctx, "AAPL"))

	got, err := c.GetPrices(ctx, "AAPL", rng)
	require.NoError(t, err)
	assert.Len(t, got, 1)
	// The store still covers the range, so no second provider call.
	assert.Equal(t, 1, p.priceCallCount())
}
