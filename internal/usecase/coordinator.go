package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"FinVault/internal/domain/models"
	domrepo "FinVault/internal/domain/repository"
	pkgcache "FinVault/pkg/cache"
	"FinVault/pkg/interval"
	applogger "FinVault/pkg/logger"
)

// GapError reports requested sub-ranges the coordinator could not fill
// because the provider was unavailable. The accompanying result still
// carries every resident row, so callers get partial data plus the gaps.
type GapError struct {
	Gaps []models.DateRange
	Err  error
}

func (e *GapError) Error() string {
	parts := make([]string, 0, len(e.Gaps))
	for _, g := range e.Gaps {
		parts = append(parts, fmt.Sprintf("[%s..%s]", g.Start, g.End))
	}
	return fmt.Sprintf("unfilled gaps %s: %v", strings.Join(parts, " "), e.Err)
}

func (e *GapError) Unwrap() error { return e.Err }

// keyedMutex serializes fills per (dataset, ticker) so concurrent
// requests for the same key never race each other to the provider.
// Distinct keys proceed in parallel. Entries are never reclaimed; the
// map is bounded by datasets times tickers seen.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (k *keyedMutex) lock(key string) *sync.Mutex {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	k.mu.Unlock()
	m.Lock()
	return m
}

// Coordinator orchestrates the memory cache, the durable store and the
// provider: resident data is never re-fetched, and only detected gaps
// are asked of the provider.
type Coordinator struct {
	store    domrepo.Store
	provider domrepo.Provider
	cache    pkgcache.Service
	metrics  domrepo.Metrics
	l        *applogger.Logger

	locks      keyedMutex
	maxRetries int
	retryDelay time.Duration
}

// CoordinatorOption configures a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithMetrics attaches an operational metrics recorder.
func WithMetrics(m domrepo.Metrics) CoordinatorOption {
	return func(c *Coordinator) { c.metrics = m }
}

// WithLogger attaches a structured logger.
func WithLogger(l *applogger.Logger) CoordinatorOption {
	return func(c *Coordinator) { c.l = l }
}

// WithStorageRetry sets retry count and initial backoff for transient
// store failures.
func WithStorageRetry(maxRetries int, delay time.Duration) CoordinatorOption {
	return func(c *Coordinator) {
		c.maxRetries = maxRetries
		c.retryDelay = delay
	}
}

func NewCoordinator(store domrepo.Store, provider domrepo.Provider, cache pkgcache.Service, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		store:      store,
		provider:   provider,
		cache:      cache,
		locks:      keyedMutex{locks: make(map[string]*sync.Mutex)},
		maxRetries: 3,
		retryDelay: 100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// datasetEntry is the cache value: a ticker's full known set plus the
// provider-answered ranges, so stretches the provider reported empty
// (weekends, no-news days) still count as covered on a cache hit.
type datasetEntry[T any] struct {
	Rows    []T                `json:"rows"`
	Covered []models.DateRange `json:"covered,omitempty"`
}

// datasetOps binds one dataset's typed store, provider and record
// accessors so the fill flow can be written once.
type datasetOps[T any] struct {
	key    models.DatasetKey
	date   func(T) string
	query  func(ctx context.Context, ticker string, rng *models.DateRange) ([]T, error)
	upsert func(ctx context.Context, rows []T) error
	fetch  func(ctx context.Context, ticker string, rng models.DateRange) ([]T, error)
}

func (c *Coordinator) priceOps() datasetOps[models.PriceBar] {
	return datasetOps[models.PriceBar]{
		key:    models.PricesKey(),
		date:   func(b models.PriceBar) string { return b.Time },
		query:  c.store.QueryPrices,
		upsert: c.store.UpsertPrices,
		fetch:  c.provider.FetchPrices,
	}
}

func (c *Coordinator) statementOps(st models.StatementType, pk models.PeriodKind) datasetOps[models.StatementRow] {
	return datasetOps[models.StatementRow]{
		key:  models.StatementsKey(st, pk),
		date: func(r models.StatementRow) string { return r.FiscalPeriodEnd },
		query: func(ctx context.Context, ticker string, rng *models.DateRange) ([]models.StatementRow, error) {
			return c.store.QueryStatements(ctx, ticker, st, pk, rng)
		},
		upsert: c.store.UpsertStatements,
		fetch: func(ctx context.Context, ticker string, rng models.DateRange) ([]models.StatementRow, error) {
			return c.provider.FetchStatements(ctx, ticker, st, pk, rng)
		},
	}
}

func (c *Coordinator) insiderOps() datasetOps[models.InsiderTrade] {
	return datasetOps[models.InsiderTrade]{
		key:    models.InsiderTradesKey(),
		date:   func(t models.InsiderTrade) string { return t.TransactionDate },
		query:  c.store.QueryInsiderTrades,
		upsert: c.store.UpsertInsiderTrades,
		fetch:  c.provider.FetchInsiderTrades,
	}
}

func (c *Coordinator) newsOps() datasetOps[models.NewsItem] {
	return datasetOps[models.NewsItem]{
		key:    models.NewsKey(),
		date:   func(n models.NewsItem) string { return n.Date },
		query:  c.store.QueryNews,
		upsert: c.store.UpsertNews,
		fetch:  c.provider.FetchNews,
	}
}

// GetPrices returns daily bars for the range, filling gaps from the
// provider first.
func (c *Coordinator) GetPrices(ctx context.Context, ticker string, rng models.DateRange) ([]models.PriceBar, error) {
	return getFilled(ctx, c, c.priceOps(), ticker, rng)
}

// GetStatements returns statement rows of one type and period kind.
func (c *Coordinator) GetStatements(ctx context.Context, ticker string, st models.StatementType, pk models.PeriodKind, rng models.DateRange) ([]models.StatementRow, error) {
	return getFilled(ctx, c, c.statementOps(st, pk), ticker, rng)
}

// GetInsiderTrades returns insider transactions for the range.
func (c *Coordinator) GetInsiderTrades(ctx context.Context, ticker string, rng models.DateRange) ([]models.InsiderTrade, error) {
	return getFilled(ctx, c, c.insiderOps(), ticker, rng)
}

// GetNews returns news articles for the range.
func (c *Coordinator) GetNews(ctx context.Context, ticker string, rng models.DateRange) ([]models.NewsItem, error) {
	return getFilled(ctx, c, c.newsOps(), ticker, rng)
}

// PutPrices writes caller-supplied bars through store and cache.
func (c *Coordinator) PutPrices(ctx context.Context, bars []models.PriceBar) error {
	for _, b := range bars {
		if err := validateRow(b.Ticker, b.Time); err != nil {
			return err
		}
	}
	return putRows(ctx, c, c.priceOps(), bars)
}

// PutStatements writes caller-supplied statement rows through store and
// cache.
func (c *Coordinator) PutStatements(ctx context.Context, rows []models.StatementRow) error {
	for _, r := range rows {
		if err := validateRow(r.Ticker, r.FiscalPeriodEnd); err != nil {
			return err
		}
		if _, err := models.ParseStatementType(string(r.StatementType)); err != nil {
			return err
		}
		if _, err := models.ParsePeriodKind(string(r.PeriodKind)); err != nil {
			return err
		}
	}
	if len(rows) == 0 {
		return nil
	}
	// Statement cache keys differ per (type, kind); group before refresh.
	byKey := map[models.DatasetKey][]models.StatementRow{}
	for _, r := range rows {
		k := models.StatementsKey(r.StatementType, r.PeriodKind)
		byKey[k] = append(byKey[k], r)
	}
	for k, group := range byKey {
		if err := putRows(ctx, c, c.statementOps(k.Statement, k.Period), group); err != nil {
			return err
		}
	}
	return nil
}

// PutInsiderTrades writes caller-supplied trades through store and cache.
func (c *Coordinator) PutInsiderTrades(ctx context.Context, trades []models.InsiderTrade) error {
	for _, t := range trades {
		if err := validateRow(t.Ticker, t.TransactionDate); err != nil {
			return err
		}
	}
	return putRows(ctx, c, c.insiderOps(), trades)
}

// PutNews writes caller-supplied articles through store and cache.
func (c *Coordinator) PutNews(ctx context.Context, items []models.NewsItem) error {
	for _, n := range items {
		if err := validateRow(n.Ticker, n.Date); err != nil {
			return err
		}
		if n.URL == "" {
			return fmt.Errorf("news item for %s missing url", n.Ticker)
		}
	}
	return putRows(ctx, c, c.newsOps(), items)
}

// Fetch warms a ticker's datasets for the range. Partial failures are
// collected, not fatal, so one slow dataset never blocks the rest.
func (c *Coordinator) Fetch(ctx context.Context, ticker string, rng models.DateRange) error {
	var errs []error
	if _, err := c.GetPrices(ctx, ticker, rng); err != nil {
		errs = append(errs, fmt.Errorf("prices: %w", err))
	}
	for _, st := range []models.StatementType{models.StatementIncome, models.StatementBalance, models.StatementCashFlow} {
		for _, pk := range []models.PeriodKind{models.PeriodAnnual, models.PeriodQuarterly} {
			if _, err := c.GetStatements(ctx, ticker, st, pk, rng); err != nil {
				errs = append(errs, fmt.Errorf("statements %s %s: %w", st, pk, err))
			}
		}
	}
	if _, err := c.GetInsiderTrades(ctx, ticker, rng); err != nil {
		errs = append(errs, fmt.Errorf("insider trades: %w", err))
	}
	if _, err := c.GetNews(ctx, ticker, rng); err != nil {
		errs = append(errs, fmt.Errorf("news: %w", err))
	}
	return errors.Join(errs...)
}

// Invalidate drops a ticker's cache entries. The store is untouched.
func (c *Coordinator) Invalidate(ctx context.Context, ticker string) error {
	keys := []string{
		models.PricesKey().CacheKey(ticker),
		models.InsiderTradesKey().CacheKey(ticker),
		models.NewsKey().CacheKey(ticker),
	}
	for _, st := range []models.StatementType{models.StatementIncome, models.StatementBalance, models.StatementCashFlow} {
		for _, pk := range []models.PeriodKind{models.PeriodAnnual, models.PeriodQuarterly} {
			keys = append(keys, models.StatementsKey(st, pk).CacheKey(ticker))
		}
	}
	return c.cache.Delete(ctx, keys...)
}

func validateRow(ticker, date string) error {
	if ticker == "" {
		return fmt.Errorf("row missing ticker")
	}
	if _, err := models.ParseDate(date); err != nil {
		return fmt.Errorf("row for %s: %w", ticker, err)
	}
	return nil
}

// getFilled is the read path: memory cache, then store, then provider
// for detected gaps only.
func getFilled[T any](ctx context.Context, c *Coordinator, ops datasetOps[T], ticker string, rng models.DateRange) ([]T, error) {
	if ticker == "" {
		return nil, fmt.Errorf("ticker required")
	}
	if err := rng.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	defer c.recordLatency("get:"+string(ops.key.Dataset), start)

	cacheKey := ops.key.CacheKey(ticker)
	mu := c.locks.lock(cacheKey)
	defer mu.Unlock()

	// Cache entries hold the ticker's full known set plus answered
	// ranges; coverage of the request is decided with the same gap
	// arithmetic used for the store.
	if entry, ok, err := pkgcache.GetTyped[datasetEntry[T]](ctx, c.cache, cacheKey); err == nil && ok {
		if len(gapsIn(rng, recordDates(entry.Rows, ops.date), entry.Covered, ops.key.Step())) == 0 {
			c.recordCacheHit(ops.key)
			return filterRange(entry.Rows, ops.date, rng), nil
		}
	}
	c.recordCacheMiss(ops.key)

	covered, err := c.store.CoveredDates(ctx, ops.key, ticker, rng)
	if err != nil {
		c.recordError("storage")
		return nil, err
	}
	spans, err := c.store.CoveredRanges(ctx, ops.key, ticker)
	if err != nil {
		c.recordError("storage")
		return nil, err
	}

	var unfilled []models.DateRange
	var cause error
	for _, gap := range toGaps(rng, covered, spans, ops.key.Step()) {
		rows, err := fetchGap(ctx, c, ops, ticker, gap)
		if err != nil {
			c.recordError("provider")
			c.logGapFailure(ops.key, ticker, gap, err)
			unfilled = append(unfilled, gap)
			cause = err
			continue
		}
		if len(rows) > 0 {
			if err := c.withStorageRetry(ctx, func() error { return ops.upsert(ctx, rows) }); err != nil {
				c.recordError("storage")
				return nil, err
			}
			c.recordRowsUpserted(ops.key, len(rows))
		}
		// An answered gap is covered even when it held no rows, so the
		// same empty stretch is never asked again.
		if err := c.withStorageRetry(ctx, func() error {
			return c.store.RecordCoveredRange(ctx, ops.key, ticker, gap)
		}); err != nil {
			c.recordError("storage")
			return nil, err
		}
	}

	// Re-read the authoritative store and repopulate the cache with the
	// ticker's full set; the response filters down to the range.
	full, err := ops.query(ctx, ticker, nil)
	if err != nil {
		c.recordError("storage")
		return nil, err
	}
	spans, err = c.store.CoveredRanges(ctx, ops.key, ticker)
	if err != nil {
		c.recordError("storage")
		return nil, err
	}
	if err := c.cache.Set(ctx, cacheKey, datasetEntry[T]{Rows: full, Covered: spans}); err != nil && c.l != nil {
		c.l.Warn("cache set failed",
			applogger.String("key", cacheKey),
			applogger.Error(err),
		)
	}

	result := filterRange(full, ops.date, rng)
	if len(unfilled) > 0 {
		return result, &GapError{Gaps: unfilled, Err: cause}
	}
	return result, nil
}

// putRows is the write path: store first, then refresh the cache entry
// from the store so it keeps holding the full known set.
func putRows[T any](ctx context.Context, c *Coordinator, ops datasetOps[T], rows []T) error {
	if len(rows) == 0 {
		return nil
	}
	byTicker := map[string][]T{}
	for _, r := range rows {
		t := rowTicker(r)
		byTicker[t] = append(byTicker[t], r)
	}
	for ticker, group := range byTicker {
		cacheKey := ops.key.CacheKey(ticker)
		mu := c.locks.lock(cacheKey)

		err := c.withStorageRetry(ctx, func() error { return ops.upsert(ctx, group) })
		if err != nil {
			mu.Unlock()
			c.recordError("storage")
			return err
		}
		c.recordRowsUpserted(ops.key, len(group))

		full, err := ops.query(ctx, ticker, nil)
		if err != nil {
			mu.Unlock()
			c.recordError("storage")
			return err
		}
		spans, err := c.store.CoveredRanges(ctx, ops.key, ticker)
		if err != nil {
			mu.Unlock()
			c.recordError("storage")
			return err
		}
		if err := c.cache.Set(ctx, cacheKey, datasetEntry[T]{Rows: full, Covered: spans}); err != nil && c.l != nil {
			c.l.Warn("cache set failed",
				applogger.String("key", cacheKey),
				applogger.Error(err),
			)
		}
		mu.Unlock()
	}
	return nil
}

func rowTicker(r any) string {
	switch v := r.(type) {
	case models.PriceBar:
		return v.Ticker
	case models.StatementRow:
		return v.Ticker
	case models.InsiderTrade:
		return v.Ticker
	case models.NewsItem:
		return v.Ticker
	}
	return ""
}

func fetchGap[T any](ctx context.Context, c *Coordinator, ops datasetOps[T], ticker string, gap models.DateRange) ([]T, error) {
	if c.metrics != nil {
		c.metrics.RecordProviderCall(string(ops.key.Dataset), ticker)
	}
	if c.l != nil {
		c.l.Info("filling gap from provider",
			applogger.String("dataset", string(ops.key.Dataset)),
			applogger.String("ticker", ticker),
			applogger.String("from", gap.Start),
			applogger.String("to", gap.End),
		)
	}
	return ops.fetch(ctx, ticker, gap)
}

func (c *Coordinator) withStorageRetry(ctx context.Context, fn func() error) error {
	delay := c.retryDelay
	for attempt := 0; ; attempt++ {
		err := fn()
		if err == nil || !errors.Is(err, domrepo.ErrStorageUnavailable) || attempt >= c.maxRetries {
			return err
		}
		if c.l != nil {
			c.l.Warn("storage retry",
				applogger.Int("attempt", attempt+1),
				applogger.Duration("backoff_ms", delay),
				applogger.Error(err),
			)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
}

func (c *Coordinator) recordCacheHit(key models.DatasetKey) {
	if c.metrics != nil {
		c.metrics.RecordCacheHit(string(key.Dataset))
	}
}

func (c *Coordinator) recordCacheMiss(key models.DatasetKey) {
	if c.metrics != nil {
		c.metrics.RecordCacheMiss(string(key.Dataset))
	}
}

func (c *Coordinator) recordRowsUpserted(key models.DatasetKey, n int) {
	if c.metrics != nil {
		c.metrics.RecordRowsUpserted(string(key.Dataset), n)
	}
}

func (c *Coordinator) recordError(kind string) {
	if c.metrics != nil {
		c.metrics.RecordError(kind)
	}
}

func (c *Coordinator) recordLatency(op string, start time.Time) {
	if c.metrics != nil {
		c.metrics.RecordLatency(op, time.Since(start).Seconds())
	}
}

func (c *Coordinator) logGapFailure(key models.DatasetKey, ticker string, gap models.DateRange, err error) {
	if c.l == nil {
		return
	}
	c.l.Error("gap fill failed",
		applogger.String("dataset", string(key.Dataset)),
		applogger.String("ticker", ticker),
		applogger.String("from", gap.Start),
		applogger.String("to", gap.End),
		applogger.Error(err),
	)
}

func recordDates[T any](rows []T, date func(T) string) []string {
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, date(r))
	}
	return out
}

func filterRange[T any](rows []T, date func(T) string, rng models.DateRange) []T {
	out := make([]T, 0, len(rows))
	for _, r := range rows {
		if rng.Contains(date(r)) {
			out = append(out, r)
		}
	}
	return out
}

// gapsIn subtracts coverage from the requested range. Covered means a
// stored record date within step, or a recorded provider-answered span.
func gapsIn(rng models.DateRange, dates []string, spans []models.DateRange, step time.Duration) []interval.Range {
	points := make([]time.Time, 0, len(dates))
	for _, d := range dates {
		t, err := models.ParseDate(d)
		if err != nil {
			continue
		}
		points = append(points, t)
	}
	covered := interval.Coalesce(points, step)
	for _, s := range spans {
		if s.Validate() != nil {
			continue
		}
		start, end := s.Times()
		covered = append(covered, interval.Range{Start: start, End: end})
	}
	covered = interval.Merge(covered, step)
	start, end := rng.Times()
	return interval.Subtract(interval.Range{Start: start, End: end}, covered, step)
}

func toGaps(rng models.DateRange, dates []string, spans []models.DateRange, step time.Duration) []models.DateRange {
	raw := gapsIn(rng, dates, spans, step)
	out := make([]models.DateRange, 0, len(raw))
	for _, g := range raw {
		out = append(out, models.DateRange{Start: models.FormatDate(g.Start), End: models.FormatDate(g.End)})
	}
	return out
}
