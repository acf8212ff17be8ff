package repository

import (
	"context"
	"errors"

	"FinVault/internal/domain/models"
)

var (
	// ErrStorageUnavailable wraps store I/O failures; callers may retry
	// with backoff.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrInvalidQuery marks malformed or non-read-only raw query text.
	// Surfaced, never retried.
	ErrInvalidQuery = errors.New("invalid query")

	// ErrProviderTransient marks a retryable provider failure. An unknown
	// ticker is not an error: providers return an empty result for it.
	ErrProviderTransient = errors.New("provider temporarily unavailable")
)

// Store is the durable tier: one table per dataset, unique on the
// natural key, upserts replacing whole rows last-write-wins.
type Store interface {
	UpsertPrices(ctx context.Context, bars []models.PriceBar) error
	UpsertStatements(ctx context.Context, rows []models.StatementRow) error
	UpsertInsiderTrades(ctx context.Context, trades []models.InsiderTrade) error
	UpsertNews(ctx context.Context, items []models.NewsItem) error

	// Query methods return rows ascending by the natural temporal field.
	// A nil range means the ticker's full stored set.
	QueryPrices(ctx context.Context, ticker string, rng *models.DateRange) ([]models.PriceBar, error)
	QueryStatements(ctx context.Context, ticker string, st models.StatementType, pk models.PeriodKind, rng *models.DateRange) ([]models.StatementRow, error)
	QueryInsiderTrades(ctx context.Context, ticker string, rng *models.DateRange) ([]models.InsiderTrade, error)
	QueryNews(ctx context.Context, ticker string, rng *models.DateRange) ([]models.NewsItem, error)

	// CoveredDates returns the stored temporal points (YYYY-MM-DD,
	// ascending, distinct) for gap detection over the requested range.
	CoveredDates(ctx context.Context, key models.DatasetKey, ticker string, rng models.DateRange) ([]string, error)

	// CoveredRanges returns the provider-answered ranges recorded for a
	// key, ascending and non-overlapping. A range counts as covered even
	// when the answer held zero rows, so empty stretches (weekends,
	// no-news days) are never re-asked.
	CoveredRanges(ctx context.Context, key models.DatasetKey, ticker string) ([]models.DateRange, error)

	// RecordCoveredRange persists one answered range, merging it with
	// any overlapping or adjacent recorded ranges.
	RecordCoveredRange(ctx context.Context, key models.DatasetKey, ticker string, rng models.DateRange) error

	// RawQuery executes read-only query text and returns a generic
	// tabular result. Write statements are rejected with ErrInvalidQuery.
	RawQuery(ctx context.Context, text string) (*models.Table, error)

	// Summary and TickerStats expose schema/row-count metadata.
	Summary(ctx context.Context) (*models.Table, error)
	TickerStats(ctx context.Context, ticker string) (*models.Table, error)

	Health(ctx context.Context) error
}

// Provider is the external data source, asked only for gaps. A fetch
// for a ticker the provider does not know yields an empty result and a
// nil error; transient failures wrap ErrProviderTransient.
type Provider interface {
	FetchPrices(ctx context.Context, ticker string, rng models.DateRange) ([]models.PriceBar, error)
	FetchStatements(ctx context.Context, ticker string, st models.StatementType, pk models.PeriodKind, rng models.DateRange) ([]models.StatementRow, error)
	FetchInsiderTrades(ctx context.Context, ticker string, rng models.DateRange) ([]models.InsiderTrade, error)
	FetchNews(ctx context.Context, ticker string, rng models.DateRange) ([]models.NewsItem, error)
}

// Metrics records operational counters; implementations must be safe
// for concurrent use.
type Metrics interface {
	RecordCacheHit(dataset string)
	RecordCacheMiss(dataset string)
	RecordProviderCall(dataset, ticker string)
	RecordRowsUpserted(dataset string, n int)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}
