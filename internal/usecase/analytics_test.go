package usecase

import (
	"context"
	"testing"

	"FinVault/internal/domain/models"
	domrepo "FinVault/internal/domain/repository"

	"github.com/guregu/null/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAnalytics(t *testing.T, p *fakeProvider) (*Analytics, *Coordinator) {
	t.Helper()
	c, store := newTestCoordinator(t, p)
	return NewAnalytics(store, nil), c
}

func incomeRow(ticker, periodEnd string, revenue, netIncome any) models.StatementRow {
	items := map[string]null.Float{}
	if v, ok := revenue.(float64); ok {
		items["totalRevenue"] = null.FloatFrom(v)
	} else {
		items["totalRevenue"] = null.Float{}
	}
	if v, ok := netIncome.(float64); ok {
		items["netIncome"] = null.FloatFrom(v)
	} else {
		items["netIncome"] = null.Float{}
	}
	return models.StatementRow{
		Ticker:          ticker,
		FiscalPeriodEnd: periodEnd,
		StatementType:   models.StatementIncome,
		PeriodKind:      models.PeriodAnnual,
		Items:           items,
	}
}

func TestAnalyticsNeverCallsProvider(t *testing.T) {
	// Analytics reads resident data only. Even when the requested range
	// reaches beyond what is stored, no gap fill happens.
	p := &fakeProvider{fail: domrepo.ErrProviderTransient}
	a, c := newTestAnalytics(t, p)
	ctx := context.Background()

	require.NoError(t, c.PutPrices(ctx, correlatedBars("AAPL", 1)))

	table, err := a.PricesToSeries(ctx, "AAPL", models.DateRange{Start: "2023-01-01", End: "2023-12-31"})
	require.NoError(t, err)
	assert.Len(t, table.Rows, 5)
	assert.Equal(t, 0, p.priceCallCount())
}

func TestPricesToSeries(t *testing.T) {
	a, c := newTestAnalytics(t, &fakeProvider{})
	ctx := context.Background()

	require.NoError(t, c.PutPrices(ctx, []models.PriceBar{
		{Ticker: "AAPL", Time: "2023-01-02", Close: null.FloatFrom(100), AdjustedClose: null.FloatFrom(99)},
		{Ticker: "AAPL", Time: "2023-01-03", Close: null.FloatFrom(102)},
		{Ticker: "AAPL", Time: "2023-01-04"},
	}))

	table, err := a.PricesToSeries(ctx, "AAPL", models.DateRange{Start: "2023-01-01", End: "2023-01-10"})
	require.NoError(t, err)

	require.Equal(t, []string{"time", "close"}, table.Columns)
	require.Len(t, table.Rows, 3)
	// Adjusted close wins when known, plain close otherwise.
	assert.Equal(t, 99.0, table.Rows[0][1])
	assert.Equal(t, 102.0, table.Rows[1][1])
	assert.Nil(t, table.Rows[2][1])
}

func TestPivotLineItems(t *testing.T) {
	a, c := newTestAnalytics(t, &fakeProvider{})
	ctx := context.Background()

	require.NoError(t, c.PutStatements(ctx, []models.StatementRow{
		incomeRow("AAPL", "2021-09-25", 150.0, nil),
		incomeRow("AAPL", "2022-09-24", 120.0, 30.0),
	}))

	table, err := a.PivotLineItems(ctx, "AAPL", models.StatementIncome, models.PeriodAnnual,
		models.DateRange{Start: "2021-01-01", End: "2023-01-01"},
		[]string{"totalRevenue", "netIncome"})
	require.NoError(t, err)

	require.Equal(t, []string{"fiscal_period_end", "totalRevenue", "netIncome"}, table.Columns)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, "2021-09-25", table.Rows[0][0])
	assert.Equal(t, 150.0, table.Rows[0][1])
	// Unknown marker survives the pivot.
	assert.Nil(t, table.Rows[0][2])
	assert.Equal(t, 30.0, table.Rows[1][2])
}

func TestGrowthMetrics(t *testing.T) {
	a, c := newTestAnalytics(t, &fakeProvider{})
	ctx := context.Background()

	require.NoError(t, c.PutStatements(ctx, []models.StatementRow{
		incomeRow("AAPL", "2020-09-26", 100.0, 20.0),
		incomeRow("AAPL", "2021-09-25", 150.0, nil),
		incomeRow("AAPL", "2022-09-24", 120.0, 30.0),
	}))

	table, err := a.GrowthMetrics(ctx, "AAPL", models.StatementIncome, models.PeriodAnnual,
		models.DateRange{Start: "2020-01-01", End: "2023-01-01"},
		[]string{"totalRevenue", "netIncome"})
	require.NoError(t, err)

	require.Equal(t, []string{"fiscal_period_end", "totalRevenue", "netIncome"}, table.Columns)
	require.Len(t, table.Rows, 2)

	assert.Equal(t, "2021-09-25", table.Rows[0][0])
	assert.InDelta(t, 0.5, table.Rows[0][1].(float64), 1e-9)
	// Unknown current value stays unknown, never zero.
	assert.Nil(t, table.Rows[0][2])

	assert.Equal(t, "2022-09-24", table.Rows[1][0])
	assert.InDelta(t, -0.2, table.Rows[1][1].(float64), 1e-9)
	// Unknown base value stays unknown too.
	assert.Nil(t, table.Rows[1][2])
}

func TestGrowthMetricsZeroBaseUnknown(t *testing.T) {
	a, c := newTestAnalytics(t, &fakeProvider{})
	ctx := context.Background()

	require.NoError(t, c.PutStatements(ctx, []models.StatementRow{
		incomeRow("AAPL", "2020-09-26", 0.0, 5.0),
		incomeRow("AAPL", "2021-09-25", 150.0, 10.0),
	}))

	table, err := a.GrowthMetrics(ctx, "AAPL", models.StatementIncome, models.PeriodAnnual,
		models.DateRange{Start: "2020-01-01", End: "2022-01-01"},
		[]string{"totalRevenue"})
	require.NoError(t, err)
	require.Len(t, table.Rows, 1)
	assert.Nil(t, table.Rows[0][1])
}

func correlatedBars(ticker string, scale float64) []models.PriceBar {
	days := []string{"2023-01-02", "2023-01-03", "2023-01-04", "2023-01-05", "2023-01-06"}
	closes := []float64{100, 102, 101, 105, 104}
	out := make([]models.PriceBar, len(days))
	for i := range days {
		out[i] = models.PriceBar{
			Ticker: ticker,
			Time:   days[i],
			Close:  null.FloatFrom(closes[i] * scale),
		}
	}
	return out
}

func TestCorrelationMatrixPerfectlyCorrelated(t *testing.T) {
	a, c := newTestAnalytics(t, &fakeProvider{})
	ctx := context.Background()

	// Scaled copies have identical daily returns: correlation 1.
	require.NoError(t, c.PutPrices(ctx, correlatedBars("AAPL", 1)))
	require.NoError(t, c.PutPrices(ctx, correlatedBars("MSFT", 3)))

	table, err := a.CorrelationMatrix(ctx, []string{"AAPL", "MSFT"},
		models.DateRange{Start: "2023-01-02", End: "2023-01-06"})
	require.NoError(t, err)

	require.Equal(t, []string{"ticker", "AAPL", "MSFT"}, table.Columns)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, 1.0, table.Rows[0][1])
	assert.InDelta(t, 1.0, table.Rows[0][2].(float64), 1e-9)
	// Symmetric.
	assert.InDelta(t, table.Rows[0][2].(float64), table.Rows[1][1].(float64), 1e-12)
	assert.Equal(t, 1.0, table.Rows[1][2])
}

func TestCorrelationMatrixInsufficientData(t *testing.T) {
	a, c := newTestAnalytics(t, &fakeProvider{})
	ctx := context.Background()

	require.NoError(t, c.PutPrices(ctx, correlatedBars("AAPL", 1)))
	// MSFT has a single bar: no returns at all.
	require.NoError(t, c.PutPrices(ctx, []models.PriceBar{
		{Ticker: "MSFT", Time: "2023-01-02", Close: null.FloatFrom(200)},
	}))

	table, err := a.CorrelationMatrix(ctx, []string{"AAPL", "MSFT"},
		models.DateRange{Start: "2023-01-02", End: "2023-01-06"})
	require.NoError(t, err)
	assert.Equal(t, 1.0, table.Rows[0][1])
	assert.Nil(t, table.Rows[0][2])
	assert.Nil(t, table.Rows[1][1])
	// A ticker with fewer than two return points has no self-correlation
	// either.
	assert.Nil(t, table.Rows[1][2])

	_, err = a.CorrelationMatrix(ctx, []string{"AAPL"}, models.DateRange{Start: "2023-01-02", End: "2023-01-06"})
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestCorrelationMatrixTwoAlignedPointsSuffice(t *testing.T) {
	a, c := newTestAnalytics(t, &fakeProvider{})
	ctx := context.Background()

	// Three bars give exactly two return points per ticker.
	days := []string{"2023-01-02", "2023-01-03", "2023-01-04"}
	for _, tk := range []string{"AAPL", "MSFT"} {
		bars := make([]models.PriceBar, len(days))
		for i, d := range days {
			bars[i] = models.PriceBar{Ticker: tk, Time: d, Close: null.FloatFrom(float64(100 + i))}
		}
		require.NoError(t, c.PutPrices(ctx, bars))
	}

	table, err := a.CorrelationMatrix(ctx, []string{"AAPL", "MSFT"},
		models.DateRange{Start: "2023-01-02", End: "2023-01-04"})
	require.NoError(t, err)
	require.NotNil(t, table.Rows[0][2])
	assert.InDelta(t, 1.0, table.Rows[0][2].(float64), 1e-9)
	assert.Equal(t, 1.0, table.Rows[0][1])
}

func TestRatioComparison(t *testing.T) {
	a, c := newTestAnalytics(t, &fakeProvider{})
	ctx := context.Background()

	require.NoError(t, c.PutStatements(ctx, []models.StatementRow{
		incomeRow("AAPL", "2022-09-24", 100.0, 25.0),
		{
			Ticker: "AAPL", FiscalPeriodEnd: "2022-09-24",
			StatementType: models.StatementBalance, PeriodKind: models.PeriodAnnual,
			Items: map[string]null.Float{
				"totalLiabilities":       null.FloatFrom(300),
				"totalShareholderEquity": null.FloatFrom(50),
			},
		},
	}))

	table, err := a.RatioComparison(ctx, []string{"AAPL", "GHOST"}, models.PeriodAnnual,
		models.DateRange{Start: "2022-01-01", End: "2023-01-01"})
	require.NoError(t, err)
	require.Len(t, table.Rows, 2)

	row := table.Rows[0]
	assert.Equal(t, "AAPL", row[0])
	assert.Equal(t, "2022-09-24", row[1])
	assert.InDelta(t, 0.25, row[2].(float64), 1e-9) // net margin
	assert.Nil(t, row[3])                           // operating income unknown
	assert.InDelta(t, 6.0, row[4].(float64), 1e-9)  // debt to equity
	assert.InDelta(t, 0.5, row[6].(float64), 1e-9)  // return on equity

	// A ticker with no statements yields an all-unknown row.
	assert.Equal(t, "GHOST", table.Rows[1][0])
	assert.Nil(t, table.Rows[1][2])
}

func balanceRow(ticker, periodEnd string, liabilities, equity float64) models.StatementRow {
	return models.StatementRow{
		Ticker: ticker, FiscalPeriodEnd: periodEnd,
		StatementType: models.StatementBalance, PeriodKind: models.PeriodAnnual,
		Items: map[string]null.Float{
			"totalLiabilities":       null.FloatFrom(liabilities),
			"totalShareholderEquity": null.FloatFrom(equity),
		},
	}
}

func TestRatioComparisonAlignsToCommonAsOfDate(t *testing.T) {
	a, c := newTestAnalytics(t, &fakeProvider{})
	ctx := context.Background()

	// AAPL has reported through 2022-09-24, MSFT only through
	// 2022-06-30. Both rows must align at the older common date.
	require.NoError(t, c.PutStatements(ctx, []models.StatementRow{
		incomeRow("AAPL", "2022-06-30", 80.0, 16.0),
		balanceRow("AAPL", "2022-06-30", 240, 40),
		incomeRow("AAPL", "2022-09-24", 100.0, 25.0),
		balanceRow("AAPL", "2022-09-24", 300, 50),
		incomeRow("MSFT", "2022-06-30", 200.0, 60.0),
		balanceRow("MSFT", "2022-06-30", 100, 100),
	}))

	table, err := a.RatioComparison(ctx, []string{"AAPL", "MSFT"}, models.PeriodAnnual,
		models.DateRange{Start: "2022-01-01", End: "2023-01-01"})
	require.NoError(t, err)
	require.Len(t, table.Rows, 2)

	assert.Equal(t, "2022-06-30", table.Rows[0][1])
	assert.Equal(t, "2022-06-30", table.Rows[1][1])
	// AAPL's ratios come from its 2022-06-30 filing, not its newer one.
	assert.InDelta(t, 0.2, table.Rows[0][2].(float64), 1e-9)
	assert.InDelta(t, 6.0, table.Rows[0][4].(float64), 1e-9)
}

func TestParseSentimentBucketDefaultsToDay(t *testing.T) {
	b, err := ParseSentimentBucket("")
	require.NoError(t, err)
	assert.Equal(t, BucketDay, b)

	_, err = ParseSentimentBucket("year")
	assert.Error(t, err)
}

func TestSentimentTrendMonthly(t *testing.T) {
	a, c := newTestAnalytics(t, &fakeProvider{})
	ctx := context.Background()

	require.NoError(t, c.PutNews(ctx, []models.NewsItem{
		{Ticker: "AAPL", URL: "u1", Date: "2023-01-04", SentimentScore: null.FloatFrom(0.2)},
		{Ticker: "AAPL", URL: "u2", Date: "2023-01-20", SentimentScore: null.FloatFrom(0.4)},
		{Ticker: "AAPL", URL: "u3", Date: "2023-03-02", SentimentScore: null.FloatFrom(-0.1)},
		// Unscored article: ignored by the trend.
		{Ticker: "AAPL", URL: "u4", Date: "2023-03-03"},
	}))

	table, err := a.SentimentTrend(ctx, "AAPL", models.DateRange{Start: "2023-01-01", End: "2023-03-31"}, BucketMonth)
	require.NoError(t, err)

	// February has no articles and is absent, not zero.
	require.Len(t, table.Rows, 2)
	assert.Equal(t, "2023-01", table.Rows[0][0])
	assert.InDelta(t, 0.3, table.Rows[0][1].(float64), 1e-9)
	assert.Equal(t, 2, table.Rows[0][2])
	assert.Equal(t, "2023-03", table.Rows[1][0])
	assert.Equal(t, 1, table.Rows[1][2])
}

func TestInsiderSummaryOrdering(t *testing.T) {
	a, c := newTestAnalytics(t, &fakeProvider{})
	ctx := context.Background()

	require.NoError(t, c.PutInsiderTrades(ctx, []models.InsiderTrade{
		{Ticker: "AAPL", TransactionDate: "2023-01-03", TraderName: "COOK T", SecurityTitle: "Common", FilingDate: "2023-01-04", Shares: null.FloatFrom(100), Value: null.FloatFrom(15000)},
		{Ticker: "AAPL", TransactionDate: "2023-01-10", TraderName: "COOK T", SecurityTitle: "Common", FilingDate: "2023-01-11", Shares: null.FloatFrom(50)},
		{Ticker: "AAPL", TransactionDate: "2023-01-05", TraderName: "MAESTRI L", SecurityTitle: "Common", FilingDate: "2023-01-06", Shares: null.FloatFrom(10)},
	}))

	table, err := a.InsiderSummary(ctx, "AAPL", models.DateRange{Start: "2023-01-01", End: "2023-01-31"})
	require.NoError(t, err)
	require.Len(t, table.Rows, 2)

	assert.Equal(t, "COOK T", table.Rows[0][0])
	assert.Equal(t, 2, table.Rows[0][1])
	assert.Equal(t, 150.0, table.Rows[0][2])
	assert.Equal(t, "2023-01-10", table.Rows[0][4])
	assert.Equal(t, "MAESTRI L", table.Rows[1][0])
}

func TestCustomQueryRejectsWrites(t *testing.T) {
	a, _ := newTestAnalytics(t, &fakeProvider{})

	_, err := a.CustomQuery(context.Background(), "DELETE FROM prices")
	assert.ErrorIs(t, err, domrepo.ErrInvalidQuery)
}
