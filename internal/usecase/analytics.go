package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"FinVault/internal/domain/models"
	domrepo "FinVault/internal/domain/repository"
	applogger "FinVault/pkg/logger"

	"github.com/montanaflynn/stats"
)

// ErrInsufficientData marks analytics inputs too small to produce a
// number; affected cells stay unknown instead of failing the request.
var ErrInsufficientData = errors.New("insufficient data")

// SentimentBucket selects the aggregation granularity of SentimentTrend.
type SentimentBucket string

const (
	BucketDay   SentimentBucket = "day"
	BucketWeek  SentimentBucket = "week"
	BucketMonth SentimentBucket = "month"
)

func ParseSentimentBucket(s string) (SentimentBucket, error) {
	switch SentimentBucket(s) {
	case BucketDay, BucketWeek, BucketMonth:
		return SentimentBucket(s), nil
	case "":
		return BucketDay, nil
	}
	return "", fmt.Errorf("unknown bucket %q", s)
}

// Analytics computes derived views over resident data only. It reads
// the durable store directly and never triggers provider fetches; use
// the coordinator first to fill any ranges the analysis needs.
type Analytics struct {
	store domrepo.Store
	l     *applogger.Logger
}

func NewAnalytics(store domrepo.Store, l *applogger.Logger) *Analytics {
	return &Analytics{store: store, l: l}
}

// PricesToSeries returns the ticker's closing prices as an ordered
// (time, close) table. AdjustedClose is preferred when known.
func (a *Analytics) PricesToSeries(ctx context.Context, ticker string, rng models.DateRange) (*models.Table, error) {
	bars, err := a.store.QueryPrices(ctx, ticker, &rng)
	if err != nil {
		return nil, err
	}

	table := models.NewTable("time", "close")
	for _, b := range bars {
		c := b.AdjustedClose
		if !c.Valid {
			c = b.Close
		}
		if !c.Valid {
			table.Append(b.Time, nil)
			continue
		}
		table.Append(b.Time, c.Float64)
	}
	return table, nil
}

// PivotLineItems returns one row per fiscal period with one column per
// requested line item. Items the provider never reported stay unknown.
func (a *Analytics) PivotLineItems(ctx context.Context, ticker string, st models.StatementType, pk models.PeriodKind, rng models.DateRange, items []string) (*models.Table, error) {
	rows, err := a.store.QueryStatements(ctx, ticker, st, pk, &rng)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		items = models.KnownItems(st)
	}

	cols := append([]string{"fiscal_period_end"}, items...)
	table := models.NewTable(cols...)
	for _, row := range rows {
		cells := make([]any, 0, len(cols))
		cells = append(cells, row.FiscalPeriodEnd)
		for _, name := range items {
			v, ok := row.Item(name)
			if !ok || !v.Valid {
				cells = append(cells, nil)
				continue
			}
			cells = append(cells, v.Float64)
		}
		table.Append(cells...)
	}
	return table, nil
}

// GrowthMetrics computes period-over-period growth for the requested
// line items: (curr - prev) / |prev|. A cell stays unknown when either
// period's value is unknown or the base is zero.
func (a *Analytics) GrowthMetrics(ctx context.Context, ticker string, st models.StatementType, pk models.PeriodKind, rng models.DateRange, items []string) (*models.Table, error) {
	rows, err := a.store.QueryStatements(ctx, ticker, st, pk, &rng)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		items = defaultGrowthItems(st)
	}

	cols := append([]string{"fiscal_period_end"}, items...)
	table := models.NewTable(cols...)
	for i := 1; i < len(rows); i++ {
		prev, curr := rows[i-1], rows[i]
		cells := make([]any, 0, len(cols))
		cells = append(cells, curr.FiscalPeriodEnd)
		for _, name := range items {
			cells = append(cells, growthCell(prev, curr, name))
		}
		table.Append(cells...)
	}
	return table, nil
}

func growthCell(prev, curr models.StatementRow, name string) any {
	p, okPrev := prev.Item(name)
	c, okCurr := curr.Item(name)
	if !okPrev || !okCurr || !p.Valid || !c.Valid || p.Float64 == 0 {
		return nil
	}
	return (c.Float64 - p.Float64) / math.Abs(p.Float64)
}

func defaultGrowthItems(st models.StatementType) []string {
	switch st {
	case models.StatementIncome:
		return []string{"totalRevenue", "grossProfit", "operatingIncome", "netIncome"}
	case models.StatementBalance:
		return []string{"totalAssets", "totalLiabilities", "totalShareholderEquity"}
	case models.StatementCashFlow:
		return []string{"operatingCashflow", "capitalExpenditures", "cashflowFromInvestment"}
	}
	return nil
}

// CorrelationMatrix computes pairwise Pearson correlation of daily
// returns over the tickers' common trading days. Cells with fewer than
// two common observations stay unknown; the diagonal is exactly 1 once
// the ticker has at least two return points.
func (a *Analytics) CorrelationMatrix(ctx context.Context, tickers []string, rng models.DateRange) (*models.Table, error) {
	if len(tickers) < 2 {
		return nil, fmt.Errorf("%w: need at least two tickers", ErrInsufficientData)
	}

	returns := make([]map[string]float64, len(tickers))
	for i, t := range tickers {
		bars, err := a.store.QueryPrices(ctx, t, &rng)
		if err != nil {
			return nil, err
		}
		returns[i] = dailyReturns(bars)
	}

	table := models.NewTable(append([]string{"ticker"}, tickers...)...)
	for i, t := range tickers {
		cells := make([]any, 0, len(tickers)+1)
		cells = append(cells, t)
		for j := range tickers {
			if i == j {
				if len(returns[i]) < 2 {
					cells = append(cells, nil)
				} else {
					cells = append(cells, 1.0)
				}
				continue
			}
			cells = append(cells, correlationCell(returns[i], returns[j]))
		}
		table.Append(cells...)
	}
	return table, nil
}

func dailyReturns(bars []models.PriceBar) map[string]float64 {
	out := make(map[string]float64, len(bars))
	var prevDate string
	var prevClose float64
	for _, b := range bars {
		c := b.AdjustedClose
		if !c.Valid {
			c = b.Close
		}
		if !c.Valid {
			continue
		}
		if prevDate != "" && prevClose != 0 {
			out[b.Time] = (c.Float64 - prevClose) / prevClose
		}
		prevDate, prevClose = b.Time, c.Float64
	}
	return out
}

func correlationCell(a, b map[string]float64) any {
	dates := make([]string, 0, len(a))
	for d := range a {
		if _, ok := b[d]; ok {
			dates = append(dates, d)
		}
	}
	if len(dates) < 2 {
		return nil
	}
	sort.Strings(dates)
	xs := make([]float64, len(dates))
	ys := make([]float64, len(dates))
	for i, d := range dates {
		xs[i], ys[i] = a[d], b[d]
	}
	r, err := stats.Pearson(xs, ys)
	if err != nil || math.IsNaN(r) {
		return nil
	}
	return r
}

// RatioComparison reports fundamental ratios per ticker, all aligned to
// a common as-of date: the earliest of the tickers' latest fiscal
// periods, so no ticker compares a newer quarter against another's
// older one. Ratios with unknown inputs stay unknown.
func (a *Analytics) RatioComparison(ctx context.Context, tickers []string, pk models.PeriodKind, rng models.DateRange) (*models.Table, error) {
	type financials struct {
		income  []models.StatementRow
		balance []models.StatementRow
	}
	data := make([]financials, len(tickers))
	asOf := ""
	for i, t := range tickers {
		income, err := a.store.QueryStatements(ctx, t, models.StatementIncome, pk, &rng)
		if err != nil {
			return nil, err
		}
		balance, err := a.store.QueryStatements(ctx, t, models.StatementBalance, pk, &rng)
		if err != nil {
			return nil, err
		}
		data[i] = financials{income: income, balance: balance}
		if inc, _ := latestCommonPeriod(income, balance, ""); inc != nil {
			if asOf == "" || inc.FiscalPeriodEnd < asOf {
				asOf = inc.FiscalPeriodEnd
			}
		}
	}

	table := models.NewTable(
		"ticker", "fiscal_period_end",
		"net_margin", "operating_margin", "debt_to_equity", "current_ratio", "return_on_equity",
	)
	for i, t := range tickers {
		inc, bal := latestCommonPeriod(data[i].income, data[i].balance, asOf)
		if inc == nil || bal == nil {
			table.Append(t, "", nil, nil, nil, nil, nil)
			continue
		}
		table.Append(t, inc.FiscalPeriodEnd,
			ratio(*inc, "netIncome", *inc, "totalRevenue"),
			ratio(*inc, "operatingIncome", *inc, "totalRevenue"),
			ratio(*bal, "totalLiabilities", *bal, "totalShareholderEquity"),
			ratio(*bal, "totalCurrentAssets", *bal, "totalCurrentLiabilities"),
			ratio(*inc, "netIncome", *bal, "totalShareholderEquity"),
		)
	}
	return table, nil
}

// latestCommonPeriod picks the most recent fiscal period present in both
// statement sets, capped at asOf when non-empty, so ratios never mix
// reporting periods.
func latestCommonPeriod(income, balance []models.StatementRow, asOf string) (*models.StatementRow, *models.StatementRow) {
	byPeriod := make(map[string]int, len(balance))
	for i, b := range balance {
		byPeriod[b.FiscalPeriodEnd] = i
	}
	for i := len(income) - 1; i >= 0; i-- {
		if asOf != "" && income[i].FiscalPeriodEnd > asOf {
			continue
		}
		if j, ok := byPeriod[income[i].FiscalPeriodEnd]; ok {
			return &income[i], &balance[j]
		}
	}
	return nil, nil
}

func ratio(numRow models.StatementRow, numItem string, denRow models.StatementRow, denItem string) any {
	num, okN := numRow.Item(numItem)
	den, okD := denRow.Item(denItem)
	if !okN || !okD || !num.Valid || !den.Valid || den.Float64 == 0 {
		return nil
	}
	return num.Float64 / den.Float64
}

// SentimentTrend aggregates news sentiment into time buckets. Buckets
// with no scored articles are absent from the result, never zero-filled.
func (a *Analytics) SentimentTrend(ctx context.Context, ticker string, rng models.DateRange, bucket SentimentBucket) (*models.Table, error) {
	items, err := a.store.QueryNews(ctx, ticker, &rng)
	if err != nil {
		return nil, err
	}

	type agg struct {
		sum float64
		n   int
	}
	buckets := map[string]*agg{}
	for _, it := range items {
		if !it.SentimentScore.Valid {
			continue
		}
		k, err := bucketKey(it.Date, bucket)
		if err != nil {
			continue
		}
		b, ok := buckets[k]
		if !ok {
			b = &agg{}
			buckets[k] = b
		}
		b.sum += it.SentimentScore.Float64
		b.n++
	}

	keys := make([]string, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	table := models.NewTable("bucket", "avg_sentiment", "articles")
	for _, k := range keys {
		b := buckets[k]
		table.Append(k, b.sum/float64(b.n), b.n)
	}
	return table, nil
}

func bucketKey(date string, bucket SentimentBucket) (string, error) {
	t, err := models.ParseDate(date)
	if err != nil {
		return "", err
	}
	switch bucket {
	case BucketDay:
		return date, nil
	case BucketWeek:
		y, w := t.ISOWeek()
		return fmt.Sprintf("%04d-W%02d", y, w), nil
	case BucketMonth:
		return t.Format("2006-01"), nil
	}
	return "", fmt.Errorf("unknown bucket %q", bucket)
}

// InsiderSummary aggregates insider activity per trader over the range,
// most active first.
func (a *Analytics) InsiderSummary(ctx context.Context, ticker string, rng models.DateRange) (*models.Table, error) {
	trades, err := a.store.QueryInsiderTrades(ctx, ticker, &rng)
	if err != nil {
		return nil, err
	}

	type agg struct {
		trades int
		shares float64
		value  float64
		last   string
	}
	byTrader := map[string]*agg{}
	for _, t := range trades {
		s, ok := byTrader[t.TraderName]
		if !ok {
			s = &agg{}
			byTrader[t.TraderName] = s
		}
		s.trades++
		if t.Shares.Valid {
			s.shares += t.Shares.Float64
		}
		if t.Value.Valid {
			s.value += t.Value.Float64
		}
		if t.TransactionDate > s.last {
			s.last = t.TransactionDate
		}
	}

	names := make([]string, 0, len(byTrader))
	for n := range byTrader {
		names = append(names, n)
	}
	sort.Slice(names, func(i, j int) bool {
		a, b := byTrader[names[i]], byTrader[names[j]]
		if a.trades != b.trades {
			return a.trades > b.trades
		}
		return names[i] < names[j]
	})

	table := models.NewTable("trader_name", "trades", "total_shares", "total_value", "last_transaction")
	for _, n := range names {
		s := byTrader[n]
		table.Append(n, s.trades, s.shares, s.value, s.last)
	}
	return table, nil
}

// CustomQuery runs read-only SQL against the store.
func (a *Analytics) CustomQuery(ctx context.Context, text string) (*models.Table, error) {
	start := time.Now()
	table, err := a.store.RawQuery(ctx, text)
	if a.l != nil {
		if err != nil {
			a.l.Warn("custom query rejected", applogger.Error(err))
		} else {
			a.l.Debug("custom query ok",
				applogger.Int("rows", len(table.Rows)),
				applogger.Duration("duration_ms", time.Since(start)),
			)
		}
	}
	return table, err
}
