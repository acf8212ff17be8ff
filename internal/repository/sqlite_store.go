package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"FinVault/internal/domain/models"
	domrepo "FinVault/internal/domain/repository"
	applogger "FinVault/pkg/logger"
	pkgsqlite "FinVault/pkg/sqlite"

	"github.com/guregu/null/v6"
)

// SQLiteStore implements the durable Store tier backed by SQLite.
type SQLiteStore struct {
	db *sql.DB
	l  *applogger.Logger
}

func NewSQLiteStore(c *pkgsqlite.Client) *SQLiteStore {
	return &SQLiteStore{db: c.DB()}
}

// SetLogger injects a structured logger.
func (s *SQLiteStore) SetLogger(l *applogger.Logger) { s.l = l }

// Health performs a connectivity check.
func (s *SQLiteStore) Health(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return storageErr("health", err)
	}
	return nil
}

func storageErr(op string, err error) error {
	return fmt.Errorf("%s: %w", op, errors.Join(domrepo.ErrStorageUnavailable, err))
}

func (s *SQLiteStore) logUpsert(table string, rows int, start time.Time, err error) {
	if s.l == nil {
		return
	}
	if err != nil {
		s.l.Error("sqlite upsert failed",
			applogger.String("table", table),
			applogger.Int("rows", rows),
			applogger.Error(err),
		)
		return
	}
	s.l.Debug("sqlite upsert ok",
		applogger.String("table", table),
		applogger.Int("rows", rows),
		applogger.Duration("duration_ms", time.Since(start)),
	)
}

func (s *SQLiteStore) withTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storageErr(op, err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return storageErr(op, err)
	}
	if err := tx.Commit(); err != nil {
		return storageErr(op, err)
	}
	return nil
}

// UpsertPrices writes bars with whole-row replacement on (ticker, time).
func (s *SQLiteStore) UpsertPrices(ctx context.Context, bars []models.PriceBar) error {
	if len(bars) == 0 {
		return nil
	}
	start := time.Now()
	err := s.withTx(ctx, "upsert prices", func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
            INSERT OR REPLACE INTO prices
                (ticker, time, open, close, high, low, volume,
                 adjusted_close, dividend_amount, split_coefficient)
            VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        `)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, b := range bars {
			if _, err := stmt.ExecContext(ctx,
				b.Ticker, b.Time, b.Open, b.Close, b.High, b.Low,
				b.Volume, b.AdjustedClose, b.DividendAmount, b.SplitCoefficient,
			); err != nil {
				return err
			}
		}
		return nil
	})
	s.logUpsert("prices", len(bars), start, err)
	return err
}

// UpsertStatements replaces each fiscal period's item group wholesale so
// a re-reported period never keeps stale line items around.
func (s *SQLiteStore) UpsertStatements(ctx context.Context, rows []models.StatementRow) error {
	if len(rows) == 0 {
		return nil
	}
	start := time.Now()
	err := s.withTx(ctx, "upsert statements", func(tx *sql.Tx) error {
		del, err := tx.PrepareContext(ctx, `
            DELETE FROM statement_items
            WHERE ticker = ? AND fiscal_period_end = ?
              AND statement_type = ? AND period_kind = ?
        `)
		if err != nil {
			return err
		}
		defer del.Close()
		ins, err := tx.PrepareContext(ctx, `
            INSERT OR REPLACE INTO statement_items
                (ticker, fiscal_period_end, statement_type, period_kind,
                 reported_currency, item, value)
            VALUES (?, ?, ?, ?, ?, ?, ?)
        `)
		if err != nil {
			return err
		}
		defer ins.Close()

		for _, r := range rows {
			if _, err := del.ExecContext(ctx,
				r.Ticker, r.FiscalPeriodEnd, string(r.StatementType), string(r.PeriodKind),
			); err != nil {
				return err
			}
			if err := insertItems(ctx, ins, r, r.Items); err != nil {
				return err
			}
			if err := insertItems(ctx, ins, r, r.Extra); err != nil {
				return err
			}
		}
		return nil
	})
	s.logUpsert("statement_items", len(rows), start, err)
	return err
}

func insertItems(ctx context.Context, ins *sql.Stmt, r models.StatementRow, items map[string]null.Float) error {
	for name, v := range items {
		if _, err := ins.ExecContext(ctx,
			r.Ticker, r.FiscalPeriodEnd, string(r.StatementType), string(r.PeriodKind),
			r.ReportedCurrency, name, v,
		); err != nil {
			return err
		}
	}
	return nil
}

// UpsertInsiderTrades writes trades keyed by the composite identity.
func (s *SQLiteStore) UpsertInsiderTrades(ctx context.Context, trades []models.InsiderTrade) error {
	if len(trades) == 0 {
		return nil
	}
	start := time.Now()
	err := s.withTx(ctx, "upsert insider trades", func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
            INSERT OR REPLACE INTO insider_trades
                (ticker, transaction_date, trader_name, security_title, filing_date,
                 title, is_board_director, shares, price_per_share, value,
                 shares_before, shares_after)
            VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        `)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, t := range trades {
			if _, err := stmt.ExecContext(ctx,
				t.Ticker, t.TransactionDate, t.TraderName, t.SecurityTitle, t.FilingDate,
				t.Title, t.IsBoardDirector, t.Shares, t.PricePerShare, t.Value,
				t.SharesBefore, t.SharesAfter,
			); err != nil {
				return err
			}
		}
		return nil
	})
	s.logUpsert("insider_trades", len(trades), start, err)
	return err
}

// UpsertNews writes articles keyed by (ticker, url).
func (s *SQLiteStore) UpsertNews(ctx context.Context, items []models.NewsItem) error {
	if len(items) == 0 {
		return nil
	}
	start := time.Now()
	err := s.withTx(ctx, "upsert news", func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
            INSERT OR REPLACE INTO company_news
                (ticker, url, date, title, authors, source, source_domain,
                 category, sentiment_score, sentiment_label, summary, topics)
            VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        `)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, n := range items {
			if _, err := stmt.ExecContext(ctx,
				n.Ticker, n.URL, n.Date, n.Title, encodeStrings(n.Authors),
				n.Source, n.SourceDomain, n.Category,
				n.SentimentScore, n.SentimentLabel, n.Summary, encodeStrings(n.Topics),
			); err != nil {
				return err
			}
		}
		return nil
	})
	s.logUpsert("company_news", len(items), start, err)
	return err
}

func encodeStrings(ss []string) string {
	if len(ss) == 0 {
		return "[]"
	}
	b, err := json.Marshal(ss)
	if err != nil {
		return "[]"
	}
	return string(b)
}

func decodeStrings(s string) []string {
	if s == "" || s == "[]" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil
	}
	return out
}

func rangeClause(column string, rng *models.DateRange, args *[]any) string {
	if rng == nil {
		return ""
	}
	*args = append(*args, rng.Start, rng.End)
	return fmt.Sprintf(" AND %s >= ? AND %s <= ?", column, column)
}

// QueryPrices returns stored bars for a ticker ascending by time.
func (s *SQLiteStore) QueryPrices(ctx context.Context, ticker string, rng *models.DateRange) ([]models.PriceBar, error) {
	args := []any{ticker}
	q := `
        SELECT ticker, time, open, close, high, low, volume,
               adjusted_close, dividend_amount, split_coefficient
        FROM prices
        WHERE ticker = ?` + rangeClause("time", rng, &args) + `
        ORDER BY time ASC
    `
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, storageErr("query prices", err)
	}
	defer rows.Close()

	out := make([]models.PriceBar, 0, 256)
	for rows.Next() {
		var b models.PriceBar
		if err := rows.Scan(
			&b.Ticker, &b.Time, &b.Open, &b.Close, &b.High, &b.Low,
			&b.Volume, &b.AdjustedClose, &b.DividendAmount, &b.SplitCoefficient,
		); err != nil {
			return nil, storageErr("scan price", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("query prices rows", err)
	}
	return out, nil
}

// QueryStatements reassembles item rows into one StatementRow per fiscal
// period, ascending by period end.
func (s *SQLiteStore) QueryStatements(ctx context.Context, ticker string, st models.StatementType, pk models.PeriodKind, rng *models.DateRange) ([]models.StatementRow, error) {
	args := []any{ticker, string(st), string(pk)}
	q := `
        SELECT fiscal_period_end, reported_currency, item, value
        FROM statement_items
        WHERE ticker = ? AND statement_type = ? AND period_kind = ?` +
		rangeClause("fiscal_period_end", rng, &args) + `
        ORDER BY fiscal_period_end ASC, item ASC
    `
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, storageErr("query statements", err)
	}
	defer rows.Close()

	var out []models.StatementRow
	var cur *models.StatementRow
	raw := map[string]null.Float{}
	flush := func() {
		if cur == nil {
			return
		}
		cur.Items, cur.Extra = models.SplitItems(st, raw)
		out = append(out, *cur)
		cur, raw = nil, map[string]null.Float{}
	}
	for rows.Next() {
		var periodEnd, currency, item string
		var value null.Float
		if err := rows.Scan(&periodEnd, &currency, &item, &value); err != nil {
			return nil, storageErr("scan statement item", err)
		}
		if cur == nil || cur.FiscalPeriodEnd != periodEnd {
			flush()
			cur = &models.StatementRow{
				Ticker:           ticker,
				FiscalPeriodEnd:  periodEnd,
				StatementType:    st,
				PeriodKind:       pk,
				ReportedCurrency: currency,
			}
		}
		raw[item] = value
	}
	flush()
	if err := rows.Err(); err != nil {
		return nil, storageErr("query statements rows", err)
	}
	return out, nil
}

// QueryInsiderTrades returns stored trades ascending by transaction date.
func (s *SQLiteStore) QueryInsiderTrades(ctx context.Context, ticker string, rng *models.DateRange) ([]models.InsiderTrade, error) {
	args := []any{ticker}
	q := `
        SELECT ticker, transaction_date, trader_name, security_title, filing_date,
               title, is_board_director, shares, price_per_share, value,
               shares_before, shares_after
        FROM insider_trades
        WHERE ticker = ?` + rangeClause("transaction_date", rng, &args) + `
        ORDER BY transaction_date ASC, filing_date ASC, trader_name ASC
    `
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, storageErr("query insider trades", err)
	}
	defer rows.Close()

	var out []models.InsiderTrade
	for rows.Next() {
		var t models.InsiderTrade
		if err := rows.Scan(
			&t.Ticker, &t.TransactionDate, &t.TraderName, &t.SecurityTitle, &t.FilingDate,
			&t.Title, &t.IsBoardDirector, &t.Shares, &t.PricePerShare, &t.Value,
			&t.SharesBefore, &t.SharesAfter,
		); err != nil {
			return nil, storageErr("scan insider trade", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("query insider trades rows", err)
	}
	return out, nil
}

// QueryNews returns stored articles ascending by publication date.
func (s *SQLiteStore) QueryNews(ctx context.Context, ticker string, rng *models.DateRange) ([]models.NewsItem, error) {
	args := []any{ticker}
	q := `
        SELECT ticker, url, date, title, authors, source, source_domain,
               category, sentiment_score, sentiment_label, summary, topics
        FROM company_news
        WHERE ticker = ?` + rangeClause("date", rng, &args) + `
        ORDER BY date ASC, url ASC
    `
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, storageErr("query news", err)
	}
	defer rows.Close()

	var out []models.NewsItem
	for rows.Next() {
		var n models.NewsItem
		var authors, topics string
		if err := rows.Scan(
			&n.Ticker, &n.URL, &n.Date, &n.Title, &authors, &n.Source, &n.SourceDomain,
			&n.Category, &n.SentimentScore, &n.SentimentLabel, &n.Summary, &topics,
		); err != nil {
			return nil, storageErr("scan news", err)
		}
		n.Authors = decodeStrings(authors)
		n.Topics = decodeStrings(topics)
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("query news rows", err)
	}
	return out, nil
}

// CoveredDates returns the distinct stored dates of a dataset for gap
// detection, ascending, restricted to the requested range.
func (s *SQLiteStore) CoveredDates(ctx context.Context, key models.DatasetKey, ticker string, rng models.DateRange) ([]string, error) {
	var q string
	args := []any{ticker}
	switch key.Dataset {
	case models.DatasetPrices:
		q = `SELECT DISTINCT time FROM prices
             WHERE ticker = ? AND time >= ? AND time <= ? ORDER BY time ASC`
	case models.DatasetStatements:
		q = `SELECT DISTINCT fiscal_period_end FROM statement_items
             WHERE ticker = ? AND statement_type = ? AND period_kind = ?
               AND fiscal_period_end >= ? AND fiscal_period_end <= ?
             ORDER BY fiscal_period_end ASC`
		args = append(args, string(key.Statement), string(key.Period))
	case models.DatasetInsiderTrades:
		q = `SELECT DISTINCT transaction_date FROM insider_trades
             WHERE ticker = ? AND transaction_date >= ? AND transaction_date <= ?
             ORDER BY transaction_date ASC`
	case models.DatasetNews:
		q = `SELECT DISTINCT date FROM company_news
             WHERE ticker = ? AND date >= ? AND date <= ? ORDER BY date ASC`
	default:
		return nil, fmt.Errorf("unknown dataset %q", key.Dataset)
	}
	args = append(args, rng.Start, rng.End)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, storageErr("covered dates", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, storageErr("scan covered date", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("covered dates rows", err)
	}
	return out, nil
}

// CoveredRanges returns the provider-answered ranges recorded for a
// key, ascending by start date.
func (s *SQLiteStore) CoveredRanges(ctx context.Context, key models.DatasetKey, ticker string) ([]models.DateRange, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT start_date, end_date FROM coverage
        WHERE dataset = ? AND statement_type = ? AND period_kind = ? AND ticker = ?
        ORDER BY start_date ASC
    `, string(key.Dataset), string(key.Statement), string(key.Period), ticker)
	if err != nil {
		return nil, storageErr("covered ranges", err)
	}
	defer rows.Close()

	var out []models.DateRange
	for rows.Next() {
		var r models.DateRange
		if err := rows.Scan(&r.Start, &r.End); err != nil {
			return nil, storageErr("scan covered range", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("covered ranges rows", err)
	}
	return out, nil
}

// RecordCoveredRange persists one answered range. Overlapping or
// day-adjacent recorded ranges fuse into the new one so the table stays
// small and non-overlapping per key.
func (s *SQLiteStore) RecordCoveredRange(ctx context.Context, key models.DatasetKey, ticker string, rng models.DateRange) error {
	if err := rng.Validate(); err != nil {
		return err
	}
	return s.withTx(ctx, "record covered range", func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `
            SELECT start_date, end_date FROM coverage
            WHERE dataset = ? AND statement_type = ? AND period_kind = ? AND ticker = ?
        `, string(key.Dataset), string(key.Statement), string(key.Period), ticker)
		if err != nil {
			return err
		}
		merged := rng
		var stale []models.DateRange
		for rows.Next() {
			var r models.DateRange
			if err := rows.Scan(&r.Start, &r.End); err != nil {
				rows.Close()
				return err
			}
			if fused, ok := fuseDateRanges(merged, r); ok {
				merged = fused
				stale = append(stale, r)
			}
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return err
		}
		rows.Close()

		for _, r := range stale {
			if _, err := tx.ExecContext(ctx, `
                DELETE FROM coverage
                WHERE dataset = ? AND statement_type = ? AND period_kind = ?
                  AND ticker = ? AND start_date = ? AND end_date = ?
            `, string(key.Dataset), string(key.Statement), string(key.Period), ticker, r.Start, r.End); err != nil {
				return err
			}
		}
		_, err = tx.ExecContext(ctx, `
            INSERT OR REPLACE INTO coverage
                (dataset, statement_type, period_kind, ticker, start_date, end_date)
            VALUES (?, ?, ?, ?, ?, ?)
        `, string(key.Dataset), string(key.Statement), string(key.Period), ticker, merged.Start, merged.End)
		return err
	})
}

// fuseDateRanges unions two ranges when they overlap or touch at day
// granularity.
func fuseDateRanges(a, b models.DateRange) (models.DateRange, bool) {
	as, ae := a.Times()
	bs, be := b.Times()
	if bs.After(ae.AddDate(0, 0, 1)) || as.After(be.AddDate(0, 0, 1)) {
		return a, false
	}
	if bs.Before(as) {
		as = bs
	}
	if be.After(ae) {
		ae = be
	}
	return models.DateRange{Start: models.FormatDate(as), End: models.FormatDate(ae)}, true
}

// RawQuery runs read-only query text against the store and returns the
// result as a generic table. Anything other than a single SELECT or WITH
// statement is rejected before touching the database.
func (s *SQLiteStore) RawQuery(ctx context.Context, text string) (*models.Table, error) {
	if err := validateReadOnly(text); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, text)
	if err != nil {
		// The text passed the guard, so a failure here is the engine
		// rejecting the query itself, not storage being down.
		return nil, fmt.Errorf("%w: %v", domrepo.ErrInvalidQuery, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, storageErr("raw query columns", err)
	}
	table := models.NewTable(cols...)
	for rows.Next() {
		cells := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range cells {
			ptrs[i] = &cells[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, storageErr("raw query scan", err)
		}
		for i, v := range cells {
			if b, ok := v.([]byte); ok {
				cells[i] = string(b)
			}
		}
		table.Append(cells...)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("raw query rows", err)
	}
	return table, nil
}

func validateReadOnly(text string) error {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return fmt.Errorf("%w: empty query", domrepo.ErrInvalidQuery)
	}
	// One statement only. A single trailing semicolon is tolerated.
	body := strings.TrimSuffix(trimmed, ";")
	if strings.Contains(body, ";") {
		return fmt.Errorf("%w: multiple statements", domrepo.ErrInvalidQuery)
	}
	first := strings.ToUpper(strings.Fields(body)[0])
	if first != "SELECT" && first != "WITH" {
		return fmt.Errorf("%w: only SELECT queries are allowed", domrepo.ErrInvalidQuery)
	}
	return nil
}

var summaryTables = []struct{ name, dateColumn string }{
	{"prices", "time"},
	{"statement_items", "fiscal_period_end"},
	{"insider_trades", "transaction_date"},
	{"company_news", "date"},
}

// Summary reports per-table row counts and distinct ticker counts.
func (s *SQLiteStore) Summary(ctx context.Context) (*models.Table, error) {
	table := models.NewTable("table", "rows", "tickers", "min_date", "max_date")
	for _, t := range summaryTables {
		q := fmt.Sprintf(`
            SELECT COUNT(*), COUNT(DISTINCT ticker),
                   COALESCE(MIN(%s), ''), COALESCE(MAX(%s), '')
            FROM %s
        `, t.dateColumn, t.dateColumn, t.name)
		var count, tickers int64
		var minDate, maxDate string
		if err := s.db.QueryRowContext(ctx, q).Scan(&count, &tickers, &minDate, &maxDate); err != nil {
			return nil, storageErr("summary", err)
		}
		table.Append(t.name, count, tickers, minDate, maxDate)
	}
	return table, nil
}

// TickerStats reports per-table row counts and date bounds for one ticker.
func (s *SQLiteStore) TickerStats(ctx context.Context, ticker string) (*models.Table, error) {
	table := models.NewTable("table", "rows", "min_date", "max_date")
	for _, t := range summaryTables {
		q := fmt.Sprintf(`
            SELECT COUNT(*), COALESCE(MIN(%s), ''), COALESCE(MAX(%s), '')
            FROM %s WHERE ticker = ?
        `, t.dateColumn, t.dateColumn, t.name)
		var count int64
		var minDate, maxDate string
		if err := s.db.QueryRowContext(ctx, q, ticker).Scan(&count, &minDate, &maxDate); err != nil {
			return nil, storageErr("ticker stats", err)
		}
		table.Append(t.name, count, minDate, maxDate)
	}
	return table, nil
}
