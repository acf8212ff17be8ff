package repository

// Schema statements are idempotent; InitSchema replays them on every
// startup. UNIQUE indexes carry the natural key of each dataset so that
// INSERT OR REPLACE gives row-granularity last-write-wins.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS prices (
        ticker            TEXT NOT NULL,
        time              TEXT NOT NULL,
        open              REAL,
        close             REAL,
        high              REAL,
        low               REAL,
        volume            INTEGER,
        adjusted_close    REAL,
        dividend_amount   REAL,
        split_coefficient REAL,
        UNIQUE (ticker, time)
    )`,
	`CREATE INDEX IF NOT EXISTS idx_prices_ticker_time ON prices (ticker, time)`,

	`CREATE TABLE IF NOT EXISTS statement_items (
        ticker            TEXT NOT NULL,
        fiscal_period_end TEXT NOT NULL,
        statement_type    TEXT NOT NULL,
        period_kind       TEXT NOT NULL,
        reported_currency TEXT NOT NULL DEFAULT '',
        item              TEXT NOT NULL,
        value             REAL,
        UNIQUE (ticker, fiscal_period_end, statement_type, period_kind, item)
    )`,
	`CREATE INDEX IF NOT EXISTS idx_statement_items_lookup
        ON statement_items (ticker, statement_type, period_kind, fiscal_period_end)`,

	`CREATE TABLE IF NOT EXISTS insider_trades (
        ticker            TEXT NOT NULL,
        transaction_date  TEXT NOT NULL,
        trader_name       TEXT NOT NULL,
        security_title    TEXT NOT NULL,
        filing_date       TEXT NOT NULL,
        title             TEXT NOT NULL DEFAULT '',
        is_board_director INTEGER,
        shares            REAL,
        price_per_share   REAL,
        value             REAL,
        shares_before     REAL,
        shares_after      REAL,
        UNIQUE (ticker, transaction_date, trader_name, security_title, filing_date)
    )`,
	`CREATE INDEX IF NOT EXISTS idx_insider_trades_ticker_date
        ON insider_trades (ticker, transaction_date)`,

	`CREATE TABLE IF NOT EXISTS company_news (
        ticker          TEXT NOT NULL,
        url             TEXT NOT NULL,
        date            TEXT NOT NULL,
        title           TEXT NOT NULL DEFAULT '',
        authors         TEXT NOT NULL DEFAULT '[]',
        source          TEXT NOT NULL DEFAULT '',
        source_domain   TEXT NOT NULL DEFAULT '',
        category        TEXT NOT NULL DEFAULT '',
        sentiment_score REAL,
        sentiment_label TEXT NOT NULL DEFAULT '',
        summary         TEXT NOT NULL DEFAULT '',
        topics          TEXT NOT NULL DEFAULT '[]',
        UNIQUE (ticker, url)
    )`,
	`CREATE INDEX IF NOT EXISTS idx_company_news_ticker_date
        ON company_news (ticker, date)`,

	`CREATE TABLE IF NOT EXISTS coverage (
        dataset        TEXT NOT NULL,
        statement_type TEXT NOT NULL DEFAULT '',
        period_kind    TEXT NOT NULL DEFAULT '',
        ticker         TEXT NOT NULL,
        start_date     TEXT NOT NULL,
        end_date       TEXT NOT NULL,
        UNIQUE (dataset, statement_type, period_kind, ticker, start_date, end_date)
    )`,
	`CREATE INDEX IF NOT EXISTS idx_coverage_key
        ON coverage (dataset, statement_type, period_kind, ticker)`,
}

// SchemaStatements exposes the DDL for schema initialization at startup.
func SchemaStatements() []string {
	return schemaStatements
}
