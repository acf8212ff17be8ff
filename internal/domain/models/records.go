package models

import "github.com/guregu/null/v6"

// PriceBar is one daily bar for a ticker. Natural key: (Ticker, Time).
// Numeric fields the provider did not report stay invalid (SQL NULL,
// JSON null) rather than zero.
type PriceBar struct {
	Ticker           string     `json:"ticker"`
	Time             string     `json:"time"` // YYYY-MM-DD
	Open             null.Float `json:"open"`
	Close            null.Float `json:"close"`
	High             null.Float `json:"high"`
	Low              null.Float `json:"low"`
	Volume           null.Int   `json:"volume"`
	AdjustedClose    null.Float `json:"adjusted_close"`
	DividendAmount   null.Float `json:"dividend_amount"`
	SplitCoefficient null.Float `json:"split_coefficient"`
}

// StatementRow is one reported statement for one fiscal period.
// Natural key: (Ticker, FiscalPeriodEnd, StatementType, PeriodKind).
// Items holds line items recognized for the statement type; anything
// the provider reports outside the known shape lands in Extra.
type StatementRow struct {
	Ticker           string                `json:"ticker"`
	FiscalPeriodEnd  string                `json:"fiscal_period_end"` // YYYY-MM-DD
	StatementType    StatementType         `json:"statement_type"`
	PeriodKind       PeriodKind            `json:"period_kind"`
	ReportedCurrency string                `json:"reported_currency"`
	Items            map[string]null.Float `json:"items"`
	Extra            map[string]null.Float `json:"extra,omitempty"`
}

// Item returns the named line item, recognized or extra. The second
// result is false when the period carries no entry for the name at all.
func (s StatementRow) Item(name string) (null.Float, bool) {
	if v, ok := s.Items[name]; ok {
		return v, true
	}
	v, ok := s.Extra[name]
	return v, ok
}

// InsiderTrade is one reported insider transaction. The composite key
// (Ticker, TransactionDate, TraderName, SecurityTitle, FilingDate)
// approximates uniqueness; upstream provides no true natural id.
type InsiderTrade struct {
	Ticker          string     `json:"ticker"`
	TransactionDate string     `json:"transaction_date"` // YYYY-MM-DD
	TraderName      string     `json:"trader_name"`
	SecurityTitle   string     `json:"security_title"`
	FilingDate      string     `json:"filing_date"` // YYYY-MM-DD
	Title           string     `json:"title"`
	IsBoardDirector null.Bool  `json:"is_board_director"`
	Shares          null.Float `json:"shares"`
	PricePerShare   null.Float `json:"price_per_share"`
	Value           null.Float `json:"value"`
	SharesBefore    null.Float `json:"shares_before"`
	SharesAfter     null.Float `json:"shares_after"`
}

// NewsItem is one news article about a ticker. Natural key:
// (Ticker, URL) — dates and titles repeat across syndicated articles.
type NewsItem struct {
	Ticker         string     `json:"ticker"`
	URL            string     `json:"url"`
	Date           string     `json:"date"` // YYYY-MM-DD
	Title          string     `json:"title"`
	Authors        []string   `json:"authors"`
	Source         string     `json:"source"`
	SourceDomain   string     `json:"source_domain"`
	Category       string     `json:"category"`
	SentimentScore null.Float `json:"sentiment_score"`
	SentimentLabel string     `json:"sentiment_label"`
	Summary        string     `json:"summary"`
	Topics         []string   `json:"topics"`
}
