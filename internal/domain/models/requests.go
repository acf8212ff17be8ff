package models

// Request DTOs bound from HTTP queries and bodies. Validation tags are
// enforced before any coordinator work happens.

type RangeRequest struct {
	Ticker string `query:"ticker" json:"ticker" validate:"required"`
	Start  string `query:"start" json:"start" validate:"required,datetime=2006-01-02"`
	End    string `query:"end" json:"end" validate:"required,datetime=2006-01-02"`
}

func (r RangeRequest) Range() DateRange {
	return DateRange{Start: r.Start, End: r.End}
}

type StatementsRequest struct {
	RangeRequest
	Statement string `query:"statement" json:"statement" default:"income" validate:"oneof=income balance cash_flow"`
	Period    string `query:"period" json:"period" default:"annual" validate:"oneof=annual quarterly"`
}

type FetchRequest struct {
	Tickers []string `json:"tickers" validate:"required,min=1,dive,required"`
	Start   string   `json:"start" validate:"required,datetime=2006-01-02"`
	End     string   `json:"end" validate:"required,datetime=2006-01-02"`
}

// RowsRequest carries caller-supplied rows for direct insertion. Any
// subset of the datasets may be present.
type RowsRequest struct {
	Prices        []PriceBar     `json:"prices"`
	Statements    []StatementRow `json:"statements"`
	InsiderTrades []InsiderTrade `json:"insider_trades"`
	News          []NewsItem     `json:"news"`
}

type QueryRequest struct {
	Query string `json:"query" validate:"required"`
}

type GrowthRequest struct {
	StatementsRequest
	Items []string `query:"items" json:"items"`
}

type TickersRangeRequest struct {
	Tickers []string `query:"tickers" json:"tickers" validate:"required,min=2,dive,required"`
	Start   string   `query:"start" json:"start" validate:"required,datetime=2006-01-02"`
	End     string   `query:"end" json:"end" validate:"required,datetime=2006-01-02"`
}

func (r TickersRangeRequest) Range() DateRange {
	return DateRange{Start: r.Start, End: r.End}
}

type RatiosRequest struct {
	Tickers []string `query:"tickers" json:"tickers" validate:"required,min=1,dive,required"`
	Period  string   `query:"period" json:"period" default:"annual" validate:"oneof=annual quarterly"`
	Start   string   `query:"start" json:"start" validate:"required,datetime=2006-01-02"`
	End     string   `query:"end" json:"end" validate:"required,datetime=2006-01-02"`
}

type SentimentRequest struct {
	RangeRequest
	Bucket string `query:"bucket" json:"bucket" default:"day" validate:"oneof=day week month"`
}
