package alphavantage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"FinVault/internal/domain/models"
	domrepo "FinVault/internal/domain/repository"
	"FinVault/internal/service/ratelimit"
	xhttp "FinVault/pkg/http"
	applogger "FinVault/pkg/logger"
)

const defaultBaseURL = "https://www.alphavantage.co/query"

// Client implements the Provider boundary against the Alpha Vantage
// HTTP API. One shared token bucket paces all requests under the
// account's per-minute quota.
type Client struct {
	apiKey  string
	baseURL string
	http    *xhttp.Client
	limiter *ratelimit.Limiter
	rpm     float64
	l       *applogger.Logger
}

// Option configures the client.
type Option func(*Client)

// WithBaseURL overrides the API endpoint, mainly for tests.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithTimeout sets the HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http = xhttp.NewClient(xhttp.WithTimeout(d)) }
}

// WithRequestsPerMin sets the request pacing budget.
func WithRequestsPerMin(rpm float64) Option {
	return func(c *Client) {
		if rpm > 0 {
			c.rpm = rpm
		}
	}
}

// WithLogger attaches a structured logger.
func WithLogger(l *applogger.Logger) Option {
	return func(c *Client) { c.l = l }
}

func New(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http:    xhttp.NewClient(xhttp.WithTimeout(30 * time.Second)),
		limiter: ratelimit.New(),
		rpm:     75,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// envelope carries the API's out-of-band fields: throttling notes and
// error messages arrive as 200 responses with these keys set.
type envelope struct {
	Note         string `json:"Note"`
	Information  string `json:"Information"`
	ErrorMessage string `json:"Error Message"`
}

func (c *Client) query(ctx context.Context, function string, params map[string]string, dest any) error {
	if err := c.limiter.Wait(ctx, "alphavantage", c.rpm, c.rpm/60); err != nil {
		return err
	}

	qp := map[string][]string{
		"function": {function},
		"apikey":   {c.apiKey},
	}
	for k, v := range params {
		qp[k] = []string{v}
	}

	var body []byte
	err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:      xhttp.MethodGet,
		URL:         c.baseURL,
		QueryParams: qp,
	}, &body)
	if err != nil {
		return fmt.Errorf("%w: %v", domrepo.ErrProviderTransient, err)
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("decode %s response: %w", function, err)
	}
	if env.Note != "" || env.Information != "" {
		// Throttled: the quota refills, so callers may retry later.
		if c.l != nil {
			c.l.Warn("provider throttled", applogger.String("function", function))
		}
		return fmt.Errorf("%w: rate limited", domrepo.ErrProviderTransient)
	}
	if env.ErrorMessage != "" {
		return fmt.Errorf("provider rejected %s: %s", function, env.ErrorMessage)
	}

	if err := json.Unmarshal(body, dest); err != nil {
		return fmt.Errorf("decode %s payload: %w", function, err)
	}
	return nil
}

// FetchPrices retrieves the daily adjusted series and keeps the bars
// inside the requested range. An unknown ticker yields an empty series.
func (c *Client) FetchPrices(ctx context.Context, ticker string, rng models.DateRange) ([]models.PriceBar, error) {
	var payload dailySeriesPayload
	err := c.query(ctx, "TIME_SERIES_DAILY_ADJUSTED", map[string]string{
		"symbol":     ticker,
		"outputsize": "full",
	}, &payload)
	if err != nil {
		return nil, err
	}
	return parseDailySeries(ticker, payload, rng), nil
}

// FetchStatements retrieves one statement report set and keeps periods
// ending inside the requested range.
func (c *Client) FetchStatements(ctx context.Context, ticker string, st models.StatementType, pk models.PeriodKind, rng models.DateRange) ([]models.StatementRow, error) {
	function, ok := statementFunctions[st]
	if !ok {
		return nil, fmt.Errorf("unknown statement type %q", st)
	}
	var payload statementPayload
	if err := c.query(ctx, function, map[string]string{"symbol": ticker}, &payload); err != nil {
		return nil, err
	}
	reports := payload.AnnualReports
	if pk == models.PeriodQuarterly {
		reports = payload.QuarterlyReports
	}
	return parseStatements(ticker, st, pk, reports, rng), nil
}

// FetchInsiderTrades retrieves insider transactions inside the range.
func (c *Client) FetchInsiderTrades(ctx context.Context, ticker string, rng models.DateRange) ([]models.InsiderTrade, error) {
	var payload insiderPayload
	if err := c.query(ctx, "INSIDER_TRANSACTIONS", map[string]string{"symbol": ticker}, &payload); err != nil {
		return nil, err
	}
	return parseInsiderTrades(ticker, payload.Data, rng), nil
}

// FetchNews retrieves sentiment-scored articles inside the range. The
// API takes compact timestamps; 00:00 and 23:59 bound the days fully.
func (c *Client) FetchNews(ctx context.Context, ticker string, rng models.DateRange) ([]models.NewsItem, error) {
	var payload newsPayload
	err := c.query(ctx, "NEWS_SENTIMENT", map[string]string{
		"tickers":   ticker,
		"time_from": compactDay(rng.Start) + "T0000",
		"time_to":   compactDay(rng.End) + "T2359",
		"sort":      "EARLIEST",
		"limit":     "1000",
	}, &payload)
	if err != nil {
		return nil, err
	}
	return parseNews(ticker, payload.Feed, rng), nil
}

var statementFunctions = map[models.StatementType]string{
	models.StatementIncome:   "INCOME_STATEMENT",
	models.StatementBalance:  "BALANCE_SHEET",
	models.StatementCashFlow: "CASH_FLOW",
}
