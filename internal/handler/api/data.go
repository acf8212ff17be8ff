package api

import (
	"errors"
	"fmt"

	"FinVault/internal/domain/models"
	domrepo "FinVault/internal/domain/repository"
	"FinVault/internal/usecase"
	xhttp "FinVault/pkg/http"
	xlogger "FinVault/pkg/logger"

	"github.com/labstack/echo/v4"
	"golang.org/x/sync/errgroup"
)

// fetchConcurrency bounds parallel ticker warms per request.
const fetchConcurrency = 4

// DataHandler exposes the coordinator and analytics over HTTP.
type DataHandler struct {
	logger    *xlogger.Logger
	coord     *usecase.Coordinator
	analytics *usecase.Analytics
	store     domrepo.Store
}

func NewDataHandler(logger *xlogger.Logger, coord *usecase.Coordinator, analytics *usecase.Analytics, store domrepo.Store) *DataHandler {
	return &DataHandler{logger: logger, coord: coord, analytics: analytics, store: store}
}

func (h *DataHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", h.Health)

	g := e.Group("/api")
	g.POST("/fetch", h.Fetch)
	g.GET("/prices", h.Prices)
	g.GET("/statements", h.Statements)
	g.GET("/insiders", h.Insiders)
	g.GET("/news", h.News)
	g.PUT("/rows", h.PutRows)
	g.POST("/query", h.Query)
	g.GET("/summary", h.Summary)
	g.GET("/tickers/:ticker/stats", h.TickerStats)
	g.DELETE("/cache/:ticker", h.InvalidateCache)

	a := g.Group("/analytics")
	a.GET("/series", h.Series)
	a.GET("/pivot", h.Pivot)
	a.GET("/growth", h.Growth)
	a.GET("/correlation", h.Correlation)
	a.GET("/ratios", h.Ratios)
	a.GET("/sentiment", h.Sentiment)
	a.GET("/insider-summary", h.InsiderSummary)
}

// rangeData is the envelope for coordinator reads: rows plus the
// sub-ranges that could not be filled, empty on a complete answer.
type rangeData struct {
	Rows any                `json:"rows"`
	Gaps []models.DateRange `json:"gaps,omitempty"`
}

// respondRows writes a coordinator result, downgrading a gap-only error
// to a partial 200 response.
func (h *DataHandler) respondRows(c echo.Context, rows any, err error) error {
	if err == nil {
		return xhttp.SuccessResponse(c, rangeData{Rows: rows})
	}
	var ge *usecase.GapError
	if errors.As(err, &ge) {
		h.logger.Warn("serving partial data", xlogger.Int("gaps", len(ge.Gaps)), xlogger.Error(err))
		return xhttp.SuccessResponse(c, rangeData{Rows: rows, Gaps: ge.Gaps})
	}
	return h.respondErr(c, err)
}

func (h *DataHandler) respondErr(c echo.Context, err error) error {
	h.logger.Error("request failed", xlogger.Error(err))
	switch {
	case errors.Is(err, domrepo.ErrInvalidQuery):
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError(err.Error()))
	case errors.Is(err, domrepo.ErrStorageUnavailable):
		return xhttp.AppErrorResponse(c, xhttp.UnavailableError("storage unavailable"))
	case errors.Is(err, domrepo.ErrProviderTransient):
		return xhttp.AppErrorResponse(c, xhttp.UpstreamError("data provider unavailable"))
	case errors.Is(err, usecase.ErrInsufficientData):
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError(err.Error()))
	default:
		return xhttp.AppErrorResponse(c, xhttp.InternalError("internal error").WithError(err))
	}
}

func (h *DataHandler) Health(c echo.Context) error {
	if err := h.store.Health(c.Request().Context()); err != nil {
		return xhttp.AppErrorResponse(c, xhttp.UnavailableError("storage unavailable"))
	}
	return xhttp.SuccessResponse(c, map[string]string{"status": "ok"})
}

// Fetch warms every dataset for the requested tickers, a bounded number
// in flight at a time.
func (h *DataHandler) Fetch(c echo.Context) error {
	req := &models.FetchRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	rng := models.DateRange{Start: req.Start, End: req.End}
	if err := rng.Validate(); err != nil {
		return xhttp.BadRequestResponse(c, err.Error())
	}

	g, ctx := errgroup.WithContext(c.Request().Context())
	g.SetLimit(fetchConcurrency)
	results := make([]string, len(req.Tickers))
	for i, ticker := range req.Tickers {
		g.Go(func() error {
			if err := h.coord.Fetch(ctx, ticker, rng); err != nil {
				results[i] = fmt.Sprintf("%s: %v", ticker, err)
				return nil
			}
			results[i] = ticker + ": ok"
			return nil
		})
	}
	_ = g.Wait()
	return xhttp.SuccessResponse(c, map[string]any{"results": results})
}

func (h *DataHandler) Prices(c echo.Context) error {
	req := &models.RangeRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	rows, err := h.coord.GetPrices(c.Request().Context(), req.Ticker, req.Range())
	return h.respondRows(c, rows, err)
}

func (h *DataHandler) Statements(c echo.Context) error {
	req := &models.StatementsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	rows, err := h.coord.GetStatements(c.Request().Context(), req.Ticker,
		models.StatementType(req.Statement), models.PeriodKind(req.Period), req.Range())
	return h.respondRows(c, rows, err)
}

func (h *DataHandler) Insiders(c echo.Context) error {
	req := &models.RangeRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	rows, err := h.coord.GetInsiderTrades(c.Request().Context(), req.Ticker, req.Range())
	return h.respondRows(c, rows, err)
}

func (h *DataHandler) News(c echo.Context) error {
	req := &models.RangeRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	rows, err := h.coord.GetNews(c.Request().Context(), req.Ticker, req.Range())
	return h.respondRows(c, rows, err)
}

// PutRows writes caller-supplied rows through the coordinator so the
// cache stays consistent with the store.
func (h *DataHandler) PutRows(c echo.Context) error {
	req := &models.RowsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	ctx := c.Request().Context()
	counts := map[string]int{}
	if len(req.Prices) > 0 {
		if err := h.coord.PutPrices(ctx, req.Prices); err != nil {
			return h.respondErr(c, err)
		}
		counts["prices"] = len(req.Prices)
	}
	if len(req.Statements) > 0 {
		if err := h.coord.PutStatements(ctx, req.Statements); err != nil {
			return h.respondErr(c, err)
		}
		counts["statements"] = len(req.Statements)
	}
	if len(req.InsiderTrades) > 0 {
		if err := h.coord.PutInsiderTrades(ctx, req.InsiderTrades); err != nil {
			return h.respondErr(c, err)
		}
		counts["insider_trades"] = len(req.InsiderTrades)
	}
	if len(req.News) > 0 {
		if err := h.coord.PutNews(ctx, req.News); err != nil {
			return h.respondErr(c, err)
		}
		counts["news"] = len(req.News)
	}
	return xhttp.SuccessResponse(c, map[string]any{"upserted": counts})
}

func (h *DataHandler) Query(c echo.Context) error {
	req := &models.QueryRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	table, err := h.analytics.CustomQuery(c.Request().Context(), req.Query)
	if err != nil {
		return h.respondErr(c, err)
	}
	return xhttp.SuccessResponse(c, table)
}

func (h *DataHandler) Summary(c echo.Context) error {
	table, err := h.store.Summary(c.Request().Context())
	if err != nil {
		return h.respondErr(c, err)
	}
	return xhttp.SuccessResponse(c, table)
}

func (h *DataHandler) TickerStats(c echo.Context) error {
	ticker := c.Param("ticker")
	if ticker == "" {
		return xhttp.BadRequestResponse(c, "ticker required")
	}
	table, err := h.store.TickerStats(c.Request().Context(), ticker)
	if err != nil {
		return h.respondErr(c, err)
	}
	return xhttp.SuccessResponse(c, table)
}

// InvalidateCache drops a ticker's cache entries; durable rows stay.
func (h *DataHandler) InvalidateCache(c echo.Context) error {
	ticker := c.Param("ticker")
	if ticker == "" {
		return xhttp.BadRequestResponse(c, "ticker required")
	}
	if err := h.coord.Invalidate(c.Request().Context(), ticker); err != nil {
		return h.respondErr(c, err)
	}
	return xhttp.NoContentResponse(c)
}

func (h *DataHandler) Series(c echo.Context) error {
	req := &models.RangeRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	table, err := h.analytics.PricesToSeries(c.Request().Context(), req.Ticker, req.Range())
	if err != nil {
		return h.respondErr(c, err)
	}
	return xhttp.SuccessResponse(c, table)
}

func (h *DataHandler) Pivot(c echo.Context) error {
	req := &models.GrowthRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	table, err := h.analytics.PivotLineItems(c.Request().Context(), req.Ticker,
		models.StatementType(req.Statement), models.PeriodKind(req.Period), req.Range(), req.Items)
	if err != nil {
		return h.respondErr(c, err)
	}
	return xhttp.SuccessResponse(c, table)
}

func (h *DataHandler) Growth(c echo.Context) error {
	req := &models.GrowthRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	table, err := h.analytics.GrowthMetrics(c.Request().Context(), req.Ticker,
		models.StatementType(req.Statement), models.PeriodKind(req.Period), req.Range(), req.Items)
	if err != nil {
		return h.respondErr(c, err)
	}
	return xhttp.SuccessResponse(c, table)
}

func (h *DataHandler) Correlation(c echo.Context) error {
	req := &models.TickersRangeRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	table, err := h.analytics.CorrelationMatrix(c.Request().Context(), req.Tickers, req.Range())
	if err != nil {
		return h.respondErr(c, err)
	}
	return xhttp.SuccessResponse(c, table)
}

func (h *DataHandler) Ratios(c echo.Context) error {
	req := &models.RatiosRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	table, err := h.analytics.RatioComparison(c.Request().Context(), req.Tickers,
		models.PeriodKind(req.Period), models.DateRange{Start: req.Start, End: req.End})
	if err != nil {
		return h.respondErr(c, err)
	}
	return xhttp.SuccessResponse(c, table)
}

func (h *DataHandler) Sentiment(c echo.Context) error {
	req := &models.SentimentRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	bucket, err := usecase.ParseSentimentBucket(req.Bucket)
	if err != nil {
		return xhttp.BadRequestResponse(c, err.Error())
	}
	table, err := h.analytics.SentimentTrend(c.Request().Context(), req.Ticker, req.Range(), bucket)
	if err != nil {
		return h.respondErr(c, err)
	}
	return xhttp.SuccessResponse(c, table)
}

func (h *DataHandler) InsiderSummary(c echo.Context) error {
	req := &models.RangeRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	table, err := h.analytics.InsiderSummary(c.Request().Context(), req.Ticker, req.Range())
	if err != nil {
		return h.respondErr(c, err)
	}
	return xhttp.SuccessResponse(c, table)
}
