package alphavantage

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"

	"FinVault/internal/domain/models"
	"FinVault/pkg/util"

	"github.com/guregu/null/v6"
)

type dailySeriesPayload struct {
	TimeSeries map[string]map[string]string `json:"Time Series (Daily)"`
}

type statementPayload struct {
	AnnualReports    []map[string]string `json:"annualReports"`
	QuarterlyReports []map[string]string `json:"quarterlyReports"`
}

type insiderPayload struct {
	Data []insiderTx `json:"data"`
}

type insiderTx struct {
	TransactionDate       string `json:"transaction_date"`
	FilingDate            string `json:"filing_date"`
	Executive             string `json:"executive"`
	ExecutiveTitle        string `json:"executive_title"`
	SecurityType          string `json:"security_type"`
	AcquisitionOrDisposal string `json:"acquisition_or_disposal"`
	Shares                string `json:"shares"`
	SharePrice            string `json:"share_price"`
}

type newsPayload struct {
	Feed []newsArticle `json:"feed"`
}

type newsArticle struct {
	Title                 string      `json:"title"`
	URL                   string      `json:"url"`
	TimePublished         string      `json:"time_published"`
	Authors               []string    `json:"authors"`
	Summary               string      `json:"summary"`
	Source                string      `json:"source"`
	CategoryWithinSource  string      `json:"category_within_source"`
	SourceDomain          string      `json:"source_domain"`
	OverallSentimentScore json.Number `json:"overall_sentiment_score"`
	OverallSentimentLabel string      `json:"overall_sentiment_label"`
	Topics                []newsTopic `json:"topics"`
}

type newsTopic struct {
	Topic string `json:"topic"`
}

// avNumber parses the API's stringly-typed numerics. "None", "-" and
// the empty string all mean the value was not reported.
func avNumber(s string) null.Float {
	s = strings.TrimSpace(s)
	if s == "" || s == "None" || s == "-" {
		return null.Float{}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return null.Float{}
	}
	return null.FloatFrom(f)
}

func avInt(s string) null.Int {
	f := avNumber(s)
	if !f.Valid {
		return null.Int{}
	}
	return null.IntFrom(int64(f.Float64))
}

func compactDay(date string) string {
	return strings.ReplaceAll(date, "-", "")
}

func parseDailySeries(ticker string, payload dailySeriesPayload, rng models.DateRange) []models.PriceBar {
	out := make([]models.PriceBar, 0, len(payload.TimeSeries))
	for day, fields := range payload.TimeSeries {
		if !rng.Contains(day) {
			continue
		}
		out = append(out, models.PriceBar{
			Ticker:           ticker,
			Time:             day,
			Open:             avNumber(fields["1. open"]),
			High:             avNumber(fields["2. high"]),
			Low:              avNumber(fields["3. low"]),
			Close:            avNumber(fields["4. close"]),
			AdjustedClose:    avNumber(fields["5. adjusted close"]),
			Volume:           avInt(fields["6. volume"]),
			DividendAmount:   avNumber(fields["7. dividend amount"]),
			SplitCoefficient: avNumber(fields["8. split coefficient"]),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Time < out[j].Time })
	return out
}

func parseStatements(ticker string, st models.StatementType, pk models.PeriodKind, reports []map[string]string, rng models.DateRange) []models.StatementRow {
	out := make([]models.StatementRow, 0, len(reports))
	for _, report := range reports {
		periodEnd := report["fiscalDateEnding"]
		if periodEnd == "" || !rng.Contains(periodEnd) {
			continue
		}
		raw := make(map[string]null.Float, len(report))
		for name, value := range report {
			if name == "fiscalDateEnding" || name == "reportedCurrency" {
				continue
			}
			raw[name] = avNumber(value)
		}
		items, extra := models.SplitItems(st, raw)
		out = append(out, models.StatementRow{
			Ticker:           ticker,
			FiscalPeriodEnd:  periodEnd,
			StatementType:    st,
			PeriodKind:       pk,
			ReportedCurrency: report["reportedCurrency"],
			Items:            items,
			Extra:            extra,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FiscalPeriodEnd < out[j].FiscalPeriodEnd })
	return out
}

func parseInsiderTrades(ticker string, txs []insiderTx, rng models.DateRange) []models.InsiderTrade {
	out := make([]models.InsiderTrade, 0, len(txs))
	for _, tx := range txs {
		if tx.TransactionDate == "" || !rng.Contains(tx.TransactionDate) {
			continue
		}
		filingDate := tx.FilingDate
		if filingDate == "" {
			filingDate = tx.TransactionDate
		}
		shares := avNumber(tx.Shares)
		price := avNumber(tx.SharePrice)
		// Disposals count negative so aggregates net out naturally.
		if tx.AcquisitionOrDisposal == "D" && shares.Valid {
			shares = null.FloatFrom(-shares.Float64)
		}
		var value null.Float
		if shares.Valid && price.Valid {
			value = null.FloatFrom(shares.Float64 * price.Float64)
		}
		out = append(out, models.InsiderTrade{
			Ticker:          ticker,
			TransactionDate: tx.TransactionDate,
			TraderName:      tx.Executive,
			SecurityTitle:   tx.SecurityType,
			FilingDate:      filingDate,
			Title:           tx.ExecutiveTitle,
			IsBoardDirector: boardDirector(tx.ExecutiveTitle),
			Shares:          shares,
			PricePerShare:   price,
			Value:           value,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TransactionDate != out[j].TransactionDate {
			return out[i].TransactionDate < out[j].TransactionDate
		}
		return out[i].TraderName < out[j].TraderName
	})
	return out
}

func boardDirector(title string) null.Bool {
	if title == "" {
		return null.Bool{}
	}
	return null.BoolFrom(strings.Contains(strings.ToLower(title), "director"))
}

func parseNews(ticker string, feed []newsArticle, rng models.DateRange) []models.NewsItem {
	out := make([]models.NewsItem, 0, len(feed))
	for _, a := range feed {
		if a.URL == "" {
			continue
		}
		day := util.CompactDate(a.TimePublished)
		if day == "" || !rng.Contains(day) {
			continue
		}
		var score null.Float
		if s := a.OverallSentimentScore.String(); s != "" {
			score = avNumber(s)
		}
		topics := make([]string, 0, len(a.Topics))
		for _, t := range a.Topics {
			if t.Topic != "" {
				topics = append(topics, t.Topic)
			}
		}
		out = append(out, models.NewsItem{
			Ticker:         ticker,
			URL:            a.URL,
			Date:           day,
			Title:          a.Title,
			Authors:        a.Authors,
			Source:         a.Source,
			SourceDomain:   a.SourceDomain,
			Category:       a.CategoryWithinSource,
			SentimentScore: score,
			SentimentLabel: a.OverallSentimentLabel,
			Summary:        a.Summary,
			Topics:         topics,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].URL < out[j].URL
	})
	return out
}
