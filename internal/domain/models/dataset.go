package models

import (
	"fmt"
	"time"
)

// Dataset identifies one of the persisted record families.
type Dataset string

const (
	DatasetPrices        Dataset = "prices"
	DatasetStatements    Dataset = "statements"
	DatasetInsiderTrades Dataset = "insider_trades"
	DatasetNews          Dataset = "news"
)

// ParseDataset validates a dataset name.
func ParseDataset(s string) (Dataset, error) {
	switch Dataset(s) {
	case DatasetPrices, DatasetStatements, DatasetInsiderTrades, DatasetNews:
		return Dataset(s), nil
	}
	return "", fmt.Errorf("unknown dataset %q", s)
}

// StatementType selects one of the three financial statements.
type StatementType string

const (
	StatementIncome   StatementType = "income"
	StatementBalance  StatementType = "balance"
	StatementCashFlow StatementType = "cash_flow"
)

func ParseStatementType(s string) (StatementType, error) {
	switch StatementType(s) {
	case StatementIncome, StatementBalance, StatementCashFlow:
		return StatementType(s), nil
	}
	return "", fmt.Errorf("unknown statement type %q", s)
}

// PeriodKind selects annual or quarterly reporting periods.
type PeriodKind string

const (
	PeriodAnnual    PeriodKind = "annual"
	PeriodQuarterly PeriodKind = "quarterly"
)

func ParsePeriodKind(s string) (PeriodKind, error) {
	switch PeriodKind(s) {
	case PeriodAnnual, PeriodQuarterly:
		return PeriodKind(s), nil
	}
	return "", fmt.Errorf("unknown period kind %q", s)
}

// Step is the expected spacing between consecutive records of the period
// kind; two stored records further apart than this bound a gap.
func (pk PeriodKind) Step() time.Duration {
	if pk == PeriodAnnual {
		return 370 * 24 * time.Hour
	}
	return 100 * 24 * time.Hour
}

const dateLayout = "2006-01-02"

// DateRange is an inclusive [Start, End] range of YYYY-MM-DD dates.
type DateRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Validate checks date formats and ordering. Performed before any I/O.
func (r DateRange) Validate() error {
	start, err := time.Parse(dateLayout, r.Start)
	if err != nil {
		return fmt.Errorf("invalid start date %q", r.Start)
	}
	end, err := time.Parse(dateLayout, r.End)
	if err != nil {
		return fmt.Errorf("invalid end date %q", r.End)
	}
	if start.After(end) {
		return fmt.Errorf("start %s after end %s", r.Start, r.End)
	}
	return nil
}

// Times returns the parsed endpoints. Call Validate first.
func (r DateRange) Times() (time.Time, time.Time) {
	start, _ := time.Parse(dateLayout, r.Start)
	end, _ := time.Parse(dateLayout, r.End)
	return start, end
}

// Contains reports whether the YYYY-MM-DD date d falls inside the range.
func (r DateRange) Contains(d string) bool {
	return d >= r.Start && d <= r.End
}

// FormatDate renders t as YYYY-MM-DD.
func FormatDate(t time.Time) string { return t.Format(dateLayout) }

// ParseDate parses a YYYY-MM-DD date.
func ParseDate(s string) (time.Time, error) { return time.Parse(dateLayout, s) }
