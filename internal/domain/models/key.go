package models

import (
	"fmt"
	"time"
)

// DatasetKey qualifies a dataset with the statement dimensions that are
// part of its natural key. For non-statement datasets the extra fields
// stay empty.
type DatasetKey struct {
	Dataset   Dataset       `json:"dataset"`
	Statement StatementType `json:"statement_type,omitempty"`
	Period    PeriodKind    `json:"period_kind,omitempty"`
}

func PricesKey() DatasetKey        { return DatasetKey{Dataset: DatasetPrices} }
func InsiderTradesKey() DatasetKey { return DatasetKey{Dataset: DatasetInsiderTrades} }
func NewsKey() DatasetKey          { return DatasetKey{Dataset: DatasetNews} }

func StatementsKey(st StatementType, pk PeriodKind) DatasetKey {
	return DatasetKey{Dataset: DatasetStatements, Statement: st, Period: pk}
}

// CacheKey renders the key for the cache and per-key lock, scoped to a
// ticker: "prices:AAPL", "statements:income:annual:AAPL".
func (k DatasetKey) CacheKey(ticker string) string {
	if k.Dataset == DatasetStatements {
		return fmt.Sprintf("%s:%s:%s:%s", k.Dataset, k.Statement, k.Period, ticker)
	}
	return fmt.Sprintf("%s:%s", k.Dataset, ticker)
}

// Step is the maximum spacing between consecutive stored records that
// still counts as contiguous coverage during gap detection.
func (k DatasetKey) Step() time.Duration {
	if k.Dataset == DatasetStatements {
		return k.Period.Step()
	}
	return 24 * time.Hour
}

// Validate checks the dataset and, for statements, its dimensions.
func (k DatasetKey) Validate() error {
	if _, err := ParseDataset(string(k.Dataset)); err != nil {
		return err
	}
	if k.Dataset != DatasetStatements {
		return nil
	}
	if _, err := ParseStatementType(string(k.Statement)); err != nil {
		return err
	}
	if _, err := ParsePeriodKind(string(k.Period)); err != nil {
		return err
	}
	return nil
}
