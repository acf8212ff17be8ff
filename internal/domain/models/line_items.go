package models

import "github.com/guregu/null/v6"

// Known line-item names per statement type, mirroring the reporting
// schema of the upstream data provider. Unrecognized names are not an
// error; they are carried in StatementRow.Extra.

var incomeItems = []string{
	"grossProfit", "totalRevenue", "costOfRevenue",
	"costofGoodsAndServicesSold", "operatingIncome",
	"sellingGeneralAndAdministrative", "researchAndDevelopment",
	"operatingExpenses", "investmentIncomeNet", "netInterestIncome",
	"interestIncome", "interestExpense", "nonInterestIncome",
	"otherNonOperatingIncome", "depreciation",
	"depreciationAndAmortization", "incomeBeforeTax", "incomeTaxExpense",
	"interestAndDebtExpense", "netIncomeFromContinuingOperations",
	"comprehensiveIncomeNetOfTax", "ebit", "ebitda", "netIncome",
}

var balanceItems = []string{
	"totalAssets", "totalCurrentAssets",
	"cashAndCashEquivalentsAtCarryingValue", "cashAndShortTermInvestments",
	"inventory", "currentNetReceivables", "totalNonCurrentAssets",
	"propertyPlantEquipment", "accumulatedDepreciationAmortizationPPE",
	"intangibleAssets", "intangibleAssetsExcludingGoodwill", "goodwill",
	"investments", "longTermInvestments", "shortTermInvestments",
	"otherCurrentAssets", "otherNonCurrentAssets", "totalLiabilities",
	"totalCurrentLiabilities", "currentAccountsPayable", "deferredRevenue",
	"currentDebt", "shortTermDebt", "totalNonCurrentLiabilities",
	"capitalLeaseObligations", "longTermDebt", "currentLongTermDebt",
	"longTermDebtNoncurrent", "shortLongTermDebtTotal",
	"otherCurrentLiabilities", "otherNonCurrentLiabilities",
	"totalShareholderEquity", "treasuryStock", "retainedEarnings",
	"commonStock", "commonStockSharesOutstanding",
}

var cashFlowItems = []string{
	"operatingCashflow", "paymentsForOperatingActivities",
	"proceedsFromOperatingActivities", "changeInOperatingLiabilities",
	"changeInOperatingAssets", "depreciationDepletionAndAmortization",
	"capitalExpenditures", "changeInReceivables", "changeInInventory",
	"profitLoss", "cashflowFromInvestment", "cashflowFromFinancing",
	"proceedsFromRepaymentsOfShortTermDebt",
	"paymentsForRepurchaseOfCommonStock", "paymentsForRepurchaseOfEquity",
	"paymentsForRepurchaseOfPreferredStock", "dividendPayout",
	"dividendPayoutCommonStock", "dividendPayoutPreferredStock",
	"proceedsFromIssuanceOfCommonStock",
	"proceedsFromIssuanceOfLongTermDebtAndCapitalSecuritiesNet",
	"proceedsFromIssuanceOfPreferredStock", "proceedsFromRepurchaseOfEquity",
	"proceedsFromSaleOfTreasuryStock", "changeInCashAndCashEquivalents",
	"changeInExchangeRate", "netIncome",
}

var knownItems = map[StatementType]map[string]struct{}{
	StatementIncome:   indexItems(incomeItems),
	StatementBalance:  indexItems(balanceItems),
	StatementCashFlow: indexItems(cashFlowItems),
}

func indexItems(names []string) map[string]struct{} {
	m := make(map[string]struct{}, len(names))
	for _, n := range names {
		m[n] = struct{}{}
	}
	return m
}

// KnownItems lists the recognized line-item names for a statement type.
func KnownItems(st StatementType) []string {
	switch st {
	case StatementIncome:
		return incomeItems
	case StatementBalance:
		return balanceItems
	case StatementCashFlow:
		return cashFlowItems
	}
	return nil
}

// IsKnownItem reports whether name belongs to the statement's known shape.
func IsKnownItem(st StatementType, name string) bool {
	_, ok := knownItems[st][name]
	return ok
}

// SplitItems partitions a raw name→value mapping into the statement's
// known shape and the extension map for everything else.
func SplitItems(st StatementType, raw map[string]null.Float) (items, extra map[string]null.Float) {
	items = make(map[string]null.Float, len(raw))
	for name, v := range raw {
		if IsKnownItem(st, name) {
			items[name] = v
			continue
		}
		if extra == nil {
			extra = make(map[string]null.Float)
		}
		extra[name] = v
	}
	return items, extra
}
