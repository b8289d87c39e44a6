package types

import "github.com/shopspring/decimal"

type JournalEntry struct {
	Currency     string          `json:"currency"`
	ExchangeRate decimal.Decimal `json:"exchangeRate"`
	Lines        []Line          `json:"lines"`
}

// Line carries either a debit or a credit. GSTRate is a percentage; when
// GSTInclusive is set the entered amount already contains the tax.
type Line struct {
	Account      string          `json:"account"`
	Debit        decimal.Decimal `json:"debit"`
	Credit       decimal.Decimal `json:"credit"`
	GSTRate      decimal.Decimal `json:"gstRate"`
	GSTInclusive bool            `json:"gstInclusive"`
}

type CalculatedLine struct {
	Account   string          `json:"account"`
	Side      string          `json:"side"`
	Net       decimal.Decimal `json:"net"`
	GST       decimal.Decimal `json:"gst"`
	Gross     decimal.Decimal `json:"gross"`
	BaseNet   decimal.Decimal `json:"baseNet"`
	BaseGST   decimal.Decimal `json:"baseGst"`
	BaseGross decimal.Decimal `json:"baseGross"`
}

type Totals struct {
	Debit      decimal.Decimal `json:"debit"`
	Credit     decimal.Decimal `json:"credit"`
	GST        decimal.Decimal `json:"gst"`
	BaseDebit  decimal.Decimal `json:"baseDebit"`
	BaseCredit decimal.Decimal `json:"baseCredit"`
	BaseGST    decimal.Decimal `json:"baseGst"`
	Difference decimal.Decimal `json:"difference"`
	Balanced   bool            `json:"balanced"`
}

type Calculation struct {
	Currency     string           `json:"currency"`
	ExchangeRate decimal.Decimal  `json:"exchangeRate"`
	Lines        []CalculatedLine `json:"lines"`
	Totals       Totals           `json:"totals"`
}

const (
	SideDebit  = "debit"
	SideCredit = "credit"
)
