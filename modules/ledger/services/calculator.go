package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/jacksonlee411/harbor-erp/modules/ledger/domain/types"
	"github.com/jacksonlee411/harbor-erp/pkg/httperr"
)

const amountPlaces = 2

var hundred = decimal.NewFromInt(100)

// Calculate converts every line to base currency, splits GST out of or onto
// each amount and rolls up the totals. Amounts are rounded half away from
// zero to two places per line, and totals are sums of the rounded lines.
func Calculate(entry types.JournalEntry, baseCurrency string) (types.Calculation, error) {
	currency := strings.ToUpper(strings.TrimSpace(entry.Currency))
	if currency == "" {
		currency = baseCurrency
	}
	rate := entry.ExchangeRate
	switch {
	case currency == baseCurrency && rate.IsZero():
		rate = decimal.NewFromInt(1)
	case !rate.IsPositive():
		return types.Calculation{}, httperr.NewBadRequest("Exchange rate must be greater than zero.")
	}
	if len(entry.Lines) == 0 {
		return types.Calculation{}, httperr.NewBadRequest("A journal entry needs at least one line.")
	}

	out := types.Calculation{Currency: currency, ExchangeRate: rate, Lines: make([]types.CalculatedLine, 0, len(entry.Lines))}
	t := &out.Totals
	for i, line := range entry.Lines {
		cl, err := calculateLine(line, rate)
		if err != nil {
			return types.Calculation{}, httperr.NewBadRequest(fmt.Sprintf("Line %d: %s", i+1, err.Error()))
		}
		switch cl.Side {
		case types.SideDebit:
			t.Debit = t.Debit.Add(cl.Gross)
			t.BaseDebit = t.BaseDebit.Add(cl.BaseGross)
		case types.SideCredit:
			t.Credit = t.Credit.Add(cl.Gross)
			t.BaseCredit = t.BaseCredit.Add(cl.BaseGross)
		}
		t.GST = t.GST.Add(cl.GST)
		t.BaseGST = t.BaseGST.Add(cl.BaseGST)
		out.Lines = append(out.Lines, cl)
	}
	t.Difference = t.BaseDebit.Sub(t.BaseCredit)
	t.Balanced = t.Difference.IsZero()
	return out, nil
}

func calculateLine(line types.Line, rate decimal.Decimal) (types.CalculatedLine, error) {
	account := strings.TrimSpace(line.Account)
	if account == "" {
		return types.CalculatedLine{}, errors.New("account is required")
	}
	if line.Debit.IsNegative() || line.Credit.IsNegative() {
		return types.CalculatedLine{}, errors.New("amounts cannot be negative")
	}
	if line.GSTRate.IsNegative() || line.GSTRate.GreaterThan(hundred) {
		return types.CalculatedLine{}, errors.New("GST rate must be between 0 and 100")
	}

	cl := types.CalculatedLine{Account: account}
	var amount decimal.Decimal
	switch {
	case line.Debit.IsPositive() && line.Credit.IsPositive():
		return types.CalculatedLine{}, errors.New("enter either a debit or a credit, not both")
	case line.Debit.IsPositive():
		cl.Side, amount = types.SideDebit, line.Debit
	case line.Credit.IsPositive():
		cl.Side, amount = types.SideCredit, line.Credit
	default:
		return types.CalculatedLine{}, errors.New("enter a debit or a credit amount")
	}

	if line.GSTInclusive {
		cl.Gross = amount.Round(amountPlaces)
		cl.GST = amount.Mul(line.GSTRate).Div(hundred.Add(line.GSTRate)).Round(amountPlaces)
		cl.Net = cl.Gross.Sub(cl.GST)
	} else {
		cl.Net = amount.Round(amountPlaces)
		cl.GST = amount.Mul(line.GSTRate).Div(hundred).Round(amountPlaces)
		cl.Gross = cl.Net.Add(cl.GST)
	}

	cl.BaseGross = cl.Gross.Mul(rate).Round(amountPlaces)
	cl.BaseGST = cl.GST.Mul(rate).Round(amountPlaces)
	cl.BaseNet = cl.BaseGross.Sub(cl.BaseGST)
	return cl, nil
}
