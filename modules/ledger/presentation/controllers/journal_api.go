package controllers

import (
	"encoding/json"
	"net/http"

	"github.com/jacksonlee411/harbor-erp/modules/ledger/domain/types"
	"github.com/jacksonlee411/harbor-erp/modules/ledger/services"
	"github.com/jacksonlee411/harbor-erp/pkg/envelope"
)

const maxJournalBodyBytes = 1 << 20

type JournalController struct {
	// BaseCurrency is the company's book currency, e.g. "PHP".
	BaseCurrency string
}

func (c JournalController) HandleCalculate(w http.ResponseWriter, r *http.Request) {
	var entry types.JournalEntry
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJournalBodyBytes)).Decode(&entry); err != nil {
		envelope.Write(w, http.StatusBadRequest, envelope.Failed("Request body is not a valid journal entry."))
		return
	}
	calc, err := services.Calculate(entry, c.BaseCurrency)
	if err != nil {
		envelope.WriteFailure(w, err)
		return
	}
	msg := "Entry is balanced."
	if !calc.Totals.Balanced {
		msg = "Debits and credits differ by " + calc.Totals.Difference.Abs().StringFixed(2) + "."
	}
	envelope.WriteOK(w, calc, msg)
}
