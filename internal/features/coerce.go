package features

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/Dan9191/cashflow-risk/internal/models"
	"github.com/shopspring/decimal"
)

// dateLayouts are tried in order when parsing transaction dates
var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
}

// ParseDate parses a transaction date in any of the accepted layouts. A UTC
// offset is dropped and the wall-clock time kept, so a transaction falls in
// the calendar month it was booked in.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC), true
		}
	}
	return time.Time{}, false
}

// ParseAmount parses a signed decimal amount. Values outside the float64
// range are rejected.
func ParseAmount(raw models.RawAmount) (float64, bool) {
	s := strings.TrimSpace(string(raw))
	if s == "" {
		return 0, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, false
	}
	f := d.InexactFloat64()
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

// Coerce converts raw records into transactions. Records with an empty SME id,
// an unparseable date or an unparseable amount are dropped; the number of
// dropped records is returned. The result is ordered by SME id and then date,
// keeping input order for equal dates.
func Coerce(raw []models.RawTransaction) ([]models.Transaction, int) {
	txns := make([]models.Transaction, 0, len(raw))
	hasBalance := make([]bool, 0, len(raw))
	dropped := 0

	for _, r := range raw {
		smeID := strings.TrimSpace(r.SMEID)
		date, ok := ParseDate(r.TransactionDate)
		if !ok || smeID == "" {
			dropped++
			continue
		}
		amount, ok := ParseAmount(r.Amount)
		if !ok {
			dropped++
			continue
		}

		txType := strings.ToLower(strings.TrimSpace(r.TransactionType))
		if txType == "" {
			txType = inferType(amount)
		}

		t := models.Transaction{
			SMEID:  smeID,
			Date:   date,
			Amount: amount,
			Type:   txType,
		}
		if r.Balance != nil {
			t.Balance = *r.Balance
		}
		txns = append(txns, t)
		hasBalance = append(hasBalance, r.Balance != nil)
	}

	idx := make([]int, len(txns))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		ta, tb := txns[idx[a]], txns[idx[b]]
		if ta.SMEID != tb.SMEID {
			return ta.SMEID < tb.SMEID
		}
		return ta.Date.Before(tb.Date)
	})

	sorted := make([]models.Transaction, len(txns))
	sortedHasBalance := make([]bool, len(txns))
	for i, j := range idx {
		sorted[i] = txns[j]
		sortedHasBalance[i] = hasBalance[j]
	}

	deriveBalances(sorted, sortedHasBalance)
	return sorted, dropped
}

func inferType(amount float64) string {
	if amount >= 0 {
		return models.TypeCredit
	}
	return models.TypeDebit
}

// deriveBalances fills missing balances with the running net of inflows and
// outflows per SME. A supplied balance re-anchors the running total.
func deriveBalances(txns []models.Transaction, hasBalance []bool) {
	var running float64
	for i := range txns {
		if i == 0 || txns[i].SMEID != txns[i-1].SMEID {
			running = 0
		}
		if hasBalance[i] {
			running = txns[i].Balance
			continue
		}
		running += txns[i].Amount
		txns[i].Balance = running
		txns[i].BalanceDerived = true
	}
}
