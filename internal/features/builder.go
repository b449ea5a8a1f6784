// Package features turns transaction ledgers into monthly per-SME feature
// rows and derives the cash-flow stress training label.
package features

import (
	"math"

	"github.com/Dan9191/cashflow-risk/internal/models"
	"github.com/sirupsen/logrus"
)

const monthLayout = "2006-01"

// Builder converts ledgers into monthly feature tables
type Builder struct {
	log *logrus.Logger
}

// NewBuilder initializes a new feature builder
func NewBuilder(log *logrus.Logger) *Builder {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Builder{log: log}
}

// Build coerces raw records and aggregates them into feature rows.
// An empty or fully malformed ledger yields an empty table.
func (b *Builder) Build(raw []models.RawTransaction) []models.FeatureRow {
	txns, dropped := Coerce(raw)
	if dropped > 0 {
		b.log.WithFields(logrus.Fields{
			"dropped":  dropped,
			"accepted": len(txns),
		}).Debug("Dropped malformed transactions")
	}
	return Aggregate(txns)
}

// Aggregate groups coerced transactions by SME and calendar month and
// computes the derived features. Transactions must be ordered by SME id and
// date, as returned by Coerce.
func Aggregate(txns []models.Transaction) []models.FeatureRow {
	rows := make([]models.FeatureRow, 0)
	if len(txns) == 0 {
		return rows
	}

	start := 0
	for i := 1; i <= len(txns); i++ {
		if i < len(txns) && txns[i].SMEID == txns[start].SMEID {
			continue
		}
		rows = append(rows, smeRows(txns[start:i])...)
		start = i
	}
	return rows
}

// smeRows builds the monthly rows of a single SME
func smeRows(txns []models.Transaction) []models.FeatureRow {
	var rows []models.FeatureRow
	for _, t := range txns {
		month := t.Date.Format(monthLayout)
		if len(rows) == 0 || rows[len(rows)-1].Month != month {
			rows = append(rows, models.FeatureRow{SMEID: t.SMEID, Month: month})
		}
		row := &rows[len(rows)-1]
		if t.Amount > 0 {
			row.CashIn += t.Amount
		} else if t.Amount < 0 {
			row.CashOut += math.Abs(t.Amount)
		}
		row.ClosingBalance = t.Balance
	}

	cashIn := make([]float64, len(rows))
	cashOut := make([]float64, len(rows))
	for i := range rows {
		cashIn[i] = rows[i].CashIn
		cashOut[i] = rows[i].CashOut
	}

	for i := range rows {
		row := &rows[i]
		row.NetCashflow = row.CashIn - row.CashOut
		row.CashRunway = row.CashIn / (row.CashOut + 1)
		row.RevenueExpenseRatio = row.CashIn / (row.CashOut + 1)
		if i > 0 {
			row.SalesGrowth = pctChange(cashIn[i-1], cashIn[i])
			row.ExpenseGrowth = pctChange(cashOut[i-1], cashOut[i])
		}
		row.GrowthGap = row.SalesGrowth - row.ExpenseGrowth
		row.SalesVolatility = trailingStdDev(cashIn, i)
		row.Sales3mAvg = trailingMean(cashIn, i)
		row.Expense3mAvg = trailingMean(cashOut, i)

		// Overdue data needs a credit bureau feed.
		row.TotalOverdue = 0
		row.OverdueSeverity = 0
		row.PaymentDelayChange = 0
	}
	return rows
}

// Latest returns the most recent row for the SME, if any
func Latest(rows []models.FeatureRow, smeID string) (models.FeatureRow, bool) {
	var latest models.FeatureRow
	found := false
	for _, r := range rows {
		if r.SMEID == smeID && (!found || r.Month > latest.Month) {
			latest = r
			found = true
		}
	}
	return latest, found
}
