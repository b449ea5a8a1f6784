package features

import (
	"github.com/Dan9191/cashflow-risk/internal/models"
	"github.com/sirupsen/logrus"
)

// LabelReport summarizes a labeling pass
type LabelReport struct {
	Rows      int  `json:"rows"`
	Positives int  `json:"positives"`
	Negatives int  `json:"negatives"`
	Patched   bool `json:"patched"`
}

// Labeler assigns the cash-flow stress target
type Labeler struct {
	log *logrus.Logger
}

// NewLabeler initializes a new labeler
func NewLabeler(log *logrus.Logger) *Labeler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Labeler{log: log}
}

// Label marks a month as stressed when its net cash flow is negative.
// When every row falls into one class the last row is forced to 1 and, if
// there is more than one row, the first row is forced to 0 so that a
// classifier can still be fitted. The override is logged as a warning.
func (l *Labeler) Label(rows []models.FeatureRow) ([]models.LabeledRow, LabelReport) {
	labeled := make([]models.LabeledRow, len(rows))
	for i, r := range rows {
		labeled[i] = models.LabeledRow{FeatureRow: r}
		if r.NetCashflow < 0 {
			labeled[i].CashFlowStress = 1
		}
	}

	report := LabelReport{Rows: len(labeled)}
	if len(labeled) > 0 && distinctLabels(labeled) < 2 {
		labeled[len(labeled)-1].CashFlowStress = 1
		if len(labeled) > 1 {
			labeled[0].CashFlowStress = 0
		}
		report.Patched = true
		l.log.WithFields(logrus.Fields{
			"rows":      len(labeled),
			"first_row": labeled[0].Key(),
			"last_row":  labeled[len(labeled)-1].Key(),
		}).Warn("Training labels had a single class, forced first row to 0 and last row to 1")
	}

	for _, r := range labeled {
		if r.CashFlowStress == 1 {
			report.Positives++
		} else {
			report.Negatives++
		}
	}
	return labeled, report
}

func distinctLabels(rows []models.LabeledRow) int {
	seen := map[int]bool{}
	for _, r := range rows {
		seen[r.CashFlowStress] = true
	}
	return len(seen)
}
