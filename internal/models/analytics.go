package models

import "fmt"

// Feature names in the order the scaler and classifier consume them
const (
	FeatureCashRunway          = "cash_runway"
	FeatureRevenueExpenseRatio = "revenue_expense_ratio"
	FeatureTotalOverdue        = "total_overdue"
	FeatureOverdueSeverity     = "overdue_severity"
	FeaturePaymentDelayChange  = "payment_delay_change"
	FeatureSales3mAvg          = "sales_3m_avg"
	FeatureExpense3mAvg        = "expense_3m_avg"
	FeatureSalesGrowth         = "sales_growth"
	FeatureExpenseGrowth       = "expense_growth"
	FeatureGrowthGap           = "growth_gap"
	FeatureSalesVolatility     = "sales_volatility"
)

// FeatureCount is the width of every feature vector
const FeatureCount = 11

// FeatureNames is the canonical feature order shared by training and inference
var FeatureNames = [FeatureCount]string{
	FeatureCashRunway,
	FeatureRevenueExpenseRatio,
	FeatureTotalOverdue,
	FeatureOverdueSeverity,
	FeaturePaymentDelayChange,
	FeatureSales3mAvg,
	FeatureExpense3mAvg,
	FeatureSalesGrowth,
	FeatureExpenseGrowth,
	FeatureGrowthGap,
	FeatureSalesVolatility,
}

// FeatureVector is a feature row laid out in FeatureNames order
type FeatureVector [FeatureCount]float64

// FeatureRow represents monthly cash-flow aggregates for one SME
type FeatureRow struct {
	SMEID               string  `json:"sme_id"`
	Month               string  `json:"month"` // Format: YYYY-MM
	CashIn              float64 `json:"cash_in"`
	CashOut             float64 `json:"cash_out"`
	NetCashflow         float64 `json:"net_cashflow"`
	ClosingBalance      float64 `json:"closing_balance"`
	CashRunway          float64 `json:"cash_runway"`
	RevenueExpenseRatio float64 `json:"revenue_expense_ratio"`
	SalesGrowth         float64 `json:"sales_growth"`
	ExpenseGrowth       float64 `json:"expense_growth"`
	GrowthGap           float64 `json:"growth_gap"`
	SalesVolatility     float64 `json:"sales_volatility"`
	Sales3mAvg          float64 `json:"sales_3m_avg"`
	Expense3mAvg        float64 `json:"expense_3m_avg"`
	TotalOverdue        float64 `json:"total_overdue"`
	OverdueSeverity     float64 `json:"overdue_severity"`
	PaymentDelayChange  float64 `json:"payment_delay_change"`
}

// Vector returns the model features in FeatureNames order
func (r FeatureRow) Vector() FeatureVector {
	return FeatureVector{
		r.CashRunway,
		r.RevenueExpenseRatio,
		r.TotalOverdue,
		r.OverdueSeverity,
		r.PaymentDelayChange,
		r.Sales3mAvg,
		r.Expense3mAvg,
		r.SalesGrowth,
		r.ExpenseGrowth,
		r.GrowthGap,
		r.SalesVolatility,
	}
}

// Key identifies the row within a feature table
func (r FeatureRow) Key() string {
	return fmt.Sprintf("%s/%s", r.SMEID, r.Month)
}

// LabeledRow is a feature row with its training target
type LabeledRow struct {
	FeatureRow
	CashFlowStress int `json:"cash_flow_stress"`
}
