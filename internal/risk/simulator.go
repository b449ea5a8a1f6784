package risk

import (
	"math"

	"github.com/Dan9191/cashflow-risk/internal/models"
)

// ApplyWhatIf returns a copy of row with faster collections and lower
// expenses applied. Growth rates are not re-simulated; growth_gap is
// recomputed from the stored rates.
func ApplyWhatIf(row models.FeatureRow, collectionImprovement, expenseReduction float64) models.FeatureRow {
	sim := row
	sim.Sales3mAvg *= 1 + collectionImprovement/100
	sim.Expense3mAvg *= 1 - expenseReduction/100
	sim.RevenueExpenseRatio = sim.Sales3mAvg / math.Max(sim.Expense3mAvg, 1)
	sim.GrowthGap = sim.SalesGrowth - sim.ExpenseGrowth
	return sim
}

// Simulate re-scores row under the what-if adjustments and returns the score
func Simulate(b *Bundle, row models.FeatureRow, collectionImprovement, expenseReduction float64) (float64, error) {
	sim := ApplyWhatIf(row, collectionImprovement, expenseReduction)
	_, score, err := ScoreVector(b, sim.Vector())
	return score, err
}
