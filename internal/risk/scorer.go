package risk

import (
	"math"

	"github.com/Dan9191/cashflow-risk/internal/models"
)

// RoundScore converts a probability to a 0-100 score with one decimal,
// rounding half to even
func RoundScore(probability float64) float64 {
	return math.RoundToEven(probability*100*10) / 10
}

// ScoreVector scores a single feature vector
func ScoreVector(b *Bundle, v models.FeatureVector) (probability, score float64, err error) {
	if b == nil {
		return 0, 0, ErrModelNotLoaded
	}
	probability = b.Probability(v)
	return probability, RoundScore(probability), nil
}

// Score appends probability, score and bucket to copies of the given rows
func Score(b *Bundle, rows []models.FeatureRow) ([]models.ScoredRow, error) {
	if b == nil {
		return nil, ErrModelNotLoaded
	}
	if len(rows) == 0 {
		return nil, ErrEmptyInput
	}

	scored := make([]models.ScoredRow, len(rows))
	for i, r := range rows {
		p, s, err := ScoreVector(b, r.Vector())
		if err != nil {
			return nil, err
		}
		scored[i] = models.ScoredRow{
			FeatureRow:      r,
			RiskProbability: p,
			RiskScore:       s,
			RiskBucket:      models.BucketForScore(s),
			ModelVersion:    b.Version,
		}
	}
	return scored, nil
}
