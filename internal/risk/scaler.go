package risk

import (
	"fmt"

	"github.com/Dan9191/cashflow-risk/internal/models"
	"gonum.org/v1/gonum/stat"
)

// Scaler standardizes features to zero mean and unit variance
type Scaler struct {
	Mean  []float64 `json:"mean"`
	Scale []float64 `json:"scale"`
}

// FitScaler computes per-feature mean and population standard deviation.
// Constant features get a scale of 1 so they transform to 0.
func FitScaler(rows []models.FeatureVector) (*Scaler, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("failed to fit scaler: %w", ErrInsufficientData)
	}

	s := &Scaler{
		Mean:  make([]float64, models.FeatureCount),
		Scale: make([]float64, models.FeatureCount),
	}
	column := make([]float64, len(rows))
	for j := 0; j < models.FeatureCount; j++ {
		for i, r := range rows {
			column[i] = r[j]
		}
		mean, std := stat.PopMeanStdDev(column, nil)
		if std == 0 {
			std = 1
		}
		s.Mean[j] = mean
		s.Scale[j] = std
	}
	return s, nil
}

// Transform returns the standardized copy of a vector
func (s *Scaler) Transform(v models.FeatureVector) []float64 {
	out := make([]float64, len(v))
	for j := range v {
		out[j] = (v[j] - s.Mean[j]) / s.Scale[j]
	}
	return out
}

func (s *Scaler) validate() error {
	if len(s.Mean) != models.FeatureCount || len(s.Scale) != models.FeatureCount {
		return fmt.Errorf("scaler width %d/%d, expected %d", len(s.Mean), len(s.Scale), models.FeatureCount)
	}
	for j, sc := range s.Scale {
		if sc == 0 {
			return fmt.Errorf("scaler has zero scale for %s", models.FeatureNames[j])
		}
	}
	return nil
}
