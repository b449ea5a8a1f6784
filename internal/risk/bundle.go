// Package risk fits, persists and applies the cash-flow stress model.
package risk

import (
	"fmt"
	"math"
	"time"

	"github.com/Dan9191/cashflow-risk/internal/models"
)

// TrainingSummary describes the data a bundle was fitted on
type TrainingSummary struct {
	Rows          int  `json:"rows"`
	Positives     int  `json:"positives"`
	Negatives     int  `json:"negatives"`
	LabelsPatched bool `json:"labels_patched"`
}

// Bundle is the fitted model state: scaler, classifier and the feature order
// that binds them. A published bundle is never modified.
type Bundle struct {
	Version    string          `json:"version"`
	TrainedAt  time.Time       `json:"trained_at"`
	Features   []string        `json:"features"`
	Scaler     *Scaler         `json:"scaler"`
	Classifier *Classifier     `json:"classifier"`
	Summary    TrainingSummary `json:"summary"`
}

// Validate checks that the scaler, classifier and feature list agree in shape and order
func (b *Bundle) Validate() error {
	if b == nil {
		return fmt.Errorf("%w: empty bundle", ErrInvalidBundle)
	}
	if err := checkFeatureOrder(b.Features); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidBundle, err)
	}
	if b.Scaler == nil || b.Classifier == nil {
		return fmt.Errorf("%w: missing scaler or classifier", ErrInvalidBundle)
	}
	if err := b.Scaler.validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidBundle, err)
	}
	if len(b.Classifier.Weights) != models.FeatureCount {
		return fmt.Errorf("%w: classifier expects %d features, scaler produces %d",
			ErrInvalidBundle, len(b.Classifier.Weights), models.FeatureCount)
	}
	params := append(append([]float64{b.Classifier.Intercept}, b.Classifier.Weights...), b.Scaler.Mean...)
	params = append(params, b.Scaler.Scale...)
	for _, v := range params {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: non-finite parameter", ErrInvalidBundle)
		}
	}
	return nil
}

// Probability returns P(stress=1) for a feature vector
func (b *Bundle) Probability(v models.FeatureVector) float64 {
	return b.Classifier.Probability(b.Scaler.Transform(v))
}
