package risk

import (
	"fmt"
	"time"

	"github.com/Dan9191/cashflow-risk/internal/models"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Trainer fits new bundles from labeled feature rows
type Trainer struct {
	log *logrus.Logger
	cfg ClassifierConfig
	now func() time.Time
}

// NewTrainer initializes a new trainer
func NewTrainer(log *logrus.Logger, cfg ClassifierConfig) *Trainer {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if cfg.MaxIter <= 0 {
		cfg.MaxIter = DefaultClassifierConfig().MaxIter
	}
	if cfg.C <= 0 {
		cfg.C = DefaultClassifierConfig().C
	}
	if cfg.Tol <= 0 {
		cfg.Tol = DefaultClassifierConfig().Tol
	}
	return &Trainer{log: log, cfg: cfg, now: time.Now}
}

// Train fits a scaler and classifier and returns them as a new bundle.
// Fewer than two rows or a single-class label set is ErrInsufficientData.
func (t *Trainer) Train(rows []models.LabeledRow) (*Bundle, error) {
	if len(rows) < 2 {
		return nil, fmt.Errorf("need at least 2 rows, got %d: %w", len(rows), ErrInsufficientData)
	}

	vectors := make([]models.FeatureVector, len(rows))
	y := make([]int, len(rows))
	summary := TrainingSummary{Rows: len(rows)}
	for i, r := range rows {
		vectors[i] = r.Vector()
		y[i] = r.CashFlowStress
		if y[i] == 1 {
			summary.Positives++
		} else {
			summary.Negatives++
		}
	}
	if summary.Positives == 0 || summary.Negatives == 0 {
		return nil, fmt.Errorf("training labels have a single class: %w", ErrInsufficientData)
	}

	scaler, err := FitScaler(vectors)
	if err != nil {
		return nil, err
	}
	scaled := make([][]float64, len(vectors))
	for i, v := range vectors {
		scaled[i] = scaler.Transform(v)
	}

	clf, err := FitLogistic(scaled, y, t.cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to fit classifier: %w", err)
	}

	bundle := &Bundle{
		Version:    uuid.NewString(),
		TrainedAt:  t.now().UTC(),
		Features:   append([]string(nil), models.FeatureNames[:]...),
		Scaler:     scaler,
		Classifier: clf,
		Summary:    summary,
	}
	if err := bundle.Validate(); err != nil {
		return nil, err
	}

	entry := t.log.WithFields(logrus.Fields{
		"version":    bundle.Version,
		"rows":       summary.Rows,
		"positives":  summary.Positives,
		"iterations": clf.Iterations,
	})
	if !clf.Converged {
		entry.Warn("Classifier reached the iteration cap before converging")
	} else {
		entry.Info("Model trained")
	}
	return bundle, nil
}
