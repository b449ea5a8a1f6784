package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/Dan9191/cashflow-risk/internal/config"
	"github.com/Dan9191/cashflow-risk/internal/features"
	"github.com/Dan9191/cashflow-risk/internal/integrations/camt"
	"github.com/Dan9191/cashflow-risk/internal/metrics"
	"github.com/Dan9191/cashflow-risk/internal/models"
	"github.com/Dan9191/cashflow-risk/internal/repository"
	"github.com/Dan9191/cashflow-risk/internal/risk"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrInvalidCredentials is returned when a token request does not match the configured client
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrSMENotFound is returned when an SME has no stored transactions
	ErrSMENotFound = errors.New("sme not found")
	// ErrInvalidSimulation is returned for what-if percentages that cannot be applied
	ErrInvalidSimulation = errors.New("invalid simulation parameters")
	// ErrInvalidStatement is returned when a bank statement cannot be parsed
	ErrInvalidStatement = errors.New("invalid bank statement")
)

// Store persists transactions, scores and model bundles
type Store interface {
	SaveTransactions(ctx context.Context, txns []models.Transaction) error
	ListTransactions(ctx context.Context, smeID string) ([]models.RawTransaction, error)
	SaveBundle(ctx context.Context, version string, trainedAt time.Time, payload []byte) error
	LatestBundle(ctx context.Context) ([]byte, error)
	SaveScores(ctx context.Context, scored []models.ScoredRow) error
	ListSMEs(ctx context.Context) ([]string, error)
}

// ScoreCache holds recently scored histories
type ScoreCache interface {
	Get(ctx context.Context, smeID, modelVersion string) ([]models.ScoredRow, bool)
	Set(ctx context.Context, smeID, modelVersion string, rows []models.ScoredRow) error
	Invalidate(ctx context.Context, smeIDs ...string) error
}

// Notifier delivers high-risk alerts
type Notifier interface {
	SendRiskAlert(row models.ScoredRow) error
}

// IngestResult reports how many records were stored and dropped
type IngestResult struct {
	Accepted int `json:"accepted"`
	Dropped  int `json:"dropped"`
}

// TrainResult describes a published model
type TrainResult struct {
	Version       string    `json:"model_version"`
	TrainedAt     time.Time `json:"trained_at"`
	Rows          int       `json:"rows"`
	Positives     int       `json:"positives"`
	Negatives     int       `json:"negatives"`
	LabelsPatched bool      `json:"labels_patched"`
	Iterations    int       `json:"iterations"`
	Converged     bool      `json:"converged"`
}

// Service handles business logic
type Service struct {
	store    Store
	cache    ScoreCache
	notifier Notifier
	holder   *risk.Holder
	builder  *features.Builder
	labeler  *features.Labeler
	trainer  *risk.Trainer
	importer *camt.Importer
	log      *logrus.Logger
	config   *config.Config
	trainMu  sync.Mutex
}

// NewService initializes a new service. cache and notifier may be nil.
func NewService(store Store, cache ScoreCache, notifier Notifier, log *logrus.Logger, cfg *config.Config) *Service {
	clf := risk.DefaultClassifierConfig()
	clf.MaxIter = cfg.TrainMaxIter
	return &Service{
		store:    store,
		cache:    cache,
		notifier: notifier,
		holder:   risk.NewHolder(),
		builder:  features.NewBuilder(log),
		labeler:  features.NewLabeler(log),
		trainer:  risk.NewTrainer(log, clf),
		importer: camt.NewImporter(log),
		log:      log,
		config:   cfg,
	}
}

// ModelVersion returns the live model version, empty when none is loaded
func (s *Service) ModelVersion() string {
	return s.holder.Version()
}

// IngestTransactions coerces and stores raw ledger records
func (s *Service) IngestTransactions(ctx context.Context, raw []models.RawTransaction) (*IngestResult, error) {
	txns, dropped := features.Coerce(raw)
	if dropped > 0 {
		metrics.DroppedTransactionsTotal.Add(float64(dropped))
		s.log.Warnf("Dropped %d of %d transactions with unparseable date or amount", dropped, len(raw))
	}

	if err := s.store.SaveTransactions(ctx, txns); err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, smeIDs(txns)...); err != nil {
			s.log.Warnf("Failed to invalidate cached scores: %v", err)
		}
	}

	s.log.Infof("Ingested %d transactions", len(txns))
	return &IngestResult{Accepted: len(txns), Dropped: dropped}, nil
}

// IngestStatement imports a camt.053 statement for an SME
func (s *Service) IngestStatement(ctx context.Context, smeID string, body []byte) (*IngestResult, error) {
	raw, err := s.importer.Parse(body, smeID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidStatement, err)
	}
	return s.IngestTransactions(ctx, raw)
}

// Train fits a new model on every stored transaction, persists it and makes it live
func (s *Service) Train(ctx context.Context) (*TrainResult, error) {
	s.trainMu.Lock()
	defer s.trainMu.Unlock()

	result, err := s.train(ctx)
	if err != nil {
		metrics.TrainingRunsTotal.WithLabelValues("failed").Inc()
		return nil, err
	}
	metrics.TrainingRunsTotal.WithLabelValues("succeeded").Inc()
	return result, nil
}

func (s *Service) train(ctx context.Context) (*TrainResult, error) {
	raw, err := s.store.ListTransactions(ctx, "")
	if err != nil {
		return nil, err
	}

	rows := s.builder.Build(raw)
	labeled, report := s.labeler.Label(rows)
	if report.Patched {
		metrics.LabelPatchesTotal.Inc()
	}

	bundle, err := s.trainer.Train(labeled)
	if err != nil {
		return nil, err
	}
	bundle.Summary.LabelsPatched = report.Patched

	payload, err := risk.Encode(bundle, s.config.ModelSigningKey)
	if err != nil {
		return nil, err
	}
	// The file goes first so a failed write never leaves a stored bundle
	// that was never served.
	if err := WriteModelFile(s.config.ModelPath, payload); err != nil {
		return nil, err
	}
	if err := s.store.SaveBundle(ctx, bundle.Version, bundle.TrainedAt, payload); err != nil {
		return nil, err
	}
	if _, err := s.holder.Swap(bundle); err != nil {
		return nil, err
	}

	s.log.Infof("Model %s is live", bundle.Version)
	return &TrainResult{
		Version:       bundle.Version,
		TrainedAt:     bundle.TrainedAt,
		Rows:          bundle.Summary.Rows,
		Positives:     bundle.Summary.Positives,
		Negatives:     bundle.Summary.Negatives,
		LabelsPatched: bundle.Summary.LabelsPatched,
		Iterations:    bundle.Classifier.Iterations,
		Converged:     bundle.Classifier.Converged,
	}, nil
}

// ReloadModel loads the model file, then the latest stored bundle when it is
// newer, and publishes the result. On error the live model is left unchanged.
func (s *Service) ReloadModel(ctx context.Context) (string, error) {
	var best *risk.Bundle

	data, err := os.ReadFile(s.config.ModelPath)
	switch {
	case err == nil:
		b, err := risk.Decode(data, s.config.ModelSigningKey)
		if err != nil {
			return "", fmt.Errorf("failed to load model file %s: %w", s.config.ModelPath, err)
		}
		best = b
	case !errors.Is(err, os.ErrNotExist):
		return "", fmt.Errorf("failed to read model file: %w", err)
	}

	payload, err := s.store.LatestBundle(ctx)
	switch {
	case err == nil:
		b, err := risk.Decode(payload, s.config.ModelSigningKey)
		if err != nil {
			return "", fmt.Errorf("failed to load stored model: %w", err)
		}
		if best == nil || b.TrainedAt.After(best.TrainedAt) {
			best = b
		}
	case !errors.Is(err, repository.ErrNotFound):
		return "", err
	}

	if best == nil {
		return "", risk.ErrModelNotLoaded
	}
	if _, err := s.holder.Swap(best); err != nil {
		return "", err
	}
	s.log.Infof("Model %s loaded", best.Version)
	return best.Version, nil
}

// ScoreSME scores every month of an SME's history. Fresh results are stored,
// cached, and trigger an alert when the latest month is High Risk.
func (s *Service) ScoreSME(ctx context.Context, smeID string) ([]models.ScoredRow, error) {
	bundle, err := s.holder.Load()
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if rows, ok := s.cache.Get(ctx, smeID, bundle.Version); ok {
			return rows, nil
		}
	}

	raw, err := s.store.ListTransactions(ctx, smeID)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, ErrSMENotFound
	}

	scored, err := risk.Score(bundle, s.builder.Build(raw))
	if err != nil {
		return nil, err
	}
	for _, r := range scored {
		metrics.ScoresTotal.WithLabelValues(string(r.RiskBucket)).Inc()
	}

	if err := s.store.SaveScores(ctx, scored); err != nil {
		return nil, err
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, smeID, bundle.Version, scored); err != nil {
			s.log.Warnf("Failed to cache scores for %s: %v", smeID, err)
		}
	}

	latest := scored[len(scored)-1]
	if latest.RiskBucket == models.BucketHigh && s.notifier != nil {
		if err := s.notifier.SendRiskAlert(latest); err != nil {
			s.log.Errorf("Risk alert for %s not delivered: %v", smeID, err)
		}
	}
	return scored, nil
}

// RescoreAll scores every stored SME and returns how many were scored
func (s *Service) RescoreAll(ctx context.Context) (int, error) {
	ids, err := s.store.ListSMEs(ctx)
	if err != nil {
		return 0, err
	}
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, ids...); err != nil {
			s.log.Warnf("Failed to invalidate cached scores: %v", err)
		}
	}

	n := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		if _, err := s.ScoreSME(ctx, id); err != nil {
			s.log.WithField("sme_id", id).Errorf("Failed to score SME: %v", err)
			continue
		}
		n++
	}
	return n, nil
}

// Predict scores a single feature map. A nil value counts as a missing feature.
func (s *Service) Predict(values map[string]*float64) (*models.PredictionResponse, error) {
	bundle, err := s.holder.Load()
	if err != nil {
		return nil, err
	}

	vec, err := risk.VectorFromMap(values)
	if err != nil {
		metrics.SchemaErrorsTotal.Inc()
		return nil, err
	}

	_, score, err := risk.ScoreVector(bundle, vec)
	if err != nil {
		return nil, err
	}
	bucket := models.BucketForScore(score)
	metrics.ScoresTotal.WithLabelValues(string(bucket)).Inc()

	return &models.PredictionResponse{
		RiskScore:    score,
		RiskBucket:   bucket,
		ModelVersion: bundle.Version,
	}, nil
}

// Simulate applies what-if adjustments to the SME's latest month
func (s *Service) Simulate(ctx context.Context, smeID string, req models.SimulationRequest) (*models.SimulationResult, error) {
	if err := validateSimulation(req); err != nil {
		return nil, err
	}

	bundle, err := s.holder.Load()
	if err != nil {
		return nil, err
	}

	raw, err := s.store.ListTransactions(ctx, smeID)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, ErrSMENotFound
	}
	row, ok := features.Latest(s.builder.Build(raw), smeID)
	if !ok {
		return nil, risk.ErrEmptyInput
	}

	_, baseline, err := risk.ScoreVector(bundle, row.Vector())
	if err != nil {
		return nil, err
	}
	simulated, err := risk.Simulate(bundle, row, req.CollectionImprovement, req.ExpenseReduction)
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"sme_id":    smeID,
		"month":     row.Month,
		"baseline":  baseline,
		"simulated": simulated,
	}).Debug("What-if simulation")

	return &models.SimulationResult{
		SMEID:           smeID,
		Month:           row.Month,
		Request:         req,
		BaselineScore:   baseline,
		BaselineBucket:  models.BucketForScore(baseline),
		SimulatedScore:  simulated,
		SimulatedBucket: models.BucketForScore(simulated),
		ModelVersion:    bundle.Version,
	}, nil
}

// IssueToken authenticates an API client and returns a JWT token
func (s *Service) IssueToken(clientID, secret string) (string, error) {
	if clientID != s.config.APIClientID || s.config.APIClientSecretHash == "" {
		return "", ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(s.config.APIClientSecretHash), []byte(secret)); err != nil {
		return "", ErrInvalidCredentials
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   clientID,
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
	})
	tokenString, err := token.SignedString([]byte(s.config.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}

	s.log.Infof("Token issued for client %s", clientID)
	return tokenString, nil
}

// WriteModelFile replaces the model file at path in a single rename
func WriteModelFile(path string, payload []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".model-*.json")
	if err != nil {
		return fmt.Errorf("failed to create model file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write model file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write model file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace model file: %w", err)
	}
	return nil
}

func validateSimulation(req models.SimulationRequest) error {
	ci, er := req.CollectionImprovement, req.ExpenseReduction
	if math.IsNaN(ci) || math.IsInf(ci, 0) || math.IsNaN(er) || math.IsInf(er, 0) {
		return fmt.Errorf("percentages must be finite: %w", ErrInvalidSimulation)
	}
	if ci < -100 {
		return fmt.Errorf("collection_improvement below -100%%: %w", ErrInvalidSimulation)
	}
	if er > 100 {
		return fmt.Errorf("expense_reduction above 100%%: %w", ErrInvalidSimulation)
	}
	return nil
}

func smeIDs(txns []models.Transaction) []string {
	seen := make(map[string]struct{})
	for _, t := range txns {
		seen[t.SMEID] = struct{}{}
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
