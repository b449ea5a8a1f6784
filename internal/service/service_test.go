package service

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/Dan9191/cashflow-risk/internal/config"
	"github.com/Dan9191/cashflow-risk/internal/datagen"
	"github.com/Dan9191/cashflow-risk/internal/models"
	"github.com/Dan9191/cashflow-risk/internal/repository"
	"github.com/Dan9191/cashflow-risk/internal/risk"
)

type memStore struct {
	mu      sync.Mutex
	txns    []models.Transaction
	bundles [][]byte
	scores  map[string]models.ScoredRow
}

func newMemStore() *memStore {
	return &memStore{scores: make(map[string]models.ScoredRow)}
}

func (m *memStore) SaveTransactions(_ context.Context, txns []models.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.txns = append(m.txns, txns...)
	return nil
}

func (m *memStore) ListTransactions(_ context.Context, smeID string) ([]models.RawTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.RawTransaction
	for _, t := range m.txns {
		if smeID != "" && t.SMEID != smeID {
			continue
		}
		raw := models.RawTransaction{
			SMEID:           t.SMEID,
			TransactionDate: t.Date.Format(time.RFC3339Nano),
			Amount:          models.RawAmount(strconv.FormatFloat(t.Amount, 'f', -1, 64)),
			TransactionType: t.Type,
		}
		if !t.BalanceDerived {
			b := t.Balance
			raw.Balance = &b
		}
		out = append(out, raw)
	}
	return out, nil
}

func (m *memStore) SaveBundle(_ context.Context, _ string, _ time.Time, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bundles = append(m.bundles, payload)
	return nil
}

func (m *memStore) LatestBundle(context.Context) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.bundles) == 0 {
		return nil, repository.ErrNotFound
	}
	return m.bundles[len(m.bundles)-1], nil
}

func (m *memStore) SaveScores(_ context.Context, scored []models.ScoredRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range scored {
		m.scores[s.Key()+"/"+s.ModelVersion] = s
	}
	return nil
}

func (m *memStore) ListSMEs(context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := make(map[string]bool)
	var ids []string
	for _, t := range m.txns {
		if !seen[t.SMEID] {
			seen[t.SMEID] = true
			ids = append(ids, t.SMEID)
		}
	}
	return ids, nil
}

type cached struct {
	version string
	rows    []models.ScoredRow
}

type memCache struct {
	entries     map[string]cached
	hits        int
	invalidated []string
}

func (c *memCache) Get(_ context.Context, smeID, modelVersion string) ([]models.ScoredRow, bool) {
	e, ok := c.entries[smeID]
	if !ok || e.version != modelVersion {
		return nil, false
	}
	c.hits++
	return e.rows, true
}

func (c *memCache) Set(_ context.Context, smeID, modelVersion string, rows []models.ScoredRow) error {
	c.entries[smeID] = cached{version: modelVersion, rows: rows}
	return nil
}

func (c *memCache) Invalidate(_ context.Context, smeIDs ...string) error {
	for _, id := range smeIDs {
		delete(c.entries, id)
	}
	c.invalidated = append(c.invalidated, smeIDs...)
	return nil
}

type recordingNotifier struct {
	alerts []models.ScoredRow
}

func (n *recordingNotifier) SendRiskAlert(row models.ScoredRow) error {
	n.alerts = append(n.alerts, row)
	return nil
}

type fixture struct {
	svc      *Service
	store    *memStore
	cache    *memCache
	notifier *recordingNotifier
	cfg      *config.Config
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)

	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)

	cfg := &config.Config{
		JWTSecret:           "test-secret",
		APIClientID:         "risk-ui",
		APIClientSecretHash: string(hash),
		ModelPath:           filepath.Join(t.TempDir(), "model.json"),
		ModelSigningKey:     "signing-key",
		TrainMaxIter:        1000,
	}
	f := &fixture{
		store:    newMemStore(),
		cache:    &memCache{entries: make(map[string]cached)},
		notifier: &recordingNotifier{},
		cfg:      cfg,
	}
	f.svc = NewService(f.store, f.cache, f.notifier, log, cfg)
	return f
}

func (f *fixture) seed(t *testing.T) {
	t.Helper()
	ledger := datagen.New(datagen.Options{Seed: 42, SMEs: 6, Months: 12}).Ledger()
	_, err := f.svc.IngestTransactions(context.Background(), ledger)
	require.NoError(t, err)
}

func (f *fixture) trained(t *testing.T) *TrainResult {
	t.Helper()
	f.seed(t)
	res, err := f.svc.Train(context.Background())
	require.NoError(t, err)
	return res
}

func TestIngestTransactions(t *testing.T) {
	f := newFixture(t)
	raw := []models.RawTransaction{
		{SMEID: "SME_B", TransactionDate: "2024-01-03", Amount: "100"},
		{SMEID: "SME_A", TransactionDate: "2024-01-04", Amount: "-40"},
		{SMEID: "SME_A", TransactionDate: "not a date", Amount: "10"},
		{SMEID: "SME_A", TransactionDate: "2024-01-05", Amount: "abc"},
		{SMEID: "SME_A", TransactionDate: "2024-01-06", Amount: "1e400"},
	}

	res, err := f.svc.IngestTransactions(context.Background(), raw)
	require.NoError(t, err)
	assert.Equal(t, &IngestResult{Accepted: 2, Dropped: 3}, res)
	assert.Len(t, f.store.txns, 2)
	assert.Equal(t, []string{"SME_A", "SME_B"}, f.cache.invalidated)
}

func TestIngestStatement(t *testing.T) {
	f := newFixture(t)
	body := `<Document><BkToCstmrStmt><Stmt>
		<Ntry><Amt>250.00</Amt><CdtDbtInd>CRDT</CdtDbtInd><BookgDt><Dt>2024-02-01</Dt></BookgDt></Ntry>
		<Ntry><Amt>75.50</Amt><CdtDbtInd>DBIT</CdtDbtInd><BookgDt><Dt>2024-02-02</Dt></BookgDt></Ntry>
	</Stmt></BkToCstmrStmt></Document>`

	res, err := f.svc.IngestStatement(context.Background(), "SME_X", []byte(body))
	require.NoError(t, err)
	assert.Equal(t, 2, res.Accepted)
	require.Len(t, f.store.txns, 2)
	assert.Equal(t, -75.5, f.store.txns[1].Amount)

	_, err = f.svc.IngestStatement(context.Background(), "SME_X", []byte("<broken"))
	assert.Error(t, err)
}

func TestTrain_PublishesAndPersists(t *testing.T) {
	f := newFixture(t)
	assert.Empty(t, f.svc.ModelVersion())

	res := f.trained(t)
	assert.NotEmpty(t, res.Version)
	assert.Equal(t, res.Version, f.svc.ModelVersion())
	assert.Equal(t, res.Rows, res.Positives+res.Negatives)
	require.Len(t, f.store.bundles, 1)

	data, err := os.ReadFile(f.cfg.ModelPath)
	require.NoError(t, err)
	b, err := risk.Decode(data, f.cfg.ModelSigningKey)
	require.NoError(t, err)
	assert.Equal(t, res.Version, b.Version)
}

func TestTrain_NoData(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Train(context.Background())
	assert.ErrorIs(t, err, risk.ErrInsufficientData)
	assert.Empty(t, f.svc.ModelVersion())
}

func TestTrain_ModelFileFailureStoresNothing(t *testing.T) {
	f := newFixture(t)
	f.cfg.ModelPath = filepath.Join(t.TempDir(), "missing", "model.json")
	f.seed(t)

	_, err := f.svc.Train(context.Background())
	assert.ErrorContains(t, err, "failed to create model file")
	assert.Empty(t, f.store.bundles)
	assert.Empty(t, f.svc.ModelVersion())
}

func TestReloadModel(t *testing.T) {
	f := newFixture(t)
	res := f.trained(t)

	log := logrus.New()
	log.SetOutput(io.Discard)
	fresh := NewService(f.store, nil, nil, log, f.cfg)

	version, err := fresh.ReloadModel(context.Background())
	require.NoError(t, err)
	assert.Equal(t, res.Version, version)
	assert.Equal(t, res.Version, fresh.ModelVersion())
}

func TestReloadModel_CorruptFileKeepsLiveModel(t *testing.T) {
	f := newFixture(t)
	res := f.trained(t)

	require.NoError(t, os.WriteFile(f.cfg.ModelPath, []byte(`{"bundle":`), 0o600))
	_, err := f.svc.ReloadModel(context.Background())
	assert.ErrorIs(t, err, risk.ErrInvalidBundle)
	assert.Equal(t, res.Version, f.svc.ModelVersion())
}

func TestReloadModel_NothingPersisted(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.ReloadModel(context.Background())
	assert.ErrorIs(t, err, risk.ErrModelNotLoaded)
}

func TestScoreSME(t *testing.T) {
	f := newFixture(t)
	res := f.trained(t)
	ctx := context.Background()

	scored, err := f.svc.ScoreSME(ctx, "SME_001")
	require.NoError(t, err)
	require.Len(t, scored, 12)
	for _, r := range scored {
		assert.Equal(t, "SME_001", r.SMEID)
		assert.Equal(t, res.Version, r.ModelVersion)
		assert.GreaterOrEqual(t, r.RiskScore, 0.0)
		assert.LessOrEqual(t, r.RiskScore, 100.0)
		assert.Equal(t, models.BucketForScore(r.RiskScore), r.RiskBucket)
	}
	assert.Len(t, f.store.scores, 12)

	wantAlerts := 0
	if scored[len(scored)-1].RiskBucket == models.BucketHigh {
		wantAlerts = 1
	}
	assert.Len(t, f.notifier.alerts, wantAlerts)

	again, err := f.svc.ScoreSME(ctx, "SME_001")
	require.NoError(t, err)
	assert.Equal(t, scored, again)
	assert.Equal(t, 1, f.cache.hits)
	assert.Len(t, f.notifier.alerts, wantAlerts)
}

func TestScoreSME_Errors(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.ScoreSME(context.Background(), "SME_001")
	assert.ErrorIs(t, err, risk.ErrModelNotLoaded)

	f.trained(t)
	_, err = f.svc.ScoreSME(context.Background(), "SME_404")
	assert.ErrorIs(t, err, ErrSMENotFound)
}

func TestRescoreAll(t *testing.T) {
	f := newFixture(t)
	f.trained(t)

	n, err := f.svc.RescoreAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 6, n)
	assert.Len(t, f.store.scores, 6*12)
}

func featureMap(row models.FeatureRow) map[string]*float64 {
	vec := row.Vector()
	m := make(map[string]*float64, len(vec))
	for i, name := range models.FeatureNames {
		v := vec[i]
		m[name] = &v
	}
	return m
}

func TestPredict(t *testing.T) {
	f := newFixture(t)
	f.trained(t)
	ctx := context.Background()

	scored, err := f.svc.ScoreSME(ctx, "SME_002")
	require.NoError(t, err)
	latest := scored[len(scored)-1]

	resp, err := f.svc.Predict(featureMap(latest.FeatureRow))
	require.NoError(t, err)
	assert.Equal(t, latest.RiskScore, resp.RiskScore)
	assert.Equal(t, latest.RiskBucket, resp.RiskBucket)
	assert.Nil(t, resp.ExpectedLoss)
}

func TestPredict_MissingFeature(t *testing.T) {
	f := newFixture(t)
	f.trained(t)

	tests := []struct {
		name   string
		mutate func(map[string]*float64)
	}{
		{"absent", func(m map[string]*float64) { delete(m, models.FeatureSalesVolatility) }},
		{"null", func(m map[string]*float64) { m[models.FeatureSalesVolatility] = nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			values := featureMap(models.FeatureRow{})
			tt.mutate(values)

			_, err := f.svc.Predict(values)
			var schemaErr *risk.SchemaError
			require.True(t, errors.As(err, &schemaErr))
			assert.Equal(t, []string{models.FeatureSalesVolatility}, schemaErr.Missing)
		})
	}
}

func TestPredict_NoModel(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Predict(featureMap(models.FeatureRow{}))
	assert.ErrorIs(t, err, risk.ErrModelNotLoaded)
}

func TestSimulate(t *testing.T) {
	f := newFixture(t)
	f.trained(t)
	ctx := context.Background()

	scored, err := f.svc.ScoreSME(ctx, "SME_003")
	require.NoError(t, err)
	latest := scored[len(scored)-1]

	res, err := f.svc.Simulate(ctx, "SME_003", models.SimulationRequest{CollectionImprovement: 10, ExpenseReduction: 5})
	require.NoError(t, err)
	assert.Equal(t, latest.Month, res.Month)
	assert.Equal(t, latest.RiskScore, res.BaselineScore)
	assert.Equal(t, latest.RiskBucket, res.BaselineBucket)
	assert.Equal(t, models.BucketForScore(res.SimulatedScore), res.SimulatedBucket)

	want, err := risk.Simulate(mustBundle(t, f), latest.FeatureRow, 10, 5)
	require.NoError(t, err)
	assert.Equal(t, want, res.SimulatedScore)
}

func mustBundle(t *testing.T, f *fixture) *risk.Bundle {
	t.Helper()
	b, err := f.svc.holder.Load()
	require.NoError(t, err)
	return b
}

func TestSimulate_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name string
		req  models.SimulationRequest
	}{
		{"expense reduction above 100", models.SimulationRequest{ExpenseReduction: 150}},
		{"collection below -100", models.SimulationRequest{CollectionImprovement: -101}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Simulate(ctx, "SME_001", tt.req)
			assert.ErrorIs(t, err, ErrInvalidSimulation)
		})
	}

	_, err := f.svc.Simulate(ctx, "SME_001", models.SimulationRequest{})
	assert.ErrorIs(t, err, risk.ErrModelNotLoaded)

	f.trained(t)
	_, err = f.svc.Simulate(ctx, "SME_404", models.SimulationRequest{})
	assert.ErrorIs(t, err, ErrSMENotFound)
}

func TestIssueToken(t *testing.T) {
	f := newFixture(t)

	token, err := f.svc.IssueToken("risk-ui", "s3cret")
	require.NoError(t, err)

	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return []byte(f.cfg.JWTSecret), nil
	})
	require.NoError(t, err)
	assert.True(t, parsed.Valid)
	assert.Equal(t, "risk-ui", claims.Subject)

	tests := []struct {
		name, clientID, secret string
	}{
		{"wrong secret", "risk-ui", "nope"},
		{"unknown client", "other", "s3cret"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.IssueToken(tt.clientID, tt.secret)
			assert.ErrorIs(t, err, ErrInvalidCredentials)
		})
	}
}

func TestWriteModelFile_Replaces(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.json")
	require.NoError(t, WriteModelFile(path, []byte("one")))
	require.NoError(t, WriteModelFile(path, []byte("two")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "two", string(data))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
