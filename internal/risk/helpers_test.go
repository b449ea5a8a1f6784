package risk_test

import (
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/Dan9191/cashflow-risk/internal/datagen"
	"github.com/Dan9191/cashflow-risk/internal/features"
	"github.com/Dan9191/cashflow-risk/internal/models"
	"github.com/Dan9191/cashflow-risk/internal/risk"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func fixtureRows(t *testing.T) []models.FeatureRow {
	t.Helper()
	ledger := datagen.New(datagen.Options{Seed: 42, SMEs: 6, Months: 12}).Ledger()
	rows := features.NewBuilder(quietLogger()).Build(ledger)
	require.NotEmpty(t, rows)
	return rows
}

func trainedBundle(t *testing.T) (*risk.Bundle, []models.FeatureRow) {
	t.Helper()
	rows := fixtureRows(t)
	labeled, _ := features.NewLabeler(quietLogger()).Label(rows)
	bundle, err := risk.NewTrainer(quietLogger(), risk.DefaultClassifierConfig()).Train(labeled)
	require.NoError(t, err)
	return bundle, rows
}
