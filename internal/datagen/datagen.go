// Package datagen generates seeded synthetic SME ledgers for fixtures and demos.
package datagen

import (
	"fmt"
	"math/rand"
	"strconv"
	"time"

	"github.com/Dan9191/cashflow-risk/internal/models"
)

// Options controls the shape of a generated ledger
type Options struct {
	Seed   int64
	SMEs   int
	Months int
	Start  time.Time
	// ShockRate is the probability that a month carries an expense spike
	ShockRate float64
}

// Generator produces ledgers. The same options always produce the same ledger.
type Generator struct {
	opts Options
}

// New initializes a generator, filling unset options with defaults
func New(opts Options) *Generator {
	if opts.SMEs <= 0 {
		opts.SMEs = 5
	}
	if opts.Months <= 0 {
		opts.Months = 12
	}
	if opts.Start.IsZero() {
		opts.Start = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	}
	if opts.ShockRate <= 0 {
		opts.ShockRate = 0.25
	}
	return &Generator{opts: opts}
}

// Ledger returns the generated transactions ordered by SME and date
func (g *Generator) Ledger() []models.RawTransaction {
	rng := rand.New(rand.NewSource(g.opts.Seed))
	var ledger []models.RawTransaction

	for s := 0; s < g.opts.SMEs; s++ {
		smeID := fmt.Sprintf("SME_%03d", s+1)
		revenue := 20000 + rng.Float64()*180000
		costRatio := 0.7 + rng.Float64()*0.35
		trend := -0.03 + rng.Float64()*0.06

		for m := 0; m < g.opts.Months; m++ {
			monthStart := g.opts.Start.AddDate(0, m, 0)
			monthRevenue := revenue * (1 + trend*float64(m)) * (0.85 + rng.Float64()*0.3)
			monthCost := revenue * costRatio * (0.9 + rng.Float64()*0.2)
			if rng.Float64() < g.opts.ShockRate {
				monthCost *= 1.3 + rng.Float64()*0.5
			}

			ledger = append(ledger, split(rng, smeID, monthStart, monthRevenue, 1)...)
			ledger = append(ledger, split(rng, smeID, monthStart, monthCost, -1)...)
		}
	}
	return ledger
}

// split spreads a monthly total over a handful of dated transactions
func split(rng *rand.Rand, smeID string, monthStart time.Time, total float64, sign float64) []models.RawTransaction {
	n := 2 + rng.Intn(5)
	weights := make([]float64, n)
	var sum float64
	for i := range weights {
		weights[i] = 0.5 + rng.Float64()
		sum += weights[i]
	}

	txType := models.TypeCredit
	if sign < 0 {
		txType = models.TypeDebit
	}

	out := make([]models.RawTransaction, n)
	for i, w := range weights {
		amount := sign * total * w / sum
		out[i] = models.RawTransaction{
			SMEID:           smeID,
			TransactionDate: monthStart.AddDate(0, 0, rng.Intn(28)).Format("2006-01-02"),
			Amount:          models.RawAmount(strconv.FormatFloat(amount, 'f', 2, 64)),
			TransactionType: txType,
		}
	}
	return out
}
