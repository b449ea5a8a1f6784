package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/Dan9191/cashflow-risk/internal/datagen"
	"github.com/Dan9191/cashflow-risk/internal/features"
	"github.com/Dan9191/cashflow-risk/internal/ledger"
	"github.com/Dan9191/cashflow-risk/internal/models"
	"github.com/Dan9191/cashflow-risk/internal/risk"
	"github.com/Dan9191/cashflow-risk/internal/service"
)

func generateCmd() *cobra.Command {
	var (
		opts datagen.Options
		out  string
	)
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Write a seeded synthetic ledger as CSV",
		Long: `Generate a reproducible multi-SME ledger with occasional stressed months.

Examples:
  riskctl generate --seed 42 --smes 10 --months 24 --out ledger.csv`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			if out != "" {
				f, err := os.Create(out)
				if err != nil {
					return fmt.Errorf("failed to create %s: %w", out, err)
				}
				defer f.Close()
				w = f
			}
			return ledger.Write(w, datagen.New(opts).Ledger())
		},
	}
	cmd.Flags().Int64Var(&opts.Seed, "seed", 42, "random seed")
	cmd.Flags().IntVar(&opts.SMEs, "smes", 5, "number of SMEs")
	cmd.Flags().IntVar(&opts.Months, "months", 12, "months per SME")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default stdout)")
	return cmd
}

func trainCmd(logger *logrus.Logger) *cobra.Command {
	var (
		input, out, signingKey string
		maxIter                int
	)
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Fit a model bundle from a CSV ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readLedger(input)
			if err != nil {
				return err
			}

			rows := features.NewBuilder(logger).Build(raw)
			labeled, report := features.NewLabeler(logger).Label(rows)

			clf := risk.DefaultClassifierConfig()
			clf.MaxIter = maxIter
			bundle, err := risk.NewTrainer(logger, clf).Train(labeled)
			if err != nil {
				return fmt.Errorf("training failed: %w", err)
			}
			bundle.Summary.LabelsPatched = report.Patched

			payload, err := risk.Encode(bundle, signingKey)
			if err != nil {
				return err
			}
			if err := service.WriteModelFile(out, payload); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "model %s written to %s (rows=%d positives=%d labels_patched=%t converged=%t)\n",
				bundle.Version, out, report.Rows, report.Positives, report.Patched, bundle.Classifier.Converged)
			return nil
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "", "ledger CSV")
	cmd.Flags().StringVarP(&out, "out", "o", "model.json", "model bundle path")
	cmd.Flags().StringVar(&signingKey, "signing-key", os.Getenv("MODEL_SIGNING_KEY"), "HMAC key for the bundle signature")
	cmd.Flags().IntVar(&maxIter, "max-iter", 1000, "solver iteration cap")
	cmd.MarkFlagRequired("input")
	return cmd
}

func scoreCmd(logger *logrus.Logger) *cobra.Command {
	var modelPath, input, smeID, signingKey string
	cmd := &cobra.Command{
		Use:   "score",
		Short: "Score every month of a CSV ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			bundle, rows, err := loadInputs(modelPath, signingKey, input, logger)
			if err != nil {
				return err
			}
			if smeID != "" {
				rows = filterSME(rows, smeID)
			}

			scored, err := risk.Score(bundle, rows)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), scored)
		},
	}
	cmd.Flags().StringVarP(&modelPath, "model", "m", "model.json", "model bundle path")
	cmd.Flags().StringVarP(&input, "input", "i", "", "ledger CSV")
	cmd.Flags().StringVar(&smeID, "sme", "", "only score this SME")
	cmd.Flags().StringVar(&signingKey, "signing-key", os.Getenv("MODEL_SIGNING_KEY"), "HMAC key for the bundle signature")
	cmd.MarkFlagRequired("input")
	return cmd
}

func simulateCmd(logger *logrus.Logger) *cobra.Command {
	var (
		modelPath, input, smeID, signingKey string
		req                                 models.SimulationRequest
	)
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Re-score an SME's latest month under what-if changes",
		Long: `Apply faster collections and lower expenses to the SME's latest month.

Examples:
  riskctl simulate -i ledger.csv --sme SME_003 --collection 10 --expense 5`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			bundle, rows, err := loadInputs(modelPath, signingKey, input, logger)
			if err != nil {
				return err
			}
			row, ok := features.Latest(rows, smeID)
			if !ok {
				return fmt.Errorf("no months for SME %s in %s", smeID, input)
			}

			_, baseline, err := risk.ScoreVector(bundle, row.Vector())
			if err != nil {
				return err
			}
			simulated, err := risk.Simulate(bundle, row, req.CollectionImprovement, req.ExpenseReduction)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), models.SimulationResult{
				SMEID:           smeID,
				Month:           row.Month,
				Request:         req,
				BaselineScore:   baseline,
				BaselineBucket:  models.BucketForScore(baseline),
				SimulatedScore:  simulated,
				SimulatedBucket: models.BucketForScore(simulated),
				ModelVersion:    bundle.Version,
			})
		},
	}
	cmd.Flags().StringVarP(&modelPath, "model", "m", "model.json", "model bundle path")
	cmd.Flags().StringVarP(&input, "input", "i", "", "ledger CSV")
	cmd.Flags().StringVar(&smeID, "sme", "", "SME to simulate")
	cmd.Flags().Float64Var(&req.CollectionImprovement, "collection", 0, "percent increase to 3-month average sales")
	cmd.Flags().Float64Var(&req.ExpenseReduction, "expense", 0, "percent decrease to 3-month average expenses")
	cmd.Flags().StringVar(&signingKey, "signing-key", os.Getenv("MODEL_SIGNING_KEY"), "HMAC key for the bundle signature")
	cmd.MarkFlagRequired("input")
	cmd.MarkFlagRequired("sme")
	return cmd
}

func readLedger(path string) ([]models.RawTransaction, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}
	defer f.Close()
	return ledger.Read(f)
}

func loadInputs(modelPath, signingKey, input string, logger *logrus.Logger) (*risk.Bundle, []models.FeatureRow, error) {
	data, err := os.ReadFile(modelPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read model: %w", err)
	}
	bundle, err := risk.Decode(data, signingKey)
	if err != nil {
		return nil, nil, err
	}
	raw, err := readLedger(input)
	if err != nil {
		return nil, nil, err
	}
	return bundle, features.NewBuilder(logger).Build(raw), nil
}

func filterSME(rows []models.FeatureRow, smeID string) []models.FeatureRow {
	var out []models.FeatureRow
	for _, r := range rows {
		if r.SMEID == smeID {
			out = append(out, r)
		}
	}
	return out
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
