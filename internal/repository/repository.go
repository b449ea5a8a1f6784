package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Dan9191/cashflow-risk/internal/models"
	"github.com/lib/pq"
)

// ErrNotFound is returned when a lookup matches no rows
var ErrNotFound = errors.New("not found")

const schema = "cashflow"

// Repository provides database operations
type Repository struct {
	db *sql.DB
}

// NewRepository initializes a new repository
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// SaveTransactions bulk-loads transactions with COPY. Derived balances are
// not stored; they are recomputed from the full history on read.
func (r *Repository) SaveTransactions(ctx context.Context, txns []models.Transaction) error {
	if len(txns) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, pq.CopyInSchema(schema, "transactions",
		"sme_id", "transaction_date", "amount", "transaction_type", "balance"))
	if err != nil {
		return fmt.Errorf("failed to prepare copy: %w", err)
	}

	for _, t := range txns {
		var balance sql.NullFloat64
		if !t.BalanceDerived {
			balance = sql.NullFloat64{Float64: t.Balance, Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, t.SMEID, t.Date, t.Amount, t.Type, balance); err != nil {
			stmt.Close()
			return fmt.Errorf("failed to copy transaction: %w", err)
		}
	}
	if _, err := stmt.ExecContext(ctx); err != nil {
		stmt.Close()
		return fmt.Errorf("failed to flush copy: %w", err)
	}
	if err := stmt.Close(); err != nil {
		return fmt.Errorf("failed to close copy: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transactions: %w", err)
	}
	return nil
}

// ListTransactions returns stored transactions in ledger form, ordered by SME
// and date. An empty smeID returns every SME.
func (r *Repository) ListTransactions(ctx context.Context, smeID string) ([]models.RawTransaction, error) {
	query := `
		SELECT sme_id, transaction_date, amount::text, transaction_type, balance
		FROM cashflow.transactions
		WHERE ($1 = '' OR sme_id = $1)
		ORDER BY sme_id, transaction_date, id`
	rows, err := r.db.QueryContext(ctx, query, smeID)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var out []models.RawTransaction
	for rows.Next() {
		var (
			t       models.RawTransaction
			date    time.Time
			amount  string
			balance sql.NullFloat64
		)
		if err := rows.Scan(&t.SMEID, &date, &amount, &t.TransactionType, &balance); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		t.TransactionDate = date.UTC().Format(time.RFC3339Nano)
		t.Amount = models.RawAmount(amount)
		if balance.Valid {
			b := balance.Float64
			t.Balance = &b
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate transactions: %w", err)
	}
	return out, nil
}

// SaveBundle stores an encoded model bundle
func (r *Repository) SaveBundle(ctx context.Context, version string, trainedAt time.Time, payload []byte) error {
	query := `
		INSERT INTO cashflow.model_bundles (version, trained_at, payload, created_at)
		VALUES ($1, $2, $3, CURRENT_TIMESTAMP)`
	if _, err := r.db.ExecContext(ctx, query, version, trainedAt, payload); err != nil {
		return fmt.Errorf("failed to save model bundle: %w", err)
	}
	return nil
}

// LatestBundle returns the most recently trained encoded bundle
func (r *Repository) LatestBundle(ctx context.Context) ([]byte, error) {
	query := `
		SELECT payload
		FROM cashflow.model_bundles
		ORDER BY trained_at DESC
		LIMIT 1`
	var payload []byte
	err := r.db.QueryRowContext(ctx, query).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load model bundle: %w", err)
	}
	return payload, nil
}

// SaveScores upserts scored months
func (r *Repository) SaveScores(ctx context.Context, scored []models.ScoredRow) error {
	if len(scored) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO cashflow.risk_scores
			(sme_id, month, model_version, net_cashflow, risk_probability, risk_score, risk_bucket, scored_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, CURRENT_TIMESTAMP)
		ON CONFLICT (sme_id, month, model_version) DO UPDATE SET
			net_cashflow = EXCLUDED.net_cashflow,
			risk_probability = EXCLUDED.risk_probability,
			risk_score = EXCLUDED.risk_score,
			risk_bucket = EXCLUDED.risk_bucket,
			scored_at = EXCLUDED.scored_at`
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to prepare score upsert: %w", err)
	}
	defer stmt.Close()

	for _, s := range scored {
		if _, err := stmt.ExecContext(ctx, s.SMEID, s.Month, s.ModelVersion, s.NetCashflow,
			s.RiskProbability, s.RiskScore, string(s.RiskBucket)); err != nil {
			return fmt.Errorf("failed to save score for %s: %w", s.Key(), err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit scores: %w", err)
	}
	return nil
}

// ListSMEs returns the distinct SME ids with stored transactions
func (r *Repository) ListSMEs(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT DISTINCT sme_id FROM cashflow.transactions ORDER BY sme_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list SMEs: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan SME id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
