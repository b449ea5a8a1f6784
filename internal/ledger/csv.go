// Package ledger reads and writes transaction ledgers as CSV.
package ledger

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/Dan9191/cashflow-risk/internal/models"
)

var header = []string{"sme_id", "transaction_date", "amount", "transaction_type", "balance"}

// Read parses a CSV ledger. Columns are located by header name; sme_id,
// transaction_date and amount are required, transaction_type and balance
// are optional. Values are kept as text for the feature builder to coerce.
func Read(r io.Reader) ([]models.RawTransaction, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	head, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("empty ledger")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read ledger header: %w", err)
	}

	cols := make(map[string]int, len(head))
	for i, name := range head {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range header[:3] {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("ledger is missing column %q", required)
		}
	}

	var out []models.RawTransaction
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read ledger line %d: %w", line, err)
		}

		t := models.RawTransaction{
			SMEID:           field(rec, cols, "sme_id"),
			TransactionDate: field(rec, cols, "transaction_date"),
			Amount:          models.RawAmount(field(rec, cols, "amount")),
			TransactionType: field(rec, cols, "transaction_type"),
		}
		if b := field(rec, cols, "balance"); b != "" {
			if v, err := strconv.ParseFloat(b, 64); err == nil {
				t.Balance = &v
			}
		}
		out = append(out, t)
	}
	return out, nil
}

// Write emits a ledger with the full five-column header
func Write(w io.Writer, txns []models.RawTransaction) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write ledger header: %w", err)
	}
	for _, t := range txns {
		balance := ""
		if t.Balance != nil {
			balance = strconv.FormatFloat(*t.Balance, 'f', -1, 64)
		}
		if err := cw.Write([]string{t.SMEID, t.TransactionDate, string(t.Amount), t.TransactionType, balance}); err != nil {
			return fmt.Errorf("failed to write ledger row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func field(rec []string, cols map[string]int, name string) string {
	i, ok := cols[name]
	if !ok || i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}
