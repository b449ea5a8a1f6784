package models

import (
	"bytes"
	"encoding/json"
	"time"
)

// Transaction types
const (
	TypeCredit = "credit"
	TypeDebit  = "debit"
)

// RawAmount holds an amount exactly as it arrived, either a JSON number or a
// JSON string. Parsing happens later so a malformed value drops only its row.
type RawAmount string

// UnmarshalJSON accepts numbers, strings and null
func (a *RawAmount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*a = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = RawAmount(s)
		return nil
	}
	*a = RawAmount(data)
	return nil
}

// MarshalJSON writes the amount back as a string
func (a RawAmount) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(a))
}

// RawTransaction represents a ledger record as received from a caller or file
type RawTransaction struct {
	SMEID           string    `json:"sme_id"`
	TransactionDate string    `json:"transaction_date"`
	Amount          RawAmount `json:"amount"`
	TransactionType string    `json:"transaction_type,omitempty"`
	Balance         *float64  `json:"balance,omitempty"`
}

// Transaction represents a coerced ledger record. Amount is signed: positive
// for credits, negative for debits.
type Transaction struct {
	SMEID          string    `json:"sme_id"`
	Date           time.Time `json:"transaction_date"`
	Amount         float64   `json:"amount"`
	Type           string    `json:"transaction_type"`
	Balance        float64   `json:"balance"`
	BalanceDerived bool      `json:"balance_derived"`
}
