// Package camt imports ISO 20022 camt.053 bank statements as ledger records.
package camt

import (
	"fmt"
	"strings"

	"github.com/Dan9191/cashflow-risk/internal/models"
	"github.com/beevik/etree"
	"github.com/sirupsen/logrus"
)

// Importer parses camt.053 statement documents
type Importer struct {
	log *logrus.Logger
}

// NewImporter initializes a new statement importer
func NewImporter(log *logrus.Logger) *Importer {
	return &Importer{log: log}
}

// Parse extracts booked entries from a statement. When smeID is empty the
// account IBAN (or other account id) names the SME. Entry values are passed
// through as text; malformed amounts or dates are dropped later by the
// feature builder like any other ledger row.
func (i *Importer) Parse(rawBody []byte, smeID string) ([]models.RawTransaction, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(rawBody); err != nil {
		return nil, fmt.Errorf("failed to parse XML: %w", err)
	}

	stmts := doc.FindElements("//BkToCstmrStmt/Stmt")
	if len(stmts) == 0 {
		return nil, fmt.Errorf("no camt.053 statement found in XML")
	}

	var out []models.RawTransaction
	skipped := 0
	for _, stmt := range stmts {
		owner := smeID
		if owner == "" {
			owner = accountID(stmt)
		}
		if owner == "" {
			return nil, fmt.Errorf("statement has no account id and no SME id was given")
		}

		for _, ntry := range stmt.FindElements("./Ntry") {
			if !booked(ntry) {
				skipped++
				continue
			}
			out = append(out, models.RawTransaction{
				SMEID:           owner,
				TransactionDate: bookingDate(ntry),
				Amount:          signedAmount(ntry),
				TransactionType: entryType(ntry),
			})
		}
	}

	i.log.WithFields(logrus.Fields{
		"statements": len(stmts),
		"entries":    len(out),
		"skipped":    skipped,
	}).Info("Parsed camt.053 statement")
	return out, nil
}

func accountID(stmt *etree.Element) string {
	for _, path := range []string{"./Acct/Id/IBAN", "./Acct/Id/Othr/Id"} {
		if el := stmt.FindElement(path); el != nil {
			if id := strings.TrimSpace(el.Text()); id != "" {
				return id
			}
		}
	}
	return ""
}

// booked reports whether the entry status is BOOK. Entries without a status are kept.
func booked(ntry *etree.Element) bool {
	sts := ntry.FindElement("./Sts")
	if sts == nil {
		return true
	}
	code := strings.TrimSpace(sts.Text())
	if cd := sts.FindElement("./Cd"); cd != nil {
		code = strings.TrimSpace(cd.Text())
	}
	return code == "" || code == "BOOK"
}

func bookingDate(ntry *etree.Element) string {
	for _, path := range []string{"./BookgDt/Dt", "./BookgDt/DtTm", "./ValDt/Dt", "./ValDt/DtTm"} {
		if el := ntry.FindElement(path); el != nil {
			return strings.TrimSpace(el.Text())
		}
	}
	return ""
}

func signedAmount(ntry *etree.Element) models.RawAmount {
	amt := ntry.FindElement("./Amt")
	if amt == nil {
		return ""
	}
	value := strings.TrimSpace(amt.Text())
	if entryType(ntry) == models.TypeDebit && value != "" && !strings.HasPrefix(value, "-") {
		value = "-" + value
	}
	return models.RawAmount(value)
}

func entryType(ntry *etree.Element) string {
	ind := ntry.FindElement("./CdtDbtInd")
	if ind == nil {
		return ""
	}
	switch strings.TrimSpace(ind.Text()) {
	case "CRDT":
		return models.TypeCredit
	case "DBIT":
		return models.TypeDebit
	}
	return ""
}
