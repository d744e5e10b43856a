package model

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultCurrency is used when a source row carries no currency.
const DefaultCurrency = "SEK"

// Uncategorized is the sentinel category for transactions nothing could place.
const Uncategorized = "Okategoriserad"

// Transaction represents a single bank-statement row.
type Transaction struct {
	Date        time.Time
	Amount      decimal.Decimal // negative for outflows
	Description string
	Currency    string
	AccountName string
	Source      string // file the row was imported from
	Category    string
	Status      ClassificationStatus
	Confidence  float64
	NeedsReview bool
}

// Digest returns the deduplication fingerprint for the transaction. It covers
// date, amount, description and currency only, so the same row imported from
// two different files produces the same digest.
func (t *Transaction) Digest() string {
	currency := t.Currency
	if currency == "" {
		currency = DefaultCurrency
	}
	data := fmt.Sprintf("%s|%s|%s|%s",
		t.Date.Format("2006-01-02"),
		t.Amount.StringFixed(2),
		strings.TrimSpace(t.Description),
		strings.ToUpper(currency))
	sum := sha256.Sum256([]byte(data))
	return hex.EncodeToString(sum[:])
}

// IsExpense reports whether the transaction is an outflow.
func (t *Transaction) IsExpense() bool {
	return t.Amount.IsNegative()
}

// Validate checks the fields a normalized row must carry.
func (t *Transaction) Validate() error {
	if t.Date.IsZero() {
		return fmt.Errorf("%w: missing date", ErrInvalidTransaction)
	}
	if t.Amount.IsZero() {
		return fmt.Errorf("%w: amount cannot be zero", ErrInvalidTransaction)
	}
	if strings.TrimSpace(t.Description) == "" {
		return fmt.Errorf("%w: missing description", ErrInvalidTransaction)
	}
	if t.Confidence < 0 || t.Confidence > 1 {
		return fmt.Errorf("%w: confidence %.2f outside [0,1]", ErrInvalidTransaction, t.Confidence)
	}
	return nil
}
