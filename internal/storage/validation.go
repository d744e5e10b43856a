// Package storage provides the SQLite persistence layer for ledger state,
// transactions, the classifier corpus and the forecast plan.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Veraticus/the-budget-must-balance/internal/model"
)

// Validation errors.
var (
	ErrNilContext   = errors.New("context cannot be nil")
	ErrEmptyString  = errors.New("string parameter cannot be empty")
	ErrNilParameter = errors.New("parameter cannot be nil")
	ErrEmptySlice   = errors.New("slice cannot be empty")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateTransactions checks every row before a batch insert.
func validateTransactions(transactions []model.Transaction) error {
	if transactions == nil {
		return fmt.Errorf("%w: transactions", ErrNilParameter)
	}
	if len(transactions) == 0 {
		return fmt.Errorf("%w: transactions", ErrEmptySlice)
	}

	for i := range transactions {
		if err := transactions[i].Validate(); err != nil {
			return fmt.Errorf("transaction at index %d: %w", i, err)
		}
		if err := validateString(transactions[i].AccountName, "account name"); err != nil {
			return fmt.Errorf("transaction at index %d: %w", i, err)
		}
	}
	return nil
}

// validateRules checks a rule table before it replaces the stored one.
func validateRules(rules []model.CategoryRule) error {
	seen := make(map[string]struct{}, len(rules))
	for i := range rules {
		if err := rules[i].Validate(); err != nil {
			return fmt.Errorf("rule at index %d: %w", i, err)
		}
		if _, dup := seen[rules[i].ID]; dup {
			return fmt.Errorf("%w: duplicate id %s", model.ErrInvalidRule, rules[i].ID)
		}
		seen[rules[i].ID] = struct{}{}
	}
	return nil
}
