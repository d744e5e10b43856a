// Package importer turns bank statement files into normalized transactions
// and drives them through the ledger, classifier and store.
package importer

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/Veraticus/the-budget-must-balance/internal/common"
	"github.com/Veraticus/the-budget-must-balance/internal/model"
	"github.com/shopspring/decimal"
)

// Statement is the parsed content of one file.
type Statement struct {
	Balance      *decimal.Decimal // closing balance, when the format carries one
	BalanceDate  *time.Time
	AccountID    string
	Transactions []model.Transaction
}

// Parser reads one statement format.
type Parser interface {
	Parse(ctx context.Context, data []byte) (*Statement, error)
}

// ParserFor picks a parser from the file extension.
func ParserFor(filename, currency string) (Parser, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv", ".txt":
		return NewCSVParser(currency), nil
	case ".ofx", ".qfx":
		return NewOFXParser(currency), nil
	default:
		return nil, common.NewValidationError("filename", "unsupported file type %q", filepath.Ext(filename))
	}
}

// Parse parses data according to the extension of filename. Every returned
// transaction carries filename as its Source.
func Parse(ctx context.Context, filename string, data []byte, currency string) (*Statement, error) {
	parser, err := ParserFor(filename, currency)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, common.NewValidationError("file", "%s is empty", filename)
	}

	stmt, err := parser.Parse(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(filename), err)
	}
	for i := range stmt.Transactions {
		stmt.Transactions[i].Source = filepath.Base(filename)
	}
	return stmt, nil
}
