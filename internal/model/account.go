package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// FileRecord is one entry in an account's import history.
type FileRecord struct {
	ImportedAt       time.Time
	Filename         string
	Digest           string // sha256 of the raw file bytes
	TransactionCount int
}

// Account is the ledger state for one source account.
type Account struct {
	Balance     *decimal.Decimal
	BalanceDate *time.Time
	LastImport  *time.Time
	Digests     map[string]struct{}
	Name        string
	Number      string
	Currency    string
	Files       []FileRecord
}

// NewAccount returns an empty account ready for its first import.
func NewAccount(name string) *Account {
	return &Account{
		Name:     name,
		Currency: DefaultCurrency,
		Digests:  make(map[string]struct{}),
	}
}

// HasFile reports whether a file with the given content digest was imported.
func (a *Account) HasFile(digest string) bool {
	for _, f := range a.Files {
		if f.Digest == digest {
			return true
		}
	}
	return false
}

// HasDigest reports whether a transaction digest was already absorbed.
func (a *Account) HasDigest(digest string) bool {
	_, ok := a.Digests[digest]
	return ok
}

// Clone returns a deep copy so callers can stage changes without touching a.
func (a *Account) Clone() *Account {
	out := *a
	out.Files = append([]FileRecord(nil), a.Files...)
	out.Digests = make(map[string]struct{}, len(a.Digests))
	for d := range a.Digests {
		out.Digests[d] = struct{}{}
	}
	if a.Balance != nil {
		b := *a.Balance
		out.Balance = &b
	}
	if a.BalanceDate != nil {
		d := *a.BalanceDate
		out.BalanceDate = &d
	}
	if a.LastImport != nil {
		d := *a.LastImport
		out.LastImport = &d
	}
	return &out
}
