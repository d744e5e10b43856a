// Package service defines the contracts between the core components and
// their persistence collaborators.
package service

import (
	"context"
	"time"

	"github.com/Veraticus/the-budget-must-balance/internal/model"
)

// TransactionFilter defines filtering options for transaction queries.
type TransactionFilter struct {
	StartDate   *time.Time
	EndDate     *time.Time
	AccountName string
	Category    string
	Limit       int
	Offset      int
}

// AccountStore persists ledger state keyed by account name.
type AccountStore interface {
	LoadAccounts(ctx context.Context) ([]*model.Account, error)
	SaveAccount(ctx context.Context, account *model.Account) error
	// CommitImport writes the file record and every digest together or not at all.
	CommitImport(ctx context.Context, account string, record model.FileRecord, digests []string) error
	DeleteFileRecord(ctx context.Context, account, filename string) error
	DeleteAccount(ctx context.Context, account string) error
	ClearAccounts(ctx context.Context) (int, error)
}

// TrainingStore persists the fallback model's corpus and metadata.
type TrainingStore interface {
	AddTrainingExample(ctx context.Context, example *model.TrainingExample) error
	GetTrainingExamples(ctx context.Context) ([]model.TrainingExample, error)
	CountExamplesByCategory(ctx context.Context) (map[string]int, error)
	SaveModelMetadata(ctx context.Context, meta model.ModelMetadata) error
	GetModelMetadata(ctx context.Context) (*model.ModelMetadata, error)
}

// RuleStore persists the keyword rule table in declaration order.
type RuleStore interface {
	GetRules(ctx context.Context) ([]model.CategoryRule, error)
	ReplaceRules(ctx context.Context, rules []model.CategoryRule) error
}

// TransactionStore persists classified transactions.
type TransactionStore interface {
	SaveTransactions(ctx context.Context, transactions []model.Transaction) (int, error)
	GetTransactions(ctx context.Context, filter TransactionFilter) ([]model.Transaction, error)
	UpdateCategory(ctx context.Context, account, digest, category string, confidence float64) error
	SaveClassification(ctx context.Context, txn *model.Transaction) error
}

// PlanStore persists known bills and incomes used by the forecaster.
type PlanStore interface {
	SaveBill(ctx context.Context, bill *model.Bill) error
	GetBills(ctx context.Context) ([]model.Bill, error)
	SaveIncome(ctx context.Context, income *model.Income) error
	GetIncomes(ctx context.Context) ([]model.Income, error)
}

// Storage is the full persistence surface used by the CLI.
type Storage interface {
	AccountStore
	TrainingStore
	RuleStore
	TransactionStore
	PlanStore

	Migrate(ctx context.Context) error
	Backup(ctx context.Context) (string, error)
	Close() error
}

// RetryOptions configures retry behavior.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// DefaultRetryOptions is used for local SQLite contention.
func DefaultRetryOptions() RetryOptions {
	return RetryOptions{
		MaxAttempts:  5,
		InitialDelay: 50 * time.Millisecond,
		MaxDelay:     2 * time.Second,
		Multiplier:   2.0,
	}
}

// ImportResult summarizes one imported file.
type ImportResult struct {
	Account     string
	Filename    string
	Digest      string
	Parsed      int
	New         int
	Duplicates  int
	NeedsReview int
	Skipped     bool // whole file already imported
	DryRun      bool
}
