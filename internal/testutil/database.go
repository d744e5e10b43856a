// Package testutil provides shared fixtures and an isolated SQLite store for
// package tests.
package testutil

import (
	"context"
	"testing"

	"github.com/Veraticus/the-budget-must-balance/internal/model"
	"github.com/Veraticus/the-budget-must-balance/internal/storage"
)

// TestDB wraps an in-memory store seeded for a single test.
type TestDB struct {
	Storage *storage.SQLiteStorage
	t       *testing.T
}

// TestDBOptions configures what SetupTestDBWithOptions seeds.
type TestDBOptions struct {
	CustomSetup  func(context.Context, *storage.SQLiteStorage) error
	Rules        []model.CategoryRule
	Examples     []model.TrainingExample
	Transactions []model.Transaction
}

// SetupTestDB creates a migrated in-memory database seeded with rules.
// It is closed automatically when the test ends.
//
// Example:
//
//	db := testutil.SetupTestDB(t, testutil.SwedishRules())
func SetupTestDB(t *testing.T, rules []model.CategoryRule) *TestDB {
	t.Helper()
	return SetupTestDBWithOptions(t, TestDBOptions{Rules: rules})
}

// SetupTestDBWithOptions creates a test database with custom seed data.
func SetupTestDBWithOptions(t *testing.T, opts TestDBOptions) *TestDB {
	t.Helper()

	store, err := storage.NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	ctx := context.Background()
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	if len(opts.Rules) > 0 {
		if err := store.ReplaceRules(ctx, opts.Rules); err != nil {
			t.Fatalf("failed to seed rules: %v", err)
		}
	}
	for i := range opts.Examples {
		if err := store.AddTrainingExample(ctx, &opts.Examples[i]); err != nil {
			t.Fatalf("failed to seed example %q: %v", opts.Examples[i].Description, err)
		}
	}
	if len(opts.Transactions) > 0 {
		if _, err := store.SaveTransactions(ctx, opts.Transactions); err != nil {
			t.Fatalf("failed to seed transactions: %v", err)
		}
	}

	if opts.CustomSetup != nil {
		if err := opts.CustomSetup(ctx, store); err != nil {
			t.Fatalf("custom setup failed: %v", err)
		}
	}

	return &TestDB{Storage: store, t: t}
}

// MustAccounts loads all accounts or fails the test.
func (db *TestDB) MustAccounts() []*model.Account {
	db.t.Helper()
	accounts, err := db.Storage.LoadAccounts(context.Background())
	if err != nil {
		db.t.Fatalf("failed to load accounts: %v", err)
	}
	return accounts
}
