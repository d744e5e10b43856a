package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/Veraticus/the-budget-must-balance/internal/classification"
	"github.com/Veraticus/the-budget-must-balance/internal/common"
	"github.com/Veraticus/the-budget-must-balance/internal/importer"
	"github.com/Veraticus/the-budget-must-balance/internal/ledger"
	"github.com/Veraticus/the-budget-must-balance/internal/model"
	"github.com/Veraticus/the-budget-must-balance/internal/service"
	"github.com/Veraticus/the-budget-must-balance/internal/storage"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

// initStorage opens the configured database and brings its schema up to date.
func initStorage(ctx context.Context) (*storage.SQLiteStorage, error) {
	store, err := storage.NewSQLiteStorage(appConfig.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return store, nil
}

func closeStorage(store *storage.SQLiteStorage) {
	if err := store.Close(); err != nil {
		slog.Error("failed to close storage", "error", err)
	}
}

func initLedger(ctx context.Context, store *storage.SQLiteStorage) (*ledger.Ledger, error) {
	l := ledger.New(store)
	if err := l.LoadAccounts(ctx); err != nil {
		return nil, fmt.Errorf("failed to load accounts: %w", err)
	}
	return l, nil
}

// loadRules picks the rule table: the configured YAML file, then the table
// stored in the database, then the built-in defaults.
func loadRules(ctx context.Context, store *storage.SQLiteStorage) ([]model.CategoryRule, error) {
	if path := appConfig.Classifier.RulesFile; path != "" {
		rules, err := classification.LoadRules(path)
		if err != nil {
			return nil, common.NewUserError(fmt.Sprintf("cannot read rules file %s", path), err)
		}
		return rules, nil
	}

	rules, err := store.GetRules(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load rules: %w", err)
	}
	if len(rules) == 0 {
		return classification.DefaultRules(), nil
	}
	return rules, nil
}

func initClassifier(ctx context.Context, store *storage.SQLiteStorage) (*classification.Classifier, error) {
	table, err := loadRules(ctx, store)
	if err != nil {
		return nil, err
	}
	rules, err := classification.NewRules(table)
	if err != nil {
		return nil, fmt.Errorf("invalid rule table: %w", err)
	}

	cfg := appConfig.Classifier
	c := classification.New(classification.Config{
		RuleConfidence:         cfg.RuleConfidence,
		ReviewThreshold:        cfg.ReviewThreshold,
		MinConfidence:          cfg.MinConfidence,
		MinExamplesPerCategory: cfg.MinExamplesPerCategory,
		AutoTrain:              cfg.AutoTrain,
	}, rules, store)

	if err := c.Restore(ctx); err != nil {
		return nil, fmt.Errorf("failed to restore model: %w", err)
	}
	return c, nil
}

// parseDay accepts the same date formats as statement files.
func parseDay(flag, raw string) (time.Time, error) {
	d, err := importer.ParseDate(raw)
	if err != nil {
		return time.Time{}, common.WrapValidation(flag, err)
	}
	return d, nil
}

func parseMoney(flag, raw string) (decimal.Decimal, error) {
	d, err := importer.ParseAmount(raw)
	if err != nil {
		return decimal.Zero, common.WrapValidation(flag, err)
	}
	return d, nil
}

// parseNamedAmounts reads "Name=Amount" pairs.
func parseNamedAmounts(flag string, pairs []string) (map[string]decimal.Decimal, error) {
	out := make(map[string]decimal.Decimal, len(pairs))
	for _, pair := range pairs {
		name, raw, ok := strings.Cut(pair, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, common.NewValidationError(flag, "expected Name=Amount, got %q", pair)
		}
		amount, err := parseMoney(flag, raw)
		if err != nil {
			return nil, err
		}
		out[name] = amount
	}
	return out, nil
}

// monthFilter selects the calendar month containing t.
func monthFilter(t time.Time) service.TransactionFilter {
	start := model.MonthStart(t)
	end := start.AddDate(0, 1, 0)
	return service.TransactionFilter{StartDate: &start, EndDate: &end}
}

func out(cmd *cobra.Command) io.Writer {
	return cmd.OutOrStdout()
}

func printLine(cmd *cobra.Command, a ...any) {
	_, _ = fmt.Fprintln(out(cmd), a...)
}
