package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version that the application expects.
// If the database cannot be migrated to this version, it's a fatal error.
const ExpectedSchemaVersion = 3

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

func execAll(tx *sql.Tx, queries []string) error {
	for _, query := range queries {
		if _, err := tx.Exec(query); err != nil {
			return fmt.Errorf("failed to execute query: %w", err)
		}
	}
	return nil
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Ledger and transactions",
		Up: func(tx *sql.Tx) error {
			return execAll(tx, []string{
				`CREATE TABLE IF NOT EXISTS accounts (
					name TEXT PRIMARY KEY,
					number TEXT NOT NULL DEFAULT '',
					currency TEXT NOT NULL DEFAULT 'SEK',
					balance TEXT,
					balance_date DATETIME,
					last_import DATETIME,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,

				`CREATE TABLE IF NOT EXISTS imported_files (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					account_name TEXT NOT NULL,
					filename TEXT NOT NULL,
					digest TEXT NOT NULL,
					imported_at DATETIME NOT NULL,
					transaction_count INTEGER NOT NULL DEFAULT 0,
					UNIQUE(account_name, digest)
				)`,
				`CREATE INDEX idx_imported_files_account ON imported_files(account_name)`,

				`CREATE TABLE IF NOT EXISTS transaction_digests (
					account_name TEXT NOT NULL,
					digest TEXT NOT NULL,
					PRIMARY KEY (account_name, digest)
				)`,

				`CREATE TABLE IF NOT EXISTS transactions (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					account_name TEXT NOT NULL,
					digest TEXT NOT NULL,
					date DATETIME NOT NULL,
					amount TEXT NOT NULL,
					description TEXT NOT NULL,
					currency TEXT NOT NULL DEFAULT 'SEK',
					source TEXT NOT NULL DEFAULT '',
					category TEXT NOT NULL DEFAULT '',
					status TEXT NOT NULL DEFAULT 'UNCLASSIFIED',
					confidence REAL NOT NULL DEFAULT 0,
					needs_review INTEGER NOT NULL DEFAULT 0,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					UNIQUE(account_name, digest)
				)`,
				`CREATE INDEX idx_transactions_date ON transactions(date)`,
				`CREATE INDEX idx_transactions_category ON transactions(category)`,
			})
		},
	},
	{
		Version:     2,
		Description: "Classifier rules, training corpus and model metadata",
		Up: func(tx *sql.Tx) error {
			return execAll(tx, []string{
				`CREATE TABLE IF NOT EXISTS category_rules (
					position INTEGER PRIMARY KEY,
					id TEXT UNIQUE NOT NULL,
					name TEXT NOT NULL DEFAULT '',
					confidence REAL NOT NULL
				)`,
				`CREATE TABLE IF NOT EXISTS rule_keywords (
					rule_id TEXT NOT NULL,
					position INTEGER NOT NULL,
					keyword TEXT NOT NULL,
					PRIMARY KEY (rule_id, position)
				)`,

				`CREATE TABLE IF NOT EXISTS training_examples (
					id TEXT PRIMARY KEY,
					description TEXT NOT NULL,
					category TEXT NOT NULL,
					provenance TEXT NOT NULL,
					confidence REAL NOT NULL DEFAULT 1,
					created_at DATETIME NOT NULL
				)`,
				`CREATE INDEX idx_training_examples_category ON training_examples(category)`,

				`CREATE TABLE IF NOT EXISTS model_metadata (
					id INTEGER PRIMARY KEY CHECK (id = 1),
					last_trained DATETIME NOT NULL,
					version INTEGER NOT NULL,
					training_count INTEGER NOT NULL,
					example_count INTEGER NOT NULL
				)`,
			})
		},
	},
	{
		Version:     3,
		Description: "Bills and incomes",
		Up: func(tx *sql.Tx) error {
			return execAll(tx, []string{
				`CREATE TABLE IF NOT EXISTS bills (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					name TEXT NOT NULL,
					amount TEXT NOT NULL,
					due_date DATETIME NOT NULL,
					category TEXT NOT NULL DEFAULT '',
					recurring INTEGER NOT NULL DEFAULT 0,
					frequency TEXT NOT NULL DEFAULT '',
					paid INTEGER NOT NULL DEFAULT 0,
					payment_date DATETIME
				)`,
				`CREATE TABLE IF NOT EXISTS incomes (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					person TEXT NOT NULL,
					source TEXT NOT NULL DEFAULT '',
					amount TEXT NOT NULL,
					date DATETIME NOT NULL,
					recurring INTEGER NOT NULL DEFAULT 0,
					frequency TEXT NOT NULL DEFAULT '',
					category TEXT NOT NULL DEFAULT ''
				)`,
			})
		},
	},
}

// SchemaVersion returns the database's current user_version.
func (s *SQLiteStorage) SchemaVersion(ctx context.Context) (int, error) {
	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get schema version: %w", err)
	}
	return version, nil
}

// Migrate applies all pending migrations.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	currentVersion, err := s.SchemaVersion(ctx)
	if err != nil {
		return err
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, txErr := s.db.BeginTx(ctx, nil)
		if txErr != nil {
			return fmt.Errorf("failed to begin transaction: %w", txErr)
		}

		if upErr := migration.Up(tx); upErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, upErr)
		}

		if _, execErr := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); execErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to update schema version: %w", execErr)
		}

		if commitErr := tx.Commit(); commitErr != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, commitErr)
		}

		slog.Info("Applied migration",
			"version", migration.Version,
			"description", migration.Description)
	}

	finalVersion, err := s.SchemaVersion(ctx)
	if err != nil {
		return err
	}
	if finalVersion != ExpectedSchemaVersion {
		return fmt.Errorf("database schema version mismatch: expected %d, got %d", ExpectedSchemaVersion, finalVersion)
	}

	return nil
}
