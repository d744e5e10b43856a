package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Veraticus/the-budget-must-balance/internal/common"
	"github.com/Veraticus/the-budget-must-balance/internal/model"
	"github.com/shopspring/decimal"
)

// LoadAccounts returns every account with its file history and digest set.
func (s *SQLiteStorage) LoadAccounts(ctx context.Context) ([]*model.Account, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT name, number, currency, balance, balance_date, last_import
		FROM accounts
		ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var accounts []*model.Account
	byName := make(map[string]*model.Account)
	for rows.Next() {
		var (
			name, number, currency string
			balance                decimal.NullDecimal
			balanceDate, lastImp   sql.NullTime
		)
		if err := rows.Scan(&name, &number, &currency, &balance, &balanceDate, &lastImp); err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}

		acct := model.NewAccount(name)
		acct.Number = number
		acct.Currency = currency
		if balance.Valid {
			b := balance.Decimal
			acct.Balance = &b
		}
		if balanceDate.Valid {
			d := balanceDate.Time
			acct.BalanceDate = &d
		}
		if lastImp.Valid {
			d := lastImp.Time
			acct.LastImport = &d
		}
		accounts = append(accounts, acct)
		byName[name] = acct
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating accounts: %w", err)
	}

	if err := s.loadFileRecords(ctx, byName); err != nil {
		return nil, err
	}
	if err := s.loadDigests(ctx, byName); err != nil {
		return nil, err
	}

	return accounts, nil
}

func (s *SQLiteStorage) loadFileRecords(ctx context.Context, byName map[string]*model.Account) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT account_name, filename, digest, imported_at, transaction_count
		FROM imported_files
		ORDER BY id`)
	if err != nil {
		return fmt.Errorf("failed to query imported files: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var account string
		var rec model.FileRecord
		if err := rows.Scan(&account, &rec.Filename, &rec.Digest, &rec.ImportedAt, &rec.TransactionCount); err != nil {
			return fmt.Errorf("failed to scan file record: %w", err)
		}
		if acct, ok := byName[account]; ok {
			acct.Files = append(acct.Files, rec)
		}
	}
	return rows.Err()
}

func (s *SQLiteStorage) loadDigests(ctx context.Context, byName map[string]*model.Account) error {
	rows, err := s.db.QueryContext(ctx, `SELECT account_name, digest FROM transaction_digests`)
	if err != nil {
		return fmt.Errorf("failed to query digests: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var account, digest string
		if err := rows.Scan(&account, &digest); err != nil {
			return fmt.Errorf("failed to scan digest: %w", err)
		}
		if acct, ok := byName[account]; ok {
			acct.Digests[digest] = struct{}{}
		}
	}
	return rows.Err()
}

// SaveAccount replaces the stored state of one account with account.
func (s *SQLiteStorage) SaveAccount(ctx context.Context, account *model.Account) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if account == nil {
		return fmt.Errorf("%w: account", ErrNilParameter)
	}
	if err := validateString(account.Name, "account name"); err != nil {
		return err
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := upsertAccountTx(ctx, tx, account); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM imported_files WHERE account_name = ?`, account.Name); err != nil {
			return fmt.Errorf("failed to reset file records: %w", err)
		}
		for _, rec := range account.Files {
			if err := insertFileRecordTx(ctx, tx, account.Name, rec); err != nil {
				return err
			}
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM transaction_digests WHERE account_name = ?`, account.Name); err != nil {
			return fmt.Errorf("failed to reset digests: %w", err)
		}
		digests := make([]string, 0, len(account.Digests))
		for d := range account.Digests {
			digests = append(digests, d)
		}
		return insertDigestsTx(ctx, tx, account.Name, digests)
	})
}

// CommitImport records a file and its transaction digests in one transaction.
func (s *SQLiteStorage) CommitImport(ctx context.Context, account string, record model.FileRecord, digests []string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(account, "account"); err != nil {
		return err
	}
	if err := validateString(record.Digest, "file digest"); err != nil {
		return err
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO accounts (name, currency) VALUES (?, ?)`,
			account, model.DefaultCurrency); err != nil {
			return fmt.Errorf("failed to ensure account: %w", err)
		}

		if err := insertFileRecordTx(ctx, tx, account, record); err != nil {
			return err
		}
		if err := insertDigestsTx(ctx, tx, account, digests); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE accounts SET last_import = ? WHERE name = ?`,
			record.ImportedAt, account); err != nil {
			return fmt.Errorf("failed to update last import: %w", err)
		}
		return nil
	})
}

// DeleteFileRecord removes one file from an account's history. Digests stay.
func (s *SQLiteStorage) DeleteFileRecord(ctx context.Context, account, filename string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx,
		`DELETE FROM imported_files WHERE account_name = ? AND filename = ?`,
		account, filename)
	if err != nil {
		return fmt.Errorf("failed to delete file record: %w", err)
	}
	return requireAffected(result, "file record")
}

// DeleteAccount removes an account's ledger state. Stored transactions stay.
func (s *SQLiteStorage) DeleteAccount(ctx context.Context, account string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `DELETE FROM accounts WHERE name = ?`, account)
		if err != nil {
			return fmt.Errorf("failed to delete account: %w", err)
		}
		if err := requireAffected(result, "account"); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM imported_files WHERE account_name = ?`, account); err != nil {
			return fmt.Errorf("failed to delete file records: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM transaction_digests WHERE account_name = ?`, account); err != nil {
			return fmt.Errorf("failed to delete digests: %w", err)
		}
		return nil
	})
}

// ClearAccounts removes all ledger state and returns how many accounts existed.
func (s *SQLiteStorage) ClearAccounts(ctx context.Context) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}

	var count int
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM accounts`).Scan(&count); err != nil {
			return fmt.Errorf("failed to count accounts: %w", err)
		}
		for _, table := range []string{"imported_files", "transaction_digests", "accounts"} {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
				return fmt.Errorf("failed to clear %s: %w", table, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

func upsertAccountTx(ctx context.Context, tx *sql.Tx, account *model.Account) error {
	currency := account.Currency
	if currency == "" {
		currency = model.DefaultCurrency
	}

	var balance decimal.NullDecimal
	if account.Balance != nil {
		balance = decimal.NewNullDecimal(*account.Balance)
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO accounts (name, number, currency, balance, balance_date, last_import)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			number = excluded.number,
			currency = excluded.currency,
			balance = excluded.balance,
			balance_date = excluded.balance_date,
			last_import = excluded.last_import`,
		account.Name, account.Number, currency, balance,
		nullTime(account.BalanceDate), nullTime(account.LastImport))
	if err != nil {
		return fmt.Errorf("failed to save account %s: %w", account.Name, err)
	}
	return nil
}

func insertFileRecordTx(ctx context.Context, tx *sql.Tx, account string, rec model.FileRecord) error {
	importedAt := rec.ImportedAt
	if importedAt.IsZero() {
		importedAt = time.Now()
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO imported_files (account_name, filename, digest, imported_at, transaction_count)
		VALUES (?, ?, ?, ?, ?)`,
		account, rec.Filename, rec.Digest, importedAt, rec.TransactionCount)
	if err != nil {
		return fmt.Errorf("failed to record file %s: %w", rec.Filename, err)
	}
	return nil
}

func insertDigestsTx(ctx context.Context, tx *sql.Tx, account string, digests []string) error {
	if len(digests) == 0 {
		return nil
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO transaction_digests (account_name, digest) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare digest insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, d := range digests {
		if _, err := stmt.ExecContext(ctx, account, d); err != nil {
			return fmt.Errorf("failed to insert digest: %w", err)
		}
	}
	return nil
}

func requireAffected(result sql.Result, what string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, common.ErrNotFound)
	}
	return nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
