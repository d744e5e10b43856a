package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/Veraticus/the-budget-must-balance/internal/model"
	"github.com/Veraticus/the-budget-must-balance/internal/service"
)

// SaveTransactions inserts transactions, ignoring rows already stored for the
// same account and digest. It returns the number of rows inserted.
func (s *SQLiteStorage) SaveTransactions(ctx context.Context, transactions []model.Transaction) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if err := validateTransactions(transactions); err != nil {
		return 0, err
	}

	inserted := 0
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT OR IGNORE INTO transactions (
				account_name, digest, date, amount, description, currency,
				source, category, status, confidence, needs_review
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer func() { _ = stmt.Close() }()

		for i := range transactions {
			txn := &transactions[i]
			currency := txn.Currency
			if currency == "" {
				currency = model.DefaultCurrency
			}
			status := txn.Status
			if status == "" {
				status = model.StatusUnclassified
			}

			result, err := stmt.ExecContext(ctx,
				txn.AccountName, txn.Digest(), txn.Date, txn.Amount, txn.Description, currency,
				txn.Source, txn.Category, string(status), txn.Confidence, txn.NeedsReview)
			if err != nil {
				return fmt.Errorf("failed to insert transaction %q: %w", txn.Description, err)
			}
			if n, _ := result.RowsAffected(); n > 0 {
				inserted++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

// GetTransactions returns stored transactions ordered by date.
func (s *SQLiteStorage) GetTransactions(ctx context.Context, filter service.TransactionFilter) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	var (
		where []string
		args  []any
	)
	if filter.StartDate != nil {
		where = append(where, "date >= ?")
		args = append(args, *filter.StartDate)
	}
	if filter.EndDate != nil {
		where = append(where, "date < ?")
		args = append(args, *filter.EndDate)
	}
	if filter.AccountName != "" {
		where = append(where, "account_name = ?")
		args = append(args, filter.AccountName)
	}
	if filter.Category != "" {
		where = append(where, "category = ?")
		args = append(args, filter.Category)
	}

	query := `SELECT account_name, date, amount, description, currency, source,
		category, status, confidence, needs_review FROM transactions`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY date, id"
	if filter.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, filter.Limit, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var transactions []model.Transaction
	for rows.Next() {
		var (
			txn    model.Transaction
			status string
		)
		if err := rows.Scan(&txn.AccountName, &txn.Date, &txn.Amount, &txn.Description, &txn.Currency,
			&txn.Source, &txn.Category, &status, &txn.Confidence, &txn.NeedsReview); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txn.Status = model.ClassificationStatus(status)
		transactions = append(transactions, txn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}
	return transactions, nil
}

// UpdateCategory marks a stored transaction as manually categorized.
func (s *SQLiteStorage) UpdateCategory(ctx context.Context, account, digest, category string, confidence float64) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(category, "category"); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE transactions
		SET category = ?, confidence = ?, status = ?, needs_review = 0
		WHERE account_name = ? AND digest = ?`,
		category, confidence, string(model.StatusUserModified), account, digest)
	if err != nil {
		return fmt.Errorf("failed to update category: %w", err)
	}
	return requireAffected(result, "transaction")
}

// SaveClassification stores the category fields of txn. Rows a user has
// categorized are left alone and reported as not found.
func (s *SQLiteStorage) SaveClassification(ctx context.Context, txn *model.Transaction) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if txn == nil {
		return fmt.Errorf("transaction cannot be nil")
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE transactions
		SET category = ?, confidence = ?, status = ?, needs_review = ?
		WHERE account_name = ? AND digest = ? AND status != ?`,
		txn.Category, txn.Confidence, string(txn.Status), txn.NeedsReview,
		txn.AccountName, txn.Digest(), string(model.StatusUserModified))
	if err != nil {
		return fmt.Errorf("failed to save classification: %w", err)
	}
	return requireAffected(result, "transaction")
}
