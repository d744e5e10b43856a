package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Veraticus/the-budget-must-balance/internal/model"
)

// SaveBill inserts a new bill, or updates it when ID is set.
func (s *SQLiteStorage) SaveBill(ctx context.Context, bill *model.Bill) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if bill == nil {
		return fmt.Errorf("%w: bill", ErrNilParameter)
	}
	if err := bill.Validate(); err != nil {
		return err
	}

	if bill.ID != 0 {
		result, err := s.db.ExecContext(ctx, `
			UPDATE bills SET name = ?, amount = ?, due_date = ?, category = ?,
				recurring = ?, frequency = ?, paid = ?, payment_date = ?
			WHERE id = ?`,
			bill.Name, bill.Amount, bill.DueDate, bill.Category, bill.Recurring,
			string(bill.Frequency), bill.Paid, nullTime(bill.PaymentDate), bill.ID)
		if err != nil {
			return fmt.Errorf("failed to update bill: %w", err)
		}
		return requireAffected(result, "bill")
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO bills (name, amount, due_date, category, recurring, frequency, paid, payment_date)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		bill.Name, bill.Amount, bill.DueDate, bill.Category, bill.Recurring,
		string(bill.Frequency), bill.Paid, nullTime(bill.PaymentDate))
	if err != nil {
		return fmt.Errorf("failed to insert bill: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read bill id: %w", err)
	}
	bill.ID = id
	return nil
}

// GetBills returns all bills ordered by due date.
func (s *SQLiteStorage) GetBills(ctx context.Context) ([]model.Bill, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, amount, due_date, category, recurring, frequency, paid, payment_date
		FROM bills ORDER BY due_date, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query bills: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var bills []model.Bill
	for rows.Next() {
		var (
			b         model.Bill
			frequency string
			paidAt    sql.NullTime
		)
		if err := rows.Scan(&b.ID, &b.Name, &b.Amount, &b.DueDate, &b.Category,
			&b.Recurring, &frequency, &b.Paid, &paidAt); err != nil {
			return nil, fmt.Errorf("failed to scan bill: %w", err)
		}
		b.Frequency = model.Frequency(frequency)
		if paidAt.Valid {
			t := paidAt.Time
			b.PaymentDate = &t
		}
		bills = append(bills, b)
	}
	return bills, rows.Err()
}

// SaveIncome inserts a new income, or updates it when ID is set.
func (s *SQLiteStorage) SaveIncome(ctx context.Context, income *model.Income) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if income == nil {
		return fmt.Errorf("%w: income", ErrNilParameter)
	}
	if err := income.Validate(); err != nil {
		return err
	}

	if income.ID != 0 {
		result, err := s.db.ExecContext(ctx, `
			UPDATE incomes SET person = ?, source = ?, amount = ?, date = ?,
				recurring = ?, frequency = ?, category = ?
			WHERE id = ?`,
			income.Person, income.Source, income.Amount, income.Date, income.Recurring,
			string(income.Frequency), income.Category, income.ID)
		if err != nil {
			return fmt.Errorf("failed to update income: %w", err)
		}
		return requireAffected(result, "income")
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO incomes (person, source, amount, date, recurring, frequency, category)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		income.Person, income.Source, income.Amount, income.Date, income.Recurring,
		string(income.Frequency), income.Category)
	if err != nil {
		return fmt.Errorf("failed to insert income: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read income id: %w", err)
	}
	income.ID = id
	return nil
}

// GetIncomes returns all incomes ordered by date.
func (s *SQLiteStorage) GetIncomes(ctx context.Context) ([]model.Income, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, person, source, amount, date, recurring, frequency, category
		FROM incomes ORDER BY date, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query incomes: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var incomes []model.Income
	for rows.Next() {
		var (
			inc       model.Income
			frequency string
		)
		if err := rows.Scan(&inc.ID, &inc.Person, &inc.Source, &inc.Amount, &inc.Date,
			&inc.Recurring, &frequency, &inc.Category); err != nil {
			return nil, fmt.Errorf("failed to scan income: %w", err)
		}
		inc.Frequency = model.Frequency(frequency)
		incomes = append(incomes, inc)
	}
	return incomes, rows.Err()
}
