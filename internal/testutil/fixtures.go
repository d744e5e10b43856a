package testutil

import (
	"time"

	"github.com/Veraticus/the-budget-must-balance/internal/model"
	"github.com/shopspring/decimal"
)

// SwedishRules returns a small rule table in a fixed declaration order.
func SwedishRules() []model.CategoryRule {
	return []model.CategoryRule{
		{ID: "Mat", Keywords: []string{"ica", "coop", "willys", "hemköp"}, Confidence: 0.95},
		{ID: "Transport", Keywords: []string{"sl access", "circle k", "uber"}, Confidence: 0.95},
		{ID: "Boende", Keywords: []string{"hyra", "vattenfall"}, Confidence: 0.95},
		{ID: "Inkomst", Keywords: []string{"lön"}, Confidence: 0.95},
	}
}

// Example builds a manual training example.
func Example(description, category string) model.TrainingExample {
	return model.TrainingExample{
		Description: description,
		Category:    category,
		Provenance:  model.ProvenanceManual,
		Confidence:  1,
	}
}

// Date returns midnight UTC on the given day.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// Txn builds a SEK transaction from a decimal string amount.
func Txn(date time.Time, amount, description string) model.Transaction {
	return model.Transaction{
		Date:        date,
		Amount:      decimal.RequireFromString(amount),
		Description: description,
		Currency:    model.DefaultCurrency,
	}
}

// StatementRows returns the three-row November statement used across tests.
func StatementRows() []model.Transaction {
	return []model.Transaction{
		Txn(Date(2025, 11, 1), "-350.50", "ICA Maxi"),
		Txn(Date(2025, 11, 2), "-120.00", "Circle K"),
		Txn(Date(2025, 11, 3), "25000.00", "Lön"),
	}
}

// StatementCSV is StatementRows in the bank's CSV export format.
const StatementCSV = "Bokföringsdatum;Belopp;Rubrik\n" +
	"2025-11-01;-350,50;ICA Maxi\n" +
	"2025-11-02;-120,00;Circle K\n" +
	"2025-11-03;25 000,00;Lön\n"
