package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ScenarioEntry is a one-off income (positive) or expense (negative) applied
// in a single month of a scenario.
type ScenarioEntry struct {
	Month       time.Time       `yaml:"month"`
	Amount      decimal.Decimal `yaml:"amount"`
	Description string          `yaml:"description"`
	Category    string          `yaml:"category,omitempty"`
}

// Scenario is a named what-if perturbation. It never touches stored data.
type Scenario struct {
	IncomeDeltas  map[string]decimal.Decimal `yaml:"income_deltas,omitempty"`
	ExpenseDeltas map[string]decimal.Decimal `yaml:"expense_deltas,omitempty"`
	Name          string                     `yaml:"name"`
	Description   string                     `yaml:"description,omitempty"`
	OneTime       []ScenarioEntry            `yaml:"one_time,omitempty"`
}

// ForecastPoint is the projection for one month.
type ForecastPoint struct {
	Month      time.Time
	Categories map[string]decimal.Decimal
	Balance    decimal.Decimal
	Income     decimal.Decimal
	Expenses   decimal.Decimal
	Confidence float64
}

// Alert is a warning raised from a forecast or bill list.
type Alert struct {
	Month    time.Time
	Kind     string
	Message  string
	Severity string
}
