// Package forecast projects month-by-month balances from transaction
// history, known bills and incomes, and optional what-if scenarios.
package forecast

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/Veraticus/the-budget-must-balance/internal/common"
	"github.com/Veraticus/the-budget-must-balance/internal/model"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// BaselineScenario is the implicit, unperturbed scenario in comparisons.
const BaselineScenario = "baseline"

// Config tunes the simulator.
type Config struct {
	WindowMonths  int
	DecayRate     float64
	MinConfidence float64
}

// DefaultConfig returns a six month window with 5% monthly decay.
func DefaultConfig() Config {
	return Config{
		WindowMonths:  6,
		DecayRate:     0.05,
		MinConfidence: 0.1,
	}
}

// Inputs is the snapshot a simulation runs against. It is never mutated.
type Inputs struct {
	Now     time.Time
	History []model.Transaction
	Bills   []model.Bill
	Incomes []model.Income
}

// Baseline is the historical monthly average the simulation builds on.
type Baseline struct {
	Categories map[string]decimal.Decimal
	Inflow     decimal.Decimal
	Outflow    decimal.Decimal
	Months     int     // months in the window that had data
	Coverage   float64 // Months / window, capped at 1
}

// Simulator runs forecasts against one Inputs snapshot. It is safe for
// concurrent use.
type Simulator struct {
	now      time.Time
	baseline Baseline
	bills    []model.Bill
	incomes  []model.Income
	cfg      Config
}

// NewSimulator validates the plan entries and computes the baseline.
func NewSimulator(cfg Config, in Inputs) (*Simulator, error) {
	if cfg.WindowMonths <= 0 {
		return nil, common.NewValidationError("window_months", "must be positive, got %d", cfg.WindowMonths)
	}
	if cfg.DecayRate < 0 || cfg.DecayRate >= 1 {
		return nil, common.NewValidationError("decay_rate", "must be within [0,1), got %v", cfg.DecayRate)
	}
	if cfg.MinConfidence < 0 || cfg.MinConfidence > 1 {
		return nil, common.NewValidationError("min_confidence", "must be within [0,1], got %v", cfg.MinConfidence)
	}

	bills := make([]model.Bill, len(in.Bills))
	for i := range in.Bills {
		if err := in.Bills[i].Validate(); err != nil {
			return nil, common.WrapValidation("bill", err)
		}
		bills[i] = in.Bills[i]
	}
	incomes := make([]model.Income, len(in.Incomes))
	for i := range in.Incomes {
		if err := in.Incomes[i].Validate(); err != nil {
			return nil, common.WrapValidation("income", err)
		}
		incomes[i] = in.Incomes[i]
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now()
	}

	return &Simulator{
		cfg:      cfg,
		now:      now,
		bills:    bills,
		incomes:  incomes,
		baseline: computeBaseline(in.History, cfg.WindowMonths),
	}, nil
}

func computeBaseline(history []model.Transaction, window int) Baseline {
	b := Baseline{
		Categories: make(map[string]decimal.Decimal),
		Inflow:     decimal.Zero,
		Outflow:    decimal.Zero,
	}
	if len(history) == 0 {
		return b
	}

	latest := model.MonthStart(history[0].Date)
	for _, txn := range history[1:] {
		if m := model.MonthStart(txn.Date); m.After(latest) {
			latest = m
		}
	}
	earliest := latest.AddDate(0, -(window - 1), 0)

	months := make(map[time.Time]struct{})
	spend := make(map[string]decimal.Decimal)
	for _, txn := range history {
		m := model.MonthStart(txn.Date)
		if m.Before(earliest) {
			continue
		}
		months[m] = struct{}{}

		if txn.IsExpense() {
			category := txn.Category
			if category == "" {
				category = model.Uncategorized
			}
			spend[category] = spend[category].Add(txn.Amount.Abs())
			b.Outflow = b.Outflow.Add(txn.Amount.Abs())
		} else {
			b.Inflow = b.Inflow.Add(txn.Amount)
		}
	}

	b.Months = len(months)
	divisor := decimal.NewFromInt(int64(b.Months))
	for category, total := range spend {
		b.Categories[category] = total.Div(divisor).Round(2)
	}
	b.Inflow = b.Inflow.Div(divisor).Round(2)
	b.Outflow = b.Outflow.Div(divisor).Round(2)
	b.Coverage = math.Min(1, float64(b.Months)/float64(window))
	return b
}

// Baseline returns a copy of the historical averages.
func (s *Simulator) Baseline() Baseline {
	out := s.baseline
	out.Categories = make(map[string]decimal.Decimal, len(s.baseline.Categories))
	for k, v := range s.baseline.Categories {
		out.Categories[k] = v
	}
	return out
}

// DefaultStart is the balance used when the caller gives none: the average
// monthly net flow of the history window.
func (s *Simulator) DefaultStart() decimal.Decimal {
	return s.baseline.Inflow.Sub(s.baseline.Outflow)
}

// Simulate projects months forward, starting with the month after Now. A
// nil start uses DefaultStart; a nil scenario simulates the baseline.
func (s *Simulator) Simulate(ctx context.Context, months int, start *decimal.Decimal, scenario *model.Scenario) ([]model.ForecastPoint, error) {
	if months < 0 {
		return nil, common.NewValidationError("months", "horizon must not be negative, got %d", months)
	}
	if err := validateScenario(scenario); err != nil {
		return nil, err
	}

	points := make([]model.ForecastPoint, 0, months)
	balance := s.DefaultStart()
	if start != nil {
		balance = *start
	}

	first := model.MonthStart(s.now).AddDate(0, 1, 0)
	base := math.Max(s.cfg.MinConfidence, s.baseline.Coverage)

	for m := 1; m <= months; m++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		month := first.AddDate(0, m-1, 0)

		income := s.plannedIncome(month)
		categories := s.Baseline().Categories
		s.addBills(categories, month)

		if scenario != nil {
			for _, delta := range scenario.IncomeDeltas {
				income = income.Add(delta)
			}
			for category, delta := range scenario.ExpenseDeltas {
				adjusted := categories[category].Add(delta)
				if adjusted.IsNegative() {
					adjusted = decimal.Zero
				}
				categories[category] = adjusted
			}
			for _, entry := range scenario.OneTime {
				if !model.MonthStart(entry.Month).Equal(month) {
					continue
				}
				if entry.Amount.IsPositive() {
					income = income.Add(entry.Amount)
					continue
				}
				category := entry.Category
				if category == "" {
					category = model.Uncategorized
				}
				categories[category] = categories[category].Add(entry.Amount.Abs())
			}
		}

		expenses := decimal.Zero
		for _, v := range categories {
			expenses = expenses.Add(v)
		}
		balance = balance.Add(income).Sub(expenses)

		confidence := base * math.Pow(1-s.cfg.DecayRate, float64(m-1))
		points = append(points, model.ForecastPoint{
			Month:      month,
			Income:     income,
			Expenses:   expenses,
			Balance:    balance,
			Categories: categories,
			Confidence: math.Max(s.cfg.MinConfidence, confidence),
		})
	}
	return points, nil
}

func (s *Simulator) plannedIncome(month time.Time) decimal.Decimal {
	total := decimal.Zero
	for i := range s.incomes {
		if n := s.incomes[i].OccurrencesIn(month); n > 0 {
			total = total.Add(s.incomes[i].Amount.Mul(decimal.NewFromInt(int64(n))))
		}
	}
	return total
}

func (s *Simulator) addBills(categories map[string]decimal.Decimal, month time.Time) {
	for i := range s.bills {
		b := &s.bills[i]
		n := b.OccurrencesIn(month)
		if n == 0 {
			continue
		}
		category := b.Category
		if category == "" {
			category = model.Uncategorized
		}
		categories[category] = categories[category].Add(b.Amount.Mul(decimal.NewFromInt(int64(n))))
	}
}

// CompareScenarios simulates every scenario plus the implicit baseline in
// parallel and returns the projections keyed by scenario name.
func (s *Simulator) CompareScenarios(ctx context.Context, months int, start *decimal.Decimal, scenarios []model.Scenario) (map[string][]model.ForecastPoint, error) {
	seen := make(map[string]struct{}, len(scenarios))
	for i := range scenarios {
		name := strings.TrimSpace(scenarios[i].Name)
		switch {
		case name == "":
			return nil, common.NewValidationError("scenario", "scenario %d has no name", i+1)
		case strings.EqualFold(name, BaselineScenario):
			return nil, common.NewValidationError("scenario", "%q is reserved", BaselineScenario)
		}
		if _, dup := seen[name]; dup {
			return nil, common.NewValidationError("scenario", "duplicate scenario %q", name)
		}
		seen[name] = struct{}{}
	}

	results := make([][]model.ForecastPoint, len(scenarios)+1)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		points, err := s.Simulate(gctx, months, start, nil)
		results[0] = points
		return err
	})
	for i := range scenarios {
		scenario := &scenarios[i]
		g.Go(func() error {
			points, err := s.Simulate(gctx, months, start, scenario)
			if err != nil {
				return fmt.Errorf("scenario %s: %w", scenario.Name, err)
			}
			results[i+1] = points
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[string][]model.ForecastPoint, len(results))
	out[BaselineScenario] = results[0]
	for i := range scenarios {
		out[strings.TrimSpace(scenarios[i].Name)] = results[i+1]
	}
	return out, nil
}

func validateScenario(sc *model.Scenario) error {
	if sc == nil {
		return nil
	}
	for i, entry := range sc.OneTime {
		if entry.Month.IsZero() {
			return common.NewValidationError("scenario", "%s: one-time entry %d has no month", sc.Name, i+1)
		}
		if entry.Amount.IsZero() {
			return common.NewValidationError("scenario", "%s: one-time entry %d has zero amount", sc.Name, i+1)
		}
	}
	return nil
}

// Summary condenses a projection for display.
type Summary struct {
	Name         string
	FinalBalance decimal.Decimal
	LowestPoint  decimal.Decimal
	LowestMonth  time.Time
}

// Summarize returns one Summary per scenario sorted by name, baseline first.
func Summarize(results map[string][]model.ForecastPoint) []Summary {
	names := make([]string, 0, len(results))
	for name := range results {
		if name != BaselineScenario {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	if _, ok := results[BaselineScenario]; ok {
		names = append([]string{BaselineScenario}, names...)
	}

	out := make([]Summary, 0, len(names))
	for _, name := range names {
		points := results[name]
		s := Summary{Name: name}
		for i, p := range points {
			if i == 0 || p.Balance.LessThan(s.LowestPoint) {
				s.LowestPoint = p.Balance
				s.LowestMonth = p.Month
			}
			s.FinalBalance = p.Balance
		}
		out = append(out, s)
	}
	return out
}
