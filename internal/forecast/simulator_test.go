package forecast

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Veraticus/the-budget-must-balance/internal/common"
	"github.com/Veraticus/the-budget-must-balance/internal/model"
	"github.com/Veraticus/the-budget-must-balance/internal/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func ptr(v decimal.Decimal) *decimal.Decimal {
	return &v
}

var now = time.Date(2025, 11, 15, 12, 0, 0, 0, time.UTC)

// threeMonths is Sep-Nov 2025 with 3000/month on food and a salary.
func threeMonths() []model.Transaction {
	var txns []model.Transaction
	for _, month := range []time.Month{time.September, time.October, time.November} {
		food := testutil.Txn(testutil.Date(2025, month, 3), "-3000", "ICA")
		food.Category = "Mat"
		salary := testutil.Txn(testutil.Date(2025, month, 25), "25000", "Lön")
		salary.Category = "Inkomst"
		txns = append(txns, food, salary)
	}
	return txns
}

func newSim(t *testing.T, in Inputs) *Simulator {
	t.Helper()
	if in.Now.IsZero() {
		in.Now = now
	}
	s, err := NewSimulator(DefaultConfig(), in)
	require.NoError(t, err)
	return s
}

func TestBaseline(t *testing.T) {
	history := threeMonths()
	old := testutil.Txn(testutil.Date(2024, 1, 3), "-99999", "Gammal")
	old.Category = "Mat"
	uncategorized := testutil.Txn(testutil.Date(2025, 11, 4), "-300", "Okänd")
	history = append(history, old, uncategorized)

	b := newSim(t, Inputs{History: history}).Baseline()

	assert.Equal(t, 3, b.Months)
	assert.InDelta(t, 0.5, b.Coverage, 1e-9)
	assert.True(t, d("3000").Equal(b.Categories["Mat"]), b.Categories["Mat"].String())
	assert.True(t, d("100").Equal(b.Categories[model.Uncategorized]))
	assert.True(t, d("25000").Equal(b.Inflow))
	assert.True(t, d("3100").Equal(b.Outflow))
}

func TestSimulate_Baseline(t *testing.T) {
	s := newSim(t, Inputs{History: threeMonths()})

	points, err := s.Simulate(context.Background(), 3, ptr(d("10000")), nil)
	require.NoError(t, err)
	require.Len(t, points, 3)

	assert.Equal(t, time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC), points[0].Month)
	assert.Equal(t, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), points[2].Month)
	for i, want := range []string{"7000", "4000", "1000"} {
		assert.Truef(t, d(want).Equal(points[i].Balance), "month %d: %s", i+1, points[i].Balance)
		assert.True(t, d("3000").Equal(points[i].Expenses))
		assert.True(t, points[i].Income.IsZero())
	}

	assert.InDelta(t, 0.5, points[0].Confidence, 1e-9)
	assert.InDelta(t, 0.475, points[1].Confidence, 1e-9)
	assert.InDelta(t, 0.45125, points[2].Confidence, 1e-9)
}

func TestSimulate_DefaultStartIsAverageNetFlow(t *testing.T) {
	s := newSim(t, Inputs{History: threeMonths()})
	assert.True(t, d("22000").Equal(s.DefaultStart()))

	points, err := s.Simulate(context.Background(), 1, nil, nil)
	require.NoError(t, err)
	assert.True(t, d("19000").Equal(points[0].Balance))
}

func TestSimulate_PlannedIncomeAndBills(t *testing.T) {
	s := newSim(t, Inputs{
		History: threeMonths(),
		Incomes: []model.Income{{
			Person: "Robin", Source: "Lön", Amount: d("25000"),
			Date: testutil.Date(2025, 11, 25), Recurring: true, Frequency: model.FrequencyMonthly,
		}},
		Bills: []model.Bill{
			{
				Name: "Hyra", Category: "Boende", Amount: d("8500"),
				DueDate: testutil.Date(2025, 12, 1), Recurring: true, Frequency: model.FrequencyMonthly,
			},
			{
				Name: "Tandläkare", Category: "Hälsa", Amount: d("1200"),
				DueDate: testutil.Date(2026, 1, 20),
			},
			{
				Name: "Betald", Category: "Hem", Amount: d("999"),
				DueDate: testutil.Date(2025, 12, 5), Paid: true,
			},
		},
	})

	points, err := s.Simulate(context.Background(), 2, ptr(d("0")), nil)
	require.NoError(t, err)

	assert.True(t, d("25000").Equal(points[0].Income))
	assert.True(t, d("11500").Equal(points[0].Expenses), points[0].Expenses.String())
	assert.True(t, d("8500").Equal(points[0].Categories["Boende"]))
	assert.NotContains(t, points[0].Categories, "Hem")
	assert.True(t, d("13500").Equal(points[0].Balance))

	assert.True(t, d("1200").Equal(points[1].Categories["Hälsa"]))
	assert.True(t, d("12700").Equal(points[1].Expenses))
	assert.True(t, d("25800").Equal(points[1].Balance))
}

func TestSimulate_Scenario(t *testing.T) {
	s := newSim(t, Inputs{History: threeMonths()})
	scenario := &model.Scenario{
		Name:          "bonus",
		IncomeDeltas:  map[string]decimal.Decimal{"Robin": d("1000")},
		ExpenseDeltas: map[string]decimal.Decimal{"Mat": d("-500"), "Nöje": d("-200")},
		OneTime: []model.ScenarioEntry{
			{Month: testutil.Date(2026, 1, 10), Amount: d("5000"), Description: "Julbonus"},
			{Month: testutil.Date(2026, 1, 1), Amount: d("-2000"), Description: "Cykel", Category: "Transport"},
		},
	}

	points, err := s.Simulate(context.Background(), 2, ptr(d("0")), scenario)
	require.NoError(t, err)

	assert.True(t, d("2500").Equal(points[0].Categories["Mat"]))
	assert.True(t, points[0].Categories["Nöje"].IsZero(), "clamped at zero")
	assert.True(t, d("1000").Equal(points[0].Income))
	assert.True(t, d("-1500").Equal(points[0].Balance))

	assert.True(t, d("6000").Equal(points[1].Income))
	assert.True(t, d("2000").Equal(points[1].Categories["Transport"]))
	assert.True(t, d("4500").Equal(points[1].Expenses))
	assert.True(t, d("0").Equal(points[1].Balance))
}

func TestSimulate_Horizon(t *testing.T) {
	s := newSim(t, Inputs{History: threeMonths()})

	points, err := s.Simulate(context.Background(), 0, nil, nil)
	require.NoError(t, err)
	assert.Empty(t, points)

	_, err = s.Simulate(context.Background(), -1, nil, nil)
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestSimulate_ConfidenceNeverIncreases(t *testing.T) {
	s := newSim(t, Inputs{History: threeMonths()})
	points, err := s.Simulate(context.Background(), 60, nil, nil)
	require.NoError(t, err)

	for i := 1; i < len(points); i++ {
		assert.LessOrEqual(t, points[i].Confidence, points[i-1].Confidence)
		assert.GreaterOrEqual(t, points[i].Confidence, DefaultConfig().MinConfidence)
	}
	assert.InDelta(t, DefaultConfig().MinConfidence, points[len(points)-1].Confidence, 1e-9)
}

func TestSimulate_ZeroHistory(t *testing.T) {
	s := newSim(t, Inputs{})
	assert.True(t, s.DefaultStart().IsZero())

	points, err := s.Simulate(context.Background(), 3, nil, nil)
	require.NoError(t, err)
	for _, p := range points {
		assert.InDelta(t, DefaultConfig().MinConfidence, p.Confidence, 1e-9)
		assert.True(t, p.Balance.IsZero())
	}
}

func TestSimulate_Canceled(t *testing.T) {
	s := newSim(t, Inputs{History: threeMonths()})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Simulate(ctx, 3, nil, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewSimulator_Validation(t *testing.T) {
	_, err := NewSimulator(DefaultConfig(), Inputs{Bills: []model.Bill{{
		Name: "Hyra", Amount: d("0"), DueDate: testutil.Date(2025, 12, 1),
	}}})
	assert.ErrorIs(t, err, common.ErrValidation)

	_, err = NewSimulator(DefaultConfig(), Inputs{Incomes: []model.Income{{
		Person: "Robin", Amount: d("-1"), Date: testutil.Date(2025, 12, 1),
	}}})
	assert.ErrorIs(t, err, common.ErrValidation)

	cfg := DefaultConfig()
	cfg.WindowMonths = 0
	_, err = NewSimulator(cfg, Inputs{})
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestCompareScenarios(t *testing.T) {
	s := newSim(t, Inputs{History: threeMonths()})
	ctx := context.Background()

	before, err := s.Simulate(ctx, 3, ptr(d("10000")), nil)
	require.NoError(t, err)

	scenarios := []model.Scenario{
		{Name: "cheaper-food", ExpenseDeltas: map[string]decimal.Decimal{"Mat": d("-1000")}},
		{Name: "raise", IncomeDeltas: map[string]decimal.Decimal{"Robin": d("2000")}},
	}
	results, err := s.CompareScenarios(ctx, 3, ptr(d("10000")), scenarios)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, before, results[BaselineScenario], "scenarios must not leak into the baseline")
	assert.True(t, d("4000").Equal(results["cheaper-food"][2].Balance))
	assert.True(t, d("7000").Equal(results["raise"][2].Balance))

	for i := range scenarios {
		alone, err := s.Simulate(ctx, 3, ptr(d("10000")), &scenarios[i])
		require.NoError(t, err)
		assert.Equal(t, alone, results[scenarios[i].Name], "%s run alone", scenarios[i].Name)
	}

	after, err := s.Simulate(ctx, 3, ptr(d("10000")), nil)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	summaries := Summarize(results)
	require.Len(t, summaries, 3)
	assert.Equal(t, BaselineScenario, summaries[0].Name)
	assert.Equal(t, "cheaper-food", summaries[1].Name)
	assert.True(t, d("1000").Equal(summaries[0].FinalBalance))
	assert.True(t, d("1000").Equal(summaries[0].LowestPoint))
}

func TestCompareScenarios_Names(t *testing.T) {
	s := newSim(t, Inputs{})
	ctx := context.Background()

	for name, scenarios := range map[string][]model.Scenario{
		"duplicate": {{Name: "a"}, {Name: "a"}},
		"reserved":  {{Name: "Baseline"}},
		"unnamed":   {{Name: " "}},
	} {
		_, err := s.CompareScenarios(ctx, 1, nil, scenarios)
		assert.ErrorIs(t, err, common.ErrValidation, name)
	}

	results, err := s.CompareScenarios(ctx, 1, nil, nil)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestLoadScenarios(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scenarios.yaml")
	content := `scenarios:
  - name: bonus
    description: Extra i januari
    one_time:
      - month: 2026-01-01
        amount: 5000
        description: Julbonus
  - name: cheaper-food
    expense_deltas:
      Mat: -500.50
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	scenarios, err := LoadScenarios(path)
	require.NoError(t, err)
	require.Len(t, scenarios, 2)

	assert.Equal(t, "bonus", scenarios[0].Name)
	require.Len(t, scenarios[0].OneTime, 1)
	assert.Equal(t, testutil.Date(2026, 1, 1), scenarios[0].OneTime[0].Month)
	assert.True(t, d("5000").Equal(scenarios[0].OneTime[0].Amount))
	assert.True(t, d("-500.50").Equal(scenarios[1].ExpenseDeltas["Mat"]))

	_, err = ParseScenarios([]byte("scenarios:\n  - name: x\n    one_time:\n      - amount: 5\n"))
	assert.ErrorIs(t, err, common.ErrValidation)

	_, err = LoadScenarios(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
