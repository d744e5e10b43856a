package main

import (
	"context"
	"testing"
	"time"

	"github.com/Veraticus/the-budget-must-balance/internal/common"
	"github.com/Veraticus/the-budget-must-balance/internal/config"
	"github.com/Veraticus/the-budget-must-balance/internal/forecast"
	"github.com/Veraticus/the-budget-must-balance/internal/model"
	"github.com/Veraticus/the-budget-must-balance/internal/sheets"
	"github.com/Veraticus/the-budget-must-balance/internal/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

// useMockWriter routes exports to a MockWriter for the rest of the test.
func useMockWriter(t *testing.T) *sheets.MockWriter {
	t.Helper()
	t.Setenv("GOOGLE_SHEETS_SERVICE_ACCOUNT_PATH", "/nonexistent/service-account.json")

	mock := sheets.NewMockWriter()
	previous := newReportWriter
	newReportWriter = func(context.Context, sheets.Config) (sheets.ReportWriter, error) {
		return mock, nil
	}
	t.Cleanup(func() { newReportWriter = previous })
	return mock
}

func TestBillsCmd(t *testing.T) {
	env := newTestEnv(t)

	out := env.mustRun("bills", "list")
	assert.Contains(t, out, "No bills recorded")

	out = env.mustRun("bills", "add", "Hyra", "9 500,00", "--due", "2025-12-27", "--category", "Boende", "--recurring")
	assert.Contains(t, out, "Saved bill #1 Hyra")
	env.mustRun("bills", "add", "Tandläkare", "-1200", "--due", "2025-12-05", "--paid")

	out = env.mustRun("bills", "list")
	assert.Contains(t, out, "Hyra")
	assert.Contains(t, out, "monthly")
	assert.Contains(t, out, "Tandläkare")
	assert.Contains(t, out, "once")

	bills, err := env.openStore().GetBills(context.Background())
	require.NoError(t, err)
	require.Len(t, bills, 2)
	assert.Equal(t, "Tandläkare", bills[0].Name)
	assert.True(t, bills[0].Amount.Equal(decimal.NewFromInt(1200)))
	require.NotNil(t, bills[0].PaymentDate)
	assert.Equal(t, testutil.Date(2025, 12, 5), bills[0].PaymentDate.UTC())

	tests := []struct {
		name string
		args []string
	}{
		{name: "zero amount", args: []string{"bills", "add", "Gratis", "0"}},
		{name: "bad frequency", args: []string{"bills", "add", "Hyra", "100", "--recurring", "--frequency", "daily"}},
		{name: "bad due date", args: []string{"bills", "add", "Hyra", "100", "--due", "snart"}},
		{name: "paid before due", args: []string{"bills", "add", "Hyra", "100", "--due", "2025-12-05", "--paid", "--paid-on", "2025-12-01"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.run("", tt.args...)
			assert.Error(t, err)
		})
	}
}

func TestIncomeCmd(t *testing.T) {
	env := newTestEnv(t)

	out := env.mustRun("income", "list")
	assert.Contains(t, out, "No incomes recorded")

	out = env.mustRun("income", "add", "Anna", "32 000", "--source", "Lön", "--recurring")
	assert.Contains(t, out, "Saved income #1 for Anna")

	out = env.mustRun("income", "list")
	assert.Contains(t, out, "Anna")
	assert.Contains(t, out, "Lön")
	assert.Contains(t, out, "monthly")

	_, err := env.run("", "income", "add", "Anna", "-100")
	assert.Error(t, err)
}

func TestSplitCmd(t *testing.T) {
	t.Run("equal between named people", func(t *testing.T) {
		env := newTestEnv(t)
		out := env.mustRun("split", "--balance", "1000", "--policy", "equal", "--person", "Anna", "--person", "Bo", "--person", "Cia")
		assert.Contains(t, out, "Anna: 333.34")
		assert.Contains(t, out, "Bo: 333.33")
		assert.Contains(t, out, "Cia: 333.33")
	})

	t.Run("income based from stored incomes", func(t *testing.T) {
		env := newTestEnv(t)
		env.mustRun("income", "add", "Anna", "30000", "--recurring")
		env.mustRun("income", "add", "Bo", "10000", "--recurring")

		out := env.mustRun("split", "--balance", "4000", "--policy", "income_based")
		assert.Contains(t, out, "Anna: 3000.00")
		assert.Contains(t, out, "Bo: 1000.00")
	})

	t.Run("custom weights name the people", func(t *testing.T) {
		env := newTestEnv(t)
		out := env.mustRun("split", "--balance", "900", "--policy", "custom", "--weight", "Anna=2", "--weight", "Bo=1")
		assert.Contains(t, out, "Anna: 600.00")
		assert.Contains(t, out, "Bo: 300.00")
	})

	t.Run("needs based follows obligations", func(t *testing.T) {
		env := newTestEnv(t)
		out := env.mustRun("split", "--balance", "400", "--policy", "needs-based",
			"--person", "Anna", "--person", "Bo", "--obligation", "Anna=3000", "--obligation", "Bo=1000")
		assert.Contains(t, out, "Anna: 300.00")
		assert.Contains(t, out, "Bo: 100.00")

		help := env.mustRun("split", "--help")
		assert.Contains(t, help, "needs-based   in proportion to --obligation values")
	})

	t.Run("account balances", func(t *testing.T) {
		env := newTestEnv(t)
		env.mustRun("import", env.writeFile("Lönekonto - 2025-11-01.csv", testutil.StatementCSV))
		env.mustRun("accounts", "balance", "Lönekonto", "2000")

		out := env.mustRun("split", "--policy", "equal", "--person", "Anna", "--person", "Bo", "--shared")
		assert.Contains(t, out, "Anna: 1000.00")
		assert.Contains(t, out, "shared")
	})

	t.Run("no balances", func(t *testing.T) {
		env := newTestEnv(t)
		_, err := env.run("", "split", "--policy", "equal", "--person", "Anna")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no account balances recorded")
	})

	t.Run("nobody", func(t *testing.T) {
		env := newTestEnv(t)
		_, err := env.run("", "split", "--balance", "100", "--policy", "equal")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "nobody to split between")
	})

	t.Run("unknown policy", func(t *testing.T) {
		env := newTestEnv(t)
		_, err := env.run("", "split", "--balance", "100", "--policy", "random", "--person", "Anna")
		assert.ErrorIs(t, err, common.ErrValidation)
	})

	t.Run("export", func(t *testing.T) {
		env := newTestEnv(t)
		mock := useMockWriter(t)

		out := env.mustRun("split", "--balance", "100", "--policy", "equal", "--person", "Anna", "--person", "Bo", "--export")
		assert.Contains(t, out, "mock-spreadsheet")

		calls := mock.Calls()
		require.Len(t, calls, 1)
		assert.True(t, calls[0].Shares["Anna"].Equal(decimal.NewFromInt(50)))
		assert.Empty(t, calls[0].Forecasts)
	})
}

func TestForecastCmd(t *testing.T) {
	env := newTestEnv(t)
	soon := time.Now().AddDate(0, 0, 2).Format(time.DateOnly)
	env.mustRun("bills", "add", "Hyra", "9000", "--due", soon, "--category", "Boende", "--recurring")

	out := env.mustRun("forecast", "--months", "3", "--start", "0")
	assert.Contains(t, out, "Forecast: "+forecast.BaselineScenario)
	next := model.MonthStart(time.Now()).AddDate(0, 1, 0)
	assert.Contains(t, out, next.Format("2006-01"))
	assert.Contains(t, out, next.AddDate(0, 2, 0).Format("2006-01"))
	assert.Contains(t, out, "is below 1000.00")
	assert.Contains(t, out, "Hyra (9000.00) due "+soon)

	_, err := env.run("", "forecast", "--months", "0")
	assert.Error(t, err)
}

func TestForecastCmd_Scenarios(t *testing.T) {
	env := newTestEnv(t)
	env.mustRun("income", "add", "Anna", "30000", "--recurring")
	path := env.writeFile("scenarios.yaml", `scenarios:
  - name: raise
    income_deltas:
      Anna: 2000
  - name: cheaper-food
    expense_deltas:
      Mat: -500
`)

	out := env.mustRun("forecast", "--months", "2", "--start", "10000", "--scenarios", path)
	assert.Contains(t, out, "Scenario comparison")
	assert.Contains(t, out, "baseline")
	assert.Contains(t, out, "raise")
	assert.Contains(t, out, "cheaper-food")

	out = env.mustRun("forecast", "--months", "2", "--start", "10000", "--scenarios", path, "--scenario", "RAISE")
	assert.Contains(t, out, "Forecast: raise")

	_, err := env.run("", "forecast", "--scenarios", path, "--scenario", "lottery")
	assert.ErrorIs(t, err, common.ErrNotFound)

	_, err = env.run("", "forecast", "--scenario", "raise")
	assert.Error(t, err)

	reserved := env.writeFile("reserved.yaml", "scenarios:\n  - name: Baseline\n")
	_, err = env.run("", "forecast", "--scenarios", reserved)
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestForecastCmd_Export(t *testing.T) {
	env := newTestEnv(t)
	mock := useMockWriter(t)
	env.mustRun("import", env.writeFile("Lönekonto - 2025-11-01.csv", testutil.StatementCSV))

	env.mustRun("forecast", "--months", "2", "--export")
	calls := mock.Calls()
	require.Len(t, calls, 1)
	assert.Len(t, calls[0].Forecasts[forecast.BaselineScenario], 2)
	assert.Empty(t, calls[0].Transactions)

	env.mustRun("forecast", "--months", "2", "--export", "--transactions")
	calls = mock.Calls()
	require.Len(t, calls, 2)
	assert.Len(t, calls[1].Transactions, 3)
}

func TestExport_NotConfigured(t *testing.T) {
	env := newTestEnv(t)
	for _, key := range []string{"GOOGLE_SHEETS_SERVICE_ACCOUNT_PATH", "GOOGLE_SHEETS_CLIENT_ID", "GOOGLE_SHEETS_CLIENT_SECRET", "GOOGLE_SHEETS_REFRESH_TOKEN"} {
		t.Setenv(key, "")
	}

	_, err := env.run("", "split", "--balance", "100", "--policy", "equal", "--person", "Anna", "--export")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Google Sheets is not configured")
}

func TestExport_UsesSavedToken(t *testing.T) {
	env := newTestEnv(t)
	t.Setenv("GOOGLE_SHEETS_SERVICE_ACCOUNT_PATH", "")
	t.Setenv("GOOGLE_SHEETS_CLIENT_ID", "id")
	t.Setenv("GOOGLE_SHEETS_CLIENT_SECRET", "secret")
	t.Setenv("GOOGLE_SHEETS_REFRESH_TOKEN", "")

	var got sheets.Config
	previous := newReportWriter
	newReportWriter = func(_ context.Context, cfg sheets.Config) (sheets.ReportWriter, error) {
		got = cfg
		return sheets.NewMockWriter(), nil
	}
	t.Cleanup(func() { newReportWriter = previous })

	require.NoError(t, sheets.SaveToken(config.ExpandPath(defaultTokenFile), &oauth2.Token{RefreshToken: "saved-refresh"}))

	env.mustRun("split", "--balance", "100", "--policy", "equal", "--person", "Anna", "--export")
	assert.Equal(t, "saved-refresh", got.RefreshToken)
}

func TestSheetsAuthCmd_NeedsClient(t *testing.T) {
	env := newTestEnv(t)
	t.Setenv("GOOGLE_SHEETS_CLIENT_ID", "")
	t.Setenv("GOOGLE_SHEETS_CLIENT_SECRET", "")

	_, err := env.run("", "sheets", "auth")
	assert.ErrorIs(t, err, common.ErrMissingConfig)
}
