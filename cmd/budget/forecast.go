package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/Veraticus/the-budget-must-balance/internal/cli"
	"github.com/Veraticus/the-budget-must-balance/internal/common"
	"github.com/Veraticus/the-budget-must-balance/internal/forecast"
	"github.com/Veraticus/the-budget-must-balance/internal/model"
	"github.com/Veraticus/the-budget-must-balance/internal/service"
	"github.com/Veraticus/the-budget-must-balance/internal/sheets"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

func forecastCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "forecast",
		Short: "Project balances forward month by month",
		Long: `Project the balance from the spending history, planned bills and planned
incomes. Scenarios are what-if variations read from a YAML file:

  scenarios:
    - name: raise
      income_deltas:
        Anna: 2000
    - name: cheaper-food
      expense_deltas:
        Mat: -500

With --scenarios every scenario is compared against the baseline. Add
--scenario to project a single one.`,
		Args: cobra.NoArgs,
		RunE: runForecast,
	}

	cmd.Flags().Int("months", 12, "Number of months to project")
	cmd.Flags().String("start", "", "Starting balance (default: average monthly net flow)")
	cmd.Flags().String("scenarios", "", "YAML file with scenarios")
	cmd.Flags().String("scenario", "", "Project only this scenario from --scenarios")
	cmd.Flags().Bool("export", false, "Export the projection to Google Sheets")
	cmd.Flags().Bool("transactions", false, "Include the history in the export")

	return cmd
}

func runForecast(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	flags := cmd.Flags()

	months, _ := flags.GetInt("months")
	if months <= 0 {
		return common.NewUserError("--months must be positive", nil)
	}
	var start *decimal.Decimal
	if raw, _ := flags.GetString("start"); raw != "" {
		amount, err := parseMoney("start", raw)
		if err != nil {
			return err
		}
		start = &amount
	}

	var scenarios []model.Scenario
	if path, _ := flags.GetString("scenarios"); path != "" {
		loaded, err := forecast.LoadScenarios(path)
		if err != nil {
			return common.NewUserError("cannot read scenarios", err)
		}
		scenarios = loaded
	}
	if name, _ := flags.GetString("scenario"); name != "" {
		picked, err := pickScenario(scenarios, name)
		if err != nil {
			return err
		}
		scenarios = []model.Scenario{picked}
	}

	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer closeStorage(store)

	history, err := store.GetTransactions(ctx, service.TransactionFilter{})
	if err != nil {
		return fmt.Errorf("failed to load transactions: %w", err)
	}
	bills, err := store.GetBills(ctx)
	if err != nil {
		return fmt.Errorf("failed to load bills: %w", err)
	}
	incomes, err := store.GetIncomes(ctx)
	if err != nil {
		return fmt.Errorf("failed to load incomes: %w", err)
	}

	now := time.Now()
	sim, err := forecast.NewSimulator(forecast.Config{
		WindowMonths:  appConfig.Forecast.WindowMonths,
		DecayRate:     appConfig.Forecast.DecayRate,
		MinConfidence: appConfig.Forecast.MinConfidence,
	}, forecast.Inputs{Now: now, History: history, Bills: bills, Incomes: incomes})
	if err != nil {
		return common.NewUserError("stored plans are invalid", err)
	}

	results := make(map[string][]model.ForecastPoint)
	single, _ := flags.GetString("scenario")
	switch {
	case single != "":
		points, err := sim.Simulate(ctx, months, start, &scenarios[0])
		if err != nil {
			return err
		}
		results[scenarios[0].Name] = points
		printProjection(cmd, scenarios[0].Name, points)
	case len(scenarios) > 0:
		results, err = sim.CompareScenarios(ctx, months, start, scenarios)
		if err != nil {
			return err
		}
		printComparison(cmd, results)
	default:
		points, err := sim.Simulate(ctx, months, start, nil)
		if err != nil {
			return err
		}
		results[forecast.BaselineScenario] = points
		printProjection(cmd, forecast.BaselineScenario, points)
	}

	alertCfg := forecast.AlertConfig{
		MinBalanceWarning:  decimal.NewFromFloat(appConfig.Forecast.MinBalanceWarning),
		AlertDaysBeforeDue: appConfig.Forecast.AlertDaysBeforeDue,
	}
	primary := forecast.BaselineScenario
	if single != "" {
		primary = single
	}
	alerts := forecast.Alerts(results[primary], alertCfg)
	alerts = append(alerts, forecast.BillAlerts(forecast.UpcomingBills(bills, now, alertCfg.AlertDaysBeforeDue))...)
	printAlerts(cmd, alerts)

	if export, _ := flags.GetBool("export"); export {
		report := &sheets.Report{GeneratedAt: now, Forecasts: results}
		if withTxns, _ := flags.GetBool("transactions"); withTxns {
			report.Transactions = history
		}
		return exportReport(cmd, report)
	}
	return nil
}

func pickScenario(scenarios []model.Scenario, name string) (model.Scenario, error) {
	for _, sc := range scenarios {
		if strings.EqualFold(strings.TrimSpace(sc.Name), name) {
			return sc, nil
		}
	}
	if len(scenarios) == 0 {
		return model.Scenario{}, common.NewUserError("--scenario needs --scenarios", nil)
	}
	return model.Scenario{}, common.NewUserError(fmt.Sprintf("no scenario named %q", name), common.ErrNotFound)
}

func printProjection(cmd *cobra.Command, name string, points []model.ForecastPoint) {
	currency := appConfig.Import.Currency
	rows := make([][]string, 0, len(points))
	for _, p := range points {
		rows = append(rows, []string{
			p.Month.Format("2006-01"),
			cli.FormatMoney(p.Income, currency),
			cli.FormatMoney(p.Expenses, currency),
			cli.FormatMoney(p.Balance, currency),
			fmt.Sprintf("%.0f%%", p.Confidence*100),
		})
	}
	printLine(cmd, cli.FormatTitle("Forecast: "+name))
	printLine(cmd, cli.RenderTable([]string{"Month", "Income", "Expenses", "Balance", "Confidence"}, rows))
}

func printComparison(cmd *cobra.Command, results map[string][]model.ForecastPoint) {
	currency := appConfig.Import.Currency
	summaries := forecast.Summarize(results)
	rows := make([][]string, 0, len(summaries))
	for _, s := range summaries {
		rows = append(rows, []string{
			s.Name,
			cli.FormatMoney(s.FinalBalance, currency),
			cli.FormatMoney(s.LowestPoint, currency),
			s.LowestMonth.Format("2006-01"),
		})
	}
	printLine(cmd, cli.FormatTitle("Scenario comparison"))
	printLine(cmd, cli.RenderTable([]string{"Scenario", "Final balance", "Lowest", "Lowest month"}, rows))
}

func printAlerts(cmd *cobra.Command, alerts []model.Alert) {
	for _, a := range alerts {
		if a.Severity == forecast.SeverityCritical {
			printLine(cmd, cli.FormatError(a.Message))
			continue
		}
		printLine(cmd, cli.FormatWarning(a.Message))
	}
}
