package main

import (
	"fmt"
	"sort"
	"time"

	"github.com/Veraticus/the-budget-must-balance/internal/cli"
	"github.com/Veraticus/the-budget-must-balance/internal/common"
	"github.com/Veraticus/the-budget-must-balance/internal/model"
	"github.com/Veraticus/the-budget-must-balance/internal/sheets"
	"github.com/Veraticus/the-budget-must-balance/internal/splitter"
	"github.com/Veraticus/the-budget-must-balance/internal/storage"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

func splitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "split",
		Short: "Split a balance between household members",
		Long: `Divide a balance between people under one of the policies:

  equal         everyone pays the same
  income-based  in proportion to income
  custom        in proportion to --weight values
  needs-based   in proportion to --obligation values

Shares always add up to the balance to the cent. Without --balance the sum
of recorded account balances is split. Without --income, planned incomes
stored with 'budget income add' are used.`,
		Args: cobra.NoArgs,
		RunE: runSplit,
	}

	cmd.Flags().String("balance", "", "Balance to split (default: sum of account balances)")
	cmd.Flags().String("policy", "", "Split policy (default: splitter.policy)")
	cmd.Flags().StringSlice("person", nil, "Person to include (repeatable; default: everyone with income)")
	cmd.Flags().StringSlice("income", nil, "Monthly income as Name=Amount (repeatable)")
	cmd.Flags().StringSlice("weight", nil, "Custom weight as Name=Weight (repeatable)")
	cmd.Flags().StringSlice("obligation", nil, "Monthly obligation as Name=Amount (repeatable)")
	cmd.Flags().Bool("shared", false, "Also show shared versus individual spending")
	cmd.Flags().Bool("export", false, "Export the shares to Google Sheets")

	return cmd
}

// monthlyIncomes sums each person's planned income falling in month.
func monthlyIncomes(incomes []model.Income, month time.Time) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal)
	for i := range incomes {
		inc := &incomes[i]
		if inc.Person == "" {
			continue
		}
		n := inc.OccurrencesIn(month)
		if n == 0 {
			continue
		}
		out[inc.Person] = out[inc.Person].Add(inc.Amount.Mul(decimal.NewFromInt(int64(n))))
	}
	return out
}

func runSplit(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	flags := cmd.Flags()

	policyName, _ := flags.GetString("policy")
	if policyName == "" {
		policyName = appConfig.Splitter.Policy
	}
	policy, err := splitter.ParsePolicy(policyName)
	if err != nil {
		return err
	}

	var in splitter.Input
	rawIncome, _ := flags.GetStringSlice("income")
	rawWeight, _ := flags.GetStringSlice("weight")
	rawObligation, _ := flags.GetStringSlice("obligation")
	if in.Incomes, err = parseNamedAmounts("income", rawIncome); err != nil {
		return err
	}
	if in.Weights, err = parseNamedAmounts("weight", rawWeight); err != nil {
		return err
	}
	if in.Obligations, err = parseNamedAmounts("obligation", rawObligation); err != nil {
		return err
	}
	in.Persons, _ = flags.GetStringSlice("person")

	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer closeStorage(store)

	if len(in.Incomes) == 0 {
		incomes, err := store.GetIncomes(ctx)
		if err != nil {
			return fmt.Errorf("failed to load incomes: %w", err)
		}
		in.Incomes = monthlyIncomes(incomes, model.MonthStart(time.Now()))
	}
	if len(in.Persons) == 0 {
		source := in.Incomes
		if policy == splitter.PolicyCustom {
			source = in.Weights
		}
		for name := range source {
			in.Persons = append(in.Persons, name)
		}
		sort.Strings(in.Persons)
	}
	if len(in.Persons) == 0 {
		return common.NewUserError("nobody to split between; pass --person or record incomes", nil)
	}

	balance, err := splitBalance(cmd, store)
	if err != nil {
		return err
	}

	shares, err := splitter.Split(balance, policy, in)
	if err != nil {
		return err
	}

	printLine(cmd, cli.FormatTitle(fmt.Sprintf("Split of %s (%s)", cli.FormatMoney(balance, appConfig.Import.Currency), policy)))
	for _, line := range splitter.Format(shares) {
		printLine(cmd, "  "+line)
	}

	if shared, _ := flags.GetBool("shared"); shared {
		txns, err := store.GetTransactions(ctx, monthFilter(time.Now()))
		if err != nil {
			return fmt.Errorf("failed to load transactions: %w", err)
		}
		totals := splitter.SharedVsIndividual(txns, appConfig.Splitter.SharedCategories)
		printLine(cmd, fmt.Sprintf("This month: shared %s, individual %s",
			cli.FormatMoney(totals.Shared, appConfig.Import.Currency),
			cli.FormatMoney(totals.Individual, appConfig.Import.Currency)))
	}

	if export, _ := flags.GetBool("export"); export {
		return exportReport(cmd, &sheets.Report{GeneratedAt: time.Now(), Shares: shares})
	}
	return nil
}

// splitBalance reads --balance or sums the recorded account balances.
func splitBalance(cmd *cobra.Command, store *storage.SQLiteStorage) (decimal.Decimal, error) {
	if raw, _ := cmd.Flags().GetString("balance"); raw != "" {
		return parseMoney("balance", raw)
	}

	l, err := initLedger(cmd.Context(), store)
	if err != nil {
		return decimal.Zero, err
	}
	total, found := decimal.Zero, false
	for _, s := range l.Summaries() {
		if s.Balance != nil {
			total = total.Add(*s.Balance)
			found = true
		}
	}
	if !found {
		return decimal.Zero, common.NewUserError("no account balances recorded; pass --balance or run 'budget accounts balance'", nil)
	}
	return total, nil
}
