package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/Veraticus/the-budget-must-balance/internal/cli"
	"github.com/Veraticus/the-budget-must-balance/internal/common"
	"github.com/Veraticus/the-budget-must-balance/internal/model"
	"github.com/spf13/cobra"
)

func billsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bills",
		Short: "Manage planned bills used by the forecast",
	}
	cmd.AddCommand(billsAddCmd())
	cmd.AddCommand(billsListCmd())
	return cmd
}

func billsAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <name> <amount>",
		Short: "Record a bill",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			amount, err := parseMoney("amount", args[1])
			if err != nil {
				return err
			}
			bill := model.Bill{Name: args[0], Amount: amount.Abs()}

			rawDue, _ := flags.GetString("due")
			if bill.DueDate, err = parseDay("due", rawDue); err != nil {
				return err
			}
			bill.Category, _ = flags.GetString("category")
			bill.Recurring, _ = flags.GetBool("recurring")
			freq, _ := flags.GetString("frequency")
			bill.Frequency = model.Frequency(freq)
			bill.Paid, _ = flags.GetBool("paid")
			if bill.Paid {
				paidOn := bill.DueDate
				if raw, _ := flags.GetString("paid-on"); raw != "" {
					if paidOn, err = parseDay("paid-on", raw); err != nil {
						return err
					}
				}
				bill.PaymentDate = &paidOn
			}
			if err := bill.Validate(); err != nil {
				return common.NewUserError("invalid bill", err)
			}

			ctx := cmd.Context()
			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer closeStorage(store)

			if err := store.SaveBill(ctx, &bill); err != nil {
				return fmt.Errorf("failed to save bill: %w", err)
			}
			printLine(cmd, cli.FormatSuccess(fmt.Sprintf("Saved bill #%d %s", bill.ID, bill.Name)))
			return nil
		},
	}

	cmd.Flags().String("due", time.Now().Format(time.DateOnly), "Due date")
	cmd.Flags().String("category", "", "Expense category (default: "+model.Uncategorized+")")
	cmd.Flags().Bool("recurring", false, "Bill repeats")
	cmd.Flags().String("frequency", string(model.FrequencyMonthly), "weekly, monthly, quarterly or yearly")
	cmd.Flags().Bool("paid", false, "Bill is already paid")
	cmd.Flags().String("paid-on", "", "Payment date (default: due date)")

	return cmd
}

func billsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List recorded bills",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer closeStorage(store)

			bills, err := store.GetBills(ctx)
			if err != nil {
				return fmt.Errorf("failed to load bills: %w", err)
			}
			if len(bills) == 0 {
				printLine(cmd, cli.FormatInfo("No bills recorded"))
				return nil
			}

			rows := make([][]string, 0, len(bills))
			for i := range bills {
				b := &bills[i]
				rows = append(rows, []string{
					strconv.FormatInt(b.ID, 10),
					b.Name,
					cli.FormatMoney(b.Amount, appConfig.Import.Currency),
					b.DueDate.Format(time.DateOnly),
					orDash(b.Category),
					repeats(b.Recurring, b.Frequency),
					strconv.FormatBool(b.Paid),
				})
			}
			printLine(cmd, cli.RenderTable([]string{"ID", "Name", "Amount", "Due", "Category", "Repeats", "Paid"}, rows))
			return nil
		},
	}
}

func incomeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "income",
		Short: "Manage planned incomes used by the forecast and splitter",
	}
	cmd.AddCommand(incomeAddCmd())
	cmd.AddCommand(incomeListCmd())
	return cmd
}

func incomeAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <person> <amount>",
		Short: "Record an income",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			amount, err := parseMoney("amount", args[1])
			if err != nil {
				return err
			}
			income := model.Income{Person: args[0], Amount: amount}

			rawDate, _ := flags.GetString("date")
			if income.Date, err = parseDay("date", rawDate); err != nil {
				return err
			}
			income.Source, _ = flags.GetString("source")
			income.Category, _ = flags.GetString("category")
			income.Recurring, _ = flags.GetBool("recurring")
			freq, _ := flags.GetString("frequency")
			income.Frequency = model.Frequency(freq)
			if err := income.Validate(); err != nil {
				return common.NewUserError("invalid income", err)
			}

			ctx := cmd.Context()
			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer closeStorage(store)

			if err := store.SaveIncome(ctx, &income); err != nil {
				return fmt.Errorf("failed to save income: %w", err)
			}
			printLine(cmd, cli.FormatSuccess(fmt.Sprintf("Saved income #%d for %s", income.ID, income.Person)))
			return nil
		},
	}

	cmd.Flags().String("date", time.Now().Format(time.DateOnly), "Payment date")
	cmd.Flags().String("source", "", "Where the money comes from")
	cmd.Flags().String("category", "", "Income category")
	cmd.Flags().Bool("recurring", false, "Income repeats")
	cmd.Flags().String("frequency", string(model.FrequencyMonthly), "weekly, monthly, quarterly or yearly")

	return cmd
}

func incomeListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List recorded incomes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer closeStorage(store)

			incomes, err := store.GetIncomes(ctx)
			if err != nil {
				return fmt.Errorf("failed to load incomes: %w", err)
			}
			if len(incomes) == 0 {
				printLine(cmd, cli.FormatInfo("No incomes recorded"))
				return nil
			}

			rows := make([][]string, 0, len(incomes))
			for i := range incomes {
				inc := &incomes[i]
				rows = append(rows, []string{
					strconv.FormatInt(inc.ID, 10),
					inc.Person,
					cli.FormatMoney(inc.Amount, appConfig.Import.Currency),
					inc.Date.Format(time.DateOnly),
					orDash(inc.Source),
					repeats(inc.Recurring, inc.Frequency),
				})
			}
			printLine(cmd, cli.RenderTable([]string{"ID", "Person", "Amount", "Date", "Source", "Repeats"}, rows))
			return nil
		},
	}
}

func repeats(recurring bool, freq model.Frequency) string {
	if !recurring {
		return "once"
	}
	return string(freq)
}
