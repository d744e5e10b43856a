package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/Veraticus/the-budget-must-balance/internal/cli"
	"github.com/Veraticus/the-budget-must-balance/internal/common"
	"github.com/Veraticus/the-budget-must-balance/internal/storage"
	"github.com/spf13/cobra"
)

func accountsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "accounts",
		Short: "Inspect and maintain imported accounts",
		Long: `List accounts with their import history, set balances, and remove
accounts or file records. Destructive commands take a database backup first.`,
	}

	cmd.AddCommand(accountsListCmd())
	cmd.AddCommand(accountsDeleteCmd())
	cmd.AddCommand(accountsDeleteFileCmd())
	cmd.AddCommand(accountsClearCmd())
	cmd.AddCommand(accountsBalanceCmd())

	return cmd
}

func accountsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer closeStorage(store)

			l, err := initLedger(ctx, store)
			if err != nil {
				return err
			}

			summaries := l.Summaries()
			if len(summaries) == 0 {
				printLine(cmd, cli.FormatInfo("No accounts yet. Use 'budget import' to add statements."))
				return nil
			}

			rows := make([][]string, 0, len(summaries))
			for _, s := range summaries {
				balance, last := "-", "-"
				if s.Balance != nil {
					balance = s.Balance.StringFixed(2)
				}
				if s.LastImport != nil {
					last = s.LastImport.Format("2006-01-02")
				}
				rows = append(rows, []string{
					s.Account,
					strconv.Itoa(s.Files),
					strconv.Itoa(s.Transactions),
					balance,
					last,
				})
			}
			printLine(cmd, cli.FormatTitle("Accounts"))
			printLine(cmd, cli.RenderTable([]string{"Account", "Files", "Transactions", "Balance", "Last import"}, rows))
			return nil
		},
	}
}

// backupBeforeDelete copies the database aside. In-memory databases have
// nothing to protect.
func backupBeforeDelete(ctx context.Context, cmd *cobra.Command, store *storage.SQLiteStorage) error {
	path, err := store.Backup(ctx)
	if errors.Is(err, storage.ErrBackupUnsupported) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("backup failed, nothing was deleted: %w", err)
	}
	printLine(cmd, cli.FormatInfo("Backup written to "+path))
	return nil
}

func accountsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <account>",
		Short: "Delete an account with its file records and digests",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer closeStorage(store)

			l, err := initLedger(ctx, store)
			if err != nil {
				return err
			}
			if _, ok := l.Account(args[0]); !ok {
				return common.NewUserError(fmt.Sprintf("account %q not found", args[0]), common.ErrNotFound)
			}
			if err := backupBeforeDelete(ctx, cmd, store); err != nil {
				return err
			}

			if _, err := l.DeleteAccount(ctx, args[0]); err != nil {
				return err
			}
			printLine(cmd, cli.FormatSuccess(fmt.Sprintf("Deleted account %s", args[0])))
			return nil
		},
	}
}

func accountsDeleteFileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete-file <account> <filename>",
		Short: "Forget an imported file so it can be imported again",
		Long: `Remove a file record from an account. Transaction digests stay, so
re-importing the file adds only rows the account has never seen.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer closeStorage(store)

			l, err := initLedger(ctx, store)
			if err != nil {
				return err
			}

			removed, err := l.DeleteFileRecord(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			if !removed {
				return common.NewUserError(fmt.Sprintf("no file %q in account %q", args[1], args[0]), common.ErrNotFound)
			}
			printLine(cmd, cli.FormatSuccess(fmt.Sprintf("Removed %s from %s", args[1], args[0])))
			return nil
		},
	}
}

func accountsClearCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if yes, _ := cmd.Flags().GetBool("yes"); !yes {
				return common.NewUserError("refusing to clear all accounts without --yes", nil)
			}

			ctx := cmd.Context()
			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer closeStorage(store)

			l, err := initLedger(ctx, store)
			if err != nil {
				return err
			}
			if err := backupBeforeDelete(ctx, cmd, store); err != nil {
				return err
			}

			n, err := l.ClearAllAccounts(ctx)
			if err != nil {
				return err
			}
			printLine(cmd, cli.FormatSuccess(fmt.Sprintf("Cleared %d accounts", n)))
			return nil
		},
	}
	cmd.Flags().Bool("yes", false, "Confirm deleting every account")
	return cmd
}

func accountsBalanceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "balance <account> <amount>",
		Short: "Record an account's balance",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := parseMoney("amount", args[1])
			if err != nil {
				return err
			}
			asOf := time.Now()
			if raw, _ := cmd.Flags().GetString("date"); raw != "" {
				if asOf, err = parseDay("date", raw); err != nil {
					return err
				}
			}

			ctx := cmd.Context()
			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer closeStorage(store)

			l, err := initLedger(ctx, store)
			if err != nil {
				return err
			}
			if err := l.UpdateBalance(ctx, args[0], amount, asOf); err != nil {
				return err
			}
			printLine(cmd, cli.FormatSuccess(fmt.Sprintf("%s balance set to %s", args[0], cli.FormatMoney(amount, appConfig.Import.Currency))))
			return nil
		},
	}
	cmd.Flags().String("date", "", "Balance date (default: today)")
	return cmd
}
