package main

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/Veraticus/the-budget-must-balance/internal/cli"
	"github.com/Veraticus/the-budget-must-balance/internal/common"
	"github.com/Veraticus/the-budget-must-balance/internal/model"
	"github.com/Veraticus/the-budget-must-balance/internal/service"
	"github.com/spf13/cobra"
)

func classifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "classify [descriptions...]",
		Short: "Classify descriptions or re-classify stored transactions",
		Long: `With arguments, show how each description would be categorized.

Without arguments, re-run the rules and model over stored transactions and
show what would change. Pass --apply to store the new categories.
Transactions you categorized by hand are never touched.`,
		RunE: runClassify,
	}

	cmd.Flags().Bool("apply", false, "Store the new categories")
	cmd.Flags().String("account", "", "Only transactions from this account")
	cmd.Flags().String("from", "", "Only transactions on or after this date")
	cmd.Flags().String("to", "", "Only transactions on or before this date")

	return cmd
}

func runClassify(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer closeStorage(store)

	classifier, err := initClassifier(ctx, store)
	if err != nil {
		return err
	}
	threshold := appConfig.Classifier.ReviewThreshold

	if len(args) > 0 {
		rows := make([][]string, 0, len(args))
		for _, res := range classifier.PreviewClassify(args) {
			rows = append(rows, []string{res.Description, res.Category, string(res.Source), cli.FormatConfidence(res.Confidence, threshold)})
		}
		printLine(cmd, cli.RenderTable([]string{"Description", "Category", "Source", "Confidence"}, rows))
		return nil
	}

	filter, err := transactionFilter(cmd)
	if err != nil {
		return err
	}
	txns, err := store.GetTransactions(ctx, filter)
	if err != nil {
		return fmt.Errorf("failed to load transactions: %w", err)
	}

	updated := make([]model.Transaction, len(txns))
	copy(updated, txns)
	classifier.ClassifyTransactions(updated)

	var changed []int
	rows := [][]string{}
	for i := range txns {
		if updated[i].Category == txns[i].Category && updated[i].Status == txns[i].Status {
			continue
		}
		changed = append(changed, i)
		rows = append(rows, []string{
			txns[i].Date.Format("2006-01-02"),
			txns[i].Description,
			orDash(txns[i].Category),
			updated[i].Category,
			cli.FormatConfidence(updated[i].Confidence, threshold),
		})
	}

	if len(changed) == 0 {
		printLine(cmd, cli.FormatSuccess(fmt.Sprintf("All %d transactions are up to date", len(txns))))
		return nil
	}
	printLine(cmd, cli.RenderTable([]string{"Date", "Description", "Was", "Now", "Confidence"}, rows))

	apply, _ := cmd.Flags().GetBool("apply")
	if !apply {
		printLine(cmd, cli.FormatInfo(fmt.Sprintf("%d transactions would change; rerun with --apply to store", len(changed))))
		return nil
	}

	saved := 0
	for _, i := range changed {
		err := store.SaveClassification(ctx, &updated[i])
		if errors.Is(err, common.ErrNotFound) {
			slog.Debug("Transaction changed underneath classification", "description", updated[i].Description)
			continue
		}
		if err != nil {
			return err
		}
		saved++
	}
	printLine(cmd, cli.FormatSuccess(fmt.Sprintf("Updated %d transactions", saved)))
	return nil
}

// transactionFilter reads the shared --account/--from/--to flags.
func transactionFilter(cmd *cobra.Command) (service.TransactionFilter, error) {
	var filter service.TransactionFilter
	filter.AccountName, _ = cmd.Flags().GetString("account")

	if raw, _ := cmd.Flags().GetString("from"); raw != "" {
		d, err := parseDay("from", raw)
		if err != nil {
			return filter, err
		}
		filter.StartDate = &d
	}
	if raw, _ := cmd.Flags().GetString("to"); raw != "" {
		d, err := parseDay("to", raw)
		if err != nil {
			return filter, err
		}
		end := d.AddDate(0, 0, 1)
		filter.EndDate = &end
	}
	return filter, nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
