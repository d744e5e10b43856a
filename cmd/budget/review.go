package main

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/Veraticus/the-budget-must-balance/internal/cli"
	"github.com/spf13/cobra"
)

func reviewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "review",
		Short: "Categorize transactions flagged for review",
		Long: `Walk through stored transactions whose category confidence fell below the
review threshold. Every choice is stored and becomes a training example.`,
		Args: cobra.NoArgs,
		RunE: runReview,
	}

	cmd.Flags().String("account", "", "Only transactions from this account")
	cmd.Flags().String("from", "", "Only transactions on or after this date")
	cmd.Flags().String("to", "", "Only transactions on or before this date")
	cmd.Flags().Int("limit", 0, "Stop after this many transactions (0 means all)")

	return cmd
}

// reviewCategories offers rule categories first, then any category only the
// training corpus knows.
func reviewCategories(rules []string, stats map[string]int) []string {
	seen := make(map[string]bool, len(rules))
	out := make([]string, 0, len(rules)+len(stats))
	for _, c := range rules {
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	var extra []string
	for c := range stats {
		if !seen[c] {
			extra = append(extra, c)
		}
	}
	sort.Strings(extra)
	return append(out, extra...)
}

func runReview(cmd *cobra.Command, _ []string) error {
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

	filter, err := transactionFilter(cmd)
	if err != nil {
		return err
	}
	all, err := store.GetTransactions(ctx, filter)
	if err != nil {
		return fmt.Errorf("failed to load transactions: %w", err)
	}

	limit, _ := cmd.Flags().GetInt("limit")
	pending := all[:0]
	for _, t := range all {
		if t.NeedsReview {
			pending = append(pending, t)
		}
	}
	if limit > 0 && len(pending) > limit {
		pending = pending[:limit]
	}
	if len(pending) == 0 {
		printLine(cmd, cli.FormatSuccess("Nothing to review"))
		return nil
	}

	stats, err := classifier.CategoryStats(ctx)
	if err != nil {
		return err
	}
	reviewer := cli.NewReviewer(cmd.InOrStdin(), out(cmd),
		reviewCategories(classifier.Rules().Categories(), stats),
		appConfig.Classifier.ReviewThreshold)

	// Decisions made before an abort or interrupt are still stored.
	decisions, reviewErr := reviewer.Review(ctx, pending)

	saved, skipped := 0, 0
	for _, d := range decisions {
		if d.Skipped {
			skipped++
			continue
		}
		txn := d.Transaction
		if err := classifier.ManualOverride(context.WithoutCancel(ctx), &txn, d.Category); err != nil {
			return err
		}
		if err := store.UpdateCategory(context.WithoutCancel(ctx), txn.AccountName, txn.Digest(), txn.Category, txn.Confidence); err != nil {
			return err
		}
		saved++
	}

	printLine(cmd, cli.FormatSuccess(fmt.Sprintf("Saved %d, skipped %d", saved, skipped)))
	if saved > 0 && classifier.Model() == nil {
		printLine(cmd, cli.FormatInfo("Run 'budget train' once each category has enough examples"))
	}
	if reviewErr != nil {
		printLine(cmd, cli.FormatWarning(fmt.Sprintf("Review stopped with %d left", len(pending)-len(decisions))))
		if !errors.Is(reviewErr, cli.ErrReviewAborted) {
			return reviewErr
		}
	}
	return nil
}
