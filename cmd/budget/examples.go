package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/Veraticus/the-budget-must-balance/internal/cli"
	"github.com/Veraticus/the-budget-must-balance/internal/model"
	"github.com/spf13/cobra"
)

func examplesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "examples",
		Short: "Manage training examples for the fallback model",
	}

	cmd.AddCommand(examplesAddCmd())
	cmd.AddCommand(examplesListCmd())
	cmd.AddCommand(examplesSimilarCmd())

	return cmd
}

func examplesAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <category> <description...>",
		Short: "Add a labelled description",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
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

			provenance := model.ProvenanceManual
			if inferred, _ := cmd.Flags().GetBool("inferred"); inferred {
				provenance = model.ProvenanceInferred
			}
			description := strings.Join(args[1:], " ")
			if _, err := classifier.AddTrainingExample(ctx, description, args[0], provenance); err != nil {
				return err
			}
			printLine(cmd, cli.FormatSuccess(fmt.Sprintf("Added %q as %s", description, args[0])))
			return nil
		},
	}
	cmd.Flags().Bool("inferred", false, "Mark the example as inferred rather than entered by hand")
	return cmd
}

func examplesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Count examples per category",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
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
			stats, err := classifier.CategoryStats(ctx)
			if err != nil {
				return err
			}
			if len(stats) == 0 {
				printLine(cmd, cli.FormatInfo("No training examples yet"))
				return nil
			}

			names := make([]string, 0, len(stats))
			for name := range stats {
				names = append(names, name)
			}
			sort.Strings(names)
			rows := make([][]string, 0, len(names))
			for _, name := range names {
				rows = append(rows, []string{name, strconv.Itoa(stats[name])})
			}
			printLine(cmd, cli.RenderTable([]string{"Category", "Examples"}, rows))
			return nil
		},
	}
}

func examplesSimilarCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "similar <description...>",
		Short: "Show the stored examples closest to a description",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
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
			limit, _ := cmd.Flags().GetInt("limit")
			similar, err := classifier.SimilarExamples(ctx, strings.Join(args, " "), limit)
			if err != nil {
				return err
			}

			rows := make([][]string, 0, len(similar))
			for _, s := range similar {
				rows = append(rows, []string{s.Example.Description, s.Example.Category, strconv.Itoa(s.Distance)})
			}
			printLine(cmd, cli.RenderTable([]string{"Description", "Category", "Distance"}, rows))
			return nil
		},
	}
	cmd.Flags().Int("limit", 5, "Number of examples to show")
	return cmd
}
