package main

import (
	"fmt"
	"strings"

	"github.com/Veraticus/the-budget-must-balance/internal/classification"
	"github.com/Veraticus/the-budget-must-balance/internal/cli"
	"github.com/Veraticus/the-budget-must-balance/internal/common"
	"github.com/spf13/cobra"
)

func rulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Manage the keyword rule table",
		Long: `Rules map description keywords to categories. The first category, in
declaration order, with a keyword found in a description wins.

The active table is classifier.rules_file when set, otherwise the table
stored in the database, otherwise the built-in Swedish defaults.`,
	}

	cmd.AddCommand(rulesListCmd())
	cmd.AddCommand(rulesExportCmd())
	cmd.AddCommand(rulesImportCmd())

	return cmd
}

func rulesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Show the active rules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer closeStorage(store)

			rules, err := loadRules(ctx, store)
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(rules))
			for _, r := range rules {
				conf := "default"
				if r.Confidence > 0 {
					conf = fmt.Sprintf("%.2f", r.Confidence)
				}
				rows = append(rows, []string{r.ID, r.DisplayName(), strings.Join(r.Keywords, ", "), conf})
			}
			printLine(cmd, cli.RenderTable([]string{"Category", "Name", "Keywords", "Confidence"}, rows))
			return nil
		},
	}
}

func rulesExportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export <file.yaml>",
		Short: "Write the active rules to a YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer closeStorage(store)

			rules, err := loadRules(ctx, store)
			if err != nil {
				return err
			}
			if err := classification.SaveRules(args[0], rules); err != nil {
				return err
			}
			printLine(cmd, cli.FormatSuccess(fmt.Sprintf("Exported %d rules to %s", len(rules), args[0])))
			return nil
		},
	}
}

func rulesImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.yaml>",
		Short: "Replace the stored rules with a YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rules, err := classification.LoadRules(args[0])
			if err != nil {
				return common.NewUserError("cannot read rules", err)
			}
			if _, err := classification.NewRules(rules); err != nil {
				return common.NewUserError("rules are invalid", err)
			}

			ctx := cmd.Context()
			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer closeStorage(store)

			if err := store.ReplaceRules(ctx, rules); err != nil {
				return fmt.Errorf("failed to store rules: %w", err)
			}
			printLine(cmd, cli.FormatSuccess(fmt.Sprintf("Stored %d rules", len(rules))))
			if appConfig.Classifier.RulesFile != "" {
				printLine(cmd, cli.FormatWarning("classifier.rules_file is set and takes precedence over stored rules"))
			}
			return nil
		},
	}
}
