package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/Veraticus/the-budget-must-balance/internal/cli"
	"github.com/Veraticus/the-budget-must-balance/internal/importer"
	"github.com/Veraticus/the-budget-must-balance/internal/service"
	"github.com/spf13/cobra"
)

var statementExtensions = map[string]bool{".csv": true, ".txt": true, ".ofx": true, ".qfx": true}

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import [files or directories...]",
		Short: "Import bank statement files",
		Long: `Import CSV, OFX or QFX statements. Files already imported are skipped and
rows seen in earlier statements of the same account are not counted twice.

Examples:
  # Import one statement
  budget import ~/Downloads/Lönekonto-2025-11-01.csv

  # Import every statement in a directory
  budget import ~/Downloads/statements

  # See what would happen without saving
  budget import --dry-run ~/Downloads/*.ofx`,
		Args: cobra.MinimumNArgs(1),
		RunE: runImport,
	}

	cmd.Flags().Bool("dry-run", false, "Parse, deduplicate and classify without saving")
	cmd.Flags().String("account", "", "Import into this account instead of deriving it from the filename")

	return cmd
}

// expandStatementPaths resolves globs and directories into statement files.
func expandStatementPaths(args []string) ([]string, error) {
	var files []string
	for _, pattern := range args {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %s: %w", pattern, err)
		}
		if len(matches) == 0 {
			slog.Warn("No files found matching pattern", "pattern", pattern)
			continue
		}

		for _, match := range matches {
			info, err := os.Stat(match)
			if err != nil {
				return nil, err
			}
			if !info.IsDir() {
				files = append(files, match)
				continue
			}
			entries, err := os.ReadDir(match)
			if err != nil {
				return nil, fmt.Errorf("failed to read directory %s: %w", match, err)
			}
			for _, e := range entries {
				if !e.IsDir() && statementExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
					files = append(files, filepath.Join(match, e.Name()))
				}
			}
		}
	}
	sort.Strings(files)
	return files, nil
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	account, _ := cmd.Flags().GetString("account")

	files, err := expandStatementPaths(args)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return errors.New("no files found to import")
	}

	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer closeStorage(store)

	l, err := initLedger(ctx, store)
	if err != nil {
		return err
	}
	classifier, err := initClassifier(ctx, store)
	if err != nil {
		return err
	}

	pipeline := importer.NewPipeline(l, classifier, store,
		importer.WithDryRun(dryRun),
		importer.WithAccount(account),
		importer.WithCurrency(appConfig.Import.Currency),
	)

	if dryRun {
		printLine(cmd, cli.FormatWarning("Dry run: nothing will be saved"))
	}

	progress := cli.NewProgress(cmd.ErrOrStderr(), len(files), "Importing")
	var (
		results []*service.ImportResult
		failed  []string
	)
	for _, path := range files {
		if ctx.Err() != nil {
			break
		}
		progress.Step(filepath.Base(path))
		result, err := pipeline.ImportFile(ctx, path)
		if err != nil {
			slog.Error("Import failed", "file", path, "error", err)
			failed = append(failed, fmt.Sprintf("%s: %v", filepath.Base(path), err))
			continue
		}
		results = append(results, result)
	}
	progress.Finish()

	printImportSummary(cmd, results)

	if len(failed) > 0 {
		for _, f := range failed {
			printLine(cmd, cli.FormatError(f))
		}
		return fmt.Errorf("%d of %d files failed to import", len(failed), len(files))
	}
	return ctx.Err()
}

func printImportSummary(cmd *cobra.Command, results []*service.ImportResult) {
	if len(results) == 0 {
		return
	}

	var newRows, dups, review int
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		status := strconv.Itoa(r.New) + " new"
		if r.Skipped {
			status = "already imported"
		}
		rows = append(rows, []string{
			r.Filename,
			r.Account,
			status,
			strconv.Itoa(r.Duplicates),
			strconv.Itoa(r.NeedsReview),
		})
		newRows += r.New
		dups += r.Duplicates
		review += r.NeedsReview
	}

	printLine(cmd, cli.RenderTable([]string{"File", "Account", "Result", "Duplicates", "Review"}, rows))
	printLine(cmd, cli.FormatSuccess(fmt.Sprintf("%d new, %d duplicates, %d to review", newRows, dups, review)))
	if review > 0 {
		printLine(cmd, cli.FormatInfo("Run 'budget review' to categorize flagged transactions"))
	}
}
