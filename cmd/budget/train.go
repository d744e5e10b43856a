package main

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/Veraticus/the-budget-must-balance/internal/classification"
	"github.com/Veraticus/the-budget-must-balance/internal/cli"
	"github.com/Veraticus/the-budget-must-balance/internal/common"
	"github.com/Veraticus/the-budget-must-balance/internal/model"
	"github.com/spf13/cobra"
)

// trainPollInterval is how often --async checks on the background run.
var trainPollInterval = 100 * time.Millisecond

func trainCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train the fallback model on stored examples",
		Long: `Fit the statistical model used for descriptions no rule matches. Every
category needs at least classifier.min_examples_per_category examples and at
least two categories are required.`,
		Args: cobra.NoArgs,
		RunE: runTrain,
	}

	cmd.Flags().Bool("async", false, "Train in the background and poll for the result")
	cmd.Flags().Bool("status", false, "Show corpus readiness and model metadata without training")

	return cmd
}

func runTrain(cmd *cobra.Command, _ []string) error {
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

	if statusOnly, _ := cmd.Flags().GetBool("status"); statusOnly {
		status, err := classifier.TrainingStatus(ctx)
		if err != nil {
			return err
		}
		printTrainingStatus(cmd, status)
		return nil
	}

	async, _ := cmd.Flags().GetBool("async")
	status, err := classifier.Train(ctx, async)
	var shortfall *common.InsufficientDataError
	if errors.As(err, &shortfall) {
		return common.NewUserError("not enough training examples; add some with 'budget examples add' or 'budget review'", err)
	}
	if err != nil {
		return err
	}

	if async {
		status, err = waitForTraining(cmd, classifier, status.JobID)
		if err != nil {
			return err
		}
	}

	if status.State == model.TrainingFailed {
		return fmt.Errorf("training failed: %s", status.Error)
	}
	final, err := classifier.TrainingStatus(ctx)
	if err != nil {
		return err
	}
	printLine(cmd, cli.FormatSuccess(fmt.Sprintf("Model v%d trained on %d examples", final.ModelVersion, final.TotalExamples)))
	return nil
}

// waitForTraining polls until the background run leaves the running state.
func waitForTraining(cmd *cobra.Command, c *classification.Classifier, jobID string) (model.TrainingStatus, error) {
	ctx := cmd.Context()
	printLine(cmd, cli.FormatInfo("Training job "+jobID+" started"))

	ticker := time.NewTicker(trainPollInterval)
	defer ticker.Stop()
	for {
		status, err := c.TrainingStatus(ctx)
		if err != nil {
			return status, err
		}
		if !status.InProgress {
			return status, nil
		}
		select {
		case <-ctx.Done():
			// The run finishes on its own; wait so the store stays open.
			c.Wait()
			return status, ctx.Err()
		case <-ticker.C:
		}
	}
}

func printTrainingStatus(cmd *cobra.Command, s model.TrainingStatus) {
	names := make([]string, 0, len(s.CategoryCounts))
	for name := range s.CategoryCounts {
		names = append(names, name)
	}
	sort.Strings(names)

	rows := make([][]string, 0, len(names))
	for _, name := range names {
		n := s.CategoryCounts[name]
		mark := cli.SuccessIcon
		if n < s.MinExamplesRequired {
			mark = cli.WarningIcon
		}
		rows = append(rows, []string{name, strconv.Itoa(n), mark})
	}

	printLine(cmd, cli.FormatTitle("Training status"))
	if len(rows) > 0 {
		printLine(cmd, cli.RenderTable([]string{"Category", "Examples", ""}, rows))
	}
	printLine(cmd, fmt.Sprintf("Examples: %d (minimum %d per category)", s.TotalExamples, s.MinExamplesRequired))
	printLine(cmd, fmt.Sprintf("Ready to train: %t", s.CanTrain))
	if s.LastTrained != nil {
		printLine(cmd, fmt.Sprintf("Model: v%d, trained %s", s.ModelVersion, s.LastTrained.Format(time.DateTime)))
	} else {
		printLine(cmd, "Model: not trained")
	}
}
