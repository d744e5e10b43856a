package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/Veraticus/the-budget-must-balance/internal/model"
)

// ErrReviewAborted is returned when the input ends in the middle of a review.
var ErrReviewAborted = errors.New("review aborted")

// Decision is the outcome of reviewing one transaction.
type Decision struct {
	Category    string
	Transaction model.Transaction
	Skipped     bool
}

// Reviewer walks the user through transactions flagged for review.
type Reviewer struct {
	writer     io.Writer
	reader     *LineReader
	recent     []string
	categories []string
	threshold  float64
}

// NewReviewer creates a reviewer offering categories as numbered choices.
// threshold only affects how confidences are colored.
func NewReviewer(r io.Reader, w io.Writer, categories []string, threshold float64) *Reviewer {
	if r == nil {
		r = os.Stdin
	}
	if w == nil {
		w = os.Stdout
	}
	return &Reviewer{
		reader:     NewLineReader(r),
		writer:     w,
		categories: categories,
		threshold:  threshold,
	}
}

// Review prompts once per transaction. Quitting early returns the decisions
// made so far with a nil error.
func (r *Reviewer) Review(ctx context.Context, txns []model.Transaction) ([]Decision, error) {
	decisions := make([]Decision, 0, len(txns))
	progress := NewProgress(r.writer, len(txns), "Reviewing")
	defer progress.Finish()

	for i := range txns {
		if err := ctx.Err(); err != nil {
			return decisions, err
		}
		d, quit, err := r.reviewOne(ctx, txns[i])
		if err != nil {
			return decisions, err
		}
		if quit {
			break
		}
		decisions = append(decisions, d)
		if !d.Skipped {
			r.remember(d.Category)
		}
		progress.Step("")
	}
	return decisions, nil
}

func (r *Reviewer) reviewOne(ctx context.Context, txn model.Transaction) (Decision, bool, error) {
	hasSuggestion := txn.Category != "" && txn.Category != model.Uncategorized
	r.printf("%s\n", RenderBox("Transaction", r.describe(txn)))

	if hasSuggestion {
		r.printf("  [A] Accept %s\n", SuccessStyle.Render(txn.Category))
	}
	for i, c := range r.categories {
		r.printf("  [%d] %s\n", i+1, c)
	}
	r.printf("  [C] Other category\n  [S] Skip\n  [Q] Quit\n")

	for {
		r.printf("%s", FormatPrompt("Choice"))
		input, err := r.reader.ReadLine(ctx)
		if err != nil {
			return Decision{}, false, r.inputError(err)
		}
		choice := strings.ToLower(input)

		switch {
		case choice == "a" && hasSuggestion:
			return Decision{Transaction: txn, Category: txn.Category}, false, nil
		case choice == "s":
			return Decision{Transaction: txn, Skipped: true}, false, nil
		case choice == "q":
			return Decision{}, true, nil
		case choice == "c":
			category, err := r.promptCategory(ctx)
			if err != nil {
				return Decision{}, false, err
			}
			return Decision{Transaction: txn, Category: category}, false, nil
		}

		if n, err := strconv.Atoi(choice); err == nil && n >= 1 && n <= len(r.categories) {
			return Decision{Transaction: txn, Category: r.categories[n-1]}, false, nil
		}
		r.printf("%s\n", FormatError("Invalid choice. Please try again."))
	}
}

func (r *Reviewer) promptCategory(ctx context.Context) (string, error) {
	if len(r.recent) > 0 {
		r.printf("%s %s\n", FormatInfo("Recent:"), strings.Join(r.recent, ", "))
	}
	for {
		r.printf("%s", FormatPrompt("Category"))
		input, err := r.reader.ReadLine(ctx)
		if err != nil {
			return "", r.inputError(err)
		}
		if input != "" {
			return input, nil
		}
		r.printf("%s\n", FormatError("Category cannot be empty."))
	}
}

func (r *Reviewer) describe(txn model.Transaction) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s  %s\n", txn.Date.Format("2006-01-02"), BoldStyle.Render(txn.Description))
	fmt.Fprintf(&b, "Amount:  %s\n", FormatMoney(txn.Amount, txn.Currency))
	if txn.AccountName != "" {
		fmt.Fprintf(&b, "Account: %s\n", txn.AccountName)
	}
	if txn.Category != "" && txn.Category != model.Uncategorized {
		fmt.Fprintf(&b, "Guess:   %s (%s)", txn.Category, FormatConfidence(txn.Confidence, r.threshold))
	} else {
		b.WriteString(SubtleStyle.Render("No suggestion"))
	}
	return b.String()
}

// remember keeps the five most recent distinct categories, newest first.
func (r *Reviewer) remember(category string) {
	out := []string{category}
	for _, c := range r.recent {
		if c != category && len(out) < 5 {
			out = append(out, c)
		}
	}
	r.recent = out
}

func (r *Reviewer) inputError(err error) error {
	if errors.Is(err, io.EOF) {
		return ErrReviewAborted
	}
	return err
}

func (r *Reviewer) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(r.writer, format, args...)
}
