package importer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/Veraticus/the-budget-must-balance/internal/classification"
	"github.com/Veraticus/the-budget-must-balance/internal/ledger"
	"github.com/Veraticus/the-budget-must-balance/internal/model"
	"github.com/Veraticus/the-budget-must-balance/internal/service"
)

// Pipeline imports statement files end to end.
type Pipeline struct {
	ledger     *ledger.Ledger
	classifier *classification.Classifier
	store      service.TransactionStore
	account    string
	currency   string
	dryRun     bool
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithDryRun parses, filters and classifies without saving or committing.
func WithDryRun(dryRun bool) PipelineOption {
	return func(p *Pipeline) { p.dryRun = dryRun }
}

// WithAccount overrides the account otherwise derived from the filename.
func WithAccount(account string) PipelineOption {
	return func(p *Pipeline) { p.account = strings.TrimSpace(account) }
}

// WithCurrency sets the currency for rows that carry none.
func WithCurrency(currency string) PipelineOption {
	return func(p *Pipeline) { p.currency = currency }
}

// NewPipeline wires the ledger, classifier and transaction store together.
func NewPipeline(l *ledger.Ledger, c *classification.Classifier, store service.TransactionStore, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		ledger:     l,
		classifier: c,
		store:      store,
		currency:   model.DefaultCurrency,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ImportFile reads path and imports it.
func (p *Pipeline) ImportFile(ctx context.Context, path string) (*service.ImportResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return p.Import(ctx, filepath.Base(path), data)
}

// Import runs one file through digest check, parse, dedup, classification,
// save and ledger commit. A byte-identical file already in the account's
// history is skipped before parsing.
func (p *Pipeline) Import(ctx context.Context, filename string, data []byte) (*service.ImportResult, error) {
	digest := ledger.BytesDigest(data)
	result := &service.ImportResult{
		Filename: filename,
		Digest:   digest,
		DryRun:   p.dryRun,
	}

	account, err := p.resolveAccount(ctx, filename)
	if err != nil {
		return nil, err
	}
	result.Account = account

	if p.ledger.IsFileImported(account, digest) {
		slog.Info("File already imported", "account", account, "file", filename)
		result.Skipped = true
		return result, nil
	}

	stmt, err := Parse(ctx, filename, data, p.currency)
	if err != nil {
		return nil, err
	}
	for i := range stmt.Transactions {
		stmt.Transactions[i].AccountName = account
	}
	result.Parsed = len(stmt.Transactions)

	fresh, duplicates := p.ledger.FilterNewTransactions(account, stmt.Transactions)
	result.Duplicates = duplicates
	result.New = len(fresh)
	result.NeedsReview = p.classifier.ClassifyTransactions(fresh)

	if p.dryRun {
		return result, nil
	}

	if len(fresh) > 0 {
		if _, err := p.store.SaveTransactions(ctx, fresh); err != nil {
			return nil, fmt.Errorf("failed to save transactions from %s: %w", filename, err)
		}
	}

	digests := make([]string, len(fresh))
	for i := range fresh {
		digests[i] = fresh[i].Digest()
	}
	if _, err := p.ledger.Commit(ctx, account, model.FileRecord{
		Filename:         filename,
		Digest:           digest,
		TransactionCount: len(fresh),
	}, digests); err != nil {
		return nil, err
	}

	if stmt.Balance != nil {
		if err := p.ledger.UpdateBalance(ctx, account, *stmt.Balance, *stmt.BalanceDate); err != nil {
			return nil, err
		}
	}

	slog.Info("Imported file",
		"account", account,
		"file", filename,
		"parsed", result.Parsed,
		"new", result.New,
		"duplicates", result.Duplicates,
		"needs_review", result.NeedsReview)
	return result, nil
}

// resolveAccount returns the account for filename without creating it on a
// dry run.
func (p *Pipeline) resolveAccount(ctx context.Context, filename string) (string, error) {
	source := filename
	if p.account != "" {
		source = p.account
	}
	if p.dryRun {
		if name := ledger.ResolveAccount(source); name != "" {
			return name, nil
		}
	}
	return p.ledger.EnsureAccount(ctx, source)
}
