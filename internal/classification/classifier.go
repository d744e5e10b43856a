package classification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/Veraticus/the-budget-must-balance/internal/common"
	"github.com/Veraticus/the-budget-must-balance/internal/model"
	"github.com/Veraticus/the-budget-must-balance/internal/service"
	"github.com/google/uuid"
)

// Config tunes the classifier.
type Config struct {
	RuleConfidence         float64
	ReviewThreshold        float64
	MinConfidence          float64
	MinExamplesPerCategory int
	AutoTrain              bool
}

// DefaultConfig returns the stock thresholds.
func DefaultConfig() Config {
	return Config{
		RuleConfidence:         model.DefaultRuleConfidence,
		ReviewThreshold:        0.7,
		MinConfidence:          0.3,
		MinExamplesPerCategory: 2,
	}
}

// job is the bookkeeping for the most recent training run.
type job struct {
	id    string
	err   string
	state model.TrainingState
}

// Classifier is the hybrid rules-then-model categorizer. Classification
// never blocks on training: the model is swapped in atomically once a run
// finishes.
type Classifier struct {
	store    service.TrainingStore
	rules    atomic.Pointer[Rules]
	model    atomic.Pointer[Model]
	job      job
	cfg      Config
	training atomic.Bool
	jobMu    sync.RWMutex
	wg       sync.WaitGroup
}

// New creates a classifier. rules may be nil for a model-only setup.
func New(cfg Config, rules *Rules, store service.TrainingStore) *Classifier {
	if cfg.MinExamplesPerCategory < 1 {
		cfg.MinExamplesPerCategory = 1
	}
	if cfg.RuleConfidence <= 0 {
		cfg.RuleConfidence = model.DefaultRuleConfidence
	}
	if rules == nil {
		rules = &Rules{}
	}

	c := &Classifier{
		store: store,
		cfg:   cfg,
		job:   job{state: model.TrainingIdle},
	}
	c.rules.Store(rules)
	return c
}

// SetRules replaces the rule table for subsequent classifications.
func (c *Classifier) SetRules(rules *Rules) {
	if rules == nil {
		rules = &Rules{}
	}
	c.rules.Store(rules)
}

// Rules returns the active rule table.
func (c *Classifier) Rules() *Rules {
	return c.rules.Load()
}

// Model returns the active model, or nil before the first training run.
func (c *Classifier) Model() *Model {
	return c.model.Load()
}

// Classify categorizes one description.
func (c *Classifier) Classify(description string) model.ClassificationResult {
	result := model.ClassificationResult{
		Description: description,
		Category:    model.Uncategorized,
		Source:      model.SourceNone,
	}
	normalized := Normalize(description)

	if m, ok := c.rules.Load().matchNormalized(normalized); ok {
		result.Category = m.Category
		result.Source = model.SourceRule
		result.Confidence = m.Confidence
		if result.Confidence == 0 {
			result.Confidence = c.cfg.RuleConfidence
		}
	} else if mdl := c.model.Load(); mdl != nil {
		if category, p, ok := mdl.predictNormalized(normalized); ok && p >= c.cfg.MinConfidence {
			result.Category = category
			result.Source = model.SourceModel
			result.Confidence = p
		}
	}

	result.NeedsReview = result.Confidence < c.cfg.ReviewThreshold
	return result
}

// PreviewClassify classifies descriptions without persisting anything.
func (c *Classifier) PreviewClassify(descriptions []string) []model.ClassificationResult {
	out := make([]model.ClassificationResult, len(descriptions))
	for i, d := range descriptions {
		out[i] = c.Classify(d)
	}
	return out
}

// ClassifyTransactions fills in category fields in place and returns how
// many transactions need review. User-modified transactions are left alone.
func (c *Classifier) ClassifyTransactions(txns []model.Transaction) int {
	review := 0
	for i := range txns {
		txn := &txns[i]
		if txn.Status == model.StatusUserModified {
			continue
		}
		res := c.Classify(txn.Description)
		txn.Category = res.Category
		txn.Confidence = res.Confidence
		txn.NeedsReview = res.NeedsReview
		txn.Status = res.Source.Status()
		if res.NeedsReview {
			review++
		}
	}
	return review
}

// AddTrainingExample stores a labelled description. With AutoTrain set, a
// synchronous retrain starts when this example brings its category up to
// the per-category minimum.
func (c *Classifier) AddTrainingExample(ctx context.Context, description, category string, provenance model.Provenance) (*model.TrainingExample, error) {
	if provenance == "" {
		provenance = model.ProvenanceManual
	}
	ex := &model.TrainingExample{
		Description: description,
		Category:    category,
		Provenance:  provenance,
		Confidence:  1.0,
	}
	if err := ex.Validate(); err != nil {
		return nil, common.WrapValidation("training example", err)
	}

	var before int
	if c.cfg.AutoTrain {
		counts, err := c.store.CountExamplesByCategory(ctx)
		if err != nil {
			return nil, common.NewStorageError("count examples", err)
		}
		before = counts[category]
	}

	if err := c.store.AddTrainingExample(ctx, ex); err != nil {
		return nil, common.NewStorageError("add training example", err)
	}
	slog.Debug("Added training example", "category", category, "provenance", provenance)

	if c.cfg.AutoTrain && before+1 == c.cfg.MinExamplesPerCategory {
		_, err := c.Train(ctx, false)
		switch {
		case err == nil:
			slog.Info("Retrained after category reached minimum", "category", category)
		case errors.Is(err, common.ErrInsufficientData), errors.Is(err, common.ErrConcurrentTraining):
			slog.Debug("Skipped automatic retrain", "category", category, "reason", err)
		default:
			return ex, fmt.Errorf("automatic retrain failed: %w", err)
		}
	}
	return ex, nil
}

// ManualOverride pins a transaction to category and records the choice as a
// manual training example.
func (c *Classifier) ManualOverride(ctx context.Context, txn *model.Transaction, category string) error {
	if txn == nil {
		return common.NewValidationError("transaction", "must not be nil")
	}
	if _, err := c.AddTrainingExample(ctx, txn.Description, category, model.ProvenanceManual); err != nil {
		return err
	}
	txn.Category = category
	txn.Confidence = 1.0
	txn.NeedsReview = false
	txn.Status = model.StatusUserModified
	return nil
}

// Train fits a new model on every stored example. The corpus is checked
// before anything starts, so InsufficientDataError is always returned
// synchronously. With async set Train returns as soon as the run is
// launched; poll TrainingStatus for the outcome. A call while another run
// is active fails with ErrConcurrentTraining.
func (c *Classifier) Train(ctx context.Context, async bool) (model.TrainingStatus, error) {
	if !c.training.CompareAndSwap(false, true) {
		return c.status(), common.ErrConcurrentTraining
	}

	examples, err := c.store.GetTrainingExamples(ctx)
	if err != nil {
		c.training.Store(false)
		return c.status(), common.NewStorageError("load training examples", err)
	}
	if err := c.checkCorpus(countByCategory(examples)); err != nil {
		c.training.Store(false)
		return c.status(), err
	}

	id := uuid.NewString()
	c.setJob(job{id: id, state: model.TrainingRunning})
	slog.Info("Training started", "job", id, "examples", len(examples), "async", async)

	if async {
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			_ = c.run(context.WithoutCancel(ctx), id, examples)
		}()
		return c.status(), nil
	}

	err = c.run(ctx, id, examples)
	return c.status(), err
}

// Wait blocks until any background training run has finished.
func (c *Classifier) Wait() {
	c.wg.Wait()
}

func (c *Classifier) run(ctx context.Context, id string, examples []model.TrainingExample) (err error) {
	defer c.training.Store(false)
	defer func() {
		state := job{id: id, state: model.TrainingCompleted}
		if err != nil {
			state.state = model.TrainingFailed
			state.err = err.Error()
			common.LogError(err, "Training failed", common.Fields{"job": id})
		}
		c.setJob(state)
	}()

	mdl, err := TrainModel(examples)
	if err != nil {
		return err
	}

	meta, err := c.store.GetModelMetadata(ctx)
	switch {
	case errors.Is(err, common.ErrNotFound):
		meta = &model.ModelMetadata{}
	case err != nil:
		return common.NewStorageError("load model metadata", err)
	}

	next := model.ModelMetadata{
		LastTrained:   mdl.TrainedAt(),
		Version:       meta.Version + 1,
		TrainingCount: meta.TrainingCount + 1,
		ExampleCount:  mdl.Examples(),
	}
	if err := c.store.SaveModelMetadata(ctx, next); err != nil {
		return common.NewStorageError("save model metadata", err)
	}

	c.model.Store(mdl)
	slog.Info("Training completed",
		"job", id,
		"version", next.Version,
		"examples", next.ExampleCount,
		"categories", len(mdl.Categories()))
	return nil
}

// Restore rebuilds the model from the stored corpus without bumping the
// model version. It is a no-op when the corpus cannot be trained.
func (c *Classifier) Restore(ctx context.Context) error {
	examples, err := c.store.GetTrainingExamples(ctx)
	if err != nil {
		return common.NewStorageError("load training examples", err)
	}
	if c.checkCorpus(countByCategory(examples)) != nil {
		return nil
	}
	mdl, err := TrainModel(examples)
	if err != nil {
		return err
	}
	c.model.Store(mdl)
	return nil
}

// checkCorpus enforces at least two categories with the minimum number of
// examples each. On failure the shortfall also lists rule categories that
// have no examples at all.
func (c *Classifier) checkCorpus(counts map[string]int) error {
	minimum := c.cfg.MinExamplesPerCategory
	shortfall := make(map[string]int)
	for category, n := range counts {
		if n < minimum {
			shortfall[category] = n
		}
	}
	if len(shortfall) == 0 && len(counts) >= 2 {
		return nil
	}

	for _, category := range c.rules.Load().Categories() {
		if _, ok := counts[category]; !ok {
			shortfall[category] = 0
		}
	}
	ready := 0
	for _, n := range counts {
		if n >= minimum {
			ready++
		}
	}
	return &common.InsufficientDataError{
		Shortfall:  shortfall,
		Required:   minimum,
		Categories: ready,
	}
}

// TrainingStatus reports corpus readiness, model metadata and the state of
// the latest training run.
func (c *Classifier) TrainingStatus(ctx context.Context) (model.TrainingStatus, error) {
	status := c.status()

	counts, err := c.store.CountExamplesByCategory(ctx)
	if err != nil {
		return status, common.NewStorageError("count examples", err)
	}
	status.CategoryCounts = counts
	for _, n := range counts {
		status.TotalExamples += n
	}
	status.CanTrain = c.checkCorpus(counts) == nil

	meta, err := c.store.GetModelMetadata(ctx)
	switch {
	case errors.Is(err, common.ErrNotFound):
	case err != nil:
		return status, common.NewStorageError("load model metadata", err)
	default:
		lastTrained := meta.LastTrained
		status.LastTrained = &lastTrained
		status.ModelVersion = meta.Version
	}
	return status, nil
}

// CategoryStats returns the number of training examples per category.
func (c *Classifier) CategoryStats(ctx context.Context) (map[string]int, error) {
	counts, err := c.store.CountExamplesByCategory(ctx)
	if err != nil {
		return nil, common.NewStorageError("count examples", err)
	}
	return counts, nil
}

func (c *Classifier) status() model.TrainingStatus {
	c.jobMu.RLock()
	j := c.job
	c.jobMu.RUnlock()

	return model.TrainingStatus{
		State:               j.state,
		JobID:               j.id,
		Error:               j.err,
		InProgress:          j.state == model.TrainingRunning,
		ModelTrained:        c.model.Load() != nil,
		MinExamplesRequired: c.cfg.MinExamplesPerCategory,
	}
}

func (c *Classifier) setJob(j job) {
	c.jobMu.Lock()
	c.job = j
	c.jobMu.Unlock()
}

func countByCategory(examples []model.TrainingExample) map[string]int {
	counts := make(map[string]int)
	for _, ex := range examples {
		counts[ex.Category]++
	}
	return counts
}
