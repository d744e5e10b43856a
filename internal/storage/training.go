package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Veraticus/the-budget-must-balance/internal/common"
	"github.com/Veraticus/the-budget-must-balance/internal/model"
	"github.com/google/uuid"
)

// AddTrainingExample appends one example to the corpus.
func (s *SQLiteStorage) AddTrainingExample(ctx context.Context, example *model.TrainingExample) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if example == nil {
		return fmt.Errorf("%w: example", ErrNilParameter)
	}
	if err := example.Validate(); err != nil {
		return err
	}

	if example.ID == "" {
		example.ID = uuid.NewString()
	}
	if example.CreatedAt.IsZero() {
		example.CreatedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO training_examples (id, description, category, provenance, confidence, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		example.ID, example.Description, example.Category, string(example.Provenance),
		example.Confidence, example.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save training example: %w", err)
	}
	return nil
}

// GetTrainingExamples returns the corpus in insertion order.
func (s *SQLiteStorage) GetTrainingExamples(ctx context.Context) ([]model.TrainingExample, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, description, category, provenance, confidence, created_at
		FROM training_examples
		ORDER BY created_at, rowid`)
	if err != nil {
		return nil, fmt.Errorf("failed to query training examples: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var examples []model.TrainingExample
	for rows.Next() {
		var (
			ex         model.TrainingExample
			provenance string
		)
		if err := rows.Scan(&ex.ID, &ex.Description, &ex.Category, &provenance, &ex.Confidence, &ex.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan training example: %w", err)
		}
		ex.Provenance = model.Provenance(provenance)
		examples = append(examples, ex)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating training examples: %w", err)
	}
	return examples, nil
}

// CountExamplesByCategory returns the number of examples per category.
func (s *SQLiteStorage) CountExamplesByCategory(ctx context.Context) (map[string]int, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT category, COUNT(*) FROM training_examples GROUP BY category`)
	if err != nil {
		return nil, fmt.Errorf("failed to count training examples: %w", err)
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[string]int)
	for rows.Next() {
		var (
			category string
			n        int
		)
		if err := rows.Scan(&category, &n); err != nil {
			return nil, fmt.Errorf("failed to scan count: %w", err)
		}
		counts[category] = n
	}
	return counts, rows.Err()
}

// SaveModelMetadata stores the single metadata row.
func (s *SQLiteStorage) SaveModelMetadata(ctx context.Context, meta model.ModelMetadata) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO model_metadata (id, last_trained, version, training_count, example_count)
		VALUES (1, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			last_trained = excluded.last_trained,
			version = excluded.version,
			training_count = excluded.training_count,
			example_count = excluded.example_count`,
		meta.LastTrained, meta.Version, meta.TrainingCount, meta.ExampleCount)
	if err != nil {
		return fmt.Errorf("failed to save model metadata: %w", err)
	}
	return nil
}

// GetModelMetadata returns common.ErrNotFound until a model has been trained.
func (s *SQLiteStorage) GetModelMetadata(ctx context.Context) (*model.ModelMetadata, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	var meta model.ModelMetadata
	err := s.db.QueryRowContext(ctx, `
		SELECT last_trained, version, training_count, example_count
		FROM model_metadata WHERE id = 1`).
		Scan(&meta.LastTrained, &meta.Version, &meta.TrainingCount, &meta.ExampleCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("model metadata: %w", common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get model metadata: %w", err)
	}
	return &meta, nil
}
