package model

import (
	"fmt"
	"strings"
	"time"
)

// Provenance records where a training example came from.
type Provenance string

// Provenance values.
const (
	ProvenanceManual   Provenance = "manual"
	ProvenanceInferred Provenance = "inferred"
)

// TrainingExample is one labelled description in the fallback model's corpus.
type TrainingExample struct {
	CreatedAt   time.Time
	ID          string
	Description string
	Category    string
	Provenance  Provenance
	Confidence  float64
}

// Validate checks the example before it is stored.
func (e *TrainingExample) Validate() error {
	if strings.TrimSpace(e.Description) == "" {
		return fmt.Errorf("%w: missing description", ErrInvalidExample)
	}
	if strings.TrimSpace(e.Category) == "" {
		return fmt.Errorf("%w: missing category", ErrInvalidExample)
	}
	if e.Confidence < 0 || e.Confidence > 1 {
		return fmt.Errorf("%w: confidence %.2f outside [0,1]", ErrInvalidExample, e.Confidence)
	}
	switch e.Provenance {
	case ProvenanceManual, ProvenanceInferred:
	default:
		return fmt.Errorf("%w: unknown provenance %q", ErrInvalidExample, e.Provenance)
	}
	return nil
}

// TrainingState is the lifecycle of a training run.
type TrainingState string

// Training states.
const (
	TrainingIdle      TrainingState = "idle"
	TrainingRunning   TrainingState = "running"
	TrainingCompleted TrainingState = "completed"
	TrainingFailed    TrainingState = "failed"
)

// ModelMetadata is persisted after every successful training run.
type ModelMetadata struct {
	LastTrained   time.Time
	Version       int
	TrainingCount int
	ExampleCount  int
}

// TrainingStatus is what callers poll while a training run is active.
type TrainingStatus struct {
	LastTrained         *time.Time
	CategoryCounts      map[string]int
	State               TrainingState
	JobID               string
	Error               string
	TotalExamples       int
	MinExamplesRequired int
	ModelVersion        int
	ModelTrained        bool
	InProgress          bool
	CanTrain            bool
}
