package classification

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/Veraticus/the-budget-must-balance/internal/model"
	"github.com/jbrukh/bayesian"
)

// ErrTooFewClasses is returned when a corpus spans fewer than two categories.
var ErrTooFewClasses = errors.New("model needs at least two categories")

// Model is a trained naive Bayes classifier over description terms. A Model
// is never mutated after TrainModel returns it, so Predict is safe to call
// from any goroutine.
type Model struct {
	trainedAt  time.Time
	classifier *bayesian.Classifier
	vocabulary map[string]struct{}
	classes    []bayesian.Class
	examples   int
}

// TrainModel fits a model to the examples. Examples whose description has no
// terms after normalization are skipped.
func TrainModel(examples []model.TrainingExample) (*Model, error) {
	byClass := make(map[string][][]string)
	vocabulary := make(map[string]struct{})
	used := 0
	for _, ex := range examples {
		doc := terms(Normalize(ex.Description))
		if len(doc) == 0 {
			continue
		}
		for _, term := range doc {
			vocabulary[term] = struct{}{}
		}
		byClass[ex.Category] = append(byClass[ex.Category], doc)
		used++
	}
	if len(byClass) < 2 {
		return nil, fmt.Errorf("%w: got %d", ErrTooFewClasses, len(byClass))
	}

	names := make([]string, 0, len(byClass))
	for name := range byClass {
		names = append(names, name)
	}
	sort.Strings(names)

	classes := make([]bayesian.Class, len(names))
	for i, name := range names {
		classes[i] = bayesian.Class(name)
	}

	c := bayesian.NewClassifier(classes...)
	for _, name := range names {
		for _, doc := range byClass[name] {
			c.Learn(doc, bayesian.Class(name))
		}
	}

	return &Model{
		classifier: c,
		vocabulary: vocabulary,
		classes:    classes,
		examples:   used,
		trainedAt:  time.Now(),
	}, nil
}

// Predict returns the most probable category and its posterior probability.
// ok is false when the description has no usable terms or none of its terms
// occurred in training.
func (m *Model) Predict(description string) (category string, probability float64, ok bool) {
	return m.predictNormalized(Normalize(description))
}

func (m *Model) predictNormalized(normalized string) (string, float64, bool) {
	doc := terms(normalized)
	if !m.knows(doc) {
		return "", 0, false
	}
	scores, best, _ := m.classifier.ProbScores(doc)
	return string(m.classes[best]), scores[best], true
}

func (m *Model) knows(doc []string) bool {
	for _, term := range doc {
		if _, ok := m.vocabulary[term]; ok {
			return true
		}
	}
	return false
}

// Categories returns the classes the model can predict, sorted.
func (m *Model) Categories() []string {
	out := make([]string, len(m.classes))
	for i, c := range m.classes {
		out[i] = string(c)
	}
	return out
}

// Examples is the number of examples the model learned from.
func (m *Model) Examples() int {
	return m.examples
}

// TrainedAt reports when the model was fitted.
func (m *Model) TrainedAt() time.Time {
	return m.trainedAt
}
