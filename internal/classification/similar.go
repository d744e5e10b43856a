package classification

import (
	"context"
	"sort"

	"github.com/Veraticus/the-budget-must-balance/internal/common"
	"github.com/Veraticus/the-budget-must-balance/internal/model"
	"github.com/agnivade/levenshtein"
)

// SimilarExample is a stored example ranked by edit distance.
type SimilarExample struct {
	Example  model.TrainingExample
	Distance int
}

// SimilarExamples returns up to limit training examples closest to
// description, compared on normalized text. Ties are ordered by description.
func (c *Classifier) SimilarExamples(ctx context.Context, description string, limit int) ([]SimilarExample, error) {
	if limit <= 0 {
		return nil, nil
	}

	examples, err := c.store.GetTrainingExamples(ctx)
	if err != nil {
		return nil, common.NewStorageError("load training examples", err)
	}

	target := Normalize(description)
	ranked := make([]SimilarExample, 0, len(examples))
	for _, ex := range examples {
		ranked = append(ranked, SimilarExample{
			Example:  ex,
			Distance: levenshtein.ComputeDistance(target, Normalize(ex.Description)),
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Distance != ranked[j].Distance {
			return ranked[i].Distance < ranked[j].Distance
		}
		return ranked[i].Example.Description < ranked[j].Example.Description
	})

	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked, nil
}
