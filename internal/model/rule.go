package model

import (
	"fmt"
	"strings"
)

// DefaultRuleConfidence is the fixed score given to any keyword match.
const DefaultRuleConfidence = 0.95

// CategoryRule maps keywords onto a spending category.
type CategoryRule struct {
	ID         string   `yaml:"id"`
	Name       string   `yaml:"name,omitempty"`
	Keywords   []string `yaml:"keywords"`
	Confidence float64  `yaml:"confidence,omitempty"`
}

// DisplayName returns Name, or the ID when no name is set.
func (r *CategoryRule) DisplayName() string {
	if r.Name != "" {
		return r.Name
	}
	return r.ID
}

// Validate checks that the rule can be matched.
func (r *CategoryRule) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidRule)
	}
	if len(r.Keywords) == 0 {
		return fmt.Errorf("%w: %s has no keywords", ErrInvalidRule, r.ID)
	}
	for i, kw := range r.Keywords {
		if strings.TrimSpace(kw) == "" {
			return fmt.Errorf("%w: %s keyword %d is empty", ErrInvalidRule, r.ID, i)
		}
	}
	if r.Confidence < 0 || r.Confidence > 1 {
		return fmt.Errorf("%w: %s confidence %.2f outside [0,1]", ErrInvalidRule, r.ID, r.Confidence)
	}
	return nil
}
