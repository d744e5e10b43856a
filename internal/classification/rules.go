package classification

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Veraticus/the-budget-must-balance/internal/model"
	"gopkg.in/yaml.v3"
)

// ruleFile is the on-disk layout of a rule table.
type ruleFile struct {
	Categories []model.CategoryRule `yaml:"categories"`
}

type compiledRule struct {
	rule     model.CategoryRule
	keywords []string // normalized, declaration order
}

// Rules is an immutable, ordered keyword table. The first category in
// declaration order whose keyword occurs in the description wins.
type Rules struct {
	rules []compiledRule
}

// RuleMatch describes which rule fired.
type RuleMatch struct {
	Category   string
	Keyword    string
	Confidence float64
}

// NewRules validates the table and normalizes every keyword once.
func NewRules(rules []model.CategoryRule) (*Rules, error) {
	seen := make(map[string]struct{}, len(rules))
	compiled := make([]compiledRule, 0, len(rules))

	for i := range rules {
		r := rules[i]
		if err := r.Validate(); err != nil {
			return nil, err
		}
		if _, dup := seen[r.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate category %s", model.ErrInvalidRule, r.ID)
		}
		seen[r.ID] = struct{}{}

		cr := compiledRule{rule: r, keywords: make([]string, 0, len(r.Keywords))}
		for _, kw := range r.Keywords {
			n := Normalize(kw)
			if n == "" {
				return nil, fmt.Errorf("%w: %s keyword %q normalizes to nothing", model.ErrInvalidRule, r.ID, kw)
			}
			cr.keywords = append(cr.keywords, n)
		}
		compiled = append(compiled, cr)
	}

	return &Rules{rules: compiled}, nil
}

// MustRules is NewRules for tables known to be valid.
func MustRules(rules []model.CategoryRule) *Rules {
	r, err := NewRules(rules)
	if err != nil {
		panic(err)
	}
	return r
}

// Match runs the rule pass over a raw description.
func (r *Rules) Match(description string) (RuleMatch, bool) {
	return r.matchNormalized(Normalize(description))
}

func (r *Rules) matchNormalized(normalized string) (RuleMatch, bool) {
	if normalized == "" {
		return RuleMatch{}, false
	}
	for _, cr := range r.rules {
		for _, kw := range cr.keywords {
			if strings.Contains(normalized, kw) {
				return RuleMatch{
					Category:   cr.rule.ID,
					Keyword:    kw,
					Confidence: cr.rule.Confidence,
				}, true
			}
		}
	}
	return RuleMatch{}, false
}

// Categories lists rule categories in declaration order.
func (r *Rules) Categories() []string {
	out := make([]string, len(r.rules))
	for i, cr := range r.rules {
		out[i] = cr.rule.ID
	}
	return out
}

// Table returns a copy of the rules as declared.
func (r *Rules) Table() []model.CategoryRule {
	out := make([]model.CategoryRule, len(r.rules))
	for i, cr := range r.rules {
		out[i] = cr.rule
		out[i].Keywords = append([]string(nil), cr.rule.Keywords...)
	}
	return out
}

// Len is the number of categories.
func (r *Rules) Len() int {
	return len(r.rules)
}

// LoadRules reads a YAML rule table.
func LoadRules(path string) ([]model.CategoryRule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules %s: %w", path, err)
	}

	var file ruleFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse rules %s: %w", path, err)
	}
	if len(file.Categories) == 0 {
		return nil, fmt.Errorf("%w: %s declares no categories", model.ErrInvalidRule, path)
	}
	return file.Categories, nil
}

// SaveRules writes a rule table as YAML, creating parent directories.
func SaveRules(path string, rules []model.CategoryRule) error {
	if len(rules) == 0 {
		return errors.New("refusing to write an empty rule table")
	}
	data, err := yaml.Marshal(ruleFile{Categories: rules})
	if err != nil {
		return fmt.Errorf("failed to encode rules: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("failed to create rules directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write rules %s: %w", path, err)
	}
	return nil
}
