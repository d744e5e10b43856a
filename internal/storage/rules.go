package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Veraticus/the-budget-must-balance/internal/model"
)

// GetRules returns the rule table in declaration order.
func (s *SQLiteStorage) GetRules(ctx context.Context) ([]model.CategoryRule, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.name, r.confidence, k.keyword
		FROM category_rules r
		JOIN rule_keywords k ON k.rule_id = r.id
		ORDER BY r.position, k.position`)
	if err != nil {
		return nil, fmt.Errorf("failed to query rules: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var rules []model.CategoryRule
	for rows.Next() {
		var (
			id, name, keyword string
			confidence        float64
		)
		if err := rows.Scan(&id, &name, &confidence, &keyword); err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		if n := len(rules); n == 0 || rules[n-1].ID != id {
			rules = append(rules, model.CategoryRule{ID: id, Name: name, Confidence: confidence})
		}
		last := &rules[len(rules)-1]
		last.Keywords = append(last.Keywords, keyword)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rules: %w", err)
	}
	return rules, nil
}

// ReplaceRules swaps the whole rule table, preserving the given order.
func (s *SQLiteStorage) ReplaceRules(ctx context.Context, rules []model.CategoryRule) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateRules(rules); err != nil {
		return err
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM rule_keywords`); err != nil {
			return fmt.Errorf("failed to clear keywords: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM category_rules`); err != nil {
			return fmt.Errorf("failed to clear rules: %w", err)
		}

		for pos, rule := range rules {
			confidence := rule.Confidence
			if confidence == 0 {
				confidence = model.DefaultRuleConfidence
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO category_rules (position, id, name, confidence) VALUES (?, ?, ?, ?)`,
				pos, rule.ID, rule.Name, confidence); err != nil {
				return fmt.Errorf("failed to insert rule %s: %w", rule.ID, err)
			}
			for kpos, kw := range rule.Keywords {
				if _, err := tx.ExecContext(ctx,
					`INSERT INTO rule_keywords (rule_id, position, keyword) VALUES (?, ?, ?)`,
					rule.ID, kpos, kw); err != nil {
					return fmt.Errorf("failed to insert keyword for %s: %w", rule.ID, err)
				}
			}
		}
		return nil
	})
}
