package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"filer/internal/services"
	"filer/internal/taxonomy"
)

const ruleColumns = "id, name, rule_type, pattern, target_type, target_id, priority, is_active, match_count, exclude_pattern, created_at, updated_at"

func scanRule(scanner rowScanner) (taxonomy.Rule, error) {
	var (
		rule       taxonomy.Rule
		ruleType   string
		targetType string
		active     int
		exclude    sql.NullString
		createdRaw string
		updatedRaw string
	)
	if err := scanner.Scan(
		&rule.ID,
		&rule.Name,
		&ruleType,
		&rule.Pattern,
		&targetType,
		&rule.TargetID,
		&rule.Priority,
		&active,
		&rule.MatchCount,
		&exclude,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return rule, err
	}
	rule.Type = taxonomy.RuleType(ruleType)
	rule.TargetType = taxonomy.TargetType(targetType)
	rule.Active = active != 0
	rule.ExcludePattern = exclude.String
	if created, err := parseTimeString(createdRaw); err == nil {
		rule.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		rule.UpdatedAt = updated
	}
	return rule, nil
}

func (s *Store) queryRules(ctx context.Context, query string, args ...any) ([]taxonomy.Rule, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("query rules: %w", err)
	}
	defer rows.Close()
	var rules []taxonomy.Rule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan rule: %w", err)
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

// ActiveRules returns active rules by priority desc, match count desc, then
// creation time asc.
func (s *Store) ActiveRules(ctx context.Context) ([]taxonomy.Rule, error) {
	return s.queryRules(ctx, `SELECT `+ruleColumns+` FROM rules WHERE is_active = 1
		ORDER BY priority DESC, match_count DESC, created_at ASC, id ASC`)
}

// ListRules returns every rule in evaluation order, inactive ones last.
func (s *Store) ListRules(ctx context.Context) ([]taxonomy.Rule, error) {
	return s.queryRules(ctx, `SELECT `+ruleColumns+` FROM rules
		ORDER BY is_active DESC, priority DESC, match_count DESC, created_at ASC, id ASC`)
}

// GetRule fetches one rule.
func (s *Store) GetRule(ctx context.Context, id int64) (taxonomy.Rule, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+ruleColumns+` FROM rules WHERE id = ?`, id)
	rule, err := scanRule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return rule, services.Wrap(services.ErrNotFound, "store", "get rule", fmt.Sprintf("rule %d does not exist", id), nil)
	}
	if err != nil {
		return rule, fmt.Errorf("get rule: %w", err)
	}
	return rule, nil
}

// CreateRule validates and inserts a rule.
func (s *Store) CreateRule(ctx context.Context, rule taxonomy.Rule) (taxonomy.Rule, error) {
	rule.Name = strings.TrimSpace(rule.Name)
	rule.Pattern = strings.TrimSpace(rule.Pattern)
	if err := taxonomy.ValidateRule(rule); err != nil {
		return rule, err
	}
	now := s.now()
	res, err := s.execWithRetry(ctx,
		`INSERT INTO rules (name, rule_type, pattern, target_type, target_id, priority, is_active, match_count, exclude_pattern, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, 0, ?, ?, ?)`,
		rule.Name, string(rule.Type), rule.Pattern, string(rule.TargetType), strings.TrimSpace(rule.TargetID),
		rule.Priority, boolToInt(rule.Active), nullableString(strings.TrimSpace(rule.ExcludePattern)),
		formatTime(now), formatTime(now),
	)
	if err != nil {
		return rule, fmt.Errorf("insert rule: %w", err)
	}
	rule.ID, _ = res.LastInsertId()
	rule.MatchCount = 0
	rule.CreatedAt = now.UTC()
	rule.UpdatedAt = now.UTC()
	s.notifyChange()
	return rule, nil
}

// UpdateRule replaces a rule's editable fields. The pattern is re-validated
// when it or the rule type changed.
func (s *Store) UpdateRule(ctx context.Context, rule taxonomy.Rule) (taxonomy.Rule, error) {
	existing, err := s.GetRule(ctx, rule.ID)
	if err != nil {
		return rule, err
	}
	rule.Name = strings.TrimSpace(rule.Name)
	rule.Pattern = strings.TrimSpace(rule.Pattern)
	if rule.Pattern != existing.Pattern || rule.Type != existing.Type || rule.ExcludePattern != existing.ExcludePattern ||
		rule.TargetID != existing.TargetID || rule.TargetType != existing.TargetType || rule.Name != existing.Name {
		if err := taxonomy.ValidateRule(rule); err != nil {
			return rule, err
		}
	}
	now := s.now()
	if _, err := s.execWithRetry(ctx,
		`UPDATE rules SET name = ?, rule_type = ?, pattern = ?, target_type = ?, target_id = ?, priority = ?,
		is_active = ?, exclude_pattern = ?, updated_at = ? WHERE id = ?`,
		rule.Name, string(rule.Type), rule.Pattern, string(rule.TargetType), strings.TrimSpace(rule.TargetID),
		rule.Priority, boolToInt(rule.Active), nullableString(strings.TrimSpace(rule.ExcludePattern)),
		formatTime(now), rule.ID,
	); err != nil {
		return rule, fmt.Errorf("update rule: %w", err)
	}
	rule.MatchCount = existing.MatchCount
	rule.CreatedAt = existing.CreatedAt
	rule.UpdatedAt = now.UTC()
	s.notifyChange()
	return rule, nil
}

// SetRuleActive toggles a rule.
func (s *Store) SetRuleActive(ctx context.Context, id int64, active bool) error {
	res, err := s.execWithRetry(ctx, `UPDATE rules SET is_active = ?, updated_at = ? WHERE id = ?`,
		boolToInt(active), s.timestamp(), id)
	if err != nil {
		return fmt.Errorf("toggle rule: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return services.Wrap(services.ErrNotFound, "store", "toggle rule", fmt.Sprintf("rule %d does not exist", id), nil)
	}
	s.notifyChange()
	return nil
}

// DeleteRule removes a rule. Organized file records keep their history with a
// null rule reference.
func (s *Store) DeleteRule(ctx context.Context, id int64) error {
	res, err := s.execWithRetry(ctx, `DELETE FROM rules WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete rule: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return services.Wrap(services.ErrNotFound, "store", "delete rule", fmt.Sprintf("rule %d does not exist", id), nil)
	}
	s.notifyChange()
	return nil
}

// IncrementRuleMatch bumps a rule's match count after a confirmed use.
func (s *Store) IncrementRuleMatch(ctx context.Context, id int64) error {
	res, err := s.execWithRetry(ctx, `UPDATE rules SET match_count = match_count + 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("increment rule match: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return services.Wrap(services.ErrNotFound, "store", "increment rule match", fmt.Sprintf("rule %d does not exist", id), nil)
	}
	return nil
}
