package taxonomy

import (
	"fmt"
	"strings"
	"time"
)

// RuleType selects the matcher that evaluates a rule.
type RuleType string

const (
	RuleExtension RuleType = "extension"
	RuleKeyword   RuleType = "keyword"
	RulePath      RuleType = "path"
	RuleRegex     RuleType = "regex"
	RuleCompound  RuleType = "compound"
	RuleDate      RuleType = "date"
)

// RuleTypes lists every supported rule type.
func RuleTypes() []RuleType {
	return []RuleType{RuleExtension, RuleKeyword, RulePath, RuleRegex, RuleCompound, RuleDate}
}

// ParseRuleType validates a rule type label.
func ParseRuleType(value string) (RuleType, error) {
	candidate := RuleType(strings.ToLower(strings.TrimSpace(value)))
	for _, known := range RuleTypes() {
		if candidate == known {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("unknown rule type %q", value)
}

// TargetType selects how a rule's TargetID resolves to a folder.
type TargetType string

const (
	TargetFolder   TargetType = "folder"
	TargetCategory TargetType = "category"
	TargetArea     TargetType = "area"
)

// ParseTargetType validates a target type label.
func ParseTargetType(value string) (TargetType, error) {
	switch candidate := TargetType(strings.ToLower(strings.TrimSpace(value))); candidate {
	case TargetFolder, TargetCategory, TargetArea:
		return candidate, nil
	default:
		return "", fmt.Errorf("unknown target type %q", value)
	}
}

// Rule is a persisted condition to destination mapping.
type Rule struct {
	ID             int64
	Name           string
	Type           RuleType
	Pattern        string
	TargetType     TargetType
	TargetID       string
	Priority       int
	Active         bool
	MatchCount     int64
	ExcludePattern string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
