package taxonomy

import (
	"fmt"
	"strings"

	"filer/internal/services"
)

// ValidateRule rejects rules whose pattern, target, or exclude pattern is not
// well formed for the rule type. It runs before a rule is stored so matchers
// never see malformed input from a valid store.
func ValidateRule(rule Rule) error {
	if err := validateRule(rule); err != nil {
		return services.Wrap(services.ErrValidation, "taxonomy", "validate rule", err.Error(), nil)
	}
	return nil
}

func validateRule(rule Rule) error {
	if strings.TrimSpace(rule.Name) == "" {
		return fmt.Errorf("rule name is required")
	}
	if _, err := ParseRuleType(string(rule.Type)); err != nil {
		return err
	}
	if err := validateTarget(rule.TargetType, rule.TargetID); err != nil {
		return err
	}
	pattern := strings.TrimSpace(rule.Pattern)
	if pattern == "" {
		return fmt.Errorf("pattern is required")
	}

	switch rule.Type {
	case RuleExtension:
		ext := strings.TrimPrefix(pattern, ".")
		if ext == "" || strings.ContainsAny(ext, `/\ ,`) {
			return fmt.Errorf("extension pattern %q is not a single extension", pattern)
		}
	case RuleKeyword:
		if len(SplitList(pattern)) == 0 {
			return fmt.Errorf("keyword pattern %q has no keywords", pattern)
		}
	case RulePath:
	case RuleRegex:
		if _, err := CompileRegex(pattern); err != nil {
			return fmt.Errorf("regex pattern: %w", err)
		}
	case RuleCompound:
		if _, err := ParseCompound(pattern); err != nil {
			return err
		}
	case RuleDate:
		if _, err := ParseDateCriteria(pattern); err != nil {
			return err
		}
	}

	if exclude := ParseExclude(rule.ExcludePattern); exclude.Regex != "" {
		if _, err := CompileRegex(exclude.Regex); err != nil {
			return fmt.Errorf("exclude pattern: %w", err)
		}
	}
	return nil
}

func validateTarget(targetType TargetType, targetID string) error {
	if _, err := ParseTargetType(string(targetType)); err != nil {
		return err
	}
	var err error
	switch targetType {
	case TargetFolder:
		_, _, err = ParseFolderNumber(targetID)
	case TargetCategory:
		_, err = ParseCategoryNumber(targetID)
	case TargetArea:
		_, _, err = ParseAreaRange(targetID)
	}
	return err
}
