package matcher

import (
	"log/slog"
	"strings"
	"time"

	"github.com/dlclark/regexp2"

	"filer/internal/logging"
	"filer/internal/taxonomy"
)

// Result is a single matcher verdict.
type Result struct {
	Confidence taxonomy.Confidence
	Reason     string
}

// CompiledRule is a rule with its pattern parsed once per snapshot.
type CompiledRule struct {
	Rule taxonomy.Rule

	terms    []string
	regex    *regexp2.Regexp
	compound []taxonomy.CompoundClause
	date     taxonomy.DateCriteria
	exclude  taxonomy.Exclusion
	excludeR *regexp2.Regexp
}

// Matcher evaluates one rule type. Compile prepares pattern state and reports
// whether the rule is usable; Match must not panic on any input.
type Matcher interface {
	Compile(rule *CompiledRule) error
	Match(rule *CompiledRule, file taxonomy.FileDescriptor) (Result, bool)
}

// Registry maps rule types to their matcher.
type Registry map[taxonomy.RuleType]Matcher

// regexEvaluator runs user regexes with a hard time limit and reports slow ones.
type regexEvaluator struct {
	timeout time.Duration
	slow    time.Duration
	logger  *slog.Logger
}

func (e regexEvaluator) compile(pattern string) (*regexp2.Regexp, error) {
	re, err := taxonomy.CompileRegex(pattern)
	if err != nil {
		return nil, err
	}
	re.MatchTimeout = e.timeout
	return re, nil
}

func (e regexEvaluator) match(re *regexp2.Regexp, ruleID int64, input string) bool {
	start := time.Now()
	ok, err := re.MatchString(input)
	elapsed := time.Since(start)
	if err != nil {
		logging.WarnWithContext(e.logger, "regex evaluation aborted", "regex_timeout",
			logging.RuleID(ruleID),
			logging.Duration("elapsed", elapsed),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "simplify the rule pattern to avoid catastrophic backtracking"),
			logging.String(logging.FieldImpact, "rule treated as no match"),
		)
		return false
	}
	if e.slow > 0 && elapsed > e.slow {
		logging.WarnWithContext(e.logger, "slow regex evaluation", "regex_slow",
			logging.RuleID(ruleID),
			logging.Duration("elapsed", elapsed),
			logging.String(logging.FieldImpact, "matching latency increased"),
		)
	}
	return ok
}

// NewRegistry returns the built-in matchers.
func NewRegistry(regexTimeout, slowRegex time.Duration, logger *slog.Logger) Registry {
	eval := regexEvaluator{timeout: regexTimeout, slow: slowRegex, logger: logger}
	return Registry{
		taxonomy.RuleExtension: extensionMatcher{},
		taxonomy.RuleKeyword:   keywordMatcher{},
		taxonomy.RulePath:      pathMatcher{},
		taxonomy.RuleRegex:     regexMatcher{eval: eval},
		taxonomy.RuleCompound:  compoundMatcher{},
		taxonomy.RuleDate:      dateMatcher{},
	}
}

// matchText is the haystack used by regex rules and exclude patterns.
func matchText(file taxonomy.FileDescriptor) string {
	return file.Name + " " + file.Path
}

type extensionMatcher struct{}

func (extensionMatcher) Compile(rule *CompiledRule) error {
	rule.terms = []string{strings.ToLower(strings.TrimPrefix(strings.TrimSpace(rule.Rule.Pattern), "."))}
	return nil
}

func (extensionMatcher) Match(rule *CompiledRule, file taxonomy.FileDescriptor) (Result, bool) {
	if len(rule.terms) == 0 || rule.terms[0] == "" || file.Ext != rule.terms[0] {
		return Result{}, false
	}
	return Result{Confidence: taxonomy.ConfidenceHigh, Reason: "extension ." + file.Ext}, true
}

type keywordMatcher struct{}

func (keywordMatcher) Compile(rule *CompiledRule) error {
	rule.terms = lowerAll(taxonomy.SplitList(rule.Rule.Pattern))
	return nil
}

func (keywordMatcher) Match(rule *CompiledRule, file taxonomy.FileDescriptor) (Result, bool) {
	name := strings.ToLower(file.Name)
	for _, keyword := range rule.terms {
		if strings.Contains(name, keyword) {
			return Result{Confidence: taxonomy.ConfidenceHigh, Reason: "filename contains \"" + keyword + "\""}, true
		}
	}
	dir := strings.ToLower(file.Dir())
	for _, keyword := range rule.terms {
		if strings.Contains(dir, keyword) {
			return Result{Confidence: taxonomy.ConfidenceMedium, Reason: "path contains \"" + keyword + "\""}, true
		}
	}
	return Result{}, false
}

type pathMatcher struct{}

func (pathMatcher) Compile(rule *CompiledRule) error {
	rule.terms = []string{strings.ToLower(strings.TrimSpace(rule.Rule.Pattern))}
	return nil
}

func (pathMatcher) Match(rule *CompiledRule, file taxonomy.FileDescriptor) (Result, bool) {
	if len(rule.terms) == 0 || rule.terms[0] == "" {
		return Result{}, false
	}
	if !strings.Contains(strings.ToLower(file.Path), rule.terms[0]) {
		return Result{}, false
	}
	return Result{Confidence: taxonomy.ConfidenceMedium, Reason: "path contains \"" + rule.terms[0] + "\""}, true
}

type regexMatcher struct {
	eval regexEvaluator
}

func (m regexMatcher) Compile(rule *CompiledRule) error {
	re, err := m.eval.compile(rule.Rule.Pattern)
	if err != nil {
		return err
	}
	rule.regex = re
	return nil
}

func (m regexMatcher) Match(rule *CompiledRule, file taxonomy.FileDescriptor) (Result, bool) {
	if rule.regex == nil {
		return Result{}, false
	}
	if !m.eval.match(rule.regex, rule.Rule.ID, matchText(file)) {
		return Result{}, false
	}
	return Result{Confidence: taxonomy.ConfidenceLow, Reason: "matches /" + rule.Rule.Pattern + "/"}, true
}

type compoundMatcher struct{}

func (compoundMatcher) Compile(rule *CompiledRule) error {
	clauses, err := taxonomy.ParseCompound(rule.Rule.Pattern)
	if err != nil {
		return err
	}
	rule.compound = clauses
	return nil
}

func (compoundMatcher) Match(rule *CompiledRule, file taxonomy.FileDescriptor) (Result, bool) {
	if len(rule.compound) == 0 {
		return Result{}, false
	}
	name := strings.ToLower(file.Name)
	for _, clause := range rule.compound {
		switch clause.Kind {
		case taxonomy.ClauseExt:
			if file.Ext != clause.Value {
				return Result{}, false
			}
		case taxonomy.ClauseKeyword:
			if !strings.Contains(name, clause.Value) {
				return Result{}, false
			}
		default:
			return Result{}, false
		}
	}
	return Result{Confidence: taxonomy.ConfidenceHigh, Reason: "all conditions met: " + rule.Rule.Pattern}, true
}

func lowerAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		out = append(out, strings.ToLower(value))
	}
	return out
}
