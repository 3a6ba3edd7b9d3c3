package matcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"filer/internal/logging"
	"filer/internal/metrics"
	"filer/internal/services"
	"filer/internal/taxonomy"
)

// Source is the read/write collaborator the engine consumes from persistence.
type Source interface {
	ActiveRules(ctx context.Context) ([]taxonomy.Rule, error)
	Hierarchy(ctx context.Context) (taxonomy.Hierarchy, error)
	IncrementRuleMatch(ctx context.Context, ruleID int64) error
}

// Options tunes an Engine.
type Options struct {
	TTL          time.Duration
	RegexTimeout time.Duration
	SlowRegex    time.Duration
	// Heuristics enables the fallback when no rule matches.
	Heuristics bool
	Logger     *slog.Logger
	Metrics    *metrics.Metrics
	// Registry overrides the built-in matchers.
	Registry Registry
	Now      func() time.Time
}

const (
	defaultTTL          = 30 * time.Second
	defaultRegexTimeout = 100 * time.Millisecond
)

type snapshot struct {
	rules     []*CompiledRule
	hierarchy taxonomy.Hierarchy
	loadedAt  time.Time
}

// Engine ranks destination suggestions for files.
type Engine struct {
	source   Source
	registry Registry
	opts     Options
	logger   *slog.Logger
	metrics  *metrics.Metrics
	now      func() time.Time

	snap      atomic.Pointer[snapshot]
	stale     atomic.Bool
	refreshMu sync.Mutex
}

// NewEngine builds an engine over source.
func NewEngine(source Source, opts Options) *Engine {
	if opts.TTL <= 0 {
		opts.TTL = defaultTTL
	}
	if opts.RegexTimeout <= 0 {
		opts.RegexTimeout = defaultRegexTimeout
	}
	if opts.SlowRegex <= 0 {
		opts.SlowRegex = defaultRegexTimeout
	}
	logger := logging.NewComponentLogger(opts.Logger, "matcher")
	registry := opts.Registry
	if registry == nil {
		registry = NewRegistry(opts.RegexTimeout, opts.SlowRegex, logger)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Engine{
		source:   source,
		registry: registry,
		opts:     opts,
		logger:   logger,
		metrics:  opts.Metrics,
		now:      now,
	}
}

// Invalidate marks the cached snapshot stale; the next match reloads it.
func (e *Engine) Invalidate() {
	e.stale.Store(true)
}

// Refresh reloads rules and hierarchy immediately.
func (e *Engine) Refresh(ctx context.Context) error {
	e.refreshMu.Lock()
	defer e.refreshMu.Unlock()
	_, err := e.reload(ctx)
	return err
}

func (e *Engine) current(ctx context.Context) (*snapshot, error) {
	snap := e.snap.Load()
	if snap != nil && !e.stale.Load() && e.now().Sub(snap.loadedAt) < e.opts.TTL {
		return snap, nil
	}
	if !e.refreshMu.TryLock() {
		// Another caller is refreshing; stale data is acceptable.
		if snap != nil {
			return snap, nil
		}
		e.refreshMu.Lock()
	}
	defer e.refreshMu.Unlock()

	if latest := e.snap.Load(); latest != nil && latest != snap && !e.stale.Load() {
		return latest, nil
	}
	return e.reload(ctx)
}

// reload must be called with refreshMu held.
func (e *Engine) reload(ctx context.Context) (*snapshot, error) {
	e.stale.Store(false)
	rules, rerr := e.source.ActiveRules(ctx)
	hierarchy, herr := e.source.Hierarchy(ctx)
	if err := errors.Join(rerr, herr); err != nil {
		previous := e.snap.Load()
		if previous == nil {
			return nil, services.Wrap(services.ErrTransient, "matcher", "load rules", "rule cache unavailable", err)
		}
		logging.WarnWithContext(e.logger, "rule cache refresh failed; serving previous snapshot", "cache_refresh_failed",
			logging.Error(err),
			logging.Int("rules", len(previous.rules)),
			logging.String(logging.FieldErrorHint, "check database availability"),
			logging.String(logging.FieldImpact, "suggestions may use outdated rules"),
		)
		// Retry after another TTL rather than on every match.
		retained := *previous
		retained.loadedAt = e.now()
		e.snap.Store(&retained)
		return &retained, nil
	}

	compiled := make([]*CompiledRule, 0, len(rules))
	for _, rule := range rules {
		cr, err := e.compile(rule)
		if err != nil {
			e.logger.Warn("rule skipped: pattern does not compile",
				logging.RuleID(rule.ID),
				logging.String("rule_type", string(rule.Type)),
				logging.Error(err),
			)
			continue
		}
		compiled = append(compiled, cr)
	}
	// Evaluation order is priority desc regardless of source ordering.
	sort.SliceStable(compiled, func(i, j int) bool {
		return compiled[i].Rule.Priority > compiled[j].Rule.Priority
	})

	snap := &snapshot{rules: compiled, hierarchy: hierarchy, loadedAt: e.now()}
	e.snap.Store(snap)
	e.logger.Debug("rule cache refreshed",
		logging.Int("rules", len(compiled)),
		logging.Int("folders", len(hierarchy.Folders)),
	)
	return snap, nil
}

func (e *Engine) compile(rule taxonomy.Rule) (*CompiledRule, error) {
	m, ok := e.registry[rule.Type]
	if !ok {
		return nil, fmt.Errorf("no matcher for rule type %q", rule.Type)
	}
	cr := &CompiledRule{Rule: rule}
	if err := m.Compile(cr); err != nil {
		return nil, err
	}
	cr.exclude = taxonomy.ParseExclude(rule.ExcludePattern)
	if cr.exclude.Regex != "" {
		re, err := taxonomy.CompileRegex(cr.exclude.Regex)
		if err != nil {
			return nil, fmt.Errorf("exclude pattern: %w", err)
		}
		re.MatchTimeout = e.opts.RegexTimeout
		cr.excludeR = re
	}
	return cr, nil
}

// excluded reports whether the rule's exclude pattern rejects file. A regex
// that cannot be evaluated in time excludes the file.
func (e *Engine) excluded(rule *CompiledRule, file taxonomy.FileDescriptor) bool {
	if rule.exclude.IsZero() {
		return false
	}
	text := matchText(file)
	if rule.excludeR != nil {
		ok, err := rule.excludeR.MatchString(text)
		if err != nil {
			e.logger.Warn("exclude pattern evaluation aborted", logging.RuleID(rule.Rule.ID), logging.Error(err))
			return true
		}
		return ok
	}
	return strings.Contains(strings.ToLower(text), strings.ToLower(rule.exclude.Substring))
}

// MatchFile returns ranked suggestions for file: confidence descending, then
// rule priority descending. Every matching rule contributes its own entry;
// heuristic suggestions are limited to one per folder. An empty result means no
// suggestion; an error is returned only when no rule snapshot could be loaded.
func (e *Engine) MatchFile(ctx context.Context, file taxonomy.FileDescriptor) ([]taxonomy.MatchSuggestion, error) {
	start := time.Now()
	snap, err := e.current(ctx)
	if err != nil {
		return nil, err
	}

	var suggestions []taxonomy.MatchSuggestion
	for _, rule := range snap.rules {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if e.excluded(rule, file) {
			continue
		}
		result, ok := e.evaluate(rule, file)
		if !ok {
			continue
		}
		folder, ok := snap.hierarchy.Resolve(rule.Rule.TargetType, rule.Rule.TargetID)
		if !ok {
			e.logger.Debug("rule target not found",
				logging.RuleID(rule.Rule.ID),
				logging.String("target_type", string(rule.Rule.TargetType)),
				logging.String("target_id", rule.Rule.TargetID),
			)
			continue
		}
		r := rule.Rule
		suggestions = append(suggestions, taxonomy.MatchSuggestion{
			Folder:     folder,
			Rule:       &r,
			Confidence: result.Confidence,
			Reason:     result.Reason,
			Source:     taxonomy.SourceRule,
		})
	}

	source := string(taxonomy.SourceRule)
	if len(suggestions) == 0 && e.opts.Heuristics {
		suggestions = dedupeByFolder(heuristicSuggestions(file, snap.hierarchy))
		source = string(taxonomy.SourceHeuristic)
	}
	suggestions = rank(suggestions)
	if len(suggestions) == 0 {
		source = "none"
	}
	e.metrics.ObserveMatch(source, time.Since(start))
	return suggestions, nil
}

func (e *Engine) evaluate(rule *CompiledRule, file taxonomy.FileDescriptor) (result Result, ok bool) {
	m, found := e.registry[rule.Rule.Type]
	if !found {
		return Result{}, false
	}
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("matcher panicked", logging.RuleID(rule.Rule.ID), logging.Any("panic", r))
			result, ok = Result{}, false
		}
	}()
	return m.Match(rule, file)
}

// better orders suggestions by confidence, then rule priority.
func better(a, b taxonomy.MatchSuggestion) bool {
	if a.Confidence != b.Confidence {
		return a.Confidence > b.Confidence
	}
	return a.Priority() > b.Priority()
}

// rank orders suggestions by confidence then priority. Ties keep evaluation
// order.
func rank(suggestions []taxonomy.MatchSuggestion) []taxonomy.MatchSuggestion {
	if len(suggestions) == 0 {
		return nil
	}
	sort.SliceStable(suggestions, func(i, j int) bool { return better(suggestions[i], suggestions[j]) })
	return suggestions
}

// dedupeByFolder keeps the best suggestion for each folder.
func dedupeByFolder(suggestions []taxonomy.MatchSuggestion) []taxonomy.MatchSuggestion {
	best := make(map[string]int, len(suggestions))
	out := make([]taxonomy.MatchSuggestion, 0, len(suggestions))
	for _, s := range suggestions {
		if i, ok := best[s.Folder.Number]; ok {
			if better(s, out[i]) {
				out[i] = s
			}
			continue
		}
		best[s.Folder.Number] = len(out)
		out = append(out, s)
	}
	return out
}

// BatchResult pairs a file with its suggestions or failure.
type BatchResult struct {
	File        taxonomy.FileDescriptor
	Suggestions []taxonomy.MatchSuggestion
	Err         error
}

// BatchMatch matches each file in order, stopping early if ctx is cancelled.
func (e *Engine) BatchMatch(ctx context.Context, files []taxonomy.FileDescriptor) ([]BatchResult, error) {
	results := make([]BatchResult, 0, len(files))
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		suggestions, err := e.MatchFile(ctx, file)
		results = append(results, BatchResult{File: file, Suggestions: suggestions, Err: err})
	}
	return results, nil
}

// RecordMatch increments a rule's match count. Call it only once a suggestion
// has been acted on, never for a mere suggestion.
func (e *Engine) RecordMatch(ctx context.Context, ruleID int64) error {
	if ruleID <= 0 {
		return nil
	}
	if err := e.source.IncrementRuleMatch(ctx, ruleID); err != nil {
		return services.Wrap(services.ErrTransient, "matcher", "record match", fmt.Sprintf("rule %d", ruleID), err)
	}
	return nil
}
