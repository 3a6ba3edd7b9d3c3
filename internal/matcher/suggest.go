package matcher

import (
	"fmt"
	"path/filepath"
	"sort"

	"filer/internal/filetype"
	"filer/internal/taxonomy"
	"filer/internal/textutil"
)

const (
	suggestMinOccurrences = 3
	suggestMinKeywordLen  = 4
)

// RuleSuggestion is a candidate rule derived from a folder's existing files.
type RuleSuggestion struct {
	Type        taxonomy.RuleType
	Pattern     string
	Occurrences int
	Confidence  taxonomy.Confidence
	Reason      string
}

// SuggestRulesForFolder proposes extension and keyword rules from the names of
// files already filed somewhere. An extension or filename keyword (four or
// more characters) must occur in at least three files; 3-4 occurrences rate
// low, 5-9 medium, and 10 or more high.
func (e *Engine) SuggestRulesForFolder(files []string) []RuleSuggestion {
	return SuggestRules(files)
}

// SuggestRules is SuggestRulesForFolder without an engine.
func SuggestRules(files []string) []RuleSuggestion {
	extCounts := make(map[string]int)
	keywordCounts := make(map[string]int)
	for _, file := range files {
		name := filepath.Base(file)
		ext := filetype.Normalize(filepath.Ext(name))
		if ext != "" {
			extCounts[ext]++
		}
		seen := make(map[string]struct{})
		for _, token := range textutil.Tokenize(name[:len(name)-len(filepath.Ext(name))], suggestMinKeywordLen) {
			if textutil.IsNumeric(token) {
				continue
			}
			if _, dup := seen[token]; dup {
				continue
			}
			seen[token] = struct{}{}
			keywordCounts[token]++
		}
	}

	var out []RuleSuggestion
	for ext, count := range extCounts {
		if count < suggestMinOccurrences {
			continue
		}
		out = append(out, RuleSuggestion{
			Type:        taxonomy.RuleExtension,
			Pattern:     ext,
			Occurrences: count,
			Confidence:  occurrenceConfidence(count),
			Reason:      fmt.Sprintf("%d files with extension .%s", count, ext),
		})
	}
	for keyword, count := range keywordCounts {
		if count < suggestMinOccurrences {
			continue
		}
		out = append(out, RuleSuggestion{
			Type:        taxonomy.RuleKeyword,
			Pattern:     keyword,
			Occurrences: count,
			Confidence:  occurrenceConfidence(count),
			Reason:      fmt.Sprintf("%d filenames contain %q", count, keyword),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Occurrences != out[j].Occurrences {
			return out[i].Occurrences > out[j].Occurrences
		}
		if out[i].Type != out[j].Type {
			return out[i].Type < out[j].Type
		}
		return out[i].Pattern < out[j].Pattern
	})
	return out
}

func occurrenceConfidence(count int) taxonomy.Confidence {
	switch {
	case count >= 10:
		return taxonomy.ConfidenceHigh
	case count >= 5:
		return taxonomy.ConfidenceMedium
	case count >= suggestMinOccurrences:
		return taxonomy.ConfidenceLow
	default:
		return taxonomy.ConfidenceNone
	}
}
