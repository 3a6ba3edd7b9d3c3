package matcher

import (
	"fmt"
	"testing"

	"filer/internal/taxonomy"
)

func TestSuggestRulesThresholds(t *testing.T) {
	var files []string
	for i := 0; i < 10; i++ {
		files = append(files, fmt.Sprintf("/docs/invoice-%d.pdf", i))
	}
	for i := 0; i < 5; i++ {
		files = append(files, fmt.Sprintf("/docs/statement_%d.csv", i))
	}
	for i := 0; i < 3; i++ {
		files = append(files, fmt.Sprintf("/docs/scan %d.png", i))
	}
	files = append(files, "/docs/misc.txt", "/docs/misc.doc", "/docs/tax.doc", "/docs/tax 2.doc")

	got := SuggestRules(files)
	byPattern := make(map[string]RuleSuggestion)
	for _, s := range got {
		byPattern[string(s.Type)+":"+s.Pattern] = s
	}

	expect := map[string]taxonomy.Confidence{
		"extension:pdf":     taxonomy.ConfidenceHigh,
		"keyword:invoice":   taxonomy.ConfidenceHigh,
		"extension:csv":     taxonomy.ConfidenceMedium,
		"keyword:statement": taxonomy.ConfidenceMedium,
		"extension:png":     taxonomy.ConfidenceLow,
		"extension:doc":     taxonomy.ConfidenceLow,
		"keyword:scan":      taxonomy.ConfidenceLow,
	}
	for key, confidence := range expect {
		s, ok := byPattern[key]
		if !ok {
			t.Fatalf("missing suggestion %s in %+v", key, got)
		}
		if s.Confidence != confidence {
			t.Errorf("%s: confidence %s, want %s", key, s.Confidence, confidence)
		}
	}
	for _, absent := range []string{"keyword:tax", "keyword:misc", "extension:txt"} {
		if _, ok := byPattern[absent]; ok {
			t.Errorf("unexpected suggestion %s", absent)
		}
	}
	if len(got) != len(expect) {
		t.Fatalf("expected %d suggestions, got %d: %+v", len(expect), len(got), got)
	}
	for i := 1; i < len(got); i++ {
		if got[i].Occurrences > got[i-1].Occurrences {
			t.Fatalf("suggestions not ordered by occurrences: %+v", got)
		}
	}
}

func TestSuggestRulesEmpty(t *testing.T) {
	if got := SuggestRules(nil); len(got) != 0 {
		t.Fatalf("expected nothing, got %+v", got)
	}
}
