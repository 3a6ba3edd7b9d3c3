package taxonomy_test

import (
	"strings"
	"testing"

	"filer/internal/services"
	"filer/internal/taxonomy"
)

func TestConfidenceOrdering(t *testing.T) {
	if !taxonomy.ConfidenceHigh.AtLeast(taxonomy.ConfidenceMedium) {
		t.Fatal("high should clear medium")
	}
	if taxonomy.ConfidenceLow.AtLeast(taxonomy.ConfidenceMedium) {
		t.Fatal("low should not clear medium")
	}
	for _, c := range []taxonomy.Confidence{taxonomy.ConfidenceNone, taxonomy.ConfidenceLow, taxonomy.ConfidenceMedium, taxonomy.ConfidenceHigh} {
		parsed, err := taxonomy.ParseConfidence(c.String())
		if err != nil || parsed != c {
			t.Fatalf("round trip %s: got %v err=%v", c, parsed, err)
		}
	}
	if _, err := taxonomy.ParseConfidence("certain"); err == nil {
		t.Fatal("expected error for unknown confidence")
	}
}

func sampleHierarchy() taxonomy.Hierarchy {
	return taxonomy.NewHierarchy([]taxonomy.FolderTarget{
		{Number: "11.01", Name: "Invoices", CategoryNumber: 11, AreaRange: "10-19"},
		{Number: "11.02", Name: "Receipts", CategoryNumber: 11, AreaRange: "10-19"},
		{Number: "21.01", Name: "Photos", CategoryNumber: 21, AreaRange: "20-29"},
	})
}

func TestHierarchyResolve(t *testing.T) {
	h := sampleHierarchy()
	tests := []struct {
		targetType taxonomy.TargetType
		targetID   string
		want       string
		ok         bool
	}{
		{taxonomy.TargetFolder, "11.02", "11.02", true},
		{taxonomy.TargetFolder, "11.09", "", false},
		{taxonomy.TargetCategory, "21", "21.01", true},
		{taxonomy.TargetCategory, "12", "", false},
		{taxonomy.TargetArea, "10-19", "11.01", true},
		{taxonomy.TargetArea, "20-29", "21.01", true},
		{taxonomy.TargetArea, "30-39", "", false},
		{taxonomy.TargetArea, "garbage", "", false},
	}
	for _, tt := range tests {
		folder, ok := h.Resolve(tt.targetType, tt.targetID)
		if ok != tt.ok || folder.Number != tt.want {
			t.Errorf("Resolve(%s, %s) = %q,%v want %q,%v", tt.targetType, tt.targetID, folder.Number, ok, tt.want, tt.ok)
		}
	}
}

func TestParseAreaRange(t *testing.T) {
	start, end, err := taxonomy.ParseAreaRange("10-19")
	if err != nil || start != 10 || end != 19 {
		t.Fatalf("unexpected parse: %d %d %v", start, end, err)
	}
	if _, _, err := taxonomy.ParseAreaRange("19-10"); err == nil {
		t.Fatal("expected out of order error")
	}
	if got := taxonomy.FormatAreaRange(0, 9); got != "00-09" {
		t.Fatalf("unexpected format %q", got)
	}
}

func TestNewFileDescriptor(t *testing.T) {
	desc := taxonomy.NewFileDescriptor("/tmp/in/Invoice.PDF", 42)
	if desc.Name != "Invoice.PDF" || desc.Ext != "pdf" || desc.TypeCategory != "document" || desc.Size != 42 {
		t.Fatalf("unexpected descriptor %+v", desc)
	}
	if desc.Dir() != "/tmp/in" {
		t.Fatalf("unexpected dir %q", desc.Dir())
	}
}

func TestParseCompound(t *testing.T) {
	clauses, err := taxonomy.ParseCompound("ext:.PDF, keyword:Invoice")
	if err != nil {
		t.Fatalf("ParseCompound: %v", err)
	}
	if len(clauses) != 2 || clauses[0].Value != "pdf" || clauses[1].Kind != taxonomy.ClauseKeyword || clauses[1].Value != "invoice" {
		t.Fatalf("unexpected clauses %+v", clauses)
	}
	if _, err := taxonomy.ParseCompound("size:10"); err == nil {
		t.Fatal("expected unknown clause error")
	}
}

func TestParseDateCriteria(t *testing.T) {
	criteria, err := taxonomy.ParseDateCriteria("year:2024,month:March,quarter:Q1,pattern:iso")
	if err != nil {
		t.Fatalf("ParseDateCriteria: %v", err)
	}
	want := taxonomy.DateCriteria{Year: 2024, Month: 3, Quarter: 1, Format: taxonomy.DateISO}
	if criteria != want {
		t.Fatalf("got %+v want %+v", criteria, want)
	}
	if c, err := taxonomy.ParseDateCriteria("pattern:*"); err != nil || c != (taxonomy.DateCriteria{}) {
		t.Fatalf("pattern:* should be unconstrained, got %+v %v", c, err)
	}
	for _, bad := range []string{"year:1800", "month:13", "quarter:Q5", "pattern:julian", "day:1"} {
		if _, err := taxonomy.ParseDateCriteria(bad); err == nil {
			t.Errorf("expected error for %q", bad)
		}
	}
}

func TestValidateRule(t *testing.T) {
	base := taxonomy.Rule{Name: "r", Type: taxonomy.RuleExtension, Pattern: "pdf", TargetType: taxonomy.TargetFolder, TargetID: "11.01"}
	if err := taxonomy.ValidateRule(base); err != nil {
		t.Fatalf("valid rule rejected: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*taxonomy.Rule)
		want   string
	}{
		{"bad regex", func(r *taxonomy.Rule) { r.Type = taxonomy.RuleRegex; r.Pattern = "(unclosed" }, "regex"},
		{"bad compound", func(r *taxonomy.Rule) { r.Type = taxonomy.RuleCompound; r.Pattern = "ext:pdf,size:3" }, "compound"},
		{"bad date", func(r *taxonomy.Rule) { r.Type = taxonomy.RuleDate; r.Pattern = "year:abc" }, "date"},
		{"bad exclude", func(r *taxonomy.Rule) { r.ExcludePattern = "/[/" }, "exclude"},
		{"bad folder target", func(r *taxonomy.Rule) { r.TargetID = "11" }, "folder number"},
		{"bad type", func(r *taxonomy.Rule) { r.Type = "size" }, "rule type"},
		{"empty pattern", func(r *taxonomy.Rule) { r.Pattern = "  " }, "pattern"},
		{"multi extension", func(r *taxonomy.Rule) { r.Pattern = "pdf,doc" }, "extension"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule := base
			tt.mutate(&rule)
			err := taxonomy.ValidateRule(rule)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if services.Classify(err) != services.KindValidation {
				t.Fatalf("expected validation kind, got %s", services.Classify(err))
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected %q in %v", tt.want, err)
			}
		})
	}
}

func TestParseExclude(t *testing.T) {
	if ex := taxonomy.ParseExclude("/draft\\d+/"); ex.Regex != "draft\\d+" || ex.Substring != "" {
		t.Fatalf("unexpected regex exclusion %+v", ex)
	}
	if ex := taxonomy.ParseExclude("draft"); ex.Substring != "draft" {
		t.Fatalf("unexpected substring exclusion %+v", ex)
	}
	if !taxonomy.ParseExclude("").IsZero() {
		t.Fatal("expected zero exclusion")
	}
}
