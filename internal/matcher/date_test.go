package matcher

import (
	"context"
	"testing"

	"filer/internal/taxonomy"
)

func TestExtractDate(t *testing.T) {
	tests := []struct {
		name       string
		format     taxonomy.DateFormat
		year       int
		month      int
		quarter    int
		confidence taxonomy.Confidence
	}{
		{"statement_2024-03-15.pdf", taxonomy.DateISO, 2024, 3, 1, taxonomy.ConfidenceHigh},
		{"scan 2023.12.01.jpg", taxonomy.DateISO, 2023, 12, 4, taxonomy.ConfidenceHigh},
		{"bill 07-04-2022.pdf", taxonomy.DateUS, 2022, 7, 3, taxonomy.ConfidenceMedium},
		{"IMG_20210530_101500.jpg", taxonomy.DateCompact, 2021, 5, 2, taxonomy.ConfidenceMedium},
		{"payroll-2020-11.csv", taxonomy.DateYearMonth, 2020, 11, 4, taxonomy.ConfidenceMedium},
		{"Report March 2024.docx", taxonomy.DateMonthName, 2024, 3, 1, taxonomy.ConfidenceMedium},
		{"sept_2019_minutes.txt", taxonomy.DateMonthName, 2019, 9, 3, taxonomy.ConfidenceMedium},
		{"results Q2 2024.xlsx", taxonomy.DateQuarter, 2024, 0, 2, taxonomy.ConfidenceLow},
		{"results-2024-Q4.xlsx", taxonomy.DateQuarter, 2024, 0, 4, taxonomy.ConfidenceLow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, confidence, ok := ExtractDate(tt.name)
			if !ok {
				t.Fatalf("expected a date in %q", tt.name)
			}
			if got.Format != tt.format || got.Year != tt.year || got.Month != tt.month || got.Quarter != tt.quarter {
				t.Fatalf("got %+v", got)
			}
			if confidence != tt.confidence {
				t.Fatalf("confidence %s, want %s", confidence, tt.confidence)
			}
		})
	}
}

func TestExtractDateRejectsInvalid(t *testing.T) {
	for _, name := range []string{
		"notes.txt",
		"build-2024-13-45.log",
		"serial 120240315.txt",
		"year 1812-01-01.txt",
		"market 2024 plan.txt",
		"v1.2.3.txt",
	} {
		if got, _, ok := ExtractDate(name); ok {
			t.Errorf("%q: unexpected date %+v", name, got)
		}
	}
}

func TestDateRuleClauses(t *testing.T) {
	tests := []struct {
		pattern string
		file    string
		want    bool
	}{
		{"year:2024", "invoice 2024-03-15.pdf", true},
		{"year:2023", "invoice 2024-03-15.pdf", false},
		{"year:2024,month:march", "invoice 2024-03-15.pdf", true},
		{"month:4", "invoice 2024-03-15.pdf", false},
		{"quarter:Q1", "invoice 2024-03-15.pdf", true},
		{"quarter:2", "results Q2 2024.xlsx", true},
		{"month:5", "results Q2 2024.xlsx", false},
		{"pattern:*", "IMG_20210530.jpg", true},
		{"pattern:*", "holiday.jpg", false},
		{"pattern:compact", "IMG_20210530.jpg", true},
		{"pattern:iso", "IMG_20210530.jpg", false},
	}
	for _, tt := range tests {
		engine, _ := newTestEngine(rule(1, taxonomy.RuleDate, tt.pattern, "12.01", 1))
		engine.opts.Heuristics = false
		got, err := engine.MatchFile(context.Background(), file("/in/"+tt.file))
		if err != nil {
			t.Fatalf("MatchFile: %v", err)
		}
		if matched := len(got) > 0; matched != tt.want {
			t.Errorf("%s vs %s: matched=%v want %v", tt.pattern, tt.file, matched, tt.want)
		}
	}
}
