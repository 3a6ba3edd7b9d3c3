package taxonomy

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dlclark/regexp2"
)

// SplitList splits a comma separated pattern, trimming blanks.
func SplitList(pattern string) []string {
	parts := strings.Split(pattern, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// CompileRegex compiles a case-insensitive rule regex in the dialect used by
// the matcher.
func CompileRegex(pattern string) (*regexp2.Regexp, error) {
	return regexp2.Compile(pattern, regexp2.IgnoreCase)
}

// Exclusion is a parsed exclude pattern: either a substring or a regex
// written as /expr/.
type Exclusion struct {
	Substring string
	Regex     string
}

// ParseExclude interprets an exclude pattern. Empty input yields the zero Exclusion.
func ParseExclude(pattern string) Exclusion {
	pattern = strings.TrimSpace(pattern)
	if len(pattern) >= 3 && strings.HasPrefix(pattern, "/") && strings.HasSuffix(pattern, "/") {
		return Exclusion{Regex: pattern[1 : len(pattern)-1]}
	}
	return Exclusion{Substring: pattern}
}

// IsZero reports whether e excludes nothing.
func (e Exclusion) IsZero() bool {
	return e.Substring == "" && e.Regex == ""
}

// CompoundClause is one ext: or keyword: term of a compound rule.
type CompoundClause struct {
	Kind  string
	Value string
}

const (
	ClauseExt     = "ext"
	ClauseKeyword = "keyword"
)

// ParseCompound parses "ext:pdf,keyword:invoice".
func ParseCompound(pattern string) ([]CompoundClause, error) {
	parts := SplitList(pattern)
	if len(parts) == 0 {
		return nil, fmt.Errorf("compound pattern is empty")
	}
	clauses := make([]CompoundClause, 0, len(parts))
	for _, part := range parts {
		kind, value, ok := strings.Cut(part, ":")
		kind = strings.ToLower(strings.TrimSpace(kind))
		value = strings.ToLower(strings.TrimSpace(value))
		if !ok || value == "" {
			return nil, fmt.Errorf("compound clause %q: expected kind:value", part)
		}
		switch kind {
		case ClauseExt:
			value = strings.TrimPrefix(value, ".")
		case ClauseKeyword:
		default:
			return nil, fmt.Errorf("compound clause %q: unknown kind %q (use ext or keyword)", part, kind)
		}
		clauses = append(clauses, CompoundClause{Kind: kind, Value: value})
	}
	return clauses, nil
}

// DateFormat names one of the recognized in-filename date layouts.
type DateFormat string

const (
	DateISO       DateFormat = "iso"        // 2024-03-15
	DateUS        DateFormat = "us"         // 03-15-2024
	DateCompact   DateFormat = "compact"    // 20240315
	DateYearMonth DateFormat = "year_month" // 2024-03
	DateMonthName DateFormat = "month_year" // March 2024
	DateQuarter   DateFormat = "quarter"    // Q1 2024, 2024-Q1
)

// DateFormats lists formats in extraction order.
func DateFormats() []DateFormat {
	return []DateFormat{DateISO, DateUS, DateCompact, DateYearMonth, DateMonthName, DateQuarter}
}

// DateCriteria is a parsed date rule. Zero fields are unconstrained.
type DateCriteria struct {
	Year    int
	Month   int
	Quarter int
	Format  DateFormat
}

// ParseDateCriteria parses clauses such as "year:2024,quarter:Q1" or
// "pattern:*".
func ParseDateCriteria(pattern string) (DateCriteria, error) {
	var criteria DateCriteria
	parts := SplitList(pattern)
	if len(parts) == 0 {
		return criteria, fmt.Errorf("date pattern is empty")
	}
	for _, part := range parts {
		kind, value, ok := strings.Cut(part, ":")
		kind = strings.ToLower(strings.TrimSpace(kind))
		value = strings.ToLower(strings.TrimSpace(value))
		if !ok || value == "" {
			return criteria, fmt.Errorf("date clause %q: expected kind:value", part)
		}
		switch kind {
		case "year":
			year, err := strconv.Atoi(value)
			if err != nil || !ValidYear(year) {
				return criteria, fmt.Errorf("date clause %q: year must be 1900-2100", part)
			}
			criteria.Year = year
		case "month":
			month, ok := ParseMonth(value)
			if !ok {
				return criteria, fmt.Errorf("date clause %q: unknown month", part)
			}
			criteria.Month = month
		case "quarter":
			q, err := strconv.Atoi(strings.TrimPrefix(value, "q"))
			if err != nil || q < 1 || q > 4 {
				return criteria, fmt.Errorf("date clause %q: quarter must be Q1-Q4", part)
			}
			criteria.Quarter = q
		case "pattern":
			if value == "*" {
				criteria.Format = ""
				continue
			}
			found := false
			for _, format := range DateFormats() {
				if DateFormat(value) == format {
					criteria.Format = format
					found = true
					break
				}
			}
			if !found {
				return criteria, fmt.Errorf("date clause %q: unknown format", part)
			}
		default:
			return criteria, fmt.Errorf("date clause %q: unknown kind %q (use year, month, quarter, or pattern)", part, kind)
		}
	}
	return criteria, nil
}

// ValidYear bounds years accepted from filenames and patterns.
func ValidYear(year int) bool {
	return year >= 1900 && year <= 2100
}

var monthNames = map[string]int{
	"january": 1, "jan": 1,
	"february": 2, "feb": 2,
	"march": 3, "mar": 3,
	"april": 4, "apr": 4,
	"may": 5,
	"june": 6, "jun": 6,
	"july": 7, "jul": 7,
	"august": 8, "aug": 8,
	"september": 9, "sep": 9, "sept": 9,
	"october": 10, "oct": 10,
	"november": 11, "nov": 11,
	"december": 12, "dec": 12,
}

// ParseMonth accepts 1-12 or an English month name or abbreviation.
func ParseMonth(value string) (int, bool) {
	value = strings.ToLower(strings.TrimSpace(value))
	if n, err := strconv.Atoi(value); err == nil {
		return n, n >= 1 && n <= 12
	}
	n, ok := monthNames[value]
	return n, ok
}

// MonthNamePattern is an alternation of month names and abbreviations,
// longest first, for use inside a regular expression.
const MonthNamePattern = `january|february|march|april|may|june|july|august|september|october|november|december|sept|jan|feb|mar|apr|jun|jul|aug|sep|oct|nov|dec`
