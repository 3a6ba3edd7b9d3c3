package matcher

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"filer/internal/taxonomy"
)

// DateMatch is a date token extracted from a filename.
type DateMatch struct {
	Format  taxonomy.DateFormat
	Year    int
	Month   int
	Day     int
	Quarter int
	Token   string
}

type dateLayout struct {
	format     taxonomy.DateFormat
	confidence taxonomy.Confidence
	re         *regexp.Regexp
	parse      func(groups []string) (DateMatch, bool)
}

// Digit runs are bounded so "120240315" never yields a compact date.
var dateLayouts = []dateLayout{
	{
		format:     taxonomy.DateISO,
		confidence: taxonomy.ConfidenceHigh,
		re:         regexp.MustCompile(`(?:^|[^0-9])(\d{4})[-_.](\d{2})[-_.](\d{2})(?:[^0-9]|$)`),
		parse: func(g []string) (DateMatch, bool) {
			return dayDate(taxonomy.DateISO, g[1], g[2], g[3])
		},
	},
	{
		format:     taxonomy.DateUS,
		confidence: taxonomy.ConfidenceMedium,
		re:         regexp.MustCompile(`(?:^|[^0-9])(\d{2})[-_.](\d{2})[-_.](\d{4})(?:[^0-9]|$)`),
		parse: func(g []string) (DateMatch, bool) {
			return dayDate(taxonomy.DateUS, g[3], g[1], g[2])
		},
	},
	{
		format:     taxonomy.DateCompact,
		confidence: taxonomy.ConfidenceMedium,
		re:         regexp.MustCompile(`(?:^|[^0-9])(\d{4})(\d{2})(\d{2})(?:[^0-9]|$)`),
		parse: func(g []string) (DateMatch, bool) {
			return dayDate(taxonomy.DateCompact, g[1], g[2], g[3])
		},
	},
	{
		format:     taxonomy.DateYearMonth,
		confidence: taxonomy.ConfidenceMedium,
		re:         regexp.MustCompile(`(?:^|[^0-9])(\d{4})[-_.](\d{2})(?:[^0-9]|$)`),
		parse: func(g []string) (DateMatch, bool) {
			year, _ := strconv.Atoi(g[1])
			month, _ := strconv.Atoi(g[2])
			return monthDate(taxonomy.DateYearMonth, year, month)
		},
	},
	{
		format:     taxonomy.DateMonthName,
		confidence: taxonomy.ConfidenceMedium,
		re:         regexp.MustCompile(`(?i)(?:^|[^a-z])(` + taxonomy.MonthNamePattern + `)[\s_.,-]*(\d{4})(?:[^0-9]|$)`),
		parse: func(g []string) (DateMatch, bool) {
			month, _ := taxonomy.ParseMonth(g[1])
			year, _ := strconv.Atoi(g[2])
			return monthDate(taxonomy.DateMonthName, year, month)
		},
	},
	{
		format:     taxonomy.DateQuarter,
		confidence: taxonomy.ConfidenceLow,
		re:         regexp.MustCompile(`(?i)(?:^|[^a-z0-9])(?:q([1-4])[\s_.-]*(\d{4})|(\d{4})[\s_.-]*q([1-4]))(?:[^0-9]|$)`),
		parse: func(g []string) (DateMatch, bool) {
			q, y := g[1], g[2]
			if q == "" {
				q, y = g[4], g[3]
			}
			quarter, _ := strconv.Atoi(q)
			year, _ := strconv.Atoi(y)
			if !taxonomy.ValidYear(year) {
				return DateMatch{}, false
			}
			return DateMatch{Format: taxonomy.DateQuarter, Year: year, Quarter: quarter}, true
		},
	},
}

func dayDate(format taxonomy.DateFormat, y, m, d string) (DateMatch, bool) {
	year, _ := strconv.Atoi(y)
	month, _ := strconv.Atoi(m)
	day, _ := strconv.Atoi(d)
	if !taxonomy.ValidYear(year) || month < 1 || month > 12 || day < 1 {
		return DateMatch{}, false
	}
	// time.Date normalizes overflow, so a round trip rejects Feb 30.
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Day() != day || int(t.Month()) != month {
		return DateMatch{}, false
	}
	return DateMatch{Format: format, Year: year, Month: month, Day: day, Quarter: quarterOf(month)}, true
}

func monthDate(format taxonomy.DateFormat, year, month int) (DateMatch, bool) {
	if !taxonomy.ValidYear(year) || month < 1 || month > 12 {
		return DateMatch{}, false
	}
	return DateMatch{Format: format, Year: year, Month: month, Quarter: quarterOf(month)}, true
}

func quarterOf(month int) int {
	return (month-1)/3 + 1
}

// ExtractDate returns the first date found in name, trying formats in order
// of specificity, along with the confidence that format carries.
func ExtractDate(name string) (DateMatch, taxonomy.Confidence, bool) {
	stem := strings.TrimSuffix(name, extOf(name))
	for _, layout := range dateLayouts {
		for _, groups := range layout.re.FindAllStringSubmatch(stem, -1) {
			match, ok := layout.parse(groups)
			if !ok {
				continue
			}
			match.Token = strings.Trim(groups[0], " _.-,")
			return match, layout.confidence, true
		}
	}
	return DateMatch{}, taxonomy.ConfidenceNone, false
}

func extOf(name string) string {
	if i := strings.LastIndexByte(name, '.'); i > 0 {
		return name[i:]
	}
	return ""
}

type dateMatcher struct{}

func (dateMatcher) Compile(rule *CompiledRule) error {
	criteria, err := taxonomy.ParseDateCriteria(rule.Rule.Pattern)
	if err != nil {
		return err
	}
	rule.date = criteria
	return nil
}

func (dateMatcher) Match(rule *CompiledRule, file taxonomy.FileDescriptor) (Result, bool) {
	found, confidence, ok := ExtractDate(file.Name)
	if !ok {
		return Result{}, false
	}
	c := rule.date
	if c.Format != "" && found.Format != c.Format {
		return Result{}, false
	}
	if c.Year != 0 && found.Year != c.Year {
		return Result{}, false
	}
	if c.Month != 0 && found.Month != c.Month {
		return Result{}, false
	}
	if c.Quarter != 0 && found.Quarter != c.Quarter {
		return Result{}, false
	}
	return Result{Confidence: confidence, Reason: "date " + found.Token + " (" + string(found.Format) + ")"}, true
}
