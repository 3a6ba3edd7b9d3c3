package taxonomy

import (
	"fmt"
	"strings"
)

// Confidence is the ordinal strength of a match.
type Confidence int

const (
	ConfidenceNone Confidence = iota
	ConfidenceLow
	ConfidenceMedium
	ConfidenceHigh
)

func (c Confidence) String() string {
	switch c {
	case ConfidenceLow:
		return "low"
	case ConfidenceMedium:
		return "medium"
	case ConfidenceHigh:
		return "high"
	default:
		return "none"
	}
}

// AtLeast reports whether c meets or exceeds threshold.
func (c Confidence) AtLeast(threshold Confidence) bool {
	return c >= threshold
}

// ParseConfidence converts a stored label back into a Confidence.
func ParseConfidence(value string) (Confidence, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "none", "":
		return ConfidenceNone, nil
	case "low":
		return ConfidenceLow, nil
	case "medium":
		return ConfidenceMedium, nil
	case "high":
		return ConfidenceHigh, nil
	default:
		return ConfidenceNone, fmt.Errorf("unknown confidence %q", value)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (c Confidence) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Confidence) UnmarshalText(data []byte) error {
	parsed, err := ParseConfidence(string(data))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
