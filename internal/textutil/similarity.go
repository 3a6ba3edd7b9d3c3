package textutil

import "strings"

const (
	// SimilarityThreshold is the minimum score treated as a heuristic hit.
	// Tunable; the value is kept for behavioral compatibility.
	SimilarityThreshold = 0.7
	// ContainmentScore is awarded when one string contains the other.
	ContainmentScore = 0.8
)

// Similarity scores two strings in [0, 1]: 1 for equal folded strings,
// ContainmentScore when one contains the other, otherwise the Jaccard overlap
// of their character sets.
func Similarity(a, b string) float64 {
	a, b = Fold(a), Fold(b)
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}
	if strings.Contains(a, b) || strings.Contains(b, a) {
		return ContainmentScore
	}

	setA := make(map[rune]struct{}, len(a))
	for _, r := range a {
		setA[r] = struct{}{}
	}
	setB := make(map[rune]struct{}, len(b))
	for _, r := range b {
		setB[r] = struct{}{}
	}
	shared := 0
	for r := range setA {
		if _, ok := setB[r]; ok {
			shared++
		}
	}
	union := len(setA) + len(setB) - shared
	if union == 0 {
		return 0
	}
	return float64(shared) / float64(union)
}

// Similar reports whether Similarity(a, b) clears SimilarityThreshold.
func Similar(a, b string) bool {
	return Similarity(a, b) >= SimilarityThreshold
}
