package matcher

import (
	"fmt"
	"strings"

	"filer/internal/filetype"
	"filer/internal/taxonomy"
	"filer/internal/textutil"
)

const heuristicMinToken = 3

// heuristicSuggestions scores every folder against the file without rules:
// the file type's vocabulary versus folder name/keyword tokens (low), and
// filename tokens versus folder tokens by string similarity (medium for an
// exact token, low above the similarity threshold).
func heuristicSuggestions(file taxonomy.FileDescriptor, hierarchy taxonomy.Hierarchy) []taxonomy.MatchSuggestion {
	typeWords := make(map[string]struct{})
	for _, word := range filetype.Keywords(file.TypeCategory) {
		typeWords[textutil.Fold(word)] = struct{}{}
	}
	var nameTokens []string
	for _, token := range textutil.Tokenize(strings.TrimSuffix(file.Name, extOf(file.Name)), heuristicMinToken) {
		if !textutil.IsNumeric(token) {
			nameTokens = append(nameTokens, token)
		}
	}
	if len(typeWords) == 0 && len(nameTokens) == 0 {
		return nil
	}

	var out []taxonomy.MatchSuggestion
	for _, folder := range hierarchy.Folders {
		folderTokens := folderVocabulary(folder)
		if len(folderTokens) == 0 {
			continue
		}

		best := taxonomy.MatchSuggestion{Folder: folder, Source: taxonomy.SourceHeuristic}
		for _, token := range folderTokens {
			if _, ok := typeWords[token]; ok {
				best.Confidence = taxonomy.ConfidenceLow
				best.Reason = fmt.Sprintf("%s files fit folder %q", file.TypeCategory, folder.Name)
				break
			}
		}

		score, fileToken, folderToken := bestSimilarity(nameTokens, folderTokens)
		if score >= textutil.SimilarityThreshold {
			confidence := taxonomy.ConfidenceLow
			if score >= 1 {
				confidence = taxonomy.ConfidenceMedium
			}
			if confidence > best.Confidence {
				best.Confidence = confidence
				best.Reason = fmt.Sprintf("filename %q resembles %q (%.2f)", fileToken, folderToken, score)
			}
		}

		if best.Confidence > taxonomy.ConfidenceNone {
			out = append(out, best)
		}
	}
	return out
}

func folderVocabulary(folder taxonomy.FolderTarget) []string {
	seen := make(map[string]struct{})
	var tokens []string
	add := func(text string) {
		for _, token := range textutil.Tokenize(text, heuristicMinToken) {
			if textutil.IsNumeric(token) {
				continue
			}
			if _, ok := seen[token]; ok {
				continue
			}
			seen[token] = struct{}{}
			tokens = append(tokens, token)
		}
	}
	add(folder.Name)
	for _, keyword := range folder.Keywords {
		add(keyword)
	}
	return tokens
}

func bestSimilarity(left, right []string) (float64, string, string) {
	var (
		best         float64
		bestL, bestR string
	)
	for _, l := range left {
		for _, r := range right {
			if score := textutil.Similarity(l, r); score > best {
				best, bestL, bestR = score, l, r
			}
		}
	}
	return best, bestL, bestR
}
