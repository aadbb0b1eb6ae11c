package matching

import (
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
)

const (
	titleWeight  = 0.7
	artistWeight = 0.3
)

// Score returns 0.7*titleSimilarity + 0.3*artistSimilarity, in [0, 1].
// Inputs are lower-cased and trimmed first.
func Score(sourceTitle, sourceArtist, candidateTitle, candidateArtist string) float64 {
	return titleWeight*Ratio(sourceTitle, candidateTitle) + artistWeight*Ratio(sourceArtist, candidateArtist)
}

// Ratio is 1 - levenshtein(a, b) / max(len(a), len(b)) over runes, after case folding and trimming.
func Ratio(a, b string) float64 {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))
	if a == b {
		return 1
	}

	maxLen := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	return 1 - float64(levenshtein.ComputeDistance(a, b))/float64(maxLen)
}
