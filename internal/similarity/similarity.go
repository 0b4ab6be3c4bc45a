// Package similarity provides normalized comparison keys and edit-distance
// based scoring used to detect duplicate credentials across two datasets.
package similarity

import "strings"

// NormalizedString is a lowercased, whitespace-trimmed comparison key.
// The only way to obtain a non-zero value is Normalize; the zero value is
// equal to Normalize("").
type NormalizedString struct {
	s string
}

// Normalize lowercases and trims s. It is total and never fails.
func Normalize(s string) NormalizedString {
	return NormalizedString{s: strings.ToLower(strings.TrimSpace(s))}
}

// String returns the normalized form.
func (n NormalizedString) String() string { return n.s }

// IsEmpty reports whether the normalized form is empty.
func (n NormalizedString) IsEmpty() bool { return n.s == "" }

// Len returns the length of the normalized form in runes.
func (n NormalizedString) Len() int { return len([]rune(n.s)) }

// Distance returns the Levenshtein distance between a and b, counting
// single-rune insertions, deletions and substitutions at unit cost.
//
// The full (len(a)+1) x (len(b)+1) table is kept, so time and space are
// both O(len(a)*len(b)).
func Distance(a, b NormalizedString) int {
	ra, rb := []rune(a.s), []rune(b.s)
	cols := len(rb) + 1

	// one allocation, row-major: cell (i, j) is table[i*cols+j]
	table := make([]int, (len(ra)+1)*cols)
	for i := 0; i <= len(ra); i++ {
		table[i*cols] = i
	}
	for j := 0; j < cols; j++ {
		table[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		row, prev := i*cols, (i-1)*cols
		for j := 1; j < cols; j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			table[row+j] = min(
				table[prev+j]+1,
				table[row+j-1]+1,
				table[prev+j-1]+cost,
			)
		}
	}
	return table[len(ra)*cols+len(rb)]
}

// Similarity returns (maxLen - Distance(a, b)) / maxLen, a value in [0, 1].
// Two empty strings are fully similar.
func Similarity(a, b NormalizedString) float64 {
	maxLen := max(a.Len(), b.Len())
	if maxLen == 0 {
		return 1.0
	}
	return float64(maxLen-Distance(a, b)) / float64(maxLen)
}

// DistanceOf normalizes both inputs and returns their Distance.
func DistanceOf(a, b string) int {
	return Distance(Normalize(a), Normalize(b))
}

// SimilarityOf normalizes both inputs and returns their Similarity.
func SimilarityOf(a, b string) float64 {
	return Similarity(Normalize(a), Normalize(b))
}
