// Package similarity scores how alike two identifiers are.
//
// The score is a cheap composite used to pick a likely intended name for a
// misspelled identifier: it is not an edit distance and makes no claim about
// semantic closeness.
package similarity

import (
	"strings"
	"unicode/utf8"
)

// Weights of the three components of Score. They sum to 1.
const (
	charSetWeight = 0.5
	lengthWeight  = 0.3
	prefixWeight  = 0.2
)

// DefaultThreshold is the minimum score a candidate needs to be trusted as a
// typo correction.
const DefaultThreshold = 0.6

// Score returns a similarity in [0,1] between a and b, case-insensitive.
//
//	0.5 * |chars(a) ∩ chars(b)| / |chars(a) ∪ chars(b)|
//	0.3 * min(len) / max(len)
//	0.2 * commonPrefix / max(len)
//
// Every component is symmetric, so Score(a, b) == Score(b, a), and
// Score(a, a) == 1 for any non-empty a.
func Score(a, b string) float64 {
	a, b = strings.ToLower(a), strings.ToLower(b)
	if a == b {
		return 1
	}
	la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b)
	if la == 0 || lb == 0 {
		return 0
	}

	setA, setB := runeSet(a), runeSet(b)
	shared := 0
	for r := range setA {
		if setB[r] {
			shared++
		}
	}
	union := len(setA) + len(setB) - shared

	shorter, longer := la, lb
	if shorter > longer {
		shorter, longer = longer, shorter
	}

	prefix := 0
	ra, rb := []rune(a), []rune(b)
	for prefix < len(ra) && prefix < len(rb) && ra[prefix] == rb[prefix] {
		prefix++
	}

	return charSetWeight*float64(shared)/float64(union) +
		lengthWeight*float64(shorter)/float64(longer) +
		prefixWeight*float64(prefix)/float64(longer)
}

func runeSet(s string) map[rune]bool {
	set := make(map[rune]bool, len(s))
	for _, r := range s {
		set[r] = true
	}
	return set
}

// Match is a candidate ranked by Score.
type Match struct {
	Candidate string
	Score     float64
}

// BestMatch returns the candidate most similar to target whose score is
// strictly greater than threshold. Exact matches of target are ignored since
// they cannot be the correction. Ties keep the earliest candidate.
func BestMatch(target string, candidates []string, threshold float64) (Match, bool) {
	best := Match{}
	found := false
	for _, c := range candidates {
		if c == target || c == "" {
			continue
		}
		s := Score(target, c)
		if s > threshold && (!found || s > best.Score) {
			best = Match{Candidate: c, Score: s}
			found = true
		}
	}
	return best, found
}
