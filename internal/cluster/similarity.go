package cluster

import "strings"

// SimilarityFunc compares two signatures and returns a score in [0, 1].
type SimilarityFunc func(a, b string) float64

// ShingleSize is the number of consecutive tags forming one shingle.
const ShingleSize = 3

// Tokens splits a signature into its tag tokens.
func Tokens(signature string) []string {
	return strings.Fields(signature)
}

// ShingleSimilarity is the Jaccard similarity of the tag shingle sets of two
// signatures. Signatures shorter than ShingleSize are compared token by token.
func ShingleSimilarity(a, b string) float64 {
	ta, tb := Tokens(a), Tokens(b)
	if len(ta) == 0 && len(tb) == 0 {
		return 1
	}
	if len(ta) < ShingleSize || len(tb) < ShingleSize {
		if strings.Join(ta, " ") == strings.Join(tb, " ") {
			return 1
		}
		return 0
	}

	sa, sb := shingles(ta), shingles(tb)
	inter := 0
	for s := range sa {
		if _, ok := sb[s]; ok {
			inter++
		}
	}
	union := len(sa) + len(sb) - inter
	if union == 0 {
		return 1
	}
	return float64(inter) / float64(union)
}

func shingles(tokens []string) map[string]struct{} {
	out := make(map[string]struct{}, len(tokens))
	for i := 0; i+ShingleSize <= len(tokens); i++ {
		out[strings.Join(tokens[i:i+ShingleSize], " ")] = struct{}{}
	}
	return out
}

// EditSimilarity is 1 minus the token-level Levenshtein distance divided by
// the length of the longer signature.
func EditSimilarity(a, b string) float64 {
	ta, tb := Tokens(a), Tokens(b)
	longest := max(len(ta), len(tb))
	if longest == 0 {
		return 1
	}
	return 1 - float64(levenshtein(ta, tb))/float64(longest)
}

func levenshtein(a, b []string) int {
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}
