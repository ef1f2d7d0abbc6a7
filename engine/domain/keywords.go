package domain

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Vietnamese stop words excluded from derived keyword sets.
var stopWords = map[string]bool{
	"của": true, "và": true, "với": true, "trong": true, "trên": true,
	"tại": true, "để": true, "cho": true, "từ": true, "khi": true,
	"không": true, "có": true, "là": true, "được": true, "các": true,
	"một": true, "những": true, "này": true, "đó": true, "thì": true,
	"mà": true, "theo": true, "về": true, "ra": true, "vào": true,
}

// ExtractKeywords derives the keyword set for a Behavior description: lowercase
// word tokens longer than two runes with stop words removed, deduplicated and
// sorted for a stable representation.
func ExtractKeywords(text string) []string {
	seen := make(map[string]bool)
	for _, w := range tokenize(text) {
		if utf8.RuneCountInString(w) > 2 && !stopWords[w] {
			seen[w] = true
		}
	}
	out := make([]string, 0, len(seen))
	for w := range seen {
		out = append(out, w)
	}
	sort.Strings(out)
	return out
}

// tokenize splits text into lowercase word tokens. Letters and digits stick
// together; everything else separates.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// Jaccard computes set similarity between two keyword lists:
// |intersection| / |union|. Empty inputs score zero.
func Jaccard(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	set := make(map[string]bool, len(a))
	for _, w := range a {
		set[w] = true
	}
	inter := 0
	union := len(set)
	seen := make(map[string]bool, len(b))
	for _, w := range b {
		if seen[w] {
			continue
		}
		seen[w] = true
		if set[w] {
			inter++
		} else {
			union++
		}
	}
	return float64(inter) / float64(union)
}
