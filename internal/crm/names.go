package crm

import (
	"strings"
	"unicode"
)

// nameTokens lowercases a person name and splits it into words, dropping
// possessives and punctuation ("John Doe's" → ["john", "doe"]).
func nameTokens(name string) []string {
	name = strings.ToLower(strings.TrimSpace(name))
	name = strings.ReplaceAll(name, "’", "'")
	fields := strings.FieldsFunc(name, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimSuffix(f, "'s")
		f = strings.Trim(f, "'")
		if f != "" {
			tokens = append(tokens, f)
		}
	}
	return tokens
}

// NameSimilarity scores how well query identifies a lead called name, in [0,1].
//
//   - identical names score 1.
//   - when every query word is one of the lead's words ("John" vs "John Doe")
//     the score is 0.8 plus a bonus for covering more of the name, so a bare
//     first name scores the same against every lead sharing it.
//   - anything else falls back to edit-distance similarity of the whole name,
//     which tolerates typos ("Jon Doe").
func NameSimilarity(query, name string) float64 {
	q := nameTokens(query)
	n := nameTokens(name)
	if len(q) == 0 || len(n) == 0 {
		return 0
	}
	qs := strings.Join(q, " ")
	ns := strings.Join(n, " ")
	if qs == ns {
		return 1
	}

	if subset(q, n) {
		return 0.8 + 0.15*float64(len(q))/float64(len(n))
	}

	dist := levenshtein([]rune(qs), []rune(ns))
	longest := len([]rune(qs))
	if l := len([]rune(ns)); l > longest {
		longest = l
	}
	return 1 - float64(dist)/float64(longest)
}

func subset(query, name []string) bool {
	have := make(map[string]int, len(name))
	for _, tok := range name {
		have[tok]++
	}
	for _, tok := range query {
		if have[tok] == 0 {
			return false
		}
		have[tok]--
	}
	return true
}

func levenshtein(a, b []rune) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}
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
