package engine

import "strings"

// stopWords are excluded from keyword extraction and query tokenization.
var stopWords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "are": {}, "but": {}, "not": {},
	"you": {}, "all": {}, "can": {}, "had": {}, "her": {}, "was": {},
	"one": {}, "our": {}, "out": {}, "has": {}, "have": {}, "this": {},
	"that": {}, "with": {}, "from": {}, "they": {}, "will": {}, "what": {},
	"when": {}, "where": {}, "which": {}, "their": {}, "would": {},
	"there": {}, "been": {}, "does": {}, "about": {}, "into": {},
	"than": {}, "them": {}, "then": {}, "were": {}, "your": {},
	"some": {}, "could": {}, "should": {}, "just": {}, "like": {},
	"also": {}, "more": {}, "other": {}, "over": {}, "such": {},
	"only": {}, "very": {}, "want": {}, "wants": {}, "need": {},
	"tell": {}, "know": {}, "please": {},
}

// ExtractTokens produces the normalized token set used for lexical
// matching: lower-cased, stop words removed, length greater than two,
// deduplicated, capped at max. Order of first appearance is preserved.
func ExtractTokens(text string, max int) []string {
	if max <= 0 {
		max = 30
	}

	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !isWordRune(r)
	})

	seen := make(map[string]struct{}, len(fields))
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) <= 2 {
			continue
		}
		if _, stop := stopWords[f]; stop {
			continue
		}
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		tokens = append(tokens, f)
		if len(tokens) == max {
			break
		}
	}
	return tokens
}

// overlapCount returns how many of the query tokens appear in the keyword
// set.
func overlapCount(keywords []string, tokens []string) int {
	if len(keywords) == 0 || len(tokens) == 0 {
		return 0
	}
	set := make(map[string]struct{}, len(keywords))
	for _, k := range keywords {
		set[k] = struct{}{}
	}
	count := 0
	for _, t := range tokens {
		if _, ok := set[t]; ok {
			count++
		}
	}
	return count
}

func isWordRune(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') ||
		(r >= 'A' && r <= 'Z') || r == '\'' || r > 127
}
