package search

import "strings"

// Stop words to filter out before term matching
var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "be": true, "is": true, "are": true,
	"was": true, "to": true, "of": true, "and": true, "in": true, "that": true,
	"have": true, "it": true, "for": true, "not": true, "on": true, "with": true,
	"as": true, "you": true, "do": true, "at": true, "this": true, "but": true,
	"by": true, "from": true,
}

// tokenizeAndFilter splits text into words, lowercases, trims punctuation, and removes stop words
func tokenizeAndFilter(text string) []string {
	words := strings.Fields(text)
	filtered := make([]string, 0, len(words))

	for _, word := range words {
		// Lowercase and trim punctuation
		cleaned := strings.ToLower(strings.Trim(word, ".,!?;:'\"-()[]{}"))

		// Skip stop words and empty strings
		if cleaned != "" && !stopWords[cleaned] {
			filtered = append(filtered, cleaned)
		}
	}

	return filtered
}

// queryTerms returns the distinct scorable terms of a query in
// first-appearance order. An empty result means the query carries no
// keyword signal (all stop words or punctuation).
func queryTerms(query string) []string {
	tokens := tokenizeAndFilter(query)
	seen := make(map[string]bool, len(tokens))
	terms := make([]string, 0, len(tokens))
	for _, token := range tokens {
		if !seen[token] {
			seen[token] = true
			terms = append(terms, token)
		}
	}
	return terms
}

// termSet returns the distinct terms of a document body.
func termSet(text string) map[string]bool {
	tokens := tokenizeAndFilter(text)
	set := make(map[string]bool, len(tokens))
	for _, token := range tokens {
		set[token] = true
	}
	return set
}

// overlapScore is the fraction of query terms present in the document's
// term set, in [0, 1]. Zero when the query has no scorable terms.
func overlapScore(terms []string, docTerms map[string]bool) float32 {
	if len(terms) == 0 {
		return 0
	}
	hits := 0
	for _, term := range terms {
		if docTerms[term] {
			hits++
		}
	}
	return float32(hits) / float32(len(terms))
}
