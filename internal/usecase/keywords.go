package usecase

import (
	"strings"
	"unicode"
)

// snippetLen bounds stored search snippets and display lines.
const snippetLen = 200

// stopwords are excluded from the keyword index.
var stopwords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "is": {}, "in": {}, "on": {},
	"at": {}, "to": {}, "for": {}, "of": {}, "with": {}, "that": {},
	"this": {}, "it": {}, "as": {}, "are": {}, "was": {}, "be": {}, "by": {},
}

// Keywords tokenizes message text for the keyword index: lowercased,
// punctuation stripped, short tokens and stopwords dropped, duplicates
// removed preserving first-seen order.
func Keywords(text string) []string {
	lowered := strings.ToLower(text)
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
			return r
		}
		return ' '
	}, lowered)

	seen := make(map[string]struct{})
	var tokens []string
	for _, tok := range strings.Fields(cleaned) {
		if len(tok) <= 2 {
			continue
		}
		if _, stop := stopwords[tok]; stop {
			continue
		}
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		tokens = append(tokens, tok)
	}
	return tokens
}

// Snippet truncates text for index storage and display, appending an
// ellipsis when anything was cut.
func Snippet(text string) string {
	runes := []rune(text)
	if len(runes) <= snippetLen {
		return text
	}
	return string(runes[:snippetLen]) + "..."
}
