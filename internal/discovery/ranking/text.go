package ranking

import (
	"sort"
	"strings"
	"unicode"
)

var stopWords = map[string]bool{
	"a": true, "about": true, "am": true, "an": true, "and": true, "any": true, "are": true,
	"as": true, "at": true, "be": true, "can": true, "do": true, "does": true, "for": true,
	"from": true, "get": true, "give": true, "have": true, "help": true, "how": true, "i": true,
	"in": true, "is": true, "it": true, "me": true, "my": true, "need": true, "of": true,
	"on": true, "or": true, "please": true, "show": true, "some": true, "someone": true,
	"tell": true, "that": true, "the": true, "there": true, "this": true, "to": true,
	"want": true, "what": true, "where": true, "which": true, "who": true, "with": true,
	"you": true, "your": true,
}

// Tokens lower-cases text, splits it on non-alphanumerics and folds plurals.
func Tokens(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		out = append(out, stem(f))
	}
	return out
}

// ContentWords returns the distinct non-stopword tokens of text in first-seen order.
func ContentWords(text string) []string {
	seen := map[string]bool{}
	var out []string
	for _, raw := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if stopWords[raw] || len(raw) < 2 {
			continue
		}
		tok := stem(raw)
		if seen[tok] {
			continue
		}
		seen[tok] = true
		out = append(out, tok)
	}
	return out
}

// stem strips the common English plural endings so "scholarships" meets "scholarship".
func stem(w string) string {
	switch {
	case len(w) > 4 && strings.HasSuffix(w, "ies"):
		return w[:len(w)-3] + "y"
	case len(w) > 3 && strings.HasSuffix(w, "s") && !strings.HasSuffix(w, "ss") && !strings.HasSuffix(w, "us"):
		return w[:len(w)-1]
	default:
		return w
	}
}

type vocabulary map[string]bool

func (v vocabulary) add(text string) {
	for _, tok := range Tokens(text) {
		if !stopWords[tok] {
			v[tok] = true
		}
	}
}

// hits returns the sorted tokens of text present in the vocabulary.
func (v vocabulary) hits(text string) []string {
	var out []string
	seen := map[string]bool{}
	for _, tok := range Tokens(text) {
		if v[tok] && !seen[tok] {
			seen[tok] = true
			out = append(out, tok)
		}
	}
	sort.Strings(out)
	return out
}
