package featurize

import (
	"strings"
	"unicode"
)

// isWordRune reports whether r belongs to a word token.
// Word characters are letters, digits, and underscores.
func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// Tokenize splits text on word boundaries.
//
// Maximal runs of letters, digits and underscores become word tokens. The
// text between two word runs becomes a single structure token after all
// whitespace is removed from it, so "() {" and "(){" are the same token;
// purely whitespace separators produce nothing.
func Tokenize(text string) []string {
	words := make([]string, 0)
	eachToken(text, func(tok string) {
		words = append(words, tok)
	})
	return words
}

// eachToken calls fn for every token of text, in order.
func eachToken(text string, fn func(tok string)) {
	start := -1
	inWord := false
	flush := func(end int) {
		if start < 0 {
			return
		}
		seg := text[start:end]
		start = -1
		if inWord {
			fn(seg)
			return
		}
		if s := stripSpace(seg); s != "" {
			fn(s)
		}
	}
	for i, r := range text {
		w := isWordRune(r)
		if start >= 0 && w != inWord {
			flush(i)
		}
		if start < 0 {
			start = i
			inWord = w
		}
	}
	flush(len(text))
}

// stripSpace removes every whitespace rune from s. It returns s unchanged
// when there is nothing to remove.
func stripSpace(s string) string {
	if strings.IndexFunc(s, unicode.IsSpace) < 0 {
		return s
	}
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

// NormalizeToken applies case normalization to a single token.
// Keywords are always lowercased; other identifiers are lowercased only when
// normalizeIdentifiers is set.
func NormalizeToken(tok string, normalizeIdentifiers bool) string {
	if normalizeIdentifiers || IsKeyword(tok) {
		return strings.ToLower(tok)
	}
	return tok
}
