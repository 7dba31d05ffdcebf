package ingest

import (
	"strings"
	"unicode"
)

// Token is a normalized word with its byte span in the normalized text.
type Token struct {
	Text  string
	Start int
	End   int
}

// Tokenizer splits normalized text into word tokens for one language.
// Surface forms and article bodies go through the same tokenizer, so a
// phrase matches exactly when its token sequence appears in the article.
type Tokenizer struct {
	lang Language
}

// NewTokenizer creates a tokenizer for lang.
func NewTokenizer(lang Language) *Tokenizer {
	return &Tokenizer{lang: lang}
}

// Language returns the tokenizer's language.
func (t *Tokenizer) Language() Language { return t.lang }

// Tokenize normalizes text and splits it into tokens.
func (t *Tokenizer) Tokenize(text string) []Token {
	normalized := Normalize(t.lang, text)

	var tokens []Token
	start := -1
	for i, r := range normalized {
		if isWordRune(r) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			tokens = appendToken(tokens, normalized, start, i)
			start = -1
		}
	}

	// Don't forget the last token
	if start >= 0 {
		tokens = appendToken(tokens, normalized, start, len(normalized))
	}
	return tokens
}

// Words returns only the token texts of Tokenize(text).
func (t *Tokenizer) Words(text string) []string {
	tokens := t.Tokenize(text)
	words := make([]string, len(tokens))
	for i, tok := range tokens {
		words[i] = tok.Text
	}
	return words
}

// Key returns the canonical lookup key of a phrase: its tokens joined by a single space.
func (t *Tokenizer) Key(phrase string) string {
	return strings.Join(t.Words(phrase), " ")
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsNumber(r) || r == '-'
}

// appendToken strips leading/trailing hyphens and drops tokens that were only hyphens.
func appendToken(tokens []Token, text string, start, end int) []Token {
	for start < end && text[start] == '-' {
		start++
	}
	for end > start && text[end-1] == '-' {
		end--
	}
	if start == end {
		return tokens
	}
	return append(tokens, Token{Text: text[start:end], Start: start, End: end})
}
