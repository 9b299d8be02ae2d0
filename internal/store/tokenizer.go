package store

import (
	"strings"
	"unicode"
)

// Tokenizer normalizes product text into index terms. The same pipeline
// runs at index time and query time so terms line up exactly:
// lowercase, split on non-alphanumerics, drop short tokens, drop stop words.
// No stemming.
type Tokenizer struct {
	minTokenLength int
	stopWords      map[string]struct{}
}

// NewTokenizer builds a tokenizer from BM25 config.
func NewTokenizer(cfg BM25Config) *Tokenizer {
	minLen := cfg.MinTokenLength
	if minLen <= 0 {
		minLen = 1
	}
	return &Tokenizer{
		minTokenLength: minLen,
		stopWords:      BuildStopWordMap(cfg.StopWords),
	}
}

// Tokenize splits text into normalized terms.
func (t *Tokenizer) Tokenize(text string) []string {
	var tokens []string
	var current strings.Builder

	flush := func() {
		if current.Len() == 0 {
			return
		}
		token := strings.ToLower(current.String())
		current.Reset()
		if len(token) < t.minTokenLength {
			return
		}
		if _, stop := t.stopWords[token]; stop {
			return
		}
		tokens = append(tokens, token)
	}

	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			current.WriteRune(r)
		} else {
			flush()
		}
	}
	flush()

	return tokens
}

// BuildStopWordMap converts a slice of stop words to a map for efficient lookup.
func BuildStopWordMap(stopWords []string) map[string]struct{} {
	m := make(map[string]struct{}, len(stopWords))
	for _, word := range stopWords {
		m[strings.ToLower(word)] = struct{}{}
	}
	return m
}
