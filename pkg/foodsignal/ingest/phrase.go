package ingest

import (
	"sort"
	"strings"
)

// Phrase is one surface form to be indexed, tagged with a caller-defined payload
// (an index into the caller's own candidate table).
type Phrase struct {
	Text    string
	Payload int
}

// PhraseIndex is the combined multi-pattern matcher for one language: every
// surface form of every entity lives in one dictionary keyed by its token
// sequence, so an article is matched in a single left-to-right pass with a
// bounded, prefix-pruned look-ahead.
type PhraseIndex struct {
	tokenizer *Tokenizer
	dict      map[string][]int    // phrase key → payloads
	prefixes  map[string]struct{} // every token prefix of every key, keys included
	maxLen    int
	keys      int
}

// NewPhraseIndex tokenizes and indexes phrases. Phrases that normalize to
// nothing are ignored. Payloads for the same key are kept sorted and unique.
func NewPhraseIndex(tokenizer *Tokenizer, phrases []Phrase) *PhraseIndex {
	ix := &PhraseIndex{
		tokenizer: tokenizer,
		dict:      make(map[string][]int),
		prefixes:  make(map[string]struct{}),
	}
	for _, p := range phrases {
		words := tokenizer.Words(p.Text)
		if len(words) == 0 {
			continue
		}
		key := strings.Join(words, " ")
		if _, ok := ix.dict[key]; !ok {
			ix.keys++
		}
		ix.dict[key] = insertSorted(ix.dict[key], p.Payload)
		for n := 1; n <= len(words); n++ {
			ix.prefixes[strings.Join(words[:n], " ")] = struct{}{}
		}
		if len(words) > ix.maxLen {
			ix.maxLen = len(words)
		}
	}
	return ix
}

// Tokenizer returns the tokenizer used to build the index.
func (ix *PhraseIndex) Tokenizer() *Tokenizer { return ix.tokenizer }

// Len returns the number of distinct phrase keys.
func (ix *PhraseIndex) Len() int { return ix.keys }

// Lookup returns the payloads stored under the normalized form of phrase.
func (ix *PhraseIndex) Lookup(phrase string) []int {
	return ix.dict[ix.tokenizer.Key(phrase)]
}

// Match is one phrase occurrence: tokens [Start, Start+Length) equal an indexed key.
type Match struct {
	Start    int
	Length   int
	Key      string
	Payloads []int
}

// End returns the exclusive end token index.
func (m Match) End() int { return m.Start + m.Length }

// Each reports every phrase occurrence in words. Occurrences are reported
// by ascending start position and, for the same start, longest first.
// Callers apply their own overlap policy.
func (ix *PhraseIndex) Each(words []string, fn func(Match)) {
	var found []Match
	for i := range words {
		found = ix.matchesAt(words, i, found[:0])
		for j := len(found) - 1; j >= 0; j-- {
			fn(found[j])
		}
	}
}

// Longest reports leftmost-longest, non-overlapping occurrences: at each
// position the longest key wins and its tokens are consumed.
func (ix *PhraseIndex) Longest(words []string, fn func(Match)) {
	var found []Match
	for i := 0; i < len(words); {
		found = ix.matchesAt(words, i, found[:0])
		if len(found) == 0 {
			i++
			continue
		}
		best := found[len(found)-1]
		fn(best)
		i += best.Length
	}
}

// matchesAt appends the occurrences starting at i, shortest first.
func (ix *PhraseIndex) matchesAt(words []string, i int, found []Match) []Match {
	if ix.maxLen == 0 {
		return found
	}
	var key strings.Builder
	limit := ix.maxLen
	if remaining := len(words) - i; limit > remaining {
		limit = remaining
	}
	for n := 1; n <= limit; n++ {
		if n > 1 {
			key.WriteByte(' ')
		}
		key.WriteString(words[i+n-1])
		k := key.String()
		if _, ok := ix.prefixes[k]; !ok {
			break
		}
		if payloads, ok := ix.dict[k]; ok {
			found = append(found, Match{Start: i, Length: n, Key: k, Payloads: payloads})
		}
	}
	return found
}

func insertSorted(s []int, v int) []int {
	i := sort.SearchInts(s, v)
	if i < len(s) && s[i] == v {
		return s
	}
	s = append(s, 0)
	copy(s[i+1:], s[i:])
	s[i] = v
	return s
}
