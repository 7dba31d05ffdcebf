package riskfactor

import (
	"errors"
	"fmt"
	"sort"

	"github.com/cognicore/foodsignal/pkg/foodsignal/ingest"
	"github.com/cognicore/foodsignal/pkg/foodsignal/internalerr"
)

// Span is a matched token range [Start, End).
type Span struct {
	Start int
	End   int
}

// Nesting reports a phrase of a factor that occurs inside a longer phrase of
// the same factor.
type Nesting struct {
	FactorID string
	Inner    string
	Outer    string
}

// Matcher scans one language for every compiled factor in a single pass.
// It is read-only after Compile and safe for concurrent use.
type Matcher struct {
	lang     ingest.Language
	factors  []Factor
	index    *ingest.PhraseIndex
	rejected error
	nested   []Nesting
}

// Compile builds the combined phrase index of lang. Factors without a
// cluster are excluded and reported through Rejected; the others still
// compile. Factors with no phrase in lang are kept but never match.
func Compile(lang ingest.Language, factors []Factor) (*Matcher, error) {
	m := &Matcher{lang: lang}
	seen := make(map[string]bool, len(factors))
	var errs []error
	for _, f := range factors {
		if seen[f.ID] {
			return nil, fmt.Errorf("%w: risk factor %q", internalerr.ErrDuplicate, f.ID)
		}
		seen[f.ID] = true
		if f.Cluster == "" {
			errs = append(errs, &internalerr.UnknownClusterError{FactorID: f.ID})
			continue
		}
		m.factors = append(m.factors, f)
	}
	sort.Slice(m.factors, func(i, j int) bool { return m.factors[i].ID < m.factors[j].ID })
	m.rejected = errors.Join(errs...)

	tokenizer := ingest.NewTokenizer(lang)
	var phrases []ingest.Phrase
	for i, f := range m.factors {
		keys := make([]string, 0, len(f.Phrases[lang]))
		for _, p := range f.Phrases[lang] {
			phrases = append(phrases, ingest.Phrase{Text: p, Payload: i})
			keys = append(keys, tokenizer.Key(p))
		}
		for _, n := range ingest.NestedKeys(keys) {
			m.nested = append(m.nested, Nesting{FactorID: f.ID, Inner: n.Inner, Outer: n.Outer})
		}
	}
	m.index = ingest.NewPhraseIndex(tokenizer, phrases)
	return m, nil
}

// Language returns the matcher language.
func (m *Matcher) Language() ingest.Language { return m.lang }

// Factors returns the compiled factors sorted by id.
func (m *Matcher) Factors() []Factor { return m.factors }

// Rejected returns the joined UnknownClusterErrors of excluded factors, or nil.
func (m *Matcher) Rejected() error { return m.rejected }

// Nested returns same-factor phrases nested inside longer phrases.
func (m *Matcher) Nested() []Nesting { return m.nested }

// Phrases returns the number of distinct indexed phrases.
func (m *Matcher) Phrases() int { return m.index.Len() }

// Match scans articles once each and returns the partial result.
//
// Overlap rule: per factor, the longest phrase at a start wins and any later
// match of that factor overlapping an accepted span is discarded. Matches of
// different factors are independent.
func (m *Matcher) Match(articles []ingest.Article) (*Result, error) {
	res := NewResult(m.lang)
	tokenizer := m.index.Tokenizer()
	lastEnd := make([]int, len(m.factors))

	for i := range articles {
		a := &articles[i]
		if a.Language != m.lang {
			return nil, fmt.Errorf("%w: article %q is %q, matcher is %q",
				internalerr.ErrInvalidInput, a.ID, a.Language, m.lang)
		}
		res.articles[a.ID] = struct{}{}
		for f := range lastEnd {
			lastEnd[f] = 0
		}

		m.index.Each(tokenizer.Words(a.Text), func(match ingest.Match) {
			for _, f := range match.Payloads {
				if match.Start < lastEnd[f] {
					continue
				}
				lastEnd[f] = match.End()
				res.add(a.ID, m.factors[f], Span{Start: match.Start, End: match.End()})
			}
		})
	}
	return res, nil
}
