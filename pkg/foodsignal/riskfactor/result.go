package riskfactor

import (
	"fmt"
	"sort"

	"github.com/cognicore/foodsignal/pkg/foodsignal/ingest"
	"github.com/cognicore/foodsignal/pkg/foodsignal/internalerr"
)

// Record counts one factor in one article. Spans are sorted and never overlap.
type Record struct {
	ArticleID string
	FactorID  string
	Cluster   string
	Count     int
	Spans     []Span
}

// ArticleCount is the per-article count of an enriched factor.
type ArticleCount struct {
	ArticleID string
	Count     int
}

// Enriched is a factor with its corpus-wide mention statistics.
type Enriched struct {
	ID       string
	Cluster  string
	Total    int
	Articles []ArticleCount // sorted by article id
}

// Group is one cluster of enriched factors.
type Group struct {
	Cluster string
	Total   int
	Factors []Enriched
}

type recordKey struct {
	article string
	factor  string
}

// Result accumulates risk mentions for one language. Shard results merge
// by summation.
type Result struct {
	Language ingest.Language

	records  map[recordKey]*Record
	articles map[string]struct{}
}

// NewResult creates an empty result.
func NewResult(lang ingest.Language) *Result {
	return &Result{
		Language: lang,
		records:  make(map[recordKey]*Record),
		articles: make(map[string]struct{}),
	}
}

func (r *Result) add(article string, f Factor, spans ...Span) {
	k := recordKey{article: article, factor: f.ID}
	rec, ok := r.records[k]
	if !ok {
		rec = &Record{ArticleID: article, FactorID: f.ID, Cluster: f.Cluster}
		r.records[k] = rec
	}
	rec.Count += len(spans)
	rec.Spans = append(rec.Spans, spans...)
}

// Merge folds other into r. Both must share the language.
func (r *Result) Merge(other *Result) error {
	if other == nil {
		return nil
	}
	if other.Language != r.Language {
		return fmt.Errorf("%w: cannot merge %s risk mentions into %s",
			internalerr.ErrInvalidInput, other.Language, r.Language)
	}
	for id := range other.articles {
		r.articles[id] = struct{}{}
	}
	for _, rec := range other.records {
		r.add(rec.ArticleID, Factor{ID: rec.FactorID, Cluster: rec.Cluster}, rec.Spans...)
	}
	return nil
}

// ArticleCount returns the number of scanned articles.
func (r *Result) ArticleCount() int { return len(r.articles) }

// Records returns every record sorted by article then factor.
func (r *Result) Records() []Record {
	out := make([]Record, 0, len(r.records))
	for _, rec := range r.records {
		cp := *rec
		cp.Spans = append([]Span(nil), rec.Spans...)
		sort.Slice(cp.Spans, func(i, j int) bool { return cp.Spans[i].Start < cp.Spans[j].Start })
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ArticleID != out[j].ArticleID {
			return out[i].ArticleID < out[j].ArticleID
		}
		return out[i].FactorID < out[j].FactorID
	})
	return out
}

// PerArticle sums risk mentions per article over all factors.
func (r *Result) PerArticle() map[string]int {
	out := make(map[string]int)
	for _, rec := range r.records {
		out[rec.ArticleID] += rec.Count
	}
	return out
}

// Factors returns every factor with at least one mention, sorted by id.
func (r *Result) Factors() []Enriched {
	byID := make(map[string]*Enriched)
	for _, rec := range r.Records() {
		e, ok := byID[rec.FactorID]
		if !ok {
			e = &Enriched{ID: rec.FactorID, Cluster: rec.Cluster}
			byID[rec.FactorID] = e
		}
		e.Total += rec.Count
		e.Articles = append(e.Articles, ArticleCount{ArticleID: rec.ArticleID, Count: rec.Count})
	}
	out := make([]Enriched, 0, len(byID))
	for _, e := range byID {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ByCluster groups enriched factors by cluster, sorted by cluster label.
func (r *Result) ByCluster() []Group {
	idx := make(map[string]int)
	var out []Group
	for _, e := range r.Factors() {
		i, ok := idx[e.Cluster]
		if !ok {
			i = len(out)
			idx[e.Cluster] = i
			out = append(out, Group{Cluster: e.Cluster})
		}
		out[i].Total += e.Total
		out[i].Factors = append(out[i].Factors, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Cluster < out[j].Cluster })
	return out
}
