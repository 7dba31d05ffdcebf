// Package mention counts geographic mentions per article with hierarchical rollup.
package mention

import (
	"fmt"
	"sort"
	"time"

	"github.com/cognicore/foodsignal/pkg/foodsignal/ingest"
	"github.com/cognicore/foodsignal/pkg/foodsignal/internalerr"
	"github.com/cognicore/foodsignal/pkg/foodsignal/taxonomy"
)

// Record is the mention count of one region in one article.
// RolledUp = Raw + raw hits of every descendant in the same article.
type Record struct {
	ArticleID string
	RegionID  taxonomy.RegionID
	Raw       int
	RolledUp  int
}

// ArticleStat describes one scanned article. Articles with no mentions
// still appear here so they count toward corpus size.
type ArticleStat struct {
	ID          string
	PublishedAt time.Time
	Tokens      int // corpus-relative length
	Hits        int // geographic surface-form hits
}

type recordKey struct {
	article string
	region  taxonomy.RegionID
}

// Counter scans one language corpus against a taxonomy. It holds no
// mutable state and may be shared by concurrent shards.
type Counter struct {
	tax   *taxonomy.Taxonomy
	lang  ingest.Language
	index *taxonomy.LanguageIndex
}

// NewCounter binds a counter to the taxonomy matcher of lang.
func NewCounter(tax *taxonomy.Taxonomy, lang ingest.Language) (*Counter, error) {
	li, err := tax.Language(lang)
	if err != nil {
		return nil, err
	}
	return &Counter{tax: tax, lang: lang, index: li}, nil
}

// Language returns the counter's language.
func (c *Counter) Language() ingest.Language { return c.lang }

// Count scans every article exactly once and returns the partial result.
// Articles of another language are rejected.
func (c *Counter) Count(articles []ingest.Article) (*Result, error) {
	res := NewResult(c.lang, c.tax.Policy())
	tokenizer := c.index.Phrases().Tokenizer()

	for i := range articles {
		a := &articles[i]
		if a.Language != c.lang {
			return nil, fmt.Errorf("%w: article %q is %q, counter is %q",
				internalerr.ErrInvalidInput, a.ID, a.Language, c.lang)
		}
		words := tokenizer.Words(a.Text)
		stat := ArticleStat{ID: a.ID, PublishedAt: a.PublishedAt, Tokens: len(words)}

		raw := make(map[taxonomy.RegionID]int)
		rolled := make(map[taxonomy.RegionID]int)
		c.index.Phrases().Longest(words, func(m ingest.Match) {
			stat.Hits++
			entry := c.index.Entry(m.Payloads[0])
			if len(entry.Targets) == 0 {
				res.Skipped++
				return
			}
			for _, target := range entry.Targets {
				raw[target]++
				rolled[target]++
				for _, anc := range c.tax.Ancestors(target) {
					rolled[anc]++
				}
			}
		})

		res.Hits += stat.Hits
		res.addArticle(stat)
		for region, n := range rolled {
			res.add(a.ID, region, raw[region], n)
		}
	}
	return res, nil
}

// Result accumulates mention records for one language. Results from
// different shards merge by summation, so merge order never matters.
type Result struct {
	Language ingest.Language
	Policy   taxonomy.Policy
	Hits     int // total surface-form hits
	Skipped  int // ambiguous hits the policy attributed to nobody

	counts   map[recordKey]*Record
	articles map[string]ArticleStat
}

// NewResult creates an empty result.
func NewResult(lang ingest.Language, policy taxonomy.Policy) *Result {
	return &Result{
		Language: lang,
		Policy:   policy,
		counts:   make(map[recordKey]*Record),
		articles: make(map[string]ArticleStat),
	}
}

func (r *Result) addArticle(stat ArticleStat) {
	if prev, ok := r.articles[stat.ID]; ok {
		stat.Tokens += prev.Tokens
		stat.Hits += prev.Hits
		if stat.PublishedAt.IsZero() {
			stat.PublishedAt = prev.PublishedAt
		}
	}
	r.articles[stat.ID] = stat
}

func (r *Result) add(article string, region taxonomy.RegionID, raw, rolled int) {
	k := recordKey{article: article, region: region}
	rec, ok := r.counts[k]
	if !ok {
		rec = &Record{ArticleID: article, RegionID: region}
		r.counts[k] = rec
	}
	rec.Raw += raw
	rec.RolledUp += rolled
}

// Merge folds other into r. Both must share language and policy.
func (r *Result) Merge(other *Result) error {
	if other == nil {
		return nil
	}
	if other.Language != r.Language || other.Policy != r.Policy {
		return fmt.Errorf("%w: cannot merge %s/%s into %s/%s", internalerr.ErrInvalidInput,
			other.Language, other.Policy, r.Language, r.Policy)
	}
	r.Hits += other.Hits
	r.Skipped += other.Skipped
	for _, stat := range other.articles {
		r.addArticle(stat)
	}
	for _, rec := range other.counts {
		r.add(rec.ArticleID, rec.RegionID, rec.Raw, rec.RolledUp)
	}
	return nil
}

// Records returns every non-zero record sorted by article then region.
func (r *Result) Records() []Record {
	out := make([]Record, 0, len(r.counts))
	for _, rec := range r.counts {
		out = append(out, *rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ArticleID != out[j].ArticleID {
			return out[i].ArticleID < out[j].ArticleID
		}
		return out[i].RegionID < out[j].RegionID
	})
	return out
}

// Articles returns every scanned article sorted by id.
func (r *Result) Articles() []ArticleStat {
	out := make([]ArticleStat, 0, len(r.articles))
	for _, a := range r.articles {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ArticleCount returns the number of scanned articles.
func (r *Result) ArticleCount() int { return len(r.articles) }

// Totals sums rolled-up counts per region across all articles.
func (r *Result) Totals() map[taxonomy.RegionID]int {
	out := make(map[taxonomy.RegionID]int)
	for _, rec := range r.counts {
		out[rec.RegionID] += rec.RolledUp
	}
	return out
}
