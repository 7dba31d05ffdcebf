// Package score blends geographic and risk signals into per-region composite
// scores, normalized within each (time window, language scope) cohort.
package score

import (
	"errors"
	"fmt"
	"sort"

	"github.com/cognicore/foodsignal/pkg/foodsignal/ingest"
	"github.com/cognicore/foodsignal/pkg/foodsignal/internalerr"
	"github.com/cognicore/foodsignal/pkg/foodsignal/mention"
	"github.com/cognicore/foodsignal/pkg/foodsignal/pmi"
	"github.com/cognicore/foodsignal/pkg/foodsignal/riskfactor"
	"github.com/cognicore/foodsignal/pkg/foodsignal/taxonomy"
)

// Metrics holds the per-region signal values.
type Metrics struct {
	GeoDensity     float64
	RiskFreq       float64
	LangBreadth    float64
	AdminDiversity float64
	Topic          float64
}

// RegionScore is one region in one (window, scope) cohort. Raw keeps the
// metric definitions; Normalized and Composite are in [0,1]. Aggregate marks
// the country-level "unspecified" bucket, which sits at province level in
// the hierarchy but is not a real province.
type RegionScore struct {
	RegionID   taxonomy.RegionID
	Level      taxonomy.Level
	Aggregate  bool
	Window     string
	Scope      string
	Articles   int // articles mentioning the region in scope
	Raw        Metrics
	Normalized Metrics
	Composite  float64
}

// Association is the region and risk-cluster co-occurrence of one window.
type Association struct {
	Window string
	pmi.Association
}

// Input is everything the scorer consumes. Topics may be nil.
type Input struct {
	Taxonomy *taxonomy.Taxonomy
	Mentions []*mention.Result
	Risks    []*riskfactor.Result
	Topics   Topics
}

// Report is the scored output of one run.
type Report struct {
	Policy        taxonomy.Policy
	Normalization Normalization
	Granularity   Granularity
	Weights       Weights // as applied, after any topic rescaling
	TopicApplied  bool
	Scores        []RegionScore // sorted by window, scope order, region
	Associations  []Association // sorted by window, region, cluster
}

type articleKey struct {
	lang ingest.Language
	id   string
}

type cell struct {
	raw      int
	rolled   int
	articles []articleKey
}

type scorer struct {
	opts     Options
	tax      *taxonomy.Taxonomy
	topics   Topics
	windows  map[string]map[ingest.Language]int // window → articles per language
	window   map[articleKey]string
	cells    map[string]map[ingest.Language]map[taxonomy.RegionID]*cell
	risk     map[articleKey]int
	clusters map[articleKey][]string
	regions  map[articleKey][]string
}

// Score computes every configured (window, scope) cohort. Cohorts without
// any mentioned region are reported as joined EmptyCohortErrors while the
// others are still scored: a non-nil Report may come with a non-nil error.
// Invalid options or input return a nil Report.
func Score(in Input, opts Options) (*Report, error) {
	opts, err := opts.Canonical()
	if err != nil {
		return nil, err
	}
	if in.Taxonomy == nil {
		return nil, fmt.Errorf("%w: no taxonomy", internalerr.ErrInvalidInput)
	}

	report := &Report{
		Policy:        in.Taxonomy.Policy(),
		Normalization: opts.Normalization,
		Granularity:   opts.Granularity,
		Weights:       opts.Weights,
		TopicApplied:  len(in.Topics) > 0,
	}
	if !report.TopicApplied {
		w, err := opts.Weights.WithoutTopic()
		if err != nil {
			return nil, err
		}
		report.Weights = w
	}

	s := &scorer{
		opts:     opts,
		tax:      in.Taxonomy,
		topics:   in.Topics,
		windows:  make(map[string]map[ingest.Language]int),
		window:   make(map[articleKey]string),
		cells:    make(map[string]map[ingest.Language]map[taxonomy.RegionID]*cell),
		risk:     make(map[articleKey]int),
		clusters: make(map[articleKey][]string),
		regions:  make(map[articleKey][]string),
	}
	if err := s.collect(in); err != nil {
		return nil, err
	}

	var errs []error
	for _, w := range sortedKeys(s.windows) {
		for _, scope := range opts.Scopes {
			scores, err := s.cohort(w, scope, report.Weights)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			report.Scores = append(report.Scores, scores...)
		}
	}
	report.Associations = s.associations()
	return report, errors.Join(errs...)
}

func (s *scorer) collect(in Input) error {
	for _, res := range in.Mentions {
		if !s.opts.monitors(res.Language) {
			return fmt.Errorf("%w: mentions for unmonitored language %q", internalerr.ErrInvalidInput, res.Language)
		}
		if res.Policy != in.Taxonomy.Policy() {
			return fmt.Errorf("%w: mentions counted with policy %q, taxonomy built with %q",
				internalerr.ErrInvalidInput, res.Policy, in.Taxonomy.Policy())
		}
		for _, a := range res.Articles() {
			k := articleKey{lang: res.Language, id: a.ID}
			w := s.opts.Granularity.Window(a.PublishedAt)
			if _, seen := s.window[k]; !seen {
				s.window[k] = w
				if s.windows[w] == nil {
					s.windows[w] = make(map[ingest.Language]int)
				}
				s.windows[w][res.Language]++
			}
		}
		for _, rec := range res.Records() {
			k := articleKey{lang: res.Language, id: rec.ArticleID}
			c := s.cell(s.window[k], res.Language, rec.RegionID, true)
			c.raw += rec.Raw
			c.rolled += rec.RolledUp
			c.articles = append(c.articles, k)
			s.regions[k] = append(s.regions[k], string(rec.RegionID))
		}
	}

	for _, res := range in.Risks {
		for _, rec := range res.Records() {
			k := articleKey{lang: res.Language, id: rec.ArticleID}
			s.risk[k] += rec.Count
			s.clusters[k] = appendUnique(s.clusters[k], rec.Cluster)
		}
	}
	return nil
}

func (s *scorer) cell(window string, lang ingest.Language, region taxonomy.RegionID, create bool) *cell {
	byLang, ok := s.cells[window]
	if !ok {
		if !create {
			return nil
		}
		byLang = make(map[ingest.Language]map[taxonomy.RegionID]*cell)
		s.cells[window] = byLang
	}
	byRegion, ok := byLang[lang]
	if !ok {
		if !create {
			return nil
		}
		byRegion = make(map[taxonomy.RegionID]*cell)
		byLang[lang] = byRegion
	}
	c, ok := byRegion[region]
	if !ok && create {
		c = &cell{}
		byRegion[region] = c
	}
	return c
}

func (s *scorer) rolled(window string, lang ingest.Language, region taxonomy.RegionID) int {
	if c := s.cell(window, lang, region, false); c != nil {
		return c.rolled
	}
	return 0
}

func (s *scorer) raw(window string, lang ingest.Language, region taxonomy.RegionID) int {
	if c := s.cell(window, lang, region, false); c != nil {
		return c.raw
	}
	return 0
}

// cohort scores one (window, scope). Scopes without articles in the window
// are not cohorts and yield nothing.
func (s *scorer) cohort(window, scope string, weights Weights) ([]RegionScore, error) {
	langs := s.opts.scopeLanguages(scope)
	corpus := 0
	for _, l := range langs {
		corpus += s.windows[window][l]
	}
	if corpus == 0 {
		return nil, nil
	}

	members := make(map[taxonomy.RegionID]bool)
	for _, l := range langs {
		for r, c := range s.cells[window][l] {
			if c.rolled > 0 {
				members[r] = true
			}
		}
	}
	if len(members) == 0 {
		return nil, &internalerr.EmptyCohortError{Window: window, Scope: scope}
	}
	ids := make([]taxonomy.RegionID, 0, len(members))
	for r := range members {
		ids = append(ids, r)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	scores := make([]RegionScore, len(ids))
	for i, r := range ids {
		scores[i] = s.region(window, scope, langs, r)
	}

	column := func(get func(*Metrics) *float64) {
		values := make([]float64, len(scores))
		for i := range scores {
			values[i] = *get(&scores[i].Raw)
		}
		for i, v := range normalize(s.opts.Normalization, values) {
			*get(&scores[i].Normalized) = v
		}
	}
	column(func(m *Metrics) *float64 { return &m.GeoDensity })
	column(func(m *Metrics) *float64 { return &m.RiskFreq })
	column(func(m *Metrics) *float64 { return &m.LangBreadth })
	column(func(m *Metrics) *float64 { return &m.AdminDiversity })
	column(func(m *Metrics) *float64 { return &m.Topic })

	for i := range scores {
		n := scores[i].Normalized
		scores[i].Composite = clamp01(weights.GeoDensity*n.GeoDensity +
			weights.RiskFreq*n.RiskFreq +
			weights.LangBreadth*n.LangBreadth +
			weights.AdminDiversity*n.AdminDiversity +
			weights.Topic*n.Topic)
	}
	return scores, nil
}

func (s *scorer) region(window, scope string, langs []ingest.Language, r taxonomy.RegionID) RegionScore {
	out := RegionScore{RegionID: r, Window: window, Scope: scope}
	if reg, ok := s.tax.Region(r); ok {
		out.Level = reg.Level
		out.Aggregate = reg.Aggregate
	}

	// Pooled density is the mean of per-language densities so a large
	// corpus in one language does not dominate.
	var density float64
	var active int
	articles := make(map[articleKey]bool)
	for _, l := range langs {
		total := s.windows[window][l]
		if total == 0 {
			continue
		}
		active++
		c := s.cell(window, l, r, false)
		if c == nil {
			continue
		}
		density += float64(c.rolled) / float64(total)
		for _, k := range c.articles {
			articles[k] = true
		}
	}
	out.Raw.GeoDensity = density / float64(active)
	out.Articles = len(articles)

	if len(articles) > 0 {
		keys := make([]articleKey, 0, len(articles))
		for k := range articles {
			keys = append(keys, k)
		}
		sortArticleKeys(keys)

		var risk, topic float64
		var topics int
		for _, k := range keys {
			risk += float64(s.risk[k])
			if p, ok := s.topics.Lookup(k.lang, k.id); ok {
				topic += p
				topics++
			}
		}
		out.Raw.RiskFreq = risk / float64(len(articles))
		if topics > 0 {
			out.Raw.Topic = topic / float64(topics)
		}
	}

	var mentioned int
	for _, l := range s.opts.Languages {
		if s.rolled(window, l, r) > 0 {
			mentioned++
		}
	}
	out.Raw.LangBreadth = float64(mentioned) / float64(len(s.opts.Languages))

	levels := make(map[taxonomy.Level]bool)
	related := append([]taxonomy.RegionID{r}, s.tax.Ancestors(r)...)
	related = append(related, s.tax.Descendants(r)...)
	for _, x := range related {
		reg, ok := s.tax.Region(x)
		if !ok {
			continue
		}
		for _, l := range langs {
			if s.raw(window, l, x) > 0 {
				levels[reg.Level] = true
				break
			}
		}
	}
	out.Raw.AdminDiversity = float64(len(levels)) / float64(taxonomy.MaxLevels)
	return out
}

func (s *scorer) associations() []Association {
	counters := make(map[string]*pmi.Counter)
	keys := make([]articleKey, 0, len(s.window))
	for k := range s.window {
		keys = append(keys, k)
	}
	sortArticleKeys(keys)
	for _, k := range keys {
		w := s.window[k]
		c, ok := counters[w]
		if !ok {
			c = pmi.NewCounter()
			counters[w] = c
		}
		c.AddArticle(s.regions[k], s.clusters[k])
	}

	calc := pmi.NewCalculator(1.0)
	var out []Association
	for _, w := range sortedKeys(counters) {
		for _, a := range calc.Associations(counters[w]) {
			out = append(out, Association{Window: w, Association: a})
		}
	}
	return out
}

func sortArticleKeys(keys []articleKey) {
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].lang != keys[j].lang {
			return keys[i].lang < keys[j].lang
		}
		return keys[i].id < keys[j].id
	})
}

func appendUnique(s []string, v string) []string {
	for _, x := range s {
		if x == v {
			return s
		}
	}
	return append(s, v)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
