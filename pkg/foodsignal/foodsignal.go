// Package foodsignal ties the administrative taxonomy, the mention counter,
// the risk-factor matcher and the composite scorer into one batch run.
package foodsignal

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cognicore/foodsignal/internal/logger"
	"github.com/cognicore/foodsignal/pkg/foodsignal/ingest"
	"github.com/cognicore/foodsignal/pkg/foodsignal/internalerr"
	"github.com/cognicore/foodsignal/pkg/foodsignal/mention"
	"github.com/cognicore/foodsignal/pkg/foodsignal/riskfactor"
	"github.com/cognicore/foodsignal/pkg/foodsignal/score"
	"github.com/cognicore/foodsignal/pkg/foodsignal/store"
	"github.com/cognicore/foodsignal/pkg/foodsignal/taxonomy"
)

// DefaultShardSize is the number of articles scanned by one shard.
const DefaultShardSize = 500

// Engine is the pipeline facade. It is immutable after New and safe for
// sequential runs over different corpora.
type Engine struct {
	tax        *taxonomy.Taxonomy
	counters   map[ingest.Language]*mention.Counter
	matchers   map[ingest.Language]*riskfactor.Matcher
	unresolved map[ingest.Language]error
	scoring    score.Options
	workers    int
	shardSize  int
	store      store.Store
	log        logger.Logger
	now        func() time.Time
}

// Options configures an Engine
type Options struct {
	Taxonomy  *taxonomy.Taxonomy
	Factors   []riskfactor.Factor
	Scoring   score.Options
	Workers   int
	ShardSize int
	Store     store.Store      // optional; runs are persisted when set
	Logger    logger.Logger    // optional
	Clock     func() time.Time // optional
}

// Result is one finished run.
type Result struct {
	Run      store.Run
	Report   *score.Report
	Mentions map[ingest.Language]*mention.Result
	Risks    map[ingest.Language]*riskfactor.Result
}

// New compiles the per-language matchers. A monitored language without a
// location table is not fatal here: its articles are reported as unresolved
// on every run.
func New(opts Options) (*Engine, error) {
	if opts.Taxonomy == nil {
		return nil, fmt.Errorf("%w: no taxonomy", internalerr.ErrInvalidConfig)
	}
	scoring, err := opts.Scoring.Canonical()
	if err != nil {
		return nil, err
	}

	e := &Engine{
		tax:        opts.Taxonomy,
		counters:   make(map[ingest.Language]*mention.Counter),
		matchers:   make(map[ingest.Language]*riskfactor.Matcher),
		unresolved: make(map[ingest.Language]error),
		scoring:    scoring,
		workers:    opts.Workers,
		shardSize:  opts.ShardSize,
		store:      opts.Store,
		log:        opts.Logger,
		now:        opts.Clock,
	}
	if e.workers <= 0 {
		e.workers = 1
	}
	if e.shardSize <= 0 {
		e.shardSize = DefaultShardSize
	}
	if e.log == nil {
		e.log = logger.NewNop()
	}
	if e.now == nil {
		e.now = time.Now
	}

	for _, w := range e.tax.Warnings() {
		e.log.Warn("taxonomy row skipped",
			logger.String("language", string(w.Language)),
			logger.String("source", w.Source),
			logger.Int("line", w.Line),
			logger.String("code", w.Code),
			logger.String("reason", w.Message),
		)
	}

	for _, lang := range e.scoring.Languages {
		counter, err := mention.NewCounter(e.tax, lang)
		if err != nil {
			e.unresolved[lang] = err
			e.log.Warn("language has no taxonomy", logger.String("language", string(lang)))
			continue
		}
		matcher, err := riskfactor.Compile(lang, opts.Factors)
		if err != nil {
			return nil, fmt.Errorf("compile risk factors [%s]: %w", lang, err)
		}
		if err := matcher.Rejected(); err != nil {
			e.log.Warn("risk factors rejected",
				logger.String("language", string(lang)), logger.Error(err))
		}
		for _, n := range matcher.Nested() {
			e.log.Debug("nested risk phrase",
				logger.String("language", string(lang)),
				logger.String("factor", n.FactorID),
				logger.String("inner", n.Inner),
				logger.String("outer", n.Outer),
			)
		}
		for _, n := range e.tax.Nested(lang) {
			e.log.Debug("nested surface form",
				logger.String("language", string(lang)),
				logger.String("inner", n.Inner),
				logger.String("outer", n.Outer),
			)
		}
		e.counters[lang] = counter
		e.matchers[lang] = matcher
	}
	return e, nil
}

// Close releases the store, if any.
func (e *Engine) Close() error {
	if e.store == nil {
		return nil
	}
	return e.store.Close()
}

// Taxonomy returns the taxonomy the engine was built with.
func (e *Engine) Taxonomy() *taxonomy.Taxonomy { return e.tax }

// Matcher returns the compiled risk matcher of lang.
func (e *Engine) Matcher(lang ingest.Language) (*riskfactor.Matcher, bool) {
	m, ok := e.matchers[lang]
	return m, ok
}

type shard struct {
	lang     ingest.Language
	articles []ingest.Article
}

// articleID identifies an article within the corpus. Ids are unique per
// language; the corpus size of a language is its number of distinct ids.
type articleID struct {
	lang ingest.Language
	id   string
}

type partial struct {
	mentions *mention.Result
	risks    *riskfactor.Result
}

// Run scans, scores and (optionally) persists one corpus. Topics may be nil.
// Article ids must be unique within a language.
//
// Failures scoped to one language or one (window, scope) cohort are joined
// into the returned error alongside a usable Result. A nil Result means the
// run failed as a whole.
func (e *Engine) Run(ctx context.Context, articles []ingest.Article, topics score.Topics) (*Result, error) {
	started := e.now()
	var errs []error

	byLang := make(map[ingest.Language][]ingest.Article)
	seen := make(map[articleID]int, len(articles))
	for i := range articles {
		a := articles[i]
		if err := a.Validate(); err != nil {
			return nil, fmt.Errorf("%w: article %d: %v", internalerr.ErrInvalidInput, i, err)
		}
		id := articleID{lang: a.Language, id: a.ID}
		if first, dup := seen[id]; dup {
			return nil, fmt.Errorf("%w: article %d repeats id %q of article %d [%s]",
				internalerr.ErrInvalidInput, i, a.ID, first, a.Language)
		}
		seen[id] = i
		byLang[a.Language] = append(byLang[a.Language], a)
	}

	var shards []shard
	for _, lang := range sortedLanguages(byLang) {
		if err, ok := e.unresolved[lang]; ok {
			errs = append(errs, err)
			continue
		}
		if _, ok := e.counters[lang]; !ok {
			errs = append(errs, fmt.Errorf("%w: language %q is not monitored",
				internalerr.ErrInvalidInput, lang))
			continue
		}
		corpus := byLang[lang]
		for start := 0; start < len(corpus); start += e.shardSize {
			end := min(start+e.shardSize, len(corpus))
			shards = append(shards, shard{lang: lang, articles: corpus[start:end]})
		}
	}

	partials, err := e.scan(ctx, shards)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Mentions: make(map[ingest.Language]*mention.Result, len(e.counters)),
		Risks:    make(map[ingest.Language]*riskfactor.Result, len(e.counters)),
	}
	for lang := range e.counters {
		res.Mentions[lang] = mention.NewResult(lang, e.tax.Policy())
		res.Risks[lang] = riskfactor.NewResult(lang)
	}
	for i, p := range partials {
		lang := shards[i].lang
		if err := res.Mentions[lang].Merge(p.mentions); err != nil {
			return nil, err
		}
		if err := res.Risks[lang].Merge(p.risks); err != nil {
			return nil, err
		}
	}

	in := score.Input{Taxonomy: e.tax, Topics: topics}
	for _, lang := range sortedLanguages(res.Mentions) {
		in.Mentions = append(in.Mentions, res.Mentions[lang])
		in.Risks = append(in.Risks, res.Risks[lang])
	}
	report, err := score.Score(in, e.scoring)
	if report == nil {
		return nil, err
	}
	if err != nil {
		errs = append(errs, err)
	}
	res.Report = report
	res.Run = e.assemble(res, started)

	if e.store != nil {
		if err := e.store.SaveRun(ctx, res.Run); err != nil {
			return nil, fmt.Errorf("save run %s: %w", res.Run.Manifest.RunID, err)
		}
	}

	e.log.Info("run complete",
		logger.String("run_id", res.Run.Manifest.RunID),
		logger.Int("articles", len(articles)),
		logger.Int("shards", len(shards)),
		logger.Int("scores", len(report.Scores)),
		logger.Int("associations", len(report.Associations)),
		logger.Bool("topic_applied", report.TopicApplied),
		logger.Duration("elapsed", e.now().Sub(started)),
	)
	for _, err := range errs {
		e.log.Warn("partial failure", logger.Error(err))
	}
	return res, errors.Join(errs...)
}

// scan fans shards out to at most e.workers goroutines. Cancellation is
// observed between shards; a shard that has started always finishes.
func (e *Engine) scan(ctx context.Context, shards []shard) ([]partial, error) {
	partials := make([]partial, len(shards))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)

	for i, sh := range shards {
		if gctx.Err() != nil {
			break
		}
		i, sh := i, sh
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			m, err := e.counters[sh.lang].Count(sh.articles)
			if err != nil {
				return err
			}
			r, err := e.matchers[sh.lang].Match(sh.articles)
			if err != nil {
				return err
			}
			partials[i] = partial{mentions: m, risks: r}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return partials, nil
}

func (e *Engine) assemble(res *Result, started time.Time) store.Run {
	report := res.Report
	m := store.Manifest{
		RunID:         store.NewRunID(started),
		CreatedAt:     started.UTC(),
		Policy:        string(e.tax.Policy()),
		AggregateCode: e.tax.AggregateCode(),
		Normalization: string(report.Normalization),
		Window:        string(report.Granularity),
		Weights:       report.Weights,
		TopicApplied:  report.TopicApplied,
		Articles:      make(map[string]int),
		SkippedHits:   make(map[string]int),
	}
	for _, lang := range e.scoring.Languages {
		m.Languages = append(m.Languages, string(lang))
	}

	run := store.Run{Manifest: m, Scores: report.Scores, Associations: report.Associations}
	for _, lang := range sortedLanguages(res.Mentions) {
		mr := res.Mentions[lang]
		run.Manifest.Articles[string(lang)] = mr.ArticleCount()
		run.Manifest.SkippedHits[string(lang)] = mr.Skipped
		for _, rec := range mr.Records() {
			run.Mentions = append(run.Mentions, store.MentionRow{Language: lang, Record: rec})
		}
		for _, rec := range res.Risks[lang].Records() {
			run.Risks = append(run.Risks, store.RiskRow{Language: lang, Record: rec})
		}
	}
	return run
}

func sortedLanguages[V any](m map[ingest.Language]V) []ingest.Language {
	out := make([]ingest.Language, 0, len(m))
	for l := range m {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
