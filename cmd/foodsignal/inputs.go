package main

import (
	"fmt"

	"github.com/cognicore/foodsignal/internal/logger"
	"github.com/cognicore/foodsignal/internal/source"
	"github.com/cognicore/foodsignal/pkg/foodsignal/config"
	"github.com/cognicore/foodsignal/pkg/foodsignal/ingest"
	"github.com/cognicore/foodsignal/pkg/foodsignal/lexicon"
	"github.com/cognicore/foodsignal/pkg/foodsignal/score"
	"github.com/cognicore/foodsignal/pkg/foodsignal/taxonomy"
)

// buildTaxonomy loads every location table and the optional alias lexicon.
func buildTaxonomy(cfg *config.Config, log logger.Logger) (*taxonomy.Taxonomy, error) {
	opts, err := cfg.TaxonomyOptions()
	if err != nil {
		return nil, err
	}
	if cfg.Taxonomy.Aliases != "" {
		lex, err := lexicon.LoadFromYAML(cfg.Taxonomy.Aliases)
		if err != nil {
			return nil, err
		}
		stats := lex.Stats()
		log.Info("aliases loaded",
			logger.String("path", cfg.Taxonomy.Aliases),
			logger.Int("regions", stats.Regions),
			logger.Int("forms", stats.Forms),
		)
		opts.Aliases = lex
	}

	tables := make([]taxonomy.Table, 0, len(cfg.Taxonomy.Locations))
	for _, loc := range cfg.Taxonomy.Locations {
		lang, err := ingest.ParseLanguage(loc.Language)
		if err != nil {
			return nil, fmt.Errorf("location table %s: %w", loc.Path, err)
		}
		table, err := source.LoadLocations(loc.Path, loc.Sheet, lang)
		if err != nil {
			return nil, err
		}
		log.Info("location table loaded",
			logger.String("language", string(lang)),
			logger.String("path", loc.Path),
			logger.Int("rows", len(table.Rows)),
		)
		tables = append(tables, table)
	}
	return taxonomy.Build(tables, opts)
}

// loadCorpus reads every configured corpus file. Skipped lines are logged;
// an article whose id was already read for its language is dropped.
func loadCorpus(cfg *config.Config, log logger.Logger) ([]ingest.Article, error) {
	var articles []ingest.Article
	seen := make(map[ingest.Language]map[string]bool)
	for _, src := range cfg.Corpus.Sources {
		opts := source.CorpusOptions{StripHTML: cfg.Corpus.StripHTML}
		if src.Language != "" {
			lang, err := ingest.ParseLanguage(src.Language)
			if err != nil {
				return nil, fmt.Errorf("corpus %s: %w", src.Path, err)
			}
			opts.Language = lang
		}
		batch, warnings, err := source.LoadCorpus(src.Path, opts)
		logWarnings(log, "corpus line skipped", warnings)
		if err != nil {
			return nil, err
		}
		log.Info("corpus loaded", logger.String("path", src.Path), logger.Int("articles", len(batch)))
		for _, a := range batch {
			if seen[a.Language] == nil {
				seen[a.Language] = make(map[string]bool)
			}
			if seen[a.Language][a.ID] {
				log.Warn("duplicate article dropped",
					logger.String("source", src.Path),
					logger.String("language", string(a.Language)),
					logger.String("id", a.ID),
				)
				continue
			}
			seen[a.Language][a.ID] = true
			articles = append(articles, a)
		}
	}
	return articles, nil
}

// loadTopics reads the optional topic table; nil when none is configured.
func loadTopics(cfg *config.Config, log logger.Logger) (score.Topics, error) {
	if cfg.Risk.Topics == "" {
		return nil, nil
	}
	topics, warnings, err := source.LoadTopics(cfg.Risk.Topics)
	logWarnings(log, "topic row skipped", warnings)
	if err != nil {
		return nil, err
	}
	log.Info("topics loaded", logger.String("path", cfg.Risk.Topics), logger.Int("articles", len(topics)))
	return topics, nil
}

func logWarnings(log logger.Logger, msg string, warnings []source.Warning) {
	for _, w := range warnings {
		log.Warn(msg,
			logger.String("source", w.Source),
			logger.Int("line", w.Line),
			logger.String("reason", w.Message),
		)
	}
}
