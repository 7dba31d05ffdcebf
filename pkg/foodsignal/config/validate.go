package config

import (
	"errors"
	"fmt"

	"github.com/cognicore/foodsignal/internal/logger"
	"github.com/cognicore/foodsignal/pkg/foodsignal/ingest"
	"github.com/cognicore/foodsignal/pkg/foodsignal/internalerr"
	"github.com/cognicore/foodsignal/pkg/foodsignal/score"
	"github.com/cognicore/foodsignal/pkg/foodsignal/taxonomy"
)

// ValidationError names the offending configuration field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return internalerr.ErrInvalidConfig }

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// Validate reports every invalid field at once.
func (c *Config) Validate() error {
	var errs []error

	monitored := make(map[ingest.Language]bool)
	if len(c.Languages) == 0 {
		errs = append(errs, invalid("languages", "is required"))
	}
	for _, code := range c.Languages {
		lang, err := ingest.ParseLanguage(code)
		if err != nil {
			errs = append(errs, invalid("languages", "%v", err))
			continue
		}
		monitored[lang] = true
	}

	if _, err := taxonomy.ParsePolicy(c.Taxonomy.Policy); err != nil {
		errs = append(errs, invalid("taxonomy.policy", "must be one of %v", taxonomy.Policies))
	}
	if c.Taxonomy.AggregateCode == "" {
		errs = append(errs, invalid("taxonomy.aggregate_code", "is required"))
	}
	for i, loc := range c.Taxonomy.Locations {
		field := fmt.Sprintf("taxonomy.locations[%d]", i)
		if loc.Path == "" {
			errs = append(errs, invalid(field+".path", "is required"))
		}
		if lang, err := ingest.ParseLanguage(loc.Language); err != nil || !monitored[lang] {
			errs = append(errs, invalid(field+".language", "%q is not a monitored language", loc.Language))
		}
	}
	for i, src := range c.Corpus.Sources {
		field := fmt.Sprintf("corpus.sources[%d]", i)
		if src.Path == "" {
			errs = append(errs, invalid(field+".path", "is required"))
		}
		if src.Language == "" {
			continue
		}
		if lang, err := ingest.ParseLanguage(src.Language); err != nil || !monitored[lang] {
			errs = append(errs, invalid(field+".language", "%q is not a monitored language", src.Language))
		}
	}

	if _, err := score.ParseNormalization(c.Scoring.Normalization); err != nil {
		errs = append(errs, invalid("scoring.normalization", "must be minmax or max"))
	}
	if _, err := score.ParseGranularity(c.Scoring.Window); err != nil {
		errs = append(errs, invalid("scoring.window", "must be one of all, year, month, week, day"))
	}
	if len(c.Scoring.Scopes) == 0 {
		errs = append(errs, invalid("scoring.scopes", "is required"))
	}
	for _, s := range c.Scoring.Scopes {
		if s != score.ScopeAll && !monitored[ingest.Language(s)] {
			errs = append(errs, invalid("scoring.scopes", "%q is neither %q nor a monitored language", s, score.ScopeAll))
		}
	}
	if err := c.Scoring.Weights.Validate(); err != nil {
		errs = append(errs, invalid("scoring.weights", "%v", err))
	}

	if c.Pipeline.Workers < 1 {
		errs = append(errs, invalid("pipeline.workers", "must be at least 1"))
	}
	if c.Pipeline.ShardSize < 1 {
		errs = append(errs, invalid("pipeline.shard_size", "must be at least 1"))
	}
	if !logger.ValidLevel(c.Log.Level) {
		errs = append(errs, invalid("log.level", "must be one of debug, info, warn, error"))
	}
	return errors.Join(errs...)
}
