// Package config holds the run configuration of the foodsignal pipeline.
package config

import (
	"fmt"
	"runtime"

	"gopkg.in/yaml.v3"

	"github.com/cognicore/foodsignal/internal/logger"
	"github.com/cognicore/foodsignal/pkg/foodsignal/ingest"
	"github.com/cognicore/foodsignal/pkg/foodsignal/score"
	"github.com/cognicore/foodsignal/pkg/foodsignal/taxonomy"
)

// Config is the full configuration of one run.
type Config struct {
	Languages []string       `mapstructure:"languages" yaml:"languages"`
	Taxonomy  TaxonomyConfig `mapstructure:"taxonomy" yaml:"taxonomy"`
	Corpus    CorpusConfig   `mapstructure:"corpus" yaml:"corpus"`
	Risk      RiskConfig     `mapstructure:"risk" yaml:"risk"`
	Scoring   ScoringConfig  `mapstructure:"scoring" yaml:"scoring"`
	Pipeline  PipelineConfig `mapstructure:"pipeline" yaml:"pipeline"`
	Output    OutputConfig   `mapstructure:"output" yaml:"output"`
	Log       logger.Config  `mapstructure:"log" yaml:"log"`
}

// TaxonomyConfig locates the administrative reference data.
type TaxonomyConfig struct {
	Policy        string           `mapstructure:"policy" yaml:"policy"`
	AggregateCode string           `mapstructure:"aggregate_code" yaml:"aggregate_code"`
	Locations     []LocationSource `mapstructure:"locations" yaml:"locations"`
	Aliases       string           `mapstructure:"aliases" yaml:"aliases,omitempty"`
}

// LocationSource is one per-language location table, CSV or XLSX.
type LocationSource struct {
	Language string `mapstructure:"language" yaml:"language"`
	Path     string `mapstructure:"path" yaml:"path"`
	Sheet    string `mapstructure:"sheet" yaml:"sheet,omitempty"` // XLSX only; first sheet when empty
}

// CorpusConfig locates the article corpora.
type CorpusConfig struct {
	Sources   []CorpusSource `mapstructure:"sources" yaml:"sources"`
	StripHTML bool           `mapstructure:"strip_html" yaml:"strip_html"`
}

// CorpusSource is one JSONL article file. Language overrides the per-line field.
type CorpusSource struct {
	Language string `mapstructure:"language" yaml:"language,omitempty"`
	Path     string `mapstructure:"path" yaml:"path"`
}

// RiskConfig locates risk-factor reference data and the optional topic table.
type RiskConfig struct {
	Factors string `mapstructure:"factors" yaml:"factors"`
	Topics  string `mapstructure:"topics" yaml:"topics,omitempty"`
}

// ScoringConfig holds composite scoring parameters.
type ScoringConfig struct {
	Normalization string        `mapstructure:"normalization" yaml:"normalization"`
	Window        string        `mapstructure:"window" yaml:"window"`
	Scopes        []string      `mapstructure:"scopes" yaml:"scopes"`
	Weights       score.Weights `mapstructure:"weights" yaml:"weights"`
}

// PipelineConfig controls shard fan-out.
type PipelineConfig struct {
	Workers   int `mapstructure:"workers" yaml:"workers"`
	ShardSize int `mapstructure:"shard_size" yaml:"shard_size"`
}

// OutputConfig selects where results are written. Empty paths disable
// that output.
type OutputConfig struct {
	Dir    string `mapstructure:"dir" yaml:"dir"`
	SQLite string `mapstructure:"sqlite" yaml:"sqlite,omitempty"`
	XLSX   string `mapstructure:"xlsx" yaml:"xlsx,omitempty"`
}

// Default returns the configuration used when nothing overrides it. Weights
// have no default: they must be supplied explicitly.
func Default() Config {
	return Config{
		Languages: []string{string(ingest.English), string(ingest.Arabic)},
		Taxonomy: TaxonomyConfig{
			Policy:        string(taxonomy.PolicyAllCandidates),
			AggregateCode: taxonomy.DefaultAggregateCode,
		},
		Scoring: ScoringConfig{
			Normalization: string(score.NormalizeMinMax),
			Window:        string(score.WindowAll),
			Scopes:        []string{score.ScopeAll},
		},
		Pipeline: PipelineConfig{
			Workers:   runtime.NumCPU(),
			ShardSize: 500,
		},
		Output: OutputConfig{Dir: "out"},
		Log: logger.Config{
			Level:       logger.DefaultLevel,
			OutputPaths: []string{"stderr"},
		},
	}
}

// MonitoredLanguages returns the parsed language set.
func (c *Config) MonitoredLanguages() ([]ingest.Language, error) {
	out := make([]ingest.Language, 0, len(c.Languages))
	for _, code := range c.Languages {
		lang, err := ingest.ParseLanguage(code)
		if err != nil {
			return nil, err
		}
		out = append(out, lang)
	}
	return out, nil
}

// TaxonomyOptions returns the build options of the administrative taxonomy.
func (c *Config) TaxonomyOptions() (taxonomy.Options, error) {
	policy, err := taxonomy.ParsePolicy(c.Taxonomy.Policy)
	if err != nil {
		return taxonomy.Options{}, err
	}
	return taxonomy.Options{Policy: policy, AggregateCode: c.Taxonomy.AggregateCode}, nil
}

// ScoreOptions returns the explicit scoring parameters.
func (c *Config) ScoreOptions() (score.Options, error) {
	langs, err := c.MonitoredLanguages()
	if err != nil {
		return score.Options{}, err
	}
	norm, err := score.ParseNormalization(c.Scoring.Normalization)
	if err != nil {
		return score.Options{}, err
	}
	window, err := score.ParseGranularity(c.Scoring.Window)
	if err != nil {
		return score.Options{}, err
	}
	opts := score.Options{
		Languages:     langs,
		Weights:       c.Scoring.Weights,
		Normalization: norm,
		Granularity:   window,
		Scopes:        c.Scoring.Scopes,
	}
	return opts, opts.Validate()
}

// YAML renders the configuration.
func (c *Config) YAML() ([]byte, error) {
	out, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return out, nil
}
