package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides: FOODSIGNAL_SCORING_WINDOW=month.
const EnvPrefix = "FOODSIGNAL"

// NewViper returns a viper instance carrying the defaults and env binding.
// Callers may bind CLI flags to it before calling Load.
func NewViper() *viper.Viper {
	v := viper.New()
	d := Default()
	v.SetDefault("languages", d.Languages)
	v.SetDefault("taxonomy.policy", d.Taxonomy.Policy)
	v.SetDefault("taxonomy.aggregate_code", d.Taxonomy.AggregateCode)
	v.SetDefault("taxonomy.aliases", "")
	v.SetDefault("corpus.strip_html", d.Corpus.StripHTML)
	v.SetDefault("risk.factors", "")
	v.SetDefault("risk.topics", "")
	v.SetDefault("scoring.normalization", d.Scoring.Normalization)
	v.SetDefault("scoring.window", d.Scoring.Window)
	v.SetDefault("scoring.scopes", d.Scoring.Scopes)
	v.SetDefault("scoring.weights.geo_density", 0.0)
	v.SetDefault("scoring.weights.risk_freq", 0.0)
	v.SetDefault("scoring.weights.lang_breadth", 0.0)
	v.SetDefault("scoring.weights.admin_diversity", 0.0)
	v.SetDefault("scoring.weights.topic", 0.0)
	v.SetDefault("pipeline.workers", d.Pipeline.Workers)
	v.SetDefault("pipeline.shard_size", d.Pipeline.ShardSize)
	v.SetDefault("output.dir", d.Output.Dir)
	v.SetDefault("output.sqlite", "")
	v.SetDefault("output.xlsx", "")
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.development", d.Log.Development)
	v.SetDefault("log.output_paths", d.Log.OutputPaths)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads path (optional) into v and returns the validated configuration.
// Priority: flags bound to v, FOODSIGNAL_* env, the file, defaults.
func Load(v *viper.Viper, path string) (*Config, error) {
	if v == nil {
		v = NewViper()
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return &cfg, err
	}
	return &cfg, nil
}

// IsValidation reports whether err carries a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
