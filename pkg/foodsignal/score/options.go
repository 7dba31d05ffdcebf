package score

import (
	"fmt"
	"math"
	"strings"

	"github.com/cognicore/foodsignal/pkg/foodsignal/ingest"
	"github.com/cognicore/foodsignal/pkg/foodsignal/internalerr"
)

// WeightTolerance is the allowed deviation of the weight sum from 1.
const WeightTolerance = 1e-9

// Weights are the composite blend coefficients. They are always explicit:
// a zero Weights value is invalid.
type Weights struct {
	GeoDensity     float64 `mapstructure:"geo_density" yaml:"geo_density"`
	RiskFreq       float64 `mapstructure:"risk_freq" yaml:"risk_freq"`
	LangBreadth    float64 `mapstructure:"lang_breadth" yaml:"lang_breadth"`
	AdminDiversity float64 `mapstructure:"admin_diversity" yaml:"admin_diversity"`
	Topic          float64 `mapstructure:"topic" yaml:"topic"`
}

// Sum returns the total weight.
func (w Weights) Sum() float64 {
	return w.GeoDensity + w.RiskFreq + w.LangBreadth + w.AdminDiversity + w.Topic
}

// Validate checks that weights are non-negative and sum to 1.
func (w Weights) Validate() error {
	for name, v := range map[string]float64{
		"geo_density":     w.GeoDensity,
		"risk_freq":       w.RiskFreq,
		"lang_breadth":    w.LangBreadth,
		"admin_diversity": w.AdminDiversity,
		"topic":           w.Topic,
	} {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: weight %s = %v", internalerr.ErrInvalidConfig, name, v)
		}
	}
	if sum := w.Sum(); math.Abs(sum-1) > WeightTolerance {
		return fmt.Errorf("%w: weights sum to %v, want 1", internalerr.ErrInvalidConfig, sum)
	}
	return nil
}

// WithoutTopic drops the topic weight and rescales the others to sum to 1.
func (w Weights) WithoutTopic() (Weights, error) {
	if w.Topic == 0 {
		return w, nil
	}
	rest := w.GeoDensity + w.RiskFreq + w.LangBreadth + w.AdminDiversity
	if rest == 0 {
		return Weights{}, fmt.Errorf("%w: only the topic metric is weighted but no topic table was supplied",
			internalerr.ErrInvalidConfig)
	}
	return Weights{
		GeoDensity:     w.GeoDensity / rest,
		RiskFreq:       w.RiskFreq / rest,
		LangBreadth:    w.LangBreadth / rest,
		AdminDiversity: w.AdminDiversity / rest,
	}, nil
}

// Normalization names the per-cohort rescaling scheme.
type Normalization string

const (
	// NormalizeMinMax maps the cohort range onto [0,1].
	NormalizeMinMax Normalization = "minmax"
	// NormalizeMax divides by the cohort maximum.
	NormalizeMax Normalization = "max"
)

// ParseNormalization validates a scheme name.
func ParseNormalization(s string) (Normalization, error) {
	switch n := Normalization(strings.ToLower(strings.TrimSpace(s))); n {
	case NormalizeMinMax, NormalizeMax:
		return n, nil
	}
	return "", fmt.Errorf("%w: unknown normalization %q", internalerr.ErrInvalidConfig, s)
}

// ScopeAll pools every monitored language into one cohort.
const ScopeAll = "all"

// Options carries every scoring parameter explicitly.
type Options struct {
	Languages     []ingest.Language // monitored languages, the lang_breadth denominator
	Weights       Weights
	Normalization Normalization
	Granularity   Granularity
	Scopes        []string // ScopeAll or language codes
}

// Validate checks the options against each other.
func (o Options) Validate() error {
	_, err := o.Canonical()
	return err
}

// Canonical validates the options and returns a copy with the normalization,
// granularity and scope names in the spelling the scorer switches on.
func (o Options) Canonical() (Options, error) {
	if len(o.Languages) == 0 {
		return o, fmt.Errorf("%w: no monitored languages", internalerr.ErrInvalidConfig)
	}
	if err := o.Weights.Validate(); err != nil {
		return o, err
	}
	n, err := ParseNormalization(string(o.Normalization))
	if err != nil {
		return o, err
	}
	g, err := ParseGranularity(string(o.Granularity))
	if err != nil {
		return o, err
	}
	if len(o.Scopes) == 0 {
		return o, fmt.Errorf("%w: no scoring scopes", internalerr.ErrInvalidConfig)
	}

	out := o
	out.Normalization = n
	out.Granularity = g
	out.Scopes = make([]string, len(o.Scopes))
	for i, s := range o.Scopes {
		scope := strings.ToLower(strings.TrimSpace(s))
		if scope != ScopeAll && !o.monitors(ingest.Language(scope)) {
			return o, fmt.Errorf("%w: scope %q is not a monitored language", internalerr.ErrInvalidConfig, s)
		}
		out.Scopes[i] = scope
	}
	return out, nil
}

func (o Options) monitors(lang ingest.Language) bool {
	for _, l := range o.Languages {
		if l == lang {
			return true
		}
	}
	return false
}

// scopeLanguages returns the languages pooled by scope.
func (o Options) scopeLanguages(scope string) []ingest.Language {
	if scope == ScopeAll {
		return o.Languages
	}
	return []ingest.Language{ingest.Language(scope)}
}
