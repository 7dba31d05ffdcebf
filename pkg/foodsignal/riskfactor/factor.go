// Package riskfactor detects risk-factor keyword phrases in news articles.
package riskfactor

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cognicore/foodsignal/pkg/foodsignal/ingest"
	"github.com/cognicore/foodsignal/pkg/foodsignal/internalerr"
)

// Factor is one risk factor of the reference set. Cluster is carried through
// every output unchanged.
type Factor struct {
	ID      string                       `yaml:"id"`
	Cluster string                       `yaml:"cluster"`
	Phrases map[ingest.Language][]string `yaml:"phrases"`
}

type factorFile struct {
	Factors []Factor `yaml:"factors"`
}

// LoadFromYAML reads a risk-factor reference set:
//
//	factors:
//	  - id: famine
//	    cluster: food-availability
//	    phrases:
//	      en: [famine, starvation]
//	      ar: [مجاعة]
func LoadFromYAML(path string) ([]Factor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read risk factors: %w", err)
	}
	factors, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return factors, nil
}

// Parse decodes a risk-factor YAML document. Factors are returned sorted by id;
// duplicated ids are rejected.
func Parse(data []byte) ([]Factor, error) {
	var file factorFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse risk factors: %w", err)
	}
	seen := make(map[string]bool, len(file.Factors))
	out := make([]Factor, 0, len(file.Factors))
	for i, f := range file.Factors {
		f.ID = strings.TrimSpace(f.ID)
		f.Cluster = strings.TrimSpace(f.Cluster)
		if f.ID == "" {
			return nil, fmt.Errorf("%w: factor #%d has no id", internalerr.ErrInvalidInput, i+1)
		}
		if seen[f.ID] {
			return nil, fmt.Errorf("%w: risk factor %q", internalerr.ErrDuplicate, f.ID)
		}
		seen[f.ID] = true
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Clusters returns the distinct cluster labels of factors, sorted.
func Clusters(factors []Factor) []string {
	seen := make(map[string]bool)
	var out []string
	for _, f := range factors {
		if f.Cluster != "" && !seen[f.Cluster] {
			seen[f.Cluster] = true
			out = append(out, f.Cluster)
		}
	}
	sort.Strings(out)
	return out
}
