package lexicon

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cognicore/foodsignal/pkg/foodsignal/ingest"
)

// Lexicon stores extra surface forms for administrative regions, per language:
// transliterations, historical names, and common short forms that the
// location tables do not carry.
//
// Example:
//
//	"PS-GZ" / en -> ["gaza strip", "the strip"]
//	"PS-GZ" / ar -> ["قطاع غزة"]
type Lexicon struct {
	// region id -> language -> aliases (trimmed, deduplicated, insertion order)
	aliases map[string]map[ingest.Language][]string
}

// New creates an empty lexicon.
func New() *Lexicon {
	return &Lexicon{aliases: make(map[string]map[ingest.Language][]string)}
}

// LoadFromYAML loads alias groups from a YAML file.
//
// Expected format:
//
//	aliases:
//	  - region: PS-GZ
//	    language: en
//	    forms: [gaza strip, the strip]
//	  - region: PS-GZ
//	    language: ar
//	    forms: [قطاع غزة]
func LoadFromYAML(path string) (*Lexicon, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes alias groups from YAML bytes.
func Parse(data []byte) (*Lexicon, error) {
	var doc struct {
		Aliases []struct {
			Region   string   `yaml:"region"`
			Language string   `yaml:"language"`
			Forms    []string `yaml:"forms"`
		} `yaml:"aliases"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode aliases: %w", err)
	}

	lex := New()
	for i, entry := range doc.Aliases {
		lang, err := ingest.ParseLanguage(entry.Language)
		if err != nil {
			return nil, fmt.Errorf("alias group %d (region %q): %w", i, entry.Region, err)
		}
		if strings.TrimSpace(entry.Region) == "" {
			return nil, fmt.Errorf("alias group %d: region is required", i)
		}
		lex.Add(entry.Region, lang, entry.Forms...)
	}
	return lex, nil
}

// Add registers aliases for a region in one language. Blank and repeated forms are ignored.
func (l *Lexicon) Add(regionID string, lang ingest.Language, forms ...string) {
	regionID = strings.TrimSpace(regionID)
	byLang := l.aliases[regionID]
	if byLang == nil {
		byLang = make(map[ingest.Language][]string)
		l.aliases[regionID] = byLang
	}

	existing := byLang[lang]
	seen := make(map[string]bool, len(existing)+len(forms))
	for _, f := range existing {
		seen[f] = true
	}
	for _, f := range forms {
		f = strings.TrimSpace(f)
		if f == "" || seen[f] {
			continue
		}
		seen[f] = true
		existing = append(existing, f)
	}
	byLang[lang] = existing
}

// Aliases returns the aliases for a region in one language.
func (l *Lexicon) Aliases(regionID string, lang ingest.Language) []string {
	if l == nil {
		return nil
	}
	return l.aliases[regionID][lang]
}

// Languages returns the languages in which a region has aliases, sorted.
func (l *Lexicon) Languages(regionID string) []ingest.Language {
	if l == nil {
		return nil
	}
	out := make([]ingest.Language, 0, len(l.aliases[regionID]))
	for lang, forms := range l.aliases[regionID] {
		if len(forms) > 0 {
			out = append(out, lang)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Regions returns every region id with at least one alias, sorted.
func (l *Lexicon) Regions() []string {
	if l == nil {
		return nil
	}
	ids := make([]string, 0, len(l.aliases))
	for id := range l.aliases {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Stats returns statistics about the lexicon contents.
func (l *Lexicon) Stats() Stats {
	var s Stats
	if l == nil {
		return s
	}
	s.Regions = len(l.aliases)
	for _, byLang := range l.aliases {
		for _, forms := range byLang {
			s.Forms += len(forms)
		}
	}
	return s
}

// Stats holds statistics about lexicon contents.
type Stats struct {
	Regions int // regions with at least one alias
	Forms   int // total alias forms across languages
}
