// Package taxonomy builds the multilingual administrative hierarchy used for
// geographic mention counting and resolves ambiguous surface forms.
package taxonomy

import (
	"fmt"
	"strings"

	"github.com/cognicore/foodsignal/pkg/foodsignal/ingest"
)

// Level is an administrative level. Deeper levels have larger values.
type Level int

const (
	LevelCountry Level = iota + 1
	LevelProvince
	LevelDistrict
)

// MaxLevels is the number of administrative levels in the hierarchy.
const MaxLevels = 3

func (l Level) String() string {
	switch l {
	case LevelCountry:
		return "country"
	case LevelProvince:
		return "province"
	case LevelDistrict:
		return "district"
	default:
		return fmt.Sprintf("level(%d)", int(l))
	}
}

// ParseLevel accepts level names as they appear in location tables.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "country", "adm0", "0":
		return LevelCountry, nil
	case "province", "governorate", "adm1", "1":
		return LevelProvince, nil
	case "district", "adm2", "2":
		return LevelDistrict, nil
	default:
		return 0, fmt.Errorf("unknown administrative level %q", s)
	}
}

// RegionID identifies a region across all languages.
type RegionID string

// Region is one administrative unit. Parent is a weak reference by id;
// countries have none. Regions are read-only once the taxonomy is built.
type Region struct {
	ID      RegionID
	Level   Level
	Parent  RegionID
	Country RegionID
	// Aggregate marks the synthetic "unspecified within this country" province.
	// It has no surface forms and rolls up to its country only.
	Aggregate bool
	Names     map[ingest.Language]string
	Aliases   map[ingest.Language][]string
}

// Name returns the canonical name in lang, or "" when the region has none there.
func (r *Region) Name(lang ingest.Language) string {
	return r.Names[lang]
}

// Row is one line of a per-language location table.
type Row struct {
	Line       int // source line or spreadsheet row, for warnings
	Code       string
	Name       string
	Level      string
	ParentCode string
	Aliases    []string
}

// Table is the location table of one language.
type Table struct {
	Language ingest.Language
	Source   string
	Rows     []Row
}

// Warning records a skipped row or a reference-data oddity that did not
// stop the build.
type Warning struct {
	Language ingest.Language
	Source   string
	Line     int
	Code     string
	Message  string
}

func (w Warning) String() string {
	loc := w.Source
	if w.Line > 0 {
		loc = fmt.Sprintf("%s:%d", w.Source, w.Line)
	}
	if w.Code != "" {
		return fmt.Sprintf("[%s] %s: %s: %s", w.Language, loc, w.Code, w.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", w.Language, loc, w.Message)
}
