// Package export writes run tables as deterministic TSV files and as an
// XLSX workbook.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cognicore/foodsignal/pkg/foodsignal/riskfactor"
	"github.com/cognicore/foodsignal/pkg/foodsignal/store"
)

// Output file names inside the run directory.
const (
	MentionsFile     = "mentions.tsv"
	RiskMentionsFile = "risk_mentions.tsv"
	ScoresFile       = "region_scores.tsv"
	AssociationsFile = "associations.tsv"
	ManifestFile     = "manifest.yaml"
)

// table is a header plus string rows, shared by the TSV and XLSX writers.
type table struct {
	name   string
	header []string
	rows   [][]string
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}

func formatSpans(spans []riskfactor.Span) string {
	parts := make([]string, len(spans))
	for i, s := range spans {
		parts[i] = fmt.Sprintf("%d-%d", s.Start, s.End)
	}
	return strings.Join(parts, ";")
}

func mentionTable(rows []store.MentionRow) table {
	t := table{name: "Mentions", header: []string{"language", "article_id", "region_id", "raw", "rolled_up"}}
	for _, r := range rows {
		t.rows = append(t.rows, []string{
			string(r.Language), r.ArticleID, string(r.RegionID), strconv.Itoa(r.Raw), strconv.Itoa(r.RolledUp),
		})
	}
	return t
}

func riskTable(rows []store.RiskRow) table {
	t := table{name: "RiskMentions", header: []string{"language", "article_id", "factor_id", "cluster", "count", "spans"}}
	for _, r := range rows {
		t.rows = append(t.rows, []string{
			string(r.Language), r.ArticleID, r.FactorID, r.Cluster, strconv.Itoa(r.Count), formatSpans(r.Spans),
		})
	}
	return t
}

func scoreTable(run store.Run) table {
	t := table{name: "RegionScores", header: []string{
		"window", "scope", "region_id", "level", "aggregate", "articles",
		"raw_geo_density", "raw_risk_freq", "raw_lang_breadth", "raw_admin_diversity", "raw_topic",
		"geo_density", "risk_freq", "lang_breadth", "admin_diversity", "topic", "composite",
	}}
	for _, s := range run.Scores {
		t.rows = append(t.rows, []string{
			s.Window, s.Scope, string(s.RegionID), s.Level.String(), strconv.FormatBool(s.Aggregate), strconv.Itoa(s.Articles),
			formatFloat(s.Raw.GeoDensity), formatFloat(s.Raw.RiskFreq), formatFloat(s.Raw.LangBreadth),
			formatFloat(s.Raw.AdminDiversity), formatFloat(s.Raw.Topic),
			formatFloat(s.Normalized.GeoDensity), formatFloat(s.Normalized.RiskFreq), formatFloat(s.Normalized.LangBreadth),
			formatFloat(s.Normalized.AdminDiversity), formatFloat(s.Normalized.Topic),
			formatFloat(s.Composite),
		})
	}
	return t
}

func associationTable(run store.Run) table {
	t := table{name: "Associations", header: []string{"window", "region_id", "cluster", "articles", "npmi"}}
	for _, a := range run.Associations {
		t.rows = append(t.rows, []string{
			a.Window, a.Region, a.Cluster, strconv.FormatInt(a.Articles, 10), formatFloat(a.NPMI),
		})
	}
	return t
}

func tables(run store.Run) []table {
	return []table{
		mentionTable(run.Mentions),
		riskTable(run.Risks),
		scoreTable(run),
		associationTable(run),
	}
}

// writeTSV writes t with a header line. Rows are written in the given order.
func writeTSV(w io.Writer, t table) error {
	cw := csv.NewWriter(w)
	cw.Comma = '\t'
	if err := cw.Write(t.header); err != nil {
		return err
	}
	if err := cw.WriteAll(t.rows); err != nil {
		return fmt.Errorf("write %s: %w", t.name, err)
	}
	return nil
}

// WriteMentions writes the mention table as TSV.
func WriteMentions(w io.Writer, rows []store.MentionRow) error {
	return writeTSV(w, mentionTable(rows))
}

// WriteRiskMentions writes the risk mention table as TSV.
func WriteRiskMentions(w io.Writer, rows []store.RiskRow) error {
	return writeTSV(w, riskTable(rows))
}

// WriteScores writes the region score table as TSV.
func WriteScores(w io.Writer, run store.Run) error {
	return writeTSV(w, scoreTable(run))
}

// manifestDoc is the YAML rendering of a run manifest.
type manifestDoc struct {
	RunID         string             `yaml:"run_id"`
	CreatedAt     string             `yaml:"created_at"`
	Policy        string             `yaml:"policy"`
	AggregateCode string             `yaml:"aggregate_code"`
	Normalization string             `yaml:"normalization"`
	Window        string             `yaml:"window"`
	Weights       map[string]float64 `yaml:"weights"`
	TopicApplied  bool               `yaml:"topic_applied"`
	Languages     []string           `yaml:"languages"`
	Articles      map[string]int     `yaml:"articles"`
	SkippedHits   map[string]int     `yaml:"skipped_hits"`
}

func newManifestDoc(m store.Manifest) manifestDoc {
	return manifestDoc{
		RunID:         m.RunID,
		CreatedAt:     m.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
		Policy:        m.Policy,
		AggregateCode: m.AggregateCode,
		Normalization: m.Normalization,
		Window:        m.Window,
		Weights: map[string]float64{
			"geo_density":     m.Weights.GeoDensity,
			"risk_freq":       m.Weights.RiskFreq,
			"lang_breadth":    m.Weights.LangBreadth,
			"admin_diversity": m.Weights.AdminDiversity,
			"topic":           m.Weights.Topic,
		},
		TopicApplied: m.TopicApplied,
		Languages:    m.Languages,
		Articles:     m.Articles,
		SkippedHits:  m.SkippedHits,
	}
}

// WriteDir writes every table of run as TSV plus the YAML manifest into dir.
// Tables depend only on the inputs and configuration; the run id and time
// live in the manifest alone.
func WriteDir(dir string, run store.Run) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	names := []string{MentionsFile, RiskMentionsFile, ScoresFile, AssociationsFile}
	for i, t := range tables(run) {
		if err := writeFile(filepath.Join(dir, names[i]), func(w io.Writer) error { return writeTSV(w, t) }); err != nil {
			return err
		}
	}
	manifest, err := yaml.Marshal(newManifestDoc(run.Manifest))
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	return os.WriteFile(filepath.Join(dir, ManifestFile), manifest, 0o644)
}

func writeFile(path string, write func(io.Writer) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	if err := write(f); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}
