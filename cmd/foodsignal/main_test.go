package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/cognicore/foodsignal/pkg/foodsignal/export"
)

func repoRoot(t *testing.T) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("runtime caller failed")
	}
	return filepath.Clean(filepath.Join(filepath.Dir(file), "..", ".."))
}

// sampleConfig writes a config pointing at testdata/sample with absolute
// paths and returns its path and the sqlite database path.
func sampleConfig(t *testing.T) (string, string) {
	t.Helper()
	data := filepath.Join(repoRoot(t), "testdata", "sample")
	dir := t.TempDir()
	db := filepath.Join(dir, "runs.db")
	body := fmt.Sprintf(`
languages: [en, ar]
taxonomy:
  policy: all-candidates
  aliases: %[1]s/aliases.yaml
  locations:
    - language: en
      path: %[1]s/locations_en.csv
    - language: ar
      path: %[1]s/locations_ar.csv
corpus:
  strip_html: true
  sources:
    - path: %[1]s/corpus_en.jsonl
    - language: ar
      path: %[1]s/corpus_ar.jsonl
risk:
  factors: %[1]s/risk_factors.yaml
  topics: %[1]s/topics.csv
scoring:
  window: month
  scopes: [all, en, ar]
  weights:
    geo_density: 0.3
    risk_freq: 0.3
    lang_breadth: 0.15
    admin_diversity: 0.15
    topic: 0.1
pipeline:
  workers: 2
  shard_size: 2
output:
  sqlite: %[2]s
log:
  level: error
`, data, db)
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path, db
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func readRunID(t *testing.T, dir string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, export.ManifestFile))
	require.NoError(t, err)
	var m struct {
		RunID string `yaml:"run_id"`
	}
	require.NoError(t, yaml.Unmarshal(data, &m))
	require.NotEmpty(t, m.RunID)
	return m.RunID
}

func readFile(t *testing.T, path string) []byte {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return data
}

func TestRunCommand(t *testing.T) {
	cfg, db := sampleConfig(t)
	first := filepath.Join(t.TempDir(), "first")
	second := filepath.Join(t.TempDir(), "second")
	workbook := filepath.Join(t.TempDir(), "run.xlsx")

	out, err := execute(t, "run", "--config", cfg, "--out", first, "--top", "3")
	require.NoError(t, err, out)
	assert.Contains(t, strings.ToLower(out), "top regions")
	assert.Contains(t, out, "PS-GZ")

	for _, name := range []string{export.MentionsFile, export.RiskMentionsFile, export.ScoresFile, export.AssociationsFile, export.ManifestFile} {
		assert.FileExists(t, filepath.Join(first, name))
	}
	assert.FileExists(t, db)

	// A second run over the same inputs re-derives identical tables.
	out, err = execute(t, "run", "--config", cfg, "--out", second, "--workers", "1")
	require.NoError(t, err, out)
	for _, name := range []string{export.MentionsFile, export.RiskMentionsFile, export.ScoresFile, export.AssociationsFile} {
		assert.Equal(t, readFile(t, filepath.Join(first, name)), readFile(t, filepath.Join(second, name)), name)
	}

	firstID, secondID := readRunID(t, first), readRunID(t, second)
	assert.NotEqual(t, firstID, secondID)

	out, err = execute(t, "runs", "list", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, firstID)
	assert.Contains(t, out, secondID)

	exported := filepath.Join(t.TempDir(), "exported")
	out, err = execute(t, "runs", "export", firstID, "--db", db, "--dir", exported, "--xlsx", workbook)
	require.NoError(t, err, out)
	for _, name := range []string{export.MentionsFile, export.RiskMentionsFile, export.AssociationsFile} {
		assert.Equal(t, readFile(t, filepath.Join(first, name)), readFile(t, filepath.Join(exported, name)), name)
	}
	assert.FileExists(t, workbook)
}

func TestTaxonomyCheck(t *testing.T) {
	cfg, _ := sampleConfig(t)

	out, err := execute(t, "taxonomy", "check", "--config", cfg, "--ambiguous")
	require.NoError(t, err, out)
	lower := strings.ToLower(out)
	assert.Contains(t, lower, "skipped rows")
	assert.Contains(t, out, "PS-WB-09")
	assert.Contains(t, lower, "ambiguous surface forms")
	assert.Contains(t, lower, "risk factors")
	assert.Contains(t, lower, "severe food shortage")
	assert.Contains(t, out, "food-availability, humanitarian-access, market-access, nutrition")
}

func TestConfigShow(t *testing.T) {
	cfg, _ := sampleConfig(t)

	out, err := execute(t, "config", "show", "--config", cfg, "--window", "week")
	require.NoError(t, err, out)
	assert.Contains(t, out, "window: week")
	assert.Contains(t, out, "geo_density: 0.3")
}

func TestConfigValidateReportsWeights(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("languages: [en]\n"), 0o644))

	_, err := execute(t, "config", "validate", "--config", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scoring.weights")
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "foodsignal dev\n", out)
}
