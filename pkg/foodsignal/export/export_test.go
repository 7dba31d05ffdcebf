package export

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/cognicore/foodsignal/pkg/foodsignal/ingest"
	"github.com/cognicore/foodsignal/pkg/foodsignal/mention"
	"github.com/cognicore/foodsignal/pkg/foodsignal/riskfactor"
	"github.com/cognicore/foodsignal/pkg/foodsignal/score"
	"github.com/cognicore/foodsignal/pkg/foodsignal/store"
	"github.com/cognicore/foodsignal/pkg/foodsignal/taxonomy"
)

func sampleRun(id string) store.Run {
	return store.Run{
		Manifest: store.Manifest{
			RunID:         id,
			CreatedAt:     time.Now(),
			Policy:        "all-candidates",
			AggregateCode: "00",
			Normalization: "minmax",
			Window:        "all",
			Weights:       score.Weights{GeoDensity: 1},
			Languages:     []string{"en"},
			Articles:      map[string]int{"en": 1},
			SkippedHits:   map[string]int{"en": 0},
		},
		Mentions: []store.MentionRow{
			{Language: ingest.English, Record: mention.Record{ArticleID: "a1", RegionID: "D1", Raw: 1, RolledUp: 1}},
		},
		Risks: []store.RiskRow{
			{Language: ingest.English, Record: riskfactor.Record{
				ArticleID: "a1", FactorID: "famine", Cluster: "food-availability", Count: 2,
				Spans: []riskfactor.Span{{Start: 1, End: 2}, {Start: 5, End: 7}},
			}},
		},
		Scores: []score.RegionScore{{
			RegionID: "D1", Level: taxonomy.LevelDistrict, Window: "all", Scope: "all", Articles: 1,
			Raw:        score.Metrics{GeoDensity: 1, RiskFreq: 2, LangBreadth: 0.5, AdminDiversity: 1.0 / 3},
			Normalized: score.Metrics{GeoDensity: 1, RiskFreq: 1, LangBreadth: 1, AdminDiversity: 1},
			Composite:  1,
		}},
	}
}

func TestWriteMentionsTSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteMentions(&buf, sampleRun("r1").Mentions))
	assert.Equal(t, "language\tarticle_id\tregion_id\traw\trolled_up\nen\ta1\tD1\t1\t1\n", buf.String())
}

func TestWriteRiskMentionsTSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteRiskMentions(&buf, sampleRun("r1").Risks))
	assert.Contains(t, buf.String(), "en\ta1\tfamine\tfood-availability\t2\t1-2;5-7\n")
}

func TestWriteScoresTSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteScores(&buf, sampleRun("r1")))
	assert.Contains(t, buf.String(), "all\tall\tD1\tdistrict\tfalse\t1\t1.000000\t2.000000\t0.500000\t0.333333\t0.000000\t")
}

func TestWriteScoresMarksAggregate(t *testing.T) {
	run := sampleRun("r1")
	run.Scores = append(run.Scores, score.RegionScore{
		RegionID: "PS-00", Level: taxonomy.LevelProvince, Aggregate: true, Window: "all", Scope: "all", Articles: 1,
	})
	var buf bytes.Buffer
	require.NoError(t, WriteScores(&buf, run))
	assert.Contains(t, buf.String(), "window\tscope\tregion_id\tlevel\taggregate\tarticles\t")
	assert.Contains(t, buf.String(), "all\tall\tPS-00\tprovince\ttrue\t1\t")
}

func TestWriteDirIsByteIdentical(t *testing.T) {
	first := t.TempDir()
	second := t.TempDir()
	require.NoError(t, WriteDir(first, sampleRun(store.NewRunID(time.Now()))))
	require.NoError(t, WriteDir(second, sampleRun(store.NewRunID(time.Now().Add(time.Hour)))))

	for _, name := range []string{MentionsFile, RiskMentionsFile, ScoresFile, AssociationsFile} {
		a, err := os.ReadFile(filepath.Join(first, name))
		require.NoError(t, err)
		b, err := os.ReadFile(filepath.Join(second, name))
		require.NoError(t, err)
		assert.Equal(t, a, b, name)
	}

	manifest, err := os.ReadFile(filepath.Join(first, ManifestFile))
	require.NoError(t, err)
	assert.Contains(t, string(manifest), "policy: all-candidates")
	assert.Contains(t, string(manifest), "geo_density: 1")
}

func TestWriteXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.xlsx")
	require.NoError(t, WriteXLSX(path, sampleRun("r1")))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Mentions", "RiskMentions", "RegionScores", "Associations", "Manifest"}, f.GetSheetList())

	rows, err := f.GetRows("Mentions")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"en", "a1", "D1", "1", "1"}, rows[1])

	manifest, err := f.GetRows("Manifest")
	require.NoError(t, err)
	assert.Contains(t, manifest, []string{"run_id", "r1"})
	assert.Contains(t, manifest, []string{"articles.en", "1"})
}
