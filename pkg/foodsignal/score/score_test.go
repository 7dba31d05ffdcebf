package score

import (
	"errors"
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/cognicore/foodsignal/pkg/foodsignal/ingest"
	"github.com/cognicore/foodsignal/pkg/foodsignal/internalerr"
	"github.com/cognicore/foodsignal/pkg/foodsignal/mention"
	"github.com/cognicore/foodsignal/pkg/foodsignal/riskfactor"
	"github.com/cognicore/foodsignal/pkg/foodsignal/taxonomy"
)

var testWeights = Weights{GeoDensity: 0.4, RiskFreq: 0.3, LangBreadth: 0.2, AdminDiversity: 0.1}

func testOptions() Options {
	return Options{
		Languages:     []ingest.Language{ingest.English, ingest.Arabic},
		Weights:       testWeights,
		Normalization: NormalizeMinMax,
		Granularity:   WindowAll,
		Scopes:        []string{ScopeAll},
	}
}

func testTaxonomy(t *testing.T) *taxonomy.Taxonomy {
	t.Helper()
	tables := []taxonomy.Table{
		{Language: ingest.English, Rows: []taxonomy.Row{
			{Line: 2, Code: "C1", Name: "C1", Level: "country"},
			{Line: 3, Code: "P1", Name: "P1", Level: "province", ParentCode: "C1"},
			{Line: 4, Code: "D1", Name: "D1", Level: "district", ParentCode: "P1"},
			{Line: 5, Code: "P2", Name: "P2", Level: "province", ParentCode: "C1"},
		}},
		{Language: ingest.Arabic, Rows: []taxonomy.Row{
			{Line: 2, Code: "C1", Name: "بلد", Level: "country"},
			{Line: 3, Code: "P1", Name: "محافظة", Level: "province", ParentCode: "C1"},
			{Line: 4, Code: "D1", Name: "مديرية", Level: "district", ParentCode: "P1"},
		}},
	}
	tax, err := taxonomy.Build(tables, taxonomy.Options{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return tax
}

var testFactors = []riskfactor.Factor{
	{ID: "famine", Cluster: "food-availability", Phrases: map[ingest.Language][]string{
		ingest.English: {"famine"},
		ingest.Arabic:  {"مجاعة"},
	}},
}

// buildInput scans articles grouped by language the way the pipeline does.
func buildInput(t *testing.T, tax *taxonomy.Taxonomy, articles ...ingest.Article) Input {
	t.Helper()
	byLang := make(map[ingest.Language][]ingest.Article)
	var langs []ingest.Language
	for _, a := range articles {
		if _, ok := byLang[a.Language]; !ok {
			langs = append(langs, a.Language)
		}
		byLang[a.Language] = append(byLang[a.Language], a)
	}
	in := Input{Taxonomy: tax}
	for _, lang := range langs {
		counter, err := mention.NewCounter(tax, lang)
		if err != nil {
			t.Fatal(err)
		}
		mres, err := counter.Count(byLang[lang])
		if err != nil {
			t.Fatal(err)
		}
		matcher, err := riskfactor.Compile(lang, testFactors)
		if err != nil {
			t.Fatal(err)
		}
		rres, err := matcher.Match(byLang[lang])
		if err != nil {
			t.Fatal(err)
		}
		in.Mentions = append(in.Mentions, mres)
		in.Risks = append(in.Risks, rres)
	}
	return in
}

func en(id, text string) ingest.Article {
	return ingest.Article{ID: id, Language: ingest.English, Text: text}
}

func ar(id, text string) ingest.Article {
	return ingest.Article{ID: id, Language: ingest.Arabic, Text: text}
}

func find(t *testing.T, scores []RegionScore, window, scope string, region taxonomy.RegionID) RegionScore {
	t.Helper()
	for _, s := range scores {
		if s.Window == window && s.Scope == scope && s.RegionID == region {
			return s
		}
	}
	t.Fatalf("no score for %s/%s/%s in %+v", window, scope, region, scores)
	return RegionScore{}
}

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestEndToEndSingleArticle(t *testing.T) {
	tax := testTaxonomy(t)
	report, err := Score(buildInput(t, tax, en("a1", "Reports from D1 warn of famine.")), testOptions())
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if len(report.Scores) != 3 {
		t.Fatalf("scores = %+v", report.Scores)
	}
	for _, id := range []taxonomy.RegionID{"C1", "P1", "D1"} {
		s := find(t, report.Scores, "all", ScopeAll, id)
		if !approx(s.Raw.GeoDensity, 1) {
			t.Errorf("%s geo_density = %v, want 1", id, s.Raw.GeoDensity)
		}
		if s.Raw.RiskFreq <= 0 {
			t.Errorf("%s risk_freq = %v, want > 0", id, s.Raw.RiskFreq)
		}
		if !approx(s.Raw.LangBreadth, 0.5) {
			t.Errorf("%s lang_breadth = %v, want 1/2", id, s.Raw.LangBreadth)
		}
		if !approx(s.Raw.AdminDiversity, 1.0/3) {
			t.Errorf("%s admin_diversity = %v, want 1/3", id, s.Raw.AdminDiversity)
		}
		if s.Articles != 1 {
			t.Errorf("%s articles = %d", id, s.Articles)
		}
	}
	if find(t, report.Scores, "all", ScopeAll, "D1").Level != taxonomy.LevelDistrict {
		t.Errorf("D1 level not carried")
	}
	if report.Policy != taxonomy.PolicyAllCandidates || report.TopicApplied {
		t.Errorf("report header = %+v", report)
	}
}

func TestScoresAreBounded(t *testing.T) {
	tax := testTaxonomy(t)
	in := buildInput(t, tax,
		en("a1", "D1 famine famine"),
		en("a2", "P1 and P2"),
		en("a3", "C1 famine"),
		en("a4", "P2"),
		ar("b1", "مجاعة في مديرية"),
		ar("b2", "بلد"),
	)
	for _, scheme := range []Normalization{NormalizeMinMax, NormalizeMax} {
		opts := testOptions()
		opts.Normalization = scheme
		opts.Scopes = []string{ScopeAll, "en", "ar"}
		report, err := Score(in, opts)
		if err != nil {
			t.Fatalf("%s: %v", scheme, err)
		}
		for _, s := range report.Scores {
			n := s.Normalized
			for _, v := range []float64{n.GeoDensity, n.RiskFreq, n.LangBreadth, n.AdminDiversity, n.Topic, s.Composite} {
				if v < 0 || v > 1 || math.IsNaN(v) {
					t.Errorf("%s: %+v out of [0,1]", scheme, s)
				}
			}
		}
	}
}

func TestScopesAreIndependent(t *testing.T) {
	tax := testTaxonomy(t)
	opts := testOptions()
	opts.Scopes = []string{ScopeAll, "en", "ar"}
	report, err := Score(buildInput(t, tax,
		en("a1", "D1 famine"),
		en("a2", "P1"),
		ar("b1", "مديرية"),
	), opts)
	if err != nil {
		t.Fatalf("Score: %v", err)
	}

	if got := find(t, report.Scores, "all", "en", "D1").Raw.GeoDensity; !approx(got, 0.5) {
		t.Errorf("en D1 geo_density = %v, want 0.5", got)
	}
	if got := find(t, report.Scores, "all", "ar", "D1").Raw.GeoDensity; !approx(got, 1) {
		t.Errorf("ar D1 geo_density = %v, want 1", got)
	}
	if got := find(t, report.Scores, "all", ScopeAll, "D1").Raw.GeoDensity; !approx(got, 0.75) {
		t.Errorf("pooled D1 geo_density = %v, want 0.75", got)
	}
	if got := find(t, report.Scores, "all", "en", "C1").Raw.AdminDiversity; !approx(got, 2.0/3) {
		t.Errorf("en C1 admin_diversity = %v, want 2/3", got)
	}
	if got := find(t, report.Scores, "all", "ar", "C1").Raw.AdminDiversity; !approx(got, 1.0/3) {
		t.Errorf("ar C1 admin_diversity = %v, want 1/3", got)
	}
	if got := find(t, report.Scores, "all", "en", "P1").Raw.RiskFreq; !approx(got, 0.5) {
		t.Errorf("en P1 risk_freq = %v, want 0.5", got)
	}
	if got := find(t, report.Scores, "all", ScopeAll, "D1").Raw.LangBreadth; !approx(got, 1) {
		t.Errorf("D1 lang_breadth = %v, want 1", got)
	}
}

func TestEmptyCohortIsIsolated(t *testing.T) {
	tax := testTaxonomy(t)
	a1 := en("a1", "D1 famine")
	a1.PublishedAt = time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	a2 := en("a2", "nothing geographic here")
	a2.PublishedAt = time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC)

	opts := testOptions()
	opts.Granularity = WindowMonth
	report, err := Score(buildInput(t, tax, a1, a2), opts)

	var ece *internalerr.EmptyCohortError
	if !errors.As(err, &ece) {
		t.Fatalf("err = %v, want EmptyCohortError", err)
	}
	if ece.Window != "2024-02" || ece.Scope != ScopeAll {
		t.Errorf("EmptyCohortError = %+v", ece)
	}
	if report == nil || len(report.Scores) != 3 {
		t.Fatalf("report = %+v", report)
	}
	for _, s := range report.Scores {
		if s.Window != "2024-01" {
			t.Errorf("unexpected window %q", s.Window)
		}
	}
}

func TestScoreIsDeterministic(t *testing.T) {
	tax := testTaxonomy(t)
	in := buildInput(t, tax,
		en("a1", "D1 famine"),
		en("a2", "P2 and P1"),
		ar("b1", "مجاعة في محافظة"),
	)
	opts := testOptions()
	opts.Scopes = []string{ScopeAll, "en"}
	first, err := Score(in, opts)
	if err != nil {
		t.Fatal(err)
	}
	second, err := Score(in, opts)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("reports differ")
	}
}

func TestScoreAppliesCanonicalNames(t *testing.T) {
	tax := testTaxonomy(t)
	march := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	a1 := en("a1", "D1 famine")
	a1.PublishedAt = march
	a2 := en("a2", "P2 P2 P2 P2")
	a2.PublishedAt = march
	in := buildInput(t, tax, a1, a2)

	opts := testOptions()
	opts.Granularity = "Month"
	opts.Normalization = "MAX"
	opts.Scopes = []string{"ALL"}
	report, err := Score(in, opts)
	if err != nil {
		t.Fatal(err)
	}
	if report.Granularity != WindowMonth || report.Normalization != NormalizeMax {
		t.Errorf("report names = %q/%q", report.Granularity, report.Normalization)
	}
	// Under max normalization the smaller geo_density stays above zero;
	// minmax would pin it to 0.
	d1 := find(t, report.Scores, "2024-03", ScopeAll, "D1")
	if d1.Normalized.GeoDensity <= 0 || d1.Normalized.GeoDensity >= 1 {
		t.Errorf("D1 normalized geo_density = %v, want in (0,1)", d1.Normalized.GeoDensity)
	}
}

func TestAggregateRegionIsMarked(t *testing.T) {
	tax, err := taxonomy.Build([]taxonomy.Table{{Language: ingest.English, Rows: []taxonomy.Row{
		{Line: 2, Code: "C1", Name: "C1", Level: "country"},
		{Line: 3, Code: "C1-00", Name: "Other", Level: "province", ParentCode: "C1"},
		{Line: 4, Code: "C1-00-01", Name: "Camp", Level: "district", ParentCode: "C1-00"},
	}}}, taxonomy.Options{})
	if err != nil {
		t.Fatal(err)
	}
	opts := testOptions()
	opts.Languages = []ingest.Language{ingest.English}
	report, err := Score(buildInput(t, tax, en("a1", "Camp")), opts)
	if err != nil {
		t.Fatal(err)
	}
	agg := find(t, report.Scores, "all", ScopeAll, "C1-00")
	if !agg.Aggregate || agg.Level != taxonomy.LevelProvince {
		t.Errorf("C1-00 = %+v, want aggregate province", agg)
	}
	if find(t, report.Scores, "all", ScopeAll, "C1-00-01").Aggregate {
		t.Error("district under the aggregate is not itself an aggregate")
	}
}

func TestTopicMetric(t *testing.T) {
	tax := testTaxonomy(t)
	in := buildInput(t, tax, en("a1", "D1"), en("a2", "P2"))
	in.Topics = Topics{{ArticleID: "a1"}: 0.8, {ArticleID: "a2"}: 0.2}

	opts := testOptions()
	opts.Weights = Weights{GeoDensity: 0.5, Topic: 0.5}
	report, err := Score(in, opts)
	if err != nil {
		t.Fatal(err)
	}
	if !report.TopicApplied || report.Weights != opts.Weights {
		t.Errorf("report weights = %+v applied=%v", report.Weights, report.TopicApplied)
	}
	if got := find(t, report.Scores, "all", ScopeAll, "D1").Raw.Topic; !approx(got, 0.8) {
		t.Errorf("D1 topic = %v", got)
	}
	if got := find(t, report.Scores, "all", ScopeAll, "C1").Raw.Topic; !approx(got, 0.5) {
		t.Errorf("C1 topic = %v", got)
	}

	in.Topics = nil
	report, err = Score(in, opts)
	if err != nil {
		t.Fatal(err)
	}
	if report.TopicApplied || !approx(report.Weights.GeoDensity, 1) || report.Weights.Topic != 0 {
		t.Errorf("weights without topics = %+v", report.Weights)
	}
}

func TestTopicsAreKeyedByLanguage(t *testing.T) {
	tax := testTaxonomy(t)
	in := buildInput(t, tax, en("x1", "D1"), ar("x1", "مديرية"))
	in.Topics = Topics{
		{Language: ingest.English, ArticleID: "x1"}: 0.9,
		{Language: ingest.Arabic, ArticleID: "x1"}:  0.1,
	}

	opts := testOptions()
	opts.Scopes = []string{"en", "ar"}
	opts.Weights = Weights{GeoDensity: 0.5, Topic: 0.5}
	report, err := Score(in, opts)
	if err != nil {
		t.Fatal(err)
	}
	if got := find(t, report.Scores, "all", "en", "D1").Raw.Topic; !approx(got, 0.9) {
		t.Errorf("en D1 topic = %v, want 0.9", got)
	}
	if got := find(t, report.Scores, "all", "ar", "D1").Raw.Topic; !approx(got, 0.1) {
		t.Errorf("ar D1 topic = %v, want 0.1", got)
	}

	shared := Topics{{ArticleID: "x1"}: 0.5, {Language: ingest.Arabic, ArticleID: "x1"}: 0.2}
	if p, ok := shared.Lookup(ingest.English, "x1"); !ok || p != 0.5 {
		t.Errorf("language-independent lookup = %v, %v", p, ok)
	}
	if p, _ := shared.Lookup(ingest.Arabic, "x1"); p != 0.2 {
		t.Errorf("language entry should win, got %v", p)
	}
}

func TestAssociations(t *testing.T) {
	tax := testTaxonomy(t)
	report, err := Score(buildInput(t, tax,
		en("a1", "D1 famine"),
		en("a2", "P2"),
	), testOptions())
	if err != nil {
		t.Fatal(err)
	}
	var regions []string
	for _, a := range report.Associations {
		if a.Window != "all" || a.Cluster != "food-availability" || a.Articles != 1 {
			t.Errorf("association = %+v", a)
		}
		regions = append(regions, a.Region)
	}
	if !reflect.DeepEqual(regions, []string{"C1", "D1", "P1"}) {
		t.Errorf("regions = %v", regions)
	}
}

func TestInvalidOptions(t *testing.T) {
	tax := testTaxonomy(t)
	in := buildInput(t, tax, en("a1", "D1"))
	tests := map[string]func(*Options){
		"weights sum":   func(o *Options) { o.Weights.GeoDensity = 0.5 },
		"negative":      func(o *Options) { o.Weights = Weights{GeoDensity: 1.1, RiskFreq: -0.1} },
		"zero weights":  func(o *Options) { o.Weights = Weights{} },
		"normalization": func(o *Options) { o.Normalization = "zscore" },
		"granularity":   func(o *Options) { o.Granularity = "quarter" },
		"scope":         func(o *Options) { o.Scopes = []string{"fr"} },
		"no languages":  func(o *Options) { o.Languages = nil },
		"topic only":    func(o *Options) { o.Weights = Weights{Topic: 1} },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			opts := testOptions()
			mutate(&opts)
			report, err := Score(in, opts)
			if !errors.Is(err, internalerr.ErrInvalidConfig) {
				t.Errorf("err = %v, want ErrInvalidConfig", err)
			}
			if report != nil {
				t.Errorf("report should be nil")
			}
		})
	}
}
