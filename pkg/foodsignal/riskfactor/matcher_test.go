package riskfactor

import (
	"errors"
	"reflect"
	"testing"

	"github.com/cognicore/foodsignal/pkg/foodsignal/ingest"
	"github.com/cognicore/foodsignal/pkg/foodsignal/internalerr"
)

func testFactors() []Factor {
	return []Factor{
		{ID: "famine", Cluster: "food-availability", Phrases: map[ingest.Language][]string{
			ingest.English: {"famine", "starvation"},
			ingest.Arabic:  {"مجاعة"},
		}},
		{ID: "shortage", Cluster: "food-availability", Phrases: map[ingest.Language][]string{
			ingest.English: {"food shortage", "severe food shortage"},
		}},
		{ID: "prices", Cluster: "market", Phrases: map[ingest.Language][]string{
			ingest.English: {"food prices", "prices"},
		}},
		{ID: "inflation", Cluster: "market", Phrases: map[ingest.Language][]string{
			ingest.English: {"prices soared"},
		}},
	}
}

func match(t *testing.T, factors []Factor, articles ...ingest.Article) *Result {
	t.Helper()
	m, err := Compile(ingest.English, factors)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	res, err := m.Match(articles)
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	return res
}

func en(id, text string) ingest.Article {
	return ingest.Article{ID: id, Language: ingest.English, Text: text}
}

func TestLongestPhraseCountsOnce(t *testing.T) {
	res := match(t, testFactors(), en("a1", "A severe food shortage hit the north."))
	recs := res.Records()
	if len(recs) != 1 {
		t.Fatalf("records = %+v", recs)
	}
	rec := recs[0]
	if rec.FactorID != "shortage" || rec.Count != 1 {
		t.Errorf("record = %+v", rec)
	}
	if !reflect.DeepEqual(rec.Spans, []Span{{Start: 1, End: 4}}) {
		t.Errorf("spans = %v", rec.Spans)
	}
}

func TestSameStartLongestWins(t *testing.T) {
	res := match(t, testFactors(), en("a1", "food prices"))
	recs := res.Records()
	if len(recs) != 1 || recs[0].Count != 1 {
		t.Fatalf("records = %+v", recs)
	}
	if !reflect.DeepEqual(recs[0].Spans, []Span{{Start: 0, End: 2}}) {
		t.Errorf("spans = %v", recs[0].Spans)
	}
}

func TestDifferentFactorsMayOverlap(t *testing.T) {
	res := match(t, testFactors(), en("a1", "Food prices soared again"))
	got := make(map[string]int)
	for _, r := range res.Records() {
		got[r.FactorID] = r.Count
	}
	want := map[string]int{"prices": 1, "inflation": 1}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("counts = %v, want %v", got, want)
	}
}

func TestRepeatedMentions(t *testing.T) {
	res := match(t, testFactors(), en("a1", "Famine warnings. Starvation spreads; famine declared."))
	recs := res.Records()
	if len(recs) != 1 || recs[0].Count != 3 {
		t.Fatalf("records = %+v", recs)
	}
	for i := 1; i < len(recs[0].Spans); i++ {
		if recs[0].Spans[i].Start < recs[0].Spans[i-1].End {
			t.Errorf("overlapping spans %v", recs[0].Spans)
		}
	}
}

func TestUnknownClusterIsIsolated(t *testing.T) {
	factors := append(testFactors(), Factor{ID: "locusts", Phrases: map[ingest.Language][]string{
		ingest.English: {"locusts"},
	}})
	m, err := Compile(ingest.English, factors)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	var uce *internalerr.UnknownClusterError
	if !errors.As(m.Rejected(), &uce) || uce.FactorID != "locusts" {
		t.Fatalf("Rejected = %v", m.Rejected())
	}
	if !errors.Is(m.Rejected(), internalerr.ErrUnknownCluster) {
		t.Errorf("Rejected does not match sentinel")
	}
	res, err := m.Match([]ingest.Article{en("a1", "locusts and famine")})
	if err != nil {
		t.Fatal(err)
	}
	recs := res.Records()
	if len(recs) != 1 || recs[0].FactorID != "famine" {
		t.Errorf("records = %+v", recs)
	}
}

func TestDuplicateFactor(t *testing.T) {
	factors := append(testFactors(), Factor{ID: "famine", Cluster: "x"})
	if _, err := Compile(ingest.English, factors); !errors.Is(err, internalerr.ErrDuplicate) {
		t.Fatalf("err = %v", err)
	}
}

func TestNestedPhrasesAudited(t *testing.T) {
	m, err := Compile(ingest.English, testFactors())
	if err != nil {
		t.Fatal(err)
	}
	want := []Nesting{
		{FactorID: "prices", Inner: "prices", Outer: "food prices"},
		{FactorID: "shortage", Inner: "food shortage", Outer: "severe food shortage"},
	}
	if !reflect.DeepEqual(m.Nested(), want) {
		t.Errorf("Nested = %+v", m.Nested())
	}
}

func TestArabicMatcher(t *testing.T) {
	m, err := Compile(ingest.Arabic, testFactors())
	if err != nil {
		t.Fatal(err)
	}
	if m.Phrases() != 1 {
		t.Errorf("Phrases = %d, want 1", m.Phrases())
	}
	res, err := m.Match([]ingest.Article{{ID: "ar1", Language: ingest.Arabic, Text: "تحذيرات من مجاعة في غزة"}})
	if err != nil {
		t.Fatal(err)
	}
	recs := res.Records()
	if len(recs) != 1 || recs[0].FactorID != "famine" || recs[0].Cluster != "food-availability" {
		t.Errorf("records = %+v", recs)
	}
}

func TestEnrichmentAndClusters(t *testing.T) {
	res := match(t, testFactors(),
		en("a1", "famine and a food shortage"),
		en("a2", "famine"),
		en("a3", "prices"),
		en("a4", "no risk here"),
	)
	if res.ArticleCount() != 4 {
		t.Errorf("ArticleCount = %d", res.ArticleCount())
	}

	factors := res.Factors()
	if len(factors) != 3 {
		t.Fatalf("factors = %+v", factors)
	}
	famine := factors[0]
	if famine.ID != "famine" || famine.Total != 2 {
		t.Errorf("famine = %+v", famine)
	}
	wantArticles := []ArticleCount{{ArticleID: "a1", Count: 1}, {ArticleID: "a2", Count: 1}}
	if !reflect.DeepEqual(famine.Articles, wantArticles) {
		t.Errorf("famine articles = %+v", famine.Articles)
	}

	groups := res.ByCluster()
	if len(groups) != 2 || groups[0].Cluster != "food-availability" || groups[0].Total != 3 {
		t.Errorf("groups = %+v", groups)
	}
	if groups[1].Cluster != "market" || groups[1].Total != 1 {
		t.Errorf("market group = %+v", groups[1])
	}

	per := res.PerArticle()
	if per["a1"] != 2 || per["a4"] != 0 {
		t.Errorf("PerArticle = %v", per)
	}
}

func TestMergeOrderIndependent(t *testing.T) {
	shards := [][]ingest.Article{
		{en("a1", "famine and starvation")},
		{en("a2", "severe food shortage, food prices soared")},
		{en("a3", "")},
	}
	whole := match(t, testFactors(), append(append(append([]ingest.Article{}, shards[0]...), shards[1]...), shards[2]...)...)

	forward := NewResult(ingest.English)
	backward := NewResult(ingest.English)
	for i := range shards {
		if err := forward.Merge(match(t, testFactors(), shards[i]...)); err != nil {
			t.Fatal(err)
		}
		if err := backward.Merge(match(t, testFactors(), shards[len(shards)-1-i]...)); err != nil {
			t.Fatal(err)
		}
	}
	for _, got := range []*Result{forward, backward} {
		if !reflect.DeepEqual(got.Records(), whole.Records()) {
			t.Errorf("merged records differ:\n%+v\n%+v", got.Records(), whole.Records())
		}
		if got.ArticleCount() != 3 {
			t.Errorf("ArticleCount = %d", got.ArticleCount())
		}
	}
}

func TestParse(t *testing.T) {
	doc := []byte(`
factors:
  - id: shortage
    cluster: food-availability
    phrases:
      en: [food shortage]
  - id: famine
    cluster: food-availability
    phrases:
      en: [famine]
      ar: [مجاعة]
`)
	factors, err := Parse(doc)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(factors) != 2 || factors[0].ID != "famine" {
		t.Fatalf("factors = %+v", factors)
	}
	if got := factors[0].Phrases[ingest.Arabic]; !reflect.DeepEqual(got, []string{"مجاعة"}) {
		t.Errorf("ar phrases = %v", got)
	}
	if got := Clusters(factors); !reflect.DeepEqual(got, []string{"food-availability"}) {
		t.Errorf("Clusters = %v", got)
	}

	_, err = Parse([]byte("factors:\n  - id: a\n  - id: a\n"))
	if !errors.Is(err, internalerr.ErrDuplicate) {
		t.Errorf("duplicate err = %v", err)
	}
}
