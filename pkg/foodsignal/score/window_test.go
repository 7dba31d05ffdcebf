package score

import (
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/cognicore/foodsignal/pkg/foodsignal/ingest"
)

func TestWindowLabels(t *testing.T) {
	ts := time.Date(2021, 1, 2, 15, 4, 5, 0, time.UTC)
	tests := []struct {
		g    Granularity
		t    time.Time
		want string
	}{
		{WindowAll, ts, "all"},
		{WindowAll, time.Time{}, "all"},
		{WindowYear, ts, "2021"},
		{WindowMonth, ts, "2021-01"},
		{WindowWeek, ts, "2020-W53"},
		{WindowDay, ts, "2021-01-02"},
		{WindowDay, time.Time{}, Undated},
		{WindowWeek, time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC), "2024-W10"},
	}
	for _, tt := range tests {
		if got := tt.g.Window(tt.t); got != tt.want {
			t.Errorf("%s.Window(%v) = %q, want %q", tt.g, tt.t, got, tt.want)
		}
	}
}

func TestParseGranularity(t *testing.T) {
	if g, err := ParseGranularity(" Month "); err != nil || g != WindowMonth {
		t.Errorf("ParseGranularity = %q, %v", g, err)
	}
	if _, err := ParseGranularity("fortnight"); err == nil {
		t.Error("expected error")
	}
}

func TestMixedCaseGranularityWindows(t *testing.T) {
	ts := time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC)
	if got := Granularity("Month").Window(ts); got != "2024-03" {
		t.Errorf("Month window = %q, want 2024-03", got)
	}
	if got := Granularity(" YEAR").Window(ts); got != "2024" {
		t.Errorf("YEAR window = %q, want 2024", got)
	}
}

func TestCanonicalOptions(t *testing.T) {
	opts := Options{
		Languages:     []ingest.Language{ingest.English},
		Weights:       Weights{GeoDensity: 1},
		Normalization: "MAX",
		Granularity:   "Month",
		Scopes:        []string{"All", " EN "},
	}
	got, err := opts.Canonical()
	if err != nil {
		t.Fatal(err)
	}
	if got.Normalization != NormalizeMax || got.Granularity != WindowMonth {
		t.Errorf("Canonical() = %q/%q", got.Normalization, got.Granularity)
	}
	if !reflect.DeepEqual(got.Scopes, []string{ScopeAll, "en"}) {
		t.Errorf("scopes = %v", got.Scopes)
	}
	if opts.Scopes[0] != "All" {
		t.Error("Canonical modified the receiver's scopes")
	}

	opts.Granularity = "fortnight"
	if _, err := opts.Canonical(); err == nil {
		t.Error("expected error for unknown granularity")
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		scheme Normalization
		in     []float64
		want   []float64
	}{
		{NormalizeMinMax, []float64{1, 2, 3}, []float64{0, 0.5, 1}},
		{NormalizeMinMax, []float64{2, 2}, []float64{1, 1}},
		{NormalizeMinMax, []float64{0, 0}, []float64{0, 0}},
		{NormalizeMax, []float64{1, 2, 4}, []float64{0.25, 0.5, 1}},
		{NormalizeMax, []float64{0, 0, 3}, []float64{0, 0, 1}},
		{NormalizeMax, nil, []float64{}},
	}
	for _, tt := range tests {
		if got := normalize(tt.scheme, tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("normalize(%s, %v) = %v, want %v", tt.scheme, tt.in, got, tt.want)
		}
	}
}

func TestWeightsWithoutTopic(t *testing.T) {
	w := Weights{GeoDensity: 0.4, RiskFreq: 0.2, LangBreadth: 0.1, AdminDiversity: 0.1, Topic: 0.2}
	if err := w.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	got, err := w.WithoutTopic()
	if err != nil {
		t.Fatal(err)
	}
	if got.Topic != 0 || math.Abs(got.Sum()-1) > WeightTolerance {
		t.Errorf("rescaled = %+v", got)
	}
	if math.Abs(got.GeoDensity-0.5) > 1e-12 || math.Abs(got.RiskFreq-0.25) > 1e-12 {
		t.Errorf("rescaled = %+v", got)
	}
}
