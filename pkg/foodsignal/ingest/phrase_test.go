package ingest

import (
	"reflect"
	"testing"
)

func TestPhraseIndexGreedyLongest(t *testing.T) {
	ix := NewPhraseIndex(NewTokenizer(English), []Phrase{
		{Text: "Gaza", Payload: 1},
		{Text: "North Gaza", Payload: 2},
	})

	words := NewTokenizer(English).Words("Shelling in North Gaza and Gaza")
	var got []Match
	ix.Longest(words, func(m Match) { got = append(got, m) })

	if len(got) != 2 {
		t.Fatalf("expected 2 matches, got %+v", got)
	}
	if got[0].Key != "north gaza" || got[0].Start != 2 || got[0].Length != 2 {
		t.Errorf("first match should be longest phrase, got %+v", got[0])
	}
	if got[1].Key != "gaza" || got[1].Start != 5 {
		t.Errorf("second match should be standalone gaza, got %+v", got[1])
	}
}

func TestPhraseIndexEachReportsNested(t *testing.T) {
	ix := NewPhraseIndex(NewTokenizer(English), []Phrase{
		{Text: "food shortage", Payload: 0},
		{Text: "severe food shortage", Payload: 0},
		{Text: "shortage", Payload: 7},
	})

	words := []string{"severe", "food", "shortage"}
	var keys []string
	ix.Each(words, func(m Match) { keys = append(keys, m.Key) })

	want := []string{"severe food shortage", "food shortage", "shortage"}
	if !reflect.DeepEqual(keys, want) {
		t.Errorf("Each() keys = %v, want %v", keys, want)
	}
}

func TestPhraseIndexSharedKeyPayloads(t *testing.T) {
	ix := NewPhraseIndex(NewTokenizer(English), []Phrase{
		{Text: "Gaza", Payload: 3},
		{Text: "GAZA", Payload: 1},
		{Text: "gaza", Payload: 3},
	})
	if got := ix.Lookup("gaza"); !reflect.DeepEqual(got, []int{1, 3}) {
		t.Errorf("Lookup() = %v, want [1 3]", got)
	}
	if ix.Len() != 1 {
		t.Errorf("Len() = %d, want 1", ix.Len())
	}
}

func TestPhraseIndexEmpty(t *testing.T) {
	ix := NewPhraseIndex(NewTokenizer(English), nil)
	called := false
	ix.Each([]string{"a", "b"}, func(Match) { called = true })
	ix.Longest([]string{"a", "b"}, func(Match) { called = true })
	if called {
		t.Error("empty index should not report matches")
	}
}

func TestPhraseIndexPrefixWithoutKey(t *testing.T) {
	ix := NewPhraseIndex(NewTokenizer(English), []Phrase{{Text: "rafah crossing point", Payload: 1}})
	var got []Match
	ix.Each([]string{"rafah", "crossing", "closed"}, func(m Match) { got = append(got, m) })
	if len(got) != 0 {
		t.Errorf("partial phrase should not match, got %+v", got)
	}
}

func TestNestedKeys(t *testing.T) {
	got := NestedKeys([]string{"gaza", "north gaza", "gazan", "khan yunis", "gaza"})
	want := []Nesting{{Inner: "gaza", Outer: "north gaza"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("NestedKeys() = %+v, want %+v", got, want)
	}
}
