package ingest

import (
	"sort"

	ahocorasick "github.com/cloudflare/ahocorasick"
)

// Nesting records that Inner occurs at token boundaries inside Outer.
type Nesting struct {
	Inner string
	Outer string
}

// NestedKeys finds phrase keys that occur inside other keys on token
// boundaries, using one Aho-Corasick automaton over the whole key set.
// Keys must already be normalized (see Tokenizer.Key). The result is sorted.
func NestedKeys(keys []string) []Nesting {
	uniq := uniqueSorted(keys)
	if len(uniq) < 2 {
		return nil
	}

	// Space padding restricts hits to whole tokens.
	dict := make([]string, len(uniq))
	for i, k := range uniq {
		dict[i] = " " + k + " "
	}
	m := ahocorasick.NewStringMatcher(dict)

	var out []Nesting
	for j, outer := range uniq {
		for _, i := range m.Match([]byte(dict[j])) {
			if i == j {
				continue
			}
			out = append(out, Nesting{Inner: uniq[i], Outer: outer})
		}
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a].Outer != out[b].Outer {
			return out[a].Outer < out[b].Outer
		}
		return out[a].Inner < out[b].Inner
	})
	return out
}

func uniqueSorted(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
