package taxonomy

import (
	"fmt"
	"strings"
)

// Rank orders how confidently a surface form identifies a region.
type Rank int

const (
	// RankExact: one candidate, and the form is its canonical name.
	RankExact Rank = iota
	// RankUnique: one candidate, reached through an alias.
	RankUnique
	// RankAmbiguous: several candidate regions share the form.
	RankAmbiguous
)

func (r Rank) String() string {
	switch r {
	case RankExact:
		return "exact"
	case RankUnique:
		return "unique"
	case RankAmbiguous:
		return "ambiguous"
	default:
		return fmt.Sprintf("rank(%d)", int(r))
	}
}

// Candidate is one region a surface form may refer to.
type Candidate struct {
	Region    RegionID
	Level     Level
	Canonical bool // the form is the region's canonical name in this language
}

// Policy decides which candidates of an ambiguous surface form receive a hit.
// It is chosen when the taxonomy is built and recorded with every output.
type Policy string

const (
	// PolicyAllCandidates attributes the hit to every candidate. It may
	// over-count breadth but never drops a mention.
	PolicyAllCandidates Policy = "all-candidates"
	// PolicyLowestLevel attributes the hit to the deepest candidates only;
	// their ancestors still receive the rollup.
	PolicyLowestLevel Policy = "lowest-level"
	// PolicyBestRank keeps candidates whose canonical name is the form,
	// falling back to all candidates when none is.
	PolicyBestRank Policy = "best-rank"
	// PolicySkip attributes ambiguous hits to nobody; the counter reports
	// how many hits were skipped.
	PolicySkip Policy = "skip"
)

// Policies lists the supported policies.
var Policies = []Policy{PolicyAllCandidates, PolicyLowestLevel, PolicyBestRank, PolicySkip}

// ParsePolicy validates a policy name.
func ParsePolicy(s string) (Policy, error) {
	p := Policy(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Policies {
		if p == known {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown ambiguity policy %q", s)
}

// Select returns the regions that receive a hit on a form with the given
// candidates. Single-candidate forms are never affected by the policy.
// Names are matched the way ParsePolicy accepts them; an unknown policy
// attributes to every candidate.
func (p Policy) Select(cands []Candidate) []RegionID {
	if len(cands) == 0 {
		return nil
	}
	if len(cands) == 1 {
		return []RegionID{cands[0].Region}
	}

	switch p {
	case PolicySkip:
		return nil
	case PolicyLowestLevel:
		deepest := Level(0)
		for _, c := range cands {
			if c.Level > deepest {
				deepest = c.Level
			}
		}
		return pick(cands, func(c Candidate) bool { return c.Level == deepest })
	case PolicyBestRank:
		if out := pick(cands, func(c Candidate) bool { return c.Canonical }); len(out) > 0 {
			return out
		}
		return pick(cands, func(Candidate) bool { return true })
	case PolicyAllCandidates:
		return pick(cands, func(Candidate) bool { return true })
	default:
		if canonical, err := ParsePolicy(string(p)); err == nil {
			return canonical.Select(cands)
		}
		return pick(cands, func(Candidate) bool { return true })
	}
}

func pick(cands []Candidate, keep func(Candidate) bool) []RegionID {
	var out []RegionID
	for _, c := range cands {
		if keep(c) {
			out = append(out, c.Region)
		}
	}
	return out
}
