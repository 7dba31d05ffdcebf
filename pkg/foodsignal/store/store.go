// Package store persists pipeline runs: a manifest plus the mention, risk
// mention and region score tables.
package store

import (
	"context"
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/cognicore/foodsignal/pkg/foodsignal/ingest"
	"github.com/cognicore/foodsignal/pkg/foodsignal/mention"
	"github.com/cognicore/foodsignal/pkg/foodsignal/riskfactor"
	"github.com/cognicore/foodsignal/pkg/foodsignal/score"
)

// Store is the persistence interface for pipeline runs. A run is written
// once and never updated.
type Store interface {
	Close() error

	SaveRun(ctx context.Context, run Run) error
	GetManifest(ctx context.Context, runID string) (Manifest, error)
	ListRuns(ctx context.Context) ([]Manifest, error)

	Mentions(ctx context.Context, runID string) ([]MentionRow, error)
	RiskMentions(ctx context.Context, runID string) ([]RiskRow, error)
	Scores(ctx context.Context, runID string) ([]score.RegionScore, error)
	Associations(ctx context.Context, runID string) ([]score.Association, error)
}

// Manifest records everything needed to reproduce a run's scores.
type Manifest struct {
	RunID         string
	CreatedAt     time.Time
	Policy        string
	AggregateCode string
	Normalization string
	Window        string
	Weights       score.Weights // applied weights
	TopicApplied  bool
	Languages     []string
	Articles      map[string]int // per language
	SkippedHits   map[string]int // ambiguous hits attributed to nobody, per language
}

// MentionRow is a mention record tagged with its corpus language.
type MentionRow struct {
	Language ingest.Language
	mention.Record
}

// RiskRow is a risk mention record tagged with its corpus language.
type RiskRow struct {
	Language ingest.Language
	riskfactor.Record
}

// Run is one complete pipeline result.
type Run struct {
	Manifest     Manifest
	Mentions     []MentionRow
	Risks        []RiskRow
	Scores       []score.RegionScore
	Associations []score.Association
}

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// NewRunID returns a lexicographically sortable run identifier.
func NewRunID(now time.Time) string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(now), entropy).String()
}
