package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/cognicore/foodsignal/pkg/foodsignal/internalerr"
	"github.com/cognicore/foodsignal/pkg/foodsignal/riskfactor"
	"github.com/cognicore/foodsignal/pkg/foodsignal/score"
	"github.com/cognicore/foodsignal/pkg/foodsignal/store"
)

// Store is an in-memory implementation of store.Store for tests and
// dry runs.
type Store struct {
	mu   sync.RWMutex
	runs map[string]store.Run
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{runs: make(map[string]store.Run)}
}

// Close implements store.Store.
func (s *Store) Close() error { return nil }

// SaveRun stores a deep copy of run.
func (s *Store) SaveRun(ctx context.Context, run store.Run) error {
	if run.Manifest.RunID == "" {
		return fmt.Errorf("%w: run id is required", internalerr.ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.runs[run.Manifest.RunID]; ok {
		return fmt.Errorf("%w: run %s", internalerr.ErrDuplicate, run.Manifest.RunID)
	}
	s.runs[run.Manifest.RunID] = copyRun(run)
	return nil
}

// GetManifest returns the manifest of a run.
func (s *Store) GetManifest(ctx context.Context, runID string) (store.Manifest, error) {
	run, err := s.get(runID)
	return run.Manifest, err
}

// ListRuns returns every manifest, oldest first.
func (s *Store) ListRuns(ctx context.Context) ([]store.Manifest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]store.Manifest, 0, len(s.runs))
	for _, r := range s.runs {
		out = append(out, r.Manifest)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RunID < out[j].RunID })
	return out, nil
}

// Mentions returns the mention table of a run.
func (s *Store) Mentions(ctx context.Context, runID string) ([]store.MentionRow, error) {
	run, err := s.get(runID)
	return run.Mentions, err
}

// RiskMentions returns the risk mention table of a run.
func (s *Store) RiskMentions(ctx context.Context, runID string) ([]store.RiskRow, error) {
	run, err := s.get(runID)
	return run.Risks, err
}

// Scores returns the region score table of a run.
func (s *Store) Scores(ctx context.Context, runID string) ([]score.RegionScore, error) {
	run, err := s.get(runID)
	return run.Scores, err
}

// Associations returns the region and risk-cluster association table of a run.
func (s *Store) Associations(ctx context.Context, runID string) ([]score.Association, error) {
	run, err := s.get(runID)
	return run.Associations, err
}

func (s *Store) get(runID string) (store.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[runID]
	if !ok {
		return store.Run{}, fmt.Errorf("%w: run %s", internalerr.ErrNotFound, runID)
	}
	return copyRun(run), nil
}

func copyRun(r store.Run) store.Run {
	out := store.Run{Manifest: r.Manifest}
	out.Manifest.Languages = append([]string(nil), r.Manifest.Languages...)
	out.Manifest.Articles = copyCounts(r.Manifest.Articles)
	out.Manifest.SkippedHits = copyCounts(r.Manifest.SkippedHits)
	out.Mentions = append([]store.MentionRow(nil), r.Mentions...)
	out.Risks = make([]store.RiskRow, len(r.Risks))
	for i, row := range r.Risks {
		row.Spans = append([]riskfactor.Span(nil), row.Spans...)
		out.Risks[i] = row
	}
	out.Scores = append([]score.RegionScore(nil), r.Scores...)
	out.Associations = append([]score.Association(nil), r.Associations...)
	return out
}

func copyCounts(m map[string]int) map[string]int {
	if m == nil {
		return nil
	}
	out := make(map[string]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
