package internalerr

import (
	"errors"
	"fmt"
)

// Sentinel errors for common cases
var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidInput       = errors.New("invalid input")
	ErrDuplicate          = errors.New("duplicate entry")
	ErrInvalidConfig      = errors.New("invalid configuration")
	ErrTaxonomyIntegrity  = errors.New("taxonomy integrity violation")
	ErrUnresolvedLanguage = errors.New("no taxonomy for language")
	ErrUnknownCluster     = errors.New("risk factor has no cluster")
	ErrEmptyCohort        = errors.New("empty normalization cohort")
)

// TaxonomyIntegrityError reports a malformed administrative hierarchy.
// It aborts the whole run.
type TaxonomyIntegrityError struct {
	Language string
	RegionID string
	Reason   string
}

func (e *TaxonomyIntegrityError) Error() string {
	if e.Language == "" {
		return fmt.Sprintf("taxonomy integrity: region %q: %s", e.RegionID, e.Reason)
	}
	return fmt.Sprintf("taxonomy integrity [%s]: region %q: %s", e.Language, e.RegionID, e.Reason)
}

func (e *TaxonomyIntegrityError) Unwrap() error { return ErrTaxonomyIntegrity }

// UnresolvedLanguageError is returned when a corpus language has no taxonomy.
type UnresolvedLanguageError struct {
	Language string
}

func (e *UnresolvedLanguageError) Error() string {
	return fmt.Sprintf("unresolved language %q: no taxonomy loaded", e.Language)
}

func (e *UnresolvedLanguageError) Unwrap() error { return ErrUnresolvedLanguage }

// UnknownClusterError is returned for a risk factor with no cluster in reference data.
type UnknownClusterError struct {
	FactorID string
}

func (e *UnknownClusterError) Error() string {
	return fmt.Sprintf("risk factor %q has no assigned cluster", e.FactorID)
}

func (e *UnknownClusterError) Unwrap() error { return ErrUnknownCluster }

// EmptyCohortError is returned when a time window / language scope has no
// region with any mention, so normalization is undefined there.
type EmptyCohortError struct {
	Window string
	Scope  string
}

func (e *EmptyCohortError) Error() string {
	return fmt.Sprintf("empty cohort for window %q scope %q", e.Window, e.Scope)
}

func (e *EmptyCohortError) Unwrap() error { return ErrEmptyCohort }
