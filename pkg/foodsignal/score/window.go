package score

import (
	"fmt"
	"strings"
	"time"

	"github.com/cognicore/foodsignal/pkg/foodsignal/internalerr"
)

// Granularity is the time-window size scores are computed over.
type Granularity string

const (
	WindowAll   Granularity = "all"
	WindowYear  Granularity = "year"
	WindowMonth Granularity = "month"
	WindowWeek  Granularity = "week"
	WindowDay   Granularity = "day"
)

// Undated is the window of articles without a publication time.
const Undated = "undated"

// ParseGranularity validates a granularity name.
func ParseGranularity(s string) (Granularity, error) {
	switch g := Granularity(strings.ToLower(strings.TrimSpace(s))); g {
	case WindowAll, WindowYear, WindowMonth, WindowWeek, WindowDay:
		return g, nil
	}
	return "", fmt.Errorf("%w: unknown time window %q", internalerr.ErrInvalidConfig, s)
}

// Window returns the label of the window containing t. Labels sort
// chronologically within one granularity. Names are matched the way
// ParseGranularity accepts them; an unknown name windows by day.
func (g Granularity) Window(t time.Time) string {
	if canonical, err := ParseGranularity(string(g)); err == nil {
		g = canonical
	}
	if g == WindowAll {
		return string(WindowAll)
	}
	if t.IsZero() {
		return Undated
	}
	t = t.UTC()
	switch g {
	case WindowYear:
		return t.Format("2006")
	case WindowMonth:
		return t.Format("2006-01")
	case WindowWeek:
		year, week := t.ISOWeek()
		return fmt.Sprintf("%04d-W%02d", year, week)
	default:
		return t.Format("2006-01-02")
	}
}
