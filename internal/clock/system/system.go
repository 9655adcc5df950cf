// Package system provides clock implementations for cms.Clock.
package system

import "time"

// Clock implements cms.Clock using time.Now.
type Clock struct{}

// New creates a new Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current time.
func (Clock) Now() time.Time {
	return time.Now().UTC()
}

// Fixed is a clock frozen at a single instant, for deterministic output such
// as sitemap lastmod dates in tests.
type Fixed struct {
	T time.Time
}

// At creates a Fixed clock frozen at t.
func At(t time.Time) Fixed {
	return Fixed{T: t.UTC()}
}

// Now returns the frozen instant.
func (f Fixed) Now() time.Time {
	return f.T
}
