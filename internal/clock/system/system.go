// Package system provides the wall clock used by the ledger, cache and normalizers.
package system

import "time"

// Clock implements jobs.Clock using time.Now in UTC, so monthly ledger
// periods and cache ages are computed in one timezone.
type Clock struct{}

// New creates a new Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current UTC time.
func (Clock) Now() time.Time {
	return time.Now().UTC()
}
