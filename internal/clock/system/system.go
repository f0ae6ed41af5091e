// Package system supplies the wall clock injected into stores and the
// pipeline; tests substitute fixed clocks through listing.Clock.
package system

import "time"

// Clock reads the system time in UTC. Record timestamps are always UTC
// so first_seen_at/last_seen_at compare consistently across hosts.
type Clock struct{}

// New returns a system clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current UTC time.
func (Clock) Now() time.Time {
	return time.Now().UTC()
}
