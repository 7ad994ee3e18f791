// Package system supplies the wall clock used outside of tests.
package system

import "time"

// Clock reads the wall clock in UTC. Fingerprint timestamps, history rows,
// and rotation cooldowns all compare times from this clock, so everything
// is normalized to one zone regardless of host configuration.
type Clock struct{}

// New returns a ready Clock.
func New() Clock {
	return Clock{}
}

// Now reports the current UTC time.
func (Clock) Now() time.Time {
	return time.Now().UTC()
}
