// Package system provides the wall-clock implementation of
// registration.Clock.
package system

import "time"

// Clock reads the real time in UTC. Event timestamps and tests that need a
// frozen clock go through the registration.Clock interface instead of
// time.Now.
type Clock struct{}

// New creates a new Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current time.
func (Clock) Now() time.Time {
	return time.Now().UTC()
}
