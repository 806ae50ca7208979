// Package system provides the wall-clock implementation of scrape.Clock.
package system

import "time"

// Clock reads the system wall clock.
type Clock struct{}

// New returns a system-backed clock.
func New() Clock {
	return Clock{}
}

// Now returns the current UTC time.
func (Clock) Now() time.Time {
	return time.Now().UTC()
}
