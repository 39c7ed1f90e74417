// Package lockout implements failure counting and temporary lockout windows
// as pure value types. State lives inside the caller's account record; the
// package never touches storage or the clock on its own.
package lockout

import "time"

// Policy defines a public type used by vantor APIs.
//
// Policy instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Policy struct {
	Threshold int
	Duration  time.Duration
}

// State defines a public type used by vantor APIs.
//
// State instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type State struct {
	Failures    int
	LockedUntil time.Time
}

// RecordFailure describes the recordfailure operation and its observable behavior.
//
// RecordFailure may return an error when input validation, dependency calls, or security checks fail.
// RecordFailure does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (p Policy) RecordFailure(s State, now time.Time) State {
	// An expired lock starts a fresh counting window.
	if !s.LockedUntil.IsZero() && !now.Before(s.LockedUntil) {
		s = State{}
	}

	s.Failures++
	if p.Threshold > 0 && s.Failures >= p.Threshold {
		s.LockedUntil = now.Add(p.Duration)
	}

	return s
}

// Locked describes the locked operation and its observable behavior.
//
// Locked may return an error when input validation, dependency calls, or security checks fail.
// Locked does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s State) Locked(now time.Time) bool {
	return !s.LockedUntil.IsZero() && now.Before(s.LockedUntil)
}

// Remaining describes the remaining operation and its observable behavior.
//
// Remaining may return an error when input validation, dependency calls, or security checks fail.
// Remaining does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s State) Remaining(now time.Time) time.Duration {
	if !s.Locked(now) {
		return 0
	}
	return s.LockedUntil.Sub(now)
}

// Reset describes the reset operation and its observable behavior.
//
// Reset may return an error when input validation, dependency calls, or security checks fail.
// Reset does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s State) Reset() State {
	return State{}
}
