// Package uuidx generates time-ordered identifiers for sessions and turns.
package uuidx

import "github.com/google/uuid"

// New generates a new version 7 UUID. It panics if generation fails,
// which only happens when the system source of randomness is broken.
func New() uuid.UUID {
	return uuid.Must(uuid.NewV7())
}

// NewString generates a new version 7 UUID and returns its string form.
func NewString() string {
	return New().String()
}
