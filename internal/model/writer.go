package model

import "time"

// Writer defines a generic interface for persisting profile snapshots.
type Writer interface {
	// Write takes the current profile table and persists it under the
	// given snapshot timestamp.
	Write(profiles []*Profile, timestamp time.Time) error

	// GetInterval returns the configured snapshot interval for this writer.
	GetInterval() time.Duration
}
