package vexora

import "github.com/google/uuid"

// NewID generates a globally unique, time-sortable UUIDv7 (RFC 9562).
// Replaces timestamp+random-suffix schemes that can collide under load.
func NewID() string {
	return uuid.Must(uuid.NewV7()).String()
}
