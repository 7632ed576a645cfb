package core

import "github.com/google/uuid"

// NewID returns a new canonical identifier (UUIDv7, time ordered).
func NewID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// IsID reports whether s is a canonical identifier.
func IsID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
