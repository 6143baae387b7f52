package rtstore

import "github.com/google/uuid"

// NewKey returns a push key. Keys are UUIDv7 strings, so lexical order
// follows creation time and stays monotonic within a process.
func NewKey() string {
	return uuid.Must(uuid.NewV7()).String()
}
