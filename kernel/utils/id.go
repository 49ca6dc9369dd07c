package utils

import "github.com/google/uuid"

// NewThreadID generates a unique identifier for a thread or CPU-visible
// object. Generalizes the teacher's crypto/rand hex ID helper onto uuid,
// which the rest of the pack (and the teacher's own indirect dependency
// graph) already pulls in.
func NewThreadID() string {
	return uuid.NewString()
}
