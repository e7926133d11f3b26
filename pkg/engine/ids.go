package engine

import "github.com/google/uuid"

// NewID returns a collision-resistant order identifier in the
// canonical 36-character 8-4-4-4-12 form. Safe for concurrent use.
func NewID() string {
	return uuid.NewString()
}
