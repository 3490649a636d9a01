package util

import "github.com/google/uuid"

// NewID returns a random UUIDv4 string used as a primary key.
func NewID() string {
	return uuid.NewString()
}

// ValidID reports whether value is a canonical UUID. Path ids that fail this
// check are treated as unknown entities.
func ValidID(value string) bool {
	if len(value) != 36 {
		return false
	}
	_, err := uuid.Parse(value)
	return err == nil
}
