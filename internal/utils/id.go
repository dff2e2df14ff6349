package utils

import "github.com/google/uuid"

// NewID returns a random UUIDv4 string used for user identities and message ids.
func NewID() string {
	return uuid.NewString()
}

// ValidID reports whether s is a well-formed identifier produced by NewID.
func ValidID(s string) bool {
	if s == "" {
		return false
	}
	_, err := uuid.Parse(s)
	return err == nil
}
