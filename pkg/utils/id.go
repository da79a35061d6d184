package utils

import "github.com/google/uuid"

// GenerateID returns a prefixed random identifier, e.g. "conn-3f2a...".
func GenerateID(prefix string) string {
	return prefix + "-" + uuid.NewString()
}
