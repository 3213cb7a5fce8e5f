package util

import (
	"crypto/rand"
	"encoding/hex"
)

// NewID returns a random identifier of the form "{prefix}_{32 hex chars}".
// Sync idempotence keys on these IDs, so they come from crypto/rand rather
// than a timestamp+counter scheme.
func NewID(prefix string) string {
	bytes := make([]byte, 16)
	_, _ = rand.Read(bytes)
	if prefix == "" {
		return hex.EncodeToString(bytes)
	}
	return prefix + "_" + hex.EncodeToString(bytes)
}
