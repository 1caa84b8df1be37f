package utils

import (
	"github.com/google/uuid"
)

// GenerateID returns a prefixed opaque identifier, e.g. "bid_7f9c...".
func GenerateID(prefix string) string {
	return prefix + "_" + uuid.NewString()
}
