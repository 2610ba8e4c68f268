package correlation

import (
	"encoding/hex"

	"github.com/google/uuid"
)

// Generator produces a new identifier on every call. Implementations must
// return a non-empty string and must not fail; a generator that can fail is
// a configuration error caught at startup, not a per-request condition.
type Generator func() string

// DefaultGenerator returns a random identifier of 32 lowercase hex
// characters with no dashes.
func DefaultGenerator() string {
	u := uuid.New()
	return hex.EncodeToString(u[:])
}
