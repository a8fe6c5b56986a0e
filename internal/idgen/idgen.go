// Package idgen mints the opaque identifiers used throughout the
// orchestrator: job_<32 hex>, att_<32 hex>, req_<32 hex>.
package idgen

import (
	"encoding/hex"

	"github.com/google/uuid"
)

const (
	prefixJob     = "job_"
	prefixAttempt = "att_"
	prefixRequest = "req_"
)

func new32Hex() string {
	id := uuid.New()
	return hex.EncodeToString(id[:])
}

// Job mints a new job_<32 hex> identifier.
func Job() string {
	return prefixJob + new32Hex()
}

// Attempt mints a new att_<32 hex> identifier.
func Attempt() string {
	return prefixAttempt + new32Hex()
}

// Request mints a new req_<32 hex> identifier.
func Request() string {
	return prefixRequest + new32Hex()
}
