// Package security provides id generation and token verification
package security

import (
	"github.com/oklog/ulid/v2"
)

// GenerateULID generates a new ULID string. ULIDs sort by creation time, which
// keeps primary-key inserts append-only.
func GenerateULID() string {
	return ulid.Make().String()
}
