package idhash

import (
	"crypto/sha256"
	"fmt"

	"github.com/mr-tron/base58"
)

// ComponentIdentity derives a compact, deterministic identity for a
// component on the control channel. The kind is the component's role
// ("FEED", "MERGE", "trades"), n disambiguates multiple instances.
// Returns "<kind>-<base58 of the first 8 hash bytes>".
func ComponentIdentity(kind string, n int) string {
	hash := sha256.Sum256([]byte(fmt.Sprintf("%s|%d", kind, n)))
	return fmt.Sprintf("%s-%s", kind, base58.Encode(hash[:8]))
}
