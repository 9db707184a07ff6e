// Package fingerprint derives a stable per-visitor key used by the fraud
// heuristics. It is a rate-limiting handle, not an identity: collisions
// are acceptable.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Generate returns a deterministic digest for a visitor. All inputs are
// optional; empty inputs produce the stable "unknown visitor" digest.
func Generate(ip, userAgent, referrer, acceptLang string) string {
	raw := fmt.Sprintf("%s|%s|%s|%s", ip, userAgent, referrer, acceptLang)
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
