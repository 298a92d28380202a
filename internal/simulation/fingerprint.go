package simulation

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// Fingerprint hashes the request shape (risk set, iterations, seed and
// overrides) so an external cache can memoize identical runs. Requests
// without a seed are not cacheable and fingerprint to the empty string.
func Fingerprint(req *Request) string {
	if req.Seed == nil {
		return ""
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}
