// Package usercache caches backend user records by the access token they were
// fetched with, so rehydrating a session does not cost a backend call per request.
package usercache

import (
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// Key derives the cache key for an access token. Raw tokens are never stored.
func Key(accessToken string) string {
	sum := blake2b.Sum256([]byte(accessToken))
	return hex.EncodeToString(sum[:])
}
