package utils

import (
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// KeyDigest returns a fixed-length hex name for a cache key, safe for redis fields and object names.
func KeyDigest(key string) string {
	sum := blake2b.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}
