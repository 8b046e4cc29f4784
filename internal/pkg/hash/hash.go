// Package hash provides hashing utilities.
package hash

import (
	"crypto/sha256"
	"encoding/hex"
)

// SHA256 computes the SHA256 hash of data and returns it as a hex string.
func SHA256(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// SHA256String computes the SHA256 hash of a string.
func SHA256String(s string) string {
	return SHA256([]byte(s))
}

// SHA256Short returns the first n characters of a SHA256 hash.
func SHA256Short(data []byte, n int) string {
	h := SHA256(data)
	if n > len(h) {
		return h
	}
	return h[:n]
}

// PairKey generates a deterministic cache key for a diagnosis pair.
// Order matters: (gold, predicted) and (predicted, gold) are distinct keys.
func PairKey(a, b string) string {
	return SHA256Short([]byte(a+"|"+b), 32)
}

// NarrativeKey generates a deterministic cache key for a narrative text,
// scoped by the model that will process it.
func NarrativeKey(model, narrative string) string {
	return SHA256Short([]byte(model+"|"+narrative), 32)
}
