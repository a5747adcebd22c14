// Package fingerprint computes content fingerprints used for per-owner deduplication.
package fingerprint

import (
	"encoding/hex"
	"strings"

	"github.com/minio/sha256-simd"
)

// Size is the length of a fingerprint in hex characters.
const Size = sha256.Size * 2

// Compute returns the lowercase hex SHA-256 digest of data.
// Callers enforce the upload size ceiling before calling.
func Compute(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Valid reports whether s looks like a fingerprint produced by Compute.
func Valid(s string) bool {
	if len(s) != Size {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil && s == strings.ToLower(s)
}
