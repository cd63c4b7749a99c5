// Package checksum fingerprints schema sources so unchanged files can be
// skipped on re-index.
package checksum

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"
)

const prefix = "sha256:"

// Sum returns the algorithm-tagged SHA-256 digest of data, e.g. "sha256:ab12...".
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return prefix + hex.EncodeToString(h[:])
}

// Verify reports whether sum is the digest of data. Untagged or empty sums
// never match.
func Verify(data []byte, sum string) bool {
	if !strings.HasPrefix(sum, prefix) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(Sum(data)), []byte(sum)) == 1
}
