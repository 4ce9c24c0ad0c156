// Package md5 provides the digest used to derive deterministic artifact names.
package md5

import (
	"crypto/md5" // #nosec G501 -- naming digest, not a security boundary.
	"encoding/hex"
)

// Hasher implements armada.Hasher using MD5.
type Hasher struct{}

// New returns an MD5 hasher.
func New() *Hasher {
	return &Hasher{}
}

// Hash hashes the input and returns a hex digest.
func (h *Hasher) Hash(data []byte) (string, error) {
	sum := md5.Sum(data) // #nosec G401
	return hex.EncodeToString(sum[:]), nil
}

// Prefix returns the first length hex characters of the digest of s. A length outside
// (0, 32] returns the full digest.
func (h *Hasher) Prefix(s string, length int) string {
	digest, _ := h.Hash([]byte(s))
	if length <= 0 || length >= len(digest) {
		return digest
	}
	return digest[:length]
}
