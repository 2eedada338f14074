// Package sha256 derives content-addressed names with SHA-256.
package sha256

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Hasher implements crawler.Hasher using SHA-256.
type Hasher struct {
	length int
}

// New returns a SHA-256 hasher producing full 64-character digests.
func New() *Hasher {
	return &Hasher{}
}

// NewTruncated returns a hasher whose digests are cut to length hex
// characters. Lengths outside (0, 64) yield full digests.
func NewTruncated(length int) *Hasher {
	if length <= 0 || length >= sha256.Size*2 {
		return New()
	}
	return &Hasher{length: length}
}

// Hash hashes the input and returns a hex digest.
func (h *Hasher) Hash(data []byte) (string, error) {
	if data == nil {
		return "", fmt.Errorf("hash input is nil")
	}
	sum := sha256.Sum256(data)
	digest := hex.EncodeToString(sum[:])
	if h.length > 0 {
		digest = digest[:h.length]
	}
	return digest, nil
}
