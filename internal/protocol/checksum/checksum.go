// Package checksum computes the envelope payload digest: the first four bytes
// of a double SHA-256, read little-endian.
package checksum

import (
	"encoding/binary"

	"github.com/minio/sha256-simd"
)

// Size is the width of a checksum on the wire.
const Size = 4

// Sum returns the checksum of payload.
func Sum(payload []byte) uint32 {
	first := sha256.Sum256(payload)
	second := sha256.Sum256(first[:])
	return binary.LittleEndian.Uint32(second[:Size])
}

// Verify reports whether payload hashes to want.
func Verify(payload []byte, want uint32) bool {
	return Sum(payload) == want
}
