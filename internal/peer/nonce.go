package peer

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

const defaultNonceCacheSize = 64

// NonceCache remembers the nonces of version messages we sent, so a version
// carrying one of them reveals a connection to ourselves.
type NonceCache struct {
	cache *lru.Cache[uint64, struct{}]
}

func NewNonceCache(size int) *NonceCache {
	if size <= 0 {
		size = defaultNonceCacheSize
	}
	cache, err := lru.New[uint64, struct{}](size)
	if err != nil {
		// lru.New fails only for a non-positive size.
		panic(err)
	}
	return &NonceCache{cache: cache}
}

// Next draws a fresh random nonce and remembers it.
func (c *NonceCache) Next() (uint64, error) {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("peer: draw nonce: %w", err)
	}
	n := binary.LittleEndian.Uint64(b[:])
	c.cache.Add(n, struct{}{})
	return n, nil
}

// Seen reports whether n was handed out by Next and not yet evicted.
func (c *NonceCache) Seen(n uint64) bool {
	return c.cache.Contains(n)
}

func (c *NonceCache) Len() int {
	return c.cache.Len()
}

// sharedNonces backs every session whose Config leaves Nonces nil.
var sharedNonces = NewNonceCache(defaultNonceCacheSize)
