package signature

import (
	"sync"

	"github.com/meshrelay/bundlecrypto/manifest"
)

// VerifierCache is a fixed-size, direct-mapped cache remembering the
// verification outcome of (manifest hash, signature) pairs this process
// has already checked, so a manifest relayed many times over a mesh does
// not pay for repeated Ed25519 verification. It never grows past
// manifest.SigCacheSize slots; a colliding insert simply evicts whatever
// occupied the slot.
type VerifierCache struct {
	mu    sync.RWMutex
	slots [manifest.SigCacheSize]cacheSlot
}

type cacheSlot struct {
	occupied bool
	hash     [manifest.HashSize]byte
	sig      [manifest.SignatureSize]byte
	sigLen   int
	ok       bool
}

// NewVerifierCache returns an empty cache.
func NewVerifierCache() *VerifierCache {
	return &VerifierCache{}
}

// slot computes the direct-mapped index for hash||sig: a running
// accumulator that is rotated left one bit and then added to each input
// byte in turn, finally reduced modulo the cache size.
func slot(hash [manifest.HashSize]byte, sig [manifest.SignatureSize]byte) uint32 {
	var acc uint32
	accumulate := func(b byte) {
		acc = (acc<<1 | acc>>31) + uint32(b)
	}
	for _, b := range hash {
		accumulate(b)
	}
	for _, b := range sig {
		accumulate(b)
	}
	return acc % manifest.SigCacheSize
}

// Lookup reports whether (hash, sig) occupies its direct-mapped slot. The
// three-field comparison (hash, signature bytes, signature length) against
// the occupant guards against a different (hash, sig) pair that happens to
// share a slot being mistaken for a cache hit.
func (c *VerifierCache) Lookup(hash [manifest.HashSize]byte, sig [manifest.SignatureSize]byte) (ok bool, known bool) {
	idx := slot(hash, sig)

	c.mu.RLock()
	defer c.mu.RUnlock()

	s := c.slots[idx]
	if !s.occupied {
		return false, false
	}
	if s.hash != hash || s.sig != sig || s.sigLen != manifest.SignatureSize {
		return false, false
	}
	return s.ok, true
}

// Insert records the verification outcome of (hash, sig) in its
// direct-mapped slot, evicting any previous occupant.
func (c *VerifierCache) Insert(hash [manifest.HashSize]byte, sig [manifest.SignatureSize]byte, ok bool) {
	idx := slot(hash, sig)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.slots[idx] = cacheSlot{
		occupied: true,
		hash:     hash,
		sig:      sig,
		sigLen:   manifest.SignatureSize,
		ok:       ok,
	}
}
