package signature

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meshrelay/bundlecrypto/manifest"
	"github.com/meshrelay/bundlecrypto/primitives"
)

func mkSignedManifest(t *testing.T, hash [manifest.HashSize]byte) (manifest.Manifest, Block) {
	t.Helper()
	pub, secret, err := primitives.GenerateKeypair()
	require.NoError(t, err)

	var m manifest.Manifest
	m.BID = manifest.BID(pub)
	m.ManifestHash = hash

	block, err := Sign(&m, manifest.Secret(secret))
	require.NoError(t, err)
	return m, block
}

func TestSignAndVerify(t *testing.T) {
	hash := primitives.SHA512([]byte("a manifest body"))
	m, block := mkSignedManifest(t, hash)

	assert.Equal(t, m.BID, block.Signatory)

	cache := NewVerifierCache()
	assert.True(t, Verify(cache, hash, block))
}

func TestVerifyRejectsTamperedSignature(t *testing.T) {
	hash := primitives.SHA512([]byte("a manifest body"))
	_, block := mkSignedManifest(t, hash)
	block.Signature[0] ^= 0xFF

	cache := NewVerifierCache()
	assert.False(t, Verify(cache, hash, block))
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	hash := primitives.SHA512([]byte("x"))
	_, block := mkSignedManifest(t, hash)

	buf := Encode(block)
	assert.Equal(t, manifest.SignatureBlockLen, len(buf))
	assert.Equal(t, byte(manifest.SignatureBlockTag), buf[0])

	decoded, err := Decode(buf[:])
	require.NoError(t, err)
	assert.Equal(t, block, decoded)
}

func TestDecodeRejectsWrongLengthAndTag(t *testing.T) {
	_, err := Decode(make([]byte, 10))
	assert.ErrorIs(t, err, manifest.ErrCorrupt)

	buf := make([]byte, manifest.SignatureBlockLen)
	_, err = Decode(buf)
	assert.ErrorIs(t, err, manifest.ErrCorrupt)
}

func TestVerifierCacheHitAvoidsRecompute(t *testing.T) {
	hash := primitives.SHA512([]byte("cached"))
	_, block := mkSignedManifest(t, hash)

	cache := NewVerifierCache()
	_, known := cache.Lookup(hash, block.Signature)
	assert.False(t, known)

	assert.True(t, Verify(cache, hash, block))

	ok, known := cache.Lookup(hash, block.Signature)
	assert.True(t, known)
	assert.True(t, ok)
}

func TestVerifierCacheDistinguishesCollidingSlot(t *testing.T) {
	cache := NewVerifierCache()

	hashA := primitives.SHA512([]byte("a"))
	_, blockA := mkSignedManifest(t, hashA)
	hashB := primitives.SHA512([]byte("b"))
	_, blockB := mkSignedManifest(t, hashB)

	cache.Insert(hashA, blockA.Signature, true)
	// Force a collision by writing blockB's outcome into the exact same
	// slot as blockA, simulating two unrelated pairs landing on one slot.
	idx := slot(hashA, blockA.Signature)
	cache.mu.Lock()
	cache.slots[idx] = cacheSlot{occupied: true, hash: hashB, sig: blockB.Signature, sigLen: manifest.SignatureSize, ok: false}
	cache.mu.Unlock()

	_, known := cache.Lookup(hashA, blockA.Signature)
	assert.False(t, known, "colliding slot occupant must not be reported as a hit for a different pair")

	ok, known := cache.Lookup(hashB, blockB.Signature)
	assert.True(t, known)
	assert.False(t, ok)
}

func TestParseWalksSignatureRegion(t *testing.T) {
	hash := primitives.SHA512([]byte("manifest text"))
	m, block := mkSignedManifest(t, hash)

	sigBytes := Encode(block)
	m.ManifestData = append([]byte("manifest text"), sigBytes[:]...)
	m.ManifestBytes = len("manifest text")
	m.ManifestAllBytes = len(m.ManifestData)

	cache := NewVerifierCache()
	require.NoError(t, Parse(&m, cache))
	assert.Equal(t, 1, m.SigCount)
	assert.Equal(t, 0, m.Errors)
	assert.Equal(t, block.Signatory, m.Signatories[0])
}

func TestParseSkipsBadBlockButContinues(t *testing.T) {
	hash := primitives.SHA512([]byte("manifest text"))
	m, block := mkSignedManifest(t, hash)

	good := Encode(block)
	bad := good
	bad[0] = 0x00 // unrecognized tag

	m.ManifestData = append([]byte("manifest text"), bad[:]...)
	m.ManifestData = append(m.ManifestData, good[:]...)
	m.ManifestBytes = len("manifest text")
	m.ManifestAllBytes = len(m.ManifestData)

	cache := NewVerifierCache()
	require.NoError(t, Parse(&m, cache))
	assert.Equal(t, 1, m.SigCount)
	assert.Equal(t, 1, m.Errors)
}

func TestParseRejectsMisalignedRegion(t *testing.T) {
	var m manifest.Manifest
	m.ManifestData = make([]byte, 10)
	m.ManifestBytes = 0
	m.ManifestAllBytes = 10

	err := Parse(&m, nil)
	assert.ErrorIs(t, err, manifest.ErrCorrupt)
}
