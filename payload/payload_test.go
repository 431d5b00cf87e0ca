package payload

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meshrelay/bundlecrypto/manifest"
	"github.com/meshrelay/bundlecrypto/primitives"
)

func TestDeriveKeySelfDeterministic(t *testing.T) {
	_, secretBytes, err := primitives.GenerateKeypair()
	require.NoError(t, err)
	secret := manifest.Secret(secretBytes)

	k1 := DeriveKeySelf(secret)
	k2 := DeriveKeySelf(secret)
	assert.Equal(t, k1, k2)
}

type fakeKeyring struct {
	nm map[[2]manifest.SID][32]byte
}

func (f *fakeKeyring) GetNMBytes(local, peer manifest.SID) ([32]byte, bool) {
	nm, ok := f.nm[[2]manifest.SID{local, peer}]
	return nm, ok
}

func TestDeriveKeyDirected(t *testing.T) {
	a := manifest.SID{0x01}
	b := manifest.SID{0x02}
	var shared [32]byte
	for i := range shared {
		shared[i] = byte(i)
	}
	kr := &fakeKeyring{nm: map[[2]manifest.SID][32]byte{{a, b}: shared}}

	key, err := DeriveKeyDirected(kr, a, b)
	require.NoError(t, err)

	var zero [manifest.PayloadKeySize]byte
	assert.NotEqual(t, zero, key)
}

func TestDeriveKeyDirectedRecipientLocal(t *testing.T) {
	a := manifest.SID{0x01}
	b := manifest.SID{0x02}
	var shared [32]byte
	for i := range shared {
		shared[i] = byte(i + 1)
	}
	// Only the (recipient, sender) ordering is known, as happens when the
	// recipient is the local identity and the sender is not.
	kr := &fakeKeyring{nm: map[[2]manifest.SID][32]byte{{b, a}: shared}}

	key, err := DeriveKeyDirected(kr, a, b)
	require.NoError(t, err)

	var zero [manifest.PayloadKeySize]byte
	assert.NotEqual(t, zero, key)
}

func TestDeriveKeyDirectedUnknownParties(t *testing.T) {
	kr := &fakeKeyring{nm: map[[2]manifest.SID][32]byte{}}
	_, err := DeriveKeyDirected(kr, manifest.SID{1}, manifest.SID{2})
	assert.ErrorIs(t, err, manifest.ErrPartiesUnknown)
}

func TestDeriveKeyFallsBackToSelf(t *testing.T) {
	var m manifest.Manifest
	_, secretBytes, err := primitives.GenerateKeypair()
	require.NoError(t, err)
	m.Secret = manifest.Secret(secretBytes)
	m.HasSender = false
	m.HasRecipient = false

	kr := &fakeKeyring{}
	key, err := DeriveKey(kr, &m)
	require.NoError(t, err)
	assert.Equal(t, DeriveKeySelf(m.Secret), key)
}

func TestDeriveNonceDeterministicAndDistinctByVersion(t *testing.T) {
	var bid manifest.BID
	copy(bid[:], bytes.Repeat([]byte{0x42}, manifest.BIDSize))

	n0a := DeriveNonce(bid, 0)
	n0b := DeriveNonce(bid, 0)
	assert.Equal(t, n0a, n0b)

	n1 := DeriveNonce(bid, 1)
	assert.NotEqual(t, n0a, n1)
}

func TestNonceForManifestPinsJournalToVersionZero(t *testing.T) {
	var bid manifest.BID
	copy(bid[:], bytes.Repeat([]byte{0x07}, manifest.BIDSize))

	m := manifest.Manifest{BID: bid, IsJournal: true, Version: 5}
	assert.Equal(t, DeriveNonce(bid, 0), NonceForManifest(&m))

	m2 := manifest.Manifest{BID: bid, IsJournal: false, Version: 5}
	assert.Equal(t, DeriveNonce(bid, 5), NonceForManifest(&m2))
}

func TestAddOffsetCarryPropagation(t *testing.T) {
	var base [manifest.PayloadNonceSize]byte
	for i := range base {
		base[i] = 0xFF
	}
	out := addOffset(base, 1)
	var want [manifest.PayloadNonceSize]byte
	assert.Equal(t, want, out, "adding 1 to an all-0xFF nonce must carry all the way through")
}

func TestCryptRoundTripFullPages(t *testing.T) {
	var key [manifest.PayloadKeySize]byte
	var nonce [manifest.PayloadNonceSize]byte
	for i := range key {
		key[i] = byte(i)
	}

	plaintext := make([]byte, manifest.PageSize*3)
	rand.New(rand.NewSource(1)).Read(plaintext)

	ciphertext := append([]byte(nil), plaintext...)
	require.NoError(t, Crypt(key, nonce, 0, ciphertext))
	assert.NotEqual(t, plaintext, ciphertext)

	decrypted := append([]byte(nil), ciphertext...)
	require.NoError(t, Crypt(key, nonce, 0, decrypted))
	assert.Equal(t, plaintext, decrypted)
}

func TestCryptRandomAccessMatchesSequential(t *testing.T) {
	var key [manifest.PayloadKeySize]byte
	var nonce [manifest.PayloadNonceSize]byte
	for i := range key {
		key[i] = byte(i + 7)
	}

	size := manifest.PageSize*2 + 500
	plaintext := make([]byte, size)
	rand.New(rand.NewSource(2)).Read(plaintext)

	full := append([]byte(nil), plaintext...)
	require.NoError(t, Crypt(key, nonce, 0, full))

	// Encrypt the same plaintext in two ranges that straddle a page
	// boundary and confirm the result matches the single full-range pass.
	piecewise := append([]byte(nil), plaintext...)
	split := manifest.PageSize + 100
	require.NoError(t, Crypt(key, nonce, 0, piecewise[:split]))
	require.NoError(t, Crypt(key, nonce, uint64(split), piecewise[split:]))

	assert.Equal(t, full, piecewise)
}

func TestCryptUnalignedSingleByteRoundTrip(t *testing.T) {
	var key [manifest.PayloadKeySize]byte
	var nonce [manifest.PayloadNonceSize]byte

	payload := make([]byte, manifest.PageSize+10)
	rand.New(rand.NewSource(3)).Read(payload)
	original := append([]byte(nil), payload...)

	// Encrypt the whole payload first.
	require.NoError(t, Crypt(key, nonce, 0, payload))

	// Then decrypt a single unaligned byte in the middle of the second
	// page and confirm it recovers the original byte without touching its
	// neighbors.
	idx := uint64(manifest.PageSize + 5)
	one := append([]byte(nil), payload[idx:idx+1]...)
	require.NoError(t, Crypt(key, nonce, idx, one))
	assert.Equal(t, original[idx], one[0])
}

func TestCryptXORBlockRejectsUnalignedOffset(t *testing.T) {
	var key [manifest.PayloadKeySize]byte
	var nonce [manifest.PayloadNonceSize]byte
	buf := make([]byte, 10)
	err := CryptXORBlock(key, nonce, 1, buf)
	assert.ErrorIs(t, err, manifest.ErrInvalidInput)
}
