// Package bundleid converts between a bundle's public identity (BID), its
// obfuscated form as stored in a manifest (BK) and the raw Ed25519 secret
// that signs on the author's behalf. It is the only package that knows how
// a rhizome secret masks a bundle secret.
package bundleid

import (
	"fmt"

	"github.com/meshrelay/bundlecrypto/internal/telemetry"
	"github.com/meshrelay/bundlecrypto/manifest"
	"github.com/meshrelay/bundlecrypto/primitives"
)

var log = telemetry.Component("bundleid")

// Store is the external manifest database collaborator. The core never
// opens a connection or issues SQL itself; it only calls this interface.
type Store interface {
	// RetrieveManifest looks up bid and, on a hit, populates the public
	// fields of m from the stored row. It reports whether the lookup was a
	// hit.
	RetrieveManifest(bid manifest.BID, m *manifest.Manifest) (hit bool, err error)
}

// CreateID draws a fresh random Ed25519 keypair, sets m.BID and m.Secret,
// and marks the secret as newly generated. It fails only if the underlying
// primitive fails.
func CreateID(m *manifest.Manifest) error {
	pub, secret, err := primitives.GenerateKeypair()
	if err != nil {
		log.Debug("create_id: keypair generation failed", telemetry.Error(err))
		return fmt.Errorf("bundleid: create id: %w: %w", manifest.ErrCryptoPrimitive, err)
	}
	m.BID = manifest.BID(pub)
	m.Secret = manifest.Secret(secret)
	m.HaveSecret = manifest.SecretNew
	return nil
}

// FromSeed deterministically derives a BID and secret from seed, then
// consults store for an existing manifest row under that BID. On a hit,
// HaveSecret is promoted to SecretExisting; on a miss it is left at
// SecretNew.
func FromSeed(m *manifest.Manifest, seed []byte, store Store) (hit bool, err error) {
	h := primitives.SHA512(seed)
	var manifestSeed [32]byte
	copy(manifestSeed[:], h[:32])

	bid := primitives.DerivePublic(manifestSeed)
	secret := primitives.ExpandSecret(manifestSeed)

	m.BID = manifest.BID(bid)
	m.Secret = manifest.Secret(secret)

	hit, err = store.RetrieveManifest(m.BID, m)
	if err != nil {
		m.ClearSecret()
		return false, fmt.Errorf("bundleid: from seed: retrieve manifest: %w", err)
	}
	if hit {
		m.HaveSecret = manifest.SecretExisting
	} else {
		m.HaveSecret = manifest.SecretNew
	}
	return hit, nil
}

// BKXorStream produces SHA512(rs || bid)[:outLen], the single point at
// which an author's rhizome secret enters bundle-key derivation.
func BKXorStream(bid manifest.BID, rs []byte, outLen int) ([]byte, error) {
	if len(rs) < 1 || len(rs) > 65536 {
		return nil, fmt.Errorf("bundleid: bk xor stream: %w: rhizome secret length %d out of range", manifest.ErrInvalidInput, len(rs))
	}
	if outLen < 1 || outLen > manifest.MaxBKXorStreamLen {
		return nil, fmt.Errorf("bundleid: bk xor stream: %w: output length %d out of range", manifest.ErrInvalidInput, outLen)
	}
	h := primitives.SHA512(rs, bid[:])
	out := make([]byte, outLen)
	copy(out, h[:outLen])
	return out, nil
}

// BKToSecret recovers the candidate bundle secret for bid under rs given
// bk, then verifies it against bid via the caller-supplied verify
// function. On any failure the candidate is zeroized before return and the
// zero value is handed back.
//
// verify is injected rather than imported from package author to avoid a
// cyclic dependency between bundleid and author; author.VerifyBundlePrivateKey
// satisfies this signature.
func BKToSecret(bid manifest.BID, rs []byte, bk manifest.BK, verify func(secret manifest.Secret, bid manifest.BID) bool) (manifest.Secret, bool, error) {
	stream, err := BKXorStream(bid, rs, manifest.BKSize)
	if err != nil {
		return manifest.Secret{}, false, err
	}
	defer zero(stream)

	var secret manifest.Secret
	for i := 0; i < manifest.BKSize; i++ {
		secret[i] = bk[i] ^ stream[i]
	}
	copy(secret[32:], bid[:])

	if !verify(secret, bid) {
		secret.Zero()
		return manifest.Secret{}, false, nil
	}
	return secret, true, nil
}

// SecretToBK is the inverse of BKToSecret. The caller already possesses
// secret, so no verification is performed.
func SecretToBK(bid manifest.BID, rs []byte, secret manifest.Secret) (manifest.BK, error) {
	stream, err := BKXorStream(bid, rs, manifest.BKSize)
	if err != nil {
		return manifest.BK{}, err
	}
	defer zero(stream)

	var bk manifest.BK
	for i := 0; i < manifest.BKSize; i++ {
		bk[i] = secret[i] ^ stream[i]
	}
	return bk, nil
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
