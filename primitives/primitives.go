// Package primitives is a thin, deterministic adaptor over the Ed25519,
// SHA-512, XSalsa20 and Curve25519 primitive suite the rest of the bundle
// cryptography core is built on. Nothing here touches a manifest, a
// keyring or a database; every function except GenerateKeypair, which
// draws from crypto/rand, is a pure transform over bytes.
package primitives

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha512"
	"fmt"

	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/salsa20"
)

// GenerateKeypair draws a fresh Ed25519 keypair. The returned secret is in
// the 64-byte expanded form (seed || public key) used throughout this
// module as the Bundle Secret representation.
func GenerateKeypair() (pub [32]byte, secret [64]byte, err error) {
	p, s, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return pub, secret, fmt.Errorf("primitives: generate keypair: %w", err)
	}
	copy(pub[:], p)
	copy(secret[:], s)
	return pub, secret, nil
}

// DerivePublic computes the Ed25519 public key for a 32-byte seed.
func DerivePublic(seed [32]byte) [32]byte {
	priv := ed25519.NewKeyFromSeed(seed[:])
	var pub [32]byte
	copy(pub[:], priv.Public().(ed25519.PublicKey))
	return pub
}

// ExpandSecret reconstructs the full 64-byte expanded secret key from a
// 32-byte seed, so that Sign below can operate on it directly.
func ExpandSecret(seed [32]byte) [64]byte {
	priv := ed25519.NewKeyFromSeed(seed[:])
	var out [64]byte
	copy(out[:], priv)
	return out
}

// Sign produces a raw 64-byte Ed25519 signature over hash, using the
// 64-byte expanded secret key (seed || public key).
func Sign(secret [64]byte, hash [64]byte) [64]byte {
	sig := ed25519.Sign(ed25519.PrivateKey(secret[:]), hash[:])
	var out [64]byte
	copy(out[:], sig)
	return out
}

// Open verifies a raw 64-byte Ed25519 signature over hash against pub.
func Open(pub [32]byte, hash [64]byte, sig [64]byte) bool {
	return ed25519.Verify(ed25519.PublicKey(pub[:]), hash[:], sig[:])
}

// SHA512 hashes the concatenation of parts.
func SHA512(parts ...[]byte) [64]byte {
	h := sha512.New()
	for _, p := range parts {
		h.Write(p)
	}
	var out [64]byte
	copy(out[:], h.Sum(nil))
	return out
}

// XSalsa20XOR XORs src with the XSalsa20 keystream for key/nonce, starting
// at keystream offset 0, and writes the result to dst. dst and src may
// alias. Callers that need a keystream starting at a non-zero absolute
// offset must derive a nonce for that offset themselves (see payload.Crypt).
func XSalsa20XOR(dst, src []byte, key [32]byte, nonce [24]byte) {
	salsa20.XORKeyStream(dst, src, nonce[:], key[:])
}

// BeforeNM computes the Curve25519 scalar multiplication used as the
// "precomputed shared secret" a keyring backend would cache per peer. The
// core never calls this on a manifest's behalf directly - directed payload
// keys are obtained from the keyring's own GetNMBytes - but it is exposed
// here because it belongs to the primitive suite and a reference keyring
// implementation needs it.
func BeforeNM(localSecret [32]byte, peerPublic [32]byte) ([32]byte, error) {
	var out [32]byte
	shared, err := curve25519.X25519(localSecret[:], peerPublic[:])
	if err != nil {
		return out, fmt.Errorf("primitives: curve25519 scalarmult: %w", err)
	}
	copy(out[:], shared)
	return out, nil
}
