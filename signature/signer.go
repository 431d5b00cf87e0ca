// Package signature produces and verifies the trailing signature blocks
// appended to a manifest's serialized text, using a fixed-size verifier
// cache to avoid re-checking a signature this process has already seen.
package signature

import (
	"fmt"

	"github.com/meshrelay/bundlecrypto/internal/telemetry"
	"github.com/meshrelay/bundlecrypto/manifest"
	"github.com/meshrelay/bundlecrypto/primitives"
)

var log = telemetry.Component("signature")

// Block is the decoded form of one tag-0x17 signature block: a 64-byte raw
// Ed25519 signature together with the 32-byte public key of its signatory.
type Block struct {
	Signatory manifest.BID
	Signature [manifest.SignatureSize]byte
}

// Sign produces a tag-0x17 signature block over m's manifest hash using
// secret, with signatory set to secret's own BID (bytes [32:64) of the
// expanded secret key).
func Sign(m *manifest.Manifest, secret manifest.Secret) (Block, error) {
	if secret.IsZero() {
		return Block{}, fmt.Errorf("signature: sign: %w", manifest.ErrMissingSecret)
	}
	var signatory manifest.BID
	copy(signatory[:], secret[32:])

	sig := primitives.Sign([64]byte(secret), m.ManifestHash)
	return Block{Signatory: signatory, Signature: sig}, nil
}

// Encode serializes a Block to its 97-byte wire form: 1 tag byte, 64
// signature bytes, 32 signatory bytes.
func Encode(b Block) [manifest.SignatureBlockLen]byte {
	var out [manifest.SignatureBlockLen]byte
	out[0] = manifest.SignatureBlockTag
	copy(out[1:65], b.Signature[:])
	copy(out[65:97], b.Signatory[:])
	return out
}

// Decode parses a 97-byte tag-0x17 signature block. It returns
// ErrCorrupt if buf is the wrong length or carries an unrecognized tag.
func Decode(buf []byte) (Block, error) {
	if len(buf) != manifest.SignatureBlockLen {
		return Block{}, fmt.Errorf("signature: decode: %w: wrong block length %d", manifest.ErrCorrupt, len(buf))
	}
	if buf[0] != manifest.SignatureBlockTag {
		return Block{}, fmt.Errorf("signature: decode: %w: unrecognized tag 0x%02x", manifest.ErrCorrupt, buf[0])
	}
	var b Block
	copy(b.Signature[:], buf[1:65])
	copy(b.Signatory[:], buf[65:97])
	return b, nil
}

// Verify checks b's signature against hash using a VerifierCache to skip
// primitive verification for a (hash, signature) pair this process has
// already confirmed. It returns true if the signature is valid.
func Verify(cache *VerifierCache, hash [manifest.HashSize]byte, b Block) bool {
	if cache != nil {
		if ok, known := cache.Lookup(hash, b.Signature); known {
			return ok
		}
	}
	ok := primitives.Open(b.Signatory, hash, b.Signature)
	if cache != nil {
		cache.Insert(hash, b.Signature, ok)
	}
	if !ok {
		log.Debug("verify: signature rejected")
	}
	return ok
}
