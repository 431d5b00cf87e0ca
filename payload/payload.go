// Package payload derives the symmetric key and nonce protecting a
// bundle's payload bytes and performs page-aligned, random-access XSalsa20
// encryption and decryption over arbitrary byte ranges of that payload.
package payload

import (
	"encoding/binary"
	"fmt"

	"github.com/meshrelay/bundlecrypto/internal/telemetry"
	"github.com/meshrelay/bundlecrypto/manifest"
	"github.com/meshrelay/bundlecrypto/primitives"
)

var log = telemetry.Component("payload")

// PageSize is the page-alignment granularity for Crypt, re-exported here
// from manifest for callers that only import this package.
const PageSize = manifest.PageSize

// Keyring is the subset of the external identity store this package needs
// to derive a directed-mode payload key: the Curve25519 precomputed shared
// secret between two parties.
type Keyring interface {
	GetNMBytes(local, peer manifest.SID) (nm [32]byte, ok bool)
}

// DeriveKeySelf derives the payload key for a bundle the author encrypted
// for themself: SHA512("sasquatch" || secret)[0:32].
func DeriveKeySelf(secret manifest.Secret) [manifest.PayloadKeySize]byte {
	h := primitives.SHA512([]byte(manifest.SelfKeyDomainTag), secret[:])
	var key [manifest.PayloadKeySize]byte
	copy(key[:], h[:manifest.PayloadKeySize])
	return key
}

// DeriveKeyDirected derives the payload key for a bundle directed from
// sender to recipient (or vice versa): SHA512(nm)[0:32], where nm is the
// Curve25519 precomputed shared secret the keyring holds for the pair.
// GetNMBytes requires the local identity in its first argument, and
// either sender or recipient may be the local one, so both orderings are
// tried before giving up.
func DeriveKeyDirected(kr Keyring, sender, recipient manifest.SID) ([manifest.PayloadKeySize]byte, error) {
	nm, ok := kr.GetNMBytes(sender, recipient)
	if !ok {
		nm, ok = kr.GetNMBytes(recipient, sender)
	}
	if !ok {
		return [manifest.PayloadKeySize]byte{}, fmt.Errorf("payload: derive key directed: %w", manifest.ErrPartiesUnknown)
	}
	h := primitives.SHA512(nm[:])
	var key [manifest.PayloadKeySize]byte
	copy(key[:], h[:manifest.PayloadKeySize])
	return key, nil
}

// DeriveKey picks DeriveKeyDirected when the manifest names both a sender
// and a recipient and at least one is locally resolvable via kr, falling
// back to DeriveKeySelf otherwise. This mirrors the authorship model: a
// bundle with no declared counterparty is addressed to its own author.
func DeriveKey(kr Keyring, m *manifest.Manifest) ([manifest.PayloadKeySize]byte, error) {
	if m.HasSender && m.HasRecipient {
		key, err := DeriveKeyDirected(kr, m.Sender, m.Recipient)
		if err == nil {
			return key, nil
		}
		log.Debug("derive key: directed derivation unavailable, falling back to self", telemetry.Error(err))
	}
	if m.Secret.IsZero() {
		return [manifest.PayloadKeySize]byte{}, fmt.Errorf("payload: derive key: %w", manifest.ErrMissingSecret)
	}
	return DeriveKeySelf(m.Secret), nil
}

// DeriveNonce computes the base nonce for version v of bid's payload:
// SHA512(write_uint64(v) || bid || write_uint64(v))[0:24]. A journal
// bundle pins v to 0 (see NonceForManifest) so every append shares one
// nonce space; a non-journal bundle uses its current version, since it is
// immutable once sealed.
func DeriveNonce(bid manifest.BID, v uint64) [manifest.PayloadNonceSize]byte {
	var vbuf [8]byte
	binary.BigEndian.PutUint64(vbuf[:], v)

	h := primitives.SHA512(vbuf[:], bid[:], vbuf[:])
	var nonce [manifest.PayloadNonceSize]byte
	copy(nonce[:], h[:manifest.PayloadNonceSize])
	return nonce
}

// NonceForManifest applies the journal-pinning rule: journal bundles
// always derive their nonce from version 0, non-journal bundles from
// their own version.
func NonceForManifest(m *manifest.Manifest) [manifest.PayloadNonceSize]byte {
	v := m.Version
	if m.IsJournal {
		v = 0
	}
	return DeriveNonce(m.BID, v)
}

// addOffset adds offset (in bytes) to a big-endian nonce, with full carry
// propagation across all 24 bytes. This is how Crypt derives the nonce for
// page N from the payload's base nonce: by adding N*PageSize, never by
// incrementing a per-block counter by one.
func addOffset(base [manifest.PayloadNonceSize]byte, offset uint64) [manifest.PayloadNonceSize]byte {
	out := base
	carry := offset
	for i := manifest.PayloadNonceSize - 1; i >= 0 && carry > 0; i-- {
		sum := uint64(out[i]) + (carry & 0xFF)
		out[i] = byte(sum)
		carry = (carry >> 8) + (sum >> 8)
	}
	return out
}

// CryptXORBlock XORs a single page's worth of bytes in place. page must
// be within [0, PageSize]; it may be shorter than PageSize only for the
// final partial page of a payload. offset is the page's absolute byte
// offset into the payload and must be a multiple of PageSize.
func CryptXORBlock(key [manifest.PayloadKeySize]byte, baseNonce [manifest.PayloadNonceSize]byte, offset uint64, page []byte) error {
	if offset%manifest.PageSize != 0 {
		return fmt.Errorf("payload: crypt xor block: %w: offset %d is not page-aligned", manifest.ErrInvalidInput, offset)
	}
	if len(page) > manifest.PageSize {
		return fmt.Errorf("payload: crypt xor block: %w: page length %d exceeds page size", manifest.ErrInvalidInput, len(page))
	}
	nonce := addOffset(baseNonce, offset)
	primitives.XSalsa20XOR(page, page, key, nonce)
	return nil
}

// Crypt XORs the byte range [offset, offset+len(buf)) of a payload in
// place using key and baseNonce, supporting random access at arbitrary,
// non-page-aligned offsets and lengths. XSalsa20 is its own inverse, so
// the same call encrypts or decrypts.
//
// Each PageSize-aligned page of the payload is XORed against the
// keystream produced by the nonce for that page (baseNonce plus the
// page's byte offset, not an incrementing block counter), so any page can
// be recovered independently of the others. A buf that starts or ends
// mid-page is handled by XORing a full scratch page and copying out only
// the requested slice, which keeps the keystream identical to what a
// page-aligned caller would see.
func Crypt(key [manifest.PayloadKeySize]byte, baseNonce [manifest.PayloadNonceSize]byte, offset uint64, buf []byte) error {
	if len(buf) == 0 {
		return nil
	}

	pos := 0
	abs := offset
	for pos < len(buf) {
		pageStart := (abs / manifest.PageSize) * manifest.PageSize
		inPage := int(abs - pageStart)
		n := manifest.PageSize - inPage
		if remaining := len(buf) - pos; n > remaining {
			n = remaining
		}

		if inPage == 0 && n == manifest.PageSize {
			if err := CryptXORBlock(key, baseNonce, pageStart, buf[pos:pos+n]); err != nil {
				return err
			}
		} else {
			var scratch [manifest.PageSize]byte
			copy(scratch[inPage:inPage+n], buf[pos:pos+n])
			if err := CryptXORBlock(key, baseNonce, pageStart, scratch[:]); err != nil {
				return err
			}
			copy(buf[pos:pos+n], scratch[inPage:inPage+n])
		}

		pos += n
		abs += uint64(n)
	}
	return nil
}
