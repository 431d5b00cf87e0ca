// Package author resolves a manifest's bundle key to a keyring identity:
// it walks known identities and their rhizome secrets looking for the one
// that unwraps the manifest's BK into a secret that verifies against the
// manifest's BID.
package author

import (
	"fmt"

	"github.com/meshrelay/bundlecrypto/bundleid"
	"github.com/meshrelay/bundlecrypto/internal/telemetry"
	"github.com/meshrelay/bundlecrypto/manifest"
	"github.com/meshrelay/bundlecrypto/primitives"
)

var log = telemetry.Component("author")

// Keyring is the external identity store collaborator. The core never
// persists an identity or a rhizome secret itself; it only asks for them.
type Keyring interface {
	// FindSID reports whether sid names a locally known identity.
	FindSID(sid manifest.SID) bool

	// IdentityFindKeytype returns the rhizome secret associated with sid,
	// if any is known for the "self" key type the bundle crypto core uses.
	IdentityFindKeytype(sid manifest.SID) (rs []byte, ok bool)

	// NextIdentity iterates known identities in an implementation-defined
	// but stable order. Called with cursor == nil to start; returns a new
	// cursor and sid, or ok == false once exhausted.
	NextIdentity(cursor interface{}) (next interface{}, sid manifest.SID, ok bool)

	// GetNMBytes returns the Curve25519 precomputed shared secret between
	// the local identity local and peer, if both are resolvable.
	GetNMBytes(local, peer manifest.SID) (nm [32]byte, ok bool)
}

// AuthorStore is the external manifest database collaborator used only for
// the best-effort author-cache update FindBundleAuthor performs after a
// successful resolution.
type AuthorStore interface {
	UpdateAuthor(bid manifest.BID, author manifest.SID) error
}

// ExtractResult is the outcome code of ExtractPrivateKey.
type ExtractResult int

const (
	// ExtractError indicates an unexpected internal failure (-1 in the
	// specification's numbering; kept as its own named constant here since
	// Go enums do not by default admit negative sentinels gracefully).
	ExtractError ExtractResult = iota - 1
	// ExtractOK means a secret was produced and verified.
	ExtractOK
	// ExtractNotAuthorized means no candidate identity's rhizome secret
	// unwrapped BK into a secret that verifies against BID.
	ExtractNotAuthorized
	// ExtractSecretMismatch means a secret was already present on the
	// manifest but does not verify against BID.
	ExtractSecretMismatch
	// ExtractMissingSecret means neither a BK nor a secret was available.
	ExtractMissingSecret
	// ExtractCryptoFailure means a primitive operation failed outright.
	ExtractCryptoFailure
)

// VerifyBundlePrivateKey reports whether secret's derived public key
// equals bid. It is also handed to package bundleid as the verification
// callback for BKToSecret, keeping the verification logic in one place.
func VerifyBundlePrivateKey(secret manifest.Secret, bid manifest.BID) bool {
	if secret.IsZero() {
		return false
	}
	pub := primitives.DerivePublic(secret.Seed())
	return manifest.BID(pub) == bid
}

// FindSecret searches kr's known identities for one whose rhizome secret
// unwraps m.BundleKey into a secret verifying against m.BID. It returns
// the owning identity on success.
func FindSecret(kr Keyring, m *manifest.Manifest) (sid manifest.SID, secret manifest.Secret, found bool, err error) {
	if !m.HasBundleKey {
		return sid, secret, false, fmt.Errorf("author: find secret: %w", manifest.ErrMissingSecret)
	}

	var cursor interface{}
	for {
		var candidate manifest.SID
		var ok bool
		cursor, candidate, ok = kr.NextIdentity(cursor)
		if !ok {
			break
		}
		rs, has := kr.IdentityFindKeytype(candidate)
		if !has {
			continue
		}
		cand, verified, err := bundleid.BKToSecret(m.BID, rs, m.BundleKey, VerifyBundlePrivateKey)
		if err != nil {
			log.Debug("find secret: candidate identity rejected", telemetry.Error(err))
			continue
		}
		if verified {
			return candidate, cand, true, nil
		}
	}
	return sid, secret, false, nil
}

// ExtractPrivateKey implements the decision table for recovering or
// validating m's secret:
//
//	HasBundleKey && no existing secret   -> search the keyring, set m.Secret on success
//	HasBundleKey && existing secret      -> re-verify the existing secret
//	!HasBundleKey && existing secret     -> verify the existing secret in place
//	!HasBundleKey && no secret           -> ExtractMissingSecret
func ExtractPrivateKey(kr Keyring, m *manifest.Manifest) ExtractResult {
	if m.HaveSecret != manifest.SecretUnknown && !m.Secret.IsZero() {
		if VerifyBundlePrivateKey(m.Secret, m.BID) {
			m.HaveSecret = manifest.SecretExisting
			return ExtractOK
		}
		m.ClearSecret()
		return ExtractSecretMismatch
	}

	if !m.HasBundleKey {
		m.ClearSecret()
		return ExtractMissingSecret
	}

	_, secret, found, err := FindSecret(kr, m)
	if err != nil {
		log.Error("extract private key: search failed", telemetry.Error(err))
		m.ClearSecret()
		return ExtractCryptoFailure
	}
	if !found {
		m.ClearSecret()
		return ExtractNotAuthorized
	}
	m.Secret = secret
	m.HaveSecret = manifest.SecretExisting
	return ExtractOK
}

// FindBundleAuthor resolves m's author identity. If m.HasAuthor is already
// set and kr recognizes it, that identity is trusted as-is. Otherwise it
// falls back to ExtractPrivateKey-style search: the identity whose rhizome
// secret unwraps the bundle key becomes the author. On a freshly resolved
// author, store (if non-nil) is given a best-effort opportunity to persist
// the association; a failure there is logged but not fatal.
func FindBundleAuthor(kr Keyring, store AuthorStore, m *manifest.Manifest) (manifest.SID, error) {
	if m.HasAuthor && kr.FindSID(m.Author) {
		return m.Author, nil
	}

	sid, secret, found, err := FindSecret(kr, m)
	if err != nil {
		m.ClearSecret()
		return manifest.SID{}, fmt.Errorf("author: find bundle author: %w", err)
	}
	if !found {
		m.ClearSecret()
		return manifest.SID{}, fmt.Errorf("author: find bundle author: %w", manifest.ErrNotAuthorized)
	}

	m.Author = sid
	m.HasAuthor = true
	if m.HaveSecret == manifest.SecretUnknown {
		m.Secret = secret
		m.HaveSecret = manifest.SecretExisting
	} else {
		secret.Zero()
	}

	if store != nil && m.InsertTime != nil {
		if err := store.UpdateAuthor(m.BID, sid); err != nil {
			log.Warn("find bundle author: best-effort author update failed", telemetry.Error(err))
		}
	}

	return sid, nil
}
