// Package refimpl provides in-memory reference implementations of the
// Keyring and Store collaborator interfaces the rest of this module only
// consumes as interfaces. They exist for tests and examples; a production
// deployment backs these interfaces with its own keyring and manifest
// database instead.
package refimpl

import (
	"fmt"
	"sort"
	"sync"

	"golang.org/x/crypto/curve25519"

	"github.com/meshrelay/bundlecrypto/manifest"
	"github.com/meshrelay/bundlecrypto/primitives"
)

// curvePublic computes the Curve25519 public key for a secret key.
func curvePublic(secret [32]byte) ([32]byte, error) {
	var pub [32]byte
	p, err := curve25519.X25519(secret[:], curve25519.Basepoint)
	if err != nil {
		return pub, err
	}
	copy(pub[:], p)
	return pub, nil
}

// identityRecord is one locally known identity: its rhizome secret and its
// Curve25519 secret key, used to derive precomputed DH shared secrets with
// other known identities on demand.
type identityRecord struct {
	rs         []byte
	curve25519 [32]byte
	hasCurve   bool
}

// MemKeyring is a goroutine-safe, in-memory Keyring. It satisfies the
// Keyring interfaces declared by packages author and payload.
type MemKeyring struct {
	mu         sync.RWMutex
	identities map[manifest.SID]identityRecord
	order      []manifest.SID
}

// NewMemKeyring returns an empty keyring.
func NewMemKeyring() *MemKeyring {
	return &MemKeyring{identities: map[manifest.SID]identityRecord{}}
}

// AddIdentity registers sid with rhizome secret rs. curve25519Secret, if
// non-nil, lets GetNMBytes compute a precomputed DH shared secret for sid
// against other identities that also supplied one.
func (k *MemKeyring) AddIdentity(sid manifest.SID, rs []byte, curve25519Secret *[32]byte) error {
	if len(rs) < manifest.MinRhizomeSecretLen || len(rs) > manifest.MaxRhizomeSecretLen {
		return fmt.Errorf("refimpl: add identity: %w: rhizome secret length %d out of range", manifest.ErrInvalidInput, len(rs))
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	rec := identityRecord{rs: append([]byte(nil), rs...)}
	if curve25519Secret != nil {
		rec.curve25519 = *curve25519Secret
		rec.hasCurve = true
	}
	if _, exists := k.identities[sid]; !exists {
		k.order = append(k.order, sid)
	}
	k.identities[sid] = rec
	return nil
}

// FindSID reports whether sid is a known local identity.
func (k *MemKeyring) FindSID(sid manifest.SID) bool {
	k.mu.RLock()
	defer k.mu.RUnlock()
	_, ok := k.identities[sid]
	return ok
}

// IdentityFindKeytype returns sid's rhizome secret.
func (k *MemKeyring) IdentityFindKeytype(sid manifest.SID) ([]byte, bool) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	rec, ok := k.identities[sid]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), rec.rs...), true
}

// NextIdentity iterates identities in the stable order they were added.
func (k *MemKeyring) NextIdentity(cursor interface{}) (interface{}, manifest.SID, bool) {
	k.mu.RLock()
	defer k.mu.RUnlock()

	i := 0
	if cursor != nil {
		i = cursor.(int)
	}
	if i >= len(k.order) {
		return nil, manifest.SID{}, false
	}
	return i + 1, k.order[i], true
}

// GetNMBytes computes the Curve25519 precomputed shared secret between
// local and peer if both registered a Curve25519 secret key.
func (k *MemKeyring) GetNMBytes(local, peer manifest.SID) ([32]byte, bool) {
	k.mu.RLock()
	localRec, ok1 := k.identities[local]
	peerRec, ok2 := k.identities[peer]
	k.mu.RUnlock()

	if !ok1 || !ok2 || !localRec.hasCurve || !peerRec.hasCurve {
		return [32]byte{}, false
	}

	peerPub, err := curvePublic(peerRec.curve25519)
	if err != nil {
		return [32]byte{}, false
	}
	nm, err := primitives.BeforeNM(localRec.curve25519, peerPub)
	if err != nil {
		return [32]byte{}, false
	}
	return nm, true
}

// Identities returns the set of known SIDs sorted in ascending byte order,
// for diagnostics and tests.
func (k *MemKeyring) Identities() []manifest.SID {
	k.mu.RLock()
	defer k.mu.RUnlock()
	out := append([]manifest.SID(nil), k.order...)
	sort.Slice(out, func(i, j int) bool { return string(out[i][:]) < string(out[j][:]) })
	return out
}
