// Package bundlecrypto is the bundle cryptography core of a store-and-forward
// content distribution system for delay-tolerant mesh networks.
//
// It is deliberately narrow: it creates and reconstitutes per-bundle Ed25519
// keypairs, binds authorship by wrapping a bundle secret under an
// author-owned rhizome secret, produces and verifies manifest signature
// blocks, and derives symmetric payload keys and nonces for page-aligned
// XSalsa20 payload encryption. Everything else - the manifest/bundle
// database, the keyring that stores identities and rhizome secrets,
// manifest text parsing, transports and CLIs - lives outside this module
// and is consumed only through the interfaces declared by the subpackages
// that need them.
//
// The actual implementations live in subpackages:
//   - primitives: thin, deterministic adaptor over the Ed25519/SHA-512/
//     XSalsa20/Curve25519 primitive suite.
//   - manifest: the mutable per-bundle record and its cryptographic
//     invariants, constants and error taxonomy.
//   - bundleid: BID/BK/bundle-secret conversions and keypair derivation.
//   - author: resolves a manifest's bundle key to a keyring identity.
//   - signature: signs manifests and verifies/caches/parses signature
//     blocks.
//   - payload: derives payload keys and nonces and performs random-access
//     XSalsa20 XOR over payload byte ranges.
//   - refimpl: in-memory reference implementations of the keyring/store
//     collaborators, useful for tests and examples.
package bundlecrypto
