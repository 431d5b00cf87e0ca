package signature

import (
	"fmt"

	"github.com/meshrelay/bundlecrypto/internal/telemetry"
	"github.com/meshrelay/bundlecrypto/manifest"
)

// Parse walks the signature region of m - the bytes from m.ManifestBytes
// to m.ManifestAllBytes - decoding each tag-0x17 block in turn, verifying
// it against m.ManifestHash via cache, and recording its signatory on m.
// It does not stop at the first malformed or unverified block: each
// failure increments m.Errors (via AddSignatory's overflow path, or
// directly for a decode/verify failure) and parsing continues with the
// next block, so a relay can still learn about the signatures that are
// well-formed in a manifest that also carries a malformed or unverifiable
// block.
//
// It returns ErrCorrupt only if the signature region's length is not a
// multiple of the block size, since that leaves no way to resynchronize.
func Parse(m *manifest.Manifest, cache *VerifierCache) error {
	region := m.ManifestData[m.ManifestBytes:m.ManifestAllBytes]
	if len(region)%manifest.SignatureBlockLen != 0 {
		return fmt.Errorf("signature: parse: %w: signature region length %d is not a multiple of %d",
			manifest.ErrCorrupt, len(region), manifest.SignatureBlockLen)
	}

	count := len(region) / manifest.SignatureBlockLen
	for i := 0; i < count; i++ {
		start := i * manifest.SignatureBlockLen
		block, err := Decode(region[start : start+manifest.SignatureBlockLen])
		if err != nil {
			log.Debug("parse: skipping malformed block", telemetry.Error(err))
			m.Errors++
			continue
		}
		if !Verify(cache, m.ManifestHash, block) {
			m.Errors++
			continue
		}
		m.AddSignatory(block.Signatory)
	}
	return nil
}
