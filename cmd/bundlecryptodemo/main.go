// Command bundlecryptodemo wires the in-memory reference keyring and
// manifest store to the cryptographic core and walks one bundle through
// creation, authorship wrapping, signing and verification, and payload
// encryption, printing each step's outcome.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/meshrelay/bundlecrypto/author"
	"github.com/meshrelay/bundlecrypto/bundleid"
	"github.com/meshrelay/bundlecrypto/manifest"
	"github.com/meshrelay/bundlecrypto/payload"
	"github.com/meshrelay/bundlecrypto/primitives"
	"github.com/meshrelay/bundlecrypto/refimpl"
	"github.com/meshrelay/bundlecrypto/signature"
)

func main() {
	journal := flag.Bool("journal", false, "treat the demo bundle as a journal")
	payloadSize := flag.Int("payload-size", payload.PageSize+512, "demo payload size in bytes")
	flag.Parse()

	if err := run(*journal, *payloadSize); err != nil {
		fmt.Fprintln(os.Stderr, "bundlecryptodemo:", err)
		os.Exit(1)
	}
}

func run(journal bool, payloadSize int) error {
	kr := refimpl.NewMemKeyring()
	store := refimpl.NewMemStore()

	authorSID := manifest.SID{0x01}
	rs := []byte("demo author rhizome secret, comfortably long enough")
	if err := kr.AddIdentity(authorSID, rs, nil); err != nil {
		return fmt.Errorf("register author identity: %w", err)
	}

	var m manifest.Manifest
	if err := bundleid.CreateID(&m); err != nil {
		return fmt.Errorf("create bundle id: %w", err)
	}
	m.IsJournal = journal
	m.Version = 3
	fmt.Printf("created bundle %x (journal=%v version=%d)\n", m.BID, m.IsJournal, m.Version)

	secret := m.Secret
	bk, err := bundleid.SecretToBK(m.BID, rs, secret)
	if err != nil {
		return fmt.Errorf("wrap secret under rhizome secret: %w", err)
	}
	m.BundleKey = bk
	m.HasBundleKey = true
	m.ClearSecret()
	store.Put(&m, 1)
	fmt.Println("wrapped bundle secret into bundle key, cleared in-memory secret")

	if result := author.ExtractPrivateKey(kr, &m); result != author.ExtractOK {
		return fmt.Errorf("extract private key: unexpected result %v", result)
	}
	fmt.Println("recovered and verified bundle secret via keyring scan")

	resolvedAuthor, err := author.FindBundleAuthor(kr, store, &m)
	if err != nil {
		return fmt.Errorf("find bundle author: %w", err)
	}
	fmt.Printf("resolved author %x\n", resolvedAuthor)

	m.ManifestHash = primitives.SHA512([]byte("demo manifest body bytes"))
	block, err := signature.Sign(&m, m.Secret)
	if err != nil {
		return fmt.Errorf("sign manifest: %w", err)
	}
	cache := signature.NewVerifierCache()
	if !signature.Verify(cache, m.ManifestHash, block) {
		return fmt.Errorf("signature failed to verify")
	}
	fmt.Println("signed manifest hash and verified signature through the cache")

	key := payload.DeriveKeySelf(m.Secret)
	nonce := payload.NonceForManifest(&m)

	plaintext := make([]byte, payloadSize)
	for i := range plaintext {
		plaintext[i] = byte(i)
	}
	ciphertext := append([]byte(nil), plaintext...)
	if err := payload.Crypt(key, nonce, 0, ciphertext); err != nil {
		return fmt.Errorf("encrypt payload: %w", err)
	}
	decrypted := append([]byte(nil), ciphertext...)
	if err := payload.Crypt(key, nonce, 0, decrypted); err != nil {
		return fmt.Errorf("decrypt payload: %w", err)
	}
	if string(decrypted) != string(plaintext) {
		return fmt.Errorf("payload round trip mismatch")
	}
	fmt.Printf("encrypted and decrypted %d byte payload across %d pages\n", payloadSize, (payloadSize+payload.PageSize-1)/payload.PageSize)

	return nil
}
