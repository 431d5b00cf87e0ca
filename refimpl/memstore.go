package refimpl

import (
	"sync"

	"github.com/meshrelay/bundlecrypto/manifest"
)

// storedRow is the subset of a manifest row MemStore persists: only the
// public fields a lookup by BID is allowed to reveal.
type storedRow struct {
	author       manifest.SID
	hasAuthor    bool
	bundleKey    manifest.BK
	hasBundleKey bool
	insertTime   int64
}

// MemStore is a goroutine-safe, in-memory manifest database. It satisfies
// the Store interface declared by package bundleid and the AuthorStore
// interface declared by package author.
type MemStore struct {
	mu   sync.RWMutex
	rows map[manifest.BID]storedRow
}

// NewMemStore returns an empty store.
func NewMemStore() *MemStore {
	return &MemStore{rows: map[manifest.BID]storedRow{}}
}

// Put inserts or replaces the row for m.BID, capturing its current
// BundleKey and Author fields and stamping an insert time.
func (s *MemStore) Put(m *manifest.Manifest, insertTime int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[m.BID] = storedRow{
		author:       m.Author,
		hasAuthor:    m.HasAuthor,
		bundleKey:    m.BundleKey,
		hasBundleKey: m.HasBundleKey,
		insertTime:   insertTime,
	}
}

// RetrieveManifest implements bundleid.Store.
func (s *MemStore) RetrieveManifest(bid manifest.BID, m *manifest.Manifest) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row, ok := s.rows[bid]
	if !ok {
		return false, nil
	}
	m.Author = row.author
	m.HasAuthor = row.hasAuthor
	m.BundleKey = row.bundleKey
	m.HasBundleKey = row.hasBundleKey
	insertTime := row.insertTime
	m.InsertTime = &insertTime
	return true, nil
}

// UpdateAuthor implements author.AuthorStore.
func (s *MemStore) UpdateAuthor(bid manifest.BID, author manifest.SID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.rows[bid]
	row.author = author
	row.hasAuthor = true
	s.rows[bid] = row
	return nil
}
