package cache

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/exp/maps"

	"github.com/dreamware/ratelsync/internal/querykey"
)

// ErrNotFound is returned when no entry exists for a key
var ErrNotFound = errors.New("cache entry not found")

// Entry is the last known value for a key plus its freshness metadata
type Entry struct {
	Value       any       // Last value written for the key
	UpdatedAt   time.Time // When Value was written
	LastAccess  time.Time // Last time a reader was served from this entry
	Invalidated bool      // Marked stale; the next read must refetch
	Generation  uint64    // Bumped by every write that is not a fetch result
}

// Tx gives batch access to a store inside Update.
// It must not be used after Update returns.
type Tx interface {
	Get(key querykey.Key) (Entry, bool)
	Put(key querykey.Key, e Entry)
	Delete(key querykey.Key)
	Keys() []querykey.Key
}

// Store defines the interface for the query cache backing store
// All implementations must be thread-safe for concurrent access
type Store interface {
	// Get retrieves the entry for key
	// Returns ErrNotFound if the key has no entry
	Get(key querykey.Key) (Entry, error)

	// Put stores an entry, overwriting any existing one
	Put(key querykey.Key, e Entry) error

	// Delete removes an entry
	// No error if key doesn't exist
	Delete(key querykey.Key) error

	// Keys returns the keys of all entries
	// Order is not guaranteed
	Keys() []querykey.Key

	// Update runs fn with exclusive access to the store, so every read and
	// write it performs is observed by other callers as one atomic step.
	// The error returned by fn is returned unchanged.
	Update(fn func(tx Tx) error) error

	// Stats returns store statistics
	Stats() StoreStats
}

// StoreStats contains statistics about the store
type StoreStats struct {
	Entries int    // Number of entries
	Hits    uint64 // Get calls that found an entry
	Misses  uint64 // Get calls that found nothing
	Writes  uint64 // Put calls
	Deletes uint64 // Delete calls that removed an entry
}

type record struct {
	key   querykey.Key
	entry Entry
}

// MemoryStore implements Store with an in-process map
// Uses sync.RWMutex for thread-safe concurrent access
type MemoryStore struct {
	mu   sync.RWMutex       // Protects data
	data map[string]*record // Key hash -> record

	hits, misses, writes, deletes atomic.Uint64
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[string]*record),
	}
}

// Get retrieves the entry for key
func (m *MemoryStore) Get(key querykey.Key) (Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.get(key)
	if !ok {
		return Entry{}, ErrNotFound
	}
	return e, nil
}

// Put stores an entry for key
// The key is copied so later changes to the caller's slice are not observed
func (m *MemoryStore) Put(key querykey.Key, e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.put(key, e)
	return nil
}

// Delete removes the entry for key (idempotent)
func (m *MemoryStore) Delete(key querykey.Key) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.delete(key)
	return nil
}

// Keys returns a copy of all keys in the store
func (m *MemoryStore) Keys() []querykey.Key {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.keys()
}

// Update runs fn under the store's write lock
func (m *MemoryStore) Update(fn func(tx Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return fn(memoryTx{m})
}

// Stats returns storage statistics
func (m *MemoryStore) Stats() StoreStats {
	m.mu.RLock()
	n := len(m.data)
	m.mu.RUnlock()

	return StoreStats{
		Entries: n,
		Hits:    m.hits.Load(),
		Misses:  m.misses.Load(),
		Writes:  m.writes.Load(),
		Deletes: m.deletes.Load(),
	}
}

// The helpers below assume m.mu is held.

func (m *MemoryStore) get(key querykey.Key) (Entry, bool) {
	r, ok := m.data[key.Hash()]
	if !ok {
		m.misses.Add(1)
		return Entry{}, false
	}
	m.hits.Add(1)
	return r.entry, true
}

func (m *MemoryStore) put(key querykey.Key, e Entry) {
	m.writes.Add(1)
	m.data[key.Hash()] = &record{key: append(querykey.Key(nil), key...), entry: e}
}

func (m *MemoryStore) delete(key querykey.Key) {
	h := key.Hash()
	if _, ok := m.data[h]; ok {
		m.deletes.Add(1)
		delete(m.data, h)
	}
}

func (m *MemoryStore) keys() []querykey.Key {
	out := make([]querykey.Key, 0, len(m.data))
	for _, r := range maps.Values(m.data) {
		out = append(out, append(querykey.Key(nil), r.key...))
	}
	return out
}

type memoryTx struct{ m *MemoryStore }

func (t memoryTx) Get(key querykey.Key) (Entry, bool) { return t.m.get(key) }
func (t memoryTx) Put(key querykey.Key, e Entry)      { t.m.put(key, e) }
func (t memoryTx) Delete(key querykey.Key)            { t.m.delete(key) }
func (t memoryTx) Keys() []querykey.Key               { return t.m.keys() }
