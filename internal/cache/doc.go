// Package cache holds the entries of the query cache.
//
// # Overview
//
// The cache package owns every cached value. Readers and mutations never touch
// entries directly; they go through the query client, which uses the Store
// interface defined here. Tests inject a fresh MemoryStore per case so no
// state leaks between them.
//
// # Entries
//
// An Entry carries the last known value for a key and the metadata the query
// client needs to decide freshness:
//
//   - UpdatedAt: when the value was written; compared against StaleTime
//   - LastAccess: when a reader was last served; compared against GCTime
//   - Invalidated: set by invalidation; forces the next read to refetch
//   - Generation: bumped by invalidations and optimistic writes so a fetch
//     that started earlier can tell its result is outdated
//
// # Atomicity
//
// Single-key calls (Get, Put, Delete) are linearizable. Update runs a whole
// batch under the store's write lock, which is how multi-key invalidation and
// compare-then-write of fetch results are made atomic:
//
//	store.Update(func(tx cache.Tx) error {
//	    for _, k := range tx.Keys() {
//	        if k.HasPrefix(prefix) {
//	            e, _ := tx.Get(k)
//	            e.Invalidated = true
//	            tx.Put(k, e)
//	        }
//	    }
//	    return nil
//	})
//
// Values are stored as given. Callers must treat them as immutable and
// produce new values instead of editing cached ones in place.
package cache
