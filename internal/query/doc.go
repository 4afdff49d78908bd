// Package query implements the read, mutation and optimistic update
// operations of the query cache that sits between the Ratel API and its
// consumers.
//
// # Overview
//
// A Client owns one cache.Store and coordinates every access to it:
//
//	┌───────────────────────────────────────────────┐
//	│                  query.Client                 │
//	├───────────────────────────────────────────────┤
//	│  Fetch      read, coalesced per key           │
//	│  Mutate     write + Invalidates | Patches     │
//	│  Invalidate atomic prefix invalidation        │
//	│  OptimisticUpdate / Snapshot.Restore          │
//	│  Subscribe  cache events for mounted readers  │
//	├───────────────────────────────────────────────┤
//	│  PolicyRegistry   kind → StaleTime/GCTime     │
//	│  Collector        periodic GC of idle entries │
//	└───────────────────────────────────────────────┘
//	                       │
//	                 cache.Store
//
// # Reads
//
// Fetch serves a cached value when it is present, not invalidated and
// younger than its policy's StaleTime. Otherwise the caller blocks on the
// key's fetch. Concurrent callers share one fetch (golang.org/x/sync/singleflight);
// a fetch is canceled only when every caller has abandoned it, and an
// abandoned fetch never writes the cache. Errors are never cached.
//
// # Writes
//
// Mutate runs a mutation with exactly one cache effect:
//
//   - Invalidates(keys...): after success, every entry under the keys is
//     marked stale in one atomic batch, so no reader sees a partially
//     invalidated state. A failed mutation invalidates nothing.
//   - Patches(patches...): pure transforms applied before the request is
//     sent. On failure they are reverted to the pre-mutation snapshot and
//     the error is returned.
//
// Any write to a key (invalidation, patch, SetQueryData, removal) detaches
// a fetch in flight for that key, so a response computed before the write
// cannot overwrite it.
//
// # Concurrency Model
//
// The client mutex guards in-flight fetches; the store's lock guards
// entries. Multi-key changes take the client mutex and then run as a single
// store batch. Subscribers are notified after both locks are released.
// Retries and timeouts are left to the transport.
package query
