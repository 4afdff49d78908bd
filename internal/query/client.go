package query

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/dreamware/ratelsync/internal/cache"
	"github.com/dreamware/ratelsync/internal/querykey"
)

var (
	// ErrTypeMismatch is returned when a cached value is not of the type the
	// caller asked for. It means two call sites disagree about a key.
	ErrTypeMismatch = errors.New("cached value has unexpected type")

	// ErrEmptyKey is returned for operations given a key with no segments.
	ErrEmptyKey = errors.New("query key cannot be empty")
)

// Client is the query cache: the single shared mutable resource between
// server data and its readers.
//
// A Client is created once per application instance (or once per test case
// with an isolated store) and is safe for concurrent use.
//
// Lock order: mu, then the store's lock. Subscribers are always notified
// after both are released.
type Client struct {
	store    cache.Store
	policies *PolicyRegistry
	fallback *Policy
	logger   *zap.Logger
	now      func() time.Time

	group singleflight.Group

	mu        sync.Mutex
	flights   map[string]*flight // key hash -> in-flight fetch
	detached  map[string]*flight // key hash -> last detached fetch still running
	overrides map[string]Policy  // key hash -> per-query policy
	nextID    uint64

	subMu  sync.RWMutex
	subs   map[uint64]subscription
	nextSu uint64

	fetches       atomic.Uint64
	hits          atomic.Uint64
	misses        atomic.Uint64
	invalidations atomic.Uint64
	rollbacks     atomic.Uint64
}

// flight is one network fetch shared by every reader of a key that arrived
// before it resolved.
type flight struct {
	id      string // singleflight key, unique per flight
	key     querykey.Key
	ctx     context.Context
	cancel  context.CancelFunc
	gen     uint64 // entry generation when the flight started
	policy  *Policy
	waiters int
	stale   bool          // key was invalidated or written while in flight
	after   chan struct{} // done of the detached fetch this one queues behind
	done    chan struct{} // closed when load returns
}

// Option configures a Client.
type Option func(*Client)

// WithStore injects the backing store. Tests pass a fresh store per case.
func WithStore(s cache.Store) Option {
	return func(c *Client) { c.store = s }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithPolicies sets the per-kind policy registry.
func WithPolicies(r *PolicyRegistry) Option {
	return func(c *Client) { c.policies = r }
}

// WithDefaultPolicy sets the policy of kinds with none registered. It is
// ignored when WithPolicies supplies a registry.
func WithDefaultPolicy(p Policy) Option {
	return func(c *Client) { c.fallback = &p }
}

// WithClock replaces time.Now, for tests that need to age entries.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// NewClient creates a query client. Without options it uses an empty
// MemoryStore, DefaultPolicy for every kind and a no-op logger.
func NewClient(opts ...Option) *Client {
	c := &Client{
		flights:   make(map[string]*flight),
		detached:  make(map[string]*flight),
		overrides: make(map[string]Policy),
		subs:      make(map[uint64]subscription),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.store == nil {
		c.store = cache.NewMemoryStore()
	}
	if c.policies == nil {
		fallback := DefaultPolicy
		if c.fallback != nil {
			fallback = *c.fallback
		}
		c.policies = NewPolicyRegistry(fallback)
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c
}

// Policies returns the client's policy registry.
func (c *Client) Policies() *PolicyRegistry { return c.policies }

// Query describes one read: the key it is cached under and how to fetch it.
type Query[T any] struct {
	Key querykey.Key
	Fn  func(ctx context.Context) (T, error)

	// Policy overrides the kind's registered policy for this key.
	Policy *Policy
}

func (q Query[T]) prefetch(ctx context.Context, c *Client) error {
	_, err := Fetch(ctx, c, q)
	return err
}

// Prefetchable is a read that Prefetch can run. Every Query[T] is one.
type Prefetchable interface {
	prefetch(ctx context.Context, c *Client) error
}

// Fetch returns the cached value for q.Key when it is fresh. Otherwise it
// blocks until the key's fetch resolves, caches the result and returns it.
//
// Concurrent callers for the same key share one fetch. A caller whose ctx
// ends stops waiting and gets ctx.Err(); when every caller of a fetch has
// gone, the fetch is canceled and its result is not cached. Errors from
// q.Fn are returned and never cached.
//
// Example:
//
//	space, err := query.Fetch(ctx, client, query.Query[*Space]{
//	    Key: querykey.Spaces.Detail(pk),
//	    Fn: func(ctx context.Context) (*Space, error) {
//	        var s Space
//	        return &s, api.Get(ctx, "/v3/spaces/"+pk, &s)
//	    },
//	})
func Fetch[T any](ctx context.Context, c *Client, q Query[T]) (T, error) {
	var zero T
	if len(q.Key) == 0 {
		return zero, ErrEmptyKey
	}
	if q.Fn == nil {
		return zero, fmt.Errorf("query %s: nil fetch function", q.Key)
	}

	policy := c.policies.Lookup(q.Key.Kind())
	if q.Policy != nil {
		policy = *q.Policy
	}

	v, err := c.fetch(ctx, q.Key, policy, q.Policy, func(ctx context.Context) (any, error) {
		return q.Fn(ctx)
	})
	if err != nil {
		return zero, err
	}
	return typed[T](q.Key, v)
}

// Prefetch runs several reads concurrently and returns the first error.
// Values land in the cache; use GetQueryData or Fetch to read them.
func (c *Client) Prefetch(ctx context.Context, queries ...Prefetchable) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, q := range queries {
		g.Go(func() error { return q.prefetch(gctx, c) })
	}
	return g.Wait()
}

func (c *Client) fetch(ctx context.Context, key querykey.Key, policy Policy, override *Policy, fn func(context.Context) (any, error)) (any, error) {
	if v, ok := c.cached(key, policy); ok {
		c.hits.Add(1)
		return v, nil
	}
	c.misses.Add(1)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	fl, ch := c.join(ctx, key, override, fn)
	select {
	case res := <-ch:
		c.leave(fl, false)
		return res.Val, res.Err
	case <-ctx.Done():
		c.leave(fl, true)
		return nil, ctx.Err()
	}
}

// cached returns the entry's value when it can be served without a fetch.
func (c *Client) cached(key querykey.Key, policy Policy) (any, bool) {
	var (
		v   any
		hit bool
	)
	now := c.now()
	_ = c.store.Update(func(tx cache.Tx) error {
		e, ok := tx.Get(key)
		if !ok || e.Invalidated || !policy.fresh(e.UpdatedAt, now) {
			return nil
		}
		e.LastAccess = now
		tx.Put(key, e)
		v, hit = e.Value, true
		return nil
	})
	return v, hit
}

// join attaches the caller to the key's in-flight fetch, starting one if
// there is none.
func (c *Client) join(ctx context.Context, key querykey.Key, override *Policy, fn func(context.Context) (any, error)) (*flight, <-chan singleflight.Result) {
	c.mu.Lock()
	defer c.mu.Unlock()

	h := key.Hash()
	fl := c.flights[h]
	if fl == nil || fl.ctx.Err() != nil {
		var gen uint64
		if e, err := c.store.Get(key); err == nil {
			gen = e.Generation
		}
		// The fetch outlives any single caller; it keeps their values but
		// is canceled only when the last waiter leaves.
		fctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		c.nextID++
		fl = &flight{
			id:     h + "#" + strconv.FormatUint(c.nextID, 10),
			key:    key,
			ctx:    fctx,
			cancel: cancel,
			gen:    gen,
			policy: override,
			done:   make(chan struct{}),
		}
		// At most one request per key: queue behind a detached fetch that
		// has not returned yet.
		if prev := c.detached[h]; prev != nil {
			fl.after = prev.done
		}
		c.flights[h] = fl
		c.logger.Debug("fetch started", zap.Stringer("key", key))
	}
	fl.waiters++

	// DoChan is called under mu so a flight removed from the map can never
	// be joined again; its id is not reused.
	ch := c.group.DoChan(fl.id, func() (any, error) { return c.load(fl, fn) })
	return fl, ch
}

// leave detaches a waiter. The last waiter to abandon cancels the fetch.
func (c *Client) leave(fl *flight, abandoned bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	fl.waiters--
	if !abandoned || fl.waiters > 0 {
		return
	}
	fl.cancel()
	h := fl.key.Hash()
	if c.flights[h] == fl {
		delete(c.flights, h)
		c.detached[h] = fl
	}
	c.logger.Debug("fetch abandoned", zap.Stringer("key", fl.key))
}

// load runs the fetch function and writes its result unless the flight was
// abandoned or overtaken by an invalidation or write in the meantime.
func (c *Client) load(fl *flight, fn func(context.Context) (any, error)) (any, error) {
	defer close(fl.done)
	// Waiting even when canceled keeps done ordered after every earlier
	// fetch of the key.
	if fl.after != nil {
		<-fl.after
	}

	var (
		v   any
		err = fl.ctx.Err()
	)
	if err == nil {
		c.fetches.Add(1)
		v, err = fn(fl.ctx)
	}

	c.mu.Lock()
	h := fl.key.Hash()
	if c.flights[h] == fl {
		delete(c.flights, h)
	}
	if c.detached[h] == fl {
		delete(c.detached, h)
	}
	abandoned := fl.ctx.Err() != nil
	fl.cancel()

	if err != nil {
		c.mu.Unlock()
		c.logger.Debug("fetch failed", zap.Stringer("key", fl.key), zap.Error(err))
		return nil, err
	}
	if abandoned || fl.stale {
		c.mu.Unlock()
		c.logger.Debug("fetch result discarded",
			zap.Stringer("key", fl.key),
			zap.Bool("abandoned", abandoned),
			zap.Bool("stale", fl.stale))
		return v, nil
	}

	written := false
	now := c.now()
	_ = c.store.Update(func(tx cache.Tx) error {
		if e, ok := tx.Get(fl.key); ok && e.Generation != fl.gen {
			return nil
		}
		tx.Put(fl.key, cache.Entry{
			Value:      v,
			UpdatedAt:  now,
			LastAccess: now,
			Generation: fl.gen,
		})
		written = true
		return nil
	})
	if written && fl.policy != nil {
		c.overrides[h] = *fl.policy
	}
	c.mu.Unlock()

	if written {
		c.logger.Debug("fetch cached", zap.Stringer("key", fl.key))
		c.emit(Event{Type: EventUpdated, Key: fl.key})
	}
	return v, nil
}

// staleFlights detaches in-flight fetches matching any prefix so their
// results are not written. The next read starts a new fetch, which waits
// for the detached one to return before issuing its request.
// Callers hold c.mu.
func (c *Client) staleFlights(match func(querykey.Key) bool) {
	for h, fl := range c.flights {
		if match(fl.key) {
			fl.stale = true
			delete(c.flights, h)
			c.detached[h] = fl
		}
	}
}

// Invalidate marks every entry under any of the given prefixes stale, in one
// atomic step: no reader can observe some of them invalidated and others
// not. In-flight fetches for those keys are detached so the next read
// fetches again.
func (c *Client) Invalidate(prefixes ...querykey.Key) {
	if len(prefixes) == 0 {
		return
	}
	match := matcher(prefixes)

	var hit []querykey.Key
	c.mu.Lock()
	_ = c.store.Update(func(tx cache.Tx) error {
		for _, k := range tx.Keys() {
			if !match(k) {
				continue
			}
			e, _ := tx.Get(k)
			e.Invalidated = true
			e.Generation++
			tx.Put(k, e)
			hit = append(hit, k)
		}
		return nil
	})
	c.staleFlights(match)
	c.mu.Unlock()

	c.invalidations.Add(1)
	c.logger.Debug("invalidated",
		zap.Stringers("prefixes", prefixes),
		zap.Int("entries", len(hit)))
	for _, k := range hit {
		c.emit(Event{Type: EventInvalidated, Key: k})
	}
}

// Remove deletes every entry under any of the given prefixes.
// An empty key removes everything.
func (c *Client) Remove(prefixes ...querykey.Key) {
	if len(prefixes) == 0 {
		return
	}
	match := matcher(prefixes)

	var gone []querykey.Key
	c.mu.Lock()
	_ = c.store.Update(func(tx cache.Tx) error {
		for _, k := range tx.Keys() {
			if match(k) {
				tx.Delete(k)
				gone = append(gone, k)
			}
		}
		return nil
	})
	for _, k := range gone {
		delete(c.overrides, k.Hash())
	}
	c.staleFlights(match)
	c.mu.Unlock()

	for _, k := range gone {
		c.emit(Event{Type: EventRemoved, Key: k})
	}
}

// Clear removes every entry. It ends the cache's lifecycle; the client
// stays usable and refills from the server.
func (c *Client) Clear() {
	c.Remove(querykey.Key{})
}

// Focus marks stale every entry whose policy refetches on window focus and
// whose StaleTime has elapsed, notifying subscribers so mounted readers
// refetch.
func (c *Client) Focus() {
	now := c.now()
	var hit []querykey.Key

	c.mu.Lock()
	_ = c.store.Update(func(tx cache.Tx) error {
		for _, k := range tx.Keys() {
			p := c.policyFor(k)
			if !p.RefetchOnWindowFocus {
				continue
			}
			e, _ := tx.Get(k)
			if e.Invalidated || p.fresh(e.UpdatedAt, now) {
				continue
			}
			e.Invalidated = true
			e.Generation++
			tx.Put(k, e)
			hit = append(hit, k)
		}
		return nil
	})
	c.staleFlights(func(k querykey.Key) bool {
		for _, h := range hit {
			if k.Equal(h) {
				return true
			}
		}
		return false
	})
	c.mu.Unlock()

	for _, k := range hit {
		c.emit(Event{Type: EventInvalidated, Key: k})
	}
}

// policyFor returns the effective policy of a cached key. Callers hold c.mu.
func (c *Client) policyFor(k querykey.Key) Policy {
	if p, ok := c.overrides[k.Hash()]; ok {
		return p
	}
	return c.policies.Lookup(k.Kind())
}

// GetQueryData returns the cached value for key without fetching, whether
// or not it is fresh.
func GetQueryData[T any](c *Client, key querykey.Key) (T, bool, error) {
	var zero T
	e, err := c.store.Get(key)
	if errors.Is(err, cache.ErrNotFound) {
		return zero, false, nil
	}
	if err != nil {
		return zero, false, err
	}
	v, err := typed[T](key, e.Value)
	if err != nil {
		return zero, false, err
	}
	return v, true, nil
}

// SetQueryData writes v as the fresh value for key, as if it had just been
// fetched. A fetch in flight for key will not overwrite it.
func SetQueryData[T any](c *Client, key querykey.Key, v T) error {
	if len(key) == 0 {
		return ErrEmptyKey
	}
	now := c.now()

	c.mu.Lock()
	_ = c.store.Update(func(tx cache.Tx) error {
		e, _ := tx.Get(key)
		tx.Put(key, cache.Entry{
			Value:      v,
			UpdatedAt:  now,
			LastAccess: now,
			Generation: e.Generation + 1,
		})
		return nil
	})
	c.staleFlights(func(k querykey.Key) bool { return k.Equal(key) })
	c.mu.Unlock()

	c.emit(Event{Type: EventUpdated, Key: key})
	return nil
}

// Stats describes the client's activity since creation.
type Stats struct {
	Entries       int    // Cached entries
	InFlight      int    // Fetches currently running
	Fetches       uint64 // Fetch functions invoked
	Hits          uint64 // Reads served from cache
	Misses        uint64 // Reads that needed a fetch
	Invalidations uint64 // Invalidate calls
	Rollbacks     uint64 // Optimistic patches reverted
}

// Stats returns a snapshot of the client's counters.
func (c *Client) Stats() Stats {
	c.mu.Lock()
	inFlight := len(c.flights)
	c.mu.Unlock()

	return Stats{
		Entries:       c.store.Stats().Entries,
		InFlight:      inFlight,
		Fetches:       c.fetches.Load(),
		Hits:          c.hits.Load(),
		Misses:        c.misses.Load(),
		Invalidations: c.invalidations.Load(),
		Rollbacks:     c.rollbacks.Load(),
	}
}

func typed[T any](key querykey.Key, v any) (T, error) {
	var zero T
	if v == nil {
		return zero, nil
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("%w: %s holds %T, want %T", ErrTypeMismatch, key, v, zero)
	}
	return t, nil
}

func matcher(prefixes []querykey.Key) func(querykey.Key) bool {
	return func(k querykey.Key) bool {
		for _, p := range prefixes {
			if k.HasPrefix(p) {
				return true
			}
		}
		return false
	}
}
