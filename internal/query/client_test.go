package query

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/ratelsync/internal/cache"
	"github.com/dreamware/ratelsync/internal/querykey"
)

type space struct {
	Pk    string
	Title string
}

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

// newTestClient returns a client with an isolated store and a fake clock.
func newTestClient(t *testing.T) (*Client, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	return NewClient(WithStore(cache.NewMemoryStore()), WithClock(clock.Now)), clock
}

// countingQuery returns a space query whose fetch count is recorded in n.
func countingQuery(pk, title string, n *atomic.Int32) Query[*space] {
	return Query[*space]{
		Key: querykey.Spaces.Detail(pk),
		Fn: func(ctx context.Context) (*space, error) {
			n.Add(1)
			return &space{Pk: pk, Title: title}, nil
		},
	}
}

func TestFetchCachesFreshValues(t *testing.T) {
	c, clock := newTestClient(t)
	ctx := context.Background()
	var n atomic.Int32
	q := countingQuery("sp_1", "Hello", &n)

	got, err := Fetch(ctx, c, q)
	require.NoError(t, err)
	assert.Equal(t, "Hello", got.Title)

	again, err := Fetch(ctx, c, q)
	require.NoError(t, err)
	assert.Same(t, got, again)
	assert.Equal(t, int32(1), n.Load(), "fresh value must be served from cache")

	// Past the default stale time the next read refetches.
	clock.Advance(DefaultPolicy.StaleTime)
	_, err = Fetch(ctx, c, q)
	require.NoError(t, err)
	assert.Equal(t, int32(2), n.Load())

	stats := c.Stats()
	assert.Equal(t, uint64(2), stats.Fetches)
	assert.Equal(t, uint64(1), stats.Hits)
	assert.Equal(t, uint64(2), stats.Misses)
	assert.Equal(t, 1, stats.Entries)
}

func TestFetchHonoursPolicies(t *testing.T) {
	t.Run("zero stale time always refetches", func(t *testing.T) {
		c, _ := newTestClient(t)
		var n atomic.Int32
		q := countingQuery("sp_1", "x", &n)
		q.Key = querykey.Spaces.Prerequisite("sp_1")
		q.Policy = &Policy{StaleTime: 0}

		for i := 0; i < 3; i++ {
			_, err := Fetch(context.Background(), c, q)
			require.NoError(t, err)
		}
		assert.Equal(t, int32(3), n.Load())
	})

	t.Run("registered kind policy", func(t *testing.T) {
		reg := NewPolicyRegistry(DefaultPolicy)
		require.NoError(t, reg.Register(querykey.KindSpaces, Policy{StaleTime: Forever}))
		clock := newFakeClock()
		c := NewClient(WithPolicies(reg), WithClock(clock.Now))
		var n atomic.Int32
		q := countingQuery("sp_1", "x", &n)

		_, err := Fetch(context.Background(), c, q)
		require.NoError(t, err)
		clock.Advance(24 * time.Hour)
		_, err = Fetch(context.Background(), c, q)
		require.NoError(t, err)

		assert.Equal(t, int32(1), n.Load())
		assert.Same(t, reg, c.Policies())
	})
}

func TestFetchDoesNotCacheErrors(t *testing.T) {
	c, _ := newTestClient(t)
	boom := errors.New("boom")
	calls := 0
	q := Query[*space]{
		Key: querykey.Spaces.Detail("sp_1"),
		Fn: func(ctx context.Context) (*space, error) {
			calls++
			if calls == 1 {
				return nil, boom
			}
			return &space{Pk: "sp_1"}, nil
		},
	}

	_, err := Fetch(context.Background(), c, q)
	assert.ErrorIs(t, err, boom)

	_, ok, err := GetQueryData[*space](c, q.Key)
	require.NoError(t, err)
	assert.False(t, ok, "errors must not be cached")

	got, err := Fetch(context.Background(), c, q)
	require.NoError(t, err)
	assert.Equal(t, "sp_1", got.Pk)
	assert.Equal(t, 2, calls)
}

func TestFetchCoalescesConcurrentReads(t *testing.T) {
	c, _ := newTestClient(t)
	var n atomic.Int32
	release := make(chan struct{})
	started := make(chan struct{})

	q := Query[*space]{
		Key: querykey.Spaces.Detail("sp_1"),
		Fn: func(ctx context.Context) (*space, error) {
			if n.Add(1) == 1 {
				close(started)
			}
			<-release
			return &space{Pk: "sp_1", Title: "shared"}, nil
		},
	}

	const readers = 8
	results := make([]*space, readers)
	var wg sync.WaitGroup
	for i := 0; i < readers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := Fetch(context.Background(), c, q)
			assert.NoError(t, err)
			results[i] = v
		}(i)
	}

	<-started
	// Wait until every reader has joined the flight before releasing it.
	require.Eventually(t, func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		fl := c.flights[q.Key.Hash()]
		return fl != nil && fl.waiters == readers
	}, time.Second, time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), n.Load(), "exactly one fetch for concurrent readers")
	for _, r := range results {
		assert.Same(t, results[0], r)
	}
	assert.Equal(t, 0, c.Stats().InFlight)
}

func TestFetchAbandonedByEveryReaderIsDiscarded(t *testing.T) {
	c, _ := newTestClient(t)
	fetchCtxDone := make(chan struct{})
	started := make(chan struct{})

	q := Query[*space]{
		Key: querykey.Spaces.Detail("sp_1"),
		Fn: func(ctx context.Context) (*space, error) {
			close(started)
			<-ctx.Done()
			close(fetchCtxDone)
			return &space{Pk: "sp_1"}, nil
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := Fetch(ctx, c, q)
		errCh <- err
	}()

	<-started
	cancel()

	assert.ErrorIs(t, <-errCh, context.Canceled)
	select {
	case <-fetchCtxDone:
	case <-time.After(time.Second):
		t.Fatal("fetch was not canceled after its only reader left")
	}

	require.Eventually(t, func() bool { return c.Stats().InFlight == 0 }, time.Second, time.Millisecond)
	_, ok, err := GetQueryData[*space](c, q.Key)
	require.NoError(t, err)
	assert.False(t, ok, "abandoned fetch must not write the cache")
}

func TestFetchSurvivesWhileOneReaderRemains(t *testing.T) {
	c, _ := newTestClient(t)
	release := make(chan struct{})
	var n atomic.Int32

	q := Query[*space]{
		Key: querykey.Spaces.Detail("sp_1"),
		Fn: func(ctx context.Context) (*space, error) {
			n.Add(1)
			select {
			case <-release:
				return &space{Pk: "sp_1", Title: "kept"}, nil
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		},
	}

	leaving, cancel := context.WithCancel(context.Background())
	leftErr := make(chan error, 1)
	go func() {
		_, err := Fetch(leaving, c, q)
		leftErr <- err
	}()

	stayed := make(chan *space, 1)
	go func() {
		v, err := Fetch(context.Background(), c, q)
		assert.NoError(t, err)
		stayed <- v
	}()

	require.Eventually(t, func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		fl := c.flights[q.Key.Hash()]
		return fl != nil && fl.waiters == 2
	}, time.Second, time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-leftErr, context.Canceled)
	close(release)

	v := <-stayed
	assert.Equal(t, "kept", v.Title)
	cached, ok, err := GetQueryData[*space](c, q.Key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Same(t, v, cached)
	assert.Equal(t, int32(1), n.Load())
}

func TestFetchCanceledBeforeStart(t *testing.T) {
	c, _ := newTestClient(t)
	var n atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Fetch(ctx, c, countingQuery("sp_1", "x", &n))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(0), n.Load())
}

func TestFetchRejectsBadQueries(t *testing.T) {
	c, _ := newTestClient(t)

	_, err := Fetch(context.Background(), c, Query[int]{Fn: func(context.Context) (int, error) { return 1, nil }})
	assert.ErrorIs(t, err, ErrEmptyKey)

	_, err = Fetch(context.Background(), c, Query[int]{Key: querykey.Feeds.All()})
	assert.Error(t, err)
}

func TestFetchTypeMismatch(t *testing.T) {
	c, _ := newTestClient(t)
	key := querykey.Spaces.Detail("sp_1")
	require.NoError(t, SetQueryData(c, key, "not a space"))

	_, err := Fetch(context.Background(), c, Query[*space]{
		Key: key,
		Fn:  func(context.Context) (*space, error) { return &space{}, nil },
	})
	assert.ErrorIs(t, err, ErrTypeMismatch)

	_, _, err = GetQueryData[*space](c, key)
	assert.ErrorIs(t, err, ErrTypeMismatch)
}

func TestInvalidateTriggersExactlyOneRefetch(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()
	var n atomic.Int32
	q := countingQuery("sp_1", "Hello", &n)

	_, err := Fetch(ctx, c, q)
	require.NoError(t, err)

	c.Invalidate(querykey.Spaces.All())

	e, err := c.store.Get(q.Key)
	require.NoError(t, err)
	assert.True(t, e.Invalidated)

	_, err = Fetch(ctx, c, q)
	require.NoError(t, err)
	assert.Equal(t, int32(2), n.Load(), "invalidated key refetches once")

	_, err = Fetch(ctx, c, q)
	require.NoError(t, err)
	assert.Equal(t, int32(2), n.Load(), "second read is served from cache")
	assert.Equal(t, uint64(1), c.Stats().Invalidations)
}

func TestInvalidateByPrefix(t *testing.T) {
	c, _ := newTestClient(t)
	keys := map[string]querykey.Key{
		"detail":       querykey.Spaces.Detail("sp_1"),
		"prerequisite": querykey.Spaces.Prerequisite("sp_1"),
		"list":         querykey.Spaces.List(nil),
		"other":        querykey.Spaces.Detail("sp_2"),
		"feed":         querykey.Feeds.List(nil),
	}
	for _, k := range keys {
		require.NoError(t, SetQueryData(c, k, 1))
	}

	c.Invalidate(querykey.Spaces.Detail("sp_1"))

	invalidated := func(name string) bool {
		e, err := c.store.Get(keys[name])
		require.NoError(t, err)
		return e.Invalidated
	}
	assert.True(t, invalidated("detail"))
	assert.True(t, invalidated("prerequisite"))
	assert.False(t, invalidated("list"))
	assert.False(t, invalidated("other"))
	assert.False(t, invalidated("feed"))

	// Invalidating nothing is a no-op.
	c.Invalidate()
	assert.Equal(t, uint64(1), c.Stats().Invalidations)
}

func TestInvalidateDuringFetchDiscardsResult(t *testing.T) {
	c, _ := newTestClient(t)
	started := make(chan struct{})
	release := make(chan struct{})
	var n atomic.Int32

	q := Query[*space]{
		Key: querykey.Spaces.Detail("sp_1"),
		Fn: func(ctx context.Context) (*space, error) {
			if n.Add(1) == 1 {
				close(started)
				<-release
				return &space{Title: "before"}, nil
			}
			return &space{Title: "after"}, nil
		},
	}

	first := make(chan *space, 1)
	go func() {
		v, err := Fetch(context.Background(), c, q)
		assert.NoError(t, err)
		first <- v
	}()

	<-started
	c.Invalidate(querykey.Spaces.All())
	close(release)

	// The reader that started before the invalidation still gets its value.
	assert.Equal(t, "before", (<-first).Title)

	_, ok, err := GetQueryData[*space](c, q.Key)
	require.NoError(t, err)
	assert.False(t, ok, "result of a fetch overtaken by invalidation must not be cached")

	v, err := Fetch(context.Background(), c, q)
	require.NoError(t, err)
	assert.Equal(t, "after", v.Title)
	assert.Equal(t, int32(2), n.Load())
}

func TestInvalidateKeepsOneRequestPerKey(t *testing.T) {
	c, _ := newTestClient(t)
	started := make(chan struct{})
	release := make(chan struct{})
	var calls, running, maxRunning atomic.Int32

	q := Query[*space]{
		Key: querykey.Spaces.Detail("sp_1"),
		Fn: func(ctx context.Context) (*space, error) {
			cur := running.Add(1)
			defer running.Add(-1)
			for {
				m := maxRunning.Load()
				if cur <= m || maxRunning.CompareAndSwap(m, cur) {
					break
				}
			}
			if calls.Add(1) == 1 {
				close(started)
				<-release
				return &space{Title: "before"}, nil
			}
			return &space{Title: "after"}, nil
		},
	}

	first := make(chan *space, 1)
	go func() {
		v, err := Fetch(context.Background(), c, q)
		assert.NoError(t, err)
		first <- v
	}()
	<-started

	c.Invalidate(querykey.Spaces.All())

	second := make(chan *space, 1)
	go func() {
		v, err := Fetch(context.Background(), c, q)
		assert.NoError(t, err)
		second <- v
	}()

	// The new reader has a flight of its own but must not issue its request
	// while the detached one is still running.
	require.Eventually(t, func() bool { return c.Stats().InFlight == 1 }, time.Second, time.Millisecond)
	assert.Never(t, func() bool { return calls.Load() > 1 }, 50*time.Millisecond, 5*time.Millisecond)

	close(release)
	assert.Equal(t, "before", (<-first).Title)
	assert.Equal(t, "after", (<-second).Title)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, int32(1), maxRunning.Load(), "at most one request per key at a time")

	v, ok, err := GetQueryData[*space](c, q.Key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "after", v.Title)
}

func TestAbandonedFetchBlocksNextRequestUntilReturned(t *testing.T) {
	c, _ := newTestClient(t)
	var calls, running, maxRunning atomic.Int32
	firstDone := make(chan struct{})

	q := Query[*space]{
		Key: querykey.Spaces.Detail("sp_1"),
		Fn: func(ctx context.Context) (*space, error) {
			cur := running.Add(1)
			defer running.Add(-1)
			if cur > maxRunning.Load() {
				maxRunning.Store(cur)
			}
			if calls.Add(1) == 1 {
				<-ctx.Done()
				// Slow to notice cancellation.
				time.Sleep(20 * time.Millisecond)
				close(firstDone)
				return nil, ctx.Err()
			}
			return &space{Title: "fresh"}, nil
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := Fetch(ctx, c, q)
		errCh <- err
	}()
	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-errCh, context.Canceled)

	v, err := Fetch(context.Background(), c, q)
	require.NoError(t, err)
	assert.Equal(t, "fresh", v.Title)
	select {
	case <-firstDone:
	default:
		t.Fatal("second request started before the abandoned one returned")
	}
	assert.Equal(t, int32(1), maxRunning.Load())
}

func TestInvalidateMultipleFamiliesAtomically(t *testing.T) {
	c, _ := newTestClient(t)
	teams := querykey.Teams.ByMember("alice")
	me := querykey.Users.Me()
	require.NoError(t, SetQueryData(c, teams, []string{"core"}))
	require.NoError(t, SetQueryData(c, me, "alice"))

	var (
		wg      sync.WaitGroup
		partial atomic.Bool
		stop    = make(chan struct{})
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			_ = c.store.Update(func(tx cache.Tx) error {
				a, _ := tx.Get(teams)
				b, _ := tx.Get(me)
				if a.Invalidated != b.Invalidated {
					partial.Store(true)
				}
				return nil
			})
		}
	}()

	c.Invalidate(querykey.Teams.Lists(), querykey.Users.All())
	close(stop)
	wg.Wait()

	assert.False(t, partial.Load(), "a reader observed one family invalidated without the other")
	for _, k := range []querykey.Key{teams, me} {
		e, err := c.store.Get(k)
		require.NoError(t, err)
		assert.True(t, e.Invalidated, "%s", k)
	}
}

func TestSetAndGetQueryData(t *testing.T) {
	c, _ := newTestClient(t)
	key := querykey.Notifications.UnreadCount()

	_, ok, err := GetQueryData[int](c, key)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, SetQueryData(c, key, 3))
	v, ok, err := GetQueryData[int](c, key)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 3, v)

	assert.ErrorIs(t, SetQueryData(c, nil, 1), ErrEmptyKey)
}

func TestRemoveAndClear(t *testing.T) {
	c, _ := newTestClient(t)
	require.NoError(t, SetQueryData(c, querykey.Spaces.Detail("sp_1"), 1))
	require.NoError(t, SetQueryData(c, querykey.Feeds.List(nil), 2))
	require.NoError(t, SetQueryData(c, querykey.Posts.Detail("po_1"), 3))

	c.Remove(querykey.Spaces.All())
	assert.Equal(t, 2, c.Stats().Entries)

	c.Clear()
	assert.Equal(t, 0, c.Stats().Entries)
}

func TestFocusMarksStaleRefetchableEntries(t *testing.T) {
	reg := NewPolicyRegistry(DefaultPolicy)
	require.NoError(t, reg.Register(querykey.KindUsers, Policy{StaleTime: time.Second, RefetchOnWindowFocus: false}))
	clock := newFakeClock()
	c := NewClient(WithPolicies(reg), WithClock(clock.Now))

	feed := querykey.Feeds.List(nil)
	fresh := querykey.Spaces.Detail("sp_1")
	me := querykey.Users.Me()
	require.NoError(t, SetQueryData(c, feed, 1))
	require.NoError(t, SetQueryData(c, me, "alice"))

	clock.Advance(time.Hour)
	require.NoError(t, SetQueryData(c, fresh, 2))

	var events []Event
	unsubscribe := c.Subscribe(querykey.Key{}, func(ev Event) { events = append(events, ev) })
	defer unsubscribe()

	c.Focus()

	state := func(k querykey.Key) bool {
		e, err := c.store.Get(k)
		require.NoError(t, err)
		return e.Invalidated
	}
	assert.True(t, state(feed), "stale entry refetches on focus")
	assert.False(t, state(fresh), "fresh entry is kept")
	assert.False(t, state(me), "kind opted out of focus refetch")
	require.Len(t, events, 1)
	assert.Equal(t, EventInvalidated, events[0].Type)
	assert.True(t, events[0].Key.Equal(feed))
}

func TestFocusDetachesInFlightFetch(t *testing.T) {
	c, clock := newTestClient(t)
	key := querykey.Spaces.Detail("sp_1")
	require.NoError(t, SetQueryData(c, key, &space{Title: "v0"}))
	clock.Advance(time.Minute)

	started := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32
	q := Query[*space]{
		Key: key,
		Fn: func(ctx context.Context) (*space, error) {
			if calls.Add(1) == 1 {
				close(started)
				<-release
				return &space{Title: "v1"}, nil
			}
			return &space{Title: "v2"}, nil
		},
	}

	first := make(chan *space, 1)
	go func() {
		v, err := Fetch(context.Background(), c, q)
		assert.NoError(t, err)
		first <- v
	}()
	<-started

	c.Focus()
	assert.Zero(t, c.Stats().InFlight, "focus detaches the running fetch")

	second := make(chan *space, 1)
	go func() {
		v, err := Fetch(context.Background(), c, q)
		assert.NoError(t, err)
		second <- v
	}()
	require.Eventually(t, func() bool { return c.Stats().InFlight == 1 }, time.Second, time.Millisecond)

	close(release)
	assert.Equal(t, "v1", (<-first).Title)
	assert.Equal(t, "v2", (<-second).Title, "reader after focus gets a fetch started after it")

	// The second result was cached; no further request.
	v, err := Fetch(context.Background(), c, q)
	require.NoError(t, err)
	assert.Equal(t, "v2", v.Title)
	assert.Equal(t, int32(2), calls.Load())
}

func TestPrefetch(t *testing.T) {
	c, _ := newTestClient(t)
	var n atomic.Int32

	err := c.Prefetch(context.Background(),
		countingQuery("sp_1", "one", &n),
		countingQuery("sp_2", "two", &n),
		Query[int]{
			Key: querykey.Notifications.UnreadCount(),
			Fn:  func(context.Context) (int, error) { return 4, nil },
		},
	)
	require.NoError(t, err)
	assert.Equal(t, int32(2), n.Load())
	assert.Equal(t, 3, c.Stats().Entries)

	boom := errors.New("boom")
	err = c.Prefetch(context.Background(), Query[int]{
		Key: querykey.Feeds.List("broken"),
		Fn:  func(context.Context) (int, error) { return 0, boom },
	})
	assert.ErrorIs(t, err, boom)
}

func TestSubscribe(t *testing.T) {
	c, _ := newTestClient(t)
	var got []Event
	unsubscribe := c.Subscribe(querykey.Spaces.All(), func(ev Event) {
		got = append(got, ev)
	})

	key := querykey.Spaces.Detail("sp_1")
	require.NoError(t, SetQueryData(c, key, 1))
	require.NoError(t, SetQueryData(c, querykey.Feeds.List(nil), 1))
	c.Invalidate(key)
	c.Remove(key)

	unsubscribe()
	require.NoError(t, SetQueryData(c, key, 2))

	require.Len(t, got, 3)
	assert.Equal(t, EventUpdated, got[0].Type)
	assert.Equal(t, EventInvalidated, got[1].Type)
	assert.Equal(t, EventRemoved, got[2].Type)
	assert.Equal(t, "removed", got[2].Type.String())
}

func TestSubscriberMayCallBackIntoClient(t *testing.T) {
	c, _ := newTestClient(t)
	var n atomic.Int32
	q := countingQuery("sp_1", "x", &n)

	// A mounted reader refetches as soon as its key is invalidated.
	refetched := make(chan struct{}, 1)
	c.Subscribe(q.Key, func(ev Event) {
		if ev.Type == EventInvalidated {
			_, err := Fetch(context.Background(), c, q)
			assert.NoError(t, err)
			refetched <- struct{}{}
		}
	})

	_, err := Fetch(context.Background(), c, q)
	require.NoError(t, err)
	c.Invalidate(q.Key)

	select {
	case <-refetched:
	case <-time.After(time.Second):
		t.Fatal("subscriber did not refetch")
	}
	assert.Equal(t, int32(2), n.Load())
}
