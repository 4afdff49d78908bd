package query

import (
	"reflect"

	"go.uber.org/zap"

	"github.com/dreamware/ratelsync/internal/cache"
	"github.com/dreamware/ratelsync/internal/querykey"
)

// Patch is a pure transform of one cached value, applied speculatively
// before the server confirms a mutation.
type Patch struct {
	Key   querykey.Key
	apply func(any) (any, error)
}

// PatchOf builds a Patch for a value of type T. transform receives the
// cached value and must return a new value without modifying its argument.
func PatchOf[T any](key querykey.Key, transform func(T) T) Patch {
	return Patch{
		Key: key,
		apply: func(v any) (any, error) {
			t, err := typed[T](key, v)
			if err != nil {
				return nil, err
			}
			return transform(t), nil
		},
	}
}

// Snapshot remembers the entries a patch replaced so they can be restored.
type Snapshot struct {
	c       *Client
	entries []snapshotEntry
	done    bool
}

type snapshotEntry struct {
	key  querykey.Key
	prev cache.Entry
}

// Changed reports whether the patch modified any cached value. Patching a
// key with nothing cached, or producing a value equal to the cached one,
// changes nothing.
func (s *Snapshot) Changed() bool { return s != nil && len(s.entries) > 0 }

// Previous returns the value key held before the patch.
func (s *Snapshot) Previous(key querykey.Key) (any, bool) {
	if s == nil {
		return nil, false
	}
	for _, e := range s.entries {
		if e.key.Equal(key) {
			return e.prev.Value, true
		}
	}
	return nil, false
}

// Restore puts back every entry the patch replaced, in one atomic step.
// Restoring twice is a no-op.
func (s *Snapshot) Restore() {
	if s == nil || s.done || len(s.entries) == 0 {
		return
	}
	s.done = true
	s.c.restore(s.entries)
}

// OptimisticUpdate applies transform to the value cached under key right
// away, before any server confirmation, and returns a Snapshot for rollback.
//
// A fetch in flight for key is detached so it cannot overwrite the patch.
// When nothing is cached under key there is nothing to patch and the
// returned Snapshot reports Changed() == false. Applying a transform whose
// result equals the cached value is a no-op: no write, no event.
//
// Example:
//
//	snap, err := query.OptimisticUpdate(c, querykey.Spaces.Detail(pk), func(s *Space) *Space {
//	    next := *s
//	    next.Title = title
//	    return &next
//	})
//	if err := send(); err != nil {
//	    snap.Restore()
//	}
func OptimisticUpdate[T any](c *Client, key querykey.Key, transform func(T) T) (*Snapshot, error) {
	if len(key) == 0 {
		return nil, ErrEmptyKey
	}
	return c.patch([]Patch{PatchOf(key, transform)})
}

// patch applies every patch in one store batch.
func (c *Client) patch(patches []Patch) (*Snapshot, error) {
	snap := &Snapshot{c: c}
	now := c.now()

	c.mu.Lock()
	err := c.store.Update(func(tx cache.Tx) error {
		var applied []snapshotEntry
		for _, p := range patches {
			e, ok := tx.Get(p.Key)
			if !ok {
				continue
			}
			next, err := p.apply(e.Value)
			if err != nil {
				// Undo the patches already written in this batch.
				for i := len(applied) - 1; i >= 0; i-- {
					tx.Put(applied[i].key, applied[i].prev)
				}
				return err
			}
			if reflect.DeepEqual(next, e.Value) {
				continue
			}
			applied = append(applied, snapshotEntry{key: p.Key, prev: e})
			e.Value = next
			e.UpdatedAt = now
			e.LastAccess = now
			e.Invalidated = false
			e.Generation++
			tx.Put(p.Key, e)
		}
		snap.entries = applied
		return nil
	})
	if err == nil {
		c.staleFlights(matcherExact(patches))
	}
	c.mu.Unlock()

	if err != nil {
		return nil, err
	}
	for _, e := range snap.entries {
		c.logger.Debug("optimistic patch", zap.Stringer("key", e.key))
		c.emit(Event{Type: EventUpdated, Key: e.key})
	}
	return snap, nil
}

func (c *Client) restore(entries []snapshotEntry) {
	c.mu.Lock()
	_ = c.store.Update(func(tx cache.Tx) error {
		for i := len(entries) - 1; i >= 0; i-- {
			se := entries[i]
			e := se.prev
			if cur, ok := tx.Get(se.key); ok {
				e.Generation = cur.Generation + 1
			} else {
				e.Generation++
			}
			tx.Put(se.key, e)
		}
		return nil
	})
	c.staleFlights(func(k querykey.Key) bool {
		for _, se := range entries {
			if k.Equal(se.key) {
				return true
			}
		}
		return false
	})
	c.mu.Unlock()

	c.rollbacks.Add(1)
	for _, se := range entries {
		c.logger.Debug("optimistic patch rolled back", zap.Stringer("key", se.key))
		c.emit(Event{Type: EventUpdated, Key: se.key})
	}
}

func matcherExact(patches []Patch) func(querykey.Key) bool {
	return func(k querykey.Key) bool {
		for _, p := range patches {
			if k.Equal(p.Key) {
				return true
			}
		}
		return false
	}
}
