package query

import (
	"github.com/dreamware/ratelsync/internal/querykey"
)

// EventType says what happened to a cache entry.
type EventType int

const (
	// EventUpdated: a new value was written (fetch, SetQueryData, patch, rollback).
	EventUpdated EventType = iota + 1
	// EventInvalidated: the entry was marked stale.
	EventInvalidated
	// EventRemoved: the entry was deleted or garbage collected.
	EventRemoved
)

func (t EventType) String() string {
	switch t {
	case EventUpdated:
		return "updated"
	case EventInvalidated:
		return "invalidated"
	case EventRemoved:
		return "removed"
	}
	return "unknown"
}

// Event is delivered to subscribers after a change is committed.
type Event struct {
	Type EventType
	Key  querykey.Key
}

type subscription struct {
	prefix querykey.Key
	fn     func(Event)
}

// Subscribe calls fn for every event on a key under prefix until the
// returned function is called. Mounted readers use it to refetch when their
// key is invalidated.
//
// fn runs synchronously on the goroutine that made the change, with no
// client lock held, so it may call back into the client. It must not block.
func (c *Client) Subscribe(prefix querykey.Key, fn func(Event)) (unsubscribe func()) {
	c.subMu.Lock()
	c.nextSu++
	id := c.nextSu
	c.subs[id] = subscription{prefix: append(querykey.Key(nil), prefix...), fn: fn}
	c.subMu.Unlock()

	return func() {
		c.subMu.Lock()
		delete(c.subs, id)
		c.subMu.Unlock()
	}
}

func (c *Client) emit(ev Event) {
	c.subMu.RLock()
	var targets []func(Event)
	for _, s := range c.subs {
		if ev.Key.HasPrefix(s.prefix) {
			targets = append(targets, s.fn)
		}
	}
	c.subMu.RUnlock()

	for _, fn := range targets {
		fn(ev)
	}
}
