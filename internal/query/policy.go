// Package query implements the read, mutation and optimistic update
// operations of the query cache.
// See doc.go for complete package documentation.
package query

import (
	"errors"
	"math"
	"sync"
	"time"
)

// Forever is a StaleTime or GCTime that never elapses.
const Forever = time.Duration(math.MaxInt64)

// Policy decides how long a cached value may be served and kept.
//
// Policies are declared per resource kind: immutable-ish resources such as
// user profiles keep long stale times and skip refetch on focus, while
// prerequisite checks use a zero StaleTime so every read goes to the server.
//
// Example:
//
//	registry.Register(querykey.KindUsers, query.Policy{
//	    StaleTime:            5 * time.Minute,
//	    GCTime:               30 * time.Minute,
//	    RefetchOnWindowFocus: false,
//	})
type Policy struct {
	// StaleTime is how long after a write the value is served without a
	// refetch. Zero means every read refetches.
	StaleTime time.Duration `yaml:"stale_time"`

	// GCTime is how long an entry may go unread before the collector
	// evicts it. Zero keeps entries until they are removed explicitly.
	GCTime time.Duration `yaml:"gc_time"`

	// RefetchOnWindowFocus marks the kind's entries stale when the
	// application regains focus (see Client.Focus).
	RefetchOnWindowFocus bool `yaml:"refetch_on_window_focus"`
}

// DefaultPolicy applies to kinds with no registered policy.
var DefaultPolicy = Policy{
	StaleTime:            30 * time.Second,
	GCTime:               5 * time.Minute,
	RefetchOnWindowFocus: true,
}

// fresh reports whether a value written at updatedAt may still be served.
func (p Policy) fresh(updatedAt, now time.Time) bool {
	if p.StaleTime <= 0 {
		return false
	}
	if p.StaleTime == Forever {
		return true
	}
	return now.Sub(updatedAt) < p.StaleTime
}

// expired reports whether an entry last read at lastAccess may be evicted.
func (p Policy) expired(lastAccess, now time.Time) bool {
	if p.GCTime <= 0 || p.GCTime == Forever {
		return false
	}
	return now.Sub(lastAccess) >= p.GCTime
}

// PolicyRegistry maps resource kinds to their cache policy. It is the
// authoritative source for staleness decisions.
//
// Concurrency Model:
//   - Lookups use RLock for parallel access
//   - Registrations use Lock for exclusive access
type PolicyRegistry struct {
	policies map[string]Policy // kind -> policy
	fallback Policy            // used for unregistered kinds
	mu       sync.RWMutex      // Protects policies
}

// NewPolicyRegistry creates a registry whose unregistered kinds use fallback.
func NewPolicyRegistry(fallback Policy) *PolicyRegistry {
	return &PolicyRegistry{
		policies: make(map[string]Policy),
		fallback: fallback,
	}
}

// Register sets the policy for kind, replacing any previous one.
//
// Returns an error if kind is empty or a duration is negative.
func (r *PolicyRegistry) Register(kind string, p Policy) error {
	if kind == "" {
		return errors.New("policy kind cannot be empty")
	}
	if p.StaleTime < 0 || p.GCTime < 0 {
		return errors.New("policy durations cannot be negative")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.policies[kind] = p
	return nil
}

// Unregister removes the policy for kind; the fallback applies afterwards.
func (r *PolicyRegistry) Unregister(kind string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.policies, kind)
}

// Lookup returns the policy for kind, or the fallback.
func (r *PolicyRegistry) Lookup(kind string) Policy {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if p, ok := r.policies[kind]; ok {
		return p
	}
	return r.fallback
}

// Kinds returns the kinds with a registered policy.
func (r *PolicyRegistry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]string, 0, len(r.policies))
	for k := range r.policies {
		kinds = append(kinds, k)
	}
	return kinds
}
