package query

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/ratelsync/internal/querykey"
)

func TestPolicyRegistry(t *testing.T) {
	t.Run("unregistered kinds use the fallback", func(t *testing.T) {
		r := NewPolicyRegistry(DefaultPolicy)
		assert.Equal(t, DefaultPolicy, r.Lookup(querykey.KindSpaces))
		assert.Empty(t, r.Kinds())
	})

	t.Run("register and lookup", func(t *testing.T) {
		r := NewPolicyRegistry(DefaultPolicy)
		users := Policy{StaleTime: 5 * time.Minute, GCTime: time.Hour}
		require.NoError(t, r.Register(querykey.KindUsers, users))

		assert.Equal(t, users, r.Lookup(querykey.KindUsers))
		assert.Equal(t, DefaultPolicy, r.Lookup(querykey.KindFeeds))
		assert.ElementsMatch(t, []string{querykey.KindUsers}, r.Kinds())

		r.Unregister(querykey.KindUsers)
		assert.Equal(t, DefaultPolicy, r.Lookup(querykey.KindUsers))
	})

	t.Run("invalid registrations", func(t *testing.T) {
		r := NewPolicyRegistry(DefaultPolicy)
		assert.Error(t, r.Register("", DefaultPolicy))
		assert.Error(t, r.Register(querykey.KindTeams, Policy{StaleTime: -time.Second}))
		assert.Error(t, r.Register(querykey.KindTeams, Policy{GCTime: -time.Second}))
	})
}

func TestPolicyFreshness(t *testing.T) {
	written := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		policy Policy
		age    time.Duration
		fresh  bool
	}{
		{"zero stale time is never fresh", Policy{}, 0, false},
		{"within stale time", Policy{StaleTime: time.Minute}, 59 * time.Second, true},
		{"at stale time", Policy{StaleTime: time.Minute}, time.Minute, false},
		{"forever", Policy{StaleTime: Forever}, 1000 * time.Hour, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.fresh, tt.policy.fresh(written, written.Add(tt.age)))
		})
	}
}

func TestPolicyExpiry(t *testing.T) {
	read := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	assert.False(t, Policy{}.expired(read, read.Add(time.Hour)), "zero GCTime keeps entries")
	assert.False(t, Policy{GCTime: Forever}.expired(read, read.Add(time.Hour)))
	assert.False(t, Policy{GCTime: time.Minute}.expired(read, read.Add(time.Second)))
	assert.True(t, Policy{GCTime: time.Minute}.expired(read, read.Add(time.Minute)))
}

func TestWithDefaultPolicy(t *testing.T) {
	p := Policy{StaleTime: time.Second, GCTime: time.Minute}

	c := NewClient(WithDefaultPolicy(p))
	assert.Equal(t, p, c.Policies().Lookup("unregistered"))

	reg := NewPolicyRegistry(DefaultPolicy)
	c = NewClient(WithDefaultPolicy(p), WithPolicies(reg))
	assert.Equal(t, DefaultPolicy, c.Policies().Lookup("unregistered"))
}
