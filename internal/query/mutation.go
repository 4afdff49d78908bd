package query

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/dreamware/ratelsync/internal/querykey"
)

// ErrNoEffect is returned by Mutate when a mutation declares no cache effect.
var ErrNoEffect = errors.New("mutation declares no cache effect")

// Effect is what a successful mutation does to the cache: exactly one of
// Invalidates or Patches.
type Effect interface {
	effect()
}

type invalidateEffect struct{ keys []querykey.Key }

type patchEffect struct{ patches []Patch }

func (invalidateEffect) effect() {}
func (patchEffect) effect()      {}

// Invalidates marks every entry under keys stale once the mutation
// succeeds. All keys are invalidated in the same atomic step.
func Invalidates(keys ...querykey.Key) Effect {
	return invalidateEffect{keys: keys}
}

// Patches applies the patches before the request is sent and reverts them
// if it fails.
func Patches(patches ...Patch) Effect {
	return patchEffect{patches: patches}
}

// Mutation describes a write against the server and its cache effect.
//
// V is the mutation's input, R the server's response.
type Mutation[V, R any] struct {
	// Name identifies the mutation in logs.
	Name string

	// Validate rejects input before anything is sent or patched.
	Validate func(vars V) error

	// Fn performs the request.
	Fn func(ctx context.Context, vars V) (R, error)

	// Effect derives the cache effect from the input.
	Effect func(vars V) Effect
}

// Mutate runs m with vars.
//
// With a Patches effect, the patches are applied first; if Fn fails they are
// reverted to the pre-mutation snapshot before the error is returned. With an
// Invalidates effect, nothing changes until Fn succeeds, then every key is
// invalidated atomically. A failed mutation never invalidates. Errors are
// always returned to the caller.
func Mutate[V, R any](ctx context.Context, c *Client, m Mutation[V, R], vars V) (R, error) {
	var zero R
	if m.Fn == nil {
		return zero, fmt.Errorf("mutation %s: nil function", m.Name)
	}
	if m.Validate != nil {
		if err := m.Validate(vars); err != nil {
			return zero, err
		}
	}
	if m.Effect == nil {
		return zero, fmt.Errorf("mutation %s: %w", m.Name, ErrNoEffect)
	}

	switch eff := m.Effect(vars).(type) {
	case patchEffect:
		if len(eff.patches) == 0 {
			return zero, fmt.Errorf("mutation %s: %w", m.Name, ErrNoEffect)
		}
		snap, err := c.patch(eff.patches)
		if err != nil {
			return zero, fmt.Errorf("mutation %s: optimistic patch: %w", m.Name, err)
		}
		r, err := m.Fn(ctx, vars)
		if err != nil {
			snap.Restore()
			c.logger.Warn("mutation failed, optimistic patch reverted",
				zap.String("mutation", m.Name),
				zap.Error(err))
			return zero, err
		}
		return r, nil

	case invalidateEffect:
		if len(eff.keys) == 0 {
			return zero, fmt.Errorf("mutation %s: %w", m.Name, ErrNoEffect)
		}
		r, err := m.Fn(ctx, vars)
		if err != nil {
			c.logger.Warn("mutation failed",
				zap.String("mutation", m.Name),
				zap.Error(err))
			return zero, err
		}
		c.Invalidate(eff.keys...)
		return r, nil

	default:
		return zero, fmt.Errorf("mutation %s: %w", m.Name, ErrNoEffect)
	}
}
