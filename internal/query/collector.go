package query

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/dreamware/ratelsync/internal/cache"
	"github.com/dreamware/ratelsync/internal/querykey"
)

// Collector periodically evicts entries nobody has read for longer than
// their policy's GCTime. Entries with a fetch in flight are kept.
// Thread-safe: All methods are safe for concurrent access.
type Collector struct {
	client   *Client
	onEvict  func(key querykey.Key) // Callback for every evicted key
	ctx      context.Context        // Internal context for Stop
	cancel   context.CancelFunc     // Cancels ctx
	interval time.Duration          // How often to sweep
	wg       sync.WaitGroup         // Wait group for graceful shutdown
	sweeps   atomic.Uint64          // Completed sweeps
	evicted  atomic.Uint64          // Entries evicted so far
}

// NewCollector creates a collector sweeping c every interval.
//
// Example:
//
//	gc := query.NewCollector(client, time.Minute)
//	go gc.Start(ctx)
//	defer gc.Stop()
func NewCollector(c *Client, interval time.Duration) *Collector {
	ctx, cancel := context.WithCancel(context.Background())
	return &Collector{
		client:   c,
		interval: interval,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// SetOnEvict sets a callback invoked for each evicted key.
// Must be called before Start.
func (g *Collector) SetOnEvict(fn func(key querykey.Key)) {
	g.onEvict = fn
}

// Start sweeps every interval until ctx or Stop ends it.
// This method blocks.
func (g *Collector) Start(ctx context.Context) {
	g.wg.Add(1)
	defer g.wg.Done()

	if ctx == nil {
		ctx = g.ctx
	}

	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()

	g.client.logger.Debug("cache collector started", zap.Duration("interval", g.interval))

	for {
		select {
		case <-ticker.C:
			g.Sweep()
		case <-ctx.Done():
			g.client.logger.Debug("cache collector stopping due to context cancellation")
			return
		case <-g.ctx.Done():
			g.client.logger.Debug("cache collector stopping")
			return
		}
	}
}

// Stop ends Start and waits for it to return.
func (g *Collector) Stop() {
	g.cancel()
	g.wg.Wait()
}

// Sweep runs one collection pass and returns the number of evicted entries.
func (g *Collector) Sweep() int {
	gone := g.client.collect(g.client.now())
	g.sweeps.Add(1)
	g.evicted.Add(uint64(len(gone)))

	if len(gone) > 0 {
		g.client.logger.Debug("cache collector evicted entries", zap.Int("count", len(gone)))
	}
	if g.onEvict != nil {
		for _, k := range gone {
			g.onEvict(k)
		}
	}
	return len(gone)
}

// Sweeps returns how many passes have completed.
func (g *Collector) Sweeps() uint64 { return g.sweeps.Load() }

// Evicted returns how many entries have been evicted.
func (g *Collector) Evicted() uint64 { return g.evicted.Load() }

// collect deletes expired entries in one batch.
func (c *Client) collect(now time.Time) []querykey.Key {
	var gone []querykey.Key

	c.mu.Lock()
	_ = c.store.Update(func(tx cache.Tx) error {
		for _, k := range tx.Keys() {
			if _, busy := c.flights[k.Hash()]; busy {
				continue
			}
			e, _ := tx.Get(k)
			if c.policyFor(k).expired(e.LastAccess, now) {
				tx.Delete(k)
				gone = append(gone, k)
			}
		}
		return nil
	})
	for _, k := range gone {
		delete(c.overrides, k.Hash())
	}
	c.mu.Unlock()

	for _, k := range gone {
		c.emit(Event{Type: EventRemoved, Key: k})
	}
	return gone
}
