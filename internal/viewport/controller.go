// Package viewport keeps the resolved map items in sync with the map's
// bounds, zoom, and the active filters.
package viewport

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"eventmap/core-go/internal/mapitem"
	"eventmap/core-go/internal/metrics"
	"eventmap/core-go/internal/schedule"
	"eventmap/core-go/internal/surface"
)

const DefaultDebounce = 300 * time.Millisecond

// Querier runs one map query. *mapclient.Client satisfies this.
type Querier interface {
	Query(ctx context.Context, q mapitem.Query) ([]mapitem.Item, error)
}

// FilterSource is the live filter value. *filterctx.Store satisfies this.
type FilterSource interface {
	Current() mapitem.Filters
	Subscribe(fn func(mapitem.Filters)) (unsubscribe func())
}

// Snapshot is the published projection. Items is never nil and must not be
// modified by readers.
type Snapshot struct {
	Items   []mapitem.Item
	Loading bool
	Err     error
}

type Options struct {
	Debounce  time.Duration
	Scheduler schedule.Scheduler
	// Spawn runs a query off the caller's goroutine. Defaults to `go fn()`.
	Spawn func(fn func())
}

type Controller struct {
	log     zerolog.Logger
	m       surface.Map
	q       Querier
	filters FilterSource
	metrics *metrics.Metrics

	debounce time.Duration
	sched    schedule.Scheduler
	spawn    func(fn func())

	mu          sync.Mutex
	ctx         context.Context
	cancel      context.CancelFunc
	started     bool
	closed      bool
	seq         uint64
	cancelQuery context.CancelFunc
	current     mapitem.Filters
	timer       schedule.Timer
	detachIdle  func()
	unsubscribe func()
	snap        Snapshot
	// pending is the newest snapshot not yet handed to subscribers; delivering
	// marks the single goroutine currently draining it.
	pending     *Snapshot
	delivering  bool
	subID       int
	subs        map[int]func(Snapshot)
}

func New(log zerolog.Logger, m surface.Map, q Querier, filters FilterSource, opts Options, met *metrics.Metrics) *Controller {
	d := opts.Debounce
	if d <= 0 {
		d = DefaultDebounce
	}
	sched := opts.Scheduler
	if sched == nil {
		sched = schedule.Real()
	}
	spawn := opts.Spawn
	if spawn == nil {
		spawn = func(fn func()) { go fn() }
	}
	return &Controller{
		log:      log,
		m:        m,
		q:        q,
		filters:  filters,
		metrics:  met,
		debounce: d,
		sched:    sched,
		spawn:    spawn,
		snap:     Snapshot{Items: []mapitem.Item{}},
		subs:     make(map[int]func(Snapshot)),
	}
}

// Start attaches the idle and filter listeners and issues the first query.
// Queries run under ctx until Close.
func (c *Controller) Start(ctx context.Context) {
	c.mu.Lock()
	if c.started || c.closed {
		c.mu.Unlock()
		return
	}
	c.started = true
	c.ctx, c.cancel = context.WithCancel(ctx)
	c.current = c.filters.Current()
	c.mu.Unlock()

	detachIdle := c.m.OnIdle(c.onIdle)
	unsubscribe := c.filters.Subscribe(c.onFilters)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		detachIdle()
		unsubscribe()
		return
	}
	c.detachIdle = detachIdle
	c.unsubscribe = unsubscribe
	c.mu.Unlock()

	c.Refresh()
}

// Snapshot returns the current projection.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snap
}

// Subscribe registers fn for published projection changes. Calls are
// serialized and always move forward: fn may miss an intermediate snapshot
// but never sees one older than a snapshot it already received.
func (c *Controller) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subID++
	id := c.subID
	c.subs[id] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.subs, id)
	}
}

// Refresh issues a query immediately, dropping any pending debounce.
func (c *Controller) Refresh() {
	c.mu.Lock()
	if !c.started || c.closed {
		c.mu.Unlock()
		return
	}
	c.stopTimerLocked()
	c.mu.Unlock()

	c.issue()
}

// Close stops the debounce timer, detaches listeners, and abandons in-flight
// queries. No subscriber is called after Close returns.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.stopTimerLocked()
	detachIdle, unsubscribe := c.detachIdle, c.unsubscribe
	c.detachIdle, c.unsubscribe = nil, nil
	if c.cancel != nil {
		c.cancel()
	}
	c.cancelQuery = nil
	c.pending = nil
	c.subs = make(map[int]func(Snapshot))
	c.mu.Unlock()

	if detachIdle != nil {
		detachIdle()
	}
	if unsubscribe != nil {
		unsubscribe()
	}
}

func (c *Controller) onIdle() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.stopTimerLocked()
	c.timer = c.sched.AfterFunc(c.debounce, c.issue)
}

func (c *Controller) onFilters(f mapitem.Filters) {
	c.mu.Lock()
	if c.closed || f.Equal(c.current) {
		c.mu.Unlock()
		return
	}
	c.current = f
	c.mu.Unlock()

	c.Refresh()
}

func (c *Controller) stopTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

func (c *Controller) issue() {
	bounds, ok := c.m.Bounds()
	zoom := c.m.Zoom()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	if !ok {
		c.mu.Unlock()
		c.log.Debug().Msg("viewport query skipped: map bounds not ready")
		return
	}

	c.seq++
	seq := c.seq
	if c.cancelQuery != nil {
		c.cancelQuery()
	}
	ctx, cancel := context.WithCancel(c.ctx)
	c.cancelQuery = cancel
	q := mapitem.Query{Zoom: zoom, BBox: &bounds, Filters: c.current}
	c.snap = Snapshot{Items: c.snap.Items, Loading: true, Err: c.snap.Err}
	c.publishLocked()
	c.mu.Unlock()

	c.log.Debug().Uint64("seq", seq).Int("zoom", zoom).Msg("viewport query")
	c.deliver()

	c.spawn(func() {
		defer cancel()
		items, err := c.q.Query(ctx, q)
		c.complete(seq, items, err)
	})
}

func (c *Controller) complete(seq uint64, items []mapitem.Item, err error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	if seq != c.seq {
		c.mu.Unlock()
		c.metrics.IncStaleResponse()
		c.log.Debug().Uint64("seq", seq).Msg("viewport response discarded: superseded")
		return
	}
	c.cancelQuery = nil

	if err != nil {
		c.snap = Snapshot{Items: []mapitem.Item{}, Err: err}
	} else {
		if items == nil {
			items = []mapitem.Item{}
		}
		c.snap = Snapshot{Items: items}
	}
	c.publishLocked()
	c.mu.Unlock()

	if err != nil && !errors.Is(err, context.Canceled) {
		c.log.Warn().Err(err).Uint64("seq", seq).Msg("viewport query failed")
	}
	c.deliver()
}

func (c *Controller) publishLocked() {
	snap := c.snap
	c.pending = &snap
}

// deliver hands pending snapshots to subscribers in publication order. Only
// one goroutine delivers at a time; a snapshot published meanwhile is picked
// up by that goroutine, so an older snapshot never reaches a subscriber after
// a newer one. Intermediate snapshots may be coalesced.
func (c *Controller) deliver() {
	c.mu.Lock()
	if c.delivering {
		c.mu.Unlock()
		return
	}
	c.delivering = true
	for c.pending != nil && !c.closed {
		snap := *c.pending
		c.pending = nil
		subs := c.subscribersLocked()
		c.mu.Unlock()

		notify(subs, snap)

		c.mu.Lock()
	}
	c.delivering = false
	c.mu.Unlock()
}

func (c *Controller) subscribersLocked() []func(Snapshot) {
	out := make([]func(Snapshot), 0, len(c.subs))
	for id := 1; id <= c.subID; id++ {
		if fn, ok := c.subs[id]; ok {
			out = append(out, fn)
		}
	}
	return out
}

func notify(subs []func(Snapshot), snap Snapshot) {
	for _, fn := range subs {
		fn(snap)
	}
}
