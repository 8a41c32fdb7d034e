// Package marker owns the set of markers rendered on the map surface and
// converges it to each resolved item list.
package marker

import (
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"eventmap/core-go/internal/mapitem"
	"eventmap/core-go/internal/markerstyle"
	"eventmap/core-go/internal/schedule"
	"eventmap/core-go/internal/surface"
)

const (
	DefaultExitDuration = 600 * time.Millisecond
	DefaultZoomStep     = 2
)

// SelectFunc receives the events of a clicked point or enumerable cluster.
type SelectFunc func(events []mapitem.EventRecord)

type Options struct {
	ExitDuration time.Duration
	ZoomStep     int
	Scheduler    schedule.Scheduler
	OnSelect     SelectFunc
}

type handle struct {
	marker surface.Marker
	item   mapitem.Item
	style  markerstyle.Style
	phase  surface.Phase
	// gen invalidates callbacks scheduled for an earlier phase change.
	gen   uint64
	exit  schedule.Timer
	frame schedule.Timer
}

// Reconciler is the only component that mutates markers on the surface.
type Reconciler struct {
	log   zerolog.Logger
	m     surface.Map
	sched schedule.Scheduler

	exitDuration time.Duration
	zoomStep     int
	onSelect     SelectFunc

	mu      sync.Mutex
	closed  bool
	handles map[string]*handle
}

func New(log zerolog.Logger, m surface.Map, opts Options) *Reconciler {
	exit := opts.ExitDuration
	if exit <= 0 {
		exit = DefaultExitDuration
	}
	step := opts.ZoomStep
	if step <= 0 {
		step = DefaultZoomStep
	}
	sched := opts.Scheduler
	if sched == nil {
		sched = schedule.Real()
	}
	onSelect := opts.OnSelect
	if onSelect == nil {
		onSelect = func([]mapitem.EventRecord) {}
	}
	return &Reconciler{
		log:          log,
		m:            m,
		sched:        sched,
		exitDuration: exit,
		zoomStep:     step,
		onSelect:     onSelect,
		handles:      make(map[string]*handle),
	}
}

// Reconcile converges the rendered markers to items. Markers missing from
// items exit and are removed after the exit duration; markers that reappear
// before then are restored in place.
func (r *Reconciler) Reconcile(items []mapitem.Item) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}

	incoming := make(map[string]mapitem.Item, len(items))
	order := make([]string, 0, len(items))
	for _, it := range items {
		if it.ID == "" || !mapitem.ValidCoordinate(it.Lat, it.Lng) {
			r.log.Warn().Str("item_id", it.ID).Float64("lat", it.Lat).Float64("lng", it.Lng).Msg("skipping map item with invalid coordinates")
			continue
		}
		if it.Type == mapitem.KindPoint && it.Event == nil {
			r.log.Warn().Str("item_id", it.ID).Msg("skipping point without event")
			continue
		}
		if _, dup := incoming[it.ID]; dup {
			r.log.Warn().Str("item_id", it.ID).Msg("skipping duplicate map item")
			continue
		}
		incoming[it.ID] = it
		order = append(order, it.ID)
	}

	// Removals first so that an id coming back in this call is a restore.
	for _, id := range r.sortedIDsLocked() {
		h := r.handles[id]
		if _, keep := incoming[id]; keep || h.phase == surface.PhaseExiting {
			continue
		}
		r.beginExitLocked(id, h)
	}

	for _, id := range order {
		it := incoming[id]
		if h, ok := r.handles[id]; ok {
			r.updateLocked(id, h, it)
			continue
		}
		r.createLocked(id, it)
	}
}

// Phase reports the lifecycle phase of the marker for id.
func (r *Reconciler) Phase(id string) (surface.Phase, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.handles[id]
	if !ok {
		return "", false
	}
	return h.phase, true
}

// IDs returns the sorted ids of all handles, exiting ones included.
func (r *Reconciler) IDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sortedIDsLocked()
}

// Close removes every marker and cancels all pending transitions.
func (r *Reconciler) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	for _, id := range r.sortedIDsLocked() {
		h := r.handles[id]
		stop(h.exit)
		stop(h.frame)
		h.marker.Remove()
	}
	r.handles = make(map[string]*handle)
}

func (r *Reconciler) createLocked(id string, it mapitem.Item) {
	style := markerstyle.For(it)
	mk := r.m.AddMarker(surface.MarkerSpec{
		ID:       id,
		Position: surface.LatLng{Lat: it.Lat, Lng: it.Lng},
		Style:    style,
		Phase:    surface.PhaseEntering,
	})
	mk.OnClick(func() { r.click(id) })

	h := &handle{marker: mk, item: it, style: style, phase: surface.PhaseEntering, gen: 1}
	gen := h.gen
	h.frame = r.sched.NextFrame(func() { r.finishEnter(id, gen) })
	r.handles[id] = h
}

func (r *Reconciler) updateLocked(id string, h *handle, it mapitem.Item) {
	if h.phase == surface.PhaseExiting {
		stop(h.exit)
		h.exit = nil
		h.gen++
		h.phase = surface.PhaseVisible
		h.marker.SetPhase(surface.PhaseVisible)
		r.log.Debug().Str("marker", id).Msg("marker restored")
	}

	if it.Lat != h.item.Lat || it.Lng != h.item.Lng {
		h.marker.SetPosition(surface.LatLng{Lat: it.Lat, Lng: it.Lng})
	}

	style := markerstyle.For(it)
	if style != h.style {
		h.marker.SetContent(style)
		if style.ZIndex != h.style.ZIndex {
			h.marker.SetZIndex(style.ZIndex)
		}
		h.style = style
	}
	h.item = it
}

func (r *Reconciler) beginExitLocked(id string, h *handle) {
	stop(h.frame)
	h.frame = nil
	h.gen++
	h.phase = surface.PhaseExiting
	h.marker.SetPhase(surface.PhaseExiting)
	gen := h.gen
	h.exit = r.sched.AfterFunc(r.exitDuration, func() { r.finishExit(id, gen) })
}

func (r *Reconciler) finishEnter(id string, gen uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.handles[id]
	if r.closed || !ok || h.gen != gen || h.phase != surface.PhaseEntering {
		return
	}
	h.frame = nil
	h.phase = surface.PhaseVisible
	h.marker.SetPhase(surface.PhaseVisible)
}

func (r *Reconciler) finishExit(id string, gen uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.handles[id]
	if r.closed || !ok || h.gen != gen || h.phase != surface.PhaseExiting {
		return
	}
	h.marker.Remove()
	delete(r.handles, id)
}

// click dispatches on the item the marker currently shows, not the one it was
// created with.
func (r *Reconciler) click(id string) {
	r.mu.Lock()
	h, ok := r.handles[id]
	if r.closed || !ok || h.phase == surface.PhaseExiting {
		r.mu.Unlock()
		return
	}
	it := h.item
	r.mu.Unlock()

	pos := surface.LatLng{Lat: it.Lat, Lng: it.Lng}
	switch {
	case !it.IsCluster():
		r.onSelect([]mapitem.EventRecord{*it.Event})
		r.m.PanTo(pos)
	case it.Enumerable():
		r.onSelect(append([]mapitem.EventRecord(nil), it.Events...))
		r.m.PanTo(pos)
	default:
		r.m.PanTo(pos)
		r.m.SetZoom(r.m.Zoom() + r.zoomStep)
	}
}

func (r *Reconciler) sortedIDsLocked() []string {
	ids := make([]string, 0, len(r.handles))
	for id := range r.handles {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func stop(t schedule.Timer) {
	if t != nil {
		t.Stop()
	}
}
