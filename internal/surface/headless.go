package surface

import (
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"eventmap/core-go/internal/mapitem"
	"eventmap/core-go/internal/markerstyle"
)

// OpKind names a recorded surface operation.
type OpKind string

const (
	OpAdd         OpKind = "add"
	OpRemove      OpKind = "remove"
	OpSetPosition OpKind = "set_position"
	OpSetZIndex   OpKind = "set_zindex"
	OpSetContent  OpKind = "set_content"
	OpSetPhase    OpKind = "set_phase"
	OpPanTo       OpKind = "pan_to"
	OpSetZoom     OpKind = "set_zoom"
)

// Op is one recorded call against the headless surface.
type Op struct {
	Kind     OpKind
	MarkerID string
	Phase    Phase
	Position LatLng
	Zoom     int
}

// Headless is an in-memory Map. It records every operation and lets callers
// fire idle and click events by hand.
type Headless struct {
	log zerolog.Logger

	mu         sync.Mutex
	zoom       int
	center     LatLng
	bounds     mapitem.BoundingBox
	hasBounds  bool
	ops        []Op
	markers    map[string][]*HeadlessMarker
	listenerID int
	idle       map[int]func()
	background map[int]func()
}

func NewHeadless(log zerolog.Logger) *Headless {
	return &Headless{
		log:        log,
		zoom:       DefaultZoom,
		center:     DefaultCenter,
		markers:    make(map[string][]*HeadlessMarker),
		idle:       make(map[int]func()),
		background: make(map[int]func()),
	}
}

// SetViewport moves the simulated viewport without firing idle. PanTo and
// SetZoom fire idle once the move is applied, like an interactive map.
func (h *Headless) SetViewport(b mapitem.BoundingBox, zoom int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.bounds = b
	h.hasBounds = true
	h.zoom = clampZoom(zoom)
	h.center = LatLng{Lat: (b.MinLat + b.MaxLat) / 2, Lng: (b.MinLng + b.MaxLng) / 2}
}

func (h *Headless) Zoom() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.zoom
}

func (h *Headless) Center() LatLng {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.center
}

func (h *Headless) Bounds() (mapitem.BoundingBox, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.bounds, h.hasBounds
}

func (h *Headless) OnIdle(fn func()) func() {
	return h.register(h.idle, fn)
}

func (h *Headless) OnBackgroundClick(fn func()) func() {
	return h.register(h.background, fn)
}

func (h *Headless) register(set map[int]func(), fn func()) func() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.listenerID++
	id := h.listenerID
	set[id] = fn
	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(set, id)
	}
}

// Idle fires the idle event to every registered listener.
func (h *Headless) Idle() {
	for _, fn := range h.listeners(h.idle) {
		fn()
	}
}

// ClickBackground fires a click on the map outside any marker.
func (h *Headless) ClickBackground() {
	for _, fn := range h.listeners(h.background) {
		fn()
	}
}

// IdleListeners returns the number of attached idle listeners.
func (h *Headless) IdleListeners() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.idle)
}

func (h *Headless) listeners(set map[int]func()) []func() {
	h.mu.Lock()
	defer h.mu.Unlock()
	ids := make([]int, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]func(), 0, len(ids))
	for _, id := range ids {
		out = append(out, set[id])
	}
	return out
}

func (h *Headless) PanTo(p LatLng) {
	h.mu.Lock()
	dLat, dLng := p.Lat-h.center.Lat, p.Lng-h.center.Lng
	h.center = p
	if h.hasBounds {
		h.bounds = mapitem.BoundingBox{
			MinLat: h.bounds.MinLat + dLat, MaxLat: h.bounds.MaxLat + dLat,
			MinLng: h.bounds.MinLng + dLng, MaxLng: h.bounds.MaxLng + dLng,
		}
	}
	h.ops = append(h.ops, Op{Kind: OpPanTo, Position: p})
	h.mu.Unlock()
	h.log.Debug().Float64("lat", p.Lat).Float64("lng", p.Lng).Msg("map pan")
	h.Idle()
}

func (h *Headless) SetZoom(z int) {
	h.mu.Lock()
	h.zoom = clampZoom(z)
	zoom := h.zoom
	h.ops = append(h.ops, Op{Kind: OpSetZoom, Zoom: zoom})
	h.mu.Unlock()
	h.log.Debug().Int("zoom", zoom).Msg("map zoom")
	h.Idle()
}

func (h *Headless) AddMarker(spec MarkerSpec) Marker {
	m := &HeadlessMarker{
		h:        h,
		id:       spec.ID,
		position: spec.Position,
		style:    spec.Style,
		zIndex:   spec.Style.ZIndex,
		phases:   []Phase{spec.Phase},
	}
	h.mu.Lock()
	h.markers[spec.ID] = append(h.markers[spec.ID], m)
	h.ops = append(h.ops, Op{Kind: OpAdd, MarkerID: spec.ID, Phase: spec.Phase, Position: spec.Position})
	h.mu.Unlock()
	h.log.Debug().Str("marker", spec.ID).Str("phase", string(spec.Phase)).Msg("marker added")
	return m
}

// Ops returns a copy of the recorded operations.
func (h *Headless) Ops() []Op {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Op(nil), h.ops...)
}

// ResetOps clears the recorded operations.
func (h *Headless) ResetOps() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ops = nil
}

// CountOps returns how many recorded operations have the given kind.
func (h *Headless) CountOps(kind OpKind) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, op := range h.ops {
		if op.Kind == kind {
			n++
		}
	}
	return n
}

// Marker returns the live (not removed) marker for id.
func (h *Headless) Marker(id string) *HeadlessMarker {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, m := range h.markers[id] {
		if !m.removed {
			return m
		}
	}
	return nil
}

// Created returns how many markers were ever created for id.
func (h *Headless) Created(id string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.markers[id])
}

// LiveIDs returns the sorted ids of markers that have not been removed.
func (h *Headless) LiveIDs() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	var ids []string
	for id, ms := range h.markers {
		for _, m := range ms {
			if !m.removed {
				ids = append(ids, id)
				break
			}
		}
	}
	sort.Strings(ids)
	return ids
}

func (h *Headless) record(op Op) {
	h.mu.Lock()
	h.ops = append(h.ops, op)
	h.mu.Unlock()
}

func clampZoom(z int) int {
	if z < MinZoom {
		return MinZoom
	}
	if z > MaxZoom {
		return MaxZoom
	}
	return z
}

// HeadlessMarker is the Marker created by Headless.
type HeadlessMarker struct {
	h *Headless

	mu       sync.Mutex
	id       string
	position LatLng
	zIndex   int
	style    markerstyle.Style
	phases   []Phase
	onClick  func()
	removed  bool
}

func (m *HeadlessMarker) SetPosition(p LatLng) {
	m.mu.Lock()
	m.position = p
	m.mu.Unlock()
	m.h.record(Op{Kind: OpSetPosition, MarkerID: m.id, Position: p})
}

func (m *HeadlessMarker) SetZIndex(z int) {
	m.mu.Lock()
	m.zIndex = z
	m.mu.Unlock()
	m.h.record(Op{Kind: OpSetZIndex, MarkerID: m.id})
}

func (m *HeadlessMarker) SetContent(s markerstyle.Style) {
	m.mu.Lock()
	m.style = s
	m.mu.Unlock()
	m.h.record(Op{Kind: OpSetContent, MarkerID: m.id})
}

func (m *HeadlessMarker) SetPhase(p Phase) {
	m.mu.Lock()
	m.phases = append(m.phases, p)
	m.mu.Unlock()
	m.h.record(Op{Kind: OpSetPhase, MarkerID: m.id, Phase: p})
	m.h.log.Debug().Str("marker", m.id).Str("phase", string(p)).Msg("marker phase")
}

func (m *HeadlessMarker) OnClick(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onClick = fn
}

func (m *HeadlessMarker) Remove() {
	m.mu.Lock()
	m.removed = true
	m.onClick = nil
	m.mu.Unlock()
	m.h.record(Op{Kind: OpRemove, MarkerID: m.id})
	m.h.log.Debug().Str("marker", m.id).Msg("marker removed")
}

// Click simulates a user click on the marker.
func (m *HeadlessMarker) Click() {
	m.mu.Lock()
	fn := m.onClick
	m.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (m *HeadlessMarker) Position() LatLng {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.position
}

func (m *HeadlessMarker) ZIndex() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.zIndex
}

func (m *HeadlessMarker) Style() markerstyle.Style {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.style
}

// Phase returns the current phase.
func (m *HeadlessMarker) Phase() Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phases[len(m.phases)-1]
}

// Phases returns every phase the marker has been in, in order.
func (m *HeadlessMarker) Phases() []Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Phase(nil), m.phases...)
}

func (m *HeadlessMarker) Removed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.removed
}
