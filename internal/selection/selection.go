// Package selection tracks which events the sidebar shows: the clicked
// selection when there is one, otherwise every event resolvable from the
// current map items.
package selection

import (
	"fmt"
	"sync"

	"eventmap/core-go/internal/mapitem"
	"eventmap/core-go/internal/surface"
)

// View is the sidebar state derived from the selection and the map items.
type View struct {
	Open     bool
	Title    string
	Events   []mapitem.EventRecord
	Selected bool
	Loading  bool
}

// Feed flattens map items into events: every point's event and the members of
// every enumerable cluster. Clusters without members contribute nothing.
func Feed(items []mapitem.Item) []mapitem.EventRecord {
	out := []mapitem.EventRecord{}
	for _, it := range items {
		switch {
		case !it.IsCluster() && it.Event != nil:
			out = append(out, *it.Event)
		case it.Enumerable():
			out = append(out, it.Events...)
		}
	}
	return out
}

// Title returns the sidebar heading.
func Title(selected, feed int) string {
	switch {
	case selected > 1:
		return fmt.Sprintf("Selected Events (%d)", selected)
	case selected == 1:
		return "Event Details"
	default:
		return fmt.Sprintf("Events in View (%d)", feed)
	}
}

type Coordinator struct {
	mu       sync.Mutex
	open     bool
	selected []mapitem.EventRecord
	items    []mapitem.Item
	loading  bool
	nextID   int
	subs     map[int]func(View)
}

// New returns a coordinator whose sidebar starts open or closed.
func New(open bool) *Coordinator {
	return &Coordinator{open: open, subs: make(map[int]func(View))}
}

// Select shows events as the selection and opens the sidebar. An empty slice
// clears the selection.
func (c *Coordinator) Select(events []mapitem.EventRecord) {
	c.mutate(func() {
		c.selected = append([]mapitem.EventRecord(nil), events...)
		c.open = true
	})
}

// ClearSelection returns the sidebar to the feed without closing it.
func (c *Coordinator) ClearSelection() {
	c.mutate(func() { c.selected = nil })
}

// Open shows the sidebar.
func (c *Coordinator) Open() {
	c.mutate(func() { c.open = true })
}

// Close hides the sidebar and drops the selection.
func (c *Coordinator) Close() {
	c.mutate(func() {
		c.selected = nil
		c.open = false
	})
}

// Toggle closes an open sidebar or opens a closed one.
func (c *Coordinator) Toggle() {
	c.mu.Lock()
	open := c.open
	c.mu.Unlock()
	if open {
		c.Close()
		return
	}
	c.Open()
}

// SetItems replaces the map items the feed is built from.
func (c *Coordinator) SetItems(items []mapitem.Item, loading bool) {
	c.mutate(func() {
		c.items = items
		c.loading = loading
	})
}

// AttachMap clears the selection on background clicks.
func (c *Coordinator) AttachMap(m surface.Map) (detach func()) {
	return m.OnBackgroundClick(c.ClearSelection)
}

// View returns the current sidebar state.
func (c *Coordinator) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewLocked()
}

// Subscribe registers fn for every state change.
func (c *Coordinator) Subscribe(fn func(View)) (unsubscribe func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	id := c.nextID
	c.subs[id] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.subs, id)
	}
}

func (c *Coordinator) mutate(fn func()) {
	c.mu.Lock()
	fn()
	v := c.viewLocked()
	subs := make([]func(View), 0, len(c.subs))
	for id := 1; id <= c.nextID; id++ {
		if s, ok := c.subs[id]; ok {
			subs = append(subs, s)
		}
	}
	c.mu.Unlock()

	for _, s := range subs {
		s(v)
	}
}

func (c *Coordinator) viewLocked() View {
	v := View{Open: c.open, Loading: c.loading, Selected: len(c.selected) > 0}
	if v.Selected {
		v.Events = append([]mapitem.EventRecord(nil), c.selected...)
	} else {
		v.Events = Feed(c.items)
	}
	v.Title = Title(len(c.selected), len(v.Events))
	return v
}
