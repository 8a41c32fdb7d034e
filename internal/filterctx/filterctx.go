// Package filterctx holds the live filter value read by the viewport
// controller and notifies subscribers when it changes by value.
package filterctx

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"eventmap/core-go/internal/mapitem"
)

// Preset names a relative date range.
type Preset string

const (
	PresetToday    Preset = "today"
	PresetTomorrow Preset = "tomorrow"
	PresetWeek     Preset = "week"
	PresetMonth    Preset = "month"
)

// Range resolves the preset to concrete bounds in now's location. Start is
// the beginning of the first day and end the last instant of the last day.
func (p Preset) Range(now time.Time) (start, end time.Time, err error) {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	endOfDay := func(d time.Time) time.Time {
		return d.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}

	switch p {
	case PresetToday:
		return today, endOfDay(today), nil
	case PresetTomorrow:
		tomorrow := today.AddDate(0, 0, 1)
		return tomorrow, endOfDay(tomorrow), nil
	case PresetWeek:
		return today, endOfDay(today.AddDate(0, 0, 7)), nil
	case PresetMonth:
		return today, endOfDay(today.AddDate(0, 1, 0)), nil
	default:
		return time.Time{}, time.Time{}, fmt.Errorf("unknown date preset %q", p)
	}
}

// Store is an observable filter value.
type Store struct {
	mu     sync.Mutex
	cur    mapitem.Filters
	preset Preset
	nextID int
	subs   map[int]func(mapitem.Filters)
}

func NewStore(initial mapitem.Filters) *Store {
	return &Store{cur: initial.Normalize(), subs: make(map[int]func(mapitem.Filters))}
}

// Current returns the current filter value.
func (s *Store) Current() mapitem.Filters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cur
}

// Preset returns the active date preset, or "" for a custom or empty range.
func (s *Store) Preset() Preset {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.preset
}

// Set replaces the filter value and clears the date preset.
func (s *Store) Set(f mapitem.Filters) {
	s.apply(func(cur *mapitem.Filters) { *cur = f }, "")
}

// Update edits a copy of the current value.
func (s *Store) Update(fn func(f *mapitem.Filters)) {
	s.mu.Lock()
	preset := s.preset
	s.mu.Unlock()
	s.apply(fn, preset)
}

// Reset restores the empty filter.
func (s *Store) Reset() {
	s.Set(mapitem.Filters{})
}

// ApplyPreset sets the date range from a preset relative to now.
func (s *Store) ApplyPreset(p Preset, now time.Time) error {
	start, end, err := p.Range(now)
	if err != nil {
		return err
	}
	s.apply(func(f *mapitem.Filters) {
		f.DateStart = &start
		f.DateEnd = &end
	}, p)
	return nil
}

// Subscribe registers fn for value changes. It is not called for updates
// that leave the value equal.
func (s *Store) Subscribe(fn func(mapitem.Filters)) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	id := s.nextID
	s.subs[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}

func (s *Store) apply(fn func(f *mapitem.Filters), preset Preset) {
	s.mu.Lock()
	next := s.cur
	fn(&next)
	next = next.Normalize()
	s.preset = preset
	if next.Equal(s.cur) {
		s.mu.Unlock()
		return
	}
	s.cur = next
	subs := s.subscribersLocked()
	s.mu.Unlock()

	for _, sub := range subs {
		sub(next)
	}
}

func (s *Store) subscribersLocked() []func(mapitem.Filters) {
	ids := make([]int, 0, len(s.subs))
	for id := range s.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]func(mapitem.Filters), 0, len(ids))
	for _, id := range ids {
		out = append(out, s.subs[id])
	}
	return out
}
