// Package schedule abstracts timers and animation frames so that client
// components can be driven by a real clock or stepped by hand in tests.
package schedule

import (
	"sort"
	"sync"
	"time"
)

// Timer is a pending callback. Stop reports whether it prevented the call.
type Timer interface {
	Stop() bool
}

// Scheduler runs callbacks after a delay or on the next rendered frame.
type Scheduler interface {
	AfterFunc(d time.Duration, fn func()) Timer
	NextFrame(fn func()) Timer
}

// FrameInterval is the frame period of the real scheduler.
const FrameInterval = 16 * time.Millisecond

type realScheduler struct{}

// Real returns a Scheduler backed by time.AfterFunc.
func Real() Scheduler {
	return realScheduler{}
}

func (realScheduler) AfterFunc(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, fn)
}

func (realScheduler) NextFrame(fn func()) Timer {
	return time.AfterFunc(FrameInterval, fn)
}

// Manual is a Scheduler whose clock only moves when Advance is called and
// whose frames only render when Frame is called. Callbacks run on the
// goroutine that calls Advance or Frame.
type Manual struct {
	mu     sync.Mutex
	now    time.Duration
	seq    uint64
	timers []*manualTimer
	frames []*manualTimer
}

type manualTimer struct {
	m       *Manual
	at      time.Duration
	seq     uint64
	fn      func()
	stopped bool
	fired   bool
}

func NewManual() *Manual {
	return &Manual{}
}

func (m *Manual) AfterFunc(d time.Duration, fn func()) Timer {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d < 0 {
		d = 0
	}
	m.seq++
	t := &manualTimer{m: m, at: m.now + d, seq: m.seq, fn: fn}
	m.timers = append(m.timers, t)
	return t
}

func (m *Manual) NextFrame(fn func()) Timer {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	t := &manualTimer{m: m, seq: m.seq, fn: fn}
	m.frames = append(m.frames, t)
	return t
}

func (t *manualTimer) Stop() bool {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// Advance moves the clock forward by d and runs every timer that becomes due,
// in due order. Timers scheduled by callbacks run too if they fall inside the
// window.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	target := m.now + d
	m.mu.Unlock()

	for {
		m.mu.Lock()
		next := m.nextDueLocked(target)
		if next == nil {
			m.now = target
			m.mu.Unlock()
			return
		}
		m.now = next.at
		next.fired = true
		m.mu.Unlock()

		next.fn()
	}
}

func (m *Manual) nextDueLocked(target time.Duration) *manualTimer {
	live := m.timers[:0]
	for _, t := range m.timers {
		if !t.stopped && !t.fired {
			live = append(live, t)
		}
	}
	m.timers = live
	sort.SliceStable(m.timers, func(i, j int) bool {
		if m.timers[i].at != m.timers[j].at {
			return m.timers[i].at < m.timers[j].at
		}
		return m.timers[i].seq < m.timers[j].seq
	})
	if len(m.timers) == 0 || m.timers[0].at > target {
		return nil
	}
	return m.timers[0]
}

// Frame renders one frame: every frame callback queued before the call runs.
// Callbacks queued while the frame runs wait for the next one.
func (m *Manual) Frame() {
	m.mu.Lock()
	batch := m.frames
	m.frames = nil
	m.mu.Unlock()

	for _, t := range batch {
		m.mu.Lock()
		run := !t.stopped && !t.fired
		t.fired = true
		m.mu.Unlock()
		if run {
			t.fn()
		}
	}
}

// Pending returns the number of live timers and queued frame callbacks.
func (m *Manual) Pending() (timers, frames int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.timers {
		if !t.stopped && !t.fired {
			timers++
		}
	}
	for _, t := range m.frames {
		if !t.stopped && !t.fired {
			frames++
		}
	}
	return timers, frames
}

// Now returns the manual clock's elapsed time.
func (m *Manual) Now() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}
