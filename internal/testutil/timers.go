package testutil

import (
	"sync"
	"time"
)

// ManualTimers is a timer factory whose timers only fire when told to.
type ManualTimers struct {
	mu     sync.Mutex
	timers []*ManualTimer
}

// ManualTimer is one scheduled callback.
type ManualTimer struct {
	Delay   time.Duration
	fn      func()
	stopped bool
	fired   bool
	owner   *ManualTimers
}

// AfterFunc records a timer. Its signature matches confirm.AfterFunc.
func (m *ManualTimers) AfterFunc(d time.Duration, f func()) interface{ Stop() bool } {
	m.mu.Lock()
	defer m.mu.Unlock()

	t := &ManualTimer{Delay: d, fn: f, owner: m}
	m.timers = append(m.timers, t)
	return t
}

// Stop cancels the timer.
func (t *ManualTimer) Stop() bool {
	t.owner.mu.Lock()
	defer t.owner.mu.Unlock()

	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// Fire runs the callback regardless of Stop, the way a timer that already
// started firing races with Stop.
func (t *ManualTimer) Fire() {
	t.owner.mu.Lock()
	t.fired = true
	fn := t.fn
	t.owner.mu.Unlock()
	fn()
}

// Stopped reports whether Stop was called before the timer fired.
func (t *ManualTimer) Stopped() bool {
	t.owner.mu.Lock()
	defer t.owner.mu.Unlock()
	return t.stopped
}

// All returns every timer created so far.
func (m *ManualTimers) All() []*ManualTimer {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*ManualTimer(nil), m.timers...)
}

// Last returns the most recent timer or nil.
func (m *ManualTimers) Last() *ManualTimer {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.timers) == 0 {
		return nil
	}
	return m.timers[len(m.timers)-1]
}

// Live returns the timers that were neither stopped nor fired.
func (m *ManualTimers) Live() []*ManualTimer {
	m.mu.Lock()
	defer m.mu.Unlock()

	var live []*ManualTimer
	for _, t := range m.timers {
		if !t.stopped && !t.fired {
			live = append(live, t)
		}
	}
	return live
}
