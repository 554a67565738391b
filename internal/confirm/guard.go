// Package confirm implements the two-step confirmation used before
// destructive actions: the first request arms a timer, a second request
// before the timer fires confirms.
package confirm

import (
	"sync"
	"time"
)

// DefaultTimeout is how long a first request waits for its confirmation.
const DefaultTimeout = 5 * time.Second

// State of a Guard.
type State int

const (
	Idle State = iota
	AwaitingConfirm
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case AwaitingConfirm:
		return "awaiting-confirm"
	default:
		return "unknown"
	}
}

// Result of a Request call.
type Result int

const (
	// AskConfirm means the guard was armed and the caller should ask the
	// user to repeat the action.
	AskConfirm Result = iota
	// Confirmed means the action should now be performed.
	Confirmed
)

// Timer is the part of *time.Timer the guard needs.
type Timer = interface {
	Stop() bool
}

// AfterFunc schedules f after d. time.AfterFunc satisfies it once wrapped.
type AfterFunc func(d time.Duration, f func()) Timer

// Config configures a Guard.
type Config struct {
	Timeout   time.Duration
	OnTimeout func()
	AfterFunc AfterFunc
}

// Guard is a small state machine with states Idle and AwaitingConfirm.
type Guard struct {
	mu        sync.Mutex
	state     State
	timer     Timer
	gen       uint64
	timeout   time.Duration
	onTimeout func()
	afterFunc AfterFunc
}

// New creates a guard. A nil config uses DefaultTimeout and real timers.
func New(cfg *Config) *Guard {
	g := &Guard{timeout: DefaultTimeout, afterFunc: systemAfterFunc}
	if cfg != nil {
		if cfg.Timeout > 0 {
			g.timeout = cfg.Timeout
		}
		if cfg.AfterFunc != nil {
			g.afterFunc = cfg.AfterFunc
		}
		g.onTimeout = cfg.OnTimeout
	}
	return g
}

func systemAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Request advances the guard. From Idle it arms the timer and returns
// AskConfirm; from AwaitingConfirm it disarms and returns Confirmed.
func (g *Guard) Request() Result {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state == AwaitingConfirm {
		g.disarmLocked()
		return Confirmed
	}

	g.state = AwaitingConfirm
	g.gen++
	gen := g.gen
	g.timer = g.afterFunc(g.timeout, func() { g.expire(gen) })
	return AskConfirm
}

// Reset returns the guard to Idle without signalling.
func (g *Guard) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.disarmLocked()
}

// State returns the current state.
func (g *Guard) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

func (g *Guard) disarmLocked() {
	if g.timer != nil {
		g.timer.Stop()
		g.timer = nil
	}
	g.state = Idle
	g.gen++
}

func (g *Guard) expire(gen uint64) {
	g.mu.Lock()
	if g.gen != gen || g.state != AwaitingConfirm {
		// Stale timer from an earlier arm.
		g.mu.Unlock()
		return
	}
	g.state = Idle
	g.timer = nil
	g.gen++
	cb := g.onTimeout
	g.mu.Unlock()

	if cb != nil {
		cb()
	}
}
