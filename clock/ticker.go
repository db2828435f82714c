package clock

import (
	"sync"
	"time"
)

// Ticker invokes its callback every period until stopped. Unlike
// time.Ticker it never queues missed ticks: the next tick is armed when
// the current one fires.
type Ticker struct {
	clk    Clock
	period time.Duration
	fn     func(*Ticker)

	mu      sync.Mutex
	timer   Timer
	next    time.Time
	frozen  time.Duration
	stopped bool
}

// NewTicker arms a ticker whose first tick fires one period from now.
// The callback receives the ticker so owners can tell a live tick from a
// stale one that raced with Stop.
func NewTicker(clk Clock, period time.Duration, fn func(*Ticker)) *Ticker {
	return NewTickerAfter(clk, period, period, fn)
}

// NewTickerAfter is NewTicker with the first tick due after first instead
// of a full period. Owners use it to resume a stopped ticker part-way
// through a period.
func NewTickerAfter(clk Clock, first, period time.Duration, fn func(*Ticker)) *Ticker {
	first = min(max(first, 0), period)
	t := &Ticker{clk: clk, period: period, fn: fn}
	t.mu.Lock()
	t.next = clk.Now().Add(first)
	t.timer = clk.AfterFunc(first, t.fire)
	t.mu.Unlock()
	return t
}

func (t *Ticker) fire() {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}
	t.next = t.clk.Now().Add(t.period)
	t.timer = t.clk.AfterFunc(t.period, t.fire)
	t.mu.Unlock()
	t.fn(t)
}

// Stop disarms the ticker. Safe to call more than once and on a nil ticker.
func (t *Ticker) Stop() {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return
	}
	t.stopped = true
	t.frozen = t.sinceLocked()
	if t.timer != nil {
		t.timer.Stop()
	}
}

func (t *Ticker) Stopped() bool {
	if t == nil {
		return true
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

func (t *Ticker) Period() time.Duration { return t.period }

// SinceTick reports how far the current period has run, in [0, period).
// A stopped ticker keeps the value it had when stopped. Nil reports 0.
func (t *Ticker) SinceTick() time.Duration {
	if t == nil {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return t.frozen
	}
	return t.sinceLocked()
}

func (t *Ticker) sinceLocked() time.Duration {
	left := t.next.Sub(t.clk.Now())
	return min(max(t.period-left, 0), t.period-1)
}
