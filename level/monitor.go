package level

import (
	"sync"

	"prompter/clock"
)

// FrameSource yields the most recent analysis frame of a live input.
type FrameSource interface {
	Frame() []float64
}

// Monitor samples a FrameSource every TickInterval and publishes a Reading.
// It reads through the source but never owns it.
type Monitor struct {
	clk       clock.Clock
	onReading func(Reading)

	mu     sync.Mutex
	meter  Meter
	source FrameSource
	ticker *clock.Ticker
	last   Reading
}

func NewMonitor(clk clock.Clock, onReading func(Reading)) *Monitor {
	return &Monitor{
		clk:       clk,
		onReading: onReading,
		last:      Reading{Band: Low, DB: FloorDB, Color: Color(Low)},
	}
}

// Attach starts metering src. Attaching the source already being metered is
// a no-op; attaching a different one restarts from silence.
func (m *Monitor) Attach(src FrameSource) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ticker != nil && m.source == src {
		return
	}
	m.ticker.Stop()
	m.meter.Reset()
	m.source = src
	m.ticker = clock.NewTicker(m.clk, TickInterval, m.tick)
}

// Detach stops metering and resets to the initial (Low, 0) reading. The
// reading callback is not invoked, so callers may hold their own locks.
func (m *Monitor) Detach() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ticker == nil {
		return
	}
	m.ticker.Stop()
	m.ticker = nil
	m.source = nil
	m.meter.Reset()
	m.last = Reading{Band: Low, DB: FloorDB, Color: Color(Low)}
}

func (m *Monitor) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ticker != nil
}

func (m *Monitor) Last() Reading {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

func (m *Monitor) tick(t *clock.Ticker) {
	m.mu.Lock()
	if t != m.ticker {
		m.mu.Unlock()
		return
	}
	r := m.meter.Process(m.source.Frame(), m.clk.Now())
	m.last = r
	cb := m.onReading
	m.mu.Unlock()

	if cb != nil {
		cb(r)
	}
}
