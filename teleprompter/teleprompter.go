// Package teleprompter advances the script scroll offset while the user
// is recording or rehearsing.
package teleprompter

import (
	"sync"
	"time"

	"prompter/clock"
)

const (
	TickInterval = 100 * time.Millisecond

	MinSpeed     = 0.5
	MaxSpeed     = 5.0
	DefaultSpeed = 1.0

	MinFontSize     = 8
	MaxFontSize     = 72
	DefaultFontSize = 16

	DefaultText = "Type your script here and it will scroll while you record."
)

// State is a snapshot of the scroll controller.
type State struct {
	Position   float64
	Speed      float64
	FontSize   int
	Text       string
	Rehearsing bool
	Scrolling  bool
}

// Controller owns the scroll offset. Two intents can drive scrolling, a live
// take and a rehearsal, but they share a single gate and a single ticker.
type Controller struct {
	clk      clock.Clock
	onScroll func(State)

	mu         sync.Mutex
	position   float64
	speed      float64
	fontSize   int
	text       string
	recording  bool
	rehearsing bool
	ticker     *clock.Ticker
	carry      time.Duration
}

func New(clk clock.Clock, onScroll func(State)) *Controller {
	return &Controller{
		clk:      clk,
		onScroll: onScroll,
		speed:    DefaultSpeed,
		fontSize: DefaultFontSize,
		text:     DefaultText,
	}
}

// SetRecording tells the controller whether a take is actively capturing
// (recording and not paused).
func (c *Controller) SetRecording(active bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.recording = active
	c.syncLocked()
}

// ToggleRehearse flips rehearsal and reports the new value.
func (c *Controller) ToggleRehearse() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rehearsing = !c.rehearsing
	c.syncLocked()
	return c.rehearsing
}

func (c *Controller) StopRehearsal() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rehearsing = false
	c.syncLocked()
}

func (c *Controller) ResetScroll() {
	c.mu.Lock()
	c.position = 0
	c.carry = 0
	c.mu.Unlock()
}

func (c *Controller) SetSpeed(speed float64) {
	c.mu.Lock()
	c.speed = min(max(speed, MinSpeed), MaxSpeed)
	c.mu.Unlock()
}

// SetFontSize is cosmetic; the controller only stores it for the renderer.
func (c *Controller) SetFontSize(size int) {
	c.mu.Lock()
	c.fontSize = min(max(size, MinFontSize), MaxFontSize)
	c.mu.Unlock()
}

func (c *Controller) SetText(text string) {
	c.mu.Lock()
	c.text = text
	c.mu.Unlock()
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

// Close tears down the ticker.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.recording = false
	c.rehearsing = false
	c.syncLocked()
}

func (c *Controller) stateLocked() State {
	return State{
		Position:   c.position,
		Speed:      c.speed,
		FontSize:   c.fontSize,
		Text:       c.text,
		Rehearsing: c.rehearsing,
		Scrolling:  c.ticker != nil,
	}
}

// syncLocked starts or tears down the ticker to match the gate. The ticker
// is torn down, not paused, when the gate closes; the part of the interval
// already run is carried into the next opening.
func (c *Controller) syncLocked() {
	gate := c.recording || c.rehearsing
	switch {
	case gate && c.ticker == nil:
		c.ticker = clock.NewTickerAfter(c.clk, TickInterval-c.carry, TickInterval, c.tick)
	case !gate && c.ticker != nil:
		c.ticker.Stop()
		c.carry = c.ticker.SinceTick()
		c.ticker = nil
	}
}

func (c *Controller) tick(t *clock.Ticker) {
	c.mu.Lock()
	if t != c.ticker {
		c.mu.Unlock()
		return
	}
	c.position += c.speed
	st := c.stateLocked()
	cb := c.onScroll
	c.mu.Unlock()

	if cb != nil {
		cb(st)
	}
}
