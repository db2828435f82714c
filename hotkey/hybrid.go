package hotkey

import (
	"sync/atomic"
	"time"
)

type Mode string

const (
	ModeHold   Mode = "hold"
	ModeToggle Mode = "toggle"
)

// StartEvent asks for a take to begin.
type StartEvent struct {
	Mode Mode
}

// Hybrid turns one key combination into take commands. A tap starts a take
// and the next tap stops it; holding past the long-press threshold records
// only while the key is held, so letting go early also cancels a countdown.
type Hybrid struct {
	startCh chan StartEvent
	stopCh  chan struct{}
	done    chan struct{}
	toggle  atomic.Bool
}

// NewHybrid builds a Hybrid on top of hk. Presses shorter than longPress
// are taps.
func NewHybrid(hk Hotkey, longPress time.Duration) *Hybrid {
	h := &Hybrid{
		startCh: make(chan StartEvent, 1),
		stopCh:  make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	go h.run(hk, longPress)
	return h
}

func (h *Hybrid) Start() <-chan StartEvent { return h.startCh }

// StopChan fires when the current take should end, in either mode.
func (h *Hybrid) StopChan() <-chan struct{} { return h.stopCh }

// IsToggle reports whether the take in progress was started by a tap.
func (h *Hybrid) IsToggle() bool { return h.toggle.Load() }

func (h *Hybrid) Close() {
	select {
	case <-h.done:
	default:
		close(h.done)
	}
}

type hybridState int

const (
	stIdle hybridState = iota
	stToggleRecording
)

func (h *Hybrid) closed() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

func (h *Hybrid) wait(ch <-chan struct{}) bool {
	if h.closed() {
		return false
	}
	select {
	case <-ch:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hybrid) signalStop() {
	select {
	case h.stopCh <- struct{}{}:
	default:
	}
}

func (h *Hybrid) run(hk Hotkey, longPress time.Duration) {
	state := stIdle
	for {
		switch state {
		case stIdle:
			if !h.wait(hk.Keydown()) {
				return
			}
			// Start on press; hold duration only decides how the take ends.
			if h.closed() {
				return
			}
			h.toggle.Store(false)
			select {
			case h.startCh <- StartEvent{Mode: ModeToggle}:
			case <-h.done:
				return
			}
			timer := time.NewTimer(longPress)
			select {
			case <-timer.C:
				if !h.wait(hk.Keyup()) {
					return
				}
				h.signalStop()
			case <-hk.Keyup():
				timer.Stop()
				h.toggle.Store(true)
				state = stToggleRecording
			case <-h.done:
				timer.Stop()
				return
			}
		case stToggleRecording:
			if !h.wait(hk.Keydown()) || !h.wait(hk.Keyup()) {
				return
			}
			h.toggle.Store(false)
			h.signalStop()
			state = stIdle
		}
	}
}
