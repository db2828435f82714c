package level

import "time"

const (
	silenceWarnEvery = 8 * time.Second
	speechMinRatio   = 0.10
	speechClearRatio = 0.25 // higher threshold to clear warning (hysteresis)
)

type SilenceEvent int

const (
	SilenceNone   SilenceEvent = iota
	SilenceWarn                // no voice detected
	SilenceClear               // voice resumed after a warning
	SilenceRepeat              // still silent, remind every 8s
)

// SilenceWatch tracks the share of meter ticks that carried voice during a
// take and raises a warning when the last 8 seconds were almost silent.
type SilenceWatch struct {
	windowSz int

	ticks    int
	window   []bool
	warned   bool
	lastWarn int
}

func NewSilenceWatch() *SilenceWatch {
	windowSz := int(silenceWarnEvery / TickInterval)
	return &SilenceWatch{
		windowSz: windowSz,
		window:   make([]bool, windowSz),
	}
}

func (w *SilenceWatch) ratio() float64 {
	n := min(w.ticks, w.windowSz)
	if n == 0 {
		return 1.0
	}
	count := 0
	for i := 0; i < n; i++ {
		if w.window[(w.ticks-1-i+w.windowSz)%w.windowSz] {
			count++
		}
	}
	return float64(count) / float64(n)
}

// Tick records one meter tick. A band at Optimal or above counts as voice.
func (w *SilenceWatch) Tick(band Severity) SilenceEvent {
	w.window[w.ticks%w.windowSz] = band >= Optimal
	w.ticks++

	r := w.ratio()
	if w.ticks >= w.windowSz && r < speechMinRatio && !w.warned {
		w.warned = true
		w.lastWarn = w.ticks
		return SilenceWarn
	}
	if w.warned && r >= speechClearRatio {
		w.warned = false
		return SilenceClear
	}
	if w.warned && w.ticks-w.lastWarn >= w.windowSz {
		w.lastWarn = w.ticks
		return SilenceRepeat
	}
	return SilenceNone
}

func (w *SilenceWatch) Warned() bool { return w.warned }

func (w *SilenceWatch) Reset() {
	w.ticks = 0
	w.warned = false
	w.lastWarn = 0
	clear(w.window)
}
