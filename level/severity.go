package level

import "time"

// Severity is a discretized loudness band, ordered by escalation priority.
type Severity int

const (
	Low Severity = iota
	Optimal
	Warning
	Clipping
)

func (s Severity) String() string {
	switch s {
	case Low:
		return "low"
	case Optimal:
		return "optimal"
	case Warning:
		return "warning"
	case Clipping:
		return "clipping"
	}
	return "unknown"
}

// Hold is the minimum dwell time at s before a lower band may take over.
func (s Severity) Hold() time.Duration {
	switch s {
	case Clipping:
		return 1500 * time.Millisecond
	case Warning:
		return 900 * time.Millisecond
	default:
		return 500 * time.Millisecond
	}
}

// BandState is a sticky severity indicator: escalation applies at once,
// de-escalation waits until HoldUntil.
type BandState struct {
	Current   Severity
	HoldUntil time.Time
}

// Apply folds a freshly classified severity into the band and returns the
// band to display.
func (b *BandState) Apply(candidate Severity, now time.Time) Severity {
	switch {
	case candidate > b.Current:
		b.Current = candidate
		b.HoldUntil = now.Add(candidate.Hold())
	case candidate < b.Current:
		if !now.Before(b.HoldUntil) {
			b.Current = candidate
			b.HoldUntil = now.Add(candidate.Hold())
		}
	default:
		if !now.Before(b.HoldUntil) {
			b.HoldUntil = now.Add(candidate.Hold())
		}
	}
	return b.Current
}

// Classify maps a decibel value and the held peak to a severity. A peak at
// or above ClipThreshold wins regardless of the RMS-derived decibels.
func Classify(db, peak float64) Severity {
	switch {
	case peak >= ClipThreshold || db >= -1:
		return Clipping
	case db >= -6:
		return Warning
	case db >= -18:
		return Optimal
	default:
		return Low
	}
}
