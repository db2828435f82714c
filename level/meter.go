// Package level turns raw audio frames into a smoothed level, a decibel
// reading and a hysteresis-banded severity for the input meter.
package level

import (
	"math"
	"time"
)

const (
	TickInterval   = 100 * time.Millisecond
	PeakHoldWindow = 300 * time.Millisecond
	ClipThreshold  = 0.99
	FloorDB        = -100.0

	smoothing = 0.8
	gain      = 3.0 // lifts typical speech off the bottom of the meter
)

// Reading is what the meter publishes every tick.
type Reading struct {
	RMS      float64
	Peak     float64
	PeakHold float64
	Level    float64 // smoothed, gain-boosted, in [0,1]
	DB       float64
	Band     Severity
	Color    string
	At       time.Time
}

// Meter holds the running state between frames. The zero value is ready to
// use and reads as silence.
type Meter struct {
	level      float64
	peakHold   float64
	peakHoldAt time.Time
	band       BandState
}

// Process analyzes one frame of normalized samples in [-1,1].
func (m *Meter) Process(frame []float64, now time.Time) Reading {
	rms, peak := Analyze(frame)

	if peak > m.peakHold || now.Sub(m.peakHoldAt) >= PeakHoldWindow {
		m.peakHold = peak
		m.peakHoldAt = now
	}

	m.level = smoothing*m.level + (1-smoothing)*math.Min(1, rms*gain)

	db := DecibelsFS(rms)
	if m.peakHold >= ClipThreshold {
		db = 0
	}
	band := m.band.Apply(Classify(db, m.peakHold), now)

	return Reading{
		RMS:      rms,
		Peak:     peak,
		PeakHold: m.peakHold,
		Level:    m.level,
		DB:       db,
		Band:     band,
		Color:    Color(band),
		At:       now,
	}
}

func (m *Meter) Band() BandState { return m.band }

func (m *Meter) Reset() { *m = Meter{} }

// Analyze returns the RMS and the absolute peak of a frame.
func Analyze(frame []float64) (rms, peak float64) {
	if len(frame) == 0 {
		return 0, 0
	}
	var sumSquares float64
	for _, s := range frame {
		sumSquares += s * s
		if a := math.Abs(s); a > peak {
			peak = a
		}
	}
	return math.Sqrt(sumSquares / float64(len(frame))), math.Min(peak, 1)
}

// DecibelsFS converts an RMS amplitude to dBFS clamped to [FloorDB, 0].
func DecibelsFS(rms float64) float64 {
	if rms <= 0 {
		return FloorDB
	}
	db := 20 * math.Log10(rms)
	return math.Max(FloorDB, math.Min(0, db))
}
