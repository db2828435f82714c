// Package beep plays short audio cues and take previews on the default
// output device.
package beep

import (
	"encoding/binary"
	"math"
	"sync"
	"sync/atomic"
)

var disabled atomic.Bool

// Disable silences every cue. Preview playback is unaffected.
func Disable() { disabled.Store(true) }

const (
	sampleRate = 44100

	// Countdown tick: short, neutral pitch
	tickFreq   = 1000
	tickVolume = 0.4
	tickDecay  = 80

	// Start beep: high pitch, short
	startFreq   = 1200
	startVolume = 0.5
	startDecay  = 60

	// End beep: medium pitch, slightly longer
	endFreq   = 900
	endVolume = 0.5
	endDecay  = 40

	// Error beep: low pitch double-beep
	errorFreq   = 350
	errorVolume = 0.6
	errorDecay  = 30
)

var (
	tickSamples  []int16
	startSamples []int16
	endSamples   []int16
	errorSamples []int16
	soundOnce    sync.Once
)

func initSound() {
	tickSamples = generateTick(sampleRate, tickFreq, 0.12, tickVolume, tickDecay)
	startSamples = generateTick(sampleRate, startFreq, 0.2, startVolume, startDecay)
	endSamples = generateTick(sampleRate, endFreq, 0.2, endVolume, endDecay)
	errorSamples = generateDoubleBeep(sampleRate, errorFreq, 0.08, 0.05, errorVolume, errorDecay)
}

// generateTick renders a mono sine with an exponential decay envelope.
func generateTick(sampleRate int, freq, duration, volume, decay float64) []int16 {
	n := int(float64(sampleRate) * duration)
	samples := make([]int16, n)
	for i := range samples {
		t := float64(i) / float64(sampleRate)
		envelope := math.Exp(-t * decay)
		samples[i] = int16(math.Sin(2*math.Pi*freq*t) * 32767 * volume * envelope)
	}
	return samples
}

func generateDoubleBeep(sampleRate int, freq, beepDur, gapDur, volume, decay float64) []int16 {
	beep := generateTick(sampleRate, freq, beepDur, volume, decay)
	gap := make([]int16, int(float64(sampleRate)*gapDur))
	result := make([]int16, 0, len(beep)*2+len(gap))
	result = append(result, beep...)
	result = append(result, gap...)
	result = append(result, beep...)
	return result
}

func toBytes(samples []int16) []byte {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	return buf
}

func Init() {
	soundOnce.Do(initSound)
}

func cue(samples func() []int16) {
	if disabled.Load() {
		return
	}
	soundOnce.Do(initSound)
	go playCue(samples())
}

// PlayTick marks one countdown second.
func PlayTick() { cue(func() []int16 { return tickSamples }) }

func PlayStart() { cue(func() []int16 { return startSamples }) }

func PlayEnd() { cue(func() []int16 { return endSamples }) }

func PlayError() { cue(func() []int16 { return errorSamples }) }
