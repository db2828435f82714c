package audio

import (
	"encoding/binary"
	"sync"
)

// Tap keeps the most recent frameSize samples of a capture stream so the
// level monitor can read a frame on its own schedule. Write runs on the
// audio thread, Frame on the monitor's.
type Tap struct {
	mu     sync.Mutex
	ring   []float64
	pos    int
	filled bool
}

func NewTap(frameSize int) *Tap {
	return &Tap{ring: make([]float64, frameSize)}
}

// Write appends 16-bit little-endian PCM.
func (t *Tap) Write(data []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := 0; i+1 < len(data); i += 2 {
		sample := int16(binary.LittleEndian.Uint16(data[i:]))
		t.ring[t.pos] = float64(sample) / 32768.0
		t.pos++
		if t.pos == len(t.ring) {
			t.pos = 0
			t.filled = true
		}
	}
}

// Frame returns a copy of the buffered samples, oldest first, normalized
// to [-1,1]. Before the ring first fills only the written part is returned.
func (t *Tap) Frame() []float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.filled {
		return append([]float64(nil), t.ring[:t.pos]...)
	}
	out := make([]float64, 0, len(t.ring))
	out = append(out, t.ring[t.pos:]...)
	return append(out, t.ring[:t.pos]...)
}

func (t *Tap) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	clear(t.ring)
	t.pos = 0
	t.filled = false
}
