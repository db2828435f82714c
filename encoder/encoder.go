package encoder

import (
	"fmt"
	"sync"
	"time"
)

const (
	Channels      = 1
	BitsPerSample = 16
	BlockSize     = 4096
)

const (
	FormatFLAC = "flac"
	FormatWAV  = "wav"
)

type Encoder interface {
	EncodeBlock(block []int16) error
	Close() error
	Bytes() []byte
	TotalFrames() uint64
	AddEncodeTime(d time.Duration)
	EncodeTime() time.Duration
	MimeType() string
	Ext() string
}

// New returns an encoder for format ("flac" or "wav") at the given sample
// rate. An empty format means FLAC.
func New(format string, sampleRate int) (Encoder, error) {
	switch format {
	case FormatFLAC, "":
		return NewFlac(sampleRate)
	case FormatWAV:
		return NewWav(sampleRate), nil
	default:
		return nil, fmt.Errorf("unknown format %q (want flac or wav)", format)
	}
}

// counters holds the bookkeeping shared by every encoder. Its mutex also
// guards the embedding encoder's own state.
type counters struct {
	mu          sync.Mutex
	totalFrames uint64
	encodeTime  time.Duration
}

// TotalFrames counts samples accepted so far.
func (c *counters) TotalFrames() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.totalFrames
}

func (c *counters) AddEncodeTime(d time.Duration) {
	c.mu.Lock()
	c.encodeTime += d
	c.mu.Unlock()
}

func (c *counters) EncodeTime() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.encodeTime
}
