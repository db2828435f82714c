package recorder

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"prompter/encoder"

	"github.com/google/uuid"
)

var ErrFinalized = errors.New("recorder already finalized")

// Recorder buffers captured PCM into fixed-size blocks and encodes them on
// a background goroutine. While paused, fed audio is dropped.
type Recorder struct {
	enc        encoder.Encoder
	sampleRate int
	blockChan  chan []int16
	encodeDone chan struct{}

	bufMu     sync.Mutex
	sampleBuf []int16
	paused    bool
	done      bool

	errMu  sync.Mutex
	encErr error
}

func New(format string, sampleRate int) (*Recorder, error) {
	enc, err := encoder.New(format, sampleRate)
	if err != nil {
		return nil, err
	}
	r := &Recorder{
		enc:        enc,
		sampleRate: sampleRate,
		blockChan:  make(chan []int16, 64),
		encodeDone: make(chan struct{}),
	}

	go func() {
		defer close(r.encodeDone)
		for block := range r.blockChan {
			start := time.Now()
			if err := r.enc.EncodeBlock(block); err != nil {
				r.errMu.Lock()
				if r.encErr == nil {
					r.encErr = err
				}
				r.errMu.Unlock()
			}
			r.enc.AddEncodeTime(time.Since(start))
		}
	}()

	return r, nil
}

// Feed accepts 16-bit little-endian mono PCM.
func (r *Recorder) Feed(pcm []byte) {
	r.bufMu.Lock()
	defer r.bufMu.Unlock()
	if r.paused || r.done {
		return
	}
	for i := 0; i+1 < len(pcm); i += 2 {
		r.sampleBuf = append(r.sampleBuf, int16(binary.LittleEndian.Uint16(pcm[i:])))
	}
	for len(r.sampleBuf) >= encoder.BlockSize {
		block := make([]int16, encoder.BlockSize)
		copy(block, r.sampleBuf[:encoder.BlockSize])
		r.sampleBuf = r.sampleBuf[encoder.BlockSize:]
		r.blockChan <- block
	}
}

func (r *Recorder) Pause() {
	r.bufMu.Lock()
	r.paused = true
	r.bufMu.Unlock()
}

func (r *Recorder) Resume() {
	r.bufMu.Lock()
	r.paused = false
	r.bufMu.Unlock()
}

func (r *Recorder) Paused() bool {
	r.bufMu.Lock()
	defer r.bufMu.Unlock()
	return r.paused
}

// Finalize flushes the buffered samples and returns the encoded take.
func (r *Recorder) Finalize(now time.Time) (*Artifact, error) {
	if !r.finish(true) {
		return nil, ErrFinalized
	}
	<-r.encodeDone

	r.errMu.Lock()
	encErr := r.encErr
	r.errMu.Unlock()
	if encErr != nil {
		return nil, fmt.Errorf("encoding: %w", encErr)
	}
	if err := r.enc.Close(); err != nil {
		return nil, fmt.Errorf("closing encoder: %w", err)
	}

	frames := r.enc.TotalFrames()
	return &Artifact{
		ID:        uuid.New(),
		Data:      r.enc.Bytes(),
		MimeKind:  r.enc.MimeType(),
		Ext:       r.enc.Ext(),
		CreatedAt: now,
		Duration:  time.Duration(frames) * time.Second / time.Duration(r.sampleRate),
	}, nil
}

// Abort stops encoding and drops everything recorded so far.
func (r *Recorder) Abort() {
	if r.finish(false) {
		<-r.encodeDone
	}
}

func (r *Recorder) EncodeTime() time.Duration {
	return r.enc.EncodeTime()
}

func (r *Recorder) finish(flush bool) bool {
	r.bufMu.Lock()
	defer r.bufMu.Unlock()
	if r.done {
		return false
	}
	r.done = true
	if flush && len(r.sampleBuf) > 0 {
		partial := make([]int16, len(r.sampleBuf))
		copy(partial, r.sampleBuf)
		r.blockChan <- partial
	}
	r.sampleBuf = nil
	close(r.blockChan)
	return true
}
