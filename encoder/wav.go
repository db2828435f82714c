package encoder

import (
	"bytes"
	"encoding/binary"
)

const wavHeaderSize = 44

// WavEncoder accumulates PCM and prepends a canonical 44-byte RIFF header
// on Close.
type WavEncoder struct {
	counters
	pcm        bytes.Buffer
	out        []byte
	sampleRate int
}

func NewWav(sampleRate int) *WavEncoder {
	return &WavEncoder{sampleRate: sampleRate}
}

func (w *WavEncoder) EncodeBlock(block []int16) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.out != nil {
		return ErrClosed
	}
	var b [2]byte
	for _, s := range block {
		binary.LittleEndian.PutUint16(b[:], uint16(s))
		w.pcm.Write(b[:])
	}
	w.totalFrames += uint64(len(block))
	return nil
}

func (w *WavEncoder) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.out != nil {
		return nil
	}
	w.out = append(wavHeader(w.pcm.Len(), w.sampleRate), w.pcm.Bytes()...)
	return nil
}

// Bytes returns the finished file after Close, nil before.
func (w *WavEncoder) Bytes() []byte {
	w.mu.Lock()
	defer w.mu.Unlock()
	return bytes.Clone(w.out)
}

func (w *WavEncoder) MimeType() string { return "audio/wav" }
func (w *WavEncoder) Ext() string      { return FormatWAV }

func wavHeader(dataLen, sampleRate int) []byte {
	h := make([]byte, wavHeaderSize)
	blockAlign := Channels * BitsPerSample / 8
	copy(h[0:], "RIFF")
	binary.LittleEndian.PutUint32(h[4:], uint32(36+dataLen))
	copy(h[8:], "WAVE")
	copy(h[12:], "fmt ")
	binary.LittleEndian.PutUint32(h[16:], 16)
	binary.LittleEndian.PutUint16(h[20:], 1) // PCM
	binary.LittleEndian.PutUint16(h[22:], Channels)
	binary.LittleEndian.PutUint32(h[24:], uint32(sampleRate))
	binary.LittleEndian.PutUint32(h[28:], uint32(sampleRate*blockAlign))
	binary.LittleEndian.PutUint16(h[32:], uint16(blockAlign))
	binary.LittleEndian.PutUint16(h[34:], BitsPerSample)
	copy(h[36:], "data")
	binary.LittleEndian.PutUint32(h[40:], uint32(dataLen))
	return h
}
