package encoder

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/mewkiz/flac"
)

var ErrUnknownContainer = errors.New("unrecognized audio container")

// DecodePCM turns a FLAC or WAV artifact back into mono 16-bit samples for
// playback. Only the first channel is kept.
func DecodePCM(data []byte) (samples []int16, sampleRate int, err error) {
	switch {
	case bytes.HasPrefix(data, []byte("fLaC")):
		return decodeFlac(data)
	case bytes.HasPrefix(data, []byte("RIFF")):
		return decodeWav(data)
	default:
		return nil, 0, ErrUnknownContainer
	}
}

func decodeFlac(data []byte) ([]int16, int, error) {
	stream, err := flac.New(bytes.NewReader(data))
	if err != nil {
		return nil, 0, fmt.Errorf("opening flac stream: %w", err)
	}
	defer stream.Close()

	var out []int16
	for {
		f, err := stream.ParseNext()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, 0, fmt.Errorf("parsing flac frame: %w", err)
		}
		if len(f.Subframes) == 0 {
			continue
		}
		for _, s := range f.Subframes[0].Samples {
			out = append(out, int16(s))
		}
	}
	return out, int(stream.Info.SampleRate), nil
}

func decodeWav(data []byte) ([]int16, int, error) {
	if len(data) < wavHeaderSize || string(data[8:12]) != "WAVE" {
		return nil, 0, fmt.Errorf("%w: short wav header", ErrUnknownContainer)
	}
	sampleRate := int(binary.LittleEndian.Uint32(data[24:]))
	channels := int(binary.LittleEndian.Uint16(data[22:]))
	if channels < 1 {
		channels = 1
	}
	body := data[wavHeaderSize:]
	stride := 2 * channels
	out := make([]int16, 0, len(body)/stride)
	for i := 0; i+1 < len(body); i += stride {
		out = append(out, int16(binary.LittleEndian.Uint16(body[i:])))
	}
	return out, sampleRate, nil
}
