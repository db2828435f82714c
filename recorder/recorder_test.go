package recorder

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
	"time"

	"prompter/encoder"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tone(n int, v int16) []byte {
	out := make([]byte, 2*n)
	for i := 0; i < n; i++ {
		binary.LittleEndian.PutUint16(out[2*i:], uint16(v))
	}
	return out
}

var t0 = time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC)

func TestFinalizeFlac(t *testing.T) {
	r, err := New(encoder.FormatFLAC, 48000)
	require.NoError(t, err)

	r.Feed(tone(48000, 1000))
	a, err := r.Finalize(t0)
	require.NoError(t, err)

	assert.Equal(t, "audio/flac", a.MimeKind)
	assert.Equal(t, time.Second, a.Duration)
	assert.Equal(t, "recording-2024-03-09T14-05-07.flac", a.FileName())
	assert.NotEqual(t, [16]byte{}, [16]byte(a.ID))

	samples, rate, err := encoder.DecodePCM(a.Data)
	require.NoError(t, err)
	assert.Equal(t, 48000, rate)
	assert.Len(t, samples, 48000)
}

func TestPausedAudioIsDropped(t *testing.T) {
	r, err := New(encoder.FormatWAV, 1000)
	require.NoError(t, err)

	r.Feed(tone(500, 1))
	r.Pause()
	assert.True(t, r.Paused())
	r.Feed(tone(5000, 2))
	r.Resume()
	r.Feed(tone(500, 3))

	a, err := r.Finalize(t0)
	require.NoError(t, err)
	assert.Equal(t, time.Second, a.Duration)

	samples, _, err := encoder.DecodePCM(a.Data)
	require.NoError(t, err)
	require.Len(t, samples, 1000)
	assert.Equal(t, int16(1), samples[0])
	assert.Equal(t, int16(3), samples[999])
}

func TestFinalizeTwice(t *testing.T) {
	r, err := New(encoder.FormatWAV, 48000)
	require.NoError(t, err)
	_, err = r.Finalize(t0)
	require.NoError(t, err)
	_, err = r.Finalize(t0)
	assert.ErrorIs(t, err, ErrFinalized)

	r.Feed(tone(10, 1))
	r.Abort()
}

func TestAbortDropsAudio(t *testing.T) {
	r, err := New(encoder.FormatFLAC, 48000)
	require.NoError(t, err)
	r.Feed(tone(10000, 5))
	r.Abort()
	r.Abort()
	_, err = r.Finalize(t0)
	assert.ErrorIs(t, err, ErrFinalized)
}

func TestUnknownFormat(t *testing.T) {
	_, err := New("ogg", 48000)
	assert.Error(t, err)
}

func TestDirSaverAvoidsOverwrite(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "takes")
	a := &Artifact{Data: []byte("abc"), Ext: "wav", CreatedAt: t0}
	b := &Artifact{Data: []byte("def"), Ext: "wav", CreatedAt: t0}
	b.ID[0] = 0xab

	first, err := DirSaver{Dir: dir}.Save(a)
	require.NoError(t, err)
	second, err := DirSaver{Dir: dir}.Save(b)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	got, err := os.ReadFile(first)
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))
	got, err = os.ReadFile(second)
	require.NoError(t, err)
	assert.Equal(t, "def", string(got))
}
