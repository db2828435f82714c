//go:build !linux

package beep

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gen2brain/malgo"
)

var playMu sync.Mutex

func playCue(samples []int16) {
	_ = play(context.Background(), samples, sampleRate)
}

// PlayPCM plays mono samples at rate and blocks until playback finishes or
// ctx is cancelled.
func PlayPCM(ctx context.Context, samples []int16, rate int) error {
	return play(ctx, samples, rate)
}

func play(ctx context.Context, samples []int16, rate int) error {
	if len(samples) == 0 {
		return nil
	}
	playMu.Lock()
	defer playMu.Unlock()

	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return fmt.Errorf("malgo playback: %w", err)
	}
	defer func() {
		mctx.Uninit()
		mctx.Free()
	}()

	data := toBytes(samples)
	var pos atomic.Uint32
	done := make(chan struct{})
	var doneOnce sync.Once

	config := malgo.DefaultDeviceConfig(malgo.Playback)
	config.Playback.Format = malgo.FormatS16
	config.Playback.Channels = 1
	config.SampleRate = uint32(rate)

	callbacks := malgo.DeviceCallbacks{
		Data: func(pOutput, _ []byte, frameCount uint32) {
			p := pos.Load()
			n := uint32(copy(pOutput[:frameCount*2], data[p:]))
			clear(pOutput[n:])
			pos.Store(p + n)
			if p+n >= uint32(len(data)) {
				doneOnce.Do(func() { close(done) })
			}
		},
	}

	device, err := malgo.InitDevice(mctx.Context, config, callbacks)
	if err != nil {
		return fmt.Errorf("malgo playback: %w", err)
	}
	defer device.Uninit()

	if err := device.Start(); err != nil {
		return fmt.Errorf("malgo playback: %w", err)
	}
	select {
	case <-done:
	case <-ctx.Done():
	}
	device.Stop()
	return ctx.Err()
}
