package session

import (
	"sync"

	"prompter/audio"
	"prompter/recorder"
)

// handle owns one live capture stream. Incoming PCM always feeds the
// analysis tap and, while a take is running, the recorder.
type handle struct {
	device  audio.DeviceInfo // zero ID means the system default
	capture audio.CaptureDevice
	tap     *audio.Tap

	mu  sync.Mutex
	rec *recorder.Recorder
}

func openHandle(actx audio.Context, device *audio.DeviceInfo, frameSize int) (*handle, error) {
	capture, err := actx.NewCapture(device, audio.DefaultConfig())
	if err != nil {
		return nil, err
	}
	h := &handle{capture: capture, tap: audio.NewTap(frameSize)}
	if device != nil {
		h.device = *device
	}
	if h.device.Name == "" {
		h.device.Name = capture.DeviceName()
	}
	capture.SetCallback(h.onData)
	if err := capture.Start(); err != nil {
		capture.Close()
		return nil, err
	}
	return h, nil
}

func (h *handle) onData(data []byte, _ uint32) {
	h.tap.Write(data)
	h.mu.Lock()
	rec := h.rec
	h.mu.Unlock()
	if rec != nil {
		rec.Feed(data)
	}
}

func (h *handle) attach(rec *recorder.Recorder) {
	h.mu.Lock()
	h.rec = rec
	h.mu.Unlock()
}

func (h *handle) detach() {
	h.mu.Lock()
	h.rec = nil
	h.mu.Unlock()
}

func (h *handle) close() {
	h.detach()
	h.capture.ClearCallback()
	h.capture.Close()
}
