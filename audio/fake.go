package audio

import (
	"fmt"
	"os"
	"slices"
	"sync"
	"time"
)

const (
	fakeFrameSize     = 1024
	fakeBytesPerFrame = 2 // 16-bit mono
)

// FakeContext is an in-memory capture backend for tests and the headless
// test mode. It can replay a WAV file, refuse access, or hold acquisition
// open to mimic a pending permission prompt.
type FakeContext struct {
	mu       sync.Mutex
	devices  []DeviceInfo
	pcm      []byte
	realtime bool
	err      error
	gate     chan struct{}
	opened   int
	live     int
	last     *FakeCapture
}

func NewFakeContext(devices ...DeviceInfo) *FakeContext {
	return &FakeContext{devices: devices}
}

// NewFakeContextFromWAV replays the PCM body of a 16-bit mono WAV file on
// every capture. With realtime set the data is paced at SampleRate.
func NewFakeContextFromWAV(wavPath string, realtime bool) (*FakeContext, error) {
	data, err := os.ReadFile(wavPath)
	if err != nil {
		return nil, err
	}
	if len(data) > WAVHeaderSize {
		data = data[WAVHeaderSize:]
	}
	return &FakeContext{
		devices:  []DeviceInfo{{ID: "fake", Name: "fake input"}},
		pcm:      data,
		realtime: realtime,
	}, nil
}

func (f *FakeContext) SetDevices(devices ...DeviceInfo) {
	f.mu.Lock()
	f.devices = devices
	f.mu.Unlock()
}

// FailWith makes subsequent captures fail with err; nil clears it.
func (f *FakeContext) FailWith(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

// HoldAcquire blocks NewCapture until the returned release func is called.
func (f *FakeContext) HoldAcquire() (release func()) {
	gate := make(chan struct{})
	f.mu.Lock()
	f.gate = gate
	f.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			if f.gate == gate {
				f.gate = nil
			}
			f.mu.Unlock()
			close(gate)
		})
	}
}

// Opened counts every capture ever started; Live counts the ones not yet
// closed.
func (f *FakeContext) Opened() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.opened
}

func (f *FakeContext) Live() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.live
}

func (f *FakeContext) LastCapture() *FakeCapture {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last
}

func (f *FakeContext) Devices() ([]DeviceInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.devices), nil
}

func (f *FakeContext) Close() {}

func (f *FakeContext) NewCapture(device *DeviceInfo, _ CaptureConfig) (CaptureDevice, error) {
	f.mu.Lock()
	gate := f.gate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	name := "system default"
	if device != nil {
		d, ok := FindDevice(f.devices, device.ID)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrNoDevice, device.ID)
		}
		name = d.Label()
	} else if len(f.devices) == 0 && f.pcm == nil {
		return nil, ErrNoDevice
	}
	c := &FakeCapture{
		ctx:       f,
		name:      name,
		pcm:       f.pcm,
		realtime:  f.realtime,
		audioDone: make(chan struct{}),
	}
	f.last = c
	return c, nil
}

type FakeCapture struct {
	ctx       *FakeContext
	name      string
	pcm       []byte
	realtime  bool
	audioDone chan struct{}

	mu       sync.Mutex
	cb       DataCallback
	started  bool
	closed   bool
	stopCh   chan struct{}
	feedDone chan struct{}
}

// AudioDone is closed once the replayed PCM has been fully delivered.
func (f *FakeCapture) AudioDone() <-chan struct{} { return f.audioDone }

func (f *FakeCapture) SetCallback(cb DataCallback) {
	f.mu.Lock()
	f.cb = cb
	f.mu.Unlock()
}

func (f *FakeCapture) ClearCallback() {
	f.mu.Lock()
	f.cb = nil
	f.mu.Unlock()
}

func (f *FakeCapture) DeviceName() string { return f.name }

func (f *FakeCapture) Started() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.started
}

func (f *FakeCapture) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// Feed delivers PCM to the callback synchronously, as if the device had
// produced it. Ignored unless the capture is running.
func (f *FakeCapture) Feed(data []byte) {
	f.mu.Lock()
	cb := f.cb
	running := f.started && !f.closed
	f.mu.Unlock()
	if running && cb != nil {
		cb(data, uint32(len(data)/fakeBytesPerFrame))
	}
}

func (f *FakeCapture) Start() error {
	f.mu.Lock()
	if f.started || f.closed {
		f.mu.Unlock()
		return nil
	}
	f.started = true
	f.mu.Unlock()

	f.ctx.mu.Lock()
	f.ctx.opened++
	f.ctx.live++
	f.ctx.mu.Unlock()

	if f.pcm == nil {
		return nil
	}

	f.mu.Lock()
	stop, done := make(chan struct{}), make(chan struct{})
	f.stopCh, f.feedDone = stop, done
	f.mu.Unlock()
	interval := time.Millisecond
	if f.realtime {
		interval = time.Duration(fakeFrameSize) * time.Second / time.Duration(SampleRate)
	}
	go f.replay(interval, stop, done)
	return nil
}

func (f *FakeCapture) replay(interval time.Duration, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	chunkBytes := fakeFrameSize * fakeBytesPerFrame
	silence := make([]byte, chunkBytes)
	pos := 0
	finished := false
	for {
		if pos < len(f.pcm) {
			end := min(pos+chunkBytes, len(f.pcm))
			f.Feed(f.pcm[pos:end])
			pos = end
		} else {
			if !finished {
				finished = true
				close(f.audioDone)
			}
			f.Feed(silence)
		}
		select {
		case <-stop:
			return
		case <-time.After(interval):
		}
	}
}

func (f *FakeCapture) Stop() {
	f.mu.Lock()
	stopCh, feedDone := f.stopCh, f.feedDone
	f.stopCh, f.feedDone = nil, nil
	f.mu.Unlock()
	if stopCh != nil {
		close(stopCh)
		<-feedDone
	}
}

func (f *FakeCapture) Close() {
	f.Stop()
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.closed = true
	wasStarted := f.started
	f.mu.Unlock()

	if wasStarted {
		f.ctx.mu.Lock()
		f.ctx.live--
		f.ctx.mu.Unlock()
	}
}
