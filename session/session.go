// Package session drives a take from countdown to saved file. It owns the
// capture handle, the level monitor and the teleprompter, and serializes
// every command and timer callback behind one mutex.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"prompter/audio"
	"prompter/clock"
	"prompter/encoder"
	"prompter/level"
	"prompter/log"
	"prompter/recorder"
	"prompter/teleprompter"
)

const (
	DefaultCountdown = 3
	MaxCountdown     = 15
)

// Observer receives a fresh snapshot after every state change, including
// each level and scroll tick. It is never called with the session locked.
type Observer func(State)

// Saver externalizes a finished take and returns where it went.
type Saver interface {
	Save(a *recorder.Artifact) (string, error)
}

type Config struct {
	Clock     clock.Clock
	Audio     audio.Context
	Format    string // encoder.FormatFLAC (default) or encoder.FormatWAV
	Countdown int    // seconds; 0 starts recording immediately
	FrameSize int
	Observer  Observer
}

// State is what the presentation layer renders.
type State struct {
	Status             Status
	Elapsed            time.Duration
	CountdownRemaining int
	CountdownDuration  int

	Level      level.Reading
	Monitoring bool
	NoVoice    bool

	Scroll teleprompter.State

	HasArtifact      bool
	ArtifactName     string
	ArtifactDuration time.Duration
	Saved            bool
	SavedPath        string
	Takes            int

	Devices        []audio.DeviceInfo
	SelectedDevice string
	PendingDevice  string
	DeviceName     string
	Bluetooth      bool

	Err error
}

type Session struct {
	clk       clock.Clock
	actx      audio.Context
	format    string
	frameSize int
	observer  Observer

	monitor  *level.Monitor
	prompter *teleprompter.Controller

	// acqMu serializes capture acquisition so two handles never coexist.
	acqMu sync.Mutex

	mu              sync.Mutex
	closed          bool
	status          Status
	countdown       int
	remaining       int
	elapsed         time.Duration
	countdownTicker *clock.Ticker
	elapsedTicker   *clock.Ticker
	elapsedCarry    time.Duration
	startOnSwitch   bool
	handle          *handle
	attempt         uint64
	cancelAcquire   context.CancelFunc
	rec             *recorder.Recorder
	artifact        *recorder.Artifact
	saved           bool
	saving          bool
	savedPath       string
	takes           int
	silence         *level.SilenceWatch
	noVoice         bool
	devices         []audio.DeviceInfo
	selected        string
	pending         string
	hasPending      bool
	rescan          bool
	err             error
}

func New(cfg Config) (*Session, error) {
	if cfg.Audio == nil {
		return nil, fmt.Errorf("session: no audio context")
	}
	switch cfg.Format {
	case "":
		cfg.Format = encoder.FormatFLAC
	case encoder.FormatFLAC, encoder.FormatWAV:
	default:
		return nil, fmt.Errorf("session: unsupported format %q", cfg.Format)
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	if cfg.FrameSize <= 0 {
		cfg.FrameSize = audio.FrameSize
	}

	s := &Session{
		clk:       cfg.Clock,
		actx:      cfg.Audio,
		format:    cfg.Format,
		frameSize: cfg.FrameSize,
		observer:  cfg.Observer,
		countdown: clampCountdown(cfg.Countdown),
		silence:   level.NewSilenceWatch(),
	}
	s.monitor = level.NewMonitor(s.clk, s.onReading)
	s.prompter = teleprompter.New(s.clk, func(teleprompter.State) { s.notify() })
	return s, nil
}

func clampCountdown(secs int) int {
	return max(0, min(secs, MaxCountdown))
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() State {
	st := State{
		Status:             s.status,
		Elapsed:            s.elapsed,
		CountdownRemaining: s.remaining,
		CountdownDuration:  s.countdown,
		Level:              s.monitor.Last(),
		Monitoring:         s.handle != nil,
		NoVoice:            s.noVoice,
		Scroll:             s.prompter.State(),
		HasArtifact:        s.artifact != nil,
		Saved:              s.saved,
		SavedPath:          s.savedPath,
		Takes:              s.takes,
		Devices:            append([]audio.DeviceInfo(nil), s.devices...),
		SelectedDevice:     s.selected,
		Err:                s.err,
	}
	if s.artifact != nil {
		st.ArtifactName = s.artifact.FileName()
		st.ArtifactDuration = s.artifact.Duration
	}
	if s.hasPending {
		st.PendingDevice = s.pending
	}
	if s.handle != nil {
		st.DeviceName = s.handle.device.Label()
		st.Bluetooth = audio.IsBluetooth(st.DeviceName)
	}
	return st
}

func (s *Session) notify() {
	if s.observer == nil {
		return
	}
	s.observer(s.State())
}

// update runs fn with the session locked and notifies the observer after.
func (s *Session) update(fn func() error) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	err := fn()
	s.mu.Unlock()
	s.notify()
	return err
}

func (s *Session) invalidLocked(op string) error {
	err := &TransitionError{Op: op, From: s.status}
	log.Warnf("%v", err)
	return err
}

// RequestStart begins a take from Idle or Stopped. It acquires the capture
// handle if none is open, which may block on a permission prompt, then runs
// the countdown. While acquisition is pending the session already reports
// CountingDown, so CancelCountdown can abort it; RequestStart then returns
// ErrCancelled and the late handle is released.
func (s *Session) RequestStart(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.status != Idle && s.status != Stopped {
		err := s.invalidLocked("request start")
		s.mu.Unlock()
		return err
	}
	s.status = CountingDown
	s.remaining = s.countdown
	s.startOnSwitch = false
	s.err = nil
	s.attempt++
	attempt := s.attempt
	acqCtx, cancel := context.WithCancel(ctx)
	s.cancelAcquire = cancel
	var device *audio.DeviceInfo
	needHandle := s.handle == nil
	if needHandle {
		device = s.deviceLocked(s.selected)
	}
	s.mu.Unlock()
	s.notify()
	defer cancel()

	var (
		h       *handle
		devices []audio.DeviceInfo
		err     error
	)
	if needHandle {
		h, devices, err = s.acquire(acqCtx, device)
	}

	s.mu.Lock()
	if s.closed || attempt != s.attempt || s.status != CountingDown {
		s.mu.Unlock()
		if h != nil {
			h.close()
		}
		return ErrCancelled
	}
	s.cancelAcquire = nil
	if errors.Is(err, ErrCancelled) {
		s.status = Idle
		s.remaining = 0
		s.mu.Unlock()
		s.notify()
		return err
	}
	if err != nil {
		s.status = Idle
		s.remaining = 0
		cerr := s.failLocked("acquire", device, err)
		s.mu.Unlock()
		s.notify()
		return cerr
	}
	var stale *handle
	if h != nil {
		if s.handle != nil {
			// A device switch during acquisition already installed the newer choice.
			stale = h
		} else {
			s.installLocked(h, devices)
		}
	}
	if stale != nil {
		defer stale.close()
	}
	if s.countdown == 0 {
		err = s.beginCaptureLocked()
	} else {
		s.countdownTicker.Stop()
		s.countdownTicker = clock.NewTicker(s.clk, time.Second, s.countdownTick)
	}
	s.mu.Unlock()
	s.notify()
	return err
}

// CancelCountdown aborts a pending start, including one still waiting on
// acquisition, and releases the capture handle.
func (s *Session) CancelCountdown() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.status != CountingDown {
		err := s.invalidLocked("cancel countdown")
		s.mu.Unlock()
		return err
	}
	s.attempt++
	if s.cancelAcquire != nil {
		s.cancelAcquire()
		s.cancelAcquire = nil
	}
	s.countdownTicker.Stop()
	s.countdownTicker = nil
	s.remaining = 0
	s.startOnSwitch = false
	s.status = Idle
	h := s.releaseLocked()
	s.mu.Unlock()

	if h != nil {
		h.close()
	}
	log.Info("countdown cancelled, microphone released")
	s.notify()
	return nil
}

func (s *Session) countdownTick(t *clock.Ticker) {
	s.mu.Lock()
	if t != s.countdownTicker || s.status != CountingDown {
		s.mu.Unlock()
		return
	}
	s.remaining--
	if s.remaining <= 0 {
		s.remaining = 0
		s.countdownTicker.Stop()
		s.countdownTicker = nil
		if s.handle == nil {
			// A device switch is still acquiring; it starts the take.
			s.startOnSwitch = true
		} else if err := s.beginCaptureLocked(); err != nil {
			log.Errorf("starting take: %v", err)
		}
	}
	s.mu.Unlock()
	s.notify()
}

// beginCaptureLocked starts the recorder on the open handle. Any previous
// artifact, saved or not, is dropped.
func (s *Session) beginCaptureLocked() error {
	rec, err := recorder.New(s.format, audio.SampleRate)
	if err != nil {
		s.status = Idle
		s.err = err
		return fmt.Errorf("starting recorder: %w", err)
	}
	if s.artifact != nil && !s.saved {
		log.TakeDiscarded(s.artifact.ID.String(), s.artifact.Duration)
	}
	s.artifact = nil
	s.saved = false
	s.savedPath = ""

	s.rec = rec
	s.handle.attach(rec)
	s.elapsed = 0
	s.elapsedCarry = 0
	s.status = Recording
	s.startElapsedLocked()
	s.prompter.SetRecording(true)
	s.prompter.StopRehearsal()
	s.silence.Reset()
	s.noVoice = false
	log.TakeStarted(s.handle.device.Label())
	return nil
}

// startElapsedLocked arms the elapsed ticker. A resumed take first ticks
// after the remainder of the second that the pause interrupted.
func (s *Session) startElapsedLocked() {
	s.elapsedTicker.Stop()
	s.elapsedTicker = clock.NewTickerAfter(s.clk, time.Second-s.elapsedCarry, time.Second, s.elapsedTick)
}

func (s *Session) elapsedTick(t *clock.Ticker) {
	s.mu.Lock()
	if t != s.elapsedTicker || s.status != Recording {
		s.mu.Unlock()
		return
	}
	s.elapsed += time.Second
	s.mu.Unlock()
	s.notify()
}

// TogglePause suspends or resumes the take. Elapsed time and scrolling
// freeze while paused.
func (s *Session) TogglePause() error {
	return s.update(func() error {
		switch s.status {
		case Recording:
			s.rec.Pause()
			s.elapsedTicker.Stop()
			s.elapsedCarry = s.elapsedTicker.SinceTick()
			s.elapsedTicker = nil
			s.prompter.SetRecording(false)
			s.status = Paused
		case Paused:
			s.rec.Resume()
			s.startElapsedLocked()
			s.prompter.SetRecording(true)
			s.status = Recording
		default:
			return s.invalidLocked("toggle pause")
		}
		return nil
	})
}

// Stop finalizes the take into an artifact. The capture handle and level
// monitor stay live for the next take. A device switch requested during
// the take is applied afterwards.
func (s *Session) Stop() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if !s.status.Capturing() {
		err := s.invalidLocked("stop")
		s.mu.Unlock()
		return err
	}
	s.elapsedTicker.Stop()
	s.elapsedTicker = nil
	s.prompter.SetRecording(false)
	s.handle.detach()
	rec := s.rec
	s.rec = nil

	pending, hasPending, rescan := s.pending, s.hasPending, s.rescan
	s.pending, s.hasPending, s.rescan = "", false, false

	a, err := rec.Finalize(s.clk.Now())
	if err != nil {
		s.status = Idle
		s.err = err
		s.mu.Unlock()
		log.Errorf("finalizing take: %v", err)
		s.notify()
		s.applyDeferred(pending, hasPending, rescan)
		return fmt.Errorf("finalizing take: %w", err)
	}
	s.artifact = a
	s.saved = false
	s.savedPath = ""
	s.status = Stopped
	s.takes++
	log.TakeFinalized(log.TakeMetrics{
		AudioLengthS: a.Duration.Seconds(),
		SizeKB:       float64(len(a.Data)) / 1024,
		EncodeTimeMs: float64(rec.EncodeTime().Microseconds()) / 1000,
		Format:       s.format,
		Device:       s.handle.device.Label(),
	})
	s.mu.Unlock()
	s.notify()

	s.applyDeferred(pending, hasPending, rescan)
	return nil
}

// Save hands the stopped take to saver and returns to Idle. The artifact
// stays available for preview until discarded or replaced.
func (s *Session) Save(saver Saver) (string, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return "", ErrClosed
	}
	if s.status != Stopped || s.saving {
		err := s.invalidLocked("save")
		s.mu.Unlock()
		return "", err
	}
	if s.artifact == nil {
		s.mu.Unlock()
		return "", ErrNoArtifact
	}
	a := s.artifact
	s.saving = true
	s.mu.Unlock()

	path, err := saver.Save(a)

	s.mu.Lock()
	s.saving = false
	if err != nil {
		s.err = err
		s.mu.Unlock()
		log.Errorf("saving take: %v", err)
		s.notify()
		return "", fmt.Errorf("saving take: %w", err)
	}
	if s.artifact == a {
		s.saved = true
		s.savedPath = path
		if s.status == Stopped {
			s.status = Idle
		}
	}
	s.mu.Unlock()
	log.TakeSaved(path, a.Duration)
	s.notify()
	return path, nil
}

// Discard drops the live artifact without saving it.
func (s *Session) Discard() error {
	return s.update(func() error {
		if s.artifact == nil {
			return ErrNoArtifact
		}
		if s.status != Stopped && s.status != Idle {
			return s.invalidLocked("discard")
		}
		if !s.saved {
			log.TakeDiscarded(s.artifact.ID.String(), s.artifact.Duration)
		}
		s.artifact = nil
		s.saved = false
		s.savedPath = ""
		s.status = Idle
		return nil
	})
}

// Preview returns the live artifact for playback.
func (s *Session) Preview() (*recorder.Artifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.artifact == nil {
		return nil, ErrNoArtifact
	}
	return s.artifact, nil
}

func (s *Session) SetScrollSpeed(speed float64) {
	s.prompter.SetSpeed(speed)
	s.notify()
}

func (s *Session) SetFontSize(size int) {
	s.prompter.SetFontSize(size)
	s.notify()
}

// ToggleRehearse flips rehearsal scrolling and reports the new value.
func (s *Session) ToggleRehearse() bool {
	on := s.prompter.ToggleRehearse()
	s.notify()
	return on
}

func (s *Session) ResetScroll() {
	s.prompter.ResetScroll()
	s.notify()
}

func (s *Session) SetTeleprompterText(text string) {
	s.prompter.SetText(text)
	s.notify()
}

// SetCountdownDuration sets the countdown for the next start, clamped to
// [0, MaxCountdown]. A countdown already running keeps its length.
func (s *Session) SetCountdownDuration(secs int) {
	_ = s.update(func() error {
		s.countdown = clampCountdown(secs)
		return nil
	})
}

// Close stops every ticker, drops an unfinished take and releases the
// microphone.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.attempt++
	if s.cancelAcquire != nil {
		s.cancelAcquire()
		s.cancelAcquire = nil
	}
	s.countdownTicker.Stop()
	s.countdownTicker = nil
	s.elapsedTicker.Stop()
	s.elapsedTicker = nil
	rec := s.rec
	s.rec = nil
	h := s.releaseLocked()
	takes := s.takes
	s.mu.Unlock()

	s.prompter.Close()
	if h != nil {
		h.close()
	}
	if rec != nil {
		rec.Abort()
	}
	log.SessionEnd(takes)
}

func (s *Session) onReading(r level.Reading) {
	s.mu.Lock()
	if s.status == Recording {
		switch s.silence.Tick(r.Band) {
		case level.SilenceWarn, level.SilenceRepeat:
			if !s.noVoice {
				log.Warn("no voice detected in the last 8s")
			}
			s.noVoice = true
		case level.SilenceClear:
			s.noVoice = false
		}
	}
	s.mu.Unlock()
	s.notify()
}

// releaseLocked detaches the monitor and hands back the handle for the
// caller to close once the lock is dropped.
func (s *Session) releaseLocked() *handle {
	h := s.handle
	s.handle = nil
	s.monitor.Detach()
	if h != nil {
		h.detach()
	}
	return h
}

func (s *Session) installLocked(h *handle, devices []audio.DeviceInfo) {
	s.handle = h
	if devices != nil {
		s.devices = devices
	}
	s.err = nil
	s.monitor.Attach(h.tap)
}

func (s *Session) failLocked(op string, device *audio.DeviceInfo, err error) error {
	label := ""
	if device != nil {
		label = device.Label()
	}
	cerr := captureError(op, label, err)
	s.err = cerr
	log.CaptureFailed(op, label, err)
	return cerr
}

// deviceLocked resolves id against the known devices. An unknown id is
// passed through as-is since labels may still be withheld; an empty id
// means the system default.
func (s *Session) deviceLocked(id string) *audio.DeviceInfo {
	if id == "" {
		return nil
	}
	if d, ok := audio.FindDevice(s.devices, id); ok {
		return &d
	}
	return &audio.DeviceInfo{ID: id}
}

// acquire opens a capture handle without holding s.mu. A handle that
// resolves after ctx is cancelled is closed as soon as it arrives, and the
// next acquisition waits until then.
func (s *Session) acquire(ctx context.Context, device *audio.DeviceInfo) (*handle, []audio.DeviceInfo, error) {
	s.acqMu.Lock()
	if ctx.Err() != nil {
		s.acqMu.Unlock()
		return nil, nil, ErrCancelled
	}

	type result struct {
		h   *handle
		err error
	}
	ch := make(chan result, 1)
	go func() {
		h, err := openHandle(s.actx, device, s.frameSize)
		ch <- result{h, err}
	}()

	select {
	case r := <-ch:
		defer s.acqMu.Unlock()
		if r.err != nil {
			return nil, nil, r.err
		}
		// Labels are only guaranteed once access has been granted.
		devices, err := s.actx.Devices()
		if err != nil {
			devices = nil
		}
		return r.h, devices, nil
	case <-ctx.Done():
		go func() {
			if r := <-ch; r.h != nil {
				r.h.close()
			}
			s.acqMu.Unlock()
		}()
		return nil, nil, ErrCancelled
	}
}
