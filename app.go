package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"prompter/audio"
	"prompter/beep"
	"prompter/clipboard"
	"prompter/encoder"
	"prompter/log"
	"prompter/session"
)

// app binds a session to the audible cues, the clipboard and whatever sink
// displays it. The TUI, the hotkey loop and the test driver all go through
// it.
type app struct {
	ctx      context.Context
	sess     *session.Session
	saver    session.Saver
	copyPath bool
	script   string

	mu         sync.Mutex
	sink       EventSink
	last       session.State
	seen       bool
	previewGen int
	preview    context.CancelFunc
}

func newApp(ctx context.Context, saver session.Saver, copyPath bool) *app {
	return &app{ctx: ctx, saver: saver, copyPath: copyPath}
}

func (a *app) setSink(s EventSink) {
	a.mu.Lock()
	a.sink = s
	a.mu.Unlock()
}

// observe is the session observer. It plays cues on transitions and
// forwards the snapshot.
func (a *app) observe(st session.State) {
	a.mu.Lock()
	prev, seen := a.last, a.seen
	a.last, a.seen = st, true
	sink := a.sink
	a.mu.Unlock()

	if seen {
		playCues(prev, st)
	}
	if sink != nil {
		sink.State(st)
	}
}

func playCues(prev, st session.State) {
	switch {
	case st.Status == session.CountingDown && st.CountdownRemaining > 0 &&
		(prev.Status != session.CountingDown || prev.CountdownRemaining != st.CountdownRemaining):
		beep.PlayTick()
	case st.Status == session.Recording && prev.Status == session.CountingDown:
		beep.PlayStart()
	case st.Status == session.Stopped && prev.Status.Capturing():
		beep.PlayEnd()
	}
	if st.NoVoice && !prev.NoVoice {
		log.Info("no_voice_warning")
		beep.PlayError()
	}
}

func (a *app) notice(format string, args ...any) {
	a.mu.Lock()
	sink := a.sink
	a.mu.Unlock()
	if sink != nil {
		sink.Notice(fmt.Sprintf(format, args...))
	}
}

// report shows a failed command. Cancellations and invalid transitions are
// expected from key mashing and stay out of the notice line.
func (a *app) report(op string, err error) {
	if err == nil {
		return
	}
	if text := errorText(err); text != "" {
		a.notice("%s", text)
	}
	log.Warnf("%s: %v", op, err)
}

func errorText(err error) string {
	switch {
	case errors.Is(err, session.ErrCancelled), errors.Is(err, session.ErrInvalidTransition):
		return ""
	case errors.Is(err, session.ErrPermissionDenied):
		return "Microphone access denied. Grant access and try again."
	case errors.Is(err, session.ErrDeviceDisappeared):
		return "Microphone disconnected."
	case errors.Is(err, session.ErrNoDevice):
		return "No microphone found."
	case errors.Is(err, session.ErrNoArtifact):
		return "Nothing recorded yet."
	}
	return err.Error()
}

// connect loads the device list and starts metering on want (an ID or a
// name), falling back to the first device.
func (a *app) connect(want string) error {
	if err := a.sess.RefreshDevices(a.ctx); err != nil {
		return err
	}
	if want != "" {
		d, ok := matchDevice(a.sess.State().Devices, want)
		if ok {
			return a.sess.SelectDevice(a.ctx, d.ID)
		}
		a.notice("Device %q not found, using the default.", want)
	}
	return a.sess.StartMonitoring(a.ctx, "")
}

func matchDevice(devices []audio.DeviceInfo, want string) (audio.DeviceInfo, bool) {
	if d, ok := audio.FindDevice(devices, want); ok {
		return d, true
	}
	for _, d := range devices {
		if strings.EqualFold(d.Name, want) {
			return d, true
		}
	}
	return audio.DeviceInfo{}, false
}

func (a *app) devicesChanged(devices []audio.DeviceInfo) {
	a.report("hot-plug", a.sess.DevicesChanged(a.ctx, devices))
}

// Toggle is the single record key: start from Idle or Stopped, cancel a
// countdown, stop a take.
func (a *app) Toggle() error {
	switch a.sess.State().Status {
	case session.Idle, session.Stopped:
		a.stopPreview()
		return a.sess.RequestStart(a.ctx)
	case session.CountingDown:
		return a.sess.CancelCountdown()
	default:
		return a.sess.Stop()
	}
}

// Finish ends whatever is in flight, for the hotkey release.
func (a *app) Finish() error {
	switch st := a.sess.State().Status; {
	case st == session.CountingDown:
		return a.sess.CancelCountdown()
	case st.Capturing():
		return a.sess.Stop()
	}
	return nil
}

func (a *app) TogglePause() error { return a.sess.TogglePause() }

// Save writes the stopped take and copies its path when asked to.
func (a *app) Save() (string, error) {
	path, err := a.sess.Save(a.saver)
	if err != nil {
		return "", err
	}
	if a.copyPath && clipboard.Available() {
		if err := clipboard.Copy(path); err != nil {
			log.Warnf("copy path: %v", err)
		}
	}
	return path, nil
}

func (a *app) Discard() error {
	a.stopPreview()
	return a.sess.Discard()
}

// Preview plays the live take, or stops a preview already playing. It
// reports whether playback started.
func (a *app) Preview() (bool, error) {
	if a.stopPreview() {
		return false, nil
	}
	art, err := a.sess.Preview()
	if err != nil {
		return false, err
	}
	samples, rate, err := encoder.DecodePCM(art.Data)
	if err != nil {
		return false, fmt.Errorf("decode take: %w", err)
	}

	ctx, cancel := context.WithCancel(a.ctx)
	a.mu.Lock()
	a.previewGen++
	gen := a.previewGen
	a.preview = cancel
	a.mu.Unlock()

	go func() {
		err := beep.PlayPCM(ctx, samples, rate)
		stopped := ctx.Err() != nil
		cancel()
		a.mu.Lock()
		if a.previewGen == gen {
			a.preview = nil
		}
		a.mu.Unlock()
		if err != nil && !stopped {
			a.report("preview", err)
		}
	}()
	return true, nil
}

func (a *app) stopPreview() bool {
	a.mu.Lock()
	cancel := a.preview
	a.preview = nil
	a.mu.Unlock()
	if cancel == nil {
		return false
	}
	cancel()
	return true
}

func (a *app) SelectDevice(id string) error { return a.sess.SelectDevice(a.ctx, id) }
func (a *app) RefreshDevices() error        { return a.sess.RefreshDevices(a.ctx) }
func (a *app) SetScrollSpeed(speed float64) { a.sess.SetScrollSpeed(speed) }
func (a *app) SetFontSize(size int)         { a.sess.SetFontSize(size) }
func (a *app) ToggleRehearse() bool         { return a.sess.ToggleRehearse() }
func (a *app) ResetScroll()                 { a.sess.ResetScroll() }
func (a *app) SetCountdown(secs int)        { a.sess.SetCountdownDuration(secs) }

var errNoScript = errors.New("no script file (start with -script)")

// ReloadScript rereads the script file so edits show without a restart.
func (a *app) ReloadScript() (string, error) {
	if a.script == "" {
		return "", errNoScript
	}
	text, err := loadScript(a.script)
	if err != nil {
		return "", err
	}
	a.sess.SetTeleprompterText(text)
	log.Infof("script reloaded: %s (%d bytes)", a.script, len(text))
	return a.script, nil
}
