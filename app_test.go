package main

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prompter/audio"
	"prompter/beep"
	"prompter/clock"
	"prompter/config"
	"prompter/encoder"
	"prompter/hotkey"
	"prompter/recorder"
	"prompter/session"
)

var (
	deskMic = audio.DeviceInfo{ID: "desk", Name: "Desk Mic"}
	usbMic  = audio.DeviceInfo{ID: "usb", Name: "USB Mic"}
)

func TestMain(m *testing.M) {
	beep.Disable()
	os.Exit(m.Run())
}

type appRig struct {
	app  *app
	sink *lineSink
	out  *bytes.Buffer
	clk  *clock.Fake
	fake *audio.FakeContext
	dir  string
}

func newAppRig(t *testing.T, countdown int, devices ...audio.DeviceInfo) *appRig {
	t.Helper()
	dir := t.TempDir()
	out := &bytes.Buffer{}
	sink := newLineSink(out)
	clk := clock.NewFake(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	fake := audio.NewFakeContext(devices...)

	a := newApp(context.Background(), recorder.DirSaver{Dir: dir}, false)
	a.setSink(sink)
	opts := options{Config: testConfig(countdown)}
	sess, err := newSession(fake, clk, opts, a.observe, "line one\nline two")
	require.NoError(t, err)
	a.sess = sess
	t.Cleanup(sess.Close)
	return &appRig{app: a, sink: sink, out: out, clk: clk, fake: fake, dir: dir}
}

func testConfig(countdown int) (cfg config.Config) {
	cfg.Format = encoder.FormatWAV
	cfg.Countdown = &countdown
	cfg.Speed = 1
	cfg.FontSize = 16
	return cfg
}

func tone(n int) []byte {
	out := make([]byte, 2*n)
	for i := 0; i < n; i++ {
		v := int16(8000)
		if i%2 == 0 {
			v = -8000
		}
		binary.LittleEndian.PutUint16(out[2*i:], uint16(v))
	}
	return out
}

func TestAppToggleRunsFullTake(t *testing.T) {
	r := newAppRig(t, 3, deskMic)
	require.NoError(t, r.app.connect(""))
	assert.Equal(t, "desk", r.app.sess.State().SelectedDevice)

	require.NoError(t, r.app.Toggle())
	assert.Equal(t, session.CountingDown, r.app.sess.State().Status)

	r.clk.Advance(3 * time.Second)
	require.Equal(t, session.Recording, r.app.sess.State().Status)
	r.fake.LastCapture().Feed(tone(4800))
	r.clk.Advance(2 * time.Second)

	require.NoError(t, r.app.Toggle())
	st := r.app.sess.State()
	require.Equal(t, session.Stopped, st.Status)
	assert.True(t, st.HasArtifact)

	path, err := r.app.Save()
	require.NoError(t, err)
	assert.Equal(t, r.dir, filepath.Dir(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	samples, _, err := encoder.DecodePCM(data)
	require.NoError(t, err)
	assert.Len(t, samples, 4800)

	assert.Equal(t,
		"status counting_down\nstatus recording\nstatus stopped\nstatus idle\n",
		r.out.String())
}

func TestAppToggleCancelsCountdown(t *testing.T) {
	r := newAppRig(t, 3, deskMic)
	require.NoError(t, r.app.Toggle())
	require.NoError(t, r.app.Toggle())
	assert.Equal(t, session.Idle, r.app.sess.State().Status)
	assert.Equal(t, 0, r.fake.Live())
}

func TestAppFinishIsNoopWhenIdle(t *testing.T) {
	r := newAppRig(t, 0, deskMic)
	require.NoError(t, r.app.Finish())

	require.NoError(t, r.app.Toggle())
	require.Equal(t, session.Recording, r.app.sess.State().Status)
	require.NoError(t, r.app.Finish())
	assert.Equal(t, session.Stopped, r.app.sess.State().Status)
}

func TestAppConnectByName(t *testing.T) {
	r := newAppRig(t, 0, deskMic, usbMic)
	require.NoError(t, r.app.connect("usb mic"))
	st := r.app.sess.State()
	assert.Equal(t, "usb", st.SelectedDevice)
	assert.Equal(t, "USB Mic", st.DeviceName)
}

func TestAppConnectUnknownFallsBack(t *testing.T) {
	r := newAppRig(t, 0, deskMic)
	require.NoError(t, r.app.connect("missing"))
	assert.Equal(t, "desk", r.app.sess.State().SelectedDevice)
	assert.Contains(t, r.out.String(), `notice Device "missing" not found`)
}

func TestAppConnectWithoutDevices(t *testing.T) {
	r := newAppRig(t, 0)
	err := r.app.connect("")
	require.ErrorIs(t, err, session.ErrNoDevice)
	r.app.report("connect", err)
	assert.Contains(t, r.out.String(), "notice No microphone found.")
}

// startHotkey runs the shortcut loop on a fake key until the test ends.
func startHotkey(t *testing.T, r *appRig, longPress time.Duration) *hotkey.FakeHotkey {
	t.Helper()
	fk := hotkey.NewFake()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		runHotkey(ctx, r.app, fk, longPress)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	require.Eventually(t, fk.Registered, time.Second, time.Millisecond)
	return fk
}

func waitStatus(t *testing.T, r *appRig, want session.Status) {
	t.Helper()
	require.Eventually(t, func() bool { return r.app.sess.State().Status == want },
		time.Second, time.Millisecond, "want %s", want)
}

func TestHotkeyTapStartsAndSecondTapStops(t *testing.T) {
	r := newAppRig(t, 0, deskMic)
	fk := startHotkey(t, r, 200*time.Millisecond)

	fk.SimKeydown()
	fk.SimKeyup()
	waitStatus(t, r, session.Recording)

	// The take survives past the long-press threshold after a tap.
	time.Sleep(250 * time.Millisecond)
	assert.Equal(t, session.Recording, r.app.sess.State().Status)

	fk.SimKeydown()
	fk.SimKeyup()
	waitStatus(t, r, session.Stopped)
	assert.True(t, r.app.sess.State().HasArtifact)
}

func TestHotkeyHoldReleaseCancelsCountdown(t *testing.T) {
	r := newAppRig(t, 3, deskMic)
	fk := startHotkey(t, r, 30*time.Millisecond)

	fk.SimKeydown()
	waitStatus(t, r, session.CountingDown)
	time.Sleep(60 * time.Millisecond)
	fk.SimKeyup()

	waitStatus(t, r, session.Idle)
	assert.Equal(t, 0, r.fake.Live())
}

func TestHotkeyHoldRecordsUntilRelease(t *testing.T) {
	r := newAppRig(t, 0, deskMic)
	fk := startHotkey(t, r, 30*time.Millisecond)

	fk.SimKeydown()
	waitStatus(t, r, session.Recording)
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, session.Recording, r.app.sess.State().Status)

	fk.SimKeyup()
	waitStatus(t, r, session.Stopped)
}

func TestHotkeyRegisterFailureIsReported(t *testing.T) {
	r := newAppRig(t, 0, deskMic)
	fk := hotkey.NewFake()
	fk.RegisterErr = errors.New("grabbed by another app")

	runHotkey(context.Background(), r.app, fk, time.Second)
	assert.False(t, fk.Registered())
	assert.Contains(t, r.out.String(), "notice Global shortcut unavailable: grabbed by another app")
}

func TestAppPreviewWithoutTake(t *testing.T) {
	r := newAppRig(t, 0, deskMic)
	_, err := r.app.Preview()
	require.ErrorIs(t, err, session.ErrNoArtifact)
}

func TestAppReloadScript(t *testing.T) {
	r := newAppRig(t, 0, deskMic)
	path := filepath.Join(r.dir, "talk.txt")
	require.NoError(t, os.WriteFile(path, []byte("first draft"), 0o644))
	r.app.script = path

	got, err := r.app.ReloadScript()
	require.NoError(t, err)
	assert.Equal(t, path, got)
	assert.Equal(t, "first draft", r.app.sess.State().Scroll.Text)

	require.NoError(t, os.WriteFile(path, []byte("second draft"), 0o644))
	out := &bytes.Buffer{}
	code := driveTestMode(strings.NewReader("RELOAD\n"), out, r.app, r.sink, r.fake)
	assert.Equal(t, 0, code)
	assert.Equal(t, "reloaded\n", out.String())
	assert.Equal(t, "second draft", r.app.sess.State().Scroll.Text)
}

func TestAppReloadScriptErrors(t *testing.T) {
	r := newAppRig(t, 0, deskMic)
	_, err := r.app.ReloadScript()
	require.ErrorIs(t, err, errNoScript)
	assert.Equal(t, "line one\nline two", r.app.sess.State().Scroll.Text)

	r.app.script = filepath.Join(r.dir, "missing.txt")
	_, err = r.app.ReloadScript()
	require.ErrorIs(t, err, os.ErrNotExist)
	assert.Equal(t, "line one\nline two", r.app.sess.State().Scroll.Text, "a failed reload keeps the old text")
}

func TestDriveTestMode(t *testing.T) {
	r := newAppRig(t, 0, deskMic)
	require.NoError(t, r.app.connect(""))

	script := "START\nWAIT recording\nPAUSE\nWAIT paused\nPAUSE\nSTOP\nWAIT stopped\nSAVE\nSTATE\nBOGUS\nQUIT\nSTART\n"
	out := &bytes.Buffer{}
	code := driveTestMode(strings.NewReader(script), out, r.app, r.sink, r.fake)
	assert.Equal(t, 0, code)

	got := out.String()
	assert.Contains(t, got, "saved "+r.dir)
	assert.Contains(t, got, "state idle")
	assert.Contains(t, got, `error unknown command "BOGUS"`)
	assert.Equal(t, session.Idle, r.app.sess.State().Status, "commands after QUIT are ignored")
	assert.Equal(t, 1, r.app.sess.State().Takes)
}

func TestDriveTestModeWaitUnknownStatus(t *testing.T) {
	r := newAppRig(t, 0, deskMic)
	out := &bytes.Buffer{}
	code := driveTestMode(strings.NewReader("WAIT sideways\n"), out, r.app, r.sink, r.fake)
	assert.Equal(t, 1, code)
	assert.Contains(t, out.String(), "unknown status")
}

func TestParseStatus(t *testing.T) {
	st, ok := parseStatus("COUNTING_DOWN")
	assert.True(t, ok)
	assert.Equal(t, session.CountingDown, st)
	_, ok = parseStatus("nope")
	assert.False(t, ok)
}

func TestParseOptionsFlagsOverrideConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("device: desk\ncountdown: 5\nformat: wav\n"), 0o644))

	opts, err := parseOptions([]string{"-config", path, "-countdown", "0", "-hotkey", "-test", "take.wav"})
	require.NoError(t, err)
	assert.Equal(t, "desk", opts.Device)
	assert.Equal(t, 0, opts.CountdownSeconds())
	assert.Equal(t, encoder.FormatWAV, opts.Format)
	assert.True(t, opts.Hotkey)
	assert.True(t, opts.test)
	assert.Equal(t, []string{"take.wav"}, opts.args)
	assert.Equal(t, path, opts.configPath)
}

func TestParseOptionsDefaults(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	opts, err := parseOptions(nil)
	require.NoError(t, err)
	assert.Equal(t, encoder.FormatFLAC, opts.Format)
	assert.Equal(t, session.DefaultCountdown, opts.CountdownSeconds())
	assert.True(t, opts.BeepsEnabled())
	assert.Equal(t, 350*time.Millisecond, opts.longPress)
}

func TestParseOptionsRejectsBadFormat(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	_, err := parseOptions([]string{"-format", "ogg"})
	require.Error(t, err)
}

func TestMatchDevice(t *testing.T) {
	devices := []audio.DeviceInfo{deskMic, usbMic}
	d, ok := matchDevice(devices, "usb")
	assert.True(t, ok)
	assert.Equal(t, usbMic, d)
	d, ok = matchDevice(devices, "DESK MIC")
	assert.True(t, ok)
	assert.Equal(t, deskMic, d)
	_, ok = matchDevice(devices, "nope")
	assert.False(t, ok)
}
