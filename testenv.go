package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"prompter/audio"
	"prompter/beep"
	"prompter/clock"
	"prompter/log"
	"prompter/recorder"
	"prompter/session"
)

const waitTimeout = 30 * time.Second

// lineSink prints one line per status change and lets the driver block
// until a status is reached.
type lineSink struct {
	w io.Writer

	mu      sync.Mutex
	status  session.Status
	changed chan struct{}
}

func newLineSink(w io.Writer) *lineSink {
	return &lineSink{w: w, changed: make(chan struct{})}
}

func (l *lineSink) State(st session.State) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if st.Status == l.status {
		return
	}
	l.status = st.Status
	fmt.Fprintf(l.w, "status %s\n", st.Status)
	close(l.changed)
	l.changed = make(chan struct{})
}

func (l *lineSink) Notice(text string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.w, "notice %s\n", text)
}

func (l *lineSink) waitFor(want session.Status, timeout time.Duration) bool {
	deadline := time.After(timeout)
	for {
		l.mu.Lock()
		cur, ch := l.status, l.changed
		l.mu.Unlock()
		if cur == want {
			return true
		}
		select {
		case <-ch:
		case <-deadline:
			return false
		}
	}
}

func parseStatus(s string) (session.Status, bool) {
	for st := session.Idle; st <= session.Stopped; st++ {
		if strings.EqualFold(st.String(), s) {
			return st, true
		}
	}
	return session.Idle, false
}

// runTestMode drives a session headlessly from stdin commands, with the
// WAV file standing in for the microphone.
func runTestMode(opts options, wavPath, script string) {
	beep.Disable()

	if err := log.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not init logging: %v\n", err)
	}

	fakeCtx, err := audio.NewFakeContextFromWAV(wavPath, true)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading WAV: %v\n", err)
		os.Exit(1)
	}

	sink := newLineSink(os.Stdout)
	a := newApp(context.Background(), recorder.DirSaver{Dir: opts.OutDir}, opts.CopyPath)
	a.script = opts.Script
	a.setSink(sink)
	sess, err := newSession(fakeCtx, clock.New(), opts, a.observe, script)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	a.sess = sess
	log.SessionStart("fake input", opts.Format, opts.CountdownSeconds())
	if err := a.connect(opts.Device); err != nil {
		fmt.Fprintf(os.Stdout, "error connect: %v\n", err)
	}

	code := driveTestMode(os.Stdin, os.Stdout, a, sink, fakeCtx)
	takes := sess.State().Takes
	sess.Close()
	log.SessionEnd(takes)
	log.Close()
	os.Exit(code)
}

// driveTestMode executes one command per line and returns the exit code.
func driveTestMode(r io.Reader, w io.Writer, a *app, sink *lineSink, fakeCtx *audio.FakeContext) int {
	fail := func(op string, err error) {
		if err != nil {
			fmt.Fprintf(w, "error %s: %v\n", op, err)
		}
	}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		arg := ""
		if len(fields) > 1 {
			arg = fields[1]
		}
		switch strings.ToUpper(fields[0]) {
		case "START", "TOGGLE":
			fail("toggle", a.Toggle())
		case "CANCEL":
			fail("cancel", a.sess.CancelCountdown())
		case "PAUSE":
			fail("pause", a.TogglePause())
		case "STOP":
			fail("stop", a.sess.Stop())
		case "SAVE":
			path, err := a.Save()
			if err != nil {
				fail("save", err)
			} else {
				fmt.Fprintf(w, "saved %s\n", path)
			}
		case "DISCARD":
			fail("discard", a.Discard())
		case "REHEARSE":
			fmt.Fprintf(w, "rehearse %t\n", a.ToggleRehearse())
		case "RELOAD":
			if _, err := a.ReloadScript(); err != nil {
				fail("reload", err)
			} else {
				fmt.Fprintln(w, "reloaded")
			}
		case "DEVICE":
			fail("device", a.SelectDevice(arg))
		case "WAIT":
			st, ok := parseStatus(arg)
			if !ok {
				fmt.Fprintf(w, "error wait: unknown status %q\n", arg)
				return 1
			}
			if !sink.waitFor(st, waitTimeout) {
				fmt.Fprintf(w, "error wait: timed out waiting for %s\n", st)
				return 1
			}
		case "WAIT_AUDIO_DONE":
			if c := fakeCtx.LastCapture(); c != nil {
				<-c.AudioDone()
			}
		case "STATE":
			st := a.sess.State()
			fmt.Fprintf(w, "state %s elapsed=%s level=%s scroll=%.1f takes=%d\n",
				st.Status, session.FormatElapsed(st.Elapsed), st.Level.Band, st.Scroll.Position, st.Takes)
		case "SLEEP":
			if ms, err := strconv.Atoi(arg); err == nil {
				time.Sleep(time.Duration(ms) * time.Millisecond)
			}
		case "QUIT":
			return 0
		default:
			fmt.Fprintf(w, "error unknown command %q\n", fields[0])
		}
	}
	return 0
}
