package hotkey

import (
	"strings"
	"testing"
	"time"
)

const testLongPress = 40 * time.Millisecond

// step is one scripted action: "down", "up", "hold" (sleep past the
// long-press threshold) or "settle" (short sleep).
type step string

// play runs the script against a fresh Hybrid and returns the events it
// emitted, e.g. "start:toggle stop".
func play(t *testing.T, script ...step) string {
	t.Helper()
	fk := NewFake()
	hy := NewHybrid(fk, testLongPress)
	defer hy.Close()

	var events []string
	drain := func(wait time.Duration) {
		deadline := time.After(wait)
		for {
			select {
			case ev := <-hy.Start():
				events = append(events, "start:"+string(ev.Mode))
			case <-hy.StopChan():
				events = append(events, "stop")
			case <-deadline:
				return
			}
		}
	}

	for _, s := range script {
		switch s {
		case "down":
			fk.SimKeydown()
			drain(5 * time.Millisecond)
		case "up":
			fk.SimKeyup()
			drain(5 * time.Millisecond)
		case "hold":
			drain(testLongPress + 20*time.Millisecond)
		case "settle":
			drain(15 * time.Millisecond)
		default:
			t.Fatalf("unknown step %q", s)
		}
	}
	drain(30 * time.Millisecond)
	return strings.Join(events, " ")
}

func TestHybridScripts(t *testing.T) {
	tests := []struct {
		name   string
		script []step
		want   string
	}{
		{"tap starts without stopping", []step{"down", "up", "hold"}, "start:toggle"},
		{"second tap stops", []step{"down", "up", "settle", "down", "up"}, "start:toggle stop"},
		{"hold stops on release", []step{"down", "hold", "up"}, "start:toggle stop"},
		{"hold without release keeps running", []step{"down", "hold", "hold"}, "start:toggle"},
		{
			"hold then tap cycle",
			[]step{"down", "hold", "up", "settle", "down", "up", "settle", "down", "up"},
			"start:toggle stop start:toggle stop",
		},
		{
			"tap cycle then hold",
			[]step{"down", "up", "settle", "down", "up", "settle", "down", "hold", "up"},
			"start:toggle stop start:toggle stop",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := play(t, tt.script...); got != tt.want {
				t.Errorf("events = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestHybridIsToggleFollowsPressLength(t *testing.T) {
	fk := NewFake()
	hy := NewHybrid(fk, testLongPress)
	defer hy.Close()

	fk.SimKeydown()
	<-hy.Start()
	time.Sleep(testLongPress + 20*time.Millisecond)
	if hy.IsToggle() {
		t.Error("a held press is not a toggle")
	}
	fk.SimKeyup()
	<-hy.StopChan()

	fk.SimKeydown()
	<-hy.Start()
	fk.SimKeyup()
	time.Sleep(10 * time.Millisecond)
	if !hy.IsToggle() {
		t.Error("a short tap is a toggle")
	}
}

func TestHybridClose(t *testing.T) {
	fk := NewFake()
	hy := NewHybrid(fk, testLongPress)
	hy.Close()
	hy.Close()

	fk.SimKeydown()
	select {
	case <-hy.Start():
		t.Fatal("closed hybrid should not emit")
	case <-time.After(30 * time.Millisecond):
	}
}
