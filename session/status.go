package session

import (
	"fmt"
	"time"
)

type Status int

const (
	Idle Status = iota
	CountingDown
	Recording
	Paused
	Stopped
)

func (s Status) String() string {
	switch s {
	case Idle:
		return "idle"
	case CountingDown:
		return "counting_down"
	case Recording:
		return "recording"
	case Paused:
		return "paused"
	case Stopped:
		return "stopped"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Label is the short banner shown to the user.
func (s Status) Label() string {
	switch s {
	case CountingDown:
		return "COUNTDOWN"
	case Recording:
		return "RECORDING"
	case Paused:
		return "PAUSED"
	case Stopped:
		return "STOPPED"
	default:
		return "READY"
	}
}

// Capturing reports whether a take is in flight.
func (s Status) Capturing() bool { return s == Recording || s == Paused }

// FormatElapsed renders d as MM:SS. Minutes keep growing past 59.
func FormatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int(d / time.Second)
	return fmt.Sprintf("%02d:%02d", secs/60, secs%60)
}
