package audio

import (
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/term"
)

var ErrPickerAborted = errors.New("device selection aborted")

type pickKey int

const (
	keyNone pickKey = iota
	keyUp
	keyDown
	keyEnter
	keyAbort
)

func decodeKey(buf []byte) pickKey {
	switch {
	case len(buf) == 1:
		switch buf[0] {
		case 13, 10:
			return keyEnter
		case 3, 'q':
			return keyAbort
		case 'j':
			return keyDown
		case 'k':
			return keyUp
		}
	case len(buf) == 3 && buf[0] == 0x1b && buf[1] == '[':
		switch buf[2] {
		case 'A':
			return keyUp
		case 'B':
			return keyDown
		}
	}
	return keyNone
}

func moveCursor(cursor, n int, k pickKey) int {
	switch k {
	case keyUp:
		if cursor > 0 {
			return cursor - 1
		}
	case keyDown:
		if cursor < n-1 {
			return cursor + 1
		}
	}
	return cursor
}

func renderPicker(w io.Writer, devices []DeviceInfo, cursor int, current string) {
	fmt.Fprint(w, "\r\x1b[J")
	fmt.Fprint(w, "Select input device (↑/↓, Enter to confirm):\r\n\r\n")
	for i, d := range devices {
		tag := ""
		if d.ID == current {
			tag = " (current)"
		}
		if IsBluetooth(d.Label()) {
			tag += " \x1b[33m[⚠ Lower audio quality]\x1b[0m"
		}
		if i == cursor {
			fmt.Fprintf(w, "  \x1b[1;36m▶ %s%s\x1b[0m\r\n", d.Label(), tag)
		} else {
			fmt.Fprintf(w, "    %s%s\r\n", d.Label(), tag)
		}
	}
}

// SelectDevice presents an interactive device picker on the terminal and
// returns the chosen device. The cursor starts on currentID when present.
// With a single device it returns that device without prompting.
func SelectDevice(ctx Context, currentID string) (*DeviceInfo, error) {
	devices, err := ctx.Devices()
	if err != nil {
		return nil, fmt.Errorf("enumerating devices: %w", err)
	}
	if len(devices) == 0 {
		return nil, ErrNoDevice
	}
	if len(devices) == 1 {
		return &devices[0], nil
	}

	fd := int(os.Stdin.Fd())
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return nil, fmt.Errorf("setting raw mode: %w", err)
	}
	defer term.Restore(fd, oldState)

	cursor := 0
	for i, d := range devices {
		if d.ID == currentID {
			cursor = i
		}
	}

	out := os.Stdout
	renderPicker(out, devices, cursor, currentID)

	buf := make([]byte, 3)
	for {
		n, err := os.Stdin.Read(buf)
		if err != nil {
			return nil, fmt.Errorf("reading input: %w", err)
		}
		switch k := decodeKey(buf[:n]); k {
		case keyEnter:
			fmt.Fprint(out, "\r\n")
			return &devices[cursor], nil
		case keyAbort:
			fmt.Fprint(out, "\r\n")
			return nil, ErrPickerAborted
		default:
			cursor = moveCursor(cursor, len(devices), k)
		}
		fmt.Fprintf(out, "\x1b[%dA", len(devices)+2)
		renderPicker(out, devices, cursor, currentID)
	}
}
