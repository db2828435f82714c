// Package hotkey registers the global Ctrl+Shift+Space shortcut that starts
// and stops takes while another window has focus.
package hotkey

// Chord is the shortcut as shown to the user.
const Chord = "Ctrl+Shift+Space"

type Hotkey interface {
	Register() error
	Unregister()
	Keydown() <-chan struct{}
	Keyup() <-chan struct{}
}

// signal delivers at most one pending edge; extra edges are dropped while
// the consumer is busy.
func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
