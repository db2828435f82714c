package hotkey

import "sync"

// FakeHotkey stands in for the OS shortcut. Tests press and release it with
// SimKeydown and SimKeyup; RegisterErr makes Register fail.
type FakeHotkey struct {
	keydown chan struct{}
	keyup   chan struct{}

	RegisterErr error

	mu         sync.Mutex
	registered bool
}

func NewFake() *FakeHotkey {
	return &FakeHotkey{
		keydown: make(chan struct{}, 1),
		keyup:   make(chan struct{}, 1),
	}
}

func (f *FakeHotkey) Register() error {
	if f.RegisterErr != nil {
		return f.RegisterErr
	}
	f.mu.Lock()
	f.registered = true
	f.mu.Unlock()
	return nil
}

func (f *FakeHotkey) Unregister() {
	f.mu.Lock()
	f.registered = false
	f.mu.Unlock()
}

// Registered reports whether the shortcut is currently held.
func (f *FakeHotkey) Registered() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.registered
}

func (f *FakeHotkey) Keydown() <-chan struct{} { return f.keydown }
func (f *FakeHotkey) Keyup() <-chan struct{}   { return f.keyup }

// SimKeydown and SimKeyup behave like the real backends: an edge that
// arrives while the previous one is still unread is dropped.
func (f *FakeHotkey) SimKeydown() { signal(f.keydown) }
func (f *FakeHotkey) SimKeyup()   { signal(f.keyup) }
