package gpio

import (
	"sync"
	"time"
)

// FakeButton is a test double pressed from test code.
type FakeButton struct {
	presses chan time.Time

	mu     sync.Mutex
	closed bool
}

// NewFakeButton creates an unpressed FakeButton.
func NewFakeButton() *FakeButton {
	return &FakeButton{presses: make(chan time.Time, pressBuffer)}
}

// Press delivers a press at t. It reports false if the press was dropped
// because the buffer is full or the button is closed.
func (f *FakeButton) Press(t time.Time) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return false
	}
	select {
	case f.presses <- t:
		return true
	default:
		return false
	}
}

// Presses implements Button.
func (f *FakeButton) Presses() <-chan time.Time {
	return f.presses
}

// Closed reports whether Close was called.
func (f *FakeButton) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// Close closes the press channel.
func (f *FakeButton) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		close(f.presses)
	}
	return nil
}
