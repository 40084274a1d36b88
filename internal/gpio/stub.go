//go:build !linux

package gpio

import (
	"errors"
	"time"
)

// RealButton is not available on non-Linux platforms.
type RealButton struct{}

// NewRealButton returns an error on non-Linux platforms.
func NewRealButton(int, time.Duration) (*RealButton, error) {
	return nil, errors.New("gpio: not supported on this platform (requires Linux)")
}

// Presses returns nil; a nil channel never delivers.
func (b *RealButton) Presses() <-chan time.Time {
	return nil
}

// Close is not implemented on non-Linux platforms.
func (b *RealButton) Close() error {
	return nil
}
