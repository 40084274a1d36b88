// Package gpio provides the calibration push button with hardware abstraction.
// The real implementation uses Linux GPIO character device edge events.
// The fake implementation allows testing without hardware.
package gpio

import "time"

// Button delivers debounced presses of a physical push button.
type Button interface {
	// Presses returns a channel receiving the time of each press.
	// The channel is closed by Close.
	Presses() <-chan time.Time

	// Close releases GPIO resources.
	Close() error
}

// DefaultButtonPin is the BCM pin of the calibration button.
const DefaultButtonPin = 17

// DefaultDebounce is the kernel debounce period applied to the button line.
const DefaultDebounce = 50 * time.Millisecond

// pressBuffer bounds presses waiting for the consumer; extra presses are
// dropped since a pending recalibration already covers them.
const pressBuffer = 4
