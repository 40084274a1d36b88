// Package speech turns phrases into audible output through a platform
// text-to-speech capability, with abstraction for testing.
package speech

import (
	"context"
	"errors"
)

// ErrSynthesisUnavailable is returned when no speech capability exists on
// this host. Phrases still reach the visual outputs.
var ErrSynthesisUnavailable = errors.New("speech synthesis unavailable")

// Synthesizer speaks text aloud.
type Synthesizer interface {
	// Speak blocks until the utterance finishes or ctx is cancelled.
	Speak(ctx context.Context, text string) error

	// Name identifies the backend for status output.
	Name() string
}
