package speech

import (
	"context"
	"errors"
	"sync"

	log "github.com/echocat/slf4g"
)

// DefaultQueueSize bounds utterances waiting to be spoken.
const DefaultQueueSize = 8

// Speaker speaks phrases on its own goroutine so the pipeline never waits
// for audio.
type Speaker struct {
	synth Synthesizer
	queue chan string

	mu          sync.Mutex
	enabled     bool
	cancel      context.CancelFunc
	unavailable bool
}

// NewSpeaker returns an enabled Speaker. A nil synth degrades to visual-only
// output: Say is accepted and dropped.
func NewSpeaker(synth Synthesizer, queueSize int) *Speaker {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Speaker{
		synth:       synth,
		queue:       make(chan string, queueSize),
		enabled:     true,
		unavailable: synth == nil,
	}
}

// Say queues text for speaking. It never blocks; when the queue is full or
// speech is disabled the text is dropped and false is returned.
func (s *Speaker) Say(text string) bool {
	if !s.Enabled() {
		return false
	}
	select {
	case s.queue <- text:
		return true
	default:
		log.With("text", text).Warn("Speech queue full, dropping phrase.")
		return false
	}
}

// Enabled reports whether speech output is on and a synthesizer exists.
func (s *Speaker) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled && !s.unavailable
}

// SetEnabled turns speech output on or off. Turning it off stops the
// utterance in flight and discards queued ones.
func (s *Speaker) SetEnabled(enabled bool) {
	s.mu.Lock()
	s.enabled = enabled
	cancel := s.cancel
	s.mu.Unlock()

	if enabled {
		return
	}
	if cancel != nil {
		cancel()
	}
	for {
		select {
		case <-s.queue:
		default:
			return
		}
	}
}

// Backend names the synthesizer, or "none".
func (s *Speaker) Backend() string {
	if s.synth == nil {
		return "none"
	}
	return s.synth.Name()
}

// Run speaks queued text until ctx is done.
func (s *Speaker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case text := <-s.queue:
			s.speak(ctx, text)
		}
	}
}

func (s *Speaker) speak(parent context.Context, text string) {
	s.mu.Lock()
	if !s.enabled || s.unavailable {
		s.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(parent)
	s.cancel = cancel
	s.mu.Unlock()

	err := s.synth.Speak(ctx, text)

	s.mu.Lock()
	s.cancel = nil
	s.mu.Unlock()
	cancel()

	switch {
	case err == nil, errors.Is(err, context.Canceled):
	case errors.Is(err, ErrSynthesisUnavailable):
		s.mu.Lock()
		s.unavailable = true
		s.mu.Unlock()
		log.WithError(err).Warn("Speech synthesis unavailable, continuing with visual output only.")
	default:
		log.WithError(err).With("text", text).Warn("Speech failed.")
	}
}
