package mqtt

import (
	"sync"

	"github.com/sweeney/jawtalk/internal/logic"
)

// FakePublisher records published messages for test assertions.
// Read the recorded fields only after the publishing goroutine has finished.
type FakePublisher struct {
	mu sync.Mutex

	// Phrases contains all phrases that were published.
	Phrases []logic.Phrase

	// PhrasePayloads contains the JSON payloads for phrases.
	PhrasePayloads [][]byte

	// Unrecognized contains all discarded sequences that were published.
	Unrecognized []*logic.UnrecognizedSequenceError

	// SystemEvents contains all system events that were published.
	SystemEvents []SystemEvent

	// SystemPayloads contains the JSON payloads for system events.
	SystemPayloads [][]byte

	// PublishError, if set, will be returned by PublishPhrase and PublishUnrecognized.
	PublishError error

	// PublishSystemError, if set, will be returned by PublishSystem.
	PublishSystemError error

	// Closed tracks if Close was called.
	Closed bool

	// Connected controls the return value of IsConnected.
	Connected bool
}

// NewFakePublisher creates a FakePublisher for testing.
func NewFakePublisher() *FakePublisher {
	return &FakePublisher{}
}

// PublishPhrase records the phrase.
func (f *FakePublisher) PublishPhrase(session string, phrase logic.Phrase) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PublishError != nil {
		return f.PublishError
	}

	payload, err := FormatPhrasePayload(session, phrase)
	if err != nil {
		return err
	}
	f.Phrases = append(f.Phrases, phrase)
	f.PhrasePayloads = append(f.PhrasePayloads, payload)
	return nil
}

// PublishUnrecognized records the discarded sequence.
func (f *FakePublisher) PublishUnrecognized(_ string, seq *logic.UnrecognizedSequenceError) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PublishError != nil {
		return f.PublishError
	}
	f.Unrecognized = append(f.Unrecognized, seq)
	return nil
}

// PublishSystem records the system event.
func (f *FakePublisher) PublishSystem(event SystemEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PublishSystemError != nil {
		return f.PublishSystemError
	}

	payload, err := FormatSystemPayload(event)
	if err != nil {
		return err
	}
	f.SystemEvents = append(f.SystemEvents, event)
	f.SystemPayloads = append(f.SystemPayloads, payload)
	return nil
}

// PhraseTexts returns the text of every published phrase.
func (f *FakePublisher) PhraseTexts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.Phrases))
	for i, p := range f.Phrases {
		out[i] = p.Text
	}
	return out
}

// SystemEventNames returns the Event of every published system event.
func (f *FakePublisher) SystemEventNames() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.SystemEvents))
	for i, e := range f.SystemEvents {
		out[i] = e.Event
	}
	return out
}

// Close marks the publisher as closed.
func (f *FakePublisher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}

// IsConnected reports whether the fake publisher is "connected".
func (f *FakePublisher) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Connected
}

// Reset clears recorded messages.
func (f *FakePublisher) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Phrases = nil
	f.PhrasePayloads = nil
	f.Unrecognized = nil
	f.SystemEvents = nil
	f.SystemPayloads = nil
	f.Closed = false
	f.PublishError = nil
	f.PublishSystemError = nil
	f.Connected = false
}
