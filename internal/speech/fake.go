package speech

import (
	"context"
	"sync"
)

// FakeSynthesizer records spoken text for test assertions.
type FakeSynthesizer struct {
	mu        sync.Mutex
	spoken    []string
	cancelled int

	// Err, if set, is returned by Speak.
	Err error

	// Block, if set, makes Speak wait for ctx to be cancelled.
	Block bool

	// Started receives the text of each utterance as it begins, if non-nil.
	Started chan string
}

// Name implements Synthesizer.
func (f *FakeSynthesizer) Name() string {
	return "fake"
}

// Speak implements Synthesizer.
func (f *FakeSynthesizer) Speak(ctx context.Context, text string) error {
	if f.Started != nil {
		f.Started <- text
	}
	if f.Err != nil {
		return f.Err
	}
	if f.Block {
		<-ctx.Done()
		f.mu.Lock()
		f.cancelled++
		f.mu.Unlock()
		return ctx.Err()
	}
	f.mu.Lock()
	f.spoken = append(f.spoken, text)
	f.mu.Unlock()
	return nil
}

// Spoken returns the completed utterances.
func (f *FakeSynthesizer) Spoken() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.spoken...)
}

// Cancelled returns how many blocked utterances were cancelled.
func (f *FakeSynthesizer) Cancelled() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cancelled
}
