package logic

import (
	"fmt"
	"strings"
	"time"
)

// Defaults for the phrase mapper.
const (
	DefaultSequenceTimeout   = 2500 * time.Millisecond
	DefaultMaxSequenceLength = 6
)

// PhraseEntry maps one gesture sequence to the text it produces.
type PhraseEntry struct {
	Gestures []Gesture `yaml:"gestures" json:"gestures"`
	Text     string    `yaml:"text" json:"text"`
}

// Mapping is the configured set of phrases.
type Mapping []PhraseEntry

// DefaultMapping returns the built-in phrase set.
func DefaultMapping() Mapping {
	return Mapping{
		{Gestures: []Gesture{GestureOpen, GestureRest, GestureOpen}, Text: "Hello"},
		{Gestures: []Gesture{GestureOpen, GestureLeft}, Text: "I need help"},
		{Gestures: []Gesture{GestureOpen, GestureRight}, Text: "Thank you"},
		{Gestures: []Gesture{GestureLeft, GestureRest}, Text: "Yes"},
		{Gestures: []Gesture{GestureRight, GestureRest}, Text: "No"},
		{Gestures: []Gesture{GestureOpen, GestureRest, GestureLeft}, Text: "I am hungry"},
		{Gestures: []Gesture{GestureOpen, GestureRest, GestureRight}, Text: "I am thirsty"},
		{Gestures: []Gesture{GestureLeft, GestureRight}, Text: "I am tired"},
	}
}

func sequenceKey(gs []Gesture) string {
	var sb strings.Builder
	for _, g := range gs {
		sb.WriteByte('0' + byte(g))
	}
	return sb.String()
}

// Validate checks that every entry is reachable and unambiguous.
func (m Mapping) Validate(maxLen int) error {
	seen := make(map[string]string, len(m))
	for i, e := range m {
		if strings.TrimSpace(e.Text) == "" {
			return fmt.Errorf("%w: entry %d has no text", ErrInvalidMapping, i)
		}
		if len(e.Gestures) == 0 {
			return fmt.Errorf("%w: %q has no gestures", ErrInvalidMapping, e.Text)
		}
		if maxLen > 0 && len(e.Gestures) > maxLen {
			return fmt.Errorf("%w: %q is longer than %d gestures", ErrInvalidMapping, e.Text, maxLen)
		}
		if e.Gestures[0] == GestureRest {
			return fmt.Errorf("%w: %q starts with rest", ErrInvalidMapping, e.Text)
		}
		for _, g := range e.Gestures {
			if g >= GestureUnknown {
				return fmt.Errorf("%w: %q contains %s", ErrInvalidMapping, e.Text, g)
			}
		}
		key := sequenceKey(e.Gestures)
		if other, ok := seen[key]; ok {
			return fmt.Errorf("%w: %q and %q share %s", ErrInvalidMapping, other, e.Text, FormatSequence(e.Gestures))
		}
		seen[key] = e.Text
	}

	// A sequence that prefixes another would always fire first
	for key, text := range seen {
		for other, otherText := range seen {
			if key != other && strings.HasPrefix(other, key) {
				return fmt.Errorf("%w: %q shadows %q", ErrInvalidMapping, text, otherText)
			}
		}
	}
	return nil
}

// PhraseMapper accumulates debounced gestures and emits phrases.
// The deadline is driven by Tick; nothing here blocks. Not safe for concurrent use.
type PhraseMapper struct {
	timeout  time.Duration
	phrases  map[string]string
	prefixes map[string]struct{}

	partial   []Gesture
	deadline  time.Time
	abandoned int
}

// NewPhraseMapper validates m and builds a mapper.
func NewPhraseMapper(m Mapping, timeout time.Duration, maxLen int) (*PhraseMapper, error) {
	if maxLen <= 0 {
		maxLen = DefaultMaxSequenceLength
	}
	if err := m.Validate(maxLen); err != nil {
		return nil, err
	}

	pm := &PhraseMapper{
		timeout:  timeout,
		phrases:  make(map[string]string, len(m)),
		prefixes: make(map[string]struct{}),
		partial:  make([]Gesture, 0, maxLen),
	}
	for _, e := range m {
		key := sequenceKey(e.Gestures)
		pm.phrases[key] = e.Text
		for i := 1; i < len(key); i++ {
			pm.prefixes[key[:i]] = struct{}{}
		}
	}
	return pm, nil
}

// Feed appends a debounced event to the partial sequence.
//
// It returns the phrase on an exact match. A sequence that can no longer
// match returns an *UnrecognizedSequenceError and resets.
//
// The partial sequence is always a proper prefix of a mapping entry, and
// Validate caps entries at maxLen, so it never grows past the bound.
func (m *PhraseMapper) Feed(e DebouncedEvent) (*Phrase, error) {
	if len(m.partial) > 0 && !e.Confirmed.Before(m.deadline) {
		m.abandoned++
		m.Reset()
	}

	// Rest separates attempts; it only counts once a sequence has begun
	if len(m.partial) == 0 && e.Gesture == GestureRest {
		return nil, nil
	}

	m.partial = append(m.partial, e.Gesture)

	key := sequenceKey(m.partial)
	if text, ok := m.phrases[key]; ok {
		p := &Phrase{
			Text:     text,
			Gestures: append([]Gesture(nil), m.partial...),
			Time:     e.Confirmed,
		}
		m.Reset()
		return p, nil
	}

	if _, ok := m.prefixes[key]; !ok {
		err := &UnrecognizedSequenceError{
			Gestures: append([]Gesture(nil), m.partial...),
			Time:     e.Confirmed,
		}
		m.Reset()
		return nil, err
	}

	m.deadline = e.Confirmed.Add(m.timeout)
	return nil, nil
}

// Tick abandons the partial sequence once its deadline has passed.
// It reports whether a partial sequence was dropped.
func (m *PhraseMapper) Tick(now time.Time) bool {
	if len(m.partial) == 0 || now.Before(m.deadline) {
		return false
	}
	m.abandoned++
	m.Reset()
	return true
}

// Reset discards the partial sequence.
func (m *PhraseMapper) Reset() {
	m.partial = m.partial[:0]
	m.deadline = time.Time{}
}

// Pending returns a copy of the partial sequence.
func (m *PhraseMapper) Pending() []Gesture {
	return append([]Gesture(nil), m.partial...)
}

// Deadline returns when the partial sequence expires; zero when empty.
func (m *PhraseMapper) Deadline() time.Time {
	return m.deadline
}

// Abandoned returns how many partial sequences expired before completing.
func (m *PhraseMapper) Abandoned() int {
	return m.abandoned
}
