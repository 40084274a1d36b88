// Package logic contains the pure gesture pipeline: calibration, classification,
// debouncing and phrase mapping.
// This package has NO external dependencies (no MQTT, OS, logging, or time.Sleep).
// Time is always injectable via time.Time parameters.
package logic

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Reading is a single timestamped sample of jaw position.
type Reading struct {
	Time  time.Time
	Value float64
}

// Range is an inclusive interval of valid sensor values.
type Range struct {
	Min float64 `yaml:"min" json:"min"`
	Max float64 `yaml:"max" json:"max"`
}

// DefaultRange matches the 0..100 scale the acquisition node reports.
var DefaultRange = Range{Min: 0, Max: 100}

// Contains reports whether v lies within the range.
func (r Range) Contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

// Gesture is a discrete jaw gesture symbol.
type Gesture uint8

const (
	GestureRest Gesture = iota
	GestureOpen
	GestureLeft
	GestureRight
	GestureUnknown
)

// CalibrationGestures lists the gestures a profile needs, in the order the
// guided calibration walks them.
var CalibrationGestures = []Gesture{GestureRest, GestureOpen, GestureLeft, GestureRight}

var gestureNames = [...]string{
	GestureRest:    "rest",
	GestureOpen:    "open",
	GestureLeft:    "left",
	GestureRight:   "right",
	GestureUnknown: "unknown",
}

// ParseGesture parses the text form of a gesture.
func ParseGesture(s string) (Gesture, error) {
	var g Gesture
	if err := g.UnmarshalText([]byte(s)); err != nil {
		return GestureUnknown, err
	}
	return g, nil
}

func (g Gesture) String() string {
	if int(g) < len(gestureNames) {
		return gestureNames[g]
	}
	return fmt.Sprintf("gesture-%d", uint8(g))
}

// MarshalText implements encoding.TextMarshaler.
func (g Gesture) MarshalText() ([]byte, error) {
	if int(g) >= len(gestureNames) {
		return nil, fmt.Errorf("illegal gesture: %d", uint8(g))
	}
	return []byte(gestureNames[g]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (g *Gesture) UnmarshalText(text []byte) error {
	plain := strings.TrimSpace(strings.ToLower(string(text)))
	for i, name := range gestureNames {
		if name == plain {
			*g = Gesture(i)
			return nil
		}
	}
	return fmt.Errorf("illegal gesture: %q", string(text))
}

// Profile holds the thresholds derived from one calibration run.
// A Profile is never modified after Finalize returns it; recalibration
// produces a new one.
type Profile struct {
	RestBaseline   float64
	OpenThreshold  float64
	LeftThreshold  float64
	RightThreshold float64
	// Raw representative value recorded for each gesture.
	Samples      map[Gesture]float64
	CalibratedAt time.Time
}

// Threshold returns the decision boundary for g. Rest maps to its baseline.
func (p *Profile) Threshold(g Gesture) float64 {
	switch g {
	case GestureOpen:
		return p.OpenThreshold
	case GestureLeft:
		return p.LeftThreshold
	case GestureRight:
		return p.RightThreshold
	default:
		return p.RestBaseline
	}
}

// DebouncedEvent is a gesture confirmed stable for at least the dwell time.
type DebouncedEvent struct {
	Gesture   Gesture
	Start     time.Time
	Confirmed time.Time
}

// Phrase is a finalized output phrase.
type Phrase struct {
	Text     string
	Gestures []Gesture
	Time     time.Time
}

// GestureCounts tracks confirmed events per gesture since the session started.
type GestureCounts struct {
	Rest  int
	Open  int
	Left  int
	Right int
}

func (c *GestureCounts) add(g Gesture) {
	switch g {
	case GestureRest:
		c.Rest++
	case GestureOpen:
		c.Open++
	case GestureLeft:
		c.Left++
	case GestureRight:
		c.Right++
	}
}

var (
	// ErrInsufficientSamples is returned when a calibration window has no usable readings.
	ErrInsufficientSamples = errors.New("insufficient samples")
	// ErrIncompleteProfile is returned when finalizing before every gesture was recorded.
	ErrIncompleteProfile = errors.New("incomplete profile")
	// ErrNoProfile is returned when classifying without a calibration profile.
	ErrNoProfile = errors.New("no calibration profile")
	// ErrSensorOutOfRange marks a reading outside the valid sensor range.
	ErrSensorOutOfRange = errors.New("sensor out of range")
	// ErrUnrecognizedSequence marks a gesture sequence that matches no phrase.
	ErrUnrecognizedSequence = errors.New("unrecognized sequence")
	// ErrInvalidMapping is returned for phrase mappings that cannot be used.
	ErrInvalidMapping = errors.New("invalid phrase mapping")
)

// UnrecognizedSequenceError carries the sequence that was discarded.
type UnrecognizedSequenceError struct {
	Gestures []Gesture
	Time     time.Time
}

func (e *UnrecognizedSequenceError) Error() string {
	return fmt.Sprintf("%v: %s", ErrUnrecognizedSequence, FormatSequence(e.Gestures))
}

func (e *UnrecognizedSequenceError) Unwrap() error {
	return ErrUnrecognizedSequence
}

// FormatSequence renders gestures as "open-left".
func FormatSequence(gs []Gesture) string {
	parts := make([]string, len(gs))
	for i, g := range gs {
		parts[i] = g.String()
	}
	return strings.Join(parts, "-")
}
