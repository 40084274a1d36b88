package logic

import (
	"fmt"
	"math"
)

// DefaultRestDeadZone is the half-width of the band around the rest baseline
// that always classifies as rest.
const DefaultRestDeadZone = 5.0

// Classifier maps readings to gestures using a calibration profile.
// It holds no state between calls; hysteresis lives in the Debouncer.
type Classifier struct {
	Valid        Range
	RestDeadZone float64
}

// NewClassifier creates a Classifier.
func NewClassifier(valid Range, restDeadZone float64) Classifier {
	return Classifier{Valid: valid, RestDeadZone: restDeadZone}
}

// Classify returns the gesture for r under profile p.
//
// Readings outside the valid range return GestureUnknown with
// ErrSensorOutOfRange. A nil profile returns ErrNoProfile.
// Otherwise the gesture whose boundary lies nearest to the reading wins,
// with rest taking every reading inside its dead zone.
func (c Classifier) Classify(r Reading, p *Profile) (Gesture, error) {
	if p == nil {
		return GestureUnknown, ErrNoProfile
	}
	if math.IsNaN(r.Value) || !c.Valid.Contains(r.Value) {
		return GestureUnknown, fmt.Errorf("%w: %.3f not in [%.3f, %.3f]", ErrSensorOutOfRange, r.Value, c.Valid.Min, c.Valid.Max)
	}

	if math.Abs(r.Value-p.RestBaseline) <= c.RestDeadZone {
		return GestureRest, nil
	}

	best := GestureRest
	bestDist := math.Abs(r.Value - p.RestBaseline)
	for _, g := range []Gesture{GestureOpen, GestureLeft, GestureRight} {
		// Strict comparison keeps ties on the earlier gesture.
		if d := math.Abs(r.Value - p.Threshold(g)); d < bestDist {
			best = g
			bestDist = d
		}
	}
	return best, nil
}
