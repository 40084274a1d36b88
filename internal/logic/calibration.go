package logic

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// ThresholdPolicy derives a gesture's decision boundary from the rest
// baseline and the raw value recorded for that gesture.
type ThresholdPolicy func(rest, sample float64) float64

// MidpointThreshold places the boundary halfway between rest and the
// recorded gesture, giving symmetric decision regions around each boundary.
func MidpointThreshold(rest, sample float64) float64 {
	return rest + (sample-rest)/2
}

// CalibrationOptions tune how samples are reduced to thresholds.
type CalibrationOptions struct {
	// TrimFraction of readings dropped from each end before averaging.
	TrimFraction float64
	// Policy defaults to MidpointThreshold.
	Policy ThresholdPolicy
}

// DefaultTrimFraction drops the lowest and highest 10% of a window.
const DefaultTrimFraction = 0.1

// Calibrator builds a Profile from one sample window per gesture.
// Not safe for concurrent use.
type Calibrator struct {
	valid   Range
	trim    float64
	policy  ThresholdPolicy
	samples map[Gesture]float64
}

// NewCalibrator creates a Calibrator that ignores readings outside valid.
func NewCalibrator(valid Range, opts CalibrationOptions) *Calibrator {
	policy := opts.Policy
	if policy == nil {
		policy = MidpointThreshold
	}
	trim := opts.TrimFraction
	if trim < 0 || trim >= 0.5 {
		trim = DefaultTrimFraction
	}
	return &Calibrator{
		valid:   valid,
		trim:    trim,
		policy:  policy,
		samples: make(map[Gesture]float64, len(CalibrationGestures)),
	}
}

// RecordSample reduces window to a trimmed mean and stores it for kind.
// Recording the same gesture again replaces the previous value.
func (c *Calibrator) RecordSample(kind Gesture, window []Reading) error {
	if kind == GestureUnknown || int(kind) >= len(gestureNames) {
		return fmt.Errorf("record sample: cannot calibrate gesture %s", kind)
	}

	values := make([]float64, 0, len(window))
	for _, r := range window {
		if math.IsNaN(r.Value) || !c.valid.Contains(r.Value) {
			continue
		}
		values = append(values, r.Value)
	}
	if len(values) == 0 {
		return fmt.Errorf("record %s sample (%d readings): %w", kind, len(window), ErrInsufficientSamples)
	}

	c.samples[kind] = trimmedMean(values, c.trim)
	return nil
}

// Recorded reports whether kind has a sample.
func (c *Calibrator) Recorded(kind Gesture) bool {
	_, ok := c.samples[kind]
	return ok
}

// Missing returns the gestures not yet recorded, in calibration order.
func (c *Calibrator) Missing() []Gesture {
	var missing []Gesture
	for _, g := range CalibrationGestures {
		if !c.Recorded(g) {
			missing = append(missing, g)
		}
	}
	return missing
}

// Finalize builds the Profile. It fails with ErrIncompleteProfile if any
// calibration gesture was never recorded.
func (c *Calibrator) Finalize(now time.Time) (*Profile, error) {
	if missing := c.Missing(); len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing %s", ErrIncompleteProfile, FormatSequence(missing))
	}

	rest := c.samples[GestureRest]
	samples := make(map[Gesture]float64, len(c.samples))
	for g, v := range c.samples {
		samples[g] = v
	}

	return &Profile{
		RestBaseline:   rest,
		OpenThreshold:  c.policy(rest, c.samples[GestureOpen]),
		LeftThreshold:  c.policy(rest, c.samples[GestureLeft]),
		RightThreshold: c.policy(rest, c.samples[GestureRight]),
		Samples:        samples,
		CalibratedAt:   now,
	}, nil
}

// trimmedMean sorts values in place. At least one value always survives trimming.
func trimmedMean(values []float64, fraction float64) float64 {
	sort.Float64s(values)
	k := int(float64(len(values)) * fraction)
	if 2*k >= len(values) {
		k = (len(values) - 1) / 2
	}
	kept := values[k : len(values)-k]

	var sum float64
	for _, v := range kept {
		sum += v
	}
	return sum / float64(len(kept))
}
