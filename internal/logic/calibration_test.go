package logic

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func window(values ...float64) []Reading {
	rs := make([]Reading, len(values))
	for i, v := range values {
		rs[i] = Reading{Time: at(i * 100), Value: v}
	}
	return rs
}

func calibrated(t *testing.T) *Profile {
	t.Helper()
	c := NewCalibrator(DefaultRange, CalibrationOptions{})
	require.NoError(t, c.RecordSample(GestureRest, window(50, 50, 50)))
	require.NoError(t, c.RecordSample(GestureOpen, window(90, 90, 90)))
	require.NoError(t, c.RecordSample(GestureLeft, window(20, 20, 20)))
	require.NoError(t, c.RecordSample(GestureRight, window(70, 70, 70)))
	p, err := c.Finalize(t0)
	require.NoError(t, err)
	return p
}

func TestCalibratorMidpointThresholds(t *testing.T) {
	p := calibrated(t)

	assert.Equal(t, 50.0, p.RestBaseline)
	assert.Equal(t, 70.0, p.OpenThreshold)
	assert.Equal(t, 35.0, p.LeftThreshold)
	assert.Equal(t, 60.0, p.RightThreshold)
	assert.Equal(t, 90.0, p.Samples[GestureOpen])
	assert.Equal(t, t0, p.CalibratedAt)
}

func TestCalibratorTrimmedMean(t *testing.T) {
	c := NewCalibrator(DefaultRange, CalibrationOptions{TrimFraction: 0.1})

	// Ten readings: trimming 10% drops the 0 and the 100 outliers
	require.NoError(t, c.RecordSample(GestureRest, window(0, 40, 40, 40, 40, 60, 60, 60, 60, 100)))
	require.NoError(t, c.RecordSample(GestureOpen, window(80)))
	require.NoError(t, c.RecordSample(GestureLeft, window(10)))
	require.NoError(t, c.RecordSample(GestureRight, window(70)))

	p, err := c.Finalize(t0)
	require.NoError(t, err)
	assert.InDelta(t, 50.0, p.RestBaseline, 1e-9)
}

func TestTrimmedMeanKeepsOneValue(t *testing.T) {
	assert.Equal(t, 7.0, trimmedMean([]float64{7}, 0.4))
	assert.Equal(t, 2.0, trimmedMean([]float64{3, 1, 2}, 0.49))
	assert.Equal(t, 2.5, trimmedMean([]float64{4, 1, 3, 2}, 0))
}

func TestCalibratorDropsOutOfRange(t *testing.T) {
	c := NewCalibrator(DefaultRange, CalibrationOptions{TrimFraction: 0})
	require.NoError(t, c.RecordSample(GestureOpen, window(-5, 80, 150, 90)))
	assert.True(t, c.Recorded(GestureOpen))
	assert.Equal(t, 85.0, c.samples[GestureOpen])
}

func TestCalibratorInsufficientSamples(t *testing.T) {
	c := NewCalibrator(DefaultRange, CalibrationOptions{})

	err := c.RecordSample(GestureRest, nil)
	assert.True(t, errors.Is(err, ErrInsufficientSamples), "empty window: %v", err)

	err = c.RecordSample(GestureRest, window(-1, 101, 500))
	assert.ErrorIs(t, err, ErrInsufficientSamples)
	assert.False(t, c.Recorded(GestureRest))
}

func TestCalibratorRejectsUnknown(t *testing.T) {
	c := NewCalibrator(DefaultRange, CalibrationOptions{})
	assert.Error(t, c.RecordSample(GestureUnknown, window(50)))
}

func TestCalibratorIncomplete(t *testing.T) {
	c := NewCalibrator(DefaultRange, CalibrationOptions{})
	require.NoError(t, c.RecordSample(GestureRest, window(50)))
	require.NoError(t, c.RecordSample(GestureLeft, window(20)))

	assert.Equal(t, []Gesture{GestureOpen, GestureRight}, c.Missing())

	p, err := c.Finalize(t0)
	assert.Nil(t, p)
	assert.ErrorIs(t, err, ErrIncompleteProfile)
	assert.Contains(t, err.Error(), "open-right")
}

func TestCalibratorRecordReplaces(t *testing.T) {
	c := NewCalibrator(DefaultRange, CalibrationOptions{})
	require.NoError(t, c.RecordSample(GestureRest, window(40)))
	require.NoError(t, c.RecordSample(GestureRest, window(45)))
	assert.Equal(t, 45.0, c.samples[GestureRest])
}

func TestCalibratorCustomPolicy(t *testing.T) {
	// Boundary sits at the raw sample itself
	raw := func(_, sample float64) float64 { return sample }
	c := NewCalibrator(DefaultRange, CalibrationOptions{Policy: raw})
	for g, v := range map[Gesture]float64{GestureRest: 50, GestureOpen: 90, GestureLeft: 20, GestureRight: 70} {
		require.NoError(t, c.RecordSample(g, window(v)))
	}
	p, err := c.Finalize(t0)
	require.NoError(t, err)
	assert.Equal(t, 90.0, p.OpenThreshold)
	assert.Equal(t, 20.0, p.LeftThreshold)
	assert.Equal(t, 70.0, p.RightThreshold)
}

func TestFinalizeCopiesSamples(t *testing.T) {
	c := NewCalibrator(DefaultRange, CalibrationOptions{})
	for _, g := range CalibrationGestures {
		require.NoError(t, c.RecordSample(g, window(float64(10*(int(g)+1)))))
	}
	p, err := c.Finalize(t0)
	require.NoError(t, err)

	require.NoError(t, c.RecordSample(GestureRest, window(99)))
	assert.Equal(t, 10.0, p.Samples[GestureRest], "profile must not change after finalize")
}
