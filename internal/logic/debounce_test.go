package logic

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

func at(ms int) time.Time {
	return t0.Add(time.Duration(ms) * time.Millisecond)
}

func TestNewDebouncer(t *testing.T) {
	d := NewDebouncer(400 * time.Millisecond)
	require.NotNil(t, d)
	assert.Equal(t, 400*time.Millisecond, d.Dwell())

	st := d.State()
	assert.Equal(t, GestureRest, st.Confirmed, "initial state should be Idle(rest)")
	assert.False(t, st.Pending)
}

func TestDebounceRestIsNoOp(t *testing.T) {
	d := NewDebouncer(400 * time.Millisecond)

	for i := 0; i < 20; i++ {
		assert.Nil(t, d.Process(GestureRest, at(i*100)), "iteration %d", i)
	}
	assert.False(t, d.State().Pending)
	assert.Equal(t, GestureCounts{}, d.Counts())
}

func TestDebounceSingleTransition(t *testing.T) {
	d := NewDebouncer(400 * time.Millisecond)

	assert.Nil(t, d.Process(GestureOpen, at(0)))
	st := d.State()
	assert.True(t, st.Pending)
	assert.Equal(t, GestureOpen, st.Candidate)
	assert.Equal(t, at(0), st.Since)

	assert.Nil(t, d.Process(GestureOpen, at(200)))

	e := d.Process(GestureOpen, at(400))
	require.NotNil(t, e)
	assert.Equal(t, GestureOpen, e.Gesture)
	assert.Equal(t, at(0), e.Start)
	assert.Equal(t, at(400), e.Confirmed)

	st = d.State()
	assert.Equal(t, GestureOpen, st.Confirmed)
	assert.False(t, st.Pending)
	assert.Equal(t, 1, d.Counts().Open)
}

func TestDebounceDwellBoundary(t *testing.T) {
	dwell := 400 * time.Millisecond

	d := NewDebouncer(dwell)
	d.Process(GestureLeft, t0)
	assert.Nil(t, d.Process(GestureLeft, t0.Add(dwell-time.Millisecond)), "dwell-1ms must not confirm")

	d = NewDebouncer(dwell)
	d.Process(GestureLeft, t0)
	e := d.Process(GestureLeft, t0.Add(dwell))
	require.NotNil(t, e, "exactly dwell must confirm")
	assert.Nil(t, d.Process(GestureLeft, t0.Add(dwell+time.Millisecond)), "confirmed gesture must not re-emit")
	assert.Equal(t, 1, d.Counts().Left)
}

func TestDebounceRepeatedSymbolsEmitOnce(t *testing.T) {
	d := NewDebouncer(300 * time.Millisecond)

	var events []*DebouncedEvent
	for i := 0; i < 50; i++ {
		if e := d.Process(GestureRight, at(i*50)); e != nil {
			events = append(events, e)
		}
	}
	require.Len(t, events, 1)
	assert.Equal(t, GestureRight, events[0].Gesture)
}

func TestDebounceJitterRejected(t *testing.T) {
	d := NewDebouncer(400 * time.Millisecond)

	// Alternating candidates never settle
	gestures := []Gesture{GestureOpen, GestureLeft, GestureOpen, GestureLeft, GestureOpen}
	for i, g := range gestures {
		assert.Nil(t, d.Process(g, at(i*150)), "iteration %d", i)
	}

	// Pending restarted at 600ms, so 900ms is not enough
	assert.Nil(t, d.Process(GestureOpen, at(900)))

	e := d.Process(GestureOpen, at(1000))
	require.NotNil(t, e)
	assert.Equal(t, at(600), e.Start)
	assert.Equal(t, 4, d.Rejected())
}

func TestDebounceBounceBackToConfirmed(t *testing.T) {
	d := NewDebouncer(400 * time.Millisecond)

	d.Process(GestureOpen, at(0))
	d.Process(GestureRest, at(100))

	// Would have confirmed had the candidate survived
	assert.Nil(t, d.Process(GestureOpen, at(400)))
	assert.Equal(t, GestureRest, d.State().Confirmed)
}

func TestDebounceBackToBack(t *testing.T) {
	d := NewDebouncer(400 * time.Millisecond)

	d.Process(GestureOpen, at(0))
	e1 := d.Process(GestureOpen, at(400))
	require.NotNil(t, e1)

	d.Process(GestureRest, at(500))
	e2 := d.Process(GestureRest, at(900))
	require.NotNil(t, e2)
	assert.Equal(t, GestureRest, e2.Gesture)
	assert.True(t, e2.Confirmed.After(e1.Confirmed))
	assert.Equal(t, GestureCounts{Rest: 1, Open: 1}, d.Counts())
}

func TestDebounceUnknownCancelsCandidate(t *testing.T) {
	d := NewDebouncer(400 * time.Millisecond)

	d.Process(GestureOpen, at(0))
	assert.Nil(t, d.Process(GestureUnknown, at(200)))
	assert.False(t, d.State().Pending)

	// Candidate restarts from scratch
	assert.Nil(t, d.Process(GestureOpen, at(300)))
	assert.Nil(t, d.Process(GestureOpen, at(600)))
	assert.NotNil(t, d.Process(GestureOpen, at(700)))

	// Unknown is never confirmed
	for i := 0; i < 10; i++ {
		assert.Nil(t, d.Process(GestureUnknown, at(800+i*100)))
	}
	assert.Equal(t, GestureOpen, d.State().Confirmed)
}

func TestDebounceIgnoresOutOfOrderTime(t *testing.T) {
	d := NewDebouncer(400 * time.Millisecond)

	d.Process(GestureOpen, at(1000))
	assert.Nil(t, d.Process(GestureLeft, at(500)), "earlier timestamp is ignored")
	assert.Nil(t, d.Process(GestureLeft, at(1000)), "equal timestamp is ignored")
	assert.Equal(t, GestureOpen, d.State().Candidate)

	e := d.Process(GestureOpen, at(1400))
	require.NotNil(t, e)
	assert.Equal(t, GestureOpen, e.Gesture)
}

func TestDebounceMonotonicEvents(t *testing.T) {
	d := NewDebouncer(100 * time.Millisecond)
	seq := []Gesture{GestureOpen, GestureRest, GestureLeft, GestureRest, GestureRight, GestureRight, GestureOpen}

	var last time.Time
	ms := 0
	for _, g := range seq {
		for i := 0; i < 5; i++ {
			if e := d.Process(g, at(ms)); e != nil {
				assert.True(t, e.Confirmed.After(last), "confirmed times must increase")
				last = e.Confirmed
			}
			ms += 50
		}
	}
	assert.Equal(t, GestureCounts{Rest: 2, Open: 2, Left: 1, Right: 1}, d.Counts())
}

func TestDebounceReset(t *testing.T) {
	d := NewDebouncer(400 * time.Millisecond)
	d.Process(GestureOpen, at(0))
	d.Process(GestureOpen, at(400))
	d.Process(GestureLeft, at(500))

	d.Reset()

	st := d.State()
	assert.Equal(t, GestureRest, st.Confirmed)
	assert.False(t, st.Pending)
	assert.Equal(t, 1, d.Counts().Open, "counts survive reset")

	// Time ordering restarts after reset
	assert.Nil(t, d.Process(GestureLeft, at(100)))
	assert.True(t, d.State().Pending)
}
