package logic

import "time"

// DefaultDwell is how long a gesture must be held before it is confirmed.
const DefaultDwell = 400 * time.Millisecond

// DebounceState is a snapshot of the debouncer's state machine.
type DebounceState struct {
	// Current confirmed gesture
	Confirmed Gesture
	// Whether a candidate is pending
	Pending bool
	// Candidate gesture awaiting the dwell time
	Candidate Gesture
	// Time when the candidate was first observed
	Since time.Time
}

// Debouncer confirms gestures that persist for at least the dwell time.
// It starts idle with rest confirmed. Not safe for concurrent use.
type Debouncer struct {
	dwell    time.Duration
	state    DebounceState
	last     time.Time
	counts   GestureCounts
	rejected int
}

// NewDebouncer creates a Debouncer with the given dwell time.
func NewDebouncer(dwell time.Duration) *Debouncer {
	return &Debouncer{
		dwell: dwell,
		state: DebounceState{Confirmed: GestureRest},
	}
}

// Process takes the next classified gesture and returns an event if a new
// gesture has been confirmed, nil otherwise.
func (d *Debouncer) Process(g Gesture, now time.Time) *DebouncedEvent {
	// Out-of-order or duplicate timestamps would break event ordering
	if !d.last.IsZero() && !now.After(d.last) {
		return nil
	}
	d.last = now

	st := &d.state

	// Sensor fault: drop any candidate, never confirm
	if g == GestureUnknown {
		if st.Pending {
			d.rejected++
		}
		st.Pending = false
		return nil
	}

	// No change from confirmed gesture, clear any pending
	if g == st.Confirmed {
		if st.Pending {
			d.rejected++
		}
		st.Pending = false
		return nil
	}

	// Differs from confirmed
	if !st.Pending || st.Candidate != g {
		if st.Pending {
			d.rejected++
		}
		st.Pending = true
		st.Candidate = g
		st.Since = now
		return nil
	}

	// Same candidate, check dwell
	if now.Sub(st.Since) >= d.dwell {
		event := &DebouncedEvent{
			Gesture:   g,
			Start:     st.Since,
			Confirmed: now,
		}
		st.Confirmed = g
		st.Pending = false
		d.counts.add(g)
		return event
	}

	return nil
}

// Reset returns the debouncer to idle with rest confirmed.
// Counts survive a reset; they cover the whole session.
func (d *Debouncer) Reset() {
	d.state = DebounceState{Confirmed: GestureRest}
	d.last = time.Time{}
}

// State returns the current state machine snapshot.
func (d *Debouncer) State() DebounceState {
	return d.state
}

// Dwell returns the configured dwell time.
func (d *Debouncer) Dwell() time.Duration {
	return d.dwell
}

// Counts returns confirmed events per gesture.
func (d *Debouncer) Counts() GestureCounts {
	return d.counts
}

// Rejected returns how many candidates were abandoned before their dwell elapsed.
func (d *Debouncer) Rejected() int {
	return d.rejected
}
