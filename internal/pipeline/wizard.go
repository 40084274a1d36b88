package pipeline

import (
	"time"

	log "github.com/echocat/slf4g"

	"github.com/sweeney/jawtalk/internal/logic"
)

// CalibrationUpdate reports progress of the guided calibration.
type CalibrationUpdate struct {
	// Step is the gesture whose capture just ended.
	Step logic.Gesture
	// Next is the gesture captured next; GestureUnknown once done.
	Next    logic.Gesture
	Done    bool
	Profile *logic.Profile
	// Err is set when the step failed and will be captured again.
	Err error
}

// wizard walks the calibration gestures in order, capturing live readings
// for a fixed hold time per gesture.
type wizard struct {
	hold   time.Duration
	settle time.Duration

	step        int
	window      []logic.Reading
	started     time.Time
	settleUntil time.Time
}

func newWizard(hold, settle time.Duration) *wizard {
	return &wizard{hold: hold, settle: settle}
}

func (w *wizard) current() logic.Gesture {
	if w.step >= len(logic.CalibrationGestures) {
		return logic.GestureUnknown
	}
	return logic.CalibrationGestures[w.step]
}

// observe adds r to the current capture window. It returns the window once
// the hold time has been covered.
func (w *wizard) observe(r logic.Reading) ([]logic.Reading, bool) {
	if !w.settleUntil.IsZero() {
		if r.Time.Before(w.settleUntil) {
			return nil, false
		}
		w.settleUntil = time.Time{}
	}
	if w.started.IsZero() {
		w.started = r.Time
	}
	w.window = append(w.window, r)
	if r.Time.Sub(w.started) < w.hold {
		return nil, false
	}

	window := w.window
	w.window = nil
	w.started = time.Time{}
	w.settleUntil = r.Time.Add(w.settle)
	return window, true
}

// skipRecorded moves past gestures recorded through RecordSample.
func (w *wizard) skipRecorded(c *logic.Calibrator) {
	for w.step < len(logic.CalibrationGestures) && c.Recorded(w.current()) {
		w.step++
		w.window = nil
		w.started = time.Time{}
	}
}

func (s *Session) captureLocked(r logic.Reading) *CalibrationUpdate {
	w := s.wizard
	step := w.current()
	if step == logic.GestureUnknown {
		// Every gesture recorded through RecordSample; waiting for finalize
		return nil
	}

	window, full := w.observe(r)
	if !full {
		return nil
	}

	upd := &CalibrationUpdate{Step: step, Next: step}
	if err := s.calibrator.RecordSample(step, window); err != nil {
		log.WithError(err).With("gesture", step).Warn("Calibration step failed, capturing again.")
		upd.Err = err
		return upd
	}
	w.skipRecorded(s.calibrator)
	upd.Next = w.current()
	log.With("gesture", step).With("readings", len(window)).Info("Calibration step recorded.")

	if upd.Next != logic.GestureUnknown {
		return upd
	}

	p, err := s.finalizeLocked(r.Time)
	if err != nil {
		upd.Err = err
		return upd
	}
	upd.Done = true
	upd.Profile = p
	return upd
}
