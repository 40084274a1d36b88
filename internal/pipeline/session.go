// Package pipeline runs one gesture session: it owns the active calibration
// profile and drives readings through classification, debouncing and
// phrase mapping in strict arrival order.
package pipeline

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/echocat/slf4g"
	"github.com/google/uuid"

	"github.com/sweeney/jawtalk/internal/logic"
)

// Calibration capture defaults. Each gesture is held for HoldDuration after
// a SettleDuration gap that lets the user change position.
const (
	DefaultHoldDuration   = 3 * time.Second
	DefaultSettleDuration = 500 * time.Millisecond
)

var (
	// ErrCalibrating is returned when an operation needs the session idle.
	ErrCalibrating = errors.New("calibration in progress")
	// ErrNotCalibrating is returned by calibration calls outside a calibration.
	ErrNotCalibrating = errors.New("no calibration in progress")
)

// Config holds the session's tunables.
type Config struct {
	Dwell             time.Duration
	SequenceTimeout   time.Duration
	RestDeadZone      float64
	ValidRange        logic.Range
	MaxSequenceLength int
	HoldDuration      time.Duration
	SettleDuration    time.Duration
	TrimFraction      float64
	Phrases           logic.Mapping
}

// DefaultConfig returns the built-in session settings.
func DefaultConfig() Config {
	return Config{
		Dwell:             logic.DefaultDwell,
		SequenceTimeout:   logic.DefaultSequenceTimeout,
		RestDeadZone:      logic.DefaultRestDeadZone,
		ValidRange:        logic.DefaultRange,
		MaxSequenceLength: logic.DefaultMaxSequenceLength,
		HoldDuration:      DefaultHoldDuration,
		SettleDuration:    DefaultSettleDuration,
		TrimFraction:      logic.DefaultTrimFraction,
		Phrases:           logic.DefaultMapping(),
	}
}

// Result describes what one reading produced.
type Result struct {
	Reading logic.Reading
	// Gesture is GestureUnknown for faulty readings and while calibrating.
	Gesture logic.Gesture
	Event   *logic.DebouncedEvent
	Phrase  *logic.Phrase
	// Err is ErrNoProfile, ErrSensorOutOfRange or an
	// *logic.UnrecognizedSequenceError. None of them are fatal.
	Err error
	// Calibration is set when the reading advanced the guided calibration.
	Calibration *CalibrationUpdate
}

// Stats counts what the session has seen since it started.
type Stats struct {
	Readings     int
	OutOfRange   int
	Unclassified int
	Events       int
	Phrases      int
	Unrecognized int
	Abandoned    int
	Rejected     int
	Counts       logic.GestureCounts
}

// Session is a single pipeline instance. Methods are safe for concurrent
// use; readings are processed one at a time to completion.
type Session struct {
	id         string
	cfg        Config
	classifier logic.Classifier
	profile    atomic.Pointer[logic.Profile]

	mu         sync.Mutex
	debouncer  *logic.Debouncer
	mapper     *logic.PhraseMapper
	calibrator *logic.Calibrator
	wizard     *wizard
	last       logic.Gesture
	faulty     bool
	stats      Stats
}

// NewSession validates cfg and creates an uncalibrated session.
func NewSession(cfg Config) (*Session, error) {
	if cfg.Dwell <= 0 {
		return nil, fmt.Errorf("dwell must be positive, got %v", cfg.Dwell)
	}
	if cfg.SequenceTimeout <= 0 {
		return nil, fmt.Errorf("sequence timeout must be positive, got %v", cfg.SequenceTimeout)
	}
	if cfg.HoldDuration <= 0 {
		cfg.HoldDuration = DefaultHoldDuration
	}
	mapper, err := logic.NewPhraseMapper(cfg.Phrases, cfg.SequenceTimeout, cfg.MaxSequenceLength)
	if err != nil {
		return nil, fmt.Errorf("phrase mapping: %w", err)
	}

	return &Session{
		id:         uuid.NewString(),
		cfg:        cfg,
		classifier: logic.NewClassifier(cfg.ValidRange, cfg.RestDeadZone),
		debouncer:  logic.NewDebouncer(cfg.Dwell),
		mapper:     mapper,
		last:       logic.GestureUnknown,
	}, nil
}

// ID identifies the session on published events.
func (s *Session) ID() string {
	return s.id
}

// Config returns the session settings.
func (s *Session) Config() Config {
	return s.cfg
}

// Profile returns the active profile, nil before the first calibration.
func (s *Session) Profile() *logic.Profile {
	return s.profile.Load()
}

// Process runs one reading through the pipeline.
func (s *Session) Process(r logic.Reading) Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stats.Readings++
	res := Result{Reading: r, Gesture: logic.GestureUnknown}

	if s.calibrator != nil {
		res.Calibration = s.captureLocked(r)
		return res
	}

	// Loaded once so a concurrent swap never mixes two profiles
	p := s.profile.Load()
	g, err := s.classifier.Classify(r, p)
	switch {
	case errors.Is(err, logic.ErrNoProfile):
		s.stats.Unclassified++
		res.Err = err
		return res
	case errors.Is(err, logic.ErrSensorOutOfRange):
		s.stats.OutOfRange++
		if !s.faulty {
			log.WithError(err).Warn("Sensor reading out of range.")
			s.faulty = true
		}
		res.Err = err
	case err != nil:
		res.Err = err
		return res
	default:
		if s.faulty {
			log.Info("Sensor readings back in range.")
			s.faulty = false
		}
	}
	res.Gesture = g
	s.last = g

	ev := s.debouncer.Process(g, r.Time)
	if ev == nil {
		return res
	}
	s.stats.Events++
	res.Event = ev

	phrase, err := s.mapper.Feed(*ev)
	switch {
	case phrase != nil:
		s.stats.Phrases++
		res.Phrase = phrase
	case errors.Is(err, logic.ErrUnrecognizedSequence):
		s.stats.Unrecognized++
		res.Err = err
	}
	return res
}

// Tick abandons an expired partial sequence. Call it periodically.
func (s *Session) Tick(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mapper.Tick(now)
}

// StartCalibration begins a guided calibration. Live classification pauses
// until FinalizeCalibration succeeds or the calibration is cancelled; the
// previous profile stays active for Profile() callers meanwhile.
func (s *Session) StartCalibration() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.calibrator != nil {
		return ErrCalibrating
	}
	s.startCalibrationLocked()
	return nil
}

// Recalibrate discards any calibration in progress and starts a new one.
func (s *Session) Recalibrate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.startCalibrationLocked()
}

func (s *Session) startCalibrationLocked() {
	s.flushLocked()
	s.calibrator = logic.NewCalibrator(s.cfg.ValidRange, logic.CalibrationOptions{TrimFraction: s.cfg.TrimFraction})
	s.wizard = newWizard(s.cfg.HoldDuration, s.cfg.SettleDuration)
	log.With("session", s.id).Info("Calibration started.")
}

// RecordSample stores a caller-supplied calibration window for kind.
func (s *Session) RecordSample(kind logic.Gesture, window []logic.Reading) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.calibrator == nil {
		return ErrNotCalibrating
	}
	if err := s.calibrator.RecordSample(kind, window); err != nil {
		return err
	}
	s.wizard.skipRecorded(s.calibrator)
	return nil
}

// FinalizeCalibration builds the profile and makes it active. On
// ErrIncompleteProfile the calibration stays open.
func (s *Session) FinalizeCalibration(now time.Time) (*logic.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finalizeLocked(now)
}

func (s *Session) finalizeLocked(now time.Time) (*logic.Profile, error) {
	if s.calibrator == nil {
		return nil, ErrNotCalibrating
	}
	p, err := s.calibrator.Finalize(now)
	if err != nil {
		return nil, err
	}
	s.swapLocked(p)
	log.With("session", s.id).
		With("rest", p.RestBaseline).
		With("open", p.OpenThreshold).
		With("left", p.LeftThreshold).
		With("right", p.RightThreshold).
		Info("Calibration complete.")
	return p, nil
}

// CancelCalibration abandons a calibration in progress and resumes with
// the previous profile, if any.
func (s *Session) CancelCalibration() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.calibrator == nil {
		return ErrNotCalibrating
	}
	s.calibrator = nil
	s.wizard = nil
	s.flushLocked()
	return nil
}

// UseProfile activates an existing profile, for example one restored by a
// collaborator. It fails while a calibration is in progress.
func (s *Session) UseProfile(p *logic.Profile) error {
	if p == nil {
		return logic.ErrNoProfile
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.calibrator != nil {
		return ErrCalibrating
	}
	s.swapLocked(p)
	return nil
}

func (s *Session) swapLocked(p *logic.Profile) {
	s.profile.Store(p)
	s.calibrator = nil
	s.wizard = nil
	s.flushLocked()
}

// Reset flushes debounce and phrase state, as at session end.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flushLocked()
}

func (s *Session) flushLocked() {
	s.debouncer.Reset()
	s.mapper.Reset()
	s.last = logic.GestureUnknown
	s.faulty = false
}

// Calibrating reports whether a calibration is running and which gesture
// the guided capture is waiting for.
func (s *Session) Calibrating() (bool, logic.Gesture) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.calibrator == nil {
		return false, logic.GestureUnknown
	}
	return true, s.wizard.current()
}

// LastGesture returns the most recent classification.
func (s *Session) LastGesture() logic.Gesture {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// Pending returns the partial gesture sequence awaiting completion.
func (s *Session) Pending() []logic.Gesture {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mapper.Pending()
}

// Stats returns a copy of the session counters.
func (s *Session) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.stats
	st.Abandoned = s.mapper.Abandoned()
	st.Rejected = s.debouncer.Rejected()
	st.Counts = s.debouncer.Counts()
	return st
}
