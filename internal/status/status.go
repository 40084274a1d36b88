// Package status provides a thread-safe status tracker for the jawtalk daemon.
// It is read by the HTTP handlers and the heartbeat publisher.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/jawtalk/internal/logic"
	"github.com/sweeney/jawtalk/internal/pipeline"
)

// Config contains daemon configuration for display.
type Config struct {
	Device            string
	Source            string
	DwellMs           int64
	SequenceTimeoutMs int64
	HeartbeatMs       int64
	RestDeadZone      float64
	ValidRange        logic.Range
	Broker            string
	HTTPAddr          string
}

// Pipeline is the session state copied into the tracker after each batch.
type Pipeline struct {
	Calibrated      bool
	Calibrating     bool
	CalibrationStep logic.Gesture
	Profile         *logic.Profile
	LastGesture     logic.Gesture
	Pending         []logic.Gesture
	Stats           pipeline.Stats
	Dropped         uint64
}

// FromSession reads the current state of s and q.
func FromSession(s *pipeline.Session, q *pipeline.Queue) Pipeline {
	calibrating, step := s.Calibrating()
	p := Pipeline{
		Profile:         s.Profile(),
		Calibrating:     calibrating,
		CalibrationStep: step,
		LastGesture:     s.LastGesture(),
		Pending:         s.Pending(),
		Stats:           s.Stats(),
	}
	p.Calibrated = p.Profile != nil
	if q != nil {
		p.Dropped = q.Dropped()
	}
	return p
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type and safe to use after the lock is released.
type Snapshot struct {
	Session string
	Pipeline
	LastPhrase    *logic.Phrase
	SpeechEnabled bool
	SpeechBackend string
	MQTTConnected bool
	StartTime     time.Time
	Now           time.Time
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given session id, start time and config.
func NewTracker(session string, startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			Session:   session,
			StartTime: startTime,
			Config:    cfg,
			Pipeline:  Pipeline{LastGesture: logic.GestureUnknown},
		},
	}
}

// Update replaces the pipeline state.
// Called from runLoop after every drained batch.
func (t *Tracker) Update(p Pipeline) {
	t.mu.Lock()
	t.snap.Pipeline = p
	t.mu.Unlock()
}

// SetLastPhrase records the most recent phrase.
func (t *Tracker) SetLastPhrase(p logic.Phrase) {
	t.mu.Lock()
	t.snap.LastPhrase = &p
	t.mu.Unlock()
}

// SetSpeech sets the speech output state.
func (t *Tracker) SetSpeech(enabled bool, backend string) {
	t.mu.Lock()
	t.snap.SpeechEnabled = enabled
	t.snap.SpeechBackend = backend
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	s.Pending = append([]logic.Gesture(nil), t.snap.Pending...)
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
