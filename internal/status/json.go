package status

import (
	"encoding/json"
	"time"

	"github.com/sweeney/jawtalk/internal/logic"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event           string          `json:"event,omitempty"`
	Reason          string          `json:"reason,omitempty"`
	Session         string          `json:"session"`
	Ready           bool            `json:"ready"`
	Calibrating     bool            `json:"calibrating"`
	CalibrationStep string          `json:"calibration_step,omitempty"`
	Profile         *ProfileJSON    `json:"profile,omitempty"`
	LastGesture     logic.Gesture   `json:"last_gesture"`
	LastPhrase      *PhraseJSON     `json:"last_phrase,omitempty"`
	Pending         []logic.Gesture `json:"pending"`
	UptimeSeconds   int64           `json:"uptime_seconds"`
	StartTime       string          `json:"start_time"`
	Timestamp       string          `json:"timestamp"`
	MQTT            MQTTStatus      `json:"mqtt"`
	Speech          SpeechStatus    `json:"speech"`
	Stats           StatsJSON       `json:"stats"`
	Config          ConfigJSON      `json:"config"`
}

// ProfileJSON is the JSON representation of the active calibration.
type ProfileJSON struct {
	RestBaseline   float64 `json:"rest_baseline"`
	OpenThreshold  float64 `json:"open_threshold"`
	LeftThreshold  float64 `json:"left_threshold"`
	RightThreshold float64 `json:"right_threshold"`
	CalibratedAt   string  `json:"calibrated_at"`
}

// PhraseJSON is the JSON representation of a phrase.
type PhraseJSON struct {
	Text      string          `json:"text"`
	Gestures  []logic.Gesture `json:"gestures"`
	Timestamp string          `json:"timestamp"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// SpeechStatus reports speech output state.
type SpeechStatus struct {
	Enabled bool   `json:"enabled"`
	Backend string `json:"backend"`
}

// StatsJSON is the JSON representation of session counters.
type StatsJSON struct {
	Readings     int            `json:"readings"`
	Dropped      uint64         `json:"dropped"`
	OutOfRange   int            `json:"out_of_range"`
	Unclassified int            `json:"unclassified"`
	Events       int            `json:"events"`
	Rejected     int            `json:"rejected"`
	Phrases      int            `json:"phrases"`
	Unrecognized int            `json:"unrecognized"`
	Abandoned    int            `json:"abandoned"`
	Gestures     map[string]int `json:"gestures"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	Device            string  `json:"device"`
	Source            string  `json:"source"`
	DwellMs           int64   `json:"dwell_ms"`
	SequenceTimeoutMs int64   `json:"sequence_timeout_ms"`
	HeartbeatMs       int64   `json:"heartbeat_ms"`
	RestDeadZone      float64 `json:"rest_dead_zone"`
	ValidMin          float64 `json:"valid_min"`
	ValidMax          float64 `json:"valid_max"`
	Broker            string  `json:"broker"`
	HTTPAddr          string  `json:"http_addr"`
}

func buildInner(snap Snapshot) StatusInner {
	inner := StatusInner{
		Session:       snap.Session,
		Ready:         snap.Calibrated,
		Calibrating:   snap.Calibrating,
		LastGesture:   snap.LastGesture,
		Pending:       snap.Pending,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Speech:        SpeechStatus{Enabled: snap.SpeechEnabled, Backend: snap.SpeechBackend},
		Stats: StatsJSON{
			Readings:     snap.Stats.Readings,
			Dropped:      snap.Dropped,
			OutOfRange:   snap.Stats.OutOfRange,
			Unclassified: snap.Stats.Unclassified,
			Events:       snap.Stats.Events,
			Rejected:     snap.Stats.Rejected,
			Phrases:      snap.Stats.Phrases,
			Unrecognized: snap.Stats.Unrecognized,
			Abandoned:    snap.Stats.Abandoned,
			Gestures: map[string]int{
				logic.GestureRest.String():  snap.Stats.Counts.Rest,
				logic.GestureOpen.String():  snap.Stats.Counts.Open,
				logic.GestureLeft.String():  snap.Stats.Counts.Left,
				logic.GestureRight.String(): snap.Stats.Counts.Right,
			},
		},
		Config: ConfigJSON{
			Device:            snap.Config.Device,
			Source:            snap.Config.Source,
			DwellMs:           snap.Config.DwellMs,
			SequenceTimeoutMs: snap.Config.SequenceTimeoutMs,
			HeartbeatMs:       snap.Config.HeartbeatMs,
			RestDeadZone:      snap.Config.RestDeadZone,
			ValidMin:          snap.Config.ValidRange.Min,
			ValidMax:          snap.Config.ValidRange.Max,
			Broker:            snap.Config.Broker,
			HTTPAddr:          snap.Config.HTTPAddr,
		},
	}
	if inner.Pending == nil {
		inner.Pending = []logic.Gesture{}
	}
	if snap.Calibrating {
		inner.CalibrationStep = snap.CalibrationStep.String()
	}
	if p := snap.Profile; p != nil {
		inner.Profile = &ProfileJSON{
			RestBaseline:   p.RestBaseline,
			OpenThreshold:  p.OpenThreshold,
			LeftThreshold:  p.LeftThreshold,
			RightThreshold: p.RightThreshold,
			CalibratedAt:   p.CalibratedAt.UTC().Format(time.RFC3339),
		}
	}
	if p := snap.LastPhrase; p != nil {
		inner.LastPhrase = &PhraseJSON{
			Text:      p.Text,
			Gestures:  p.Gestures,
			Timestamp: p.Time.UTC().Format(time.RFC3339Nano),
		}
	}
	return inner
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
