// Package mqtt publishes phrases and system events to MQTT and subscribes to
// the acquisition node's readings, with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sweeney/jawtalk/internal/logic"
)

// TopicPrefix is the root of every topic the daemon uses.
const TopicPrefix = "jawtalk"

// Topics are the per-device MQTT topics.
type Topics struct {
	Phrases      string
	Unrecognized string
	System       string
	Readings     string
}

// NewTopics returns the topics for device.
func NewTopics(device string) Topics {
	root := TopicPrefix + "/" + device
	return Topics{
		Phrases:      root + "/phrases",
		Unrecognized: root + "/unrecognized",
		System:       root + "/system",
		Readings:     root + "/readings",
	}
}

// Publisher publishes pipeline output to MQTT.
type Publisher interface {
	// PublishPhrase sends a finalized phrase.
	// Returns error if publishing fails (should not crash the process).
	PublishPhrase(session string, phrase logic.Phrase) error

	// PublishUnrecognized sends a discarded gesture sequence for diagnostics.
	PublishUnrecognized(session string, seq *logic.UnrecognizedSequenceError) error

	// PublishSystem sends a system lifecycle event.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT", "CALIBRATED"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// PhrasePayload is the message published for each phrase.
type PhrasePayload struct {
	Phrase PhraseInner `json:"phrase"`
}

// PhraseInner contains the phrase details.
type PhraseInner struct {
	Timestamp string          `json:"timestamp"`
	Session   string          `json:"session"`
	Text      string          `json:"text"`
	Gestures  []logic.Gesture `json:"gestures"`
}

// FormatPhrasePayload creates the JSON payload for a phrase.
func FormatPhrasePayload(session string, p logic.Phrase) ([]byte, error) {
	return json.Marshal(PhrasePayload{
		Phrase: PhraseInner{
			Timestamp: p.Time.UTC().Format(time.RFC3339Nano),
			Session:   session,
			Text:      p.Text,
			Gestures:  p.Gestures,
		},
	})
}

// UnrecognizedPayload is the message published for a discarded sequence.
type UnrecognizedPayload struct {
	Unrecognized UnrecognizedInner `json:"unrecognized"`
}

// UnrecognizedInner contains the discarded sequence.
type UnrecognizedInner struct {
	Timestamp string          `json:"timestamp"`
	Session   string          `json:"session"`
	Gestures  []logic.Gesture `json:"gestures"`
}

// FormatUnrecognizedPayload creates the JSON payload for a discarded sequence.
func FormatUnrecognizedPayload(session string, seq *logic.UnrecognizedSequenceError) ([]byte, error) {
	return json.Marshal(UnrecognizedPayload{
		Unrecognized: UnrecognizedInner{
			Timestamp: seq.Time.UTC().Format(time.RFC3339Nano),
			Session:   session,
			Gestures:  seq.Gestures,
		},
	})
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp,omitempty"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}
	inner := SystemPayloadInner{
		Event:  event.Event,
		Reason: event.Reason,
	}
	if !event.Timestamp.IsZero() {
		inner.Timestamp = event.Timestamp.UTC().Format(time.RFC3339)
	}
	return json.Marshal(SystemPayload{System: inner})
}

// ReadingPayload is what the acquisition node publishes per sample.
type ReadingPayload struct {
	Timestamp string   `json:"timestamp,omitempty"`
	Value     *float64 `json:"value"`
}

// DecodeReading parses a reading message. Both {"timestamp": ..., "value": ...}
// and a bare number are accepted; readings without a timestamp are stamped
// with received.
func DecodeReading(payload []byte, received time.Time) (logic.Reading, error) {
	text := strings.TrimSpace(string(payload))
	if v, err := strconv.ParseFloat(text, 64); err == nil {
		return logic.Reading{Time: received, Value: v}, nil
	}

	var p ReadingPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return logic.Reading{}, fmt.Errorf("decode reading: %w", err)
	}
	if p.Value == nil {
		return logic.Reading{}, fmt.Errorf("decode reading: missing value")
	}
	r := logic.Reading{Time: received, Value: *p.Value}
	if p.Timestamp != "" {
		ts, err := time.Parse(time.RFC3339Nano, p.Timestamp)
		if err != nil {
			return logic.Reading{}, fmt.Errorf("decode reading timestamp: %w", err)
		}
		r.Time = ts
	}
	return r, nil
}
