package status

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/jawtalk/internal/logic"
	"github.com/sweeney/jawtalk/internal/pipeline"
)

var start = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func testConfig() Config {
	return Config{
		Device:      "bedside",
		Source:      "synthetic",
		DwellMs:     400,
		HeartbeatMs: 60000,
		ValidRange:  logic.DefaultRange,
		Broker:      "tcp://localhost:1883",
		HTTPAddr:    ":8080",
	}
}

func TestNewTracker(t *testing.T) {
	tr := NewTracker("sess-1", start, testConfig())

	snap := tr.Snapshot()
	assert.Equal(t, "sess-1", snap.Session)
	assert.True(t, snap.StartTime.Equal(start))
	assert.Equal(t, ":8080", snap.Config.HTTPAddr)
	assert.False(t, snap.Calibrated)
	assert.False(t, snap.MQTTConnected)
	assert.Equal(t, logic.GestureUnknown, snap.LastGesture)
}

func TestUpdateAndSnapshot(t *testing.T) {
	tr := NewTracker("s", start, Config{})
	profile := &logic.Profile{RestBaseline: 50}

	tr.Update(Pipeline{
		Calibrated:  true,
		Profile:     profile,
		LastGesture: logic.GestureOpen,
		Pending:     []logic.Gesture{logic.GestureOpen},
		Stats:       pipeline.Stats{Readings: 10, Phrases: 1},
		Dropped:     2,
	})
	tr.SetLastPhrase(logic.Phrase{Text: "Hello", Time: start})
	tr.SetSpeech(true, "espeak-ng")
	tr.SetMQTTConnected(true)

	snap := tr.Snapshot()
	assert.True(t, snap.Calibrated)
	assert.Same(t, profile, snap.Profile)
	assert.Equal(t, logic.GestureOpen, snap.LastGesture)
	assert.Equal(t, 10, snap.Stats.Readings)
	assert.Equal(t, uint64(2), snap.Dropped)
	require.NotNil(t, snap.LastPhrase)
	assert.Equal(t, "Hello", snap.LastPhrase.Text)
	assert.True(t, snap.SpeechEnabled)
	assert.Equal(t, "espeak-ng", snap.SpeechBackend)
	assert.True(t, snap.MQTTConnected)
}

func TestSnapshotIsCopy(t *testing.T) {
	tr := NewTracker("s", start, Config{})
	tr.Update(Pipeline{Pending: []logic.Gesture{logic.GestureOpen}})

	snap := tr.Snapshot()
	snap.Pending[0] = logic.GestureRight

	assert.Equal(t, logic.GestureOpen, tr.Snapshot().Pending[0])
}

func TestSnapshotUptime(t *testing.T) {
	snap := Snapshot{StartTime: start, Now: start.Add(90 * time.Second)}
	assert.Equal(t, 90*time.Second, snap.Uptime())
}

func TestFromSession(t *testing.T) {
	s, err := pipeline.NewSession(pipeline.DefaultConfig())
	require.NoError(t, err)
	require.NoError(t, s.StartCalibration())

	q := pipeline.NewQueue(1)
	q.Push(logic.Reading{Time: start, Value: 1})
	q.Push(logic.Reading{Time: start, Value: 2})

	p := FromSession(s, q)
	assert.False(t, p.Calibrated)
	assert.True(t, p.Calibrating)
	assert.Equal(t, logic.GestureRest, p.CalibrationStep)
	assert.Equal(t, uint64(1), p.Dropped)
}

func TestFormatJSON(t *testing.T) {
	snap := Snapshot{
		Session: "abc",
		Pipeline: Pipeline{
			Calibrated:  true,
			Profile:     &logic.Profile{RestBaseline: 50, OpenThreshold: 70, LeftThreshold: 35, RightThreshold: 60, CalibratedAt: start},
			LastGesture: logic.GestureLeft,
			Stats:       pipeline.Stats{Readings: 100, Counts: logic.GestureCounts{Open: 2}},
			Dropped:     3,
		},
		LastPhrase:    &logic.Phrase{Text: "Yes", Gestures: []logic.Gesture{logic.GestureLeft, logic.GestureRest}, Time: start},
		MQTTConnected: true,
		StartTime:     start,
		Now:           start.Add(65*time.Second + 400*time.Millisecond),
		Config:        testConfig(),
	}

	var parsed StatusJSON
	require.NoError(t, json.Unmarshal(FormatJSON(snap), &parsed))
	s := parsed.Status

	assert.Empty(t, s.Event)
	assert.Equal(t, "abc", s.Session)
	assert.True(t, s.Ready)
	assert.False(t, s.Calibrating)
	assert.Empty(t, s.CalibrationStep)
	require.NotNil(t, s.Profile)
	assert.Equal(t, 35.0, s.Profile.LeftThreshold)
	assert.Equal(t, logic.GestureLeft, s.LastGesture)
	require.NotNil(t, s.LastPhrase)
	assert.Equal(t, "Yes", s.LastPhrase.Text)
	assert.Equal(t, []logic.Gesture{}, s.Pending)
	assert.Equal(t, int64(65), s.UptimeSeconds)
	assert.Equal(t, "2026-01-01T00:00:00Z", s.StartTime)
	assert.True(t, s.MQTT.Connected)
	assert.Equal(t, "tcp://localhost:1883", s.MQTT.Broker)
	assert.Equal(t, 100, s.Stats.Readings)
	assert.Equal(t, uint64(3), s.Stats.Dropped)
	assert.Equal(t, 2, s.Stats.Gestures["open"])
	assert.Equal(t, "bedside", s.Config.Device)
	assert.Equal(t, 100.0, s.Config.ValidMax)
}

func TestFormatJSONCalibrating(t *testing.T) {
	snap := Snapshot{Pipeline: Pipeline{Calibrating: true, CalibrationStep: logic.GestureLeft}}

	var parsed StatusJSON
	require.NoError(t, json.Unmarshal(FormatJSON(snap), &parsed))
	assert.True(t, parsed.Status.Calibrating)
	assert.Equal(t, "left", parsed.Status.CalibrationStep)
	assert.Nil(t, parsed.Status.Profile)
	assert.Nil(t, parsed.Status.LastPhrase)
}

func TestFormatStatusEvent(t *testing.T) {
	snap := Snapshot{Session: "abc", StartTime: start, Now: start}

	data := FormatStatusEvent(snap, "SHUTDOWN", "SIGTERM")
	var parsed StatusJSON
	require.NoError(t, json.Unmarshal(data, &parsed))
	assert.Equal(t, "SHUTDOWN", parsed.Status.Event)
	assert.Equal(t, "SIGTERM", parsed.Status.Reason)

	assert.NotContains(t, string(FormatStatusEvent(snap, "HEARTBEAT", "")), `"reason"`)
	assert.NotContains(t, string(data), "\n", "events are compact")
}

func TestConcurrentAccess(t *testing.T) {
	tr := NewTracker("s", time.Now(), Config{})
	var wg sync.WaitGroup

	// Writer
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			tr.Update(Pipeline{Stats: pipeline.Stats{Readings: i}, Pending: []logic.Gesture{logic.GestureOpen}})
			tr.SetMQTTConnected(i%2 == 0)
			tr.SetLastPhrase(logic.Phrase{Text: "Hello"})
		}
	}()

	// Reader
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			snap := tr.Snapshot()
			_ = snap.Uptime()
			_ = FormatJSON(snap)
		}
	}()

	wg.Wait()
}
