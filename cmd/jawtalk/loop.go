package main

import (
	"errors"
	"os"
	"syscall"
	"time"

	log "github.com/echocat/slf4g"

	"github.com/sweeney/jawtalk/internal/gpio"
	"github.com/sweeney/jawtalk/internal/logic"
	"github.com/sweeney/jawtalk/internal/mqtt"
	"github.com/sweeney/jawtalk/internal/pipeline"
	"github.com/sweeney/jawtalk/internal/speech"
	"github.com/sweeney/jawtalk/internal/status"
	"github.com/sweeney/jawtalk/internal/web"
)

// loop holds the collaborators of runLoop. publisher, mqttStatus, hub,
// button and requests are optional.
type loop struct {
	session    *pipeline.Session
	queue      *pipeline.Queue
	publisher  mqtt.Publisher
	mqttStatus mqtt.ConnectionStatus
	speaker    *speech.Speaker
	tracker    *status.Tracker
	hub        *web.Hub
	button     gpio.Button
	requests   <-chan time.Time
	heartbeat  time.Duration
	now        func() time.Time
	tick       <-chan time.Time
	sig        <-chan os.Signal

	// Timestamp of the newest processed reading and the wall time it was
	// drained, used to run sequence deadlines on the acquisition clock.
	lastReading time.Time
	drainedAt   time.Time
}

// runLoop is the single consumer of the reading queue. It returns after a
// signal, once the queue has been drained and SHUTDOWN published.
func runLoop(l loop) error {
	startTime := l.now()
	lastHeartbeat := startTime

	l.refreshStatus()
	l.publishSystem(startTime, "STARTUP", "", true)

	var presses <-chan time.Time
	if l.button != nil {
		presses = l.button.Presses()
	}

	for {
		select {
		case s := <-l.sig:
			log.With("signal", s).Info("Shutting down.")
			l.drain()
			signalName := "UNKNOWN"
			if s == syscall.SIGINT {
				signalName = "SIGINT"
			} else if s == syscall.SIGTERM {
				signalName = "SIGTERM"
			}
			l.refreshStatus()
			l.publishSystem(l.now(), "SHUTDOWN", signalName, true)
			return nil

		case <-l.queue.Ready():
			l.drain()
			l.refreshStatus()

		case t, ok := <-presses:
			if !ok {
				presses = nil
				continue
			}
			l.recalibrate(t, "button")

		case t := <-l.requests:
			l.recalibrate(t, "web")

		case <-l.tick:
			t := l.now()
			if l.session.Tick(l.readingTime(t)) {
				log.Debug("Partial sequence timed out.")
			}
			l.refreshStatus()
			if l.heartbeat > 0 && t.Sub(lastHeartbeat) >= l.heartbeat {
				lastHeartbeat = t
				st := l.session.Stats()
				log.With("readings", st.Readings).
					With("phrases", st.Phrases).
					With("dropped", l.queue.Dropped()).
					Info("Heartbeat.")
				l.publishSystem(t, "HEARTBEAT", "", false)
			}
		}
	}
}

func (l *loop) drain() {
	readings := l.queue.Drain()
	if len(readings) == 0 {
		return
	}
	for _, r := range readings {
		l.dispatch(l.session.Process(r))
	}
	if last := readings[len(readings)-1].Time; last.After(l.lastReading) {
		l.lastReading = last
		l.drainedAt = l.now()
	}
}

// readingTime translates wall time onto the acquisition clock: the newest
// reading's timestamp plus the wall time since it was drained. Before any
// reading it is the wall time itself.
func (l *loop) readingTime(wall time.Time) time.Time {
	if l.lastReading.IsZero() {
		return wall
	}
	return l.lastReading.Add(wall.Sub(l.drainedAt))
}

func (l *loop) recalibrate(t time.Time, origin string) {
	log.With("origin", origin).Info("Recalibration requested.")
	l.session.Recalibrate()
	if l.hub != nil {
		_, step := l.session.Calibrating()
		l.hub.Broadcast(web.CalibrationMessage(step, false, t))
	}
	l.refreshStatus()
}

// dispatch sends one result to the outputs. Output failures are logged and
// never stop the loop.
func (l *loop) dispatch(res pipeline.Result) {
	if u := res.Calibration; u != nil {
		l.calibrationProgress(res.Reading.Time, u)
	}

	if ev := res.Event; ev != nil {
		log.With("gesture", ev.Gesture).
			With("held", ev.Confirmed.Sub(ev.Start)).
			Debug("Gesture confirmed.")
	}

	if p := res.Phrase; p != nil {
		log.With("phrase", p.Text).With("gestures", logic.FormatSequence(p.Gestures)).Info("Phrase recognized.")
		l.tracker.SetLastPhrase(*p)
		l.speaker.Say(p.Text)
		if l.hub != nil {
			l.hub.Broadcast(web.PhraseMessage(*p))
		}
		if l.publisher != nil {
			if err := l.publisher.PublishPhrase(l.session.ID(), *p); err != nil {
				log.WithError(err).Warn("Cannot publish phrase.")
			}
		}
	}

	var unrecognized *logic.UnrecognizedSequenceError
	switch {
	case res.Err == nil:
	case errors.As(res.Err, &unrecognized):
		log.With("gestures", logic.FormatSequence(unrecognized.Gestures)).Info("Sequence not recognized, discarded.")
		if l.hub != nil {
			l.hub.Broadcast(web.UnrecognizedMessage(unrecognized))
		}
		if l.publisher != nil {
			if err := l.publisher.PublishUnrecognized(l.session.ID(), unrecognized); err != nil {
				log.WithError(err).Warn("Cannot publish unrecognized sequence.")
			}
		}
	}
}

func (l *loop) calibrationProgress(at time.Time, u *pipeline.CalibrationUpdate) {
	if u.Err != nil {
		// The step is captured again; the session has logged the cause
		return
	}
	if l.hub != nil {
		l.hub.Broadcast(web.CalibrationMessage(u.Next, u.Done, at))
	}
	if !u.Done {
		return
	}
	l.refreshStatus()
	l.publishSystem(at, "CALIBRATED", "", true)
}

func (l *loop) refreshStatus() {
	l.tracker.Update(status.FromSession(l.session, l.queue))
	l.tracker.SetSpeech(l.speaker.Enabled(), l.speaker.Backend())
	if l.mqttStatus != nil {
		l.tracker.SetMQTTConnected(l.mqttStatus.IsConnected())
	}
}

// publishSystem publishes a system event carrying a full status snapshot.
func (l *loop) publishSystem(at time.Time, event, reason string, retained bool) {
	if l.publisher == nil {
		return
	}
	snap := l.tracker.Snapshot()
	err := l.publisher.PublishSystem(mqtt.SystemEvent{
		Timestamp:  at,
		Event:      event,
		Reason:     reason,
		Retained:   retained,
		RawPayload: status.FormatStatusEvent(snap, event, reason),
	})
	if err != nil {
		log.WithError(err).With("event", event).Warn("Cannot publish system event.")
		return
	}
	log.With("event", event).Debug("Published system event.")
}
