// Command jawtalk turns jaw-position readings into spoken and displayed
// phrases, publishing them to MQTT.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	log "github.com/echocat/slf4g"
	"github.com/echocat/slf4g/native"
	"github.com/echocat/slf4g/native/facade/value"
	"github.com/echocat/slf4g/native/formatter"

	"github.com/sweeney/jawtalk/internal/config"
	"github.com/sweeney/jawtalk/internal/gpio"
	"github.com/sweeney/jawtalk/internal/logic"
	"github.com/sweeney/jawtalk/internal/mqtt"
	"github.com/sweeney/jawtalk/internal/pipeline"
	"github.com/sweeney/jawtalk/internal/source"
	"github.com/sweeney/jawtalk/internal/speech"
	"github.com/sweeney/jawtalk/internal/status"
	"github.com/sweeney/jawtalk/internal/web"
)

const (
	sourceSynthetic = "synthetic"
	sourceMQTT      = "mqtt"
)

type options struct {
	configFile  string
	broker      string
	device      string
	source      string
	interval    time.Duration
	httpAddr    string
	heartbeat   time.Duration
	tick        time.Duration
	buttonPin   int
	speech      bool
	printConfig bool
}

func main() {
	lv := value.NewProvider(native.DefaultProvider)
	lv.Consumer.Formatter.Codec = value.MappingFormatterCodec{
		"text": formatter.NewText(),
		"json": formatter.NewJson(),
	}

	var o options
	cmd := kingpin.New("jawtalk", "Jaw-gesture communication daemon.").
		Action(func(*kingpin.ParseContext) error {
			return run(o)
		})

	cmd.Flag("config", "YAML configuration file; missing file means defaults.").
		Default("/etc/jawtalk/config.yaml").
		StringVar(&o.configFile)
	cmd.Flag("broker", "MQTT broker address (empty to disable MQTT).").
		Default("tcp://localhost:1883").
		StringVar(&o.broker)
	cmd.Flag("device", "Device name used in MQTT topics.").
		Default("default").
		StringVar(&o.device)
	cmd.Flag("source", "Reading source.").
		Default(sourceSynthetic).
		EnumVar(&o.source, sourceSynthetic, sourceMQTT)
	cmd.Flag("interval", "Synthetic source sample interval.").
		Default("20ms").
		DurationVar(&o.interval)
	cmd.Flag("http", "HTTP status address (empty to disable).").
		Default(":8080").
		StringVar(&o.httpAddr)
	cmd.Flag("heartbeat", "Heartbeat interval (0 to disable).").
		Default("15m").
		DurationVar(&o.heartbeat)
	cmd.Flag("tick", "Interval for sequence timeout checks and status refresh.").
		Default("100ms").
		DurationVar(&o.tick)
	cmd.Flag("button-pin", fmt.Sprintf("BCM pin of the recalibration button, 0 to disable (wiring default %d).", gpio.DefaultButtonPin)).
		Default("0").
		IntVar(&o.buttonPin)
	cmd.Flag("speech", "Speak phrases aloud.").
		Default("true").
		BoolVar(&o.speech)
	cmd.Flag("print-config", "Print the effective configuration and exit.").
		BoolVar(&o.printConfig)

	cmd.Flag("log.level", "Minimum log level.").
		SetValue(lv.Level)
	cmd.Flag("log.format", "Log format (text or json).").
		Default("text").
		SetValue(lv.Consumer.Formatter)

	kingpin.MustParse(cmd.Parse(os.Args[1:]))
}

func run(o options) error {
	cfg, err := config.LoadFile(o.configFile, true)
	if err != nil {
		return err
	}
	if o.printConfig {
		return cfg.Save(os.Stdout)
	}

	pcfg := cfg.Pipeline()
	session, err := pipeline.NewSession(pcfg)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	queue := pipeline.NewQueue(cfg.QueueCapacity)

	// Initialize MQTT
	topics := mqtt.NewTopics(o.device)
	mqttOpts := mqtt.Options{Broker: o.broker, ClientID: "jawtalk-" + o.device, Topics: topics}
	var publisher mqtt.Publisher
	var mqttStatus mqtt.ConnectionStatus
	if o.broker != "" {
		pub, err := mqtt.NewRealPublisher(mqttOpts)
		if err != nil {
			log.WithError(err).Warn("MQTT publishing disabled.")
		} else {
			defer pub.Close()
			publisher, mqttStatus = pub, pub
		}
	}

	// Initialize speech; a missing TTS binary leaves visual output only
	var synth speech.Synthesizer
	if cs, err := speech.NewCommandSynthesizer(speech.DefaultRate); err != nil {
		log.WithError(err).Warn("No speech synthesizer found, phrases are shown only.")
	} else {
		synth = cs
	}
	speaker := speech.NewSpeaker(synth, 0)
	speaker.SetEnabled(o.speech)

	// Initialize status tracker (before STARTUP so snapshot is available)
	tracker := status.NewTracker(session.ID(), time.Now(), status.Config{
		Device:            o.device,
		Source:            o.source,
		DwellMs:           pcfg.Dwell.Milliseconds(),
		SequenceTimeoutMs: pcfg.SequenceTimeout.Milliseconds(),
		HeartbeatMs:       o.heartbeat.Milliseconds(),
		RestDeadZone:      pcfg.RestDeadZone,
		ValidRange:        pcfg.ValidRange,
		Broker:            o.broker,
		HTTPAddr:          o.httpAddr,
	})
	tracker.SetSpeech(speaker.Enabled(), speaker.Backend())

	var button gpio.Button
	if o.buttonPin > 0 {
		b, err := gpio.NewRealButton(o.buttonPin, gpio.DefaultDebounce)
		if err != nil {
			log.WithError(err).With("pin", o.buttonPin).Warn("Recalibration button disabled.")
		} else {
			defer b.Close()
			button = b
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var src source.Source
	switch o.source {
	case sourceMQTT:
		src = mqtt.NewReadingSource(mqttOpts)
	default:
		src = &source.Synthetic{
			Prelude:  source.CalibrationScript(pcfg.HoldDuration, pcfg.SettleDuration),
			Script:   source.DefaultScript(),
			Interval: o.interval,
			Noise:    2,
			Seed:     time.Now().UnixNano(),
			Loop:     true,
			Realtime: true,
		}
		// The scripted signal opens with the calibration gestures
		if err := session.StartCalibration(); err != nil {
			return fmt.Errorf("start calibration: %w", err)
		}
	}
	go func() {
		if err := src.Run(ctx, func(r logic.Reading) { queue.Push(r) }); err != nil {
			log.WithError(err).Error("Reading source stopped.")
		}
	}()
	go speaker.Run(ctx)

	requests := make(chan time.Time, 1)

	// Start HTTP status server
	var hub *web.Hub
	if o.httpAddr != "" {
		srv := web.New(o.httpAddr, tracker, &controller{requests: requests, speaker: speaker, tracker: tracker})
		hub = srv.Hub()
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.WithError(err).Error("HTTP server failed.")
			}
		}()
		defer srv.Shutdown(context.Background())
		log.With("addr", o.httpAddr).Info("HTTP status server listening.")
	}

	log.With("session", session.ID()).
		With("source", o.source).
		With("broker", o.broker).
		With("dwell", pcfg.Dwell).
		With("sequenceTimeout", pcfg.SequenceTimeout).
		Info("Started.")

	ticker := time.NewTicker(o.tick)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return runLoop(loop{
		session:    session,
		queue:      queue,
		publisher:  publisher,
		mqttStatus: mqttStatus,
		speaker:    speaker,
		tracker:    tracker,
		hub:        hub,
		button:     button,
		requests:   requests,
		heartbeat:  o.heartbeat,
		now:        time.Now,
		tick:       ticker.C,
		sig:        sigCh,
	})
}

// controller serves the web control endpoints. Recalibration is handed to
// the loop so it is ordered with reading processing.
type controller struct {
	requests chan<- time.Time
	speaker  *speech.Speaker
	tracker  *status.Tracker
}

func (c *controller) Recalibrate() {
	select {
	case c.requests <- time.Now():
	default:
		// A recalibration is already queued
	}
}

func (c *controller) SetSpeechEnabled(enabled bool) {
	c.speaker.SetEnabled(enabled)
	c.tracker.SetSpeech(c.speaker.Enabled(), c.speaker.Backend())
	log.With("enabled", enabled).Info("Speech output toggled.")
}

func (c *controller) ReplayPhrase() bool {
	p := c.tracker.Snapshot().LastPhrase
	if p == nil {
		return false
	}
	if !c.speaker.Say(p.Text) {
		log.With("phrase", p.Text).Info("Replay not spoken, speech is off or busy.")
		return false
	}
	log.With("phrase", p.Text).Info("Replaying phrase.")
	return true
}
