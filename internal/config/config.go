// Package config loads the daemon's pipeline configuration from YAML.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"

	"github.com/sweeney/jawtalk/internal/logic"
	"github.com/sweeney/jawtalk/internal/pipeline"
)

// Calibration configures the guided calibration capture.
type Calibration struct {
	HoldMs       int     `yaml:"hold_ms"`
	SettleMs     int     `yaml:"settle_ms"`
	TrimFraction float64 `yaml:"trim_fraction"`
}

// Config is the file format. Zero values are replaced by defaults.
type Config struct {
	DwellTimeMs       int           `yaml:"dwell_time_ms"`
	SequenceTimeoutMs int           `yaml:"sequence_timeout_ms"`
	RestDeadZone      float64       `yaml:"rest_dead_zone"`
	ValidSensorRange  logic.Range   `yaml:"valid_sensor_range"`
	MaxSequenceLength int           `yaml:"max_sequence_length"`
	QueueCapacity     int           `yaml:"queue_capacity"`
	Calibration       Calibration   `yaml:"calibration"`
	Phrases           logic.Mapping `yaml:"phrases"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		DwellTimeMs:       int(logic.DefaultDwell / time.Millisecond),
		SequenceTimeoutMs: int(logic.DefaultSequenceTimeout / time.Millisecond),
		RestDeadZone:      logic.DefaultRestDeadZone,
		ValidSensorRange:  logic.DefaultRange,
		MaxSequenceLength: logic.DefaultMaxSequenceLength,
		QueueCapacity:     pipeline.DefaultQueueCapacity,
		Calibration: Calibration{
			HoldMs:       int(pipeline.DefaultHoldDuration / time.Millisecond),
			SettleMs:     int(pipeline.DefaultSettleDuration / time.Millisecond),
			TrimFraction: logic.DefaultTrimFraction,
		},
		Phrases: logic.DefaultMapping(),
	}
}

// Load reads a configuration from r and fills unset fields with defaults.
func Load(r io.Reader) (Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := mergo.Merge(&cfg, Default()); err != nil {
		return Config{}, fmt.Errorf("apply defaults: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadFile loads the configuration at fn. A missing file yields the
// defaults when ignoreNotFound is set.
func LoadFile(fn string, ignoreNotFound bool) (Config, error) {
	data, err := os.ReadFile(fn)
	if os.IsNotExist(err) && ignoreNotFound {
		return Default(), nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("cannot open configuration file %q: %w", fn, err)
	}
	cfg, err := Load(bytes.NewReader(data))
	if err != nil {
		return Config{}, fmt.Errorf("cannot load configuration file %q: %w", fn, err)
	}
	return cfg, nil
}

// Save writes cfg as YAML.
func (c Config) Save(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return err
	}
	return enc.Close()
}

// Validate rejects configurations the pipeline cannot run with.
func (c Config) Validate() error {
	switch {
	case c.DwellTimeMs <= 0:
		return fmt.Errorf("dwell_time_ms must be positive, got %d", c.DwellTimeMs)
	case c.SequenceTimeoutMs <= 0:
		return fmt.Errorf("sequence_timeout_ms must be positive, got %d", c.SequenceTimeoutMs)
	case c.RestDeadZone < 0:
		return fmt.Errorf("rest_dead_zone must not be negative, got %v", c.RestDeadZone)
	case c.ValidSensorRange.Max <= c.ValidSensorRange.Min:
		return fmt.Errorf("valid_sensor_range is empty: [%v, %v]", c.ValidSensorRange.Min, c.ValidSensorRange.Max)
	case c.MaxSequenceLength <= 0:
		return fmt.Errorf("max_sequence_length must be positive, got %d", c.MaxSequenceLength)
	case c.QueueCapacity <= 0:
		return fmt.Errorf("queue_capacity must be positive, got %d", c.QueueCapacity)
	case c.Calibration.HoldMs <= 0:
		return fmt.Errorf("calibration.hold_ms must be positive, got %d", c.Calibration.HoldMs)
	case c.Calibration.SettleMs < 0:
		return fmt.Errorf("calibration.settle_ms must not be negative, got %d", c.Calibration.SettleMs)
	case c.Calibration.TrimFraction < 0 || c.Calibration.TrimFraction >= 0.5:
		return fmt.Errorf("calibration.trim_fraction must be in [0, 0.5), got %v", c.Calibration.TrimFraction)
	}
	if err := c.Phrases.Validate(c.MaxSequenceLength); err != nil {
		return fmt.Errorf("phrases: %w", err)
	}
	return nil
}

// Pipeline converts the file format into session settings.
func (c Config) Pipeline() pipeline.Config {
	return pipeline.Config{
		Dwell:             time.Duration(c.DwellTimeMs) * time.Millisecond,
		SequenceTimeout:   time.Duration(c.SequenceTimeoutMs) * time.Millisecond,
		RestDeadZone:      c.RestDeadZone,
		ValidRange:        c.ValidSensorRange,
		MaxSequenceLength: c.MaxSequenceLength,
		HoldDuration:      time.Duration(c.Calibration.HoldMs) * time.Millisecond,
		SettleDuration:    time.Duration(c.Calibration.SettleMs) * time.Millisecond,
		TrimFraction:      c.Calibration.TrimFraction,
		Phrases:           c.Phrases,
	}
}
