package speech

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
)

// DefaultRate is the speaking rate relative to normal.
const DefaultRate = 0.9

// engine describes how to drive one TTS binary.
type engine struct {
	binary string
	// wordsPerMinute at rate 1.0
	normalWPM int
	rateFlag  string
}

var engines = []engine{
	{binary: "espeak-ng", normalWPM: 175, rateFlag: "-s"},
	{binary: "espeak", normalWPM: 175, rateFlag: "-s"},
	{binary: "say", normalWPM: 200, rateFlag: "-r"},
}

// CommandSynthesizer runs a TTS binary found on PATH.
type CommandSynthesizer struct {
	path   string
	engine engine
	rate   float64
}

// NewCommandSynthesizer picks the first of espeak-ng, espeak and say found
// on PATH. rate scales the engine's normal speed; zero means DefaultRate.
func NewCommandSynthesizer(rate float64) (*CommandSynthesizer, error) {
	if rate <= 0 {
		rate = DefaultRate
	}
	for _, e := range engines {
		if path, err := exec.LookPath(e.binary); err == nil {
			return &CommandSynthesizer{path: path, engine: e, rate: rate}, nil
		}
	}
	return nil, ErrSynthesisUnavailable
}

// Name implements Synthesizer.
func (c *CommandSynthesizer) Name() string {
	return c.engine.binary
}

func (c *CommandSynthesizer) args(text string) []string {
	wpm := int(float64(c.engine.normalWPM) * c.rate)
	return []string{c.engine.rateFlag, strconv.Itoa(wpm), text}
}

// Speak implements Synthesizer. Cancelling ctx kills the process.
func (c *CommandSynthesizer) Speak(ctx context.Context, text string) error {
	cmd := exec.CommandContext(ctx, c.path, c.args(text)...)
	if out, err := cmd.CombinedOutput(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%s: %w (%s)", c.engine.binary, err, out)
	}
	return nil
}
