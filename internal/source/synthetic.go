package source

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/sweeney/jawtalk/internal/logic"
)

// Segment holds the signal near Value for Duration.
type Segment struct {
	Value    float64
	Duration time.Duration
}

// Signal levels of the synthetic jaw sensor. Right sits close to rest so
// that midpoint thresholds keep it apart from open.
const (
	RestLevel  = 50.0
	OpenLevel  = 95.0
	LeftLevel  = 20.0
	RightLevel = 62.0
)

// Synthetic generates a scripted signal with seeded uniform noise.
// Prelude plays once, then Script. After the script ends it starts over when
// Loop is set, otherwise it holds the last segment forever.
type Synthetic struct {
	Prelude  []Segment
	Script   []Segment
	Interval time.Duration
	Noise    float64
	Seed     int64
	Loop     bool
	// Realtime paces emission with a ticker; otherwise readings are emitted
	// as fast as the consumer accepts them.
	Realtime bool
	// Start is the timestamp of the first reading; zero means time.Now().
	Start time.Time
}

// DefaultScript rests, then signs "I am hungry" (open rest left) followed by
// "No" (right rest) with the default mapping.
func DefaultScript() []Segment {
	return []Segment{
		{Value: RestLevel, Duration: 2 * time.Second},
		{Value: OpenLevel, Duration: time.Second},
		{Value: RestLevel, Duration: 2 * time.Second},
		{Value: LeftLevel, Duration: time.Second},
		{Value: RestLevel, Duration: 2 * time.Second},
		{Value: RightLevel, Duration: time.Second},
		{Value: RestLevel, Duration: 4 * time.Second},
	}
}

// Readings returns the first n readings of the signal starting at start.
func (s *Synthetic) Readings(start time.Time, n int) []logic.Reading {
	g := s.generator(start)
	out := make([]logic.Reading, n)
	for i := range out {
		out[i] = g.next()
	}
	return out
}

// Run implements Source.
func (s *Synthetic) Run(ctx context.Context, emit func(logic.Reading)) error {
	if s.Interval <= 0 {
		return errors.New("synthetic source: interval must be positive")
	}
	if len(s.Script) == 0 {
		return errors.New("synthetic source: empty script")
	}

	start := s.Start
	if start.IsZero() {
		start = time.Now()
	}
	g := s.generator(start)

	if !s.Realtime {
		for {
			if err := ctx.Err(); err != nil {
				return nil
			}
			emit(g.next())
		}
	}

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()
	for {
		emit(g.next())
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

type generator struct {
	s         *Synthetic
	rnd       *rand.Rand
	segments  []Segment
	loopStart int
	now       time.Time
	segment   int
	elapsed   time.Duration
}

func (s *Synthetic) generator(start time.Time) *generator {
	segments := make([]Segment, 0, len(s.Prelude)+len(s.Script))
	segments = append(segments, s.Prelude...)
	segments = append(segments, s.Script...)
	return &generator{
		s:         s,
		rnd:       rand.New(rand.NewSource(s.Seed)),
		segments:  segments,
		loopStart: len(s.Prelude),
		now:       start,
	}
}

func (g *generator) next() logic.Reading {
	seg := g.segments[g.segment]
	v := seg.Value
	if g.s.Noise > 0 {
		v += (g.rnd.Float64()*2 - 1) * g.s.Noise
	}
	r := logic.Reading{Time: g.now, Value: v}

	g.now = g.now.Add(g.s.Interval)
	g.elapsed += g.s.Interval
	if g.elapsed >= seg.Duration {
		switch {
		case g.segment+1 < len(g.segments):
			g.segment++
			g.elapsed = 0
		case g.s.Loop:
			g.segment = g.loopStart
			g.elapsed = 0
		default:
			// Hold the last segment
			g.elapsed = seg.Duration
		}
	}
	return r
}

// CalibrationScript follows the guided calibration prompts: rest, then open,
// left and right, each held past the capture and followed by a relaxed rest
// that ends when the next prompt starts.
func CalibrationScript(hold, settle time.Duration) []Segment {
	script := []Segment{{Value: RestLevel, Duration: hold + settle}}
	for _, level := range []float64{OpenLevel, LeftLevel, RightLevel} {
		script = append(script,
			Segment{Value: level, Duration: hold + settle/2},
			Segment{Value: RestLevel, Duration: settle - settle/2},
		)
	}
	return script
}
