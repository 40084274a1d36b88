// Package source provides jaw-position reading sources.
// The live sensor is an external acquisition node (see internal/mqtt);
// the synthetic generator here stands in for it in tests and demos.
package source

import (
	"context"

	"github.com/sweeney/jawtalk/internal/logic"
)

// Source produces readings until its context is cancelled.
type Source interface {
	// Run calls emit for every reading, in time order, and blocks until ctx
	// is done or the source fails. A source can be run again after it returns.
	Run(ctx context.Context, emit func(logic.Reading)) error
}

// Func adapts a function to the Source interface.
type Func func(ctx context.Context, emit func(logic.Reading)) error

// Run calls f.
func (f Func) Run(ctx context.Context, emit func(logic.Reading)) error {
	return f(ctx, emit)
}
