package screening

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Adapter screens one query against a single upstream source. Implementations
// must honor ctx cancellation and report failures through SourceResult.Err
// rather than panicking; a source being unreachable is an expected condition.
type Adapter interface {
	ID() string
	Screen(ctx context.Context, q Query) SourceResult
}

// FanOut runs every adapter concurrently and collects all results, keyed by
// source ID. It always waits for all adapters to settle, up to the global
// timeout: adapters that have not returned by then are reported as errored
// with a timeout error, and their contexts are cancelled so stragglers stop
// doing work. One slow or failing source never blocks the others.
func FanOut(ctx context.Context, adapters []Adapter, q Query, timeout time.Duration, logger *zap.SugaredLogger) map[string]SourceResult {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type keyed struct {
		id     string
		result SourceResult
	}
	ch := make(chan keyed, len(adapters))

	for _, adapter := range adapters {
		go func(a Adapter) {
			ch <- keyed{id: a.ID(), result: a.Screen(ctx, q)}
		}(adapter)
	}

	results := make(map[string]SourceResult, len(adapters))
	for range adapters {
		select {
		case kr := <-ch:
			results[kr.id] = kr.result
		case <-ctx.Done():
			for _, a := range adapters {
				if _, ok := results[a.ID()]; !ok {
					logger.Warnw("Source did not settle before deadline", "source", a.ID())
					results[a.ID()] = SourceResult{
						SourceID: a.ID(),
						Err:      fmt.Errorf("source %s: %w", a.ID(), ctx.Err()),
					}
				}
			}
			return results
		}
	}
	return results
}
