package orchestrator

import (
	"errors"
	"fmt"
	"time"
)

// ErrConfiguration marks invalid or insufficient configuration, including
// a context budget too small to hold any grounding at all.
var ErrConfiguration = errors.New("invalid configuration")

// Options are every tunable of the orchestration core. They are passed in
// explicitly at construction; nothing reads ambient globals mid-run.
type Options struct {
	// MaxIterations is the number of rewrites allowed after the first
	// draft, so MaxIterations+1 Bard calls at most.
	MaxIterations int

	// AcceptThreshold is the minimum critic score that ends the loop.
	AcceptThreshold int

	// ContextBudget bounds the compacted context package, in estimated
	// backend tokens.
	ContextBudget int

	// ToolRoundTrips caps search round-trips within one backend call.
	ToolRoundTrips int

	// PerCallTimeout applies to each backend call independently.
	PerCallTimeout time.Duration
}

func DefaultOptions() Options {
	return Options{
		MaxIterations:   2,
		AcceptThreshold: 8,
		ContextBudget:   1200,
		ToolRoundTrips:  3,
		PerCallTimeout:  90 * time.Second,
	}
}

func (o Options) Validate() error {
	if o.MaxIterations < 0 {
		return fmt.Errorf("%w: max_iterations must be >= 0, got %d", ErrConfiguration, o.MaxIterations)
	}
	if o.AcceptThreshold < 1 || o.AcceptThreshold > 10 {
		return fmt.Errorf("%w: accept_threshold must be in [1,10], got %d", ErrConfiguration, o.AcceptThreshold)
	}
	if o.ContextBudget <= 0 {
		return fmt.Errorf("%w: context_budget must be > 0, got %d", ErrConfiguration, o.ContextBudget)
	}
	if o.ToolRoundTrips < 1 {
		return fmt.Errorf("%w: tool_round_trips must be >= 1, got %d", ErrConfiguration, o.ToolRoundTrips)
	}
	if o.PerCallTimeout <= 0 {
		return fmt.Errorf("%w: per_call_timeout must be positive, got %s", ErrConfiguration, o.PerCallTimeout)
	}
	return nil
}
