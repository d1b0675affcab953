package orchestrator

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"local_mythmaker/agents"
	"local_mythmaker/imaging"
	"local_mythmaker/trace"
)

// RunInput is everything a run needs: the location name and the ingested
// image. Immutable for the whole run.
type RunInput struct {
	Location string
	Artifact imaging.Artifact
}

// RunResult is the terminal output of one run.
type RunResult struct {
	Location string                 `json:"location"`
	Cues     agents.VisualCues      `json:"cues"`
	Facts    agents.HistoricalFacts `json:"facts"`
	Context  agents.ContextPackage  `json:"context"`
	Myth     agents.Draft           `json:"myth"`
	Critique agents.Critique        `json:"critique"`
	Loop     *LoopState             `json:"loop"`
	Trace    []trace.Record         `json:"trace"`
}

// Scheduler is the top-level state machine: Phase 1 gathers visual cues
// and historical facts concurrently, Phase 2 compacts them, Phase 3 runs
// the bounded draft/critique loop.
type Scheduler struct {
	inv  *agents.Invoker
	rec  *trace.Recorder
	opts Options
	log  *zap.Logger
}

func NewScheduler(inv *agents.Invoker, rec *trace.Recorder, opts Options, log *zap.Logger) (*Scheduler, error) {
	if inv == nil {
		return nil, errors.New("invoker is required")
	}
	if rec == nil {
		return nil, errors.New("trace recorder is required")
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Scheduler{inv: inv, rec: rec, opts: opts, log: log}, nil
}

// Trace exposes the call log so far; after a failed run it holds the
// partial trace for diagnosis.
func (s *Scheduler) Trace() []trace.Record {
	return s.rec.Snapshot()
}

// Run executes the whole pipeline. A failure in either Phase-1 call fails
// the run before any Bard or Critic invocation; no myth is produced from
// incomplete grounding. Cancelling ctx aborts whichever calls are in
// flight, keeping completed trace records.
func (s *Scheduler) Run(ctx context.Context, in RunInput) (*RunResult, error) {
	if in.Location == "" {
		return nil, errors.New("location is required")
	}
	if len(in.Artifact.Data) == 0 {
		return nil, errors.New("image artifact is required")
	}

	s.log.Info("run started", zap.String("location", in.Location))

	// Phase 1: parallel gathering. The trace recorder is the only shared
	// sink and its appends are atomic per record.
	var (
		cues  agents.VisualCues
		facts agents.HistoricalFacts
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		cues, err = s.inv.Visionary(gctx, in.Artifact)
		return err
	})
	g.Go(func() error {
		var err error
		facts, err = s.inv.Investigator(gctx, in.Location)
		return err
	})
	if err := g.Wait(); err != nil {
		s.log.Error("gathering phase failed", zap.Error(err))
		return nil, err
	}

	// Phase 2: compaction.
	pkg, err := Compact(in.Location, cues, facts, s.opts.ContextBudget)
	if err != nil {
		return nil, err
	}
	s.log.Info("context compacted",
		zap.Int("facts", len(facts.Facts)),
		zap.Int("details", len(cues.Details)),
		zap.Int("tokens", pkg.Tokens))

	// Phase 3: bounded draft/critique loop.
	rc, err := NewRetryController(s.inv, NewCritiqueGate(s.opts.AcceptThreshold), s.opts.MaxIterations, s.log)
	if err != nil {
		return nil, err
	}
	st, err := rc.Run(ctx, pkg)
	if err != nil {
		return nil, err
	}

	return &RunResult{
		Location: in.Location,
		Cues:     cues,
		Facts:    facts,
		Context:  pkg,
		Myth:     st.Final,
		Critique: st.FinalCritique,
		Loop:     st,
		Trace:    s.rec.Snapshot(),
	}, nil
}
