package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"local_mythmaker/agents"
)

// TerminationReason says why the draft/critique loop stopped.
type TerminationReason string

const (
	ReasonAccepted  TerminationReason = "accepted"
	ReasonExhausted TerminationReason = "exhausted"
)

// LoopState is the full record of one draft/critique loop. Mutated only
// by the RetryController; terminal once Reason is set.
type LoopState struct {
	// Iteration is the last iteration entered (zero-indexed).
	Iteration int `json:"iteration"`

	// Drafts keeps every produced draft; superseded ones are not deleted.
	Drafts []agents.Draft `json:"drafts"`

	// History is the ordered feedback fed to each rewrite.
	History []agents.Critique `json:"history"`

	// Final is the draft the run yields, with its critique.
	Final         agents.Draft      `json:"final"`
	FinalCritique agents.Critique   `json:"final_critique"`
	Reason        TerminationReason `json:"reason"`
}

// RetryController owns the Drafting → Critiquing → {Accepted, Retrying,
// Exhausted} state machine. It never retries backend failures; those
// abort the run. Malformed output consumes one iteration as a rejection
// so a misbehaving model still cannot exceed the retry budget.
type RetryController struct {
	inv           *agents.Invoker
	gate          CritiqueGate
	maxIterations int
	log           *zap.Logger
}

func NewRetryController(inv *agents.Invoker, gate CritiqueGate, maxIterations int, log *zap.Logger) (*RetryController, error) {
	if inv == nil {
		return nil, errors.New("invoker is required")
	}
	if maxIterations < 0 {
		return nil, fmt.Errorf("%w: max iterations must be >= 0", ErrConfiguration)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &RetryController{inv: inv, gate: gate, maxIterations: maxIterations, log: log}, nil
}

// Run drives the loop to a terminal state. It makes at most
// maxIterations+1 Bard invocations; each draft is paired with exactly one
// critique before any retry decision.
func (rc *RetryController) Run(ctx context.Context, pkg agents.ContextPackage) (*LoopState, error) {
	st := &LoopState{}

	var (
		best      agents.Draft
		bestCrit  agents.Critique
		hasScored bool
	)

	for iter := 0; ; iter++ {
		st.Iteration = iter

		draft, err := rc.inv.Bard(ctx, pkg, st.History, iter)
		if err == nil {
			st.Drafts = append(st.Drafts, draft)

			var crit agents.Critique
			crit, err = rc.inv.Critic(ctx, draft)
			if err == nil {
				crit.Iteration = iter
				// Strict comparison keeps the earliest draft on ties.
				if !hasScored || crit.Score > bestCrit.Score {
					best, bestCrit, hasScored = draft, crit, true
				}
				if rc.gate.Evaluate(crit) == Accept {
					st.Final, st.FinalCritique, st.Reason = draft, crit, ReasonAccepted
					rc.log.Info("draft accepted",
						zap.Int("iteration", iter),
						zap.Int("score", crit.Score))
					return st, nil
				}
				st.History = append(st.History, crit)
				rc.log.Info("draft rejected",
					zap.Int("iteration", iter),
					zap.Int("score", crit.Score))
			}
		}

		if err != nil {
			if !errors.Is(err, agents.ErrMalformedOutput) {
				return st, err
			}
			// Malformed output counts as a rejected iteration: bounded
			// attempts regardless of failure cause.
			rc.log.Warn("iteration consumed by malformed output",
				zap.Int("iteration", iter),
				zap.Error(err))
		}

		if iter == rc.maxIterations {
			st.Reason = ReasonExhausted
			if !hasScored {
				return st, fmt.Errorf("%w: no critiqued draft survived %d attempts", agents.ErrMalformedOutput, iter+1)
			}
			st.Final, st.FinalCritique = best, bestCrit
			rc.log.Info("retries exhausted; best draft selected",
				zap.Int("iteration", best.Iteration),
				zap.Int("score", bestCrit.Score))
			return st, nil
		}
	}
}
