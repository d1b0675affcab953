package orchestrator

import "local_mythmaker/agents"

// Verdict is the quality-gate decision on one critique.
type Verdict int

const (
	Reject Verdict = iota
	Accept
)

func (v Verdict) String() string {
	if v == Accept {
		return "accept"
	}
	return "reject"
}

// CritiqueGate applies the fixed accept threshold. Scores are already
// range-checked by the critic parser; the gate is a pure comparison.
type CritiqueGate struct {
	threshold int
}

func NewCritiqueGate(threshold int) CritiqueGate {
	return CritiqueGate{threshold: threshold}
}

func (g CritiqueGate) Evaluate(c agents.Critique) Verdict {
	if c.Score >= g.threshold {
		return Accept
	}
	return Reject
}
