package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"local_mythmaker/agents"
)

func TestCritiqueGate(t *testing.T) {
	gate := NewCritiqueGate(8)

	assert.Equal(t, Reject, gate.Evaluate(agents.Critique{Score: 7}))
	assert.Equal(t, Accept, gate.Evaluate(agents.Critique{Score: 8}))
	assert.Equal(t, Accept, gate.Evaluate(agents.Critique{Score: 10}))
}

func TestCritiqueGateTunedThreshold(t *testing.T) {
	gate := NewCritiqueGate(5)
	assert.Equal(t, Accept, gate.Evaluate(agents.Critique{Score: 5}))
	assert.Equal(t, Reject, gate.Evaluate(agents.Critique{Score: 4}))
}
