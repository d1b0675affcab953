package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"local_mythmaker/agents"
	"local_mythmaker/backend"
	"local_mythmaker/research"
	"local_mythmaker/trace"
)

// loopHarness scripts the Bard and Critic sides of the mock backend.
// Bard drafts are numbered; critic replies are consumed in order.
type loopHarness struct {
	bardCalls   int32
	criticCalls int32
	critics     []string
}

func newLoopHarness(critics ...string) *loopHarness {
	return &loopHarness{critics: critics}
}

func scores(vals ...int) []string {
	out := make([]string, len(vals))
	for i, v := range vals {
		out[i] = fmt.Sprintf(`{"score": %d, "feedback": "feedback %d"}`, v, i)
	}
	return out
}

func (h *loopHarness) client() backend.Client {
	return &backend.Mock{GenerateFunc: func(_ context.Context, req *backend.Request) (*backend.Response, error) {
		switch {
		case strings.Contains(req.System, "Editor"):
			n := atomic.AddInt32(&h.criticCalls, 1)
			return &backend.Response{Text: h.critics[n-1]}, nil
		default:
			n := atomic.AddInt32(&h.bardCalls, 1)
			return &backend.Response{Text: fmt.Sprintf("draft number %d", n-1)}, nil
		}
	}}
}

func newLoop(t *testing.T, client backend.Client, maxIterations int) (*RetryController, *trace.Recorder) {
	t.Helper()
	rec := trace.NewRecorder()
	inv, err := agents.NewInvoker(client, &research.Static{}, rec, zap.NewNop(), 5*time.Second, 3)
	require.NoError(t, err)
	rc, err := NewRetryController(inv, NewCritiqueGate(8), maxIterations, zap.NewNop())
	require.NoError(t, err)
	return rc, rec
}

func testPackage() agents.ContextPackage {
	return agents.ContextPackage{Text: "LOCATION: Tower\nFACT: fire of 1643\n", Tokens: 10}
}

func TestFirstDraftAccepted(t *testing.T) {
	h := newLoopHarness(scores(9)...)
	rc, rec := newLoop(t, h.client(), 2)

	st, err := rc.Run(context.Background(), testPackage())
	require.NoError(t, err)
	assert.Equal(t, ReasonAccepted, st.Reason)
	assert.Equal(t, 0, st.Final.Iteration)
	assert.EqualValues(t, 1, h.bardCalls)
	assert.EqualValues(t, 1, h.criticCalls)
	assert.Equal(t, 2, rec.Len())
	assert.Empty(t, st.History)
}

func TestAcceptOnThirdAttempt(t *testing.T) {
	// threshold=8, maxIterations=2, scores [5, 7, 9]: accepted at
	// iteration 2 with exactly 3 Bard calls.
	h := newLoopHarness(scores(5, 7, 9)...)
	rc, _ := newLoop(t, h.client(), 2)

	st, err := rc.Run(context.Background(), testPackage())
	require.NoError(t, err)
	assert.Equal(t, ReasonAccepted, st.Reason)
	assert.Equal(t, 2, st.Final.Iteration)
	assert.Equal(t, 9, st.FinalCritique.Score)
	assert.EqualValues(t, 3, h.bardCalls)
	// Each rejected critique joined the history fed to the next rewrite.
	require.Len(t, st.History, 2)
	assert.Equal(t, 5, st.History[0].Score)
	assert.Equal(t, 7, st.History[1].Score)
}

func TestExhaustedTieKeepsEarliestDraft(t *testing.T) {
	// threshold=8, maxIterations=1, scores [6, 6]: exhausted, the
	// iteration-0 draft wins the tie.
	h := newLoopHarness(scores(6, 6)...)
	rc, _ := newLoop(t, h.client(), 1)

	st, err := rc.Run(context.Background(), testPackage())
	require.NoError(t, err)
	assert.Equal(t, ReasonExhausted, st.Reason)
	assert.Equal(t, 0, st.Final.Iteration)
	assert.Equal(t, "draft number 0", st.Final.Text)
	assert.Equal(t, 6, st.FinalCritique.Score)
	assert.EqualValues(t, 2, h.bardCalls)
}

func TestExhaustedPicksHighestScore(t *testing.T) {
	h := newLoopHarness(scores(6, 7, 5)...)
	rc, _ := newLoop(t, h.client(), 2)

	st, err := rc.Run(context.Background(), testPackage())
	require.NoError(t, err)
	assert.Equal(t, ReasonExhausted, st.Reason)
	assert.Equal(t, 1, st.Final.Iteration)
	assert.Equal(t, 7, st.FinalCritique.Score)
	assert.Len(t, st.Drafts, 3)
}

func TestTerminationBound(t *testing.T) {
	h := newLoopHarness(scores(1, 1, 1, 1, 1, 1)...)
	rc, _ := newLoop(t, h.client(), 2)

	st, err := rc.Run(context.Background(), testPackage())
	require.NoError(t, err)
	// Never more than maxIterations+1 Bard invocations.
	assert.EqualValues(t, 3, h.bardCalls)
	assert.Equal(t, ReasonExhausted, st.Reason)
}

func TestMalformedCritiqueConsumesIteration(t *testing.T) {
	h := newLoopHarness("utter nonsense", scores(9)[0])
	rc, _ := newLoop(t, h.client(), 2)

	st, err := rc.Run(context.Background(), testPackage())
	require.NoError(t, err)
	assert.Equal(t, ReasonAccepted, st.Reason)
	assert.Equal(t, 1, st.Final.Iteration)
	assert.EqualValues(t, 2, h.bardCalls)
	// The malformed round left no feedback behind.
	assert.Empty(t, st.History)
}

func TestAllMalformedFailsTheRun(t *testing.T) {
	h := newLoopHarness("bad", "worse")
	rc, _ := newLoop(t, h.client(), 1)

	_, err := rc.Run(context.Background(), testPackage())
	assert.ErrorIs(t, err, agents.ErrMalformedOutput)
	assert.EqualValues(t, 2, h.bardCalls)
}

func TestBackendFailureIsFatal(t *testing.T) {
	client := &backend.Mock{GenerateFunc: func(_ context.Context, req *backend.Request) (*backend.Response, error) {
		if strings.Contains(req.System, "Mythmaker") {
			return nil, backend.Unavailable(errors.New("api down"))
		}
		return &backend.Response{Text: `{"score": 9, "feedback": "fine"}`}, nil
	}}
	rc, _ := newLoop(t, client, 2)

	_, err := rc.Run(context.Background(), testPackage())
	assert.ErrorIs(t, err, backend.ErrUnavailable)
}

func TestOutOfRangeScoreCountsAsRejection(t *testing.T) {
	h := newLoopHarness(`{"score": 12, "feedback": "too good"}`, scores(8)[0])
	rc, _ := newLoop(t, h.client(), 1)

	st, err := rc.Run(context.Background(), testPackage())
	require.NoError(t, err)
	assert.Equal(t, ReasonAccepted, st.Reason)
	assert.Equal(t, 1, st.Final.Iteration)
}
