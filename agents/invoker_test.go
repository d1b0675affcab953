package agents

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"local_mythmaker/backend"
	"local_mythmaker/imaging"
	"local_mythmaker/research"
	"local_mythmaker/trace"
)

func testArtifact(t *testing.T) imaging.Artifact {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 2, 2))))
	art, err := imaging.Ingest(buf.Bytes(), "image/png")
	require.NoError(t, err)
	return art
}

func newTestInvoker(t *testing.T, client backend.Client, search research.SearchTool, rec *trace.Recorder, cap int) *Invoker {
	t.Helper()
	inv, err := NewInvoker(client, search, rec, zap.NewNop(), 5*time.Second, cap)
	require.NoError(t, err)
	return inv
}

func TestInvestigatorToolRoundTrip(t *testing.T) {
	var calls int32
	client := &backend.Mock{GenerateFunc: func(_ context.Context, req *backend.Request) (*backend.Response, error) {
		switch atomic.AddInt32(&calls, 1) {
		case 1:
			require.NotEmpty(t, req.Tools)
			return &backend.Response{FunctionCalls: []backend.FunctionCall{{
				Name: "web_search",
				Args: map[string]any{"query": "dark history of the keep"},
			}}}, nil
		default:
			// The tool result must have been folded into the conversation.
			last := req.Contents[len(req.Contents)-1]
			require.NotNil(t, last.Parts[0].FunctionResponse)
			assert.Contains(t, last.Parts[0].FunctionResponse.Content, "County archive")
			return &backend.Response{Text: "The keep burned in 1643.\nA watchman died in the fire."}, nil
		}
	}}
	search := &research.Static{Results: []research.Result{
		{Title: "County archive", URL: "https://archive.example/keep", Snippet: "Fire of 1643."},
	}}
	rec := trace.NewRecorder()
	inv := newTestInvoker(t, client, search, rec, 3)

	facts, err := inv.Investigator(context.Background(), "the keep")
	require.NoError(t, err)
	assert.EqualValues(t, 2, calls)
	require.Len(t, facts.Facts, 2)
	assert.Equal(t, "https://archive.example/keep", facts.Facts[0].Source)

	recs := rec.Snapshot()
	require.Len(t, recs, 1)
	assert.Equal(t, "investigator", recs[0].Role)
	require.Len(t, recs[0].ToolCalls, 1)
	assert.Equal(t, "dark history of the keep", recs[0].ToolCalls[0].Query)
	assert.Equal(t, 1, recs[0].ToolCalls[0].Results)
}

func TestToolLoopExceeded(t *testing.T) {
	var generates, searches int32
	client := &backend.Mock{GenerateFunc: func(context.Context, *backend.Request) (*backend.Response, error) {
		atomic.AddInt32(&generates, 1)
		return &backend.Response{FunctionCalls: []backend.FunctionCall{{
			Name: "web_search",
			Args: map[string]any{"query": "again"},
		}}}, nil
	}}
	search := searchFunc(func(context.Context, string) ([]research.Result, error) {
		atomic.AddInt32(&searches, 1)
		return nil, nil
	})
	rec := trace.NewRecorder()
	inv := newTestInvoker(t, client, search, rec, 2)

	_, err := inv.Investigator(context.Background(), "anywhere")
	assert.ErrorIs(t, err, ErrToolLoopExceeded)
	assert.EqualValues(t, 3, generates)
	assert.EqualValues(t, 2, searches)

	recs := rec.Snapshot()
	require.Len(t, recs, 1)
	assert.NotEmpty(t, recs[0].Err)
}

type searchFunc func(ctx context.Context, query string) ([]research.Result, error)

func (f searchFunc) Search(ctx context.Context, query string) ([]research.Result, error) {
	return f(ctx, query)
}

func TestUnknownToolIsMalformed(t *testing.T) {
	client := &backend.Mock{GenerateFunc: func(context.Context, *backend.Request) (*backend.Response, error) {
		return &backend.Response{FunctionCalls: []backend.FunctionCall{{Name: "rm_rf", Args: map[string]any{}}}}, nil
	}}
	inv := newTestInvoker(t, client, &research.Static{}, trace.NewRecorder(), 3)

	_, err := inv.Investigator(context.Background(), "anywhere")
	assert.ErrorIs(t, err, ErrMalformedOutput)
}

func TestSearchFailureIsFatal(t *testing.T) {
	client := &backend.Mock{GenerateFunc: func(context.Context, *backend.Request) (*backend.Response, error) {
		return &backend.Response{FunctionCalls: []backend.FunctionCall{{
			Name: "web_search", Args: map[string]any{"query": "x"},
		}}}, nil
	}}
	search := searchFunc(func(context.Context, string) ([]research.Result, error) {
		return nil, backend.Unavailable(errors.New("search backend down"))
	})
	inv := newTestInvoker(t, client, search, trace.NewRecorder(), 3)

	_, err := inv.Investigator(context.Background(), "anywhere")
	assert.ErrorIs(t, err, backend.ErrUnavailable)
}

func TestTimeoutBecomesBackendUnavailable(t *testing.T) {
	client := &backend.Mock{GenerateFunc: func(ctx context.Context, _ *backend.Request) (*backend.Response, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	rec := trace.NewRecorder()
	inv, err := NewInvoker(client, &research.Static{}, rec, zap.NewNop(), 20*time.Millisecond, 3)
	require.NoError(t, err)

	_, err = inv.Visionary(context.Background(), testArtifact(t))
	assert.ErrorIs(t, err, backend.ErrUnavailable)
}

func TestVisionaryParsesCues(t *testing.T) {
	client := &backend.Mock{GenerateFunc: func(_ context.Context, req *backend.Request) (*backend.Response, error) {
		// The image travels inline with the prompt.
		require.NotNil(t, req.Contents[0].Parts[0].Inline)
		assert.Equal(t, "image/png", req.Contents[0].Parts[0].Inline.MIME)
		return &backend.Response{Text: "Cold and quiet.\n- a broken gate\n- a dark window\n- a bell"}, nil
	}}
	inv := newTestInvoker(t, client, &research.Static{}, trace.NewRecorder(), 3)

	cues, err := inv.Visionary(context.Background(), testArtifact(t))
	require.NoError(t, err)
	assert.Equal(t, "Cold and quiet.", cues.Atmosphere)
	assert.Len(t, cues.Details, 3)
}

func TestToolsStrippedWhenBackendCannotHonorThem(t *testing.T) {
	client := noToolClient{&backend.Mock{GenerateFunc: func(_ context.Context, req *backend.Request) (*backend.Response, error) {
		assert.Empty(t, req.Tools)
		return &backend.Response{Text: "The record is thin, but the fire of 1643 is documented."}, nil
	}}}
	inv := newTestInvoker(t, client, &research.Static{}, trace.NewRecorder(), 3)

	facts, err := inv.Investigator(context.Background(), "the keep")
	require.NoError(t, err)
	assert.NotEmpty(t, facts.Facts)
}

type noToolClient struct{ *backend.Mock }

func (noToolClient) SupportsTools() bool { return false }
