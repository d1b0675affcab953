package agents

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"local_mythmaker/backend"
	"local_mythmaker/imaging"
	"local_mythmaker/research"
	"local_mythmaker/trace"
)

var (
	// ErrToolLoopExceeded means the backend kept requesting tool calls
	// past the round-trip cap. Fatal to the call, never retried here.
	ErrToolLoopExceeded = errors.New("tool round-trip cap exceeded")

	// ErrMalformedOutput means the backend answered but the answer did
	// not fit the role's schema. The caller decides retry vs abort.
	ErrMalformedOutput = errors.New("malformed backend output")
)

// Invoker runs one role-specific backend call, including the bounded
// search-tool sub-loop, and appends a trace record per call.
type Invoker struct {
	client         backend.Client
	search         research.SearchTool
	rec            *trace.Recorder
	log            *zap.Logger
	perCallTimeout time.Duration
	toolRoundTrips int
}

func NewInvoker(client backend.Client, search research.SearchTool, rec *trace.Recorder, log *zap.Logger, perCallTimeout time.Duration, toolRoundTrips int) (*Invoker, error) {
	if client == nil {
		return nil, errors.New("backend client is required")
	}
	if search == nil {
		return nil, errors.New("search tool is required")
	}
	if rec == nil {
		return nil, errors.New("trace recorder is required")
	}
	if log == nil {
		log = zap.NewNop()
	}
	if perCallTimeout <= 0 {
		return nil, errors.New("per-call timeout must be positive")
	}
	if toolRoundTrips < 1 {
		return nil, errors.New("tool round-trip cap must be at least 1")
	}
	return &Invoker{
		client:         client,
		search:         search,
		rec:            rec,
		log:            log,
		perCallTimeout: perCallTimeout,
		toolRoundTrips: toolRoundTrips,
	}, nil
}

// Visionary reads the uploaded image. No tool access.
func (v *Invoker) Visionary(ctx context.Context, art imaging.Artifact) (VisualCues, error) {
	text, _, err := v.call(ctx, RoleVisionary, visionaryRequest(art))
	if err != nil {
		return VisualCues{}, err
	}
	return parseVisualCues(text)
}

// Investigator looks up real history for the location. The only role
// granted search-tool access.
func (v *Invoker) Investigator(ctx context.Context, location string) (HistoricalFacts, error) {
	text, sources, err := v.call(ctx, RoleInvestigator, investigatorRequest(location))
	if err != nil {
		return HistoricalFacts{}, err
	}
	return parseFacts(text, sources)
}

// Bard writes one draft, given the compacted context and every prior
// critique.
func (v *Invoker) Bard(ctx context.Context, pkg ContextPackage, history []Critique, iteration int) (Draft, error) {
	text, _, err := v.call(ctx, RoleBard, bardRequest(pkg, history))
	if err != nil {
		return Draft{}, err
	}
	body, err := parseDraft(text)
	if err != nil {
		return Draft{}, err
	}
	return Draft{Iteration: iteration, Text: body}, nil
}

// Critic scores a draft.
func (v *Invoker) Critic(ctx context.Context, d Draft) (Critique, error) {
	text, _, err := v.call(ctx, RoleCritic, criticRequest(d))
	if err != nil {
		return Critique{}, err
	}
	return parseCritique(text, d.Iteration)
}

// call drives the backend once, satisfying at most toolRoundTrips search
// requests in between, and records the exchange whole. It returns the
// final generated text and any grounding sources seen along the way.
func (v *Invoker) call(ctx context.Context, role Role, req *backend.Request) (string, []string, error) {
	start := time.Now()
	summary := summarize(req)

	cctx, cancel := context.WithTimeout(ctx, v.perCallTimeout)
	defer cancel()

	if len(req.Tools) > 0 && !v.client.SupportsTools() {
		v.log.Warn("backend cannot honor tools; running without search",
			zap.String("role", string(role)),
			zap.String("backend", v.client.Name()))
		req.Tools = nil
	}

	var (
		text      string
		sources   []string
		toolCalls []trace.ToolCall
		err       error
	)
	for trip := 0; ; trip++ {
		var resp *backend.Response
		resp, err = v.client.Generate(cctx, req)
		if err != nil {
			break
		}
		sources = append(sources, resp.Sources...)
		if len(resp.FunctionCalls) == 0 {
			text = resp.Text
			break
		}
		if len(req.Tools) == 0 {
			err = fmt.Errorf("%w: %s requested a tool without tool access", ErrMalformedOutput, role)
			break
		}
		if trip >= v.toolRoundTrips {
			err = fmt.Errorf("%w: %s still requesting tools after %d round-trips", ErrToolLoopExceeded, role, trip)
			break
		}

		var callParts, resultParts []backend.Part
		for _, fc := range resp.FunctionCalls {
			if fc.Name != webSearchToolName {
				err = fmt.Errorf("%w: unknown tool %q requested", ErrMalformedOutput, fc.Name)
				break
			}
			query, _ := fc.Args["query"].(string)
			var results []research.Result
			results, err = v.search.Search(cctx, query)
			if err != nil {
				break
			}
			toolCalls = append(toolCalls, trace.ToolCall{Query: query, Results: len(results)})
			fcCopy := fc
			callParts = append(callParts, backend.Part{FunctionCall: &fcCopy})
			resultParts = append(resultParts, backend.Part{FunctionResponse: &backend.FunctionResponse{
				ID:      fc.ID,
				Name:    fc.Name,
				Content: formatResults(results),
			}})
			for _, r := range results {
				if r.URL != "" {
					sources = append(sources, r.URL)
				}
			}
		}
		if err != nil {
			break
		}
		req.Contents = append(req.Contents,
			backend.Content{Role: backend.RoleModel, Parts: callParts},
			backend.Content{Role: backend.RoleUser, Parts: resultParts},
		)
	}

	// A deadline hit inside the provider is a backend outage from the
	// orchestrator's point of view.
	if err != nil && errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, backend.ErrUnavailable) {
		err = backend.Unavailable(err)
	}

	rec := trace.Record{
		Role:          string(role),
		PromptSummary: summary,
		Output:        text,
		ToolCalls:     toolCalls,
		Start:         start,
		Duration:      time.Since(start),
	}
	if err != nil {
		rec.Err = err.Error()
		v.log.Error("agent call failed",
			zap.String("role", string(role)),
			zap.Duration("duration", rec.Duration),
			zap.Error(err))
	} else {
		v.log.Info("agent call completed",
			zap.String("role", string(role)),
			zap.Duration("duration", rec.Duration),
			zap.Int("tool_calls", len(toolCalls)),
			zap.Int("output_len", len(text)))
	}
	v.rec.Append(rec)

	if err != nil {
		return "", nil, err
	}
	return text, sources, nil
}

func formatResults(results []research.Result) string {
	if len(results) == 0 {
		return "No results found."
	}
	var sb strings.Builder
	for i, r := range results {
		fmt.Fprintf(&sb, "%d. %s", i+1, r.Title)
		if r.URL != "" {
			sb.WriteString(" <" + r.URL + ">")
		}
		if r.Snippet != "" {
			sb.WriteString("\n" + r.Snippet)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

const summaryLimit = 160

// summarize keeps the trace readable: system line plus the head of the
// first user text part.
func summarize(req *backend.Request) string {
	s := req.System
	for _, c := range req.Contents {
		for _, p := range c.Parts {
			if p.Text != "" {
				s += " | " + p.Text
				break
			}
		}
		break
	}
	if len(s) > summaryLimit {
		s = s[:summaryLimit] + "…"
	}
	return s
}
