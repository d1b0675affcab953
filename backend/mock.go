package backend

import (
	"context"
	"strings"
)

// Mock is a scripted stand-in for a real provider: tests install
// GenerateFunc, and local runs without an API key get a deterministic
// canned pipeline that exercises every role.
type Mock struct {
	GenerateFunc func(ctx context.Context, req *Request) (*Response, error)
}

func (m *Mock) Name() string        { return "mock" }
func (m *Mock) SupportsTools() bool { return true }

func (m *Mock) Generate(ctx context.Context, req *Request) (*Response, error) {
	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, req)
	}
	if err := ctx.Err(); err != nil {
		return nil, Unavailable(err)
	}
	return cannedResponse(req), nil
}

// cannedResponse keys off the system instruction, since a request does
// not carry its role.
func cannedResponse(req *Request) *Response {
	sys := req.System
	switch {
	case strings.Contains(sys, "Visionary"):
		return &Response{Text: "A low fog clings to the stonework and nothing moves.\n" +
			"- a lightless arched window\n" +
			"- moss swallowing the inscription on the lintel\n" +
			"- one door standing open onto darkness\n"}
	case strings.Contains(sys, "Investigator"):
		return &Response{Text: "In 1643 the site burned during the civil war, killing the watchman.\n" +
			"Local records from 1781 describe a 'pale figure' seen at the gate after dusk.\n" +
			"The north wall incorporates gravestones moved from a cleared churchyard.\n"}
	case strings.Contains(sys, "Editor"):
		return &Response{Text: `{"score": 9, "feedback": "Strong grounding; keep the first-person close."}`}
	default:
		var sb strings.Builder
		sb.WriteString("I keep the gate now, as the watchman did before the fire of 1643. ")
		sb.WriteString("Stand where the fog pools and you will see what the records of 1781 called ")
		sb.WriteString("the pale figure. It is only me, reading the gravestones they buried in the wall.")
		return &Response{Text: sb.String()}
	}
}
