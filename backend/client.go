package backend

import (
	"context"
	"errors"
	"fmt"
)

// Content roles understood by every provider.
const (
	RoleUser  = "user"
	RoleModel = "model"
)

// ErrUnavailable marks network/auth/timeout failures talking to a
// provider. Callers match it with errors.Is; no provider retries.
var ErrUnavailable = errors.New("backend unavailable")

// Unavailable wraps a transport-level error into the unavailable class.
func Unavailable(err error) error {
	return fmt.Errorf("%w: %w", ErrUnavailable, err)
}

// Inline is raw media (an uploaded image) included in a request.
type Inline struct {
	MIME string
	Data []byte
}

// FunctionCall is a backend-initiated request to run an external tool.
type FunctionCall struct {
	ID   string
	Name string
	Args map[string]any
}

// FunctionResponse carries a tool result back to the backend.
type FunctionResponse struct {
	ID      string
	Name    string
	Content string
}

// Part is one slot of a content turn. Exactly one field is set.
type Part struct {
	Text             string
	Inline           *Inline
	FunctionCall     *FunctionCall
	FunctionResponse *FunctionResponse
}

// Content is a single conversation turn.
type Content struct {
	Role  string
	Parts []Part
}

// ToolDecl declares a tool the backend may request mid-generation.
// Every parameter is a required string; the only declared tool today is
// web_search, so a richer schema language would be dead weight.
type ToolDecl struct {
	Name        string
	Description string
	Parameters  map[string]string
}

// Request is the single point of contact with a generative provider.
type Request struct {
	System      string
	Contents    []Content
	Tools       []ToolDecl
	Temperature float32
}

// Usage is the provider-reported token accounting for one call.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// Response is the provider's answer: generated text, any tool-call
// requests that must be satisfied before the text is final, and
// grounding sources when the provider reports them.
type Response struct {
	Text          string
	FunctionCalls []FunctionCall
	Sources       []string
	Usage         Usage
}

// Client abstracts a generative-model provider so it can be swapped or
// mocked.
type Client interface {
	Name() string
	// SupportsTools reports whether the provider can honor ToolDecls.
	// Callers strip tool declarations before calling a provider that
	// cannot.
	SupportsTools() bool
	Generate(ctx context.Context, req *Request) (*Response, error)
}

// Settings is the provider-independent connection configuration.
type Settings struct {
	Provider string
	Model    string
	APIKey   string
	BaseURL  string
}
