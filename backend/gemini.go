package backend

import (
	"context"
	"errors"

	"google.golang.org/genai"
)

const defaultGeminiModel = "gemini-2.5-pro"

// Gemini implements Client using the official google.golang.org/genai SDK.
type Gemini struct {
	client *genai.Client
	model  string
}

func NewGemini(ctx context.Context, cfg *Settings) (*Gemini, error) {
	if cfg == nil {
		return nil, errors.New("gemini config is nil")
	}
	if cfg.APIKey == "" {
		return nil, errors.New("gemini api key missing; set backend.api_key or GEMINI_API_KEY")
	}
	model := cfg.Model
	if model == "" {
		model = defaultGeminiModel
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, err
	}
	return &Gemini{client: client, model: model}, nil
}

func (g *Gemini) Name() string        { return "gemini" }
func (g *Gemini) SupportsTools() bool { return true }

func (g *Gemini) Generate(ctx context.Context, req *Request) (*Response, error) {
	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(req.Temperature),
	}
	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if len(req.Tools) > 0 {
		cfg.Tools = []*genai.Tool{{FunctionDeclarations: declarations(req.Tools)}}
	}

	contents := make([]*genai.Content, 0, len(req.Contents))
	for _, c := range req.Contents {
		role := genai.Role(genai.RoleUser)
		if c.Role == RoleModel {
			role = genai.RoleModel
		}
		parts := make([]*genai.Part, 0, len(c.Parts))
		for _, p := range c.Parts {
			switch {
			case p.Inline != nil:
				parts = append(parts, genai.NewPartFromBytes(p.Inline.Data, p.Inline.MIME))
			case p.FunctionCall != nil:
				parts = append(parts, &genai.Part{FunctionCall: &genai.FunctionCall{
					ID:   p.FunctionCall.ID,
					Name: p.FunctionCall.Name,
					Args: p.FunctionCall.Args,
				}})
			case p.FunctionResponse != nil:
				parts = append(parts, genai.NewPartFromFunctionResponse(p.FunctionResponse.Name, map[string]any{
					"content": p.FunctionResponse.Content,
				}))
			default:
				parts = append(parts, genai.NewPartFromText(p.Text))
			}
		}
		contents = append(contents, genai.NewContentFromParts(parts, role))
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, cfg)
	if err != nil {
		return nil, Unavailable(err)
	}

	out := &Response{Text: resp.Text()}
	for _, fc := range resp.FunctionCalls() {
		out.FunctionCalls = append(out.FunctionCalls, FunctionCall{ID: fc.ID, Name: fc.Name, Args: fc.Args})
	}
	if resp.UsageMetadata != nil {
		out.Usage = Usage{
			InputTokens:  int(resp.UsageMetadata.PromptTokenCount),
			OutputTokens: int(resp.UsageMetadata.CandidatesTokenCount),
		}
	}
	if len(resp.Candidates) > 0 && resp.Candidates[0].GroundingMetadata != nil {
		for _, chunk := range resp.Candidates[0].GroundingMetadata.GroundingChunks {
			if chunk.Web != nil && chunk.Web.URI != "" {
				out.Sources = append(out.Sources, chunk.Web.URI)
			}
		}
	}
	return out, nil
}

func declarations(tools []ToolDecl) []*genai.FunctionDeclaration {
	decls := make([]*genai.FunctionDeclaration, 0, len(tools))
	for _, t := range tools {
		props := make(map[string]*genai.Schema, len(t.Parameters))
		required := make([]string, 0, len(t.Parameters))
		for name, desc := range t.Parameters {
			props[name] = &genai.Schema{Type: genai.TypeString, Description: desc}
			required = append(required, name)
		}
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        t.Name,
			Description: t.Description,
			Parameters: &genai.Schema{
				Type:       genai.TypeObject,
				Properties: props,
				Required:   required,
			},
		})
	}
	return decls
}
