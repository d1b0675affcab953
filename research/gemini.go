package research

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"local_mythmaker/backend"
)

const defaultSearchModel = "gemini-2.5-flash"

// GeminiSearch answers queries with Gemini's built-in GoogleSearch
// grounding tool and reports the grounding chunks as sources.
type GeminiSearch struct {
	client *genai.Client
	model  string
}

func NewGeminiSearch(ctx context.Context, apiKey, model string) (*GeminiSearch, error) {
	if apiKey == "" {
		return nil, errors.New("search api key missing")
	}
	if model == "" {
		model = defaultSearchModel
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, err
	}
	return &GeminiSearch{client: client, model: model}, nil
}

func (g *GeminiSearch) Search(ctx context.Context, query string) ([]Result, error) {
	prompt := fmt.Sprintf("Search the web for: %s\nReport only verified findings, one per line, with dates where known.", query)
	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}
	cfg := &genai.GenerateContentConfig{
		Tools: []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}},
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, cfg)
	if err != nil {
		return nil, backend.Unavailable(err)
	}

	summary := strings.TrimSpace(resp.Text())
	var results []Result
	if len(resp.Candidates) > 0 && resp.Candidates[0].GroundingMetadata != nil {
		for _, chunk := range resp.Candidates[0].GroundingMetadata.GroundingChunks {
			if chunk.Web == nil {
				continue
			}
			results = append(results, Result{Title: chunk.Web.Title, URL: chunk.Web.URI})
		}
	}
	if len(results) == 0 {
		if summary == "" {
			return nil, backend.Unavailable(errors.New("search returned no content"))
		}
		return []Result{{Title: "Web search", Snippet: summary}}, nil
	}
	// The grounded summary belongs with the first hit; per-chunk snippets
	// are not exposed by the API.
	results[0].Snippet = summary
	return results, nil
}
