// Package research provides the external fact-lookup tool the
// Investigator role calls mid-generation.
package research

import "context"

// Result is one search hit.
type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// SearchTool answers a single query. A failing search is fatal to the
// call that requested it; there is no partial-result salvage.
type SearchTool interface {
	Search(ctx context.Context, query string) ([]Result, error)
}

// Static returns the same results for every query. It backs the mock
// provider and tests.
type Static struct {
	Results []Result
}

func (s *Static) Search(_ context.Context, query string) ([]Result, error) {
	if len(s.Results) > 0 {
		return s.Results, nil
	}
	return []Result{{
		Title:   "Local archive",
		URL:     "https://example.org/archive",
		Snippet: "No live search configured; query was: " + query,
	}}, nil
}
