package orchestrator

import (
	"fmt"
	"strings"

	"local_mythmaker/agents"
)

// estimateTokens is the usual ~4-chars-per-token heuristic; exact
// tokenization is provider-specific and not worth a dependency.
func estimateTokens(s string) int {
	return (len(s) + 3) / 4
}

// Compact merges visual cues and historical facts into one bounded
// context package. Deterministic and side-effect-free: the same inputs
// always yield a byte-identical package.
//
// When the budget forces truncation, grounding wins over flavor: facts
// with sources go first, then concrete visual details, then atmosphere
// prose, which is itself cut to whatever budget remains.
func Compact(location string, cues agents.VisualCues, facts agents.HistoricalFacts, budget int) (agents.ContextPackage, error) {
	if len(facts.Facts) == 0 && len(cues.Details) == 0 && cues.Atmosphere == "" {
		return agents.ContextPackage{}, fmt.Errorf("%w: nothing to compact; no facts and no cues", ErrConfiguration)
	}

	header := fmt.Sprintf("LOCATION: %s\n", location)
	remaining := budget - estimateTokens(header)

	var entries []string
	for _, f := range facts.Facts {
		line := "FACT: " + f.Claim
		if f.Source != "" {
			line += " (source: " + f.Source + ")"
		}
		entries = append(entries, line)
	}
	for _, d := range cues.Details {
		entries = append(entries, "VISUAL: "+d)
	}

	var kept []string
	for _, e := range entries {
		cost := estimateTokens(e + "\n")
		if cost > remaining {
			break
		}
		kept = append(kept, e)
		remaining -= cost
	}

	// A budget too tight for a whole entry still has to carry grounding
	// before any flavor text: force the first fact or detail in,
	// truncated to fit.
	if len(kept) == 0 && len(entries) > 0 {
		if max := remaining*4 - 1; max > 0 {
			e := entries[0]
			if len(e) > max {
				e = strings.TrimSpace(e[:max])
			}
			if e != "" {
				kept = append(kept, e)
				remaining = 0
			}
		}
	}

	if prose := strings.TrimSpace(cues.Atmosphere); prose != "" {
		line := "ATMOSPHERE: " + prose
		if cost := estimateTokens(line + "\n"); cost > remaining {
			// Cut the prose to the remaining character budget instead of
			// dropping it whole, so some flavor survives when possible.
			max := remaining*4 - len("ATMOSPHERE: \n")
			if max > 0 && max < len(prose) {
				line = "ATMOSPHERE: " + strings.TrimSpace(prose[:max])
			} else if max <= 0 {
				line = ""
			}
		}
		if line != "" {
			kept = append(kept, line)
		}
	}

	if len(kept) == 0 {
		return agents.ContextPackage{}, fmt.Errorf("%w: context budget %d cannot fit any content", ErrConfiguration, budget)
	}

	text := header + strings.Join(kept, "\n") + "\n"
	return agents.ContextPackage{Text: text, Tokens: estimateTokens(text)}, nil
}
