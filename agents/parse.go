package agents

import (
	"fmt"
	"math"
	"strings"

	"github.com/tidwall/gjson"
)

// Per-role output parsing. Backends answer in free text; these pull the
// role's schema out of it or fail with ErrMalformedOutput.

func parseVisualCues(raw string) (VisualCues, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return VisualCues{}, fmt.Errorf("%w: visionary returned empty output", ErrMalformedOutput)
	}

	var cues VisualCues
	var prose []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if detail, ok := stripListMarker(line); ok {
			cues.Details = append(cues.Details, detail)
			continue
		}
		prose = append(prose, line)
	}
	cues.Atmosphere = strings.Join(prose, " ")
	return cues, nil
}

// stripListMarker recognizes "-", "*", "•" and "1."-style prefixes.
func stripListMarker(line string) (string, bool) {
	for _, marker := range []string{"- ", "* ", "• "} {
		if strings.HasPrefix(line, marker) {
			return strings.TrimSpace(line[len(marker):]), true
		}
	}
	for i, r := range line {
		if r >= '0' && r <= '9' {
			continue
		}
		if i > 0 && (r == '.' || r == ')') {
			return strings.TrimSpace(line[i+1:]), true
		}
		break
	}
	return "", false
}

const maxFacts = 12

// parseFacts turns the Investigator's line-per-finding text into
// claim/source pairs. Sources from tool results or grounding are paired
// with claims in order; extra claims keep an empty source.
func parseFacts(raw string, sources []string) (HistoricalFacts, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return HistoricalFacts{}, fmt.Errorf("%w: investigator returned empty output", ErrMalformedOutput)
	}

	out := HistoricalFacts{Raw: text}
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if detail, ok := stripListMarker(line); ok {
			line = detail
		}
		fact := Fact{Claim: line}
		if i := len(out.Facts); i < len(sources) {
			fact.Source = sources[i]
		}
		out.Facts = append(out.Facts, fact)
		if len(out.Facts) == maxFacts {
			break
		}
	}
	if len(out.Facts) == 0 {
		return HistoricalFacts{}, fmt.Errorf("%w: no parseable facts in investigator output", ErrMalformedOutput)
	}
	return out, nil
}

func parseDraft(raw string) (string, error) {
	text := strings.TrimSpace(stripFences(raw))
	if text == "" {
		return "", fmt.Errorf("%w: bard returned empty draft", ErrMalformedOutput)
	}
	return text, nil
}

// parseCritique extracts {score, feedback} from the Critic's reply.
// Models wrap JSON in fences or prose often enough that lenient
// extraction is the rule, but an unusable or out-of-range score is never
// clamped: it is malformed output.
func parseCritique(raw string, iteration int) (Critique, error) {
	clean := strings.TrimSpace(stripFences(raw))
	if start, end := strings.IndexByte(clean, '{'), strings.LastIndexByte(clean, '}'); start >= 0 && end > start {
		clean = clean[start : end+1]
	}

	score := gjson.Get(clean, "score")
	if !score.Exists() || score.Type != gjson.Number {
		return Critique{}, fmt.Errorf("%w: critic response has no numeric score: %q", ErrMalformedOutput, truncate(raw, 120))
	}
	n := score.Num
	if n != math.Trunc(n) || n < 1 || n > 10 {
		return Critique{}, fmt.Errorf("%w: critic score %v outside [1,10]", ErrMalformedOutput, n)
	}

	c := Critique{Iteration: iteration, Score: int(n)}
	fb := gjson.Get(clean, "feedback")
	switch {
	case fb.IsArray():
		for _, item := range fb.Array() {
			if s := strings.TrimSpace(item.String()); s != "" {
				c.Feedback = append(c.Feedback, s)
			}
		}
	case fb.Exists():
		if s := strings.TrimSpace(fb.String()); s != "" {
			c.Feedback = append(c.Feedback, s)
		}
	}
	return c, nil
}

func stripFences(s string) string {
	s = strings.ReplaceAll(s, "```json", "")
	return strings.ReplaceAll(s, "```", "")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
