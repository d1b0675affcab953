package agents

import (
	"fmt"
	"strings"

	"local_mythmaker/backend"
	"local_mythmaker/imaging"
)

// Role is one of the four fixed agent personas. The set is closed; all
// dispatch is by switch, never by registry.
type Role string

const (
	RoleVisionary    Role = "visionary"
	RoleInvestigator Role = "investigator"
	RoleBard         Role = "bard"
	RoleCritic       Role = "critic"
)

// roleTemperature matches the original pipeline's generation settings.
const roleTemperature = 0.7

// Instruction returns the fixed system instruction for the role.
func (r Role) Instruction() string {
	switch r {
	case RoleVisionary:
		return "You are The Visionary. Analyze images and list 3 specific, vivid visual details that look spooky or mysterious."
	case RoleInvestigator:
		return "You are The Investigator. You MUST use the web_search tool to find verified historical facts. " +
			"Focus on: dark history, crimes, local legends, and specific dates. " +
			"Do NOT make up facts. If you can't find info, state that."
	case RoleBard:
		return "You are The Local Mythmaker. Write a short 'Micro-Myth' (max 120 words) weaving verified history into a spooky narrative, in first person to the user."
	case RoleCritic:
		return "You are the Editor. Evaluate the myth for spookiness and historical accuracy integration. " +
			"Return ONLY a JSON object: {\"score\": int (1-10), \"feedback\": \"string\"}. " +
			"Do not output markdown."
	default:
		return ""
	}
}

const webSearchToolName = "web_search"

func webSearchTool() backend.ToolDecl {
	return backend.ToolDecl{
		Name:        webSearchToolName,
		Description: "Search the web for verified historical information about a place.",
		Parameters: map[string]string{
			"query": "The search query.",
		},
	}
}

// Prompt builders. Each is deterministic in its inputs; randomness lives
// only on the model side.

func visionaryRequest(art imaging.Artifact) *backend.Request {
	return &backend.Request{
		System:      RoleVisionary.Instruction(),
		Temperature: roleTemperature,
		Contents: []backend.Content{{
			Role: backend.RoleUser,
			Parts: []backend.Part{
				{Inline: &backend.Inline{MIME: art.MIME, Data: art.Data}},
				{Text: "Describe the atmosphere."},
			},
		}},
	}
}

func investigatorRequest(location string) *backend.Request {
	return &backend.Request{
		System:      RoleInvestigator.Instruction(),
		Temperature: roleTemperature,
		Tools:       []backend.ToolDecl{webSearchTool()},
		Contents: []backend.Content{{
			Role:  backend.RoleUser,
			Parts: []backend.Part{{Text: fmt.Sprintf("Find specific dark history and ghost stories for: %s", location)}},
		}},
	}
}

// bardRequest feeds the full feedback history on every rewrite, not just
// the latest critique.
func bardRequest(pkg ContextPackage, history []Critique) *backend.Request {
	var sb strings.Builder
	if len(history) == 0 {
		sb.WriteString("Write the myth.")
	} else {
		sb.WriteString("Rewrite the myth. Address every point of prior criticism:\n")
		for _, c := range history {
			for _, item := range c.Feedback {
				fmt.Fprintf(&sb, "- (attempt %d) %s\n", c.Iteration+1, item)
			}
		}
	}
	sb.WriteString("\n\nCONTEXT:\n")
	sb.WriteString(pkg.Text)

	return &backend.Request{
		System:      RoleBard.Instruction(),
		Temperature: roleTemperature,
		Contents: []backend.Content{{
			Role:  backend.RoleUser,
			Parts: []backend.Part{{Text: sb.String()}},
		}},
	}
}

func criticRequest(d Draft) *backend.Request {
	return &backend.Request{
		System:      RoleCritic.Instruction(),
		Temperature: roleTemperature,
		Contents: []backend.Content{{
			Role:  backend.RoleUser,
			Parts: []backend.Part{{Text: "Evaluate:\n" + d.Text}},
		}},
	}
}
