package agents

// VisualCues is the Visionary's reading of the uploaded image: loose
// atmosphere prose plus the concrete details worth weaving into a myth.
// Produced once per run.
type VisualCues struct {
	Atmosphere string   `json:"atmosphere"`
	Details    []string `json:"details"`
}

// Fact is one verified claim with the source it came from, when known.
type Fact struct {
	Claim  string `json:"claim"`
	Source string `json:"source,omitempty"`
}

// HistoricalFacts is the Investigator's output. Raw keeps the unparsed
// model text for the trace panel. Produced once per run.
type HistoricalFacts struct {
	Facts []Fact `json:"facts"`
	Raw   string `json:"raw"`
}

// ContextPackage is the compacted merge of cues and facts handed to the
// Bard. Tokens is the estimated backend-unit size of Text.
type ContextPackage struct {
	Text   string `json:"text"`
	Tokens int    `json:"tokens"`
}

// Draft is one Bard attempt, versioned by loop iteration. Superseded
// drafts are kept so the history stays inspectable.
type Draft struct {
	Iteration int    `json:"iteration"`
	Text      string `json:"text"`
}

// Critique is the Critic's judgment of the draft from the same iteration.
type Critique struct {
	Iteration int      `json:"iteration"`
	Score     int      `json:"score"`
	Feedback  []string `json:"feedback"`
}
