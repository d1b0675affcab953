package trace

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ToolCall records one search round-trip made on behalf of the backend.
type ToolCall struct {
	Query   string `json:"query"`
	Results int    `json:"results"`
}

// Record captures a single backend call: who asked, what was asked, and
// what came back. Records are immutable once appended.
type Record struct {
	ID            string        `json:"id"`
	Role          string        `json:"role"`
	PromptSummary string        `json:"prompt_summary"`
	Output        string        `json:"output"`
	ToolCalls     []ToolCall    `json:"tool_calls,omitempty"`
	Err           string        `json:"error,omitempty"`
	Start         time.Time     `json:"start"`
	Duration      time.Duration `json:"duration_ms"`
}

// Recorder is an append-only log of backend calls, ordered by call start.
// Appends from concurrent callers are atomic per record.
type Recorder struct {
	mu      sync.Mutex
	records []Record
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

// Append publishes a record. An empty ID is filled in here so callers
// don't have to care about identity.
func (r *Recorder) Append(rec Record) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if len(rec.ToolCalls) > 0 {
		tc := make([]ToolCall, len(rec.ToolCalls))
		copy(tc, rec.ToolCalls)
		rec.ToolCalls = tc
	}
	r.mu.Lock()
	r.records = append(r.records, rec)
	r.mu.Unlock()
}

// Snapshot returns a copy of all records ordered by call start. Appends
// happen at call completion, so concurrent calls can land out of start
// order; the stable sort restores it. Mutating the returned slice does
// not affect the recorder.
func (r *Recorder) Snapshot() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Record, len(r.records))
	copy(out, r.records)
	for i := range out {
		if len(out[i].ToolCalls) > 0 {
			tc := make([]ToolCall, len(out[i].ToolCalls))
			copy(tc, out[i].ToolCalls)
			out[i].ToolCalls = tc
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out
}

// Len reports how many records have been appended so far.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}
