package cost

import (
	"sync"
	"time"
)

// Entry records token usage and computed cost for one external-capability
// call.
type Entry struct {
	CallID       string    `json:"call_id"`
	Model        string    `json:"model,omitempty"`
	InputTokens  int64     `json:"input_tokens"`
	OutputTokens int64     `json:"output_tokens"`
	CostUSD      float64   `json:"cost_usd"`
	RecordedAt   time.Time `json:"recorded_at"`
}

// Snapshot is an immutable view of a ledger's accumulated totals.
type Snapshot struct {
	TotalCostUSD      float64 `json:"total_cost_usd"`
	TotalInputTokens  int64   `json:"total_input_tokens"`
	TotalOutputTokens int64   `json:"total_output_tokens"`
	CallCount         int     `json:"call_count"`
	Entries           []Entry `json:"entries,omitempty"`
}

// Ledger accumulates per-call cost entries for the duration of one analysis
// run. It is constructed at run start, passed through the pipeline, and
// discarded after the report is emitted. Record is safe under concurrent
// invocation.
type Ledger struct {
	mu      sync.Mutex
	entries []Entry
}

// NewLedger returns an empty per-run ledger.
func NewLedger() *Ledger {
	return &Ledger{}
}

// Record appends an entry. Entries are never lost or double-counted:
// the append happens under the ledger mutex and the caller's Entry value is
// copied in.
func (l *Ledger) Record(e Entry) {
	if e.RecordedAt.IsZero() {
		e.RecordedAt = time.Now().UTC()
	}
	l.mu.Lock()
	l.entries = append(l.entries, e)
	l.mu.Unlock()
}

// Snapshot returns the current totals plus a copy of the entries.
func (l *Ledger) Snapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()

	snap := Snapshot{
		CallCount: len(l.entries),
		Entries:   make([]Entry, len(l.entries)),
	}
	copy(snap.Entries, l.entries)
	for _, e := range l.entries {
		snap.TotalCostUSD += e.CostUSD
		snap.TotalInputTokens += e.InputTokens
		snap.TotalOutputTokens += e.OutputTokens
	}
	return snap
}
