package telemetry

import (
	"fmt"
	"log/slog"
	"sync"
)

// Violation records an agent that could not be simulated normally,
// typically because its species id no longer resolves.
type Violation struct {
	Tick    int32  `csv:"tick"`
	AgentID uint32 `csv:"agent_id"`
	Species int    `csv:"species"`
	Reason  string `csv:"reason"`
}

func (v Violation) String() string {
	return fmt.Sprintf("tick %d agent %d species %d: %s", v.Tick, v.AgentID, v.Species, v.Reason)
}

// LogValue implements slog.LogValuer.
func (v Violation) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("tick", int(v.Tick)),
		slog.Int("agent_id", int(v.AgentID)),
		slog.Int("species", v.Species),
		slog.String("reason", v.Reason),
	)
}

// Diagnostics keeps the most recent violations in a fixed ring plus a
// running total. Safe for concurrent Report calls.
type Diagnostics struct {
	mu     sync.Mutex
	ring   []Violation
	next   int
	filled bool
	total  int
}

// NewDiagnostics creates a ring holding up to capacity violations.
func NewDiagnostics(capacity int) *Diagnostics {
	if capacity < 1 {
		capacity = 64
	}
	return &Diagnostics{ring: make([]Violation, capacity)}
}

// Report appends v, overwriting the oldest entry when full.
func (d *Diagnostics) Report(v Violation) {
	d.mu.Lock()
	d.ring[d.next] = v
	d.next++
	if d.next == len(d.ring) {
		d.next = 0
		d.filled = true
	}
	d.total++
	d.mu.Unlock()
}

// Total returns the number of violations reported since the last Reset.
func (d *Diagnostics) Total() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.total
}

// Recent returns the retained violations, oldest first.
func (d *Diagnostics) Recent() []Violation {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.filled {
		return append([]Violation(nil), d.ring[:d.next]...)
	}
	out := make([]Violation, 0, len(d.ring))
	out = append(out, d.ring[d.next:]...)
	return append(out, d.ring[:d.next]...)
}

// Drain returns the retained violations and clears the ring. The total is
// kept.
func (d *Diagnostics) Drain() []Violation {
	out := d.Recent()
	d.mu.Lock()
	d.next = 0
	d.filled = false
	d.mu.Unlock()
	return out
}

// Reset clears the ring and the total.
func (d *Diagnostics) Reset() {
	d.mu.Lock()
	d.next = 0
	d.filled = false
	d.total = 0
	d.mu.Unlock()
}
