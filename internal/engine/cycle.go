package engine

import "sync"

// DefaultGuardFlows bounds how many flows the CycleGuard remembers.
const DefaultGuardFlows = 4096

// CycleGuard tracks handled effects per flow to stop feedback loops
// between writing triggers.
//
// A loop occurs when a trigger's own write produces an event that makes
// the same trigger write the same thing again:
//
//	enrollment approved → credits refreshes student → student updated
//	→ (another trigger) touches enrollment → enrollment updated (same content)
//	→ credits would refresh again... ← CYCLE DETECTED
//
// The guard keys each handled event on (trigger, entity, fingerprint)
// within its flow, where the fingerprint hashes the changed content.
// Seen reports whether the key was already handled in this flow.
//
// CRITICAL DISTINCTION from idempotent records:
//   - Content-hashed audit/history ids: "was this event recorded?" (persistent)
//   - Cycle guard: "did this effect already happen in this flow?" (in-memory)
//
// The guard forgets the oldest flow once more than its limit are tracked.
// Losing a flow's history only weakens loop protection for it; the depth
// quota still bounds the cascade.
type CycleGuard struct {
	mu      sync.Mutex
	limit   int
	history map[string]map[string]bool // map[flow]map[key]bool
	order   []string                   // flows in first-seen order
}

// NewCycleGuard creates a guard remembering at most limit flows.
// A non-positive limit uses DefaultGuardFlows.
func NewCycleGuard(limit int) *CycleGuard {
	if limit <= 0 {
		limit = DefaultGuardFlows
	}
	return &CycleGuard{
		limit:   limit,
		history: make(map[string]map[string]bool),
	}
}

func guardKey(trigger, entityID, fingerprint string) string {
	return trigger + ":" + entityID + ":" + fingerprint
}

// Seen checks whether this (trigger, entity, fingerprint) was already
// handled in the flow.
//
// Thread-safe: Can be called concurrently.
func (g *CycleGuard) Seen(flow, trigger, entityID, fingerprint string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.history[flow] == nil {
		return false
	}
	return g.history[flow][guardKey(trigger, entityID, fingerprint)]
}

// Record marks the (trigger, entity, fingerprint) as handled in the flow.
// Called after the handler succeeded.
//
// Thread-safe: Can be called concurrently.
func (g *CycleGuard) Record(flow, trigger, entityID, fingerprint string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.history[flow] == nil {
		g.history[flow] = make(map[string]bool)
		g.order = append(g.order, flow)
		for len(g.order) > g.limit {
			delete(g.history, g.order[0])
			g.order = g.order[1:]
		}
	}
	g.history[flow][guardKey(trigger, entityID, fingerprint)] = true
}

// Flows returns the number of flows with tracked history.
//
// Used for testing and introspection.
func (g *CycleGuard) Flows() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	return len(g.history)
}
