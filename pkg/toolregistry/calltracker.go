package toolregistry

import "sync"

// CallTracker enforces "at-most-once per call_id within a single turn"
// (SPEC_FULL §4.2). A fresh CallTracker is created per turn by the
// orchestrator; Claim returns false if call_id was already claimed this
// turn, so a retried or duplicated dispatch is a no-op rather than a
// double-execution.
type CallTracker struct {
	mu      sync.Mutex
	claimed map[string]bool
}

// NewCallTracker builds an empty tracker, scoped to one turn.
func NewCallTracker() *CallTracker {
	return &CallTracker{claimed: map[string]bool{}}
}

// Claim returns true the first time it is called for callID, and false on
// every subsequent call within the same tracker's lifetime.
func (c *CallTracker) Claim(callID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.claimed[callID] {
		return false
	}
	c.claimed[callID] = true
	return true
}
