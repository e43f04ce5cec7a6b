package engine

// PathRequestRegistry correlates outstanding pathfinder requests to the
// per-agent task state awaiting their result (§4.10). It is process-wide
// shared state (§5) but every mutation happens on the engine's single tick
// goroutine, so a plain map needs no locking.
//
// Entries are added by GetWalkingPath on submission and removed either by
// the world's completion callback or by teardown (invariant 6: a request id
// appears here iff its owning per-agent state is still active and awaiting
// a result).
type PathRequestRegistry struct {
	entries map[PathRequestID]*AgentTaskState
}

func NewPathRequestRegistry() *PathRequestRegistry {
	return &PathRequestRegistry{entries: map[PathRequestID]*AgentTaskState{}}
}

func (r *PathRequestRegistry) Register(id PathRequestID, st *AgentTaskState) {
	r.entries[id] = st
}

// Remove deletes an entry without inspecting it (teardown, or a normal
// completion already processed it).
func (r *PathRequestRegistry) Remove(id PathRequestID) {
	delete(r.entries, id)
}

// Lookup finds the per-agent state for id. A miss is not an error: it means
// the branch was torn down between the request and the world's callback
// (§5, cancellation semantics; §8 property 7).
func (r *PathRequestRegistry) Lookup(id PathRequestID) (*AgentTaskState, bool) {
	st, ok := r.entries[id]
	return st, ok
}

// RemoveOwnedBy removes every entry whose value matches st, used by teardown
// when a branch with possibly-stale registrations is removed and the exact
// request id is not at hand.
func (r *PathRequestRegistry) RemoveOwnedBy(st *AgentTaskState) {
	for id, v := range r.entries {
		if v == st {
			delete(r.entries, id)
		}
	}
}
