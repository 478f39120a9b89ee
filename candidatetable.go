package ice

import "sync"

// candidateTable holds one side's candidates (local or remote) for a single
// component set, enforcing MaxCandidates and the redundancy-elimination
// invariant from §3: two *local* candidates with equal (address,
// base_address) are redundant, and the lower-priority one is dropped.
type candidateTable struct {
	mu            sync.RWMutex
	candidates    []Candidate
	maxCandidates int
	local         bool // true for a local table, which applies redundancy elimination
}

func newCandidateTable(local bool, max int) *candidateTable {
	return &candidateTable{maxCandidates: max, local: local}
}

// add inserts c, returning the (possibly de-duplicated) set of candidates
// added: empty if c was dropped as redundant, or a slice of length 1
// otherwise. Returns TooManyCandidates if the table is already full.
func (t *candidateTable) add(c Candidate) ([]Candidate, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.local {
		for i, existing := range t.candidates {
			if existing.Address == c.Address && existing.BaseAddress == c.BaseAddress {
				if c.Priority <= existing.Priority {
					// c is redundant; keep the existing, higher-priority one.
					return nil, nil
				}
				// Replace the lower-priority redundant candidate.
				t.candidates[i] = c
				return []Candidate{c}, nil
			}
		}
	}

	if len(t.candidates) >= t.maxCandidates {
		return nil, newError(TooManyCandidates, "limit is %d", t.maxCandidates)
	}

	t.candidates = append(t.candidates, c)
	return []Candidate{c}, nil
}

func (t *candidateTable) all() []Candidate {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]Candidate, len(t.candidates))
	copy(out, t.candidates)
	return out
}

func (t *candidateTable) forComponent(componentID int) []Candidate {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var out []Candidate
	for _, c := range t.candidates {
		if c.ComponentID == componentID {
			out = append(out, c)
		}
	}
	return out
}

// findByBaseAddress returns the candidate whose BaseAddress equals addr, used to
// locate the local candidate a component's bound socket corresponds to
// (§4.7 step 6).
func (t *candidateTable) findByBaseAddress(addr TransportAddress) (Candidate, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for _, c := range t.candidates {
		if c.BaseAddress == addr {
			return c, true
		}
	}
	return Candidate{}, false
}

// findByAddress returns the candidate whose Address equals addr, used to
// recognize a remote source address as an already-known remote candidate
// (§4.7 step 5).
func (t *candidateTable) findByAddress(addr TransportAddress) (Candidate, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for _, c := range t.candidates {
		if c.Address == addr {
			return c, true
		}
	}
	return Candidate{}, false
}
