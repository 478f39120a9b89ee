package ice

import "sort"

// ChecklistState is the overall state of a check list (§4.5 step 3, §4.8).
type ChecklistState int

const (
	ChecklistRunning ChecklistState = iota
	ChecklistCompleted
	ChecklistFailed
)

func (s ChecklistState) String() string {
	switch s {
	case ChecklistRunning:
		return "Running"
	case ChecklistCompleted:
		return "Completed"
	case ChecklistFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// Checklist is the ordered, pruned list of Checks, plus the append-only
// Valid List projection (§3, §4.4). It holds no lock of its own: the
// Session's single lock serializes every access (§5).
type Checklist struct {
	maxChecks int

	checks []*Check
	nextID int

	// valid holds indices into checks whose state reached Succeeded,
	// re-sorted by descending pair priority on every insertion (§3).
	valid []int

	triggered []*Check

	state ChecklistState

	// nextToCheck is not read by the scheduler: nextOrdinaryCheck always
	// scans checks from the head (§4.5 step 2).
	nextToCheck int
}

func newChecklist(maxChecks int) *Checklist {
	return &Checklist{maxChecks: maxChecks, state: ChecklistRunning}
}

// build implements §4.4: pair every (l, r) with matching component and
// address family, sort descending by priority (stable, so ties keep
// insertion order), prune, and cap at MaxChecks.
func (cl *Checklist) build(locals, remotes []Candidate, role Role) error {
	existing := make(map[pruneKey]bool, len(cl.checks))
	for _, c := range cl.checks {
		existing[pruneKey{c.Local.effectiveAddress(), c.Remote.Address}] = true
	}

	var fresh []*Check
	for _, l := range locals {
		for _, r := range remotes {
			if !canPair(l, r) {
				continue
			}
			if existing[pruneKey{l.effectiveAddress(), r.Address}] {
				// A trickled remote candidate that re-pairs onto an address
				// already covered by an earlier build() call (§4.4): skip
				// instead of adding a duplicate Frozen check alongside a
				// check that may already be in flight.
				continue
			}
			fresh = append(fresh, newCheck(cl.nextID, l, r, role))
			cl.nextID++
		}
	}

	all := append(cl.checks, fresh...)
	all = sortChecks(all)
	all = pruneChecks(all)

	if len(all) > cl.maxChecks {
		return newError(TooManyChecks, "limit is %d, got %d", cl.maxChecks, len(all))
	}

	cl.checks = all
	return nil
}

// canPair implements the §4.4 step 1 pairing rule: matching component id and
// address family (family equality stands in for "compatible address
// family"; §1 explicitly scopes out IPv6-specific handling beyond this).
func canPair(l, r Candidate) bool {
	return l.ComponentID == r.ComponentID &&
		l.Address.protocol == r.Address.protocol &&
		l.Address.family == r.Address.family &&
		l.Address.family != Unresolved
}

func sortChecks(checks []*Check) []*Check {
	sort.SliceStable(checks, func(i, j int) bool {
		return checks[i].Priority > checks[j].Priority
	})
	return checks
}

// pruneChecks implements §4.4 step 3 / §3: replace a ServerReflexive local
// with its base for comparison purposes, then drop any lower-priority check
// whose (effective local address, remote address) duplicates a
// higher-priority one. Checks already past Frozen are never pruned, so an
// in-flight or completed probe is never silently discarded out from under
// itself.
func pruneChecks(checks []*Check) []*Check {
	out := make([]*Check, 0, len(checks))
	seen := make(map[pruneKey]bool, len(checks))

	for _, c := range checks {
		if c.State != Frozen {
			out = append(out, c)
			continue
		}
		key := pruneKey{c.Local.effectiveAddress(), c.Remote.Address}
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, c)
	}
	return out
}

type pruneKey struct {
	local  TransportAddress
	remote TransportAddress
}

// findByAddresses returns the check pairing the local candidate based at
// localBase with the remote candidate at remoteAddr (§4.7 step 7).
func (cl *Checklist) findByAddresses(localBase, remoteAddr TransportAddress) *Check {
	for _, c := range cl.checks {
		if c.Local.BaseAddress == localBase && c.Remote.Address == remoteAddr {
			return c
		}
	}
	return nil
}

// addValid appends idx (must name a Succeeded check) to the Valid List and
// re-sorts it by descending pair priority (§3, §4.6).
func (cl *Checklist) addValid(c *Check) {
	idx := -1
	for i, existing := range cl.checks {
		if existing == c {
			idx = i
			break
		}
	}
	if idx < 0 {
		return
	}
	cl.valid = append(cl.valid, idx)
	sort.SliceStable(cl.valid, func(i, j int) bool {
		return cl.checks[cl.valid[i]].Priority > cl.checks[cl.valid[j]].Priority
	})
}

func (cl *Checklist) validChecksForComponent(componentID int) []*Check {
	var out []*Check
	for _, idx := range cl.valid {
		c := cl.checks[idx]
		if c.componentID() == componentID {
			out = append(out, c)
		}
	}
	return out
}

func (cl *Checklist) componentIDs() []int {
	seen := map[int]bool{}
	var ids []int
	for _, c := range cl.checks {
		if !seen[c.componentID()] {
			seen[c.componentID()] = true
			ids = append(ids, c.componentID())
		}
	}
	return ids
}

// allTerminal reports whether every check has reached Succeeded or Failed
// (§4.5 step 3, §4.8 overall-failure condition).
func (cl *Checklist) allTerminal() bool {
	for _, c := range cl.checks {
		if !c.State.terminal() {
			return false
		}
	}
	return true
}
