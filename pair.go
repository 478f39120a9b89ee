package ice

import "fmt"

// CheckState is a closed enumeration of the states a Check moves through
// (§3). Transitions are strictly monotonic: Frozen -> Waiting -> InProgress
// -> {Succeeded, Failed}; never re-entered once terminal (§5, §8).
type CheckState int

const (
	Frozen CheckState = iota
	Waiting
	InProgress
	Succeeded
	Failed
)

func (s CheckState) String() string {
	switch s {
	case Frozen:
		return "Frozen"
	case Waiting:
		return "Waiting"
	case InProgress:
		return "InProgress"
	case Succeeded:
		return "Succeeded"
	case Failed:
		return "Failed"
	default:
		return "Unknown"
	}
}

func (s CheckState) terminal() bool {
	return s == Succeeded || s == Failed
}

// Check (a.k.a. candidate pair) is the unit of probing: an ordered pairing
// of one local with one remote candidate (§3, GLOSSARY).
type Check struct {
	id int

	Local  Candidate
	Remote Candidate

	// foundation is the pair foundation used for unfreezing (§4.8):
	// Local.Foundation + "/" + Remote.Foundation.
	foundation string

	Priority uint64
	State    CheckState

	// Nominated is set when the controlling side attached USE-CANDIDATE to
	// the probe that succeeded on this pair, or an inbound probe bearing
	// USE-CANDIDATE succeeded (§3).
	Nominated bool

	// ErrCode carries the STUN-layer status (or a cancellation marker) once
	// State == Failed (§7).
	ErrCode string
}

func (c *Check) componentID() int {
	return c.Local.ComponentID
}

func (c *Check) String() string {
	return fmt.Sprintf("check#%d %s -> %s [%s]", c.id, c.Local.Address, c.Remote.Address, c.State)
}

// newCheck pairs local and remote, computing pair priority and foundation.
// role determines which side contributes G (controlling) vs D (controlled)
// to the priority formula in §3 so that both peers derive the identical
// total order independently.
func newCheck(id int, local, remote Candidate, role Role) *Check {
	if local.ComponentID != remote.ComponentID {
		panic("ice: paired candidates have different component ids")
	}
	return &Check{
		id:         id,
		Local:      local,
		Remote:     remote,
		foundation: local.Foundation + "/" + remote.Foundation,
		Priority:   pairPriority(local.Priority, remote.Priority, role),
		State:      Frozen,
	}
}

// pairPriority implements §3:
//
//	pair_prio = 2^32 * min(G,D) + 2*max(G,D) + (G>D ? 1 : 0)
//
// where G is the controlling side's candidate priority and D is the
// controlled side's. This total order is identical on both peers as long as
// both compute G and D the same way, which is why it is keyed off role
// rather off "local"/"remote".
func pairPriority(localPriority, remotePriority uint32, role Role) uint64 {
	var g, d uint64
	if role == Controlling {
		g, d = uint64(localPriority), uint64(remotePriority)
	} else {
		g, d = uint64(remotePriority), uint64(localPriority)
	}
	min, max := g, d
	if max < min {
		min, max = max, min
	}
	var b uint64
	if g > d {
		b = 1
	}
	return min<<32 + max<<1 + b
}

// Role is the ICE agent's role for this session (§4.1).
type Role int

const (
	Controlling Role = iota
	Controlled
)

func (r Role) String() string {
	if r == Controlling {
		return "controlling"
	}
	return "controlled"
}
