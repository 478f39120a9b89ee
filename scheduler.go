package ice

import "time"

// DefaultTa is the compile-time pacing interval between outbound checks
// (§6). It is a var, not a const; a non-zero Config.Ta overrides it per
// session.
var DefaultTa = 20 * time.Millisecond

// DefaultMaxChecks is the floor §6 asks for.
const DefaultMaxChecks = 100

// DefaultMaxCandidates bounds each side's candidate table.
const DefaultMaxCandidates = 100

// CheckNameLen bounds generated check identifiers (§6).
const CheckNameLen = 128

// scheduler drives the periodic timer described in §4.5: a single ticker,
// armed exactly once per session while work remains, that picks and
// performs the highest-priority eligible check on every tick.
type scheduler struct {
	ta     time.Duration
	timer  *time.Timer
	armed  bool
	tickFn func()
}

func newScheduler(ta time.Duration, tickFn func()) *scheduler {
	return &scheduler{ta: ta, tickFn: tickFn}
}

// arm schedules exactly one future tick, replacing any pending one. Must be
// called under the session lock (§5: "exactly one periodic timer entry per
// session is armed at a time", §8).
func (s *scheduler) arm() {
	if s.timer != nil {
		s.timer.Stop()
	}
	s.armed = true
	s.timer = time.AfterFunc(s.ta, s.tickFn)
}

// cancel disarms the scheduler; part of destroy's cancellation sequence
// (§5).
func (s *scheduler) cancel() {
	if s.timer != nil {
		s.timer.Stop()
	}
	s.armed = false
}

// nextOrdinaryCheck implements §4.5 step 2: the highest-priority Waiting
// check, or if none, the highest-priority Frozen check. Checks are already
// kept in descending-priority order by the Checklist, so this is a linear
// scan, not a search.
func nextOrdinaryCheck(cl *Checklist) *Check {
	for _, c := range cl.checks {
		if c.State == Waiting {
			return c
		}
	}
	for _, c := range cl.checks {
		if c.State == Frozen {
			return c
		}
	}
	return nil
}

// startChecksUnfreeze implements the §4.5 "On start_checks" unfreezing rule: the
// first check (by priority) goes to Waiting, and so does every other check
// sharing its component id but a different foundation (so at least one
// candidate per foundation on that component gets tried before any
// unfreezing from §4.8 happens).
func startChecksUnfreeze(cl *Checklist) {
	if len(cl.checks) == 0 {
		return
	}
	first := cl.checks[0]
	first.State = Waiting
	for _, c := range cl.checks[1:] {
		if c.componentID() == first.componentID() && c.foundation != first.foundation {
			c.State = Waiting
		}
	}
}
