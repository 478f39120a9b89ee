package ice

// evaluateCompletion implements §4.8, invoked after every check transition
// to Succeeded (and after a nomination flag changes on an already-Succeeded
// check).
func (s *Session) evaluateCompletion() {
	s.unfreezeSiblingFoundations()
	s.cancelNonNominatedForNominatedComponents()
	s.startKeepalivesForNewlyNominated()

	if s.allComponentsNominated() {
		if !s.completed {
			s.completed = true
			s.checklist.state = ChecklistCompleted
			if s.cb.OnIceComplete != nil {
				s.cb.OnIceComplete(true)
			}
		}
		return
	}

	if s.checklist.allTerminal() {
		if !s.completed {
			s.completed = true
			s.checklist.state = ChecklistFailed
			if s.cb.OnIceComplete != nil {
				s.cb.OnIceComplete(false)
			}
		}
	}
}

// unfreezeSiblingFoundations implements the §4.8 unfreezing rule: on
// component-1 success, every Frozen check sharing the succeeded check's
// foundation but targeting a different component moves to Waiting, and the
// scheduler is re-armed if it had gone idle.
func (s *Session) unfreezeSiblingFoundations() {
	for _, idx := range s.checklist.valid {
		succeeded := s.checklist.checks[idx]
		if succeeded.componentID() != 1 {
			continue
		}
		unfroze := false
		for _, c := range s.checklist.checks {
			if c.State == Frozen && c.foundation == succeeded.foundation && c.componentID() != 1 {
				c.State = Waiting
				unfroze = true
			}
		}
		if unfroze && !s.sched.armed {
			s.sched.arm()
		}
	}
}

// cancelNonNominatedForNominatedComponents implements §4.8's per-component
// nomination rule: once a component has a nominated Succeeded pair, every
// still-Frozen/Waiting check for that component is cancelled.
func (s *Session) cancelNonNominatedForNominatedComponents() {
	for _, componentID := range s.checklist.componentIDs() {
		if !s.componentHasNominated(componentID) {
			continue
		}
		for _, c := range s.checklist.checks {
			if c.componentID() != componentID {
				continue
			}
			if c.State == Frozen || c.State == Waiting {
				c.State = Failed
				c.ErrCode = "Cancelled"
			}
		}
	}
}

// startKeepalivesForNewlyNominated implements the keepalive supplement
// from SPEC_FULL.md: once a component's Valid List first gains a nominated
// pair, arm a periodic Binding-indication ticker on that component.
func (s *Session) startKeepalivesForNewlyNominated() {
	if s.keepaliveInterval <= 0 {
		return
	}
	for _, componentID := range s.checklist.componentIDs() {
		if s.keepaliveStarted[componentID] || !s.componentHasNominated(componentID) {
			continue
		}
		s.keepaliveStarted[componentID] = true
		comp := s.components[componentID]
		if comp == nil {
			continue
		}
		comp.startKeepalive(s.keepaliveInterval, func() {
			s.sendKeepalive(componentID)
		})
	}
}

func (s *Session) componentHasNominated(componentID int) bool {
	for _, c := range s.checklist.validChecksForComponent(componentID) {
		if c.Nominated {
			return true
		}
	}
	return false
}

// allComponentsNominated implements §4.8's overall-success condition: every
// component has at least one nominated Succeeded pair in the Valid List.
func (s *Session) allComponentsNominated() bool {
	ids := s.checklist.componentIDs()
	if len(ids) == 0 {
		return false
	}
	for _, id := range ids {
		if !s.componentHasNominated(id) {
			return false
		}
	}
	return true
}
