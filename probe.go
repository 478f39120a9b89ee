package ice

import (
	"net"

	"github.com/icelink/agent/stunmsg"
)

// performCheck implements §4.5's "Perform": transition to InProgress and
// send the probe (§4.6).
func (s *Session) performCheck(c *Check) {
	c.State = InProgress
	s.sendProbe(c, s.shouldUseCandidate(c), false)
}

// shouldUseCandidate decides whether this probe carries USE-CANDIDATE,
// implementing whichever NominationMode the session was configured with
// (resolves the Open Question in spec §9).
func (s *Session) shouldUseCandidate(c *Check) bool {
	if s.role != Controlling {
		return false
	}
	switch s.nomination {
	case NominateAggressive:
		return true
	default: // NominateRegular: ordinary probes never nominate directly.
		return false
	}
}

// sendProbe builds and sends one Binding request for c. nominationProbe
// marks a regular-nomination re-probe, which does not advance c.State.
func (s *Session) sendProbe(c *Check, useCandidate bool, nominationProbe bool) {
	comp, ok := s.components[c.Local.ComponentID]
	if !ok {
		if !nominationProbe {
			c.State = Failed
			c.ErrCode = "NoComponent"
		}
		return
	}

	txID, err := stunmsg.NewTransactionID()
	if err != nil {
		if !nominationProbe {
			c.State = Failed
			c.ErrCode = "TransactionIDFailure"
		}
		return
	}

	role := stunmsg.RoleControlling
	if s.role == Controlled {
		role = stunmsg.RoleControlled
	}

	outgoing := s.credAdapter.getOutgoingCredential(false)
	req, err := stunmsg.BuildBindingRequest(
		txID,
		outgoing.username,
		c.Local.peerReflexivePriority(),
		useCandidate,
		role,
		s.tiebreaker,
		outgoing.password,
	)
	if err != nil {
		if !nominationProbe {
			c.State = Failed
			c.ErrCode = "BuildRequestFailure"
		}
		return
	}

	s.pendingByTx[stunTxKey(txID)] = &pendingProbe{check: c, nominationProbe: nominationProbe}

	dst := c.Remote.Address.netAddr()
	if _, err := comp.subsession.SendRequest(dst, req); err != nil {
		delete(s.pendingByTx, stunTxKey(txID))
		if !nominationProbe {
			c.State = Failed
			c.ErrCode = "SendFailure"
		}
		return
	}
	if s.cb.OnSendPkt != nil {
		s.cb.OnSendPkt(c.Local.ComponentID, req.Raw, dst)
	}
}

// handleRequestComplete dispatches a finished transaction to the ordinary
// or nomination-probe response handler.
func (s *Session) handleRequestComplete(tx *stunmsg.Transaction, resp *stunmsg.Message, src net.Addr, err error) {
	key := stunTxKey(tx.ID)

	if ch, ok := s.gatherWaiters[key]; ok {
		delete(s.gatherWaiters, key)
		ch <- gatherResult{resp: resp, err: err}
		return
	}

	pp, ok := s.pendingByTx[key]
	if !ok {
		return
	}
	delete(s.pendingByTx, key)

	if pp.nominationProbe {
		s.processNominationResponse(pp.check, resp, src, err)
		return
	}
	s.processResponse(pp.check, tx, resp, src, err)
}

// processResponse implements §4.6's "On transaction completion" for an
// ordinary probe.
func (s *Session) processResponse(c *Check, tx *stunmsg.Transaction, resp *stunmsg.Message, src net.Addr, err error) {
	if c.State.terminal() {
		// Idempotence law (§8): a second completion of an already-terminal
		// check is a no-op.
		return
	}

	if err != nil {
		c.State = Failed
		if se, ok := err.(*stunmsg.StatusError); ok {
			c.ErrCode = se.Error()
		} else {
			c.ErrCode = err.Error()
		}
		return
	}

	ip, port, ok := resp.XORMappedAddress()
	if !ok {
		c.State = Failed
		c.ErrCode = "NoXorMap"
		return
	}

	// Validate source-address match: the response must have come from the
	// address the request was sent to (§4.6).
	if !addrEqualHostPort(src, tx.Dst) {
		c.State = Failed
		c.ErrCode = "SourceAddressMismatch"
		return
	}

	mapped := TransportAddress{
		protocol: c.Local.Address.protocol,
		ip:       ip.String(),
		port:     port,
		family:   addressFamily(ip),
	}

	if existing, found := s.local.findByAddress(mapped); found {
		c.Local = existing
	} else {
		peer := makePeerReflexiveCandidate(c.Local.ComponentID, mapped, c.Local.BaseAddress, c.Local.peerReflexivePriority())
		if _, err := s.local.add(peer); err == nil {
			c.Local = peer
		}
	}

	c.State = Succeeded
	if s.role == Controlling && s.nomination == NominateAggressive {
		c.Nominated = true
	}
	s.checklist.addValid(c)

	if s.role == Controlling && s.nomination == NominateRegular && !c.Nominated {
		s.maybeStartNominationProbe(c)
	}

	s.evaluateCompletion()
}

// maybeStartNominationProbe implements the regular-nomination re-probe
// (SUPPLEMENTED FEATURES, SPEC_FULL.md): once a pair succeeds and no pair
// is yet nominated for its component, send a second Binding request on
// that exact pair carrying USE-CANDIDATE.
func (s *Session) maybeStartNominationProbe(c *Check) {
	for _, v := range s.checklist.validChecksForComponent(c.componentID()) {
		if v.Nominated {
			return
		}
	}
	s.sendProbe(c, true, true)
}

// processNominationResponse completes a regular-nomination re-probe: on
// success the pair becomes the nominated one; on failure the pair is left
// Succeeded but un-nominated. No further nomination probe is sent on that
// pair: a new one is only started when another pair of the same component
// succeeds (processResponse).
func (s *Session) processNominationResponse(c *Check, resp *stunmsg.Message, src net.Addr, err error) {
	if err != nil || c.State != Succeeded {
		return
	}
	if _, _, ok := resp.XORMappedAddress(); !ok {
		return
	}
	c.Nominated = true
	s.evaluateCompletion()
}

func addrEqualHostPort(a, b net.Addr) bool {
	if a == nil || b == nil {
		return a == b
	}
	ta, tb := makeTransportAddress(a), makeTransportAddress(b)
	return ta.ip == tb.ip && ta.port == tb.port
}

// handleInboundRequest implements §4.7, the inbound Binding-request
// pipeline.
func (s *Session) handleInboundRequest(componentID int, m *stunmsg.Message, src net.Addr) {
	comp := s.components[componentID]

	if !m.IsBindingMethod() {
		s.sendErrorResponse(comp, m, src, 400, "Bad Request")
		return
	}

	username, _ := m.Username()
	password, ok := s.credAdapter.getPasswordForIncoming(true, username)
	if !ok || !m.CheckIntegrity(password) {
		// Auth mismatch: dropped silently, anti-amplification (§7).
		return
	}

	if len(s.remote.all()) == 0 {
		// No remote candidates known yet; peer will retransmit (§4.7 step 3).
		return
	}

	s.sendSuccessResponse(comp, m, src)

	srcAddr := makeTransportAddress(src)
	remote, found := s.remote.findByAddress(srcAddr)
	if !found {
		priority, _ := m.GetPriority()
		remote = Candidate{
			ComponentID: componentID,
			Type:        PeerReflexive,
			Foundation:  "peer-" + randomFoundationSuffix(),
			Address:     srcAddr,
			BaseAddress: srcAddr,
			Priority:    priority,
		}
		if _, err := s.remote.add(remote); err != nil {
			return
		}
	}

	local, found := s.local.findByBaseAddress(comp.boundAddress)
	if !found {
		return
	}

	useCandidate := m.HasUseCandidate()

	c := s.checklist.findByAddresses(local.BaseAddress, remote.Address)
	if c == nil {
		if len(s.checklist.checks) >= s.checklist.maxChecks {
			s.log.Warnf("ice: dropping inbound triggered check, check list full on component %d", componentID)
			return
		}
		c = newCheck(s.checklist.nextID, local, remote, s.role)
		s.checklist.nextID++
		c.State = Waiting
		c.Nominated = useCandidate
		s.checklist.checks = append(s.checklist.checks, c)
		s.performTriggeredCheck(c)
		return
	}

	switch c.State {
	case Frozen, Waiting:
		c.Nominated = c.Nominated || useCandidate
		s.performTriggeredCheck(c)
	case InProgress:
		c.Nominated = c.Nominated || useCandidate
	case Succeeded:
		c.Nominated = c.Nominated || useCandidate
		s.evaluateCompletion()
	case Failed:
		// Leave terminal (§4.7 step 7).
	}
}

func (s *Session) sendSuccessResponse(comp *Component, req *stunmsg.Message, src net.Addr) {
	outgoing := s.credAdapter.getOutgoingCredential(true)
	resp, err := stunmsg.BuildBindingSuccess(req, src, outgoing.password)
	if err != nil {
		return
	}
	data := resp.Raw
	if err := writeTo(comp, data, src); err != nil {
		s.log.Warnf("ice: failed to send binding success: %v", err)
		return
	}
	if s.cb.OnSendPkt != nil {
		s.cb.OnSendPkt(comp.ID, data, src)
	}
}

func (s *Session) sendErrorResponse(comp *Component, req *stunmsg.Message, dst net.Addr, code int, reason string) {
	if comp == nil {
		return
	}
	resp, err := stunmsg.BuildBindingError(req, code, reason)
	if err != nil {
		return
	}
	_ = writeTo(comp, resp.Raw, dst)
}

// sendKeepalive sends a Binding indication down componentID's nominated
// pair (SPEC_FULL.md's keepalive supplement). Runs on the keepalive
// ticker's own goroutine, so it takes the session lock itself.
func (s *Session) sendKeepalive(componentID int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.destroyed {
		return
	}
	comp, ok := s.components[componentID]
	if !ok {
		return
	}
	var pair *Check
	for _, c := range s.checklist.validChecksForComponent(componentID) {
		if c.Nominated {
			pair = c
			break
		}
	}
	if pair == nil {
		return
	}

	ind, err := stunmsg.BuildBindingIndication()
	if err != nil {
		return
	}
	_, _ = comp.conn.WriteTo(ind.Raw, pair.Remote.Address.netAddr())
}

func writeTo(comp *Component, data []byte, dst net.Addr) error {
	if comp == nil || dst == nil {
		return nil
	}
	_, err := comp.conn.WriteTo(data, dst)
	return err
}
