package ice

import (
	"time"

	"github.com/icelink/agent/stunmsg"
)

// GatherServerReflexive sends a Binding request to server over
// componentID's socket and, on a successful response, installs the mapped
// address as a ServerReflexive candidate. §4.2 delegates reflexive
// gathering to an external collaborator; this reuses the component's
// existing socket and the stunmsg codec rather than a separate STUN client
// dependency.
func (s *Session) GatherServerReflexive(componentID int, server TransportAddress, timeout time.Duration) error {
	s.mu.Lock()
	comp, ok := s.components[componentID]
	if !ok {
		s.mu.Unlock()
		return newError(InvalidArgument, "unknown component %d", componentID)
	}

	txID, err := stunmsg.NewTransactionID()
	if err != nil {
		s.mu.Unlock()
		return err
	}
	req, err := stunmsg.BuildBindingRequest(txID, "", 0, false, stunmsg.RoleControlling, 0, "")
	if err != nil {
		s.mu.Unlock()
		return err
	}

	wait := make(chan gatherResult, 1)
	s.gatherWaiters[stunTxKey(txID)] = wait

	dst := server.netAddr()
	if _, err := comp.subsession.SendRequest(dst, req); err != nil {
		delete(s.gatherWaiters, stunTxKey(txID))
		s.mu.Unlock()
		return err
	}
	s.mu.Unlock()

	select {
	case r := <-wait:
		if r.err != nil {
			return r.err
		}
		ip, port, ok := r.resp.XORMappedAddress()
		if !ok {
			return newError(NotSupported, "gather response missing XOR-MAPPED-ADDRESS")
		}
		mapped := TransportAddress{protocol: UDP, ip: ip.String(), port: port, family: addressFamily(ip)}
		return s.AddServerReflexiveCandidate(componentID, mapped, server)
	case <-time.After(timeout):
		s.mu.Lock()
		delete(s.gatherWaiters, stunTxKey(txID))
		s.mu.Unlock()
		return newError(NotSupported, "gather timed out")
	}
}

// GatherRelayed requests a relayed candidate through allocator (§4.2) and
// installs it with server as its ServerAddress.
func (s *Session) GatherRelayed(componentID int, allocator RelayAllocator, server TransportAddress) error {
	relayed, base, err := allocator.Allocate()
	if err != nil {
		return err
	}
	return s.AddRelayedCandidate(componentID, relayed, base, server)
}
