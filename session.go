package ice

import (
	"net"
	"sync"
	"time"

	"github.com/pion/logging"
	"github.com/pion/randutil"

	"github.com/icelink/agent/stunmsg"
)

// NominationMode selects how USE-CANDIDATE is attached to outbound probes,
// resolving the Open Question in spec §9 as a runtime switch rather than a
// single hardcoded behavior.
type NominationMode int

const (
	// NominateAggressive attaches USE-CANDIDATE to every probe the
	// controlling side sends (§4.6's stated simplification).
	NominateAggressive NominationMode = iota
	// NominateRegular attaches USE-CANDIDATE only once a pair has already
	// reached Succeeded without it, and never lets a lower-priority
	// nomination replace a higher-priority one already in place.
	NominateRegular
)

// Config configures a Session. Zero-value fields fall back to the §6
// tunables.
type Config struct {
	Role              Role
	Nomination        NominationMode
	Ta                time.Duration
	MaxChecks         int
	MaxCandidates     int
	KeepaliveInterval time.Duration
	LoggerFactory     logging.LoggerFactory
}

// Callbacks is the application upcall set from §4.1/§9: on_send_pkt (an
// observer fired after a datagram is actually written, for metrics/logging
// — Component owns and writes to its own socket directly), on_rx_data
// (fired for every inbound datagram that the read loop determined was not
// STUN), and on_ice_complete (fired exactly once).
type Callbacks struct {
	OnSendPkt    func(componentID int, data []byte, dst net.Addr)
	OnRxData     func(componentID int, data []byte, src net.Addr)
	OnIceComplete func(success bool)
}

// Session is the single logical object from §2: owns configuration, role,
// credentials, components, candidate tables, and the check list, and
// serializes every state transition behind mu. Go has no recursive mutex;
// instead every exported method locks exactly once at entry and calls only
// unexported, lock-assuming helpers internally, which is the idiomatic
// substitute for §5's "recursive lock held for the entire body of every
// public operation, every timer callback, every STUN callback."
type Session struct {
	mu sync.Mutex

	role       Role
	tiebreaker uint64
	nomination NominationMode
	ta         time.Duration

	creds       Credentials
	credsSet    bool
	credAdapter credentialAdapter

	components map[int]*Component
	local      *candidateTable
	remote     *candidateTable

	checklist *Checklist
	sched     *scheduler

	keepaliveInterval time.Duration

	cb            Callbacks
	loggerFactory logging.LoggerFactory
	log           logging.LeveledLogger

	checksStarted bool
	completed     bool
	destroyed     bool

	pendingByTx   map[stunTxKey]*pendingProbe
	gatherWaiters map[stunTxKey]chan gatherResult

	dataSinks map[int]chan []byte

	keepaliveStarted map[int]bool
}

// gatherResult is delivered to a GatherServerReflexive call waiting on its
// one-off Binding transaction.
type gatherResult struct {
	resp *stunmsg.Message
	err  error
}

// stunTxKey is a comparable copy of a STUN transaction ID, used as a map
// key without importing stun into this file's exported surface.
type stunTxKey [12]byte

// pendingProbe remembers which Check an in-flight transaction belongs to,
// and whether it's an ordinary probe or a regular-nomination re-probe
// (§4.6, SUPPLEMENTED FEATURES in SPEC_FULL.md).
type pendingProbe struct {
	check           *Check
	nominationProbe bool
}

// NewSession implements §4.1's create(role, address_family, socket_type,
// callbacks). address_family/socket_type are implicit in the net.PacketConn
// passed to AddComponent rather than separate parameters, since Go's net
// package already encodes both in the connection type.
func NewSession(cfg Config, cb Callbacks) *Session {
	if cfg.Ta <= 0 {
		cfg.Ta = DefaultTa
	}
	if cfg.MaxChecks <= 0 {
		cfg.MaxChecks = DefaultMaxChecks
	}
	if cfg.MaxCandidates <= 0 {
		cfg.MaxCandidates = DefaultMaxCandidates
	}
	if cfg.LoggerFactory == nil {
		cfg.LoggerFactory = logging.NewDefaultLoggerFactory()
	}

	s := &Session{
		role:              cfg.Role,
		tiebreaker:        randomTiebreaker(),
		nomination:        cfg.Nomination,
		ta:                cfg.Ta,
		components:        make(map[int]*Component),
		local:             newCandidateTable(true, cfg.MaxCandidates),
		remote:            newCandidateTable(false, cfg.MaxCandidates),
		checklist:         newChecklist(cfg.MaxChecks),
		keepaliveInterval: cfg.KeepaliveInterval,
		cb:                cb,
		loggerFactory:     cfg.LoggerFactory,
		log:               cfg.LoggerFactory.NewLogger("ice"),
		pendingByTx:       make(map[stunTxKey]*pendingProbe),
		gatherWaiters:     make(map[stunTxKey]chan gatherResult),
		dataSinks:         make(map[int]chan []byte),
		keepaliveStarted:  make(map[int]bool),
	}
	s.sched = newScheduler(s.ta, s.tick)
	return s
}

func randomTiebreaker() uint64 {
	hi, err := randutil.GenerateCryptoRandomString(8, "0123456789abcdef")
	if err != nil {
		return uint64(time.Now().UnixNano())
	}
	var v uint64
	for _, c := range hi {
		v = v<<4 | uint64(hexNibble(byte(c)))
	}
	return v
}

func hexNibble(c byte) byte {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	default:
		return 0
	}
}

// AddComponent implements §4.1's add_component(component_id, local_address):
// conn must already be bound to the component's local address. Wires the
// component's STUN sub-session callbacks to the Probe Engine and starts its
// demux read loop.
func (s *Session) AddComponent(componentID int, conn net.PacketConn) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if componentID < 1 {
		return newError(InvalidArgument, "component id must be >= 1, got %d", componentID)
	}
	if _, exists := s.components[componentID]; exists {
		return newError(InvalidArgument, "component %d already added", componentID)
	}

	log := s.loggerFactory.NewLogger("ice:component")
	comp := newComponent(componentID, conn, log, stunmsg.Callbacks{
		OnRxRequest: func(m *stunmsg.Message, src net.Addr) {
			s.mu.Lock()
			defer s.mu.Unlock()
			s.handleInboundRequest(componentID, m, src)
		},
		OnRxIndication: func(m *stunmsg.Message, src net.Addr) {
			s.log.Tracef("ice: indication from %s on component %d", src, componentID)
		},
		OnRequestComplete: func(tx *stunmsg.Transaction, resp *stunmsg.Message, src net.Addr, err error) {
			s.mu.Lock()
			defer s.mu.Unlock()
			s.handleRequestComplete(tx, resp, src, err)
		},
	})
	s.components[componentID] = comp

	go comp.readLoop(s.routeData)

	return nil
}

// SetCredentials implements §4.1's set_credentials.
func (s *Session) SetCredentials(localUfrag, localPassword, remoteUfrag, remotePassword string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds = newCredentials(localUfrag, localPassword, remoteUfrag, remotePassword)
	s.credAdapter = credentialAdapter{creds: s.creds}
	s.credsSet = true
}

// StartGathering implements §4.2's host-candidate portion: for each
// component, read the socket's bound address, substitute a host route
// address if wildcard, and install a Host candidate with maximum
// local_pref and foundation class "host".
func (s *Session) StartGathering() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, comp := range s.components {
		addr := comp.boundAddress
		if addr.isWildcard() {
			addr = hostRouteAddress(addr)
			comp.boundAddress = addr
		}
		cand := makeHostCandidate(id, addr)
		if _, err := s.local.add(cand); err != nil {
			return err
		}
		s.log.Debugf("ice: gathered host candidate %s on component %d", cand.Address, id)
	}
	return nil
}

// hostRouteAddress substitutes the wildcard IP with the first non-loopback
// IPv4 interface address, falling back to 127.0.0.1 if none is found (§4.2,
// §8 boundary behavior). IPv6 interface addresses are not considered.
func hostRouteAddress(wildcard TransportAddress) TransportAddress {
	ip := "127.0.0.1"
	if addrs, err := net.InterfaceAddrs(); err == nil {
		for _, a := range addrs {
			ipNet, ok := a.(*net.IPNet)
			if !ok || ipNet.IP.IsLoopback() {
				continue
			}
			if v4 := ipNet.IP.To4(); v4 != nil {
				ip = v4.String()
				break
			}
		}
	}
	wildcard.ip = ip
	return wildcard
}

// AddServerReflexiveCandidate and AddRelayedCandidate are the insertion
// points §4.2 describes for reflexive/relayed gathering delegated to
// external collaborators: "each discovered address is added via
// add_candidate with the matching foundation class."
func (s *Session) AddServerReflexiveCandidate(componentID int, mapped, server TransportAddress) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	comp, ok := s.components[componentID]
	if !ok {
		return newError(InvalidArgument, "unknown component %d", componentID)
	}
	cand := makeServerReflexiveCandidate(componentID, mapped, comp.boundAddress, server)
	_, err := s.local.add(cand)
	return err
}

func (s *Session) AddRelayedCandidate(componentID int, relayed, base, server TransportAddress) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cand := makeRelayedCandidate(componentID, relayed, base, server)
	_, err := s.local.add(cand)
	return err
}

// AddRemoteCandidates implements §4.1's add_remote_candidates: stores the
// remotes and (re)builds the check list against the accumulated local set.
func (s *Session) AddRemoteCandidates(cands []Candidate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range cands {
		if _, err := s.remote.add(c); err != nil {
			return err
		}
	}
	return s.checklist.build(s.local.all(), s.remote.all(), s.role)
}

// StartChecks implements §4.5's "On start_checks": idempotent once Running,
// synchronously fails if the check list is empty.
func (s *Session) StartChecks() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.checksStarted {
		return nil
	}
	if len(s.checklist.checks) == 0 {
		return newError(NoCheckList, "no checks to run")
	}

	startChecksUnfreeze(s.checklist)
	s.checklist.state = ChecklistRunning
	s.checksStarted = true
	s.sched.arm()
	return nil
}

// tick is the scheduler callback implementing §4.5's "On each tick".
func (s *Session) tick() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.destroyed {
		return
	}

	s.checklist.state = ChecklistRunning

	c := nextOrdinaryCheck(s.checklist)
	if c == nil {
		if s.checklist.allTerminal() {
			s.checklist.state = ChecklistCompleted
			s.evaluateCompletion()
			return
		}
		s.sched.arm()
		return
	}

	s.performCheck(c)
	s.sched.arm()
}

// routeData is the Component read loop's onData hook: data already demuxed
// from STUN goes to a registered Conn's channel if one exists, and always
// to the application's on_rx_data callback (§4.1).
func (s *Session) routeData(componentID int, data []byte, src net.Addr) {
	s.mu.Lock()
	sink := s.dataSinks[componentID]
	s.mu.Unlock()

	if sink != nil {
		select {
		case sink <- data:
		default:
			s.log.Warnf("ice: dropping data-plane packet, component %d conn reader not keeping up", componentID)
		}
	}
	if s.cb.OnRxData != nil {
		s.cb.OnRxData(componentID, data, src)
	}
}

// performTriggeredCheck runs c immediately, outside the ordinary tick
// (§4.7: "triggered check"), without disturbing the periodic schedule.
func (s *Session) performTriggeredCheck(c *Check) {
	s.performCheck(c)
}

// Destroy implements §5's cancellation sequence: cancel the scheduler
// timer, destroy each component's STUN sub-session (cancelling pending
// transactions), then release. Idempotent (§8).
func (s *Session) Destroy() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.destroyed {
		return
	}
	s.destroyed = true
	s.sched.cancel()
	for _, comp := range s.components {
		comp.close()
	}
}

// LocalCandidates returns a snapshot of the gathered local candidate set,
// for an application to serialize and hand to its signaling channel (§6).
func (s *Session) LocalCandidates() []Candidate {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.local.all()
}

// SelectedPair returns the nominated Succeeded pair for componentID, if
// any — a read-only accessor supplementing §4.8's completion signal, kept
// for symmetry with the original's ice_sess_get_valid_pair (no restart
// support; see SPEC_FULL.md).
func (s *Session) SelectedPair(componentID int) (Check, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range s.checklist.validChecksForComponent(componentID) {
		if c.Nominated {
			return *c, true
		}
	}
	return Check{}, false
}
