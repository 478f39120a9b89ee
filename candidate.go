package ice

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/pion/randutil"
	"github.com/pkg/errors"
)

// CandidateType is a closed enumeration of the four kinds of transport
// address an agent can gather (§3, GLOSSARY).
type CandidateType int

const (
	Host CandidateType = iota
	ServerReflexive
	PeerReflexive
	Relayed
)

func (t CandidateType) String() string {
	switch t {
	case Host:
		return "host"
	case ServerReflexive:
		return "srflx"
	case PeerReflexive:
		return "prflx"
	case Relayed:
		return "relay"
	default:
		return "unknown"
	}
}

func parseCandidateType(s string) (CandidateType, error) {
	switch s {
	case "host":
		return Host, nil
	case "srflx":
		return ServerReflexive, nil
	case "prflx":
		return PeerReflexive, nil
	case "relay":
		return Relayed, nil
	default:
		return 0, errors.Errorf("unknown candidate type %q", s)
	}
}

// typePreference implements the type_pref ordering from §3: Host >
// ServerReflexive > PeerReflexive > Relayed.
func (t CandidateType) typePreference() uint32 {
	switch t {
	case Host:
		return 126
	case ServerReflexive:
		return 110
	case PeerReflexive:
		return 100
	case Relayed:
		return 0
	default:
		panic("ice: illegal candidate type")
	}
}

// maxLocalPreference is the local_pref assigned to the only local IP address
// this agent knows about for a base (§4.2: "maximum local_pref"). A future
// multihomed implementation would rank interfaces 0..65535 instead.
const maxLocalPreference = 65535

// Attribute is an SDP candidate-line extension attribute, carried verbatim.
type Attribute struct {
	Name  string
	Value string
}

// Candidate is a transport address the agent can use, local or remote (§3).
type Candidate struct {
	ComponentID int
	Type        CandidateType
	Foundation  string
	Address     TransportAddress

	// BaseAddress is the address the agent actually sends from. Equal to
	// Address for Host; the bound local address for reflexive; the relay's
	// allocated address for Relayed.
	BaseAddress TransportAddress

	// ServerAddress is the STUN/TURN server used to obtain this candidate,
	// zero value for Host.
	ServerAddress TransportAddress

	Priority uint32
	Attrs    []Attribute
}

// computePriority implements the formula in §3:
//
//	priority = 2^24*type_pref + 2^8*local_pref + (256 - component_id)
func computePriority(typ CandidateType, localPref uint32, componentID int) uint32 {
	if componentID < 1 || componentID > 255 {
		panic("ice: component id out of range")
	}
	return typ.typePreference()<<24 + localPref<<8 + uint32(256-componentID)
}

// computeFoundation implements §3: two candidates share a foundation iff
// they are of the same type, obtained from the same base, and use the same
// protocol. We fold the STUN/TURN server into the fingerprint too, since
// §3 also requires distinct foundations per server.
func computeFoundation(typ CandidateType, base TransportAddress, server TransportAddress) string {
	h := fnvHash(fmt.Sprintf("%s/%s/%s/%s", typ, base.protocol, base.ip, server.ip))
	return h
}

func makeHostCandidate(componentID int, base TransportAddress) Candidate {
	return Candidate{
		ComponentID: componentID,
		Type:        Host,
		Foundation:  "host-" + computeFoundation(Host, base, TransportAddress{}),
		Address:     base,
		BaseAddress: base,
		Priority:    computePriority(Host, maxLocalPreference, componentID),
	}
}

func makeServerReflexiveCandidate(componentID int, mapped, base, server TransportAddress) Candidate {
	c := Candidate{
		ComponentID:   componentID,
		Type:          ServerReflexive,
		Foundation:    "srfx-" + computeFoundation(ServerReflexive, base, server),
		Address:       mapped,
		BaseAddress:   base,
		ServerAddress: server,
		Priority:      computePriority(ServerReflexive, maxLocalPreference, componentID),
	}
	c.addAttribute("raddr", "0.0.0.0")
	c.addAttribute("rport", "0")
	return c
}

func makeRelayedCandidate(componentID int, relayed, base, server TransportAddress) Candidate {
	return Candidate{
		ComponentID:   componentID,
		Type:          Relayed,
		Foundation:    "rlyd-" + computeFoundation(Relayed, base, server),
		Address:       relayed,
		BaseAddress:   base,
		ServerAddress: server,
		Priority:      computePriority(Relayed, maxLocalPreference, componentID),
	}
}

// makePeerReflexiveCandidate implements §4.6/§4.7: the priority on a
// peer-reflexive candidate is whatever PRIORITY attribute accompanied the
// probe that revealed it, not recomputed locally.
func makePeerReflexiveCandidate(componentID int, addr, base TransportAddress, priority uint32) Candidate {
	return Candidate{
		ComponentID: componentID,
		Type:        PeerReflexive,
		Foundation:  "peer-" + randomFoundationSuffix(),
		Address:     addr,
		BaseAddress: base,
		Priority:    priority,
	}
}

func randomFoundationSuffix() string {
	s, err := randutil.GenerateCryptoRandomString(8, "0123456789abcdefghijklmnopqrstuvwxyz")
	if err != nil {
		// crypto/rand failure is not something callers can usefully recover
		// from; fall back to a fixed, clearly-non-unique marker rather than
		// panicking the connectivity-check goroutine.
		return "badrand"
	}
	return s
}

// peerReflexivePriority computes the priority this candidate's component would be
// assigned as a peer-reflexive candidate (§4.3), sent in the PRIORITY
// attribute of outgoing Binding requests.
func (c *Candidate) peerReflexivePriority() uint32 {
	return computePriority(PeerReflexive, maxLocalPreference, c.ComponentID)
}

func (c *Candidate) isReflexive() bool {
	return c.Type == ServerReflexive || c.Type == PeerReflexive
}

func (c *Candidate) addAttribute(name, value string) {
	c.Attrs = append(c.Attrs, Attribute{name, value})
}

// effectiveAddress is the address used for pruning/dedup purposes: for a
// ServerReflexive candidate this is its base (§4.4 step 3: "replace a
// ServerReflexive local with its base"), otherwise it is Address itself.
func (c *Candidate) effectiveAddress() TransportAddress {
	if c.Type == ServerReflexive {
		return c.BaseAddress
	}
	return c.Address
}

// String renders the SDP "a=candidate" line body (without the "a=" prefix),
// per draft-ietf-mmusic-ice-sip-sdp.
func (c Candidate) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "candidate:%s %d %s %d %s %d typ %s",
		c.Foundation, c.ComponentID, c.Address.protocol, c.Priority, c.Address.ip, c.Address.port, c.Type)
	if c.Type != Host {
		fmt.Fprintf(&b, " raddr %s rport %d", c.BaseAddress.ip, c.BaseAddress.port)
	}
	for _, a := range c.Attrs {
		if a.Name == "raddr" || a.Name == "rport" {
			continue
		}
		fmt.Fprintf(&b, " %s %s", a.Name, a.Value)
	}
	return b.String()
}

// ParseCandidateSDP parses a candidate description of the form
//
//	candidate:{foundation} {component} {protocol} {priority} {address} {port} typ {type} ...
//
// Candidate exchange itself is out of scope (§6); this is a convenience
// codec for applications that serialize candidates as SDP lines, as the
// teacher did.
func ParseCandidateSDP(desc string) (Candidate, error) {
	var c Candidate
	r := strings.NewReader(desc)

	var protocol, ip, port, typ string
	_, err := fmt.Fscanf(r, "candidate:%s %d %s %d %s %s typ %s",
		&c.Foundation, &c.ComponentID, &protocol, &c.Priority, &ip, &port, &typ)
	if err != nil {
		return Candidate{}, errors.Wrap(err, "ice: malformed candidate line")
	}
	if c.ComponentID < 1 || c.ComponentID > 256 {
		return Candidate{}, errors.Errorf("ice: component id out of range: %d", c.ComponentID)
	}
	c.Type, err = parseCandidateType(typ)
	if err != nil {
		return Candidate{}, err
	}

	addr, err := resolveHostPort(Protocol(strings.ToLower(protocol)), ip+":"+port)
	if err != nil {
		return Candidate{}, errors.Wrap(err, "ice: unresolvable candidate address")
	}
	c.Address = addr
	c.BaseAddress = addr

	scanner := bufio.NewScanner(r)
	scanner.Split(bufio.ScanWords)
	var name string
	for scanner.Scan() {
		if name == "" {
			name = scanner.Text()
			continue
		}
		value := scanner.Text()
		switch name {
		case "raddr":
			c.BaseAddress.ip = value
		case "rport":
			fmt.Sscanf(value, "%d", &c.BaseAddress.port)
		default:
			c.addAttribute(name, value)
		}
		name = ""
	}
	if name != "" {
		return Candidate{}, errors.Errorf("ice: unmatched attribute name %q", name)
	}

	return c, nil
}
