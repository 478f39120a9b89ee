package stunmsg

import (
	"encoding/binary"

	"github.com/pion/stun/v3"
)

// ICE-specific STUN attributes (RFC 8445 §16.1), not part of generic STUN
// and so not provided by pion/stun itself.
const (
	attrPriority      stun.AttrType = 0x0024
	attrUseCandidate  stun.AttrType = 0x0025
	attrIceControlled stun.AttrType = 0x8029
	attrIceControlling stun.AttrType = 0x802A
)

// Priority is the PRIORITY attribute: the peer-reflexive priority the
// sender would assign this candidate, per §4.3/§4.6.
type Priority uint32

func (p Priority) AddTo(m *stun.Message) error {
	m.Add(attrPriority, uint32Bytes(uint32(p)))
	return nil
}

func (p *Priority) GetFrom(m *stun.Message) error {
	v, err := m.Get(attrPriority)
	if err != nil {
		return err
	}
	*p = Priority(binary.BigEndian.Uint32(v))
	return nil
}

// GetPriority is a convenience wrapper returning (0, false) if absent,
// matching §4.7 step 5's use as a fallback-safe default.
func (m *Message) GetPriority() (uint32, bool) {
	var p Priority
	if err := p.GetFrom(m.Message); err != nil {
		return 0, false
	}
	return uint32(p), true
}

// useCandidateAttr is the zero-length USE-CANDIDATE attribute (§4.6).
type useCandidateAttr struct{}

// UseCandidate returns a Setter that adds USE-CANDIDATE to a request.
func UseCandidate() stun.Setter { return useCandidateAttr{} }

func (useCandidateAttr) AddTo(m *stun.Message) error {
	m.Add(attrUseCandidate, nil)
	return nil
}

// HasUseCandidate reports whether the message carries USE-CANDIDATE.
func (m *Message) HasUseCandidate() bool {
	_, err := m.Get(attrUseCandidate)
	return err == nil
}

// RoleAttr selects which ICE role tiebreaker attribute a Binding request
// carries, resolving which of ICE-CONTROLLING / ICE-CONTROLLED is sent.
type RoleAttr int

const (
	RoleControlling RoleAttr = iota
	RoleControlled
)

func (r RoleAttr) attribute(tiebreaker uint64) stun.Setter {
	v := make([]byte, 8)
	binary.BigEndian.PutUint64(v, tiebreaker)
	if r == RoleControlling {
		return rawAttr{attrIceControlling, v}
	}
	return rawAttr{attrIceControlled, v}
}

type rawAttr struct {
	t stun.AttrType
	v []byte
}

func (a rawAttr) AddTo(m *stun.Message) error {
	m.Add(a.t, a.v)
	return nil
}
