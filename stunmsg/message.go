// Package stunmsg is the thin STUN message layer spec §1 and §6 describe as
// an external collaborator: message encoding/decoding, MESSAGE-INTEGRITY and
// FINGERPRINT, and the ICE-specific attributes (PRIORITY, USE-CANDIDATE,
// ICE-CONTROLLING/ICE-CONTROLLED) layered on top of a generic STUN codec.
//
// Generic STUN framing is delegated to github.com/pion/stun/v3; only the
// ICE-specific attributes are implemented locally here, the same division
// of labor the upstream pion/ice agent uses over the same library.
package stunmsg

import (
	"encoding/binary"
	"net"

	"github.com/pion/stun/v3"
)

// Message wraps a pion/stun message with the ICE-specific attribute
// accessors this package adds.
type Message struct {
	*stun.Message
}

// NewTransactionID generates a fresh, random STUN transaction ID.
func NewTransactionID() (stun.TransactionID, error) {
	return stun.NewTransactionID()
}

// BuildBindingRequest assembles an authenticated Binding request carrying
// PRIORITY, optionally USE-CANDIDATE and ICE-CONTROLLING/ICE-CONTROLLED, and
// MESSAGE-INTEGRITY + FINGERPRINT keyed with password (§4.6).
func BuildBindingRequest(txID stun.TransactionID, username string, priority uint32, useCandidate bool, role RoleAttr, tiebreaker uint64, password string) (*Message, error) {
	setters := []stun.Setter{
		stun.NewType(stun.MethodBinding, stun.ClassRequest),
		stun.NewTransactionIDSetter(txID),
		stun.NewUsername(username),
		Priority(priority),
	}
	if useCandidate {
		setters = append(setters, UseCandidate())
	}
	setters = append(setters, role.attribute(tiebreaker))
	setters = append(setters, stun.NewShortTermIntegrity(password), stun.Fingerprint)

	m := new(stun.Message)
	if err := m.Build(setters...); err != nil {
		return nil, err
	}
	return &Message{m}, nil
}

// BuildBindingSuccess builds a success response carrying XOR-MAPPED-ADDRESS,
// keyed with password (the rx password, per §6), for the given request's
// transaction ID (§4.7 step 4).
func BuildBindingSuccess(req *Message, mapped net.Addr, password string) (*Message, error) {
	m := new(stun.Message)
	err := m.Build(
		stun.NewType(stun.MethodBinding, stun.ClassSuccessResponse),
		stun.NewTransactionIDSetter(req.TransactionID),
		&stun.XORMappedAddress{IP: addrIP(mapped), Port: addrPort(mapped)},
		stun.NewShortTermIntegrity(password),
		stun.Fingerprint,
	)
	if err != nil {
		return nil, err
	}
	return &Message{m}, nil
}

// BuildBindingError builds an error response (e.g. 400 Bad Request, §4.7
// step 1).
func BuildBindingError(req *Message, code int, reason string) (*Message, error) {
	m := new(stun.Message)
	err := m.Build(
		stun.NewType(stun.MethodBinding, stun.ClassErrorResponse),
		stun.TransactionID,
		&stun.ErrorCodeAttribute{Code: stun.ErrorCode(code), Reason: []byte(reason)},
	)
	if err != nil {
		return nil, err
	}
	m.TransactionID = req.TransactionID
	m.WriteTransactionID()
	return &Message{m}, nil
}

// BuildBindingIndication builds a keepalive indication (§11 of RFC 8445;
// this package does not gate it on consent freshness, which is out of
// scope per spec §1).
func BuildBindingIndication() (*Message, error) {
	m := new(stun.Message)
	err := m.Build(
		stun.NewType(stun.MethodBinding, stun.ClassIndication),
		stun.TransactionID,
		stun.Fingerprint,
	)
	if err != nil {
		return nil, err
	}
	return &Message{m}, nil
}

// Parse decodes data as a STUN message. It returns (nil, nil) if data does
// not look like a STUN message at all (mirrors stun.IsMessage).
func Parse(data []byte) (*Message, error) {
	if !stun.IsMessage(data) {
		return nil, nil
	}
	m := &stun.Message{Raw: append([]byte(nil), data...)}
	if err := m.Decode(); err != nil {
		return nil, err
	}
	return &Message{m}, nil
}

// IsRequest/IsIndication/IsSuccess/IsError classify a decoded message by
// STUN class.
func (m *Message) IsRequest() bool     { return m.Type.Class == stun.ClassRequest }
func (m *Message) IsIndication() bool  { return m.Type.Class == stun.ClassIndication }
func (m *Message) IsSuccess() bool     { return m.Type.Class == stun.ClassSuccessResponse }
func (m *Message) IsErrorClass() bool  { return m.Type.Class == stun.ClassErrorResponse }
func (m *Message) IsBindingMethod() bool { return m.Type.Method == stun.MethodBinding }

// Username returns the USERNAME attribute, if present.
func (m *Message) Username() (string, bool) {
	var u stun.Username
	if err := u.GetFrom(m.Message); err != nil {
		return "", false
	}
	return u.String(), true
}

// XORMappedAddress returns the XOR-MAPPED-ADDRESS attribute, if present.
func (m *Message) XORMappedAddress() (net.IP, int, bool) {
	var a stun.XORMappedAddress
	if err := a.GetFrom(m.Message); err != nil {
		return nil, 0, false
	}
	return a.IP, a.Port, true
}

// ErrorCode returns the ERROR-CODE attribute, if present.
func (m *Message) ErrorCode() (code int, reason string, ok bool) {
	var e stun.ErrorCodeAttribute
	if err := e.GetFrom(m.Message); err != nil {
		return 0, "", false
	}
	return int(e.Code), string(e.Reason), true
}

// CheckIntegrity verifies MESSAGE-INTEGRITY against password.
func (m *Message) CheckIntegrity(password string) bool {
	mi := stun.NewShortTermIntegrity(password)
	return mi.Check(m.Message) == nil
}

func addrIP(a net.Addr) net.IP {
	switch v := a.(type) {
	case *net.UDPAddr:
		return v.IP
	case *net.TCPAddr:
		return v.IP
	default:
		return nil
	}
}

func addrPort(a net.Addr) int {
	switch v := a.(type) {
	case *net.UDPAddr:
		return v.Port
	case *net.TCPAddr:
		return v.Port
	default:
		return 0
	}
}

// uint32Bytes encodes v as four big-endian bytes.
func uint32Bytes(v uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, v)
	return b
}
