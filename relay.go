package ice

import (
	"net"

	"github.com/pion/turn/v4"
)

// RelayAllocator is the "relayed-candidate allocation against a TURN
// server" external collaborator spec §1 assumes available. Session never
// depends on TURN's wire protocol directly; it only calls Allocate through
// this interface, so a test can substitute a fake without pulling in any
// TURN client at all.
type RelayAllocator interface {
	// Allocate requests a relayed transport address, returning the relayed
	// address (what gets advertised as the Relayed candidate's Address) and
	// the base address (the local socket the allocation was requested
	// from).
	Allocate() (relayed TransportAddress, base TransportAddress, err error)
	Close() error
}

// turnAllocator is the concrete RelayAllocator binding over
// github.com/pion/turn/v4's client, per SPEC_FULL.md's DOMAIN STACK.
type turnAllocator struct {
	conn   net.PacketConn
	client *turn.Client
}

// NewTurnAllocator builds a RelayAllocator bound to conn (typically the
// same socket a Component was created with, so the relayed candidate's
// base matches that component's host candidate) and authenticated with
// username/password against the TURN server at turnServerAddr.
func NewTurnAllocator(conn net.PacketConn, stunServerAddr, turnServerAddr, username, password string) (RelayAllocator, error) {
	cfg := &turn.ClientConfig{
		STUNServerAddr: stunServerAddr,
		TURNServerAddr: turnServerAddr,
		Conn:           conn,
		Username:       username,
		Password:       password,
		Software:       "icelink",
	}
	client, err := turn.NewClient(cfg)
	if err != nil {
		return nil, err
	}
	return &turnAllocator{conn: conn, client: client}, nil
}

func (a *turnAllocator) Allocate() (TransportAddress, TransportAddress, error) {
	if err := a.client.Listen(); err != nil {
		return TransportAddress{}, TransportAddress{}, err
	}

	relayConn, err := a.client.Allocate()
	if err != nil {
		return TransportAddress{}, TransportAddress{}, err
	}

	relayed := makeTransportAddress(relayConn.LocalAddr())
	base := makeTransportAddress(a.conn.LocalAddr())
	return relayed, base, nil
}

func (a *turnAllocator) Close() error {
	a.client.Close()
	return nil
}
