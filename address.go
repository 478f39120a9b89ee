package ice

import (
	"fmt"
	"net"
	"strings"
)

// AddressFamily distinguishes IPv4 from IPv6 for pairing purposes (§3:
// candidates pair only across equal address family).
type AddressFamily int

const (
	// Unresolved marks a transport address whose IP has not been resolved
	// (e.g. an mDNS name). It never pairs with anything.
	Unresolved AddressFamily = iota
	IPv4
	IPv6
)

// Protocol is the transport protocol a candidate is reachable over.
type Protocol string

const (
	UDP Protocol = "udp"
	TCP Protocol = "tcp"
)

// TransportAddress is a (protocol, IP, port) tuple, comparable with ==.
type TransportAddress struct {
	protocol  Protocol
	ip        string
	port      int
	family    AddressFamily
	linkLocal bool
}

func makeTransportAddress(addr net.Addr) TransportAddress {
	var ip net.IP
	var port int
	var protocol Protocol
	switch a := addr.(type) {
	case *net.UDPAddr:
		ip, port, protocol = a.IP, a.Port, UDP
	case *net.TCPAddr:
		ip, port, protocol = a.IP, a.Port, TCP
	default:
		panic(fmt.Sprintf("ice: unsupported net.Addr type %T", addr))
	}
	return TransportAddress{
		protocol:  protocol,
		ip:        ip.String(),
		port:      port,
		family:    addressFamily(ip),
		linkLocal: ip.IsLinkLocalUnicast(),
	}
}

func addressFamily(ip net.IP) AddressFamily {
	if ip == nil {
		return Unresolved
	}
	if ip.To4() != nil {
		return IPv4
	}
	return IPv6
}

func (ta TransportAddress) resolved() bool {
	return ta.family != Unresolved
}

func (ta TransportAddress) netAddr() net.Addr {
	hostport := net.JoinHostPort(ta.ip, fmt.Sprintf("%d", ta.port))
	switch ta.protocol {
	case TCP:
		addr, _ := net.ResolveTCPAddr("tcp", hostport)
		return addr
	default:
		addr, _ := net.ResolveUDPAddr("udp", hostport)
		return addr
	}
}

func (ta TransportAddress) String() string {
	if ta.family == IPv6 {
		return fmt.Sprintf("%s/[%s]:%d", ta.protocol, ta.ip, ta.port)
	}
	return fmt.Sprintf("%s/%s:%d", ta.protocol, ta.ip, ta.port)
}

func resolveHostPort(protocol Protocol, hostport string) (TransportAddress, error) {
	host, portStr, err := net.SplitHostPort(hostport)
	if err != nil {
		return TransportAddress{}, err
	}
	var addr net.Addr
	switch strings.ToLower(string(protocol)) {
	case "tcp":
		addr, err = net.ResolveTCPAddr("tcp", net.JoinHostPort(host, portStr))
	default:
		addr, err = net.ResolveUDPAddr("udp", net.JoinHostPort(host, portStr))
	}
	if err != nil {
		return TransportAddress{}, err
	}
	return makeTransportAddress(addr), nil
}

// isWildcard reports whether the address is the unspecified/wildcard
// address (0.0.0.0 or ::), which must be replaced by a host route address
// before a candidate is inserted (§4.2, §8 boundary behavior).
func (ta TransportAddress) isWildcard() bool {
	ip := net.ParseIP(ta.ip)
	return ip != nil && ip.IsUnspecified()
}
