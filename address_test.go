package ice

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMakeTransportAddressFromUDP(t *testing.T) {
	udp := &net.UDPAddr{IP: net.ParseIP("192.168.1.5"), Port: 4000}
	ta := makeTransportAddress(udp)

	assert.Equal(t, UDP, ta.protocol)
	assert.Equal(t, "192.168.1.5", ta.ip)
	assert.Equal(t, 4000, ta.port)
	assert.Equal(t, IPv4, ta.family)
}

func TestMakeTransportAddressIPv6(t *testing.T) {
	udp := &net.UDPAddr{IP: net.ParseIP("2001:db8::1"), Port: 4000}
	ta := makeTransportAddress(udp)
	assert.Equal(t, IPv6, ta.family)
}

func TestAddressFamilyNilIsUnresolved(t *testing.T) {
	assert.Equal(t, Unresolved, addressFamily(nil))
}

func TestTransportAddressStringFormatsIPv6WithBrackets(t *testing.T) {
	ta := TransportAddress{protocol: UDP, ip: "2001:db8::1", port: 1234, family: IPv6}
	assert.Equal(t, "udp/[2001:db8::1]:1234", ta.String())
}

func TestTransportAddressStringFormatsIPv4Plain(t *testing.T) {
	ta := TransportAddress{protocol: UDP, ip: "10.0.0.1", port: 1234, family: IPv4}
	assert.Equal(t, "udp/10.0.0.1:1234", ta.String())
}

func TestResolveHostPortRoundTrip(t *testing.T) {
	ta, err := resolveHostPort(UDP, "127.0.0.1:5000")
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1", ta.ip)
	assert.Equal(t, 5000, ta.port)
	assert.True(t, ta.resolved())
}

func TestIsWildcard(t *testing.T) {
	wildcard := TransportAddress{ip: "0.0.0.0"}
	assert.True(t, wildcard.isWildcard())

	notWildcard := TransportAddress{ip: "10.0.0.1"}
	assert.False(t, notWildcard.isWildcard())
}

func TestTransportAddressComparableEquality(t *testing.T) {
	a := TransportAddress{protocol: UDP, ip: "10.0.0.1", port: 1000, family: IPv4}
	b := TransportAddress{protocol: UDP, ip: "10.0.0.1", port: 1000, family: IPv4}
	c := TransportAddress{protocol: UDP, ip: "10.0.0.1", port: 1001, family: IPv4}
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}
