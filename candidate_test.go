package ice

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputePriorityOrdering(t *testing.T) {
	host := computePriority(Host, maxLocalPreference, 1)
	srflx := computePriority(ServerReflexive, maxLocalPreference, 1)
	prflx := computePriority(PeerReflexive, maxLocalPreference, 1)
	relay := computePriority(Relayed, maxLocalPreference, 1)

	assert.Greater(t, host, srflx)
	assert.Greater(t, srflx, prflx)
	assert.Greater(t, prflx, relay)
}

func TestComputePriorityComponentIDTieBreak(t *testing.T) {
	c1 := computePriority(Host, maxLocalPreference, 1)
	c2 := computePriority(Host, maxLocalPreference, 2)
	assert.Greater(t, c1, c2, "lower component id must yield higher priority for otherwise-equal candidates")
}

func TestMakeHostCandidateFoundation(t *testing.T) {
	base := TransportAddress{protocol: UDP, ip: "10.0.0.1", port: 5000, family: IPv4}
	c := makeHostCandidate(1, base)

	assert.Equal(t, Host, c.Type)
	assert.Regexp(t, "^host-", c.Foundation)
	assert.Equal(t, base, c.Address)
	assert.Equal(t, base, c.BaseAddress)
	assert.Equal(t, computePriority(Host, maxLocalPreference, 1), c.Priority)
}

func TestRedundantLocalCandidatesShareFoundationWhenSameBase(t *testing.T) {
	base := TransportAddress{protocol: UDP, ip: "10.0.0.1", port: 5000, family: IPv4}
	server := TransportAddress{protocol: UDP, ip: "203.0.113.1", port: 3478, family: IPv4}
	mapped := TransportAddress{protocol: UDP, ip: "203.0.113.9", port: 40000, family: IPv4}

	a := makeServerReflexiveCandidate(1, mapped, base, server)
	b := makeServerReflexiveCandidate(1, mapped, base, server)
	assert.Equal(t, a.Foundation, b.Foundation)
}

func TestCandidateSDPRoundTrip(t *testing.T) {
	base := TransportAddress{protocol: UDP, ip: "10.0.0.1", port: 5000, family: IPv4}
	c := makeHostCandidate(1, base)
	c.Foundation = "host-abc123"

	line := c.String()
	parsed, err := ParseCandidateSDP(line)
	require.NoError(t, err)

	assert.Equal(t, c.Foundation, parsed.Foundation)
	assert.Equal(t, c.ComponentID, parsed.ComponentID)
	assert.Equal(t, c.Priority, parsed.Priority)
	assert.Equal(t, c.Address.ip, parsed.Address.ip)
	assert.Equal(t, c.Address.port, parsed.Address.port)
	assert.Equal(t, c.Type, parsed.Type)
}

func TestParseCandidateSDPRejectsBadComponentID(t *testing.T) {
	_, err := ParseCandidateSDP("candidate:host1 0 udp 2130706431 10.0.0.1 5000 typ host")
	assert.Error(t, err)
}

func TestEffectiveAddressUsesBaseForServerReflexive(t *testing.T) {
	base := TransportAddress{protocol: UDP, ip: "10.0.0.1", port: 5000, family: IPv4}
	server := TransportAddress{protocol: UDP, ip: "203.0.113.1", port: 3478, family: IPv4}
	mapped := TransportAddress{protocol: UDP, ip: "203.0.113.9", port: 40000, family: IPv4}

	srflx := makeServerReflexiveCandidate(1, mapped, base, server)
	assert.Equal(t, base, srflx.effectiveAddress())

	host := makeHostCandidate(1, base)
	assert.Equal(t, base, host.effectiveAddress())
}

func TestPeerReflexivePriorityNotRecomputed(t *testing.T) {
	base := TransportAddress{protocol: UDP, ip: "10.0.0.1", port: 5000, family: IPv4}
	addr := TransportAddress{protocol: UDP, ip: "198.51.100.2", port: 9000, family: IPv4}

	c := makePeerReflexiveCandidate(1, addr, base, 0xdeadbeef)
	assert.Equal(t, uint32(0xdeadbeef), c.Priority)
	assert.Equal(t, PeerReflexive, c.Type)
}
