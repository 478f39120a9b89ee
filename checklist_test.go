package ice

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func addr(ip string, port int) TransportAddress {
	return TransportAddress{protocol: UDP, ip: ip, port: port, family: IPv4}
}

func TestCanPairRequiresMatchingComponentAndFamily(t *testing.T) {
	l := makeHostCandidate(1, addr("10.0.0.1", 1000))
	r := makeHostCandidate(1, addr("10.0.0.2", 2000))
	assert.True(t, canPair(l, r))

	r2 := makeHostCandidate(2, addr("10.0.0.2", 2000))
	assert.False(t, canPair(l, r2))

	r3 := makeHostCandidate(1, TransportAddress{protocol: UDP, ip: "2001:db8::2", port: 2000, family: IPv6})
	assert.False(t, canPair(l, r3))
}

func TestCanPairRejectsUnresolved(t *testing.T) {
	l := makeHostCandidate(1, addr("10.0.0.1", 1000))
	r := makeHostCandidate(1, addr("10.0.0.2", 2000))
	r.Address.family = Unresolved
	assert.False(t, canPair(l, r))
}

func TestBuildSortsDescendingByPriority(t *testing.T) {
	cl := newChecklist(100)
	locals := []Candidate{
		makeHostCandidate(1, addr("10.0.0.1", 1000)),
	}
	remotes := []Candidate{
		makeHostCandidate(1, addr("10.0.0.2", 2000)),
		makeHostCandidate(1, addr("10.0.0.3", 3000)),
	}
	require.NoError(t, cl.build(locals, remotes, Controlling))
	require.Len(t, cl.checks, 2)
	for i := 1; i < len(cl.checks); i++ {
		assert.GreaterOrEqual(t, cl.checks[i-1].Priority, cl.checks[i].Priority)
	}
}

func TestBuildPrunesRedundantFrozenPairs(t *testing.T) {
	cl := newChecklist(100)
	base := addr("10.0.0.1", 1000)
	server := addr("203.0.113.1", 3478)
	mapped := addr("203.0.113.9", 40000)

	locals := []Candidate{
		makeHostCandidate(1, base),
		makeServerReflexiveCandidate(1, mapped, base, server),
	}
	remotes := []Candidate{
		makeHostCandidate(1, addr("10.0.0.2", 2000)),
	}
	require.NoError(t, cl.build(locals, remotes, Controlling))

	// Both locals share an effective address (srflx reduces to its base),
	// so only the higher-priority (host) pairing should survive pruning.
	assert.Len(t, cl.checks, 1)
	assert.Equal(t, Host, cl.checks[0].Local.Type)
}

func TestPruneChecksNeverPrunesNonFrozenChecks(t *testing.T) {
	base := addr("10.0.0.1", 1000)
	remote := makeHostCandidate(1, addr("10.0.0.2", 2000))
	local := makeHostCandidate(1, base)

	inProgress := newCheck(0, local, remote, Controlling)
	inProgress.State = InProgress

	server := addr("203.0.113.1", 3478)
	mapped := addr("203.0.113.9", 40000)
	srflx := makeServerReflexiveCandidate(1, mapped, base, server)
	frozenDup := newCheck(1, srflx, remote, Controlling)

	// frozenDup's effective local address collides with inProgress's, but
	// pruneChecks only ever drops Frozen entries, never a check already
	// past Frozen.
	out := pruneChecks([]*Check{inProgress, frozenDup})
	assert.Len(t, out, 2, "an in-progress check must never be pruned out")
}

func TestBuildSkipsPairAlreadyCoveredByExistingCheck(t *testing.T) {
	cl := newChecklist(100)
	base := addr("10.0.0.1", 1000)
	remote := makeHostCandidate(1, addr("10.0.0.2", 2000))
	local := makeHostCandidate(1, base)

	require.NoError(t, cl.build([]Candidate{local}, []Candidate{remote}, Controlling))
	cl.checks[0].State = InProgress
	require.Len(t, cl.checks, 1)

	// A second build call (e.g. a trickled remote candidate arriving after
	// checks started) must not add a duplicate Frozen check alongside the
	// already-in-flight one for the same (effective local, remote) pair.
	server := addr("203.0.113.1", 3478)
	mapped := addr("203.0.113.9", 40000)
	srflx := makeServerReflexiveCandidate(1, mapped, base, server)
	require.NoError(t, cl.build([]Candidate{srflx}, []Candidate{remote}, Controlling))

	assert.Len(t, cl.checks, 1, "re-pairing onto an already-covered address must not duplicate the check")
}

func TestBuildRejectsTooManyChecks(t *testing.T) {
	cl := newChecklist(1)
	locals := []Candidate{makeHostCandidate(1, addr("10.0.0.1", 1000))}
	remotes := []Candidate{
		makeHostCandidate(1, addr("10.0.0.2", 2000)),
		makeHostCandidate(1, addr("10.0.0.3", 3000)),
	}
	err := cl.build(locals, remotes, Controlling)
	require.Error(t, err)
	assert.True(t, IsKind(err, TooManyChecks))
}

func TestFindByAddresses(t *testing.T) {
	cl := newChecklist(100)
	local := makeHostCandidate(1, addr("10.0.0.1", 1000))
	remote := makeHostCandidate(1, addr("10.0.0.2", 2000))
	require.NoError(t, cl.build([]Candidate{local}, []Candidate{remote}, Controlling))

	found := cl.findByAddresses(local.BaseAddress, remote.Address)
	require.NotNil(t, found)
	assert.Equal(t, local.Address, found.Local.Address)

	assert.Nil(t, cl.findByAddresses(addr("1.2.3.4", 9), remote.Address))
}

func TestAddValidKeepsDescendingOrder(t *testing.T) {
	cl := newChecklist(100)
	local := makeHostCandidate(1, addr("10.0.0.1", 1000))
	remoteA := makeHostCandidate(1, addr("10.0.0.2", 2000))
	remoteB := makeHostCandidate(1, addr("10.0.0.3", 3000))
	require.NoError(t, cl.build([]Candidate{local}, []Candidate{remoteA, remoteB}, Controlling))

	for _, c := range cl.checks {
		c.State = Succeeded
		cl.addValid(c)
	}

	require.Len(t, cl.valid, 2)
	first := cl.checks[cl.valid[0]]
	second := cl.checks[cl.valid[1]]
	assert.GreaterOrEqual(t, first.Priority, second.Priority)
}

func TestAllTerminal(t *testing.T) {
	cl := newChecklist(100)
	local := makeHostCandidate(1, addr("10.0.0.1", 1000))
	remote := makeHostCandidate(1, addr("10.0.0.2", 2000))
	require.NoError(t, cl.build([]Candidate{local}, []Candidate{remote}, Controlling))

	assert.False(t, cl.allTerminal())
	cl.checks[0].State = Failed
	assert.True(t, cl.allTerminal())
}
