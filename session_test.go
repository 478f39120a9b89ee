package ice

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func listenLoopback(t *testing.T) *net.UDPConn {
	t.Helper()
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 0})
	require.NoError(t, err)
	return conn
}

// newTestSession builds a Session with a short Ta so tests converge quickly.
func newTestSession(t *testing.T, role Role, nomination NominationMode, done chan bool) *Session {
	t.Helper()
	return NewSession(Config{
		Role:       role,
		Nomination: nomination,
		Ta:         2 * time.Millisecond,
	}, Callbacks{
		OnIceComplete: func(success bool) {
			select {
			case done <- success:
			default:
			}
		},
	})
}

// TestAggressiveNominationHostOnlyHandshake runs two real Sessions over
// loopback UDP sockets end to end: gather host candidates, exchange them
// directly (no signaling layer), start checks, and confirm both sides
// converge on a single nominated pair.
func TestAggressiveNominationHostOnlyHandshake(t *testing.T) {
	connA := listenLoopback(t)
	defer connA.Close()
	connB := listenLoopback(t)
	defer connB.Close()

	doneA := make(chan bool, 1)
	doneB := make(chan bool, 1)

	sessA := newTestSession(t, Controlling, NominateAggressive, doneA)
	defer sessA.Destroy()
	sessB := newTestSession(t, Controlled, NominateAggressive, doneB)
	defer sessB.Destroy()

	require.NoError(t, sessA.AddComponent(1, connA))
	require.NoError(t, sessB.AddComponent(1, connB))

	require.NoError(t, sessA.StartGathering())
	require.NoError(t, sessB.StartGathering())

	sessA.SetCredentials("ufragA", "passwordA1234567890123", "ufragB", "passwordB1234567890123")
	sessB.SetCredentials("ufragB", "passwordB1234567890123", "ufragA", "passwordA1234567890123")

	require.NoError(t, sessA.AddRemoteCandidates(sessB.LocalCandidates()))
	require.NoError(t, sessB.AddRemoteCandidates(sessA.LocalCandidates()))

	require.NoError(t, sessA.StartChecks())
	require.NoError(t, sessB.StartChecks())

	select {
	case success := <-doneA:
		assert.True(t, success)
	case <-time.After(5 * time.Second):
		t.Fatal("side A never completed")
	}
	select {
	case success := <-doneB:
		assert.True(t, success)
	case <-time.After(5 * time.Second):
		t.Fatal("side B never completed")
	}

	pairA, ok := sessA.SelectedPair(1)
	require.True(t, ok)
	pairB, ok := sessB.SelectedPair(1)
	require.True(t, ok)

	assert.Equal(t, pairA.Local.Address, pairB.Remote.Address)
	assert.Equal(t, pairA.Remote.Address, pairB.Local.Address)
}

func TestStartChecksIsIdempotent(t *testing.T) {
	conn := listenLoopback(t)
	defer conn.Close()

	s := newTestSession(t, Controlling, NominateAggressive, make(chan bool, 1))
	defer s.Destroy()

	require.NoError(t, s.AddComponent(1, conn))
	require.NoError(t, s.StartGathering())
	s.SetCredentials("ufragA", "passwordA1234567890123", "ufragB", "passwordB1234567890123")

	remote := makeHostCandidate(1, addr("10.0.0.9", 9999))
	require.NoError(t, s.AddRemoteCandidates([]Candidate{remote}))

	require.NoError(t, s.StartChecks())
	require.NoError(t, s.StartChecks()) // must not panic or re-run unfreezing
}

func TestStartChecksFailsWithoutCheckList(t *testing.T) {
	conn := listenLoopback(t)
	defer conn.Close()

	s := newTestSession(t, Controlling, NominateAggressive, make(chan bool, 1))
	defer s.Destroy()

	require.NoError(t, s.AddComponent(1, conn))
	err := s.StartChecks()
	require.Error(t, err)
	assert.True(t, IsKind(err, NoCheckList))
}

func TestAddComponentRejectsDuplicate(t *testing.T) {
	conn := listenLoopback(t)
	defer conn.Close()

	s := newTestSession(t, Controlling, NominateAggressive, make(chan bool, 1))
	defer s.Destroy()

	require.NoError(t, s.AddComponent(1, conn))
	err := s.AddComponent(1, conn)
	require.Error(t, err)
	assert.True(t, IsKind(err, InvalidArgument))
}

func TestEvaluateCompletionFiresOnlyOnce(t *testing.T) {
	calls := 0
	s := NewSession(Config{Role: Controlling, Ta: time.Hour}, Callbacks{
		OnIceComplete: func(success bool) { calls++ },
	})
	defer s.Destroy()

	local := makeHostCandidate(1, addr("10.0.0.1", 1000))
	remote := makeHostCandidate(1, addr("10.0.0.2", 2000))
	require.NoError(t, s.checklist.build([]Candidate{local}, []Candidate{remote}, Controlling))

	c := s.checklist.checks[0]
	c.State = Succeeded
	c.Nominated = true
	s.checklist.addValid(c)

	s.evaluateCompletion()
	s.evaluateCompletion()

	assert.Equal(t, 1, calls)
}

func TestCancelNonNominatedForNominatedComponents(t *testing.T) {
	s := NewSession(Config{Role: Controlling, Ta: time.Hour}, Callbacks{})
	defer s.Destroy()

	local := makeHostCandidate(1, addr("10.0.0.1", 1000))
	remoteA := makeHostCandidate(1, addr("10.0.0.2", 2000))
	remoteB := makeHostCandidate(1, addr("10.0.0.3", 3000))
	require.NoError(t, s.checklist.build([]Candidate{local}, []Candidate{remoteA, remoteB}, Controlling))

	winner := s.checklist.checks[0]
	winner.State = Succeeded
	winner.Nominated = true
	s.checklist.addValid(winner)

	loser := s.checklist.checks[1]
	loser.State = Waiting

	s.evaluateCompletion()

	assert.Equal(t, Failed, loser.State)
	assert.Equal(t, "Cancelled", loser.ErrCode)
}
