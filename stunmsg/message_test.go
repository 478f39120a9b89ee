package stunmsg

import (
	"net"
	"testing"

	"github.com/pion/stun/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTxID(t *testing.T) stun.TransactionID {
	t.Helper()
	id, err := NewTransactionID()
	require.NoError(t, err)
	return id
}

func TestBuildBindingRequestRoundTrip(t *testing.T) {
	txID := newTxID(t)
	req, err := BuildBindingRequest(txID, "ufragB:ufragA", 0xcafebabe, true, RoleControlling, 123456789, "password")
	require.NoError(t, err)

	decoded, err := Parse(req.Raw)
	require.NoError(t, err)
	require.NotNil(t, decoded)

	assert.True(t, decoded.IsRequest())
	assert.True(t, decoded.IsBindingMethod())
	assert.True(t, decoded.HasUseCandidate())
	assert.True(t, decoded.CheckIntegrity("password"))

	username, ok := decoded.Username()
	require.True(t, ok)
	assert.Equal(t, "ufragB:ufragA", username)

	priority, ok := decoded.GetPriority()
	require.True(t, ok)
	assert.Equal(t, uint32(0xcafebabe), priority)
}

func TestBuildBindingRequestWithoutUseCandidate(t *testing.T) {
	txID := newTxID(t)
	req, err := BuildBindingRequest(txID, "u", 100, false, RoleControlled, 1, "pw")
	require.NoError(t, err)

	decoded, err := Parse(req.Raw)
	require.NoError(t, err)
	assert.False(t, decoded.HasUseCandidate())
}

func TestCheckIntegrityFailsWithWrongPassword(t *testing.T) {
	txID := newTxID(t)
	req, err := BuildBindingRequest(txID, "u", 1, false, RoleControlling, 1, "right")
	require.NoError(t, err)

	decoded, err := Parse(req.Raw)
	require.NoError(t, err)
	assert.False(t, decoded.CheckIntegrity("wrong"))
}

func TestBuildBindingSuccessCarriesXorMappedAddress(t *testing.T) {
	txID := newTxID(t)
	req, err := BuildBindingRequest(txID, "u", 1, false, RoleControlling, 1, "pw")
	require.NoError(t, err)
	reqDecoded, err := Parse(req.Raw)
	require.NoError(t, err)

	mapped := &net.UDPAddr{IP: net.ParseIP("203.0.113.5"), Port: 55555}
	resp, err := BuildBindingSuccess(reqDecoded, mapped, "rxpw")
	require.NoError(t, err)

	decoded, err := Parse(resp.Raw)
	require.NoError(t, err)
	assert.True(t, decoded.IsSuccess())
	assert.Equal(t, txID, decoded.TransactionID)

	ip, port, ok := decoded.XORMappedAddress()
	require.True(t, ok)
	assert.Equal(t, "203.0.113.5", ip.String())
	assert.Equal(t, 55555, port)
}

func TestBuildBindingErrorCarriesErrorCode(t *testing.T) {
	txID := newTxID(t)
	req, err := BuildBindingRequest(txID, "u", 1, false, RoleControlling, 1, "pw")
	require.NoError(t, err)
	reqDecoded, err := Parse(req.Raw)
	require.NoError(t, err)

	resp, err := BuildBindingError(reqDecoded, 400, "Bad Request")
	require.NoError(t, err)

	decoded, err := Parse(resp.Raw)
	require.NoError(t, err)
	assert.True(t, decoded.IsErrorClass())

	code, reason, ok := decoded.ErrorCode()
	require.True(t, ok)
	assert.Equal(t, 400, code)
	assert.Equal(t, "Bad Request", reason)
}

func TestBuildBindingIndicationIsClassified(t *testing.T) {
	ind, err := BuildBindingIndication()
	require.NoError(t, err)

	decoded, err := Parse(ind.Raw)
	require.NoError(t, err)
	assert.True(t, decoded.IsIndication())
}

func TestParseReturnsNilForNonSTUNData(t *testing.T) {
	m, err := Parse([]byte("not a stun message"))
	assert.NoError(t, err)
	assert.Nil(t, m)
}

func TestRoleAttributeDistinguishesControllingFromControlled(t *testing.T) {
	txID := newTxID(t)
	controlling, err := BuildBindingRequest(txID, "u", 1, false, RoleControlling, 42, "pw")
	require.NoError(t, err)
	controlled, err := BuildBindingRequest(txID, "u", 1, false, RoleControlled, 42, "pw")
	require.NoError(t, err)

	assert.NotEqual(t, controlling.Raw, controlled.Raw)
}
