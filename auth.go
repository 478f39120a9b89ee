package ice

// credentialPair is one ufrag:ufrag / password combination (§3 "Credentials").
type credentialPair struct {
	username string
	password string
}

// Credentials holds the two derived ufrag/password pairs a session needs:
// tx to authenticate probes we send, rx to authenticate probes we receive
// (§3, §6).
type Credentials struct {
	localUfrag     string
	localPassword  string
	remoteUfrag    string
	remotePassword string

	// tx is used for outbound probes: USERNAME is "local-ufrag:remote-ufrag",
	// MESSAGE-INTEGRITY is keyed with the remote password.
	tx credentialPair

	// rx is used to authenticate inbound probes: USERNAME is
	// "remote-ufrag:local-ufrag", MESSAGE-INTEGRITY is keyed with the local
	// password.
	rx credentialPair
}

func newCredentials(localUfrag, localPassword, remoteUfrag, remotePassword string) Credentials {
	return Credentials{
		localUfrag:     localUfrag,
		localPassword:  localPassword,
		remoteUfrag:    remoteUfrag,
		remotePassword: remotePassword,
		tx: credentialPair{
			username: localUfrag + ":" + remoteUfrag,
			password: remotePassword,
		},
		rx: credentialPair{
			username: remoteUfrag + ":" + localUfrag,
			password: localPassword,
		},
	}
}

// credentialAdapter implements the "dynamic-credential adapter" §6
// describes as being handed to the STUN sub-session: four pure functions
// derived from the one Credentials value, with no NONCE support.
type credentialAdapter struct {
	creds Credentials
}

// getRealmNonce: both are always empty (§6 — no NONCE is used).
func (a credentialAdapter) getRealmNonce() (realm, nonce string) {
	return "", ""
}

// getOutgoingCredential returns the tx credential for outgoing requests and
// the rx credential for outgoing responses (§6).
func (a credentialAdapter) getOutgoingCredential(forResponse bool) credentialPair {
	if forResponse {
		return a.creds.rx
	}
	return a.creds.tx
}

// getPasswordForIncoming returns the password to check a received message's
// MESSAGE-INTEGRITY against: for a response, the tx password when the
// username is empty or matches what we sent (tx.username); for a request,
// the rx password when the username matches rx.username (§6).
func (a credentialAdapter) getPasswordForIncoming(isRequest bool, username string) (password string, ok bool) {
	if isRequest {
		if username != a.creds.rx.username {
			return "", false
		}
		return a.creds.rx.password, true
	}
	if username != "" && username != a.creds.tx.username {
		return "", false
	}
	return a.creds.tx.password, true
}

// verifyNonce always succeeds: no NONCE is used (§6).
func (a credentialAdapter) verifyNonce(string) bool {
	return true
}
