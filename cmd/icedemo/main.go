// Command icedemo demonstrates the ice package end to end: two processes,
// one Controlling and one Controlled, gather a host candidate each,
// trickle them through a tiny websocket signaling server, and run
// connectivity checks to a single nominated pair.
package main

import (
	"fmt"
	"net"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/pion/randutil"
	flag "github.com/spf13/pflag"

	ice "github.com/icelink/agent"
)

func main() {
	flag.Parse()
	if flagHelp {
		fmt.Println(helpString)
		os.Exit(0)
	}

	switch flagMode {
	case "serve":
		runSignalingServer()
	case "offer":
		runPeer(ice.Controlling)
	case "answer":
		runPeer(ice.Controlled)
	default:
		fmt.Fprintf(os.Stderr, "unknown --mode %q\n", flagMode)
		os.Exit(1)
	}
}

func runSignalingServer() {
	addr := flagSignalAddr
	// flagSignalAddr is a ws:// URL when used by a peer; as a server bind
	// address we just want host:port.
	if host, _, ok := splitWSURL(addr); ok {
		addr = host
	}
	if err := serveSignaling(addr); err != nil {
		color.Red("icedemo: signaling server exited: %v", err)
		os.Exit(1)
	}
}

func splitWSURL(wsURL string) (hostport string, path string, ok bool) {
	const prefix = "ws://"
	if len(wsURL) < len(prefix) || wsURL[:len(prefix)] != prefix {
		return "", "", false
	}
	rest := wsURL[len(prefix):]
	for i := 0; i < len(rest); i++ {
		if rest[i] == '/' {
			return rest[:i], rest[i:], true
		}
	}
	return rest, "/", true
}

const componentID = 1

func runPeer(role ice.Role) {
	conn, err := net.ListenUDP("udp", mustResolveUDP(flagLocalAddr))
	if err != nil {
		color.Red("icedemo: listen failed: %v", err)
		os.Exit(1)
	}

	nomination := ice.NominateAggressive
	if !flagAggressive {
		nomination = ice.NominateRegular
	}

	done := make(chan bool, 1)
	session := ice.NewSession(ice.Config{
		Role:              role,
		Nomination:        nomination,
		KeepaliveInterval: 15 * time.Second,
	}, ice.Callbacks{
		OnIceComplete: func(success bool) { done <- success },
	})
	defer session.Destroy()

	if err := session.AddComponent(componentID, conn); err != nil {
		color.Red("icedemo: add component failed: %v", err)
		os.Exit(1)
	}
	if err := session.StartGathering(); err != nil {
		color.Red("icedemo: gathering failed: %v", err)
		os.Exit(1)
	}

	localUfrag := randomToken(4)
	localPassword := randomToken(22)

	var candLines []string
	for _, c := range session.LocalCandidates() {
		candLines = append(candLines, c.String())
	}

	color.Cyan("icedemo: %s gathered %d local candidate(s), contacting signaling server...", role, len(candLines))

	remote, err := exchangePeerInfo(flagSignalAddr, flagRoomID, peerInfo{
		Ufrag:      localUfrag,
		Password:   localPassword,
		Candidates: candLines,
	})
	if err != nil {
		color.Red("icedemo: signaling exchange failed: %v", err)
		os.Exit(1)
	}

	session.SetCredentials(localUfrag, localPassword, remote.Ufrag, remote.Password)

	var remoteCands []ice.Candidate
	for _, line := range remote.Candidates {
		c, err := ice.ParseCandidateSDP(line)
		if err != nil {
			color.Yellow("icedemo: skipping unparsable remote candidate %q: %v", line, err)
			continue
		}
		remoteCands = append(remoteCands, c)
	}

	if err := session.AddRemoteCandidates(remoteCands); err != nil {
		color.Red("icedemo: check list construction failed: %v", err)
		os.Exit(1)
	}
	if err := session.StartChecks(); err != nil {
		color.Red("icedemo: start checks failed: %v", err)
		os.Exit(1)
	}

	color.Cyan("icedemo: %s running connectivity checks against %d remote candidate(s)...", role, len(remoteCands))

	select {
	case success := <-done:
		if success {
			pair, _ := session.SelectedPair(componentID)
			color.Green("icedemo: connected! nominated pair: %s", pair.String())
		} else {
			color.Red("icedemo: ICE failed to converge")
			os.Exit(1)
		}
	case <-time.After(30 * time.Second):
		color.Red("icedemo: timed out waiting for connectivity")
		os.Exit(1)
	}
}

func mustResolveUDP(addr string) *net.UDPAddr {
	a, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		color.Red("icedemo: bad --local-addr %q: %v", addr, err)
		os.Exit(1)
	}
	return a
}

func randomToken(n int) string {
	s, err := randutil.GenerateCryptoRandomString(n, "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789")
	if err != nil {
		return "fallback-token"
	}
	return s
}
