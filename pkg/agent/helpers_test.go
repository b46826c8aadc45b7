// SPDX-FileCopyrightText: 2026 The comunicacionagentes Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package agent

import (
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/MoisesRodriguez12/comunicacionagentes/pkg/envelope"
)

// randomPort returns a free TCP port on localhost.
func randomPort(t *testing.T) (port int) {
	if addr, err := net.ResolveTCPAddr("tcp", "localhost:0"); err != nil {
		t.Fatal(err)
	} else if l, err := net.ListenTCP("tcp", addr); err != nil {
		t.Fatal(err)
	} else {
		port = l.Addr().(*net.TCPAddr).Port
		_ = l.Close()
	}
	return
}

// isAddrReachable checks if a TCP address - like localhost:2342 - is reachable.
func isAddrReachable(addr string) (open bool) {
	if conn, err := net.DialTimeout("tcp", addr, time.Second); err != nil {
		open = false
	} else {
		open = true
		_ = conn.Close()
	}
	return
}

// wsAddress for a host:port.
func wsAddress(addr string) string {
	u := url.URL{
		Scheme: "ws",
		Host:   addr,
		Path:   "/ws",
	}
	return u.String()
}

// testPeer is a PeerServer bound to a HTTP server on localhost.
type testPeer struct {
	*PeerServer

	addr       string
	httpServer *http.Server
}

// startPeer on the given address, or on a random port for an empty address.
func startPeer(t *testing.T, addr string, handler PeerHandler) *testPeer {
	if addr == "" {
		addr = fmt.Sprintf("localhost:%d", randomPort(t))
	}

	ps := NewPeerServer(handler)

	httpMux := http.NewServeMux()
	httpMux.Handle("/ws", ps)
	httpServer := &http.Server{
		Addr:    addr,
		Handler: httpMux,
	}
	go func() { _ = httpServer.ListenAndServe() }()

	for i := 1; i <= 20; i++ {
		if isAddrReachable(addr) {
			break
		} else if i == 20 {
			t.Fatal("PeerServer seems to be unreachable")
		}
		time.Sleep(25 * time.Millisecond)
	}

	return &testPeer{
		PeerServer: ps,
		addr:       addr,
		httpServer: httpServer,
	}
}

// stop the peer, including all of its sessions.
func (tp *testPeer) stop() {
	_ = tp.httpServer.Close()
	_ = tp.PeerServer.Close()
}

// recordingPeer is a PeerHandler storing every received Envelope. If reply is set, it is called for each Envelope.
type recordingPeer struct {
	sync.Mutex

	received []envelope.Envelope
	reply    func(session *PeerSession, e envelope.Envelope)
}

func (rp *recordingPeer) HandleEnvelope(session *PeerSession, e envelope.Envelope) {
	rp.Lock()
	rp.received = append(rp.received, e)
	reply := rp.reply
	rp.Unlock()

	if reply != nil {
		reply(session, e)
	}
}

func (rp *recordingPeer) inbox() []envelope.Envelope {
	rp.Lock()
	defer rp.Unlock()

	msgs := make([]envelope.Envelope, len(rp.received))
	copy(msgs, rp.received)
	return msgs
}

// waitFor polls the condition until it holds or the timeout is reached.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	deadline := time.Now().Add(timeout)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timeout: %s", msg)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// stateRecorder counts State transitions of a Connection.
type stateRecorder struct {
	sync.Mutex

	states []State
}

func recordStates(c *Connection) *stateRecorder {
	sr := &stateRecorder{}
	c.OnStateChange(func(s State) {
		sr.Lock()
		sr.states = append(sr.states, s)
		sr.Unlock()
	})
	return sr
}

func (sr *stateRecorder) count(s State) (n int) {
	sr.Lock()
	defer sr.Unlock()

	for _, state := range sr.states {
		if state == s {
			n++
		}
	}
	return
}

// nopHandler drops every inbound frame.
type nopHandler struct{}

func (nopHandler) OnMessage([]byte) {}
