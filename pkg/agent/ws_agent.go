// SPDX-FileCopyrightText: 2020 Alvar Penning
// SPDX-FileCopyrightText: 2026 The comunicacionagentes Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package agent

import (
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/gorilla/websocket"

	"github.com/MoisesRodriguez12/comunicacionagentes/pkg/envelope"
)

// PeerHandler processes Envelopes received by a PeerServer. Replies can be sent on the session.
type PeerHandler interface {
	HandleEnvelope(session *PeerSession, e envelope.Envelope)
}

// PeerHandlerFunc adapts a function to a PeerHandler.
type PeerHandlerFunc func(session *PeerSession, e envelope.Envelope)

// HandleEnvelope calls f(session, e).
func (f PeerHandlerFunc) HandleEnvelope(session *PeerSession, e envelope.Envelope) {
	f(session, e)
}

// PeerServer is the WebSocket server side of a Connection. Each accepted client becomes a PeerSession.
type PeerServer struct {
	handler  PeerHandler
	sessions *sessionMux

	upgrader websocket.Upgrader
}

// NewPeerServer for the handler. The ServeHTTP function must be bound to the HTTP server.
func NewPeerServer(handler PeerHandler) *PeerServer {
	return &PeerServer{
		handler:  handler,
		sessions: newSessionMux(),

		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// ServeHTTP must be bound to a HTTP endpoint, e.g., to /ws by a mux.Router.
func (ps *PeerServer) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	conn, connErr := ps.upgrader.Upgrade(rw, r, nil)
	if connErr != nil {
		log.WithError(connErr).Warn("Upgrading HTTP request to WebSocket errored")
		return
	}

	session := newPeerSession(conn)
	ps.sessions.register(session)
	defer ps.sessions.unregister(session)

	session.handleConn(ps.handler)
}

// Broadcast an Envelope to all connected sessions.
func (ps *PeerServer) Broadcast(e envelope.Envelope) error {
	return ps.sessions.broadcast(e)
}

// Sessions is the amount of connected clients.
func (ps *PeerServer) Sessions() int {
	return ps.sessions.len()
}

// Close all sessions. The server announces that it is going away; clients are expected to reconnect.
func (ps *PeerServer) Close() error {
	return ps.sessions.closeAll(websocket.CloseGoingAway)
}
