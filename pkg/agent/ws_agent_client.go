// SPDX-FileCopyrightText: 2020 Alvar Penning
// SPDX-FileCopyrightText: 2026 The comunicacionagentes Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package agent

import (
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/gorilla/websocket"

	"github.com/MoisesRodriguez12/comunicacionagentes/pkg/envelope"
)

// PeerSession is one client connected to a PeerServer.
type PeerSession struct {
	sync.Mutex

	conn   *websocket.Conn
	remote string

	shutdownOnce sync.Once
}

func newPeerSession(conn *websocket.Conn) *PeerSession {
	return &PeerSession{
		conn:   conn,
		remote: conn.RemoteAddr().String(),
	}
}

// Remote address of this session's client.
func (s *PeerSession) Remote() string {
	return s.remote
}

func (s *PeerSession) shutdown(closeCode int) (err error) {
	s.shutdownOnce.Do(func() {
		log.WithField("peer session", s.remote).Debug("Reached shutdown")

		closeMsg := websocket.FormatCloseMessage(closeCode, "")
		_ = s.conn.WriteControl(websocket.CloseMessage, closeMsg, time.Now().Add(time.Second))
		err = s.conn.Close()
	})
	return
}

// handleConn reads Envelopes until the client disconnects.
func (s *PeerSession) handleConn(handler PeerHandler) {
	defer func() { _ = s.shutdown(websocket.CloseNormalClosure) }()

	var logger = log.WithField("peer session", s.remote)

	for {
		messageType, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Debug("Client closed the session")
			} else {
				logger.WithError(err).Info("Reading from session errored")
			}
			return
		} else if messageType != websocket.TextMessage {
			logger.WithField("message type", messageType).Warn("Ignoring non-text frame")
			continue
		}

		e, err := envelope.Unmarshal(data)
		if err != nil {
			logger.WithError(err).Warn("Dropping malformed frame")
			continue
		}

		logger.WithField("envelope", e).Debug("Received envelope")
		handler.HandleEnvelope(s, e)
	}
}

// Send an Envelope to this session's client.
func (s *PeerSession) Send(e envelope.Envelope) error {
	data, err := envelope.Marshal(e)
	if err != nil {
		return err
	}

	s.Lock()
	defer s.Unlock()

	return s.conn.WriteMessage(websocket.TextMessage, data)
}

// Close this session normally.
func (s *PeerSession) Close() error {
	return s.shutdown(websocket.CloseNormalClosure)
}
