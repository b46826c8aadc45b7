// SPDX-FileCopyrightText: 2020 Alvar Penning
// SPDX-FileCopyrightText: 2026 The comunicacionagentes Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package agent

import (
	"sync"

	"github.com/hashicorp/go-multierror"

	"github.com/MoisesRodriguez12/comunicacionagentes/pkg/envelope"
)

// sessionMux multiplexes Envelopes to all PeerSessions of a PeerServer.
type sessionMux struct {
	sync.Mutex

	sessions []*PeerSession
}

func newSessionMux() *sessionMux {
	return &sessionMux{}
}

func (mux *sessionMux) register(s *PeerSession) {
	mux.Lock()
	defer mux.Unlock()

	mux.sessions = append(mux.sessions, s)
}

func (mux *sessionMux) unregister(s *PeerSession) {
	mux.Lock()
	defer mux.Unlock()

	for i, session := range mux.sessions {
		if session == s {
			mux.sessions = append(mux.sessions[:i], mux.sessions[i+1:]...)
			break
		}
	}
}

func (mux *sessionMux) snapshot() []*PeerSession {
	mux.Lock()
	defer mux.Unlock()

	sessions := make([]*PeerSession, len(mux.sessions))
	copy(sessions, mux.sessions)
	return sessions
}

func (mux *sessionMux) len() int {
	mux.Lock()
	defer mux.Unlock()

	return len(mux.sessions)
}

func (mux *sessionMux) broadcast(e envelope.Envelope) (errs error) {
	for _, s := range mux.snapshot() {
		if err := s.Send(e); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	return
}

func (mux *sessionMux) closeAll(closeCode int) (errs error) {
	for _, s := range mux.snapshot() {
		if err := s.shutdown(closeCode); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	return
}
