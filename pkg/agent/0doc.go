// SPDX-FileCopyrightText: 2020 Alvar Penning
// SPDX-FileCopyrightText: 2026 The comunicacionagentes Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package agent connects the UI agent to its peers over a WebSocket and offers request/response semantics on top.
//
// A Connection owns the channel's lifecycle: it dials, reconnects after unexpected closes, queues Envelopes while
// disconnected and feeds every inbound frame to a FrameHandler. A Client assembles a Connection with a
// correlation.Registry and a dispatch.Dispatcher and produces correlated requests.
//
// The PeerServer is the other end of the channel. It accepts WebSocket clients and hands their Envelopes to a
// PeerHandler, e.g., the planner.
package agent
