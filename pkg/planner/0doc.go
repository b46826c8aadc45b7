// SPDX-FileCopyrightText: 2026 The comunicacionagentes Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package planner implements the planning agent serving the UI agent's requests.
//
// A Planner answers Envelopes received through its agent.PeerServer. Planning requests create a fallback plan of four
// tasks which is persisted in a storage.RecordStore and announced through task updates. Furthermore, the stored events
// and plans are exposed through a small REST API.
package planner
