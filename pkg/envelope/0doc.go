// SPDX-FileCopyrightText: 2026 The comunicacionagentes Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package envelope describes the message unit exchanged between the UI agent and its peers.
//
// An Envelope is transmitted as a single JSON text frame. Its Body is opaque to this package and is passed through
// unchanged; only the Metadata is inspected for correlation and dispatching.
package envelope
