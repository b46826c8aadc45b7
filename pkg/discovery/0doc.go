// SPDX-FileCopyrightText: 2020 Alvar Penning
// SPDX-FileCopyrightText: 2026 The comunicacionagentes Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package discovery announces and finds planner peers through UDP multicast packages.
//
// A planner announces its agent identifier together with the port and path of its WebSocket endpoint. Announcements
// are CBOR encoded. Clients use Discover to collect the announcing peers for a while.
package discovery

const (
	// address4 is the default multicast IPv4 address used for discovery.
	address4 = "224.23.23.23"

	// address6 is the default multicast IPv6 address used for discovery.
	address6 = "ff02::23"

	// port is the default multicast UDP port used for discovery.
	port = 35039
)
