// SPDX-FileCopyrightText: 2019, 2020 Alvar Penning
// SPDX-FileCopyrightText: 2020 Markus Sommer
// SPDX-FileCopyrightText: 2026 The comunicacionagentes Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package discovery

import (
	"testing"

	"github.com/schollz/peerdiscovery"
)

func TestManagerNotify(t *testing.T) {
	var peers []Peer
	manager := &Manager{
		AgentID:    "agent_planner@localhost",
		NotifyFunc: func(peer Peer) { peers = append(peers, peer) },
	}

	payload, err := MarshalAnnouncements([]Announcement{
		{AgentID: "agent_planner@localhost", Port: 8081, Path: "/ws"},
		{AgentID: "agent_planner@remote", Port: 8082, Path: "/ws"},
	})
	if err != nil {
		t.Fatal(err)
	}

	manager.notify(peerdiscovery.Discovered{Address: "10.0.0.2", Payload: payload})
	manager.notify(peerdiscovery.Discovered{Address: "10.0.0.3", Payload: []byte("garbage")})

	if l := len(peers); l != 1 {
		t.Fatalf("expected one foreign peer, got %d", l)
	} else if url := peers[0].URL(); url != "ws://10.0.0.2:8082/ws" {
		t.Fatalf("unexpected url %s", url)
	}
}

func TestSettings(t *testing.T) {
	var addresses []string
	notify := func(d peerdiscovery.Discovered) { addresses = append(addresses, d.Address) }

	sets := settings(true, true, nil, nil, notify)
	if l := len(sets); l != 2 {
		t.Fatalf("expected two settings, got %d", l)
	}

	for _, set := range sets {
		set.Notify(peerdiscovery.Discovered{Address: "fe80::1"})
	}
	if addresses[0] != "fe80::1" || addresses[1] != "[fe80::1]" {
		t.Fatalf("unexpected addresses %v", addresses)
	}

	if sets := settings(false, false, nil, nil, notify); len(sets) != 0 {
		t.Fatalf("expected no settings, got %d", len(sets))
	}
}
