// SPDX-FileCopyrightText: 2019, 2020 Alvar Penning
// SPDX-FileCopyrightText: 2020 Markus Sommer
// SPDX-FileCopyrightText: 2026 The comunicacionagentes Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package discovery

import (
	"reflect"
	"testing"
)

func TestAnnouncementCbor(t *testing.T) {
	var tests = []Announcement{
		{AgentID: "agent_planner@localhost", Port: 8081, Path: "/ws"},
		{AgentID: "agent_planner@example.org", Port: 443, Path: ""},
		{AgentID: "planner", Port: 65535, Path: "/agents/ws"},
	}

	for _, dmIn := range tests {
		buff, err := MarshalAnnouncements([]Announcement{dmIn})
		if err != nil {
			t.Fatalf("Encoding failed: %v", err)
		}

		dmsOut, err := UnmarshalAnnouncements(buff)
		if err != nil {
			t.Fatalf("Decoding failed: %v", err)
		}

		if l := len(dmsOut); l != 1 {
			t.Fatalf("Length of decoded Announcements is %d != 1", l)
		}

		if !reflect.DeepEqual(dmIn, dmsOut[0]) {
			t.Fatalf("Decoded Announcement differs: %v became %v", dmIn, dmsOut[0])
		}
	}
}

func TestAnnouncementsInvalid(t *testing.T) {
	var tests = []Announcement{
		{AgentID: "", Port: 8081, Path: "/ws"},
		{AgentID: "planner", Port: 0, Path: "/ws"},
		{AgentID: "planner", Port: 70000, Path: "/ws"},
	}

	for _, dmIn := range tests {
		buff, err := MarshalAnnouncements([]Announcement{dmIn})
		if err != nil {
			t.Fatalf("Encoding failed: %v", err)
		}

		if _, err := UnmarshalAnnouncements(buff); err == nil {
			t.Fatalf("Decoding %v did not fail", dmIn)
		}
	}

	if _, err := UnmarshalAnnouncements([]byte("garbage")); err == nil {
		t.Fatal("Decoding garbage did not fail")
	}
}

func TestPeerURL(t *testing.T) {
	var tests = []struct {
		peer Peer
		url  string
	}{
		{Peer{Announcement{"a", 8081, "/ws"}, "192.168.0.2"}, "ws://192.168.0.2:8081/ws"},
		{Peer{Announcement{"a", 8081, "ws"}, "192.168.0.2"}, "ws://192.168.0.2:8081/ws"},
		{Peer{Announcement{"a", 80, ""}, "[fe80::1]"}, "ws://[fe80::1]:80/"},
	}

	for _, test := range tests {
		if url := test.peer.URL(); url != test.url {
			t.Fatalf("expected %s, got %s", test.url, url)
		}
	}
}
