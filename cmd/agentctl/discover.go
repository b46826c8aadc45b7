// SPDX-FileCopyrightText: 2026 The comunicacionagentes Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/MoisesRodriguez12/comunicacionagentes/pkg/discovery"
)

// discover for the "discover" CLI option.
func discover(args []string) {
	if len(args) > 1 {
		printUsage()
	}

	seconds := 5
	if len(args) == 1 {
		if n, err := strconv.Atoi(args[0]); err != nil || n <= 0 {
			printUsage()
		} else {
			seconds = n
		}
	}

	peers, err := discovery.Discover(time.Duration(seconds)*time.Second, true, false)
	if err != nil {
		printFatal(err, "Discovery errored")
	}

	if len(peers) == 0 {
		fmt.Println("No planner found")
		return
	}
	for _, peer := range peers {
		fmt.Printf("%s\t%s\n", peer.AgentID, peer.URL())
	}
}
