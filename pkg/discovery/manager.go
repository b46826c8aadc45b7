// SPDX-FileCopyrightText: 2019, 2020 Alvar Penning
// SPDX-FileCopyrightText: 2020 Markus Sommer
// SPDX-FileCopyrightText: 2026 The comunicacionagentes Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package discovery

import (
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/schollz/peerdiscovery"
)

// Manager publishes and receives Announcements.
type Manager struct {
	AgentID    string
	NotifyFunc func(Peer)

	stopChan4 chan struct{}
	stopChan6 chan struct{}
}

// NewManager for Announcements will be created and started. Peers other than this agent are passed to notifyFunc,
// which might be nil.
func NewManager(
	agentID string, notifyFunc func(Peer),
	announcements []Announcement, announcementInterval time.Duration,
	ipv4, ipv6 bool) (*Manager, error) {

	var manager = &Manager{
		AgentID:    agentID,
		NotifyFunc: notifyFunc,
	}
	if ipv4 {
		manager.stopChan4 = make(chan struct{})
	}
	if ipv6 {
		manager.stopChan6 = make(chan struct{})
	}

	log.WithFields(log.Fields{
		"interval":      announcementInterval,
		"IPv4":          ipv4,
		"IPv6":          ipv6,
		"announcements": announcements,
	}).Info("Starting Manager")

	msg, err := MarshalAnnouncements(announcements)
	if err != nil {
		return nil, err
	}

	for _, set := range settings(ipv4, ipv6, manager.stopChan4, manager.stopChan6, manager.notify) {
		set.Payload = msg
		set.Delay = announcementInterval
		set.TimeLimit = -1

		discoverErrChan := make(chan error)
		go func(set peerdiscovery.Settings) {
			_, discoverErr := peerdiscovery.Discover(set)
			discoverErrChan <- discoverErr
		}(set)

		select {
		case discoverErr := <-discoverErrChan:
			if discoverErr != nil {
				return nil, discoverErr
			}

		case <-time.After(time.Second):
			break
		}
	}

	return manager, nil
}

// settings for each active IP version. The notify function receives IPv6 addresses enclosed in brackets.
func settings(ipv4, ipv6 bool, stopChan4, stopChan6 chan struct{},
	notify func(peerdiscovery.Discovered)) (sets []peerdiscovery.Settings) {
	var notify6 func(peerdiscovery.Discovered)
	if notify != nil {
		notify6 = func(discovered peerdiscovery.Discovered) {
			discovered.Address = fmt.Sprintf("[%s]", discovered.Address)
			notify(discovered)
		}
	}

	versions := []struct {
		active           bool
		multicastAddress string
		stopChan         chan struct{}
		ipVersion        peerdiscovery.IPVersion
		notify           func(discovered peerdiscovery.Discovered)
	}{
		{ipv4, address4, stopChan4, peerdiscovery.IPv4, notify},
		{ipv6, address6, stopChan6, peerdiscovery.IPv6, notify6},
	}

	for _, version := range versions {
		if !version.active {
			continue
		}

		sets = append(sets, peerdiscovery.Settings{
			Limit:            -1,
			Port:             fmt.Sprintf("%d", port),
			MulticastAddress: version.multicastAddress,
			StopChan:         version.stopChan,
			AllowSelf:        true,
			IPVersion:        version.ipVersion,
			Notify:           version.notify,
		})
	}
	return
}

func (manager *Manager) notify(discovered peerdiscovery.Discovered) {
	peers, err := peersOf(discovered)
	if err != nil {
		log.WithError(err).WithFields(log.Fields{
			"discovery": manager.AgentID,
			"peer":      discovered.Address,
		}).Warn("Peer discovery failed to parse incoming package")

		return
	}

	for _, peer := range peers {
		manager.handleDiscovery(peer)
	}
}

func (manager *Manager) handleDiscovery(peer Peer) {
	log.WithFields(log.Fields{
		"discovery": manager.AgentID,
		"peer":      peer.Address,
		"message":   peer.Announcement,
	}).Debug("Peer discovery received a message")

	if peer.AgentID == manager.AgentID || manager.NotifyFunc == nil {
		return
	}

	manager.NotifyFunc(peer)
}

// Close this Manager.
func (manager *Manager) Close() {
	for _, c := range []chan struct{}{manager.stopChan4, manager.stopChan6} {
		if c != nil {
			c <- struct{}{}
		}
	}
}

func peersOf(discovered peerdiscovery.Discovered) (peers []Peer, err error) {
	announcements, err := UnmarshalAnnouncements(discovered.Payload)
	if err != nil {
		return
	}

	peers = make([]Peer, len(announcements))
	for i, announcement := range announcements {
		peers[i] = Peer{Announcement: announcement, Address: discovered.Address}
	}
	return
}

// Discover listens for announcing peers for the given time and returns each distinct endpoint once.
func Discover(timeout time.Duration, ipv4, ipv6 bool) ([]Peer, error) {
	if !ipv4 && !ipv6 {
		return nil, fmt.Errorf("neither IPv4 nor IPv6 is enabled")
	}

	// An empty announcement list keeps this listener silent for others.
	msg, err := MarshalAnnouncements(nil)
	if err != nil {
		return nil, err
	}

	var (
		peers []Peer
		known = make(map[string]struct{})
	)

	for _, set := range settings(ipv4, ipv6, nil, nil, nil) {
		set.Payload = msg
		set.Delay = timeout / 4
		set.TimeLimit = timeout

		discovered, discoverErr := peerdiscovery.Discover(set)
		if discoverErr != nil {
			return nil, discoverErr
		}

		for _, d := range discovered {
			if set.IPVersion == peerdiscovery.IPv6 {
				d.Address = fmt.Sprintf("[%s]", d.Address)
			}

			dPeers, dErr := peersOf(d)
			if dErr != nil {
				log.WithError(dErr).WithField("peer", d.Address).Debug("Skipping unparsable announcement")
				continue
			}

			for _, peer := range dPeers {
				if _, ok := known[peer.URL()]; ok {
					continue
				}
				known[peer.URL()] = struct{}{}
				peers = append(peers, peer)
			}
		}
	}

	log.WithFields(log.Fields{
		"timeout": timeout,
		"peers":   len(peers),
	}).Debug("Discovery finished")

	return peers, nil
}
