// SPDX-FileCopyrightText: 2026 The comunicacionagentes Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"fmt"
	"net"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/BurntSushi/toml"
	"github.com/hashicorp/go-multierror"

	"github.com/MoisesRodriguez12/comunicacionagentes/pkg/agent"
	"github.com/MoisesRodriguez12/comunicacionagentes/pkg/discovery"
)

// tomlConfig describes the TOML-configuration.
type tomlConfig struct {
	Logging   logConf
	Planner   plannerConf
	Discovery discoveryConf
}

// logConf describes the Logging-configuration block.
type logConf struct {
	Level        string
	ReportCaller bool `toml:"report-caller"`
	Format       string
}

// plannerConf describes the Planner-configuration block.
type plannerConf struct {
	AgentID string `toml:"agent-id"`
	Listen  string
	Store   string
}

// discoveryConf describes the Discovery-configuration block.
type discoveryConf struct {
	IPv4     bool
	IPv6     bool
	Interval uint
}

// parseListenPort extracts the port of a "host:port" listen address.
func parseListenPort(endpoint string) (port int, err error) {
	var portStr string
	_, portStr, err = net.SplitHostPort(endpoint)
	if err != nil {
		return
	}
	port, err = strconv.Atoi(portStr)
	return
}

// setupLogging as configured in the Logging-configuration block.
func setupLogging(conf logConf) {
	if conf.Level != "" {
		if lvl, err := log.ParseLevel(conf.Level); err != nil {
			log.WithFields(log.Fields{
				"level":    conf.Level,
				"error":    err,
				"provided": "panic,fatal,error,warn,info,debug,trace",
			}).Warn("Failed to set log level. Please select one of the provided ones")
		} else {
			log.SetLevel(lvl)
		}
	}

	log.SetReportCaller(conf.ReportCaller)

	switch conf.Format {
	case "", "text":
		log.SetFormatter(&log.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "15:04:05.000",
		})

	case "json":
		log.SetFormatter(&log.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
		})

	default:
		log.Warn("Unknown logging format")
	}
}

// checkValid reports every missing or malformed setting.
func (conf *tomlConfig) checkValid() (errs error) {
	if conf.Planner.Store == "" {
		errs = multierror.Append(errs, fmt.Errorf("planner.store is empty"))
	}
	if conf.Planner.Listen == "" {
		errs = multierror.Append(errs, fmt.Errorf("planner.listen is empty"))
	} else if _, err := parseListenPort(conf.Planner.Listen); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("planner.listen: %w", err))
	}
	return
}

// parseConfig reads the TOML configuration file, applies its logging settings and fills in defaults.
func parseConfig(filename string) (conf tomlConfig, err error) {
	if _, err = toml.DecodeFile(filename, &conf); err != nil {
		return
	}

	setupLogging(conf.Logging)

	if conf.Planner.AgentID == "" {
		conf.Planner.AgentID = agent.DefaultPlannerID
	}
	if conf.Discovery.Interval == 0 {
		conf.Discovery.Interval = 10
	}

	err = conf.checkValid()
	return
}

// startDiscovery announces the planner's WebSocket endpoint, if enabled.
func startDiscovery(conf tomlConfig) (*discovery.Manager, error) {
	if !conf.Discovery.IPv4 && !conf.Discovery.IPv6 {
		return nil, nil
	}

	port, err := parseListenPort(conf.Planner.Listen)
	if err != nil {
		return nil, err
	}

	announcement := discovery.Announcement{
		AgentID: conf.Planner.AgentID,
		Port:    uint(port),
		Path:    "/ws",
	}

	notify := func(peer discovery.Peer) {
		log.WithField("peer", peer).Debug("Discovered another planner")
	}

	return discovery.NewManager(
		conf.Planner.AgentID, notify,
		[]discovery.Announcement{announcement}, time.Duration(conf.Discovery.Interval)*time.Second,
		conf.Discovery.IPv4, conf.Discovery.IPv6)
}
