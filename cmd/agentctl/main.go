// SPDX-FileCopyrightText: 2026 The comunicacionagentes Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/BurntSushi/toml"

	"github.com/MoisesRodriguez12/comunicacionagentes/pkg/agent"
)

// configFile is read from the working directory, if present.
const configFile = "agentctl.toml"

// tomlConfig describes the optional TOML-configuration.
type tomlConfig struct {
	Logging logConf
	Agent   agentConf
}

// logConf describes the Logging-configuration block.
type logConf struct {
	Level string
}

// agentConf describes the Agent-configuration block.
type agentConf struct {
	AgentID        string `toml:"agent-id"`
	PlannerID      string `toml:"planner-id"`
	ReconnectDelay uint   `toml:"reconnect-delay"`
	Timeout        uint
}

// loadConfig from the filename; a missing file results in the defaults.
func loadConfig(filename string) (conf tomlConfig, err error) {
	conf.Logging.Level = "warn"

	if _, statErr := os.Stat(filename); errors.Is(statErr, os.ErrNotExist) {
		return
	}

	if _, err = toml.DecodeFile(filename, &conf); err != nil {
		return
	}

	if lvl, lvlErr := log.ParseLevel(conf.Logging.Level); lvlErr != nil {
		err = fmt.Errorf("logging.level: %w", lvlErr)
	} else {
		log.SetLevel(lvl)
	}
	return
}

// clientConfig for an agent.Client from the Agent-configuration block.
func (conf tomlConfig) clientConfig() agent.ClientConfig {
	return agent.ClientConfig{
		AgentID:   conf.Agent.AgentID,
		PlannerID: conf.Agent.PlannerID,
		Connection: agent.ConnectionOptions{
			ReconnectDelay: time.Duration(conf.Agent.ReconnectDelay) * time.Second,
		},
	}
}

// commandContext for a single command, limited by the configured timeout.
func (conf tomlConfig) commandContext() (context.Context, context.CancelFunc) {
	if conf.Agent.Timeout == 0 {
		return context.WithCancel(context.Background())
	}
	return context.WithTimeout(context.Background(), time.Duration(conf.Agent.Timeout)*time.Second)
}

// connect a new agent.Client to the address.
func connect(conf tomlConfig, address string) *agent.Client {
	c := agent.NewClient(conf.clientConfig())

	ctx, cancel := context.WithTimeout(context.Background(), agent.DefaultHandshakeTimeout)
	defer cancel()

	if err := c.Connect(ctx, address); err != nil {
		printFatal(err, "Connecting to the planner errored")
	}
	return c
}

// printFatal logs the error and exits.
func printFatal(err error, msg string) {
	log.WithError(err).Error(msg)
	os.Exit(1)
}

// printUsage of agentctl and exit with an error code afterwards.
func printUsage() {
	_, _ = fmt.Fprintf(os.Stderr, "Usage of %s plan|status|update|complete|listen|exchange|discover:\n\n", os.Args[0])

	_, _ = fmt.Fprintf(os.Stderr, "%s plan address -|event.json\n", os.Args[0])
	_, _ = fmt.Fprintf(os.Stderr, "  Requests a plan for the event read from stdin (-) or the given file and prints\n")
	_, _ = fmt.Fprintf(os.Stderr, "  the planner's response.\n\n")

	_, _ = fmt.Fprintf(os.Stderr, "%s status address task-id\n", os.Args[0])
	_, _ = fmt.Fprintf(os.Stderr, "  Queries the status of a task.\n\n")

	_, _ = fmt.Fprintf(os.Stderr, "%s update address event-id -|updates.json\n", os.Args[0])
	_, _ = fmt.Fprintf(os.Stderr, "  Informs the planner about changed event fields.\n\n")

	_, _ = fmt.Fprintf(os.Stderr, "%s complete address task-id\n", os.Args[0])
	_, _ = fmt.Fprintf(os.Stderr, "  Informs the planner that a task was executed.\n\n")

	_, _ = fmt.Fprintf(os.Stderr, "%s listen address\n", os.Args[0])
	_, _ = fmt.Fprintf(os.Stderr, "  Prints every inbound envelope until interrupted.\n\n")

	_, _ = fmt.Fprintf(os.Stderr, "%s exchange address directory\n", os.Args[0])
	_, _ = fmt.Fprintf(os.Stderr, "  Each JSON file dropped into the directory is sent as a planning request. The\n")
	_, _ = fmt.Fprintf(os.Stderr, "  response is written next to it as a .reply.json file.\n\n")

	_, _ = fmt.Fprintf(os.Stderr, "%s discover [seconds]\n", os.Args[0])
	_, _ = fmt.Fprintf(os.Stderr, "  Lists the planners announcing themselves via multicast.\n\n")

	_, _ = fmt.Fprintf(os.Stderr, "An optional %s in the working directory configures the\n", configFile)
	_, _ = fmt.Fprintf(os.Stderr, "[logging] level and [agent] agent-id, planner-id, reconnect-delay, timeout.\n")

	os.Exit(1)
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
	}

	conf, err := loadConfig(configFile)
	if err != nil {
		printFatal(err, "Loading configuration errored")
	}

	switch os.Args[1] {
	case "plan":
		requestPlan(conf, os.Args[2:])

	case "status":
		queryStatus(conf, os.Args[2:])

	case "update":
		updateEvent(conf, os.Args[2:])

	case "complete":
		completeTask(conf, os.Args[2:])

	case "listen":
		listen(conf, os.Args[2:])

	case "exchange":
		startExchange(conf, os.Args[2:])

	case "discover":
		discover(os.Args[2:])

	default:
		printUsage()
	}
}
