// SPDX-FileCopyrightText: 2026 The comunicacionagentes Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"

	log "github.com/sirupsen/logrus"

	"github.com/MoisesRodriguez12/comunicacionagentes/pkg/dispatch"
	"github.com/MoisesRodriguez12/comunicacionagentes/pkg/envelope"
)

// readObject parses a JSON object from stdin (-) or the named file.
func readObject(input string) (obj map[string]interface{}, err error) {
	var data []byte
	if input == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(input)
	}
	if err != nil {
		return
	}

	err = json.Unmarshal(data, &obj)
	return
}

// printEnvelope writes the Envelope's body, indented if it is JSON.
func printEnvelope(e envelope.Envelope) {
	var body interface{}
	if err := json.Unmarshal([]byte(e.Body), &body); err != nil {
		fmt.Println(e.Body)
		return
	}

	out, _ := json.MarshalIndent(body, "", "  ")
	fmt.Println(string(out))
}

// requestPlan for the "plan" CLI option.
func requestPlan(conf tomlConfig, args []string) {
	if len(args) != 2 {
		printUsage()
	}

	event, err := readObject(args[1])
	if err != nil {
		printFatal(err, "Reading event errored")
	}

	c := connect(conf, args[0])
	defer func() { _ = c.Disconnect() }()

	ctx, cancel := conf.commandContext()
	defer cancel()

	reply, err := c.RequestEventPlanning(ctx, event)
	if err != nil {
		printFatal(err, "Requesting a plan errored")
	}
	printEnvelope(reply)
}

// queryStatus for the "status" CLI option.
func queryStatus(conf tomlConfig, args []string) {
	if len(args) != 2 {
		printUsage()
	}

	c := connect(conf, args[0])
	defer func() { _ = c.Disconnect() }()

	ctx, cancel := conf.commandContext()
	defer cancel()

	reply, err := c.GetTaskStatus(ctx, args[1])
	if err != nil {
		printFatal(err, "Querying the task status errored")
	}
	printEnvelope(reply)
}

// updateEvent for the "update" CLI option.
func updateEvent(conf tomlConfig, args []string) {
	if len(args) != 3 {
		printUsage()
	}

	updates, err := readObject(args[2])
	if err != nil {
		printFatal(err, "Reading updates errored")
	}

	c := connect(conf, args[0])
	defer func() { _ = c.Disconnect() }()

	if id, err := c.UpdateEventInfo(args[1], updates); err != nil {
		printFatal(err, "Sending the event update errored")
	} else {
		log.WithField("conversation", id).Info("Sent event update")
	}
}

// completeTask for the "complete" CLI option.
func completeTask(conf tomlConfig, args []string) {
	if len(args) != 2 {
		printUsage()
	}

	c := connect(conf, args[0])
	defer func() { _ = c.Disconnect() }()

	if id, err := c.CompleteTask(args[1]); err != nil {
		printFatal(err, "Sending the task completion errored")
	} else {
		log.WithField("conversation", id).Info("Sent task completion")
	}
}

// listen for the "listen" CLI option.
func listen(conf tomlConfig, args []string) {
	if len(args) != 1 {
		printUsage()
	}

	c := connect(conf, args[0])
	defer func() { _ = c.Disconnect() }()

	c.SubscribeAll(func(ev dispatch.Event) {
		fmt.Printf("%s %s -> %s [%s %s]\n",
			ev.Envelope.Metadata.Timestamp, ev.Envelope.From, ev.Envelope.To,
			ev.Envelope.Metadata.Performative, ev.Envelope.Metadata.Type)
		printEnvelope(ev.Envelope)
	})

	closeChan := make(chan os.Signal, 1)
	signal.Notify(closeChan, os.Interrupt)
	<-closeChan

	log.Info("Received interrupt signal")
}
