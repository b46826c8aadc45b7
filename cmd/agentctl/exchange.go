// SPDX-FileCopyrightText: 2020, 2021 Alvar Penning
// SPDX-FileCopyrightText: 2026 The comunicacionagentes Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"encoding/json"
	"math"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/fsnotify/fsnotify"

	"github.com/MoisesRodriguez12/comunicacionagentes/pkg/agent"
	"github.com/MoisesRodriguez12/comunicacionagentes/pkg/envelope"
)

const replySuffix = ".reply.json"

// exchangeResult is a planning request's outcome for a dropped file.
type exchangeResult struct {
	file  string
	reply envelope.Envelope
	err   error
}

// exchange planning requests and responses between an user and a planner over the filesystem.
type exchange struct {
	conf       tomlConfig
	directory  string
	knownFiles sync.Map
	client     *agent.Client
	watcher    *fsnotify.Watcher

	closeChan  chan os.Signal
	resultChan chan exchangeResult
	// doneChan is closed when the handler stopped receiving results.
	doneChan chan struct{}
}

// startExchange to exchange planning requests between the user and a planner.
func startExchange(conf tomlConfig, args []string) {
	if len(args) != 2 {
		printUsage()
	}

	var (
		address   = args[0]
		directory = args[1]

		err error
	)

	ex := &exchange{
		conf:       conf,
		directory:  directory,
		closeChan:  make(chan os.Signal, 1),
		resultChan: make(chan exchangeResult),
		doneChan:   make(chan struct{}),
	}

	signal.Notify(ex.closeChan, os.Interrupt)

	ex.client = connect(conf, address)

	if ex.watcher, err = fsnotify.NewWatcher(); err != nil {
		printFatal(err, "Starting file watcher errored")
	}
	if err = ex.watcher.Add(directory); err != nil {
		printFatal(err, "Adding directory to file watcher errored")
	}

	ex.handler()
}

// cleanFilepath creates a relative path from the initial path to a new file's path.
func (ex *exchange) cleanFilepath(f string) string {
	if rel, err := filepath.Rel(ex.directory, f); err != nil {
		log.WithField("path", f).WithError(err).Fatal("Failed to clean file path")
		return ""
	} else {
		return rel
	}
}

// isRequestFile checks if a file should be sent as a planning request.
func isRequestFile(name string) bool {
	return strings.HasSuffix(name, ".json") && !strings.HasSuffix(name, replySuffix)
}

// replyPath for a request file, e.g., "event.json" becomes "event.reply.json".
func replyPath(name string) string {
	return strings.TrimSuffix(name, ".json") + replySuffix
}

func (ex *exchange) handler() {
	defer func() {
		close(ex.doneChan)
		_ = ex.watcher.Close()
		_ = ex.client.Disconnect()
	}()

	for {
		select {
		case <-ex.closeChan:
			log.Info("Received interrupt signal")
			return

		case e, ok := <-ex.watcher.Events:
			if !ok {
				log.Error("fsnotify's Event channel was closed")
				return
			}

			if _, ok := ex.knownFiles.Load(ex.cleanFilepath(e.Name)); ok {
				log.WithField("file", e.Name).Debug("Skipping file; already known")
				continue
			}

			if e.Op&fsnotify.Create == 0 || !isRequestFile(e.Name) {
				log.WithFields(log.Fields{
					"file":      e.Name,
					"operation": e.Op.String(),
				}).Debug("Ignoring fsnotify event")
				continue
			}

			ex.knownFiles.Store(ex.cleanFilepath(e.Name), struct{}{})
			go ex.readNewFile(e)

		case err, ok := <-ex.watcher.Errors:
			if !ok {
				log.Error("fsnotify's Errors channel was closed")
				return
			}

			log.WithError(err).Error("fsnotify errored")
			return

		case result := <-ex.resultChan:
			ex.writeResult(result)
		}
	}
}

func (ex *exchange) writeResult(result exchangeResult) {
	filePath := replyPath(result.file)
	logger := log.WithFields(log.Fields{
		"request": result.file,
		"file":    filePath,
	})

	var content interface{}
	if result.err != nil {
		content = map[string]string{"error": result.err.Error()}
	} else if err := json.Unmarshal([]byte(result.reply.Body), &content); err != nil {
		content = result.reply
	}

	data, err := json.MarshalIndent(content, "", "  ")
	if err != nil {
		logger.WithError(err).Error("Marshalling reply errored")
		return
	}

	ex.knownFiles.Store(ex.cleanFilepath(filePath), struct{}{})

	if err := os.WriteFile(filePath, data, 0644); err != nil {
		logger.WithError(err).Error("Writing reply errored")
		return
	}

	logger.Info("Saved planning reply")
}

func (ex *exchange) readNewFile(e fsnotify.Event) {
	for i := 0; i < 5; i++ {
		if event, err := readObject(e.Name); err != nil {
			log.WithError(err).WithField("file", e.Name).Warn("Reading event errored, retrying..")
		} else {
			ctx, cancel := ex.conf.commandContext()
			reply, err := ex.client.RequestEventPlanning(ctx, event)
			cancel()

			if err != nil {
				log.WithError(err).WithField("file", e.Name).Error("Planning request errored")
			} else {
				log.WithFields(log.Fields{
					"file":         e.Name,
					"conversation": reply.ConversationID(),
				}).Info("Received planning response")
			}

			ex.deliver(exchangeResult{file: e.Name, reply: reply, err: err})
			return
		}

		select {
		case <-ex.doneChan:
			return
		case <-time.After(time.Duration(math.Pow(2, float64(i))) * 100 * time.Millisecond):
		}
	}

	log.WithField("file", e.Name).Error("Failed to process file, giving up.")
}

// deliver a result to the handler. It reports false if the handler has already stopped.
func (ex *exchange) deliver(result exchangeResult) bool {
	select {
	case ex.resultChan <- result:
		return true
	case <-ex.doneChan:
		log.WithField("file", result.file).Debug("Exchange stopped, discarding planning result")
		return false
	}
}
