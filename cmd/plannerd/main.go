// SPDX-FileCopyrightText: 2026 The comunicacionagentes Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/gorilla/mux"
	"github.com/hashicorp/go-multierror"

	"github.com/MoisesRodriguez12/comunicacionagentes/pkg/planner"
	"github.com/MoisesRodriguez12/comunicacionagentes/pkg/storage"
)

// waitSigint blocks the current thread until a SIGINT appears.
func waitSigint() {
	signalSyn := make(chan os.Signal, 1)
	signalAck := make(chan struct{})

	signal.Notify(signalSyn, os.Interrupt)

	go func() {
		<-signalSyn
		close(signalAck)
	}()

	<-signalAck
}

func main() {
	if len(os.Args) != 2 {
		log.Fatalf("Usage: %s configuration.toml", os.Args[0])
	}

	conf, err := parseConfig(os.Args[1])
	if err != nil {
		log.WithError(err).Fatal("Failed to parse config")
	}

	store, err := storage.NewStore(conf.Planner.Store)
	if err != nil {
		log.WithError(err).Fatal("Failed to open store")
	}

	p := planner.New(conf.Planner.AgentID, store)

	r := mux.NewRouter()
	r.Handle("/ws", p.Server())
	planner.NewRestAPI(r.PathPrefix("/api").Subrouter(), store)

	httpServer := &http.Server{
		Addr:    conf.Planner.Listen,
		Handler: r,
	}
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("HTTP server errored")
		}
	}()

	manager, err := startDiscovery(conf)
	if err != nil {
		log.WithError(err).Fatal("Failed to start discovery")
	}

	log.WithFields(log.Fields{
		"agent":  conf.Planner.AgentID,
		"listen": conf.Planner.Listen,
	}).Info("Planner started")

	waitSigint()
	log.Info("Shutting down..")

	var errs error

	if manager != nil {
		manager.Close()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		errs = multierror.Append(errs, err)
	}
	if err := p.Close(); err != nil {
		errs = multierror.Append(errs, err)
	}
	if err := store.Close(); err != nil {
		errs = multierror.Append(errs, err)
	}

	if errs != nil {
		log.WithError(errs).Error("Shutdown errored")
	}
}
