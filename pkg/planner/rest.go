// SPDX-FileCopyrightText: 2026 The comunicacionagentes Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package planner

import (
	"encoding/json"
	"errors"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/gorilla/mux"

	"github.com/MoisesRodriguez12/comunicacionagentes/pkg/storage"
)

// RestAPI exposes the stored events and plans as JSON.
type RestAPI struct {
	router *mux.Router
	store  storage.RecordStore
}

// restError is the body of each failed request.
type restError struct {
	Error string `json:"error"`
}

// NewRestAPI registers its routes on the router, e.g., a subrouter for /api.
func NewRestAPI(router *mux.Router, store storage.RecordStore) (api *RestAPI) {
	api = &RestAPI{
		router: router,
		store:  store,
	}

	api.router.HandleFunc("/events", api.handleListEvents).Methods(http.MethodGet)
	api.router.HandleFunc("/events", api.handleCreateEvent).Methods(http.MethodPost)
	api.router.HandleFunc("/events/{id}", api.handleGetEvent).Methods(http.MethodGet)
	api.router.HandleFunc("/events/{id}", api.handleUpdateEvent).Methods(http.MethodPatch, http.MethodPut)
	api.router.HandleFunc("/events/{id}", api.handleDeleteEvent).Methods(http.MethodDelete)
	api.router.HandleFunc("/plans/{id}", api.handleGetPlan).Methods(http.MethodGet)

	return api
}

// ServeHTTP is a http.Handler to be bound to a HTTP endpoint.
func (api *RestAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	api.router.ServeHTTP(w, r)
}

func (api *RestAPI) respond(w http.ResponseWriter, r *http.Request, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).WithField("path", r.URL.Path).Warn("Failed to write REST response")
	}
}

func (api *RestAPI) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, storage.ErrNotFound) {
		status = http.StatusNotFound
	}

	log.WithError(err).WithFields(log.Fields{
		"method": r.Method,
		"path":   r.URL.Path,
		"status": status,
	}).Info("REST request failed")

	api.respond(w, r, status, restError{Error: err.Error()})
}

func (api *RestAPI) decodeObject(w http.ResponseWriter, r *http.Request) (fields map[string]interface{}, ok bool) {
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		api.respond(w, r, http.StatusBadRequest, restError{Error: err.Error()})
		return nil, false
	}
	return fields, true
}

func (api *RestAPI) handleListEvents(w http.ResponseWriter, r *http.Request) {
	if ers, err := api.store.Events(); err != nil {
		api.fail(w, r, err)
	} else {
		if ers == nil {
			ers = []storage.EventRecord{}
		}
		api.respond(w, r, http.StatusOK, ers)
	}
}

func (api *RestAPI) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	fields, ok := api.decodeObject(w, r)
	if !ok {
		return
	}

	if er, err := api.store.CreateEvent(fields); err != nil {
		api.fail(w, r, err)
	} else {
		api.respond(w, r, http.StatusCreated, er)
	}
}

func (api *RestAPI) handleGetEvent(w http.ResponseWriter, r *http.Request) {
	if er, err := api.store.Event(mux.Vars(r)["id"]); err != nil {
		api.fail(w, r, err)
	} else {
		api.respond(w, r, http.StatusOK, er)
	}
}

func (api *RestAPI) handleUpdateEvent(w http.ResponseWriter, r *http.Request) {
	updates, ok := api.decodeObject(w, r)
	if !ok {
		return
	}

	if er, err := api.store.UpdateEvent(mux.Vars(r)["id"], updates); err != nil {
		api.fail(w, r, err)
	} else {
		api.respond(w, r, http.StatusOK, er)
	}
}

func (api *RestAPI) handleDeleteEvent(w http.ResponseWriter, r *http.Request) {
	if err := api.store.DeleteEvent(mux.Vars(r)["id"]); err != nil {
		api.fail(w, r, err)
	} else {
		w.WriteHeader(http.StatusNoContent)
	}
}

func (api *RestAPI) handleGetPlan(w http.ResponseWriter, r *http.Request) {
	if pr, err := api.store.Plan(mux.Vars(r)["id"]); err != nil {
		api.fail(w, r, err)
	} else {
		api.respond(w, r, http.StatusOK, newPlanResponse(pr, nil))
	}
}
