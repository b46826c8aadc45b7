// SPDX-FileCopyrightText: 2026 The comunicacionagentes Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package dispatch routes inbound frames either to their awaiting conversation or to named event listeners.
package dispatch

import (
	"encoding/json"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/MoisesRodriguez12/comunicacionagentes/pkg/correlation"
	"github.com/MoisesRodriguez12/comunicacionagentes/pkg/envelope"
)

// Wildcard is the event name of listeners notified about every inbound Envelope.
const Wildcard = "*"

// Event is delivered to Listeners.
type Event struct {
	// Name is the push category or the Wildcard.
	Name string

	// Envelope as decoded from the wire.
	Envelope envelope.Envelope

	// Payload is the parsed JSON Body for planning responses and the Envelope otherwise.
	Payload interface{}
}

// Listener is a callback for Events.
type Listener func(Event)

type subscription struct {
	id       uint64
	listener Listener
}

// Dispatcher decodes inbound frames, resolves correlated conversations and notifies listeners.
type Dispatcher struct {
	registry *correlation.Registry

	mu        sync.RWMutex
	listeners map[string][]subscription
	nextId    uint64
}

// New Dispatcher resolving conversations of the given Registry.
func New(registry *correlation.Registry) *Dispatcher {
	return &Dispatcher{
		registry:  registry,
		listeners: make(map[string][]subscription),
	}
}

// Subscribe a Listener to an event name. The returned id can be used to Unsubscribe.
func (d *Dispatcher) Subscribe(name string, l Listener) uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.nextId++
	d.listeners[name] = append(d.listeners[name], subscription{id: d.nextId, listener: l})
	return d.nextId
}

// SubscribeAll registers a wildcard Listener.
func (d *Dispatcher) SubscribeAll(l Listener) uint64 {
	return d.Subscribe(Wildcard, l)
}

// Unsubscribe a Listener. False is returned for unknown subscriptions.
func (d *Dispatcher) Unsubscribe(name string, id uint64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	subs := d.listeners[name]
	for i, sub := range subs {
		if sub.id == id {
			d.listeners[name] = append(subs[:i:i], subs[i+1:]...)
			return true
		}
	}
	return false
}

// OnMessage handles a raw inbound frame. It never panics; malformed frames are logged and dropped.
func (d *Dispatcher) OnMessage(raw []byte) {
	e, err := envelope.Unmarshal(raw)
	if err != nil {
		log.WithError(err).WithField("frame", string(raw)).Warn("Dropping malformed frame")
		return
	}

	d.Dispatch(e)
}

// Dispatch a decoded Envelope.
func (d *Dispatcher) Dispatch(e envelope.Envelope) {
	logger := log.WithFields(log.Fields{
		"envelope": e,
		"type":     e.Metadata.Type,
	})

	if id := e.ConversationID(); id != "" {
		var settled bool
		if e.Metadata.Type == envelope.TypeError {
			settled = d.registry.Reject(id, &correlation.ProtocolError{ConversationID: id, Body: e.Body})
		} else {
			settled = d.registry.Resolve(id, e)
		}

		if settled {
			logger.Debug("Settled conversation")
		} else {
			logger.Info("Received envelope for an unmatched conversation")
		}
	}

	d.emit(Event{Name: Wildcard, Envelope: e, Payload: e})

	if !envelope.KnownType(e.Metadata.Type) {
		logger.Debug("Envelope's type has no named event")
		return
	}

	ev := Event{Name: e.Metadata.Type, Envelope: e, Payload: e}
	if e.Metadata.Type == envelope.TypePlanningResponse {
		var body interface{}
		if err := json.Unmarshal([]byte(e.Body), &body); err != nil {
			logger.WithError(err).Warn("Planning response's body is no JSON, delivering the envelope")
		} else {
			ev.Payload = body
		}
	}
	if e.Metadata.Type == envelope.TypeError {
		logger.WithField("body", e.Body).Warn("Peer reported an error")
	}

	d.emit(ev)
}

// emit an Event synchronously to its listeners, in registration order.
func (d *Dispatcher) emit(ev Event) {
	d.mu.RLock()
	subs := make([]subscription, len(d.listeners[ev.Name]))
	copy(subs, d.listeners[ev.Name])
	d.mu.RUnlock()

	for _, sub := range subs {
		d.deliver(sub, ev)
	}
}

// deliver an Event to one Listener, recovering its panics.
func (d *Dispatcher) deliver(sub subscription, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			log.WithFields(log.Fields{
				"event":    ev.Name,
				"listener": sub.id,
				"panic":    r,
			}).Error("Listener panicked")
		}
	}()

	sub.listener(ev)
}
