// SPDX-FileCopyrightText: 2026 The comunicacionagentes Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package correlation

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/MoisesRodriguez12/comunicacionagentes/pkg/envelope"
)

// Reply settles a Conversation, either with an Envelope or with an error.
type Reply struct {
	Envelope envelope.Envelope
	Err      error
}

// conversation is an awaited reply together with its timer.
type conversation struct {
	id        string
	createdAt time.Time
	timer     *time.Timer
	reply     chan Reply
}

// Registry maps conversation ids to their pending waiters.
type Registry struct {
	sync.Mutex

	conversations map[string]*conversation
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		conversations: make(map[string]*conversation),
	}
}

// AwaitReply registers a waiter for the conversation id. If no reply arrives within the timeout, the returned Pending
// will be rejected with a TimeoutError.
func (r *Registry) AwaitReply(id string, timeout time.Duration) (*Pending, error) {
	r.Lock()
	defer r.Unlock()

	if _, ok := r.conversations[id]; ok {
		return nil, ErrDuplicateConversation
	}

	conv := &conversation{
		id:        id,
		createdAt: time.Now(),
		reply:     make(chan Reply, 1),
	}
	conv.timer = time.AfterFunc(timeout, func() {
		if r.settle(id, conv, Reply{Err: &TimeoutError{ConversationID: id, After: timeout}}) {
			log.WithFields(log.Fields{
				"conversation": id,
				"timeout":      timeout,
			}).Info("Conversation timed out")
		}
	})

	r.conversations[id] = conv

	log.WithFields(log.Fields{
		"conversation": id,
		"timeout":      timeout,
	}).Debug("Awaiting reply")

	return &Pending{
		ConversationID: id,
		registry:       r,
		conv:           conv,
	}, nil
}

// settle removes the conversation and hands over its Reply. If expected is not nil, only this very conversation will
// be settled. It returns false if the conversation was already settled.
func (r *Registry) settle(id string, expected *conversation, reply Reply) bool {
	r.Lock()
	conv, ok := r.conversations[id]
	if !ok || (expected != nil && conv != expected) {
		r.Unlock()
		return false
	}
	delete(r.conversations, id)
	r.Unlock()

	conv.timer.Stop()
	conv.reply <- reply
	return true
}

// Resolve the conversation with the received Envelope. False is returned if nobody is waiting for this id, e.g., it
// was already resolved or timed out.
func (r *Registry) Resolve(id string, e envelope.Envelope) bool {
	return r.settle(id, nil, Reply{Envelope: e})
}

// Reject the conversation with an error. False is returned if nobody is waiting for this id.
func (r *Registry) Reject(id string, err error) bool {
	return r.settle(id, nil, Reply{Err: err})
}

// RejectAll pending conversations with the same error and returns their amount.
func (r *Registry) RejectAll(err error) (n int) {
	r.Lock()
	var ids []string
	for id := range r.conversations {
		ids = append(ids, id)
	}
	r.Unlock()

	for _, id := range ids {
		if r.Reject(id, err) {
			n++
		}
	}
	return
}

// Has checks if someone is waiting for this conversation id.
func (r *Registry) Has(id string) bool {
	r.Lock()
	defer r.Unlock()

	_, ok := r.conversations[id]
	return ok
}

// Len is the number of pending conversations.
func (r *Registry) Len() int {
	r.Lock()
	defer r.Unlock()

	return len(r.conversations)
}

// Pending is the waiter's side of a Conversation.
type Pending struct {
	ConversationID string

	registry *Registry
	conv     *conversation
}

// Wait blocks until the conversation is settled or the context is done. A done context cancels the conversation,
// unless a reply won the race. Wait must only be called once.
func (p *Pending) Wait(ctx context.Context) (envelope.Envelope, error) {
	select {
	case reply := <-p.conv.reply:
		return reply.Envelope, reply.Err

	case <-ctx.Done():
		p.registry.settle(p.ConversationID, p.conv, Reply{Err: ctx.Err()})

		reply := <-p.conv.reply
		return reply.Envelope, reply.Err
	}
}

// Cancel the conversation; a waiting Wait returns context.Canceled.
func (p *Pending) Cancel() {
	p.registry.settle(p.ConversationID, p.conv, Reply{Err: context.Canceled})
}

// Age since the conversation was registered.
func (p *Pending) Age() time.Duration {
	return time.Since(p.conv.createdAt)
}
