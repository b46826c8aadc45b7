// SPDX-FileCopyrightText: 2026 The comunicacionagentes Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package envelope

import (
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
)

// Protocol is the dialect tag of every Envelope produced by this system.
const Protocol = "ag-ui"

// Performative declares the intent of an Envelope.
type Performative string

const (
	// Request expects exactly one reply.
	Request Performative = "request"

	// Query expects exactly one reply.
	Query Performative = "query"

	// Inform is fire-and-forget.
	Inform Performative = "inform"
)

// ExpectsReply is true for Request and Query.
func (p Performative) ExpectsReply() bool {
	return p == Request || p == Query
}

// CheckValid returns an error for unknown performatives.
func (p Performative) CheckValid() error {
	switch p {
	case Request, Query, Inform:
		return nil
	default:
		return fmt.Errorf("unknown performative %q", string(p))
	}
}

// Push categories, used for dispatching unsolicited messages.
const (
	TypeTaskUpdate       = "task-update"
	TypeTaskComplete     = "task-complete"
	TypePlanningResponse = "planning-response"
	TypeError            = "error"
)

// KnownType checks if t is one of the push categories above.
func KnownType(t string) bool {
	switch t {
	case TypeTaskUpdate, TypeTaskComplete, TypePlanningResponse, TypeError:
		return true
	default:
		return false
	}
}

// Metadata of an Envelope.
type Metadata struct {
	Performative   Performative `json:"performative"`
	ConversationID string       `json:"conversation-id,omitempty"`
	Action         string       `json:"action,omitempty"`
	Type           string       `json:"type,omitempty"`
	Timestamp      string       `json:"timestamp,omitempty"`
}

// Envelope is the structured message unit exchanged over the channel.
type Envelope struct {
	Protocol string   `json:"protocol"`
	From     string   `json:"from"`
	To       string   `json:"to"`
	Body     string   `json:"body"`
	Metadata Metadata `json:"metadata"`
}

// New creates an Envelope for this Protocol, stamped with the current time.
func New(from, to string, performative Performative, body string) Envelope {
	return Envelope{
		Protocol: Protocol,
		From:     from,
		To:       to,
		Body:     body,
		Metadata: Metadata{
			Performative: performative,
			Timestamp:    Timestamp(time.Now()),
		},
	}
}

// Timestamp formats t as used in the Metadata's timestamp field.
func Timestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z07:00")
}

// ConversationID of this Envelope or an empty string for uncorrelated traffic.
func (e Envelope) ConversationID() string {
	return e.Metadata.ConversationID
}

// Reply creates an answer to this Envelope. Sender and recipient are swapped and the conversation id is kept.
func (e Envelope) Reply(msgType, body string) Envelope {
	r := New(e.To, e.From, Inform, body)
	r.Metadata.ConversationID = e.Metadata.ConversationID
	r.Metadata.Action = e.Metadata.Action
	r.Metadata.Type = msgType
	return r
}

// CheckValid returns an error for Envelopes lacking the minimally required fields. All violations are reported.
func (e Envelope) CheckValid() (errs error) {
	if e.Protocol == "" {
		errs = multierror.Append(errs, fmt.Errorf("protocol is empty"))
	}
	if e.From == "" {
		errs = multierror.Append(errs, fmt.Errorf("from is empty"))
	}
	if e.To == "" {
		errs = multierror.Append(errs, fmt.Errorf("to is empty"))
	}
	if err := e.Metadata.Performative.CheckValid(); err != nil {
		errs = multierror.Append(errs, err)
	} else if e.Metadata.Performative.ExpectsReply() && e.Metadata.ConversationID == "" {
		errs = multierror.Append(errs,
			fmt.Errorf("performative %s requires a conversation id", e.Metadata.Performative))
	}

	return
}

func (e Envelope) String() string {
	return fmt.Sprintf("Envelope(%s,%s->%s,%s,%s,%s)",
		e.Protocol, e.From, e.To, e.Metadata.Performative, e.Metadata.Action, e.Metadata.ConversationID)
}
