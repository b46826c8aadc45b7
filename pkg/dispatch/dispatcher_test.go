// SPDX-FileCopyrightText: 2026 The comunicacionagentes Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package dispatch

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/MoisesRodriguez12/comunicacionagentes/pkg/correlation"
	"github.com/MoisesRodriguez12/comunicacionagentes/pkg/envelope"
)

// frame creates a marshalled Envelope for testing purpose.
func frame(id, msgType, body string, t *testing.T) []byte {
	e := envelope.New("agent_planner@localhost", "agent_ui@localhost", envelope.Inform, body)
	e.Metadata.ConversationID = id
	e.Metadata.Type = msgType

	data, err := envelope.Marshal(e)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func TestDispatcherRoundTrip(t *testing.T) {
	r := correlation.NewRegistry()
	d := New(r)

	p, err := r.AwaitReply("c1", time.Second)
	if err != nil {
		t.Fatal(err)
	}

	d.OnMessage(frame("c1", envelope.TypePlanningResponse, `{"plan_id":"p1"}`, t))

	if e, err := p.Wait(context.Background()); err != nil {
		t.Fatal(err)
	} else if e.Body != `{"plan_id":"p1"}` {
		t.Fatalf("unexpected body %s", e.Body)
	}
}

func TestDispatcherOutOfOrder(t *testing.T) {
	r := correlation.NewRegistry()
	d := New(r)

	p1, _ := r.AwaitReply("c1", time.Second)
	p2, _ := r.AwaitReply("c2", time.Second)

	d.OnMessage(frame("c2", envelope.TypeTaskUpdate, "two", t))
	d.OnMessage(frame("c1", envelope.TypeTaskUpdate, "one", t))

	for _, test := range []struct {
		p    *correlation.Pending
		body string
	}{{p1, "one"}, {p2, "two"}} {
		if e, err := test.p.Wait(context.Background()); err != nil {
			t.Fatal(err)
		} else if e.Body != test.body {
			t.Fatalf("%s: expected %s, got %s", test.p.ConversationID, test.body, e.Body)
		}
	}
}

func TestDispatcherLateReplyIsBroadcastOnly(t *testing.T) {
	r := correlation.NewRegistry()
	d := New(r)

	var wildcard []envelope.Envelope
	d.SubscribeAll(func(ev Event) { wildcard = append(wildcard, ev.Envelope) })

	p, _ := r.AwaitReply("c1", 10*time.Millisecond)
	if _, err := p.Wait(context.Background()); !errors.Is(err, correlation.ErrTimeout) {
		t.Fatalf("expected timeout, got %v", err)
	}

	d.OnMessage(frame("c1", envelope.TypePlanningResponse, `{}`, t))

	if len(wildcard) != 1 || wildcard[0].ConversationID() != "c1" {
		t.Fatalf("late reply was not broadcast: %v", wildcard)
	}
}

func TestDispatcherNamedEvents(t *testing.T) {
	d := New(correlation.NewRegistry())

	received := make(map[string]interface{})
	for _, name := range []string{
		envelope.TypeTaskUpdate, envelope.TypeTaskComplete, envelope.TypePlanningResponse, envelope.TypeError} {
		name := name
		d.Subscribe(name, func(ev Event) { received[name] = ev.Payload })
	}

	d.OnMessage(frame("", envelope.TypeTaskUpdate, "update", t))
	d.OnMessage(frame("", envelope.TypeTaskComplete, "complete", t))
	d.OnMessage(frame("", envelope.TypePlanningResponse, `{"total_tasks":4}`, t))
	d.OnMessage(frame("", envelope.TypeError, "oops", t))
	d.OnMessage(frame("", "something-unknown", "ignored", t))

	if len(received) != 4 {
		t.Fatalf("expected 4 events, got %d: %v", len(received), received)
	}

	if e, ok := received[envelope.TypeTaskUpdate].(envelope.Envelope); !ok || e.Body != "update" {
		t.Fatalf("task-update payload is %v", received[envelope.TypeTaskUpdate])
	}
	if plan, ok := received[envelope.TypePlanningResponse].(map[string]interface{}); !ok {
		t.Fatalf("planning-response payload is %T", received[envelope.TypePlanningResponse])
	} else if !reflect.DeepEqual(plan, map[string]interface{}{"total_tasks": float64(4)}) {
		t.Fatalf("unexpected plan %v", plan)
	}
}

func TestDispatcherPlanningResponseNoJSON(t *testing.T) {
	d := New(correlation.NewRegistry())

	var payload interface{}
	d.Subscribe(envelope.TypePlanningResponse, func(ev Event) { payload = ev.Payload })

	d.OnMessage(frame("", envelope.TypePlanningResponse, "not json", t))

	if e, ok := payload.(envelope.Envelope); !ok || e.Body != "not json" {
		t.Fatalf("expected the envelope as payload, got %v", payload)
	}
}

func TestDispatcherErrorRejectsAndBroadcasts(t *testing.T) {
	r := correlation.NewRegistry()
	d := New(r)

	var errEvents int
	d.Subscribe(envelope.TypeError, func(ev Event) { errEvents++ })

	p, _ := r.AwaitReply("c1", time.Second)
	d.OnMessage(frame("c1", envelope.TypeError, "unknown task", t))

	_, err := p.Wait(context.Background())

	var perr *correlation.ProtocolError
	if !errors.As(err, &perr) {
		t.Fatalf("expected *ProtocolError, got %v", err)
	} else if perr.Body != "unknown task" {
		t.Fatalf("unexpected body %s", perr.Body)
	}

	if errEvents != 1 {
		t.Fatalf("expected one error event, got %d", errEvents)
	}
}

func TestDispatcherListenerOrderAndPanics(t *testing.T) {
	d := New(correlation.NewRegistry())

	var calls []int
	d.SubscribeAll(func(Event) { calls = append(calls, 1) })
	d.SubscribeAll(func(Event) { panic("faulty consumer") })
	id := d.SubscribeAll(func(Event) { calls = append(calls, 3) })
	d.SubscribeAll(func(Event) { calls = append(calls, 4) })

	d.OnMessage(frame("", "", "x", t))

	if !reflect.DeepEqual(calls, []int{1, 3, 4}) {
		t.Fatalf("unexpected calls %v", calls)
	}

	if !d.Unsubscribe(Wildcard, id) {
		t.Fatal("unsubscribing failed")
	}
	if d.Unsubscribe(Wildcard, id) {
		t.Fatal("unsubscribed twice")
	}

	calls = nil
	d.OnMessage(frame("", "", "x", t))

	if !reflect.DeepEqual(calls, []int{1, 4}) {
		t.Fatalf("unexpected calls after unsubscribe %v", calls)
	}
}

func TestDispatcherMalformedFrame(t *testing.T) {
	d := New(correlation.NewRegistry())

	var calls int
	d.SubscribeAll(func(Event) { calls++ })

	for _, raw := range []string{"", "{", `{"protocol":"ag-ui"}`, "null"} {
		d.OnMessage([]byte(raw))
	}

	if calls != 0 {
		t.Fatalf("malformed frames were delivered %d times", calls)
	}
}
