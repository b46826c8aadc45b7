// SPDX-FileCopyrightText: 2026 The comunicacionagentes Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package agent

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/MoisesRodriguez12/comunicacionagentes/pkg/correlation"
	"github.com/MoisesRodriguez12/comunicacionagentes/pkg/dispatch"
	"github.com/MoisesRodriguez12/comunicacionagentes/pkg/envelope"
)

// connectedClient creates a Client connected to a new peer.
func connectedClient(t *testing.T, peer PeerHandler) (*Client, *testPeer) {
	tp := startPeer(t, "", peer)

	c := NewClient(ClientConfig{Connection: ConnectionOptions{ReconnectDelay: time.Minute}})
	if err := c.Connect(context.Background(), wsAddress(tp.addr)); err != nil {
		tp.stop()
		t.Fatal(err)
	}
	return c, tp
}

func TestConversationIDsUnique(t *testing.T) {
	c := NewClient(ClientConfig{})

	const workers, perWorker = 8, 1000

	var (
		mu  sync.Mutex
		ids = make(map[string]struct{})
		wg  sync.WaitGroup
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				id := c.NextConversationID()
				mu.Lock()
				ids[id] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if l := len(ids); l != workers*perWorker {
		t.Fatalf("expected %d unique ids, got %d", workers*perWorker, l)
	}
}

// Scenario A: the matching reply arrives after a while and resolves the request.
func TestClientDelayedReply(t *testing.T) {
	peer := &recordingPeer{
		reply: func(session *PeerSession, e envelope.Envelope) {
			time.AfterFunc(100*time.Millisecond, func() {
				_ = session.Send(e.Reply(envelope.TypePlanningResponse, `{"plan_id":"p1"}`))
			})
		},
	}
	c, tp := connectedClient(t, peer)
	defer tp.stop()
	defer c.Disconnect()

	pending, err := c.SendRequest(DefaultPlannerID, `{"event_name":"Hackathon"}`, ActionPlanEvent, time.Second)
	if err != nil {
		t.Fatal(err)
	}

	e, err := pending.Wait(context.Background())
	if err != nil {
		t.Fatal(err)
	} else if e.Body != `{"plan_id":"p1"}` {
		t.Fatalf("unexpected body %s", e.Body)
	} else if e.ConversationID() != pending.ConversationID {
		t.Fatalf("expected conversation %s, got %s", pending.ConversationID, e.ConversationID())
	}

	if inbox := peer.inbox(); len(inbox) != 1 {
		t.Fatalf("expected one request, got %d", len(inbox))
	} else if meta := inbox[0].Metadata; meta.Performative != envelope.Request || meta.Action != ActionPlanEvent {
		t.Fatalf("unexpected request metadata %+v", meta)
	}
}

// Scenario B: no reply within the timeout; the late reply only reaches broadcast listeners.
func TestClientTimeoutAndLateReply(t *testing.T) {
	const timeout = 100 * time.Millisecond

	peer := &recordingPeer{
		reply: func(session *PeerSession, e envelope.Envelope) {
			time.AfterFunc(timeout+timeout/2, func() {
				_ = session.Send(e.Reply(envelope.TypePlanningResponse, `{"late":true}`))
			})
		},
	}
	c, tp := connectedClient(t, peer)
	defer tp.stop()
	defer c.Disconnect()

	broadcast := make(chan envelope.Envelope, 1)
	c.SubscribeAll(func(ev dispatch.Event) { broadcast <- ev.Envelope })

	pending, err := c.SendRequest(DefaultPlannerID, "{}", ActionPlanEvent, timeout)
	if err != nil {
		t.Fatal(err)
	}

	_, err = pending.Wait(context.Background())

	var te *correlation.TimeoutError
	if !errors.As(err, &te) {
		t.Fatalf("expected *TimeoutError, got %v", err)
	}

	select {
	case e := <-broadcast:
		if e.ConversationID() != pending.ConversationID {
			t.Fatalf("unexpected broadcast %v", e)
		}
	case <-time.After(time.Second):
		t.Fatal("late reply was not broadcast")
	}

	if n := c.Pending(); n != 0 {
		t.Fatalf("expected no pending requests, got %d", n)
	}
}

// Scenario C: replies arrive out of order and still resolve their own requests.
func TestClientOutOfOrderReplies(t *testing.T) {
	var (
		mu   sync.Mutex
		held []struct {
			session *PeerSession
			e       envelope.Envelope
		}
	)

	peer := &recordingPeer{
		reply: func(session *PeerSession, e envelope.Envelope) {
			mu.Lock()
			defer mu.Unlock()

			held = append(held, struct {
				session *PeerSession
				e       envelope.Envelope
			}{session, e})

			if len(held) == 2 {
				for i := 1; i >= 0; i-- {
					_ = held[i].session.Send(held[i].e.Reply(envelope.TypeTaskUpdate, held[i].e.Body))
				}
			}
		},
	}
	c, tp := connectedClient(t, peer)
	defer tp.stop()
	defer c.Disconnect()

	p1, err := c.SendRequest(DefaultPlannerID, "first", ActionPlanEvent, time.Second)
	if err != nil {
		t.Fatal(err)
	}
	p2, err := c.SendRequest(DefaultPlannerID, "second", ActionPlanEvent, time.Second)
	if err != nil {
		t.Fatal(err)
	}

	for _, test := range []struct {
		p    *correlation.Pending
		body string
	}{{p1, "first"}, {p2, "second"}} {
		if e, err := test.p.Wait(context.Background()); err != nil {
			t.Fatal(err)
		} else if e.Body != test.body {
			t.Fatalf("%s: expected %s, got %s", test.p.ConversationID, test.body, e.Body)
		}
	}
}

// Scenario D: an intentional disconnect rejects pending requests and does not reconnect.
func TestClientDisconnectRejectsPending(t *testing.T) {
	c, tp := connectedClient(t, &recordingPeer{})
	defer tp.stop()
	sr := recordStates(c.Connection())

	pending, err := c.SendRequest(DefaultPlannerID, "{}", ActionPlanEvent, time.Minute)
	if err != nil {
		t.Fatal(err)
	}

	result := make(chan error, 1)
	go func() {
		_, err := pending.Wait(context.Background())
		result <- err
	}()

	if err := c.Disconnect(); err != nil {
		t.Fatal(err)
	}

	select {
	case err := <-result:
		if !errors.Is(err, correlation.ErrConnectionClosed) {
			t.Fatalf("expected ErrConnectionClosed, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("pending request was not rejected")
	}

	time.Sleep(100 * time.Millisecond)
	if n := sr.count(Connecting); n != 0 {
		t.Fatalf("reconnect after disconnect: %d attempts", n)
	}
}

// The request is queued while disconnected and still answered after connecting.
func TestClientRequestWhileDisconnected(t *testing.T) {
	peer := &recordingPeer{
		reply: func(session *PeerSession, e envelope.Envelope) {
			_ = session.Send(e.Reply(envelope.TypeTaskUpdate, "ok"))
		},
	}
	tp := startPeer(t, "", peer)
	defer tp.stop()

	c := NewClient(ClientConfig{Connection: ConnectionOptions{ReconnectDelay: time.Minute}})
	defer c.Disconnect()

	pending, err := c.SendQuery(DefaultPlannerID, "{}", ActionGetStatus, time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if q := c.Connection().Queued(); q != 1 {
		t.Fatalf("expected one queued envelope, got %d", q)
	}

	if err := c.Connect(context.Background(), wsAddress(tp.addr)); err != nil {
		t.Fatal(err)
	}

	if e, err := pending.Wait(context.Background()); err != nil {
		t.Fatal(err)
	} else if e.Body != "ok" {
		t.Fatalf("unexpected body %s", e.Body)
	}
}

func TestClientRequestEventPlanning(t *testing.T) {
	peer := &recordingPeer{
		reply: func(session *PeerSession, e envelope.Envelope) {
			var event map[string]interface{}
			if err := json.Unmarshal([]byte(e.Body), &event); err != nil {
				_ = session.Send(e.Reply(envelope.TypeError, err.Error()))
				return
			}

			plan, _ := json.Marshal(map[string]interface{}{"event_name": event["event_name"], "total_tasks": 4})
			_ = session.Send(e.Reply(envelope.TypePlanningResponse, string(plan)))
		},
	}
	c, tp := connectedClient(t, peer)
	defer tp.stop()
	defer c.Disconnect()

	planEvents := make(chan interface{}, 1)
	c.Subscribe(envelope.TypePlanningResponse, func(ev dispatch.Event) { planEvents <- ev.Payload })

	e, err := c.RequestEventPlanning(context.Background(), map[string]string{"event_name": "Hackathon"})
	if err != nil {
		t.Fatal(err)
	} else if e.Metadata.Type != envelope.TypePlanningResponse {
		t.Fatalf("unexpected reply type %s", e.Metadata.Type)
	}

	select {
	case payload := <-planEvents:
		if plan, ok := payload.(map[string]interface{}); !ok || plan["event_name"] != "Hackathon" {
			t.Fatalf("unexpected planning payload %v", payload)
		}
	case <-time.After(time.Second):
		t.Fatal("no planning-response event")
	}

	if meta := peer.inbox()[0].Metadata; meta.Type != "event-planning" || meta.Action != ActionPlanEvent {
		t.Fatalf("unexpected request metadata %+v", meta)
	}
}

func TestClientProtocolError(t *testing.T) {
	peer := &recordingPeer{
		reply: func(session *PeerSession, e envelope.Envelope) {
			_ = session.Send(e.Reply(envelope.TypeError, "unknown task"))
		},
	}
	c, tp := connectedClient(t, peer)
	defer tp.stop()
	defer c.Disconnect()

	errEvents := make(chan envelope.Envelope, 1)
	c.Subscribe(envelope.TypeError, func(ev dispatch.Event) { errEvents <- ev.Envelope })

	_, err := c.GetTaskStatus(context.Background(), "t-404")

	var perr *correlation.ProtocolError
	if !errors.As(err, &perr) {
		t.Fatalf("expected *ProtocolError, got %v", err)
	} else if perr.Body != "unknown task" {
		t.Fatalf("unexpected body %s", perr.Body)
	}

	select {
	case <-errEvents:
	case <-time.After(time.Second):
		t.Fatal("no error event")
	}

	if meta := peer.inbox()[0].Metadata; meta.Performative != envelope.Query || meta.Action != ActionGetStatus {
		t.Fatalf("unexpected query metadata %+v", meta)
	}
}

func TestClientInform(t *testing.T) {
	peer := &recordingPeer{}
	c, tp := connectedClient(t, peer)
	defer tp.stop()
	defer c.Disconnect()

	if _, err := c.UpdateEventInfo("event-1", map[string]interface{}{"location": "Aula Magna"}); err != nil {
		t.Fatal(err)
	}

	waitFor(t, time.Second, func() bool { return len(peer.inbox()) == 1 }, "inform did not arrive")

	e := peer.inbox()[0]
	if e.Metadata.Performative != envelope.Inform || e.Metadata.Action != ActionUpdateEvent {
		t.Fatalf("unexpected metadata %+v", e.Metadata)
	}

	var body struct {
		EventID string                 `json:"eventId"`
		Updates map[string]interface{} `json:"updates"`
	}
	if err := json.Unmarshal([]byte(e.Body), &body); err != nil {
		t.Fatal(err)
	} else if body.EventID != "event-1" || body.Updates["location"] != "Aula Magna" {
		t.Fatalf("unexpected body %s", e.Body)
	}

	if n := c.Pending(); n != 0 {
		t.Fatalf("inform registered a waiter")
	}
}
