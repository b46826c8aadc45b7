// SPDX-FileCopyrightText: 2026 The comunicacionagentes Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/MoisesRodriguez12/comunicacionagentes/pkg/correlation"
	"github.com/MoisesRodriguez12/comunicacionagentes/pkg/dispatch"
	"github.com/MoisesRodriguez12/comunicacionagentes/pkg/envelope"
)

const (
	// DefaultAgentID is the UI agent's identity.
	DefaultAgentID = "agent_ui@localhost"

	// DefaultPlannerID is the planner agent's identity.
	DefaultPlannerID = "agent_planner@localhost"

	// DefaultAddress of the planner's WebSocket endpoint.
	DefaultAddress = "ws://localhost:8081/ws"
)

// Actions understood by the planner.
const (
	ActionPlanEvent    = "plan-event"
	ActionGetStatus    = "get-status"
	ActionUpdateEvent  = "update-event"
	ActionCompleteTask = "complete-task"
)

// ClientConfig configures a Client.
type ClientConfig struct {
	// AgentID is this client's identity, used as the sender of all Envelopes.
	AgentID string

	// PlannerID is the recipient of planning requests.
	PlannerID string

	Connection ConnectionOptions
}

// Client is the UI agent's messaging client. It multiplexes concurrent requests over one Connection.
type Client struct {
	agentID   string
	plannerID string

	conn       *Connection
	registry   *correlation.Registry
	dispatcher *dispatch.Dispatcher

	conversations atomic.Uint64
}

// NewClient creates a disconnected Client.
func NewClient(conf ClientConfig) *Client {
	if conf.AgentID == "" {
		conf.AgentID = DefaultAgentID
	}
	if conf.PlannerID == "" {
		conf.PlannerID = DefaultPlannerID
	}

	registry := correlation.NewRegistry()
	dispatcher := dispatch.New(registry)

	return &Client{
		agentID:    conf.AgentID,
		plannerID:  conf.PlannerID,
		conn:       NewConnection(dispatcher, registry, conf.Connection),
		registry:   registry,
		dispatcher: dispatcher,
	}
}

// Connect to the peer's address.
func (c *Client) Connect(ctx context.Context, address string) error {
	return c.conn.Connect(ctx, address)
}

// Disconnect intentionally; pending requests are rejected.
func (c *Client) Disconnect() error {
	return c.conn.Disconnect()
}

// Connection of this Client.
func (c *Client) Connection() *Connection {
	return c.conn
}

// Pending is the amount of requests awaiting their reply.
func (c *Client) Pending() int {
	return c.registry.Len()
}

// Subscribe to a push category, e.g., envelope.TypeTaskUpdate.
func (c *Client) Subscribe(name string, l dispatch.Listener) uint64 {
	return c.dispatcher.Subscribe(name, l)
}

// SubscribeAll inbound Envelopes.
func (c *Client) SubscribeAll(l dispatch.Listener) uint64 {
	return c.dispatcher.SubscribeAll(l)
}

// Unsubscribe a Listener.
func (c *Client) Unsubscribe(name string, id uint64) bool {
	return c.dispatcher.Unsubscribe(name, id)
}

// NextConversationID is unique for this Client's lifetime.
func (c *Client) NextConversationID() string {
	return fmt.Sprintf("conv-%d-%d", time.Now().UnixMilli(), c.conversations.Add(1))
}

// SendRequest sends a request to the recipient and returns the waiter for its reply. A zero timeout selects the
// action's default.
func (c *Client) SendRequest(to, body, action string, timeout time.Duration) (*correlation.Pending, error) {
	return c.send(envelope.Request, to, body, action, "", timeout)
}

// SendQuery is SendRequest with the query performative.
func (c *Client) SendQuery(to, body, action string, timeout time.Duration) (*correlation.Pending, error) {
	return c.send(envelope.Query, to, body, action, "", timeout)
}

func (c *Client) send(p envelope.Performative, to, body, action, msgType string, timeout time.Duration) (
	*correlation.Pending, error) {
	if timeout <= 0 {
		timeout = correlation.DefaultTimeout(action)
	}

	e := envelope.New(c.agentID, to, p, body)
	e.Metadata.ConversationID = c.NextConversationID()
	e.Metadata.Action = action
	e.Metadata.Type = msgType

	pending, err := c.registry.AwaitReply(e.Metadata.ConversationID, timeout)
	if err != nil {
		return nil, err
	}

	if err := c.conn.Send(e); err != nil {
		pending.Cancel()
		return nil, err
	}

	log.WithFields(log.Fields{
		"envelope": e,
		"timeout":  timeout,
	}).Debug("Sent request")

	return pending, nil
}

// Inform sends a fire-and-forget message. Its conversation id is returned for logging purposes.
func (c *Client) Inform(to, body, action, msgType string) (string, error) {
	e := envelope.New(c.agentID, to, envelope.Inform, body)
	e.Metadata.ConversationID = c.NextConversationID()
	e.Metadata.Action = action
	e.Metadata.Type = msgType

	return e.Metadata.ConversationID, c.conn.Send(e)
}

// RequestEventPlanning asks the planner to decompose an event into tasks and waits for the planning response.
func (c *Client) RequestEventPlanning(ctx context.Context, event interface{}) (envelope.Envelope, error) {
	body, err := json.Marshal(event)
	if err != nil {
		return envelope.Envelope{}, err
	}

	pending, err := c.send(envelope.Request, c.plannerID, string(body), ActionPlanEvent, "event-planning",
		correlation.PlanningTimeout)
	if err != nil {
		return envelope.Envelope{}, err
	}
	return pending.Wait(ctx)
}

// GetTaskStatus queries the planner for a task's state.
func (c *Client) GetTaskStatus(ctx context.Context, taskID string) (envelope.Envelope, error) {
	body, err := json.Marshal(map[string]string{"taskId": taskID})
	if err != nil {
		return envelope.Envelope{}, err
	}

	pending, err := c.send(envelope.Query, c.plannerID, string(body), ActionGetStatus, "status-query",
		correlation.StatusTimeout)
	if err != nil {
		return envelope.Envelope{}, err
	}
	return pending.Wait(ctx)
}

// UpdateEventInfo informs the planner about changed event fields.
func (c *Client) UpdateEventInfo(eventID string, updates map[string]interface{}) (string, error) {
	body, err := json.Marshal(map[string]interface{}{
		"eventId": eventID,
		"updates": updates,
	})
	if err != nil {
		return "", err
	}

	return c.Inform(c.plannerID, string(body), ActionUpdateEvent, "event-update")
}

// CompleteTask informs the planner that a task was executed.
func (c *Client) CompleteTask(taskID string) (string, error) {
	body, err := json.Marshal(map[string]string{"taskId": taskID})
	if err != nil {
		return "", err
	}

	return c.Inform(c.plannerID, string(body), ActionCompleteTask, "task-execution")
}
