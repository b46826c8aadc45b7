// SPDX-FileCopyrightText: 2026 The comunicacionagentes Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package planner

import (
	"encoding/json"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/MoisesRodriguez12/comunicacionagentes/pkg/agent"
	"github.com/MoisesRodriguez12/comunicacionagentes/pkg/envelope"
	"github.com/MoisesRodriguez12/comunicacionagentes/pkg/storage"
)

// Planner is the planning agent. It is an agent.PeerHandler for its own agent.PeerServer.
type Planner struct {
	agentID string
	store   storage.RecordStore
	server  *agent.PeerServer
}

// New creates a Planner, answering as agentID and persisting into the store.
func New(agentID string, store storage.RecordStore) *Planner {
	if agentID == "" {
		agentID = agent.DefaultPlannerID
	}

	p := &Planner{
		agentID: agentID,
		store:   store,
	}
	p.server = agent.NewPeerServer(p)
	return p
}

// Server accepting the WebSocket clients, to be bound to a HTTP endpoint, e.g., /ws.
func (p *Planner) Server() *agent.PeerServer {
	return p.server
}

// Close all client sessions.
func (p *Planner) Close() error {
	return p.server.Close()
}

// HandleEnvelope dispatches an inbound Envelope by its action.
func (p *Planner) HandleEnvelope(session *agent.PeerSession, e envelope.Envelope) {
	logger := log.WithFields(log.Fields{
		"planner":  p.agentID,
		"session":  session.Remote(),
		"envelope": e,
	})

	var err error
	switch e.Metadata.Action {
	case agent.ActionPlanEvent:
		err = p.handlePlanEvent(session, e)

	case agent.ActionGetStatus:
		err = p.handleGetStatus(session, e)

	case agent.ActionUpdateEvent:
		err = p.handleUpdateEvent(e)

	case agent.ActionCompleteTask:
		err = p.handleCompleteTask(e)

	default:
		err = fmt.Errorf("unknown action %q", e.Metadata.Action)
	}

	if err == nil {
		logger.Debug("Planner handled envelope")
		return
	}

	logger.WithError(err).Info("Planner failed to handle envelope")

	if e.Metadata.Performative.ExpectsReply() {
		if sendErr := p.reply(session, e, envelope.TypeError, err.Error()); sendErr != nil {
			logger.WithError(sendErr).Warn("Planner failed to send error reply")
		}
	}
}

func (p *Planner) reply(session *agent.PeerSession, e envelope.Envelope, msgType string, body string) error {
	r := e.Reply(msgType, body)
	r.From = p.agentID
	return session.Send(r)
}

func (p *Planner) inform(to, action, msgType string, body interface{}) (envelope.Envelope, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return envelope.Envelope{}, err
	}

	e := envelope.New(p.agentID, to, envelope.Inform, string(data))
	e.Metadata.Action = action
	e.Metadata.Type = msgType
	return e, nil
}

func (p *Planner) handlePlanEvent(session *agent.PeerSession, e envelope.Envelope) error {
	var event map[string]interface{}
	if err := json.Unmarshal([]byte(e.Body), &event); err != nil {
		return fmt.Errorf("event is not a JSON object: %w", err)
	} else if event == nil {
		return fmt.Errorf("event is empty")
	}

	eventId, _ := event["event_id"].(string)
	if eventId == "" {
		er, err := p.store.CreateEvent(event)
		if err != nil {
			return fmt.Errorf("storing event failed: %w", err)
		}
		eventId = er.Id
	}

	pr, err := p.store.CreatePlan(eventId, fallbackPlan(event))
	if err != nil {
		return fmt.Errorf("storing plan failed: %w", err)
	}

	log.WithFields(log.Fields{
		"planner": p.agentID,
		"event":   eventId,
		"plan":    pr.Id,
	}).Info("Planner created plan")

	body, err := json.Marshal(newPlanResponse(pr, event))
	if err != nil {
		return err
	}
	if err := p.reply(session, e, envelope.TypePlanningResponse, string(body)); err != nil {
		return err
	}

	// Task updates are pushed after the correlated response and without a conversation id.
	for _, task := range pr.Tasks {
		update, err := p.inform(e.From, envelope.TypeTaskUpdate, envelope.TypeTaskUpdate, taskUpdate{
			PlanId:     pr.Id,
			PlanStatus: pr.Status,
			Task:       task,
			UpdatedAt:  pr.UpdatedAt,
		})
		if err != nil {
			return err
		}
		if err := session.Send(update); err != nil {
			return err
		}
	}
	return nil
}

type taskRequest struct {
	TaskId string `json:"taskId"`
}

func parseTaskRequest(body string) (taskRequest, error) {
	var tr taskRequest
	if err := json.Unmarshal([]byte(body), &tr); err != nil {
		return tr, fmt.Errorf("task request is not a JSON object: %w", err)
	} else if tr.TaskId == "" {
		return tr, fmt.Errorf("task request misses taskId")
	}
	return tr, nil
}

func (p *Planner) lookupTask(taskId string) (storage.PlanRecord, error) {
	pr, err := p.store.PlanForTask(taskId)
	if errors.Is(err, storage.ErrNotFound) {
		return pr, fmt.Errorf("unknown task %s", taskId)
	}
	return pr, err
}

func (p *Planner) handleGetStatus(session *agent.PeerSession, e envelope.Envelope) error {
	tr, err := parseTaskRequest(e.Body)
	if err != nil {
		return err
	}

	pr, err := p.lookupTask(tr.TaskId)
	if err != nil {
		return err
	}

	body, err := json.Marshal(taskUpdate{
		PlanId:     pr.Id,
		PlanStatus: pr.Status,
		Task:       *pr.Task(tr.TaskId),
		UpdatedAt:  pr.UpdatedAt,
	})
	if err != nil {
		return err
	}
	return p.reply(session, e, envelope.TypeTaskUpdate, string(body))
}

func (p *Planner) handleUpdateEvent(e envelope.Envelope) error {
	var update struct {
		EventId string                 `json:"eventId"`
		Updates map[string]interface{} `json:"updates"`
	}
	if err := json.Unmarshal([]byte(e.Body), &update); err != nil {
		return fmt.Errorf("event update is not a JSON object: %w", err)
	} else if update.EventId == "" {
		return fmt.Errorf("event update misses eventId")
	}

	if _, err := p.store.UpdateEvent(update.EventId, update.Updates); errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("unknown event %s", update.EventId)
	} else {
		return err
	}
}

func (p *Planner) handleCompleteTask(e envelope.Envelope) error {
	tr, err := parseTaskRequest(e.Body)
	if err != nil {
		return err
	}

	var completed bool
	pr, err := p.store.UpdateTaskPlan(tr.TaskId, func(pr *storage.PlanRecord) error {
		pr.Task(tr.TaskId).Status = storage.StatusCompleted
		if completed = pr.Completed(); completed {
			pr.Status = storage.StatusCompleted
		}
		return nil
	})
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("unknown task %s", tr.TaskId)
	} else if err != nil {
		return err
	}

	if completed {
		if _, err := p.store.UpdateEvent(pr.EventId, map[string]interface{}{"status": storage.StatusCompleted}); err != nil &&
			!errors.Is(err, storage.ErrNotFound) {
			return err
		}
	}

	notice, err := p.inform("*", agent.ActionCompleteTask, envelope.TypeTaskComplete, taskComplete{
		TaskId:        tr.TaskId,
		PlanId:        pr.Id,
		PlanCompleted: completed,
	})
	if err != nil {
		return err
	}

	return p.server.Broadcast(notice)
}
