// SPDX-FileCopyrightText: 2026 The comunicacionagentes Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package storage

import (
	"encoding/json"
	"strings"
	"time"
)

// Status values shared by events, plans and tasks.
const (
	StatusPending   = "pending"
	StatusCreated   = "created"
	StatusCompleted = "completed"
)

// EventRecord is a stored event. Details hold every other field as its JSON encoding.
type EventRecord struct {
	Id     string `badgerhold:"key"`
	Name   string
	Status string `badgerholdIndex:"Status"`
	PlanId string

	Details map[string]string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Set a field of this EventRecord. Name, Status and PlanId are kept in their own fields.
func (er *EventRecord) Set(key string, value interface{}) error {
	if s, ok := value.(string); ok {
		switch key {
		case "event_name", "name":
			er.Name = s
			return nil
		case "status":
			er.Status = s
			return nil
		case "plan_id":
			er.PlanId = s
			return nil
		}
	}

	data, err := json.Marshal(value)
	if err != nil {
		return err
	}

	if er.Details == nil {
		er.Details = make(map[string]string)
	}
	er.Details[key] = string(data)
	return nil
}

// Get a detail field, decoded from its JSON representation.
func (er EventRecord) Get(key string) (value interface{}, ok bool) {
	raw, ok := er.Details[key]
	if !ok {
		return nil, false
	}
	if err := json.Unmarshal([]byte(raw), &value); err != nil {
		return nil, false
	}
	return value, true
}

// MarshalJSON flattens the Details next to the fixed fields.
func (er EventRecord) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(er.Details)+6)
	for k := range er.Details {
		if v, ok := er.Get(k); ok {
			out[k] = v
		}
	}

	out["id"] = er.Id
	out["status"] = er.Status
	out["created_at"] = er.CreatedAt
	out["updated_at"] = er.UpdatedAt
	if er.Name != "" {
		out["event_name"] = er.Name
	}
	if er.PlanId != "" {
		out["plan_id"] = er.PlanId
	}

	return json.Marshal(out)
}

// Task is one unit of work of a PlanRecord.
type Task struct {
	TaskId       string            `json:"task_id"`
	TaskName     string            `json:"task_name"`
	Description  string            `json:"description"`
	Priority     int               `json:"priority"`
	Dependencies []string          `json:"dependencies"`
	Parameters   map[string]string `json:"parameters"`
	Status       string            `json:"status"`
}

// PlanRecord is the plan created for an event.
type PlanRecord struct {
	Id      string `badgerhold:"key" json:"plan_id"`
	EventId string `badgerholdIndex:"EventId" json:"event_id"`

	Summary           string `json:"plan_summary"`
	EstimatedDuration string `json:"estimated_duration"`
	Tasks             []Task `json:"tasks"`
	Status            string `json:"status"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Task returns a pointer into this plan's tasks, or nil.
func (pr *PlanRecord) Task(taskId string) *Task {
	for i := range pr.Tasks {
		if pr.Tasks[i].TaskId == taskId {
			return &pr.Tasks[i]
		}
	}
	return nil
}

// Completed checks if every task is completed.
func (pr PlanRecord) Completed() bool {
	for _, task := range pr.Tasks {
		if task.Status != StatusCompleted {
			return false
		}
	}
	return len(pr.Tasks) > 0
}

// planIdOf extracts the plan identifier from a "<plan>-task-<n>" task identifier.
func planIdOf(taskId string) (string, bool) {
	i := strings.LastIndex(taskId, "-task-")
	if i <= 0 {
		return "", false
	}
	return taskId[:i], true
}
