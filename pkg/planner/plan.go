// SPDX-FileCopyrightText: 2026 The comunicacionagentes Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package planner

import (
	"fmt"
	"time"

	"github.com/MoisesRodriguez12/comunicacionagentes/pkg/storage"
)

// detail returns an event field's textual representation or the fallback.
func detail(event map[string]interface{}, key string, fallback string) string {
	v, ok := event[key]
	if !ok || v == nil {
		return fallback
	}
	return fmt.Sprint(v)
}

// fallbackPlan fills a PlanRecord with the default tasks for an event: reserving a space, hiring catering, managing
// the budget and coordinating the logistics.
func fallbackPlan(event map[string]interface{}) func(pr *storage.PlanRecord) {
	return func(pr *storage.PlanRecord) {
		taskId := func(n int) string { return fmt.Sprintf("%s-task-%d", pr.Id, n) }
		attendees := detail(event, "expected_attendees", "100")

		pr.Summary = fmt.Sprintf("Automatic plan for %s", detail(event, "event_name", "the event"))
		pr.EstimatedDuration = "2-3 weeks"
		pr.Tasks = []storage.Task{
			{
				TaskId:       taskId(1),
				TaskName:     "Reserve event space",
				Description:  fmt.Sprintf("Reserve a space suitable for %s attendees", attendees),
				Priority:     5,
				Dependencies: []string{},
				Parameters:   map[string]string{"action": "reserve_space", "capacity": attendees},
			},
			{
				TaskId:       taskId(2),
				TaskName:     "Hire catering services",
				Description:  "Hire food and beverage services for the event",
				Priority:     4,
				Dependencies: []string{taskId(1)},
				Parameters:   map[string]string{"action": "hire_catering", "attendees": attendees},
			},
			{
				TaskId:       taskId(3),
				TaskName:     "Manage budget",
				Description:  "Distribute and control the event's budget",
				Priority:     5,
				Dependencies: []string{},
				Parameters:   map[string]string{"action": "manage_budget", "budget": detail(event, "budget", "0")},
			},
			{
				TaskId:       taskId(4),
				TaskName:     "Coordinate logistics",
				Description:  "Organize the event's flow and schedule",
				Priority:     3,
				Dependencies: []string{taskId(1), taskId(2)},
				Parameters:   map[string]string{"action": "coordinate_logistics", "date": detail(event, "event_date", "")},
			},
		}

		for i := range pr.Tasks {
			pr.Tasks[i].Status = storage.StatusPending
		}
	}
}

// planResponse is the body of a planning-response.
type planResponse struct {
	storage.PlanRecord

	EventDetails map[string]interface{} `json:"event_details"`
	TotalTasks   int                    `json:"total_tasks"`
}

func newPlanResponse(pr storage.PlanRecord, event map[string]interface{}) planResponse {
	return planResponse{
		PlanRecord:   pr,
		EventDetails: event,
		TotalTasks:   len(pr.Tasks),
	}
}

// taskUpdate is the body of a task-update, either pushed or replied to a status query.
type taskUpdate struct {
	PlanId     string       `json:"plan_id"`
	PlanStatus string       `json:"plan_status"`
	Task       storage.Task `json:"task"`
	UpdatedAt  time.Time    `json:"updated_at"`
}

// taskComplete is the body of a broadcast task-complete.
type taskComplete struct {
	TaskId        string `json:"taskId"`
	PlanId        string `json:"planId"`
	PlanCompleted bool   `json:"planCompleted"`
}
