// SPDX-FileCopyrightText: 2019, 2020 Alvar Penning
// SPDX-FileCopyrightText: 2026 The comunicacionagentes Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package storage

import (
	"errors"
	"fmt"
	"os"
	"path"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/google/uuid"
	"github.com/timshannon/badgerhold"
)

const dirBadger string = "db"

// ErrNotFound is returned for unknown events, plans or tasks.
var ErrNotFound = badgerhold.ErrNotFound

// RecordStore is the planner's view on the Store.
type RecordStore interface {
	CreateEvent(fields map[string]interface{}) (EventRecord, error)
	Event(id string) (EventRecord, error)
	Events() ([]EventRecord, error)
	UpdateEvent(id string, updates map[string]interface{}) (EventRecord, error)
	DeleteEvent(id string) error

	CreatePlan(eventId string, build func(pr *PlanRecord)) (PlanRecord, error)
	Plan(id string) (PlanRecord, error)
	PlanForTask(taskId string) (PlanRecord, error)
	UpdatePlan(pr PlanRecord) error
	UpdateTaskPlan(taskId string, modify func(pr *PlanRecord) error) (PlanRecord, error)
}

// Store implements a RecordStore on top of badgerhold.
type Store struct {
	// createMutex serializes identifier allocation.
	createMutex sync.Mutex
	// updateMutex serializes read-modify-write cycles on stored records.
	updateMutex sync.Mutex

	bh *badgerhold.Store

	badgerDir string
}

// NewStore creates a new Store or opens an existing Store from the given path.
func NewStore(dir string) (s *Store, err error) {
	badgerDir := path.Join(dir, dirBadger)

	opts := badgerhold.DefaultOptions
	opts.Dir = badgerDir
	opts.ValueDir = badgerDir
	opts.Logger = log.StandardLogger()
	opts.Options.ValueLogFileSize = 1<<28 - 1

	if dirErr := os.MkdirAll(badgerDir, 0700); dirErr != nil {
		err = dirErr
		return
	}

	if bh, bhErr := badgerhold.Open(opts); bhErr != nil {
		err = bhErr
	} else {
		s = &Store{
			bh:        bh,
			badgerDir: badgerDir,
		}
	}
	return
}

// Close the Store. It must not be used afterwards.
func (s *Store) Close() error {
	return s.bh.Close()
}

// CreateEvent inserts a new pending EventRecord from the given fields.
func (s *Store) CreateEvent(fields map[string]interface{}) (er EventRecord, err error) {
	s.createMutex.Lock()
	defer s.createMutex.Unlock()

	now := time.Now()
	er = EventRecord{
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	for k, v := range fields {
		if k == "id" {
			continue
		}
		if err = er.Set(k, v); err != nil {
			return
		}
	}
	// The fields may not override the initial status.
	er.Status = StatusPending

	for millis := now.UnixMilli(); ; millis++ {
		er.Id = fmt.Sprintf("event-%d", millis)
		if known, knowsErr := s.knows(er.Id, &EventRecord{}); knowsErr != nil {
			err = knowsErr
			return
		} else if !known {
			break
		}
	}

	log.WithField("event", er.Id).Info("Store inserts EventRecord")

	err = s.bh.Insert(er.Id, er)
	return
}

// Event fetches the EventRecord for the requested identifier.
func (s *Store) Event(id string) (er EventRecord, err error) {
	err = s.bh.Get(id, &er)
	return
}

// Events fetches all EventRecords.
func (s *Store) Events() (ers []EventRecord, err error) {
	err = s.bh.Find(&ers, nil)
	return
}

// EventsByStatus fetches all EventRecords of the given status.
func (s *Store) EventsByStatus(status string) (ers []EventRecord, err error) {
	err = s.bh.Find(&ers, badgerhold.Where("Status").Eq(status))
	return
}

// UpdateEvent merges the updates into an EventRecord and refreshes its modification time.
func (s *Store) UpdateEvent(id string, updates map[string]interface{}) (er EventRecord, err error) {
	s.updateMutex.Lock()
	defer s.updateMutex.Unlock()

	if er, err = s.Event(id); err != nil {
		return
	}

	for k, v := range updates {
		if k == "id" {
			continue
		}
		if err = er.Set(k, v); err != nil {
			return
		}
	}
	er.UpdatedAt = time.Now()

	log.WithFields(log.Fields{
		"event":   id,
		"updates": len(updates),
	}).Debug("Store updates EventRecord")

	err = s.bh.Update(id, er)
	return
}

// DeleteEvent removes an EventRecord.
func (s *Store) DeleteEvent(id string) error {
	s.updateMutex.Lock()
	defer s.updateMutex.Unlock()

	if known, err := s.knows(id, &EventRecord{}); err != nil {
		return err
	} else if !known {
		return ErrNotFound
	}

	log.WithField("event", id).Info("Store deletes EventRecord")

	return s.bh.Delete(id, EventRecord{})
}

// CreatePlan inserts a new PlanRecord for an event. The build function fills in the tasks and descriptions of the
// identified plan. A known event is linked to the plan.
func (s *Store) CreatePlan(eventId string, build func(pr *PlanRecord)) (pr PlanRecord, err error) {
	now := time.Now()
	planId := uuid.New().String()

	pr = PlanRecord{
		Id:        planId,
		EventId:   eventId,
		Status:    StatusCreated,
		CreatedAt: now,
		UpdatedAt: now,
	}
	build(&pr)
	pr.Id = planId

	log.WithFields(log.Fields{
		"plan":  planId,
		"event": eventId,
		"tasks": len(pr.Tasks),
	}).Info("Store inserts PlanRecord")

	if err = s.bh.Insert(planId, pr); err != nil {
		return
	}

	if _, linkErr := s.UpdateEvent(eventId, map[string]interface{}{"plan_id": planId}); linkErr != nil {
		if !errors.Is(linkErr, ErrNotFound) {
			err = linkErr
			return
		}
		log.WithField("event", eventId).Debug("Plan's event is unknown, not linking")
	}
	return
}

// Plan fetches the PlanRecord for the requested identifier.
func (s *Store) Plan(id string) (pr PlanRecord, err error) {
	err = s.bh.Get(id, &pr)
	return
}

// PlansForEvent fetches all PlanRecords of an event.
func (s *Store) PlansForEvent(eventId string) (prs []PlanRecord, err error) {
	err = s.bh.Find(&prs, badgerhold.Where("EventId").Eq(eventId))
	return
}

// PlanForTask fetches the PlanRecord containing the task.
func (s *Store) PlanForTask(taskId string) (pr PlanRecord, err error) {
	planId, ok := planIdOf(taskId)
	if !ok {
		err = ErrNotFound
		return
	}

	if pr, err = s.Plan(planId); err != nil {
		return
	} else if pr.Task(taskId) == nil {
		err = ErrNotFound
	}
	return
}

// UpdatePlan stores a modified PlanRecord.
func (s *Store) UpdatePlan(pr PlanRecord) error {
	s.updateMutex.Lock()
	defer s.updateMutex.Unlock()

	return s.updatePlan(pr)
}

// UpdateTaskPlan loads the PlanRecord containing the task, passes it to modify and stores the result. Concurrent
// modifications are applied one after another, thus none gets lost.
func (s *Store) UpdateTaskPlan(taskId string, modify func(pr *PlanRecord) error) (pr PlanRecord, err error) {
	s.updateMutex.Lock()
	defer s.updateMutex.Unlock()

	if pr, err = s.PlanForTask(taskId); err != nil {
		return
	}
	if err = modify(&pr); err != nil {
		return
	}
	if err = s.updatePlan(pr); err != nil {
		return
	}
	return s.Plan(pr.Id)
}

func (s *Store) updatePlan(pr PlanRecord) error {
	pr.UpdatedAt = time.Now()

	log.WithFields(log.Fields{
		"plan":   pr.Id,
		"status": pr.Status,
	}).Debug("Store updates PlanRecord")

	return s.bh.Update(pr.Id, pr)
}

// knows checks if a record of this type is stored for the id. Lookup errors other than ErrNotFound are returned.
func (s *Store) knows(id string, dataType interface{}) (bool, error) {
	switch err := s.bh.Get(id, dataType); {
	case err == nil:
		return true, nil
	case errors.Is(err, badgerhold.ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}
