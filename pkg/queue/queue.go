// SPDX-FileCopyrightText: 2026 The comunicacionagentes Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package queue buffers outgoing Envelopes while the channel is not open.
package queue

import (
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/MoisesRodriguez12/comunicacionagentes/pkg/envelope"
)

// Item is a queued Envelope together with its enqueue time.
type Item struct {
	Envelope envelope.Envelope
	Enqueued time.Time
}

// Queue is a FIFO buffer of Items. Draining never reorders.
type Queue struct {
	sync.Mutex

	items []Item

	// MaxLen bounds the Queue; the oldest Item will be dropped if it is full. Zero means unbounded.
	MaxLen int
}

// New creates a Queue, bounded by maxLen unless it is zero.
func New(maxLen int) *Queue {
	return &Queue{MaxLen: maxLen}
}

// Enqueue appends an Envelope.
func (q *Queue) Enqueue(e envelope.Envelope) {
	q.Lock()
	defer q.Unlock()

	if q.MaxLen > 0 && len(q.items) >= q.MaxLen {
		log.WithFields(log.Fields{
			"envelope": q.items[0].Envelope,
			"enqueued": q.items[0].Enqueued,
		}).Warn("Outbound queue is full, dropping oldest envelope")
		q.items = q.items[1:]
	}

	q.items = append(q.items, Item{Envelope: e, Enqueued: time.Now()})

	log.WithFields(log.Fields{
		"envelope": e,
		"queued":   len(q.items),
	}).Debug("Enqueued envelope")
}

// Flush drains the Queue front to back. An Item is only removed after send succeeded. On the first error, flushing
// stops and the failed Item stays in front. The amount of sent Items is returned.
func (q *Queue) Flush(send func(envelope.Envelope) error) (n int, err error) {
	q.Lock()
	defer q.Unlock()

	for len(q.items) > 0 {
		item := q.items[0]
		if err = send(item.Envelope); err != nil {
			log.WithError(err).WithFields(log.Fields{
				"envelope":  item.Envelope,
				"remaining": len(q.items),
			}).Warn("Flushing outbound queue stopped")
			return
		}

		q.items = q.items[1:]
		n++
	}

	if n > 0 {
		log.WithField("sent", n).Info("Flushed outbound queue")
	}
	return
}

// Len of the Queue.
func (q *Queue) Len() int {
	q.Lock()
	defer q.Unlock()

	return len(q.items)
}

// Items returns a copy of all queued Items.
func (q *Queue) Items() []Item {
	q.Lock()
	defer q.Unlock()

	items := make([]Item, len(q.items))
	copy(items, q.items)
	return items
}
