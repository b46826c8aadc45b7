// SPDX-FileCopyrightText: 2026 The comunicacionagentes Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package storage persists the planner's events and plans.
//
// The Store is backed by badgerhold. EventRecords are created with an "event-<millis>" identifier and carry their
// free-form details as JSON encoded values; PlanRecords bundle the tasks created for an event.
package storage
