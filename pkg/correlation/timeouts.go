// SPDX-FileCopyrightText: 2026 The comunicacionagentes Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package correlation

import "time"

const (
	// PlanningTimeout is the default for planning-style requests.
	PlanningTimeout = 30 * time.Second

	// StatusTimeout is the default for status queries.
	StatusTimeout = 10 * time.Second
)

// DefaultTimeout for an action. Unknown actions get the PlanningTimeout.
func DefaultTimeout(action string) time.Duration {
	switch action {
	case "get-status":
		return StatusTimeout
	default:
		return PlanningTimeout
	}
}
