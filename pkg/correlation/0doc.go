// SPDX-FileCopyrightText: 2026 The comunicacionagentes Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package correlation pairs outgoing requests with their replies by conversation id.
//
// Each Conversation owns exactly one timer and one waiter. Whichever happens first, a reply, a rejection, the timer or
// the waiter's cancellation, settles the Conversation and removes it from the Registry. Every later outcome is a no-op.
package correlation
