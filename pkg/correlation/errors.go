// SPDX-FileCopyrightText: 2026 The comunicacionagentes Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package correlation

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrTimeout is wrapped by every TimeoutError.
	ErrTimeout = errors.New("timed out waiting for reply")

	// ErrConnectionClosed rejects pending conversations on an intentional disconnect.
	ErrConnectionClosed = errors.New("connection closed")

	// ErrDuplicateConversation is returned when a conversation id is already awaited.
	ErrDuplicateConversation = errors.New("conversation id is already awaited")
)

// TimeoutError is the rejection of a Conversation whose timer fired.
type TimeoutError struct {
	ConversationID string
	After          time.Duration
}

func (te *TimeoutError) Error() string {
	return fmt.Sprintf("conversation %s: no reply after %v", te.ConversationID, te.After)
}

func (te *TimeoutError) Unwrap() error {
	return ErrTimeout
}

// ProtocolError is the rejection of a Conversation whose peer answered with an error message.
type ProtocolError struct {
	ConversationID string
	Body           string
}

func (pe *ProtocolError) Error() string {
	return fmt.Sprintf("conversation %s: peer reported an error: %s", pe.ConversationID, pe.Body)
}
