// SPDX-FileCopyrightText: 2026 The comunicacionagentes Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package agent

import (
	"errors"
	"fmt"
)

// ErrDisconnected is returned by Connect if Disconnect was called while dialing.
var ErrDisconnected = errors.New("disconnected while connecting")

// ConnectionError reports a failed operation on the channel.
type ConnectionError struct {
	Op      string
	Address string
	Err     error
}

func (ce *ConnectionError) Error() string {
	return fmt.Sprintf("%s %s: %v", ce.Op, ce.Address, ce.Err)
}

func (ce *ConnectionError) Unwrap() error {
	return ce.Err
}
