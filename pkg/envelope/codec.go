// SPDX-FileCopyrightText: 2026 The comunicacionagentes Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package envelope

import (
	"encoding/json"
	"fmt"
)

// SerializationError wraps a malformed frame's decoding or validation error.
type SerializationError struct {
	Err error
}

func (se *SerializationError) Error() string {
	return fmt.Sprintf("malformed envelope: %v", se.Err)
}

func (se *SerializationError) Unwrap() error {
	return se.Err
}

// Marshal an Envelope into its JSON text frame. Invalid Envelopes are refused.
func Marshal(e Envelope) ([]byte, error) {
	if err := e.CheckValid(); err != nil {
		return nil, &SerializationError{err}
	}

	data, err := json.Marshal(e)
	if err != nil {
		return nil, &SerializationError{err}
	}
	return data, nil
}

// Unmarshal a JSON text frame into an Envelope. Every error is a *SerializationError.
func Unmarshal(data []byte) (e Envelope, err error) {
	if jsonErr := json.Unmarshal(data, &e); jsonErr != nil {
		err = &SerializationError{jsonErr}
	} else if validErr := e.CheckValid(); validErr != nil {
		err = &SerializationError{validErr}
	}
	return
}
