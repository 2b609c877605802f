// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package mmc5983

import (
	"errors"
	"fmt"
)

var (
	// ErrCommunication matches every *CommError.
	ErrCommunication = errors.New("mmc5983: bus communication failed")
	// ErrInvalidInputData is returned for a burst read larger than the
	// transport scratch buffer. No bus transaction is issued.
	ErrInvalidInputData = errors.New("mmc5983: invalid input data")
	// ErrInvalidID matches every *IDError.
	ErrInvalidID = errors.New("mmc5983: invalid product id")
	// ErrNotReady is returned by TryMagneticField while a measurement is
	// still in progress.
	ErrNotReady = errors.New("mmc5983: measurement not ready")
	// ErrHandleReleased is returned by a handle that was given up by a mode
	// transition or Release.
	ErrHandleReleased = errors.New("mmc5983: handle released")
)

// CommError wraps an error returned by the underlying bus.
type CommError struct {
	Op  string
	Reg Register
	Err error
}

func (e *CommError) Error() string {
	return fmt.Sprintf("mmc5983: %s %s: %v", e.Op, e.Reg, e.Err)
}

func (e *CommError) Unwrap() error { return e.Err }

func (e *CommError) Is(target error) bool { return target == ErrCommunication }

// IDError reports an unexpected product ID, usually wrong or absent hardware.
type IDError struct {
	ID ProductID
}

func (e *IDError) Error() string {
	return fmt.Sprintf("mmc5983: product id %s, expected 0x%02X", e.ID, ExpectedProductID)
}

func (e *IDError) Is(target error) bool { return target == ErrInvalidID }

func commErr(op string, reg Register, err error) error {
	if err == nil {
		return nil
	}
	return &CommError{Op: op, Reg: reg, Err: err}
}
