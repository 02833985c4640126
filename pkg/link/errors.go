// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package link

import (
	"errors"
	"fmt"
)

var (
	// ErrReadTimeout means no complete line arrived within the read timeout
	ErrReadTimeout = errors.New("read timeout")
	// ErrNotOpen is returned by I/O on a controller without an open handle
	ErrNotOpen = errors.New("port not open")
	// ErrAlreadyOpen is returned by Open when the controller is not Disconnected
	ErrAlreadyOpen = errors.New("port already open")
	// ErrClosed is returned by Reconnect when Close ran concurrently
	ErrClosed = errors.New("controller closed")
)

// ConnectError reports a failed open
type ConnectError struct {
	Port string
	Baud int
	Err  error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("failed to open serial port %s @ %d: %v", e.Port, e.Baud, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// WriteError reports a failed or short write
type WriteError struct {
	Port    string
	Written int
	Total   int
	Err     error
}

func (e *WriteError) Error() string {
	if e.Port == "" {
		return fmt.Sprintf("write failed: %v", e.Err)
	}
	return fmt.Sprintf("write to %s failed after %d/%d bytes: %v", e.Port, e.Written, e.Total, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// DeviceIOError reports a device-level read failure, usually an unplug
type DeviceIOError struct {
	Port string
	Err  error
}

func (e *DeviceIOError) Error() string {
	return fmt.Sprintf("device error on %s: %v", e.Port, e.Err)
}

func (e *DeviceIOError) Unwrap() error { return e.Err }
