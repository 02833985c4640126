// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package link

import (
	"fmt"
	"io"
	"time"

	"go.bug.st/serial"
)

// Port is an open serial handle. Read must return (0, nil) when the read
// timeout expires without data, as go.bug.st/serial does.
type Port interface {
	io.Reader
	io.Writer
	io.Closer
}

// Opener opens a port with the given baud rate and read timeout
type Opener func(name string, baud int, timeout time.Duration) (Port, error)

// OpenSerial opens a real serial port, 8N1, with the read timeout applied
func OpenSerial(name string, baud int, timeout time.Duration) (Port, error) {
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(name, mode)
	if err != nil {
		return nil, err
	}

	if err := port.SetReadTimeout(timeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("failed to set read timeout: %w", err)
	}

	return port, nil
}
