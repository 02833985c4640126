// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package linktest provides an in-memory serial device for tests.
package linktest

import (
	"bytes"
	"errors"
	"sync"
	"time"

	"github.com/Thermoquad/aerostat/pkg/link"
)

var (
	// ErrNoDevice is returned by the opener while the device is unplugged
	ErrNoDevice = errors.New("no such device")
	// ErrUnplugged is returned by Read on a port whose device went away
	ErrUnplugged = errors.New("input/output error")
	// ErrPortClosed is returned by Read after Close
	ErrPortClosed = errors.New("port closed")
)

// Device simulates a serial device that can be unplugged and replugged.
// Data written with Feed is read by whichever port is currently open.
type Device struct {
	mu      sync.Mutex
	present bool
	current *Port
	opens   int
	failed  int
	written bytes.Buffer

	data chan []byte
}

// NewDevice returns a plugged-in device
func NewDevice() *Device {
	return &Device{
		present: true,
		data:    make(chan []byte, 1024),
	}
}

// Opener returns a link.Opener bound to this device
func (d *Device) Opener() link.Opener {
	return func(name string, baud int, timeout time.Duration) (link.Port, error) {
		d.mu.Lock()
		defer d.mu.Unlock()
		if !d.present {
			d.failed++
			return nil, ErrNoDevice
		}
		p := &Port{
			dev:      d,
			timeout:  timeout,
			closed:   make(chan struct{}),
			unplug:   make(chan struct{}),
			Name:     name,
			BaudRate: baud,
		}
		d.current = p
		d.opens++
		return p, nil
	}
}

// Feed queues bytes for the open port
func (d *Device) Feed(s string) {
	d.data <- []byte(s)
}

// Unplug makes the open port fail and further opens fail
func (d *Device) Unplug() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.present = false
	if d.current != nil {
		d.current.unplugOnce.Do(func() { close(d.current.unplug) })
	}
}

// Replug lets the next open succeed
func (d *Device) Replug() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.present = true
}

// Opens returns the number of successful opens
func (d *Device) Opens() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.opens
}

// FailedOpens returns the number of opens refused while unplugged
func (d *Device) FailedOpens() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.failed
}

// Current returns the most recently opened port
func (d *Device) Current() *Port {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.current
}

// Written returns everything written to any port of this device
func (d *Device) Written() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.written.String()
}

// Port is one open handle on a Device
type Port struct {
	Name     string
	BaudRate int

	dev     *Device
	timeout time.Duration
	left    []byte

	closed     chan struct{}
	closeOnce  sync.Once
	unplug     chan struct{}
	unplugOnce sync.Once
}

// Read behaves like go.bug.st/serial with a read timeout: (0, nil) when
// nothing arrives in time.
func (p *Port) Read(b []byte) (int, error) {
	select {
	case <-p.closed:
		return 0, ErrPortClosed
	case <-p.unplug:
		return 0, ErrUnplugged
	default:
	}

	if len(p.left) > 0 {
		n := copy(b, p.left)
		p.left = p.left[n:]
		return n, nil
	}

	timer := time.NewTimer(p.timeout)
	defer timer.Stop()

	select {
	case <-p.closed:
		return 0, ErrPortClosed
	case <-p.unplug:
		return 0, ErrUnplugged
	case chunk := <-p.dev.data:
		n := copy(b, chunk)
		p.left = chunk[n:]
		return n, nil
	case <-timer.C:
		return 0, nil
	}
}

// Write records the data on the device
func (p *Port) Write(b []byte) (int, error) {
	select {
	case <-p.closed:
		return 0, ErrPortClosed
	case <-p.unplug:
		return 0, ErrUnplugged
	default:
	}
	p.dev.mu.Lock()
	defer p.dev.mu.Unlock()
	return p.dev.written.Write(b)
}

// Close releases the handle; a blocked Read returns immediately
func (p *Port) Close() error {
	p.closeOnce.Do(func() { close(p.closed) })
	return nil
}

// Closed reports whether Close was called
func (p *Port) Closed() bool {
	select {
	case <-p.closed:
		return true
	default:
		return false
	}
}
