// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package link

import (
	"errors"
	"fmt"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
	"go.uber.org/zap"
)

// ErrNoPorts is reported when the system has no serial ports
var ErrNoPorts = errors.New("no serial ports found")

// PortInfo describes one serial port
type PortInfo struct {
	Name         string
	IsUSB        bool
	VID          string
	PID          string
	SerialNumber string
	Product      string
}

func (p PortInfo) String() string {
	if !p.IsUSB {
		return p.Name
	}
	s := fmt.Sprintf("%s [USB %s:%s]", p.Name, p.VID, p.PID)
	if p.Product != "" {
		s += " " + p.Product
	}
	return s
}

// Lister queries the operating system for serial ports
type Lister interface {
	List() ([]PortInfo, error)
}

// SystemLister lists ports through go.bug.st/serial
type SystemLister struct{}

// List returns detailed port information, falling back to plain names when
// the detailed query is unsupported on this platform.
func (SystemLister) List() ([]PortInfo, error) {
	details, err := enumerator.GetDetailedPortsList()
	if err == nil {
		ports := make([]PortInfo, 0, len(details))
		for _, d := range details {
			ports = append(ports, PortInfo{
				Name:         d.Name,
				IsUSB:        d.IsUSB,
				VID:          d.VID,
				PID:          d.PID,
				SerialNumber: d.SerialNumber,
				Product:      d.Product,
			})
		}
		return ports, nil
	}

	names, nameErr := serial.GetPortsList()
	if nameErr != nil {
		return nil, fmt.Errorf("enumerator error: %w", errors.Join(err, nameErr))
	}
	ports := make([]PortInfo, 0, len(names))
	for _, name := range names {
		ports = append(ports, PortInfo{Name: name})
	}
	return ports, nil
}

// ListPorts never fails: on an OS error or an empty result it logs, publishes
// EventEnumerationFailed and returns an empty slice.
func ListPorts(lister Lister, notifier *Notifier, logger *zap.Logger) []PortInfo {
	if logger == nil {
		logger = zap.NewNop()
	}

	ports, err := lister.List()
	if err == nil && len(ports) == 0 {
		err = ErrNoPorts
	}
	if err != nil {
		logger.Warn("Port enumeration failed", zap.Error(err))
		notifier.Publish(Event{
			Kind:    EventEnumerationFailed,
			Message: err.Error(),
			Err:     err,
		})
		return []PortInfo{}
	}

	logger.Debug("Ports enumerated", zap.Int("count", len(ports)))
	return ports
}
