// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package link_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"

	"github.com/Thermoquad/aerostat/pkg/link"
)

type fakeLister struct {
	ports []link.PortInfo
	err   error
}

func (f fakeLister) List() ([]link.PortInfo, error) {
	return f.ports, f.err
}

func TestListPorts(t *testing.T) {
	tests := []struct {
		name       string
		lister     fakeLister
		wantCount  int
		wantEvents int
	}{
		{
			name: "two ports",
			lister: fakeLister{ports: []link.PortInfo{
				{Name: "/dev/ttyUSB0", IsUSB: true, VID: "0403", PID: "6001", Product: "FT232R"},
				{Name: "/dev/ttyS0"},
			}},
			wantCount: 2,
		},
		{
			name:       "no ports",
			lister:     fakeLister{},
			wantCount:  0,
			wantEvents: 1,
		},
		{
			name:       "os error",
			lister:     fakeLister{err: errors.New("permission denied")},
			wantCount:  0,
			wantEvents: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := link.NewNotifier(8, zaptest.NewLogger(t))
			ports := link.ListPorts(tt.lister, n, zaptest.NewLogger(t))

			assert.NotNil(t, ports)
			assert.Len(t, ports, tt.wantCount)

			events := drain(n)
			assert.Equal(t, tt.wantEvents, countKind(events, link.EventEnumerationFailed))
		})
	}
}

func TestPortInfoString(t *testing.T) {
	usb := link.PortInfo{Name: "/dev/ttyUSB0", IsUSB: true, VID: "0403", PID: "6001", Product: "FT232R"}
	assert.Equal(t, "/dev/ttyUSB0 [USB 0403:6001] FT232R", usb.String())
	assert.Equal(t, "/dev/ttyS0", link.PortInfo{Name: "/dev/ttyS0"}.String())
}
