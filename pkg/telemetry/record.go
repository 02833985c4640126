// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package telemetry

import (
	"strings"
	"time"
)

// Source identifies where a record came from
type Source uint8

const (
	SourceDevice Source = iota
	SourceDummy
)

func (s Source) String() string {
	switch s {
	case SourceDevice:
		return "device"
	case SourceDummy:
		return "dummy"
	default:
		return "unknown"
	}
}

// Record is one framed telemetry line. Field meaning is up to the consumer;
// the framer never interprets them.
type Record struct {
	Fields []string
	Raw    string
	Time   time.Time
	Source Source

	// Values holds the numeric vector for dummy records, nil otherwise
	Values []float64
}

// Len returns the number of fields
func (r Record) Len() int {
	return len(r.Fields)
}

// String joins the fields with a single space
func (r Record) String() string {
	return strings.Join(r.Fields, " ")
}
