// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package telemetry

import (
	"fmt"
	"time"
)

// Statistics tracks line statistics and error rates
type Statistics struct {
	StartTime      time.Time
	LastUpdateTime time.Time

	// Counters
	TotalLines   uint64
	Records      uint64
	Rejected     uint64
	DecodeErrors uint64
	DeviceErrors uint64
	Reconnects   uint64
	DummyTicks   uint64

	// Rates (calculated)
	RecordRate float64 // records/sec
	ErrorRate  float64 // errors/sec
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	now := time.Now()
	return &Statistics{
		StartTime:      now,
		LastUpdateTime: now,
	}
}

// Line counts one raw line and how it ended: decoded and framed, rejected by
// the framer, or failed to decode.
func (s *Statistics) Line(framed bool, decodeErr error) {
	s.TotalLines++
	switch {
	case decodeErr != nil:
		s.DecodeErrors++
	case framed:
		s.Records++
	default:
		s.Rejected++
	}
	s.LastUpdateTime = time.Now()
}

// Dummy counts one generated record
func (s *Statistics) Dummy() {
	s.DummyTicks++
	s.Records++
	s.LastUpdateTime = time.Now()
}

// DeviceError counts a device-level read failure (unplug)
func (s *Statistics) DeviceError() {
	s.DeviceErrors++
}

// Reconnected counts a successful replug
func (s *Statistics) Reconnected() {
	s.Reconnects++
}

// CalculateRates calculates record and error rates
func (s *Statistics) CalculateRates() {
	elapsed := time.Since(s.StartTime).Seconds()
	if elapsed > 0 {
		s.RecordRate = float64(s.Records) / elapsed
		s.ErrorRate = float64(s.DecodeErrors+s.DeviceErrors) / elapsed
	}
}

// String returns a formatted statistics summary
func (s *Statistics) String() string {
	s.CalculateRates()

	var recordPercent, rejectPercent, decodeErrorPercent float64
	if s.TotalLines > 0 {
		recordPercent = float64(s.Records-s.DummyTicks) * 100.0 / float64(s.TotalLines)
		rejectPercent = float64(s.Rejected) * 100.0 / float64(s.TotalLines)
		decodeErrorPercent = float64(s.DecodeErrors) * 100.0 / float64(s.TotalLines)
	}

	elapsed := time.Since(s.StartTime)

	result := fmt.Sprintf("=== Statistics (%.0f seconds) ===\n", elapsed.Seconds())
	result += fmt.Sprintf("Total Lines:     %8d\n", s.TotalLines)
	result += fmt.Sprintf("Records:         %8d (%.1f%%)\n", s.Records, recordPercent)

	if s.Rejected > 0 {
		result += fmt.Sprintf("Rejected:        %8d (%.1f%%)\n", s.Rejected, rejectPercent)
	}
	if s.DecodeErrors > 0 {
		result += fmt.Sprintf("Decode Errors:   %8d (%.1f%%)\n", s.DecodeErrors, decodeErrorPercent)
	}
	if s.DummyTicks > 0 {
		result += fmt.Sprintf("Dummy Ticks:     %8d\n", s.DummyTicks)
	}
	if s.DeviceErrors > 0 || s.Reconnects > 0 {
		result += fmt.Sprintf("Unplugged:       %8d\n", s.DeviceErrors)
		result += fmt.Sprintf("Reconnects:      %8d\n", s.Reconnects)
	}

	result += fmt.Sprintf("Record Rate:     %8.1f rec/sec\n", s.RecordRate)
	result += fmt.Sprintf("Error Rate:      %8.1f errors/sec\n", s.ErrorRate)
	result += "================================\n"

	return result
}

// Reset resets all statistics counters
func (s *Statistics) Reset() {
	*s = *NewStatistics()
}
