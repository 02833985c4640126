// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package telemetry

import (
	"strings"
	"testing"
)

func TestStatistics_Line(t *testing.T) {
	s := NewStatistics()

	s.Line(true, nil)
	s.Line(true, nil)
	s.Line(false, nil)
	s.Line(false, &DecodeError{})

	if s.TotalLines != 4 {
		t.Errorf("TotalLines = %d, want 4", s.TotalLines)
	}
	if s.Records != 2 {
		t.Errorf("Records = %d, want 2", s.Records)
	}
	if s.Rejected != 1 {
		t.Errorf("Rejected = %d, want 1", s.Rejected)
	}
	if s.DecodeErrors != 1 {
		t.Errorf("DecodeErrors = %d, want 1", s.DecodeErrors)
	}
}

func TestStatistics_StringSections(t *testing.T) {
	s := NewStatistics()
	s.Line(true, nil)

	out := s.String()
	if strings.Contains(out, "Decode Errors") {
		t.Errorf("decode error line shown without errors:\n%s", out)
	}

	s.Line(false, &DecodeError{})
	s.DeviceError()
	s.Reconnected()
	s.Dummy()

	out = s.String()
	for _, want := range []string{"Decode Errors", "Unplugged", "Reconnects", "Dummy Ticks"} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}
}

func TestStatistics_Reset(t *testing.T) {
	s := NewStatistics()
	s.Line(true, nil)
	s.DeviceError()
	s.Reset()

	if s.TotalLines != 0 || s.Records != 0 || s.DeviceErrors != 0 {
		t.Errorf("counters not reset: %+v", s)
	}
	if s.StartTime.IsZero() {
		t.Errorf("StartTime should be set after reset")
	}
}
