// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package relay forwards session output to websocket clients as CBOR frames
// and provides a client ("tap") for reading them back.
package relay

import (
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/Thermoquad/aerostat/pkg/link"
	"github.com/Thermoquad/aerostat/pkg/telemetry"
)

// Kind identifies what a frame carries
type Kind uint8

const (
	KindRecord Kind = 1
	KindText   Kind = 2
	KindEvent  Kind = 3
)

func (k Kind) String() string {
	switch k {
	case KindRecord:
		return "RECORD"
	case KindText:
		return "TEXT"
	case KindEvent:
		return "EVENT"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", uint8(k))
	}
}

// Frame is one relay message. Keys are small integers on the wire.
type Frame struct {
	Kind   Kind      `cbor:"0,keyasint"`
	Time   int64     `cbor:"1,keyasint"` // unix microseconds
	Source string    `cbor:"2,keyasint,omitempty"`
	Fields []string  `cbor:"3,keyasint,omitempty"`
	Values []float64 `cbor:"4,keyasint,omitempty"`
	Text   string    `cbor:"5,keyasint,omitempty"`
	Event  string    `cbor:"6,keyasint,omitempty"`
}

var encMode cbor.EncMode

func init() {
	em, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("relay: cbor encoder: %v", err))
	}
	encMode = em
}

// RecordFrame wraps a framed or dummy record
func RecordFrame(rec telemetry.Record) Frame {
	return Frame{
		Kind:   KindRecord,
		Time:   rec.Time.UnixMicro(),
		Source: rec.Source.String(),
		Fields: rec.Fields,
		Values: rec.Values,
		Text:   rec.Raw,
	}
}

// TextFrame wraps raw text such as the unplugged notice
func TextFrame(text string, at time.Time) Frame {
	return Frame{Kind: KindText, Time: at.UnixMicro(), Text: text}
}

// EventFrame wraps a diagnostic event
func EventFrame(ev link.Event) Frame {
	return Frame{
		Kind:  KindEvent,
		Time:  ev.Time.UnixMicro(),
		Text:  ev.Message,
		Event: ev.Kind.String(),
	}
}

// Timestamp returns the frame time
func (f Frame) Timestamp() time.Time {
	return time.UnixMicro(f.Time)
}

// Encode serializes a frame
func Encode(f Frame) ([]byte, error) {
	data, err := encMode.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("failed to encode frame: %w", err)
	}
	return data, nil
}

// Decode parses a frame
func Decode(data []byte) (Frame, error) {
	if len(data) == 0 {
		return Frame{}, fmt.Errorf("empty CBOR payload")
	}
	var f Frame
	if err := cbor.Unmarshal(data, &f); err != nil {
		return Frame{}, fmt.Errorf("failed to decode CBOR: %w", err)
	}
	if f.Kind < KindRecord || f.Kind > KindEvent {
		return Frame{}, fmt.Errorf("unknown frame kind %d", f.Kind)
	}
	return f, nil
}
