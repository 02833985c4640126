// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package telemetry

import (
	"bytes"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// DecodeError reports a raw line that is not valid UTF-8
type DecodeError struct {
	Offset int // byte offset of the first invalid sequence
	Length int
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("invalid utf-8 at byte %d of %d", e.Offset, e.Length)
}

// Decode strips the line terminator ("\n" or "\r\n") and validates the
// remaining bytes as UTF-8.
func Decode(raw []byte) (string, error) {
	raw = bytes.TrimSuffix(raw, []byte{'\n'})
	raw = bytes.TrimSuffix(raw, []byte{'\r'})

	if !utf8.Valid(raw) {
		offset := 0
		for offset < len(raw) {
			r, size := utf8.DecodeRune(raw[offset:])
			if r == utf8.RuneError && size <= 1 {
				break
			}
			offset += size
		}
		return "", &DecodeError{Offset: offset, Length: len(raw)}
	}

	return string(raw), nil
}

// Framer turns decoded lines into records
type Framer struct {
	filter    string
	delimiter string
	now       func() time.Time
}

// NewFramer creates a framer for lines starting with filter and split on delimiter
func NewFramer(filter, delimiter string) (*Framer, error) {
	if len(filter) != 1 {
		return nil, fmt.Errorf("filter must be exactly one byte, got %q", filter)
	}
	if delimiter == "" {
		return nil, fmt.Errorf("delimiter must not be empty")
	}
	return &Framer{
		filter:    filter,
		delimiter: delimiter,
		now:       time.Now,
	}, nil
}

// Filter returns the filter character
func (f *Framer) Filter() string {
	return f.filter
}

// Delimiter returns the field delimiter
func (f *Framer) Delimiter() string {
	return f.delimiter
}

// Frame applies the line protocol:
//   - lines not starting with the filter are ignored
//   - exactly one leading filter character is removed
//   - an empty remainder is rejected; the stripped terminator counts
//     toward the length, so "$5\n" is a one-field record
//   - the remainder is split on the delimiter
//
// A false return is a framing reject, not an error.
func (f *Framer) Frame(line string) (Record, bool) {
	if !strings.HasPrefix(line, f.filter) {
		return Record{}, false
	}

	rest := line[len(f.filter):]
	if rest == "" {
		return Record{}, false
	}

	return Record{
		Fields: strings.Split(rest, f.delimiter),
		Raw:    rest,
		Time:   f.now(),
		Source: SourceDevice,
	}, true
}
