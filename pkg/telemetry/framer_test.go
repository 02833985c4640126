// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package telemetry

import (
	"errors"
	"math/rand/v2"
	"os"
	"reflect"
	"strconv"
	"strings"
	"testing"
	"time"
)

// getFuzzRounds returns the number of fuzz rounds from FUZZ_ROUNDS env var, default 1000
func getFuzzRounds() int {
	if envRounds := os.Getenv("FUZZ_ROUNDS"); envRounds != "" {
		if n, err := strconv.Atoi(envRounds); err == nil && n > 0 {
			return n
		}
	}
	return 1000
}

// getFuzzSeed returns the seed from FUZZ_SEED env var, or generates one from current time
func getFuzzSeed(t *testing.T) uint64 {
	seed := uint64(time.Now().UnixNano())
	if envSeed := os.Getenv("FUZZ_SEED"); envSeed != "" {
		if s, err := strconv.ParseUint(envSeed, 10, 64); err == nil {
			seed = s
		}
	}
	t.Logf("Seed: %d (reproduce with FUZZ_SEED=%d)", seed, seed)
	return seed
}

func mustFramer(t *testing.T, filter, delimiter string) *Framer {
	t.Helper()
	f, err := NewFramer(filter, delimiter)
	if err != nil {
		t.Fatalf("NewFramer(%q, %q): %v", filter, delimiter, err)
	}
	return f
}

func TestNewFramer_Validation(t *testing.T) {
	tests := []struct {
		name      string
		filter    string
		delimiter string
		wantErr   bool
	}{
		{"defaults", "$", ";", false},
		{"comma", "#", ",", false},
		{"multi-char delimiter", "$", "::", false},
		{"empty filter", "", ";", true},
		{"long filter", "$$", ";", true},
		{"empty delimiter", "$", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewFramer(tt.filter, tt.delimiter)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewFramer err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestFrame(t *testing.T) {
	tests := []struct {
		name   string
		line   string
		want   []string
		wantOK bool
	}{
		{"four fields", "$23.5;55.0;1013.2;1", []string{"23.5", "55.0", "1013.2", "1"}, true},
		{"noise", "noise", nil, false},
		{"filter only", "$", nil, false},
		{"single char payload", "$x", []string{"x"}, true},
		{"two chars", "$ab", []string{"ab"}, true},
		{"filter not at start", "a$1;2", nil, false},
		{"only one prefix stripped", "$$1;2", []string{"$1", "2"}, true},
		{"empty fields kept", "$;;", []string{"", "", ""}, true},
		{"trailing delimiter", "$1;2;", []string{"1", "2", ""}, true},
		{"no delimiter", "$hello", []string{"hello"}, true},
		{"empty line", "", nil, false},
	}

	f := mustFramer(t, "$", ";")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, ok := f.Frame(tt.line)
			if ok != tt.wantOK {
				t.Fatalf("Frame(%q) ok = %v, want %v", tt.line, ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if !reflect.DeepEqual(rec.Fields, tt.want) {
				t.Errorf("Frame(%q) fields = %q, want %q", tt.line, rec.Fields, tt.want)
			}
			if rec.Raw != strings.TrimPrefix(tt.line, "$") {
				t.Errorf("Raw = %q, want line without prefix", rec.Raw)
			}
			if rec.Source != SourceDevice {
				t.Errorf("Source = %v, want device", rec.Source)
			}
		})
	}
}

func TestFrame_MultiByteRemainder(t *testing.T) {
	f := mustFramer(t, "$", ";")

	if rec, ok := f.Frame("$é"); !ok || rec.Fields[0] != "é" {
		t.Errorf("single rune remainder = %v %v, want one field", rec.Fields, ok)
	}
	if rec, ok := f.Frame("$é;ü"); !ok || len(rec.Fields) != 2 {
		t.Errorf("expected two fields, got %v %v", rec.Fields, ok)
	}
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name       string
		raw        []byte
		want       string
		wantErr    bool
		wantOffset int
	}{
		{"lf", []byte("$1;2\n"), "$1;2", false, 0},
		{"crlf", []byte("$1;2\r\n"), "$1;2", false, 0},
		{"no terminator", []byte("$1;2"), "$1;2", false, 0},
		{"only one terminator removed", []byte("a\n\n"), "a\n", false, 0},
		{"empty", []byte{}, "", false, 0},
		{"utf8", []byte("$é\n"), "$é", false, 0},
		{"invalid byte", []byte{'$', '1', 0xff, '\n'}, "", true, 2},
		{"truncated sequence", []byte{0xc3}, "", true, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode(tt.raw)
			if tt.wantErr {
				var de *DecodeError
				if !errors.As(err, &de) {
					t.Fatalf("expected *DecodeError, got %v", err)
				}
				if de.Offset != tt.wantOffset {
					t.Errorf("Offset = %d, want %d", de.Offset, tt.wantOffset)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Decode = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFuzzFrame_FieldCount(t *testing.T) {
	seed := getFuzzSeed(t)
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	rounds := getFuzzRounds()

	const alphabet = "0123456789.-abcXYZ ;$,"
	f := mustFramer(t, "$", ";")

	for i := 0; i < rounds; i++ {
		n := rng.IntN(40)
		var b strings.Builder
		for j := 0; j < n; j++ {
			b.WriteByte(alphabet[rng.IntN(len(alphabet))])
		}
		body := b.String()

		// without the filter prefix nothing is framed
		if !strings.HasPrefix(body, "$") {
			if _, ok := f.Frame(body); ok {
				t.Fatalf("round %d: %q framed without filter prefix", i, body)
			}
		}

		line := "$" + body
		rec, ok := f.Frame(line)
		if body == "" {
			if ok {
				t.Fatalf("round %d: %q should be rejected", i, line)
			}
			continue
		}
		if !ok {
			t.Fatalf("round %d: %q should be framed", i, line)
		}
		want := strings.Count(body, ";") + 1
		if len(rec.Fields) != want {
			t.Fatalf("round %d: %q has %d fields, want %d", i, line, len(rec.Fields), want)
		}
		if strings.Join(rec.Fields, ";") != body {
			t.Fatalf("round %d: fields do not rejoin to %q", i, body)
		}
	}
}
