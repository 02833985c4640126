// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package telemetry

import (
	"math/rand/v2"
	"reflect"
	"strconv"
	"testing"
)

// fixedRand returns the same draw every time
type fixedRand struct {
	f float64
	n int
}

func (r fixedRand) Float64() float64 { return r.f }
func (r fixedRand) IntN(n int) int   { return r.n % n }

func TestInitialDummyState(t *testing.T) {
	s := InitialDummyState()
	if s.Latitude != 42.842835 || s.Longitude != -2.668065 {
		t.Errorf("unexpected start position %v,%v", s.Latitude, s.Longitude)
	}
	if s.Temperature != 15 || s.Altitude != 0 {
		t.Errorf("unexpected start temperature/altitude %v/%v", s.Temperature, s.Altitude)
	}
}

func TestTick_FixedSource(t *testing.T) {
	rec, next := Tick(InitialDummyState(), fixedRand{f: 0.5, n: 3})

	want := []string{
		"14",     // 15 - 1
		"50",     // humidity
		"1000",   // pressure
		"3",      // code
		"", "",   // coordinates checked below
		"100",    // speed
		"35",     // altitude
	}

	if len(rec.Fields) != DummyFieldCount {
		t.Fatalf("got %d fields, want %d", len(rec.Fields), DummyFieldCount)
	}
	for i, w := range want {
		if w == "" {
			continue
		}
		if rec.Fields[i] != w {
			t.Errorf("field %d = %q, want %q", i, rec.Fields[i], w)
		}
	}

	wantStep := uniform(fixedRand{f: 0.5}, coordStepMin, coordStepMax)
	if next.Latitude != 42.842835+wantStep {
		t.Errorf("latitude = %v", next.Latitude)
	}
	if next.Longitude != -2.668065+wantStep {
		t.Errorf("longitude = %v", next.Longitude)
	}
	lat, err := strconv.ParseFloat(rec.Fields[DummyLatitude], 64)
	if err != nil || lat != next.Latitude {
		t.Errorf("latitude field %q does not match state %v", rec.Fields[DummyLatitude], next.Latitude)
	}

	if rec.Source != SourceDummy {
		t.Errorf("Source = %v, want dummy", rec.Source)
	}
	if len(rec.Values) != DummyFieldCount {
		t.Errorf("Values has %d entries", len(rec.Values))
	}
	if rec.Raw == "" || rec.Raw[0] != '[' {
		t.Errorf("Raw = %q, want bracketed vector", rec.Raw)
	}
}

func TestTick_Deterministic(t *testing.T) {
	run := func() []Record {
		rng := rand.New(rand.NewPCG(42, 7))
		state := InitialDummyState()
		var out []Record
		for i := 0; i < 20; i++ {
			var rec Record
			rec, state = Tick(state, rng)
			out = append(out, rec)
		}
		return out
	}

	a, b := run(), run()
	for i := range a {
		if !reflect.DeepEqual(a[i].Fields, b[i].Fields) {
			t.Fatalf("tick %d differs: %v vs %v", i, a[i].Fields, b[i].Fields)
		}
	}
}

func TestFuzzTick_Monotonic(t *testing.T) {
	seed := getFuzzSeed(t)
	rng := rand.New(rand.NewPCG(seed, seed+1))
	rounds := getFuzzRounds()

	state := InitialDummyState()
	for i := 0; i < rounds; i++ {
		rec, next := Tick(state, rng)

		if next.Altitude < state.Altitude {
			t.Fatalf("tick %d: altitude decreased %v -> %v", i, state.Altitude, next.Altitude)
		}
		if next.Latitude <= state.Latitude || next.Longitude <= state.Longitude {
			t.Fatalf("tick %d: coordinates did not increase", i)
		}
		step := state.Temperature - next.Temperature
		if step < 0 || step >= MaxTemperatureStep {
			t.Fatalf("tick %d: temperature step %v out of [0,%v)", i, step, MaxTemperatureStep)
		}

		v := rec.Values
		if v[DummyHumidity] < 0 || v[DummyHumidity] > humidityMax {
			t.Fatalf("tick %d: humidity %v", i, v[DummyHumidity])
		}
		if v[DummyPressure] < pressureMin || v[DummyPressure] > pressureMax {
			t.Fatalf("tick %d: pressure %v", i, v[DummyPressure])
		}
		if c := v[DummyCode]; c < 0 || c > codeMax || c != float64(int(c)) {
			t.Fatalf("tick %d: code %v", i, c)
		}
		if v[DummySpeed] < 0 || v[DummySpeed] > speedMax {
			t.Fatalf("tick %d: speed %v", i, v[DummySpeed])
		}

		state = next
	}
}
