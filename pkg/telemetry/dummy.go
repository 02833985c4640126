// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package telemetry

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Dummy field order
const (
	DummyTemperature = iota
	DummyHumidity
	DummyPressure
	DummyCode
	DummyLatitude
	DummyLongitude
	DummySpeed
	DummyAltitude

	DummyFieldCount
)

// Dummy generator ranges
const (
	humidityMax     = 100.0
	pressureMin     = 800.0
	pressureMax     = 1200.0
	codeMax         = 5 // inclusive
	coordStepMin    = 0.000001
	coordStepMax    = 0.00001
	speedMax        = 200.0
	altitudeStepMax = 70.0
	// MaxTemperatureStep bounds the per-tick temperature drop
	MaxTemperatureStep = 2.0
)

// Rand is the randomness a tick consumes. *math/rand/v2.Rand satisfies it.
type Rand interface {
	Float64() float64
	IntN(n int) int
}

// DummyState carries the correlated values from one tick to the next
type DummyState struct {
	Latitude    float64
	Longitude   float64
	Temperature float64
	Altitude    float64
}

// InitialDummyState is the starting point of every dummy session
func InitialDummyState() DummyState {
	return DummyState{
		Latitude:    42.842835,
		Longitude:   -2.668065,
		Temperature: 15,
		Altitude:    0,
	}
}

// Tick produces one synthetic record and the state for the next tick.
// Altitude never decreases, coordinates strictly increase and temperature
// drops by less than MaxTemperatureStep.
func Tick(prev DummyState, rng Rand) (Record, DummyState) {
	humidity := uniform(rng, 0, humidityMax)
	pressure := uniform(rng, pressureMin, pressureMax)
	code := rng.IntN(codeMax + 1)

	next := DummyState{
		Latitude:    prev.Latitude + uniform(rng, coordStepMin, coordStepMax),
		Longitude:   prev.Longitude + uniform(rng, coordStepMin, coordStepMax),
		Altitude:    prev.Altitude + uniform(rng, 0, altitudeStepMax),
		Temperature: prev.Temperature - uniform(rng, 0, MaxTemperatureStep),
	}
	speed := uniform(rng, 0, speedMax)

	values := make([]float64, DummyFieldCount)
	fields := make([]string, DummyFieldCount)

	setRounded := func(i int, v float64) {
		d := decimal.NewFromFloat(v).Round(2)
		values[i] = d.InexactFloat64()
		fields[i] = d.String()
	}
	setExact := func(i int, v float64) {
		values[i] = v
		fields[i] = strconv.FormatFloat(v, 'f', -1, 64)
	}

	setRounded(DummyTemperature, next.Temperature)
	setRounded(DummyHumidity, humidity)
	setRounded(DummyPressure, pressure)
	setRounded(DummyCode, float64(code))
	setExact(DummyLatitude, next.Latitude)
	setExact(DummyLongitude, next.Longitude)
	setRounded(DummySpeed, speed)
	setRounded(DummyAltitude, next.Altitude)

	return Record{
		Fields: fields,
		Raw:    "[" + strings.Join(fields, " ") + "]",
		Time:   time.Now(),
		Source: SourceDummy,
		Values: values,
	}, next
}

func uniform(rng Rand, lo, hi float64) float64 {
	return lo + rng.Float64()*(hi-lo)
}
