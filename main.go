// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// Aerostat - serial telemetry ground station
//
// Reads line-oriented telemetry from a serial device (or generates it),
// records a black box of everything received and shows framed records live.

package main

import (
	"os"

	"github.com/Thermoquad/aerostat/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
