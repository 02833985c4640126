// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/aerostat/pkg/session"
)

var dummyInterval time.Duration

var dummyCmd = &cobra.Command{
	Use:   "dummy",
	Short: "Generate synthetic flight data",
	Long: `Run without hardware: a generator produces one record per interval with
temperature, humidity, pressure, status code, latitude, longitude, speed and
altitude. Altitude and coordinates only ever increase and the temperature
only ever drops, like a balloon climbing.

Keys (TUI):
  q        quit
  r        toggle CSV recording
  + / -    double / halve the interval`,
	RunE: runDummy,
}

func init() {
	rootCmd.AddCommand(dummyCmd)
	dummyCmd.Flags().DurationVar(&dummyInterval, "interval", 0, "Tick interval (default from config)")
	dummyCmd.Flags().BoolVar(&shellRecord, "record", false, "Start with CSV recording on")
	dummyCmd.Flags().BoolVar(&shellRelay, "relay", false, "Serve records on the websocket relay")
	dummyCmd.Flags().BoolVar(&shellPlain, "plain", false, "Print lines instead of running the TUI")
}

func runDummy(cmd *cobra.Command, args []string) error {
	interval := cfg.Dummy.UpdateInterval
	if dummyInterval > 0 {
		interval = dummyInterval
	}

	return runShell(func(sess *session.Session) error {
		if err := sess.SetDummyInterval(interval); err != nil {
			return err
		}
		return sess.StartDummy()
	}, fmt.Sprintf("Dummy @ %s", interval))
}
