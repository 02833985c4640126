// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/aerostat/pkg/session"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Read telemetry from a serial device",
	Long: `Connect to a serial device and show its telemetry live.

Every received line is written to the black box file. Lines starting with
the filter character are split into fields and shown in the record panel;
with --record they are also appended to the session CSV.

If the device disappears the monitor keeps retrying until it comes back.
With connection.alarm enabled each failed attempt raises the alarm (a
terminal bell in plain mode, a badge in the TUI).

Keys (TUI):
  q        quit
  r        toggle CSV recording
  tab      focus the send box, enter sends, esc leaves it`,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
	monitorCmd.Flags().BoolVar(&shellRecord, "record", false, "Start with CSV recording on")
	monitorCmd.Flags().BoolVar(&shellRelay, "relay", false, "Serve records on the websocket relay")
	monitorCmd.Flags().BoolVar(&shellPlain, "plain", false, "Print lines instead of running the TUI")
}

func runMonitor(cmd *cobra.Command, args []string) error {
	if err := requirePort(); err != nil {
		return err
	}

	connInfo := fmt.Sprintf("Serial: %s @ %d baud", portName, baudRate)
	return runShell(func(sess *session.Session) error {
		return sess.Connect(portName, baudRate)
	}, connInfo)
}
