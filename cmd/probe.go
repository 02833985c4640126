// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var probeTimeout int

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Test a device by waiting for one framed record",
	Long: `Wait for a line starting with the filter character on the serial port
until timeout. Other lines are counted and skipped.

Exit codes:
  0 - Record received before timeout
  1 - Timeout reached without receiving a record
  2 - Connection error

Useful for scripting checks of a freshly flashed device.`,
	RunE: runProbe,
}

func init() {
	rootCmd.AddCommand(probeCmd)
	probeCmd.Flags().IntVar(&probeTimeout, "timeout", 10, "Timeout in seconds to wait for a record")
}

func runProbe(cmd *cobra.Command, args []string) error {
	if err := requirePort(); err != nil {
		return err
	}

	sess, err := newSession()
	if err != nil {
		return err
	}
	defer sess.Close()

	if err := sess.Connect(portName, baudRate); err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}

	fmt.Printf("Aerostat - Probe\n")
	fmt.Printf("Connection: Serial: %s @ %d baud\n", portName, baudRate)
	fmt.Printf("Timeout: %d seconds\n", probeTimeout)
	fmt.Printf("Waiting for a line starting with %q...\n\n", cfg.Connection.FilterCharacter)

	// Wait for a record, the device going away, or timeout
	deadline := time.After(time.Duration(probeTimeout) * time.Second)
	for {
		select {
		case rec := <-sess.Records():
			if skipped := sess.Stats().Rejected; skipped > 0 {
				fmt.Printf("(skipped %d lines without filter)\n", skipped)
			}
			fmt.Printf("SUCCESS: Received record\n")
			fmt.Printf("  Fields: %d\n", rec.Len())
			fmt.Printf("  Values: %s\n", strings.Join(rec.Fields, " | "))
			sess.Close()
			os.Exit(0)

		case ev := <-sess.Events():
			if ev.Kind.IsError() {
				fmt.Fprintf(os.Stderr, "%s: %s\n", ev.Kind, ev.Message)
			}

		case <-deadline:
			fmt.Fprintf(os.Stderr, "TIMEOUT: No record received within %d seconds\n", probeTimeout)
			sess.Close()
			os.Exit(1)
		}
	}
}
