// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List serial ports",
	Long: `List the serial ports present on this machine. USB adapters show their
vendor and product ids.

Exit codes:
  0 - At least one port found
  1 - No ports found or enumeration failed`,
	RunE: runPorts,
}

func init() {
	rootCmd.AddCommand(portsCmd)
}

func runPorts(cmd *cobra.Command, args []string) error {
	sess, err := newSession()
	if err != nil {
		return err
	}
	defer sess.Close()

	ports := sess.Ports()
	if len(ports) == 0 {
		fmt.Fprintln(os.Stderr, "No serial ports found")
		if ev, ok := <-sess.Events(); ok && ev.Err != nil {
			fmt.Fprintf(os.Stderr, "  %v\n", ev.Err)
		}
		os.Exit(1)
	}

	for _, p := range ports {
		fmt.Println(p.String())
	}
	return nil
}
