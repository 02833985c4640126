// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var sendNoNewline bool

var sendCmd = &cobra.Command{
	Use:   "send <text>...",
	Short: "Write one line of text to the device",
	Long: `Open the serial port, write the arguments joined by spaces followed by a
newline, and close the port again.

Examples:
  aerostat send --port /dev/ttyUSB0 'RATE;5'
  aerostat send --port /dev/ttyUSB0 -n RESET`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSend,
}

func init() {
	rootCmd.AddCommand(sendCmd)
	sendCmd.Flags().BoolVarP(&sendNoNewline, "no-newline", "n", false, "Do not append a newline")
}

func runSend(cmd *cobra.Command, args []string) error {
	if err := requirePort(); err != nil {
		return err
	}

	sess, err := newSession()
	if err != nil {
		return err
	}
	defer sess.Close()

	if err := sess.Connect(portName, baudRate); err != nil {
		return err
	}

	text := strings.Join(args, " ")
	if !sendNoNewline {
		text += "\n"
	}
	if err := sess.Send(text); err != nil {
		return err
	}

	fmt.Printf("Sent %d bytes to %s\n", len(text), portName)
	return sess.Disconnect()
}
