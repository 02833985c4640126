// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Thermoquad/aerostat/pkg/relay"
)

const relayPasswordEnv = "AEROSTAT_RELAY_PASSWORD"

var (
	tapURL         string
	tapUsername    string
	tapNoSSLVerify bool
	tapDuration    int
)

var relayTapCmd = &cobra.Command{
	Use:   "relay_tap",
	Short: "Print frames from a running relay",
	Long: `Connect to an aerostat relay and print every frame it sends. Useful for
checking a remote ground station or debugging relay stability.

With --username the password is read from AEROSTAT_RELAY_PASSWORD, or
prompted for if that is not set.

Exit codes:
  0 - Duration elapsed with the connection up
  1 - Connection lost before the duration elapsed
  2 - Connection error`,
	RunE: runRelayTap,
}

func init() {
	rootCmd.AddCommand(relayTapCmd)
	relayTapCmd.Flags().StringVarP(&tapURL, "url", "u", "", "Relay URL (ws:// or wss://)")
	relayTapCmd.Flags().StringVar(&tapUsername, "username", "", "Username for HTTP Basic auth")
	relayTapCmd.Flags().BoolVar(&tapNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")
	relayTapCmd.Flags().IntVar(&tapDuration, "duration", 30, "Duration in seconds, 0 runs until interrupted")
}

// GetPassword retrieves the relay password from environment or prompts user
func GetPassword() (string, error) {
	if pw := os.Getenv(relayPasswordEnv); pw != "" {
		return pw, nil
	}

	fmt.Fprint(os.Stderr, "Password: ")

	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		// Fallback to regular input if terminal functions fail
		reader := bufio.NewReader(os.Stdin)
		password, err := reader.ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Fprintln(os.Stderr)
		return strings.TrimSpace(password), nil
	}

	fmt.Fprintln(os.Stderr)
	return string(passwordBytes), nil
}

func runRelayTap(cmd *cobra.Command, args []string) error {
	if tapURL == "" {
		tapURL = fmt.Sprintf("ws://%s%s", cfg.Relay.Listen, cfg.Relay.Path)
	}

	password := ""
	if tapUsername != "" {
		var err error
		password, err = GetPassword()
		if err != nil {
			return err
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	tap, err := relay.Dial(ctx, tapURL, tapUsername, password, tapNoSSLVerify)
	cancel()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer tap.Close()

	fmt.Printf("Aerostat - Relay Tap\n")
	fmt.Printf("Connection: %s\n", tapURL)
	if tapDuration > 0 {
		fmt.Printf("Duration: %d seconds\n\n", tapDuration)
	}

	frameChan := make(chan relay.Frame, 100)
	errChan := make(chan error, 1)

	go func() {
		for {
			f, err := tap.Next()
			if err != nil {
				errChan <- err
				return
			}
			frameChan <- f
		}
	}()

	var deadline <-chan time.Time
	if tapDuration > 0 {
		deadline = time.After(time.Duration(tapDuration) * time.Second)
	}
	frames := 0

	for {
		select {
		case f := <-frameChan:
			frames++
			printFrame(f)

		case err := <-errChan:
			if errors.Is(err, relay.ErrTapClosed) {
				fmt.Printf("\nRelay closed the connection\n")
			} else {
				fmt.Printf("\nConnection error: %v\n", err)
			}
			fmt.Printf("Frames received: %d\n", frames)
			fmt.Printf("Result: FAILED (connection lost)\n")
			os.Exit(1)

		case <-deadline:
			fmt.Printf("\n--- Tap Results ---\n")
			fmt.Printf("Duration: %d seconds\n", tapDuration)
			fmt.Printf("Frames received: %d\n", frames)
			fmt.Printf("Result: PASSED (connection stable)\n")
			return nil
		}
	}
}

func printFrame(f relay.Frame) {
	ts := f.Timestamp().Format("15:04:05.000")
	switch f.Kind {
	case relay.KindRecord:
		fmt.Printf("[%s] %-6s %s\n", ts, f.Source, strings.Join(f.Fields, " | "))
	case relay.KindText:
		fmt.Printf("[%s] %s\n", ts, f.Text)
	case relay.KindEvent:
		fmt.Printf("[%s] %s: %s\n", ts, f.Event, f.Text)
	}
}
