// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Thermoquad/aerostat/pkg/config"
	"github.com/Thermoquad/aerostat/pkg/logging"
)

var (
	// Serial connection flags
	portName string
	baudRate int

	configPath string
	logLevel   string

	// Loaded before any subcommand runs
	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "aerostat",
	Short: "Serial telemetry ground station",
	Long: `Aerostat - a ground station for line-oriented serial telemetry.

Reads ASCII lines from a serial device, keeps a black box of everything
received, frames lines that start with the filter character into records
and shows them live. A dummy mode generates plausible flight data without
hardware.

Connection:
  Serial: --port /dev/ttyUSB0 [--baud 9600]

Configuration is read from --config, or aerostat.yaml in the working
directory or $HOME/.config/aerostat. Any key can be overridden with an
AEROSTAT_ environment variable, e.g. AEROSTAT_CONNECTION_TIMEOUT=2s.

The relay password is read from AEROSTAT_RELAY_PASSWORD. There is no
--password flag to avoid leaking credentials in shell history.`,
	Version:       "1.0.0",
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if logLevel != "" {
			loaded.Logging.Level = logLevel
		}

		l, err := logging.New(loaded.Logging)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		cfg = loaded
		logger = l
		if baudRate == 0 {
			baudRate = cfg.Connection.DefaultBaud
		}

		logger.Debug("Configuration loaded",
			zap.String("command", cmd.Name()),
			zap.String("config", configPath),
		)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.Close(logger)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "Serial port device")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", 0, "Baud rate (default from config)")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override logging.level (debug, info, warn, error)")
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// requirePort exits the command early when --port was not given
func requirePort() error {
	if portName == "" {
		return fmt.Errorf("--port must be specified (see 'aerostat ports')")
	}
	return nil
}
