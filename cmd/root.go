// SPDX-License-Identifier: LGPL-2.1-or-later
// Copyright (c) 2025 SpaceWire Light contributors

package cmd

import (
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/freecores/spacewire-light/pkg/spacewire"
)

var (
	// Link configuration flags
	configPath string
	autoStart  bool
	divisor    int
	verbose    bool

	// Serial bridge flags
	portName string
	baudRate int

	// WebSocket bridge flags
	wsURL         string
	wsListen      string
	wsUsername    string
	wsNoSSLVerify bool
)

var rootCmd = &cobra.Command{
	Use:   "spwlight",
	Short: "SpaceWire link-layer model",
	Long: `spwlight - a software model of the SpaceWire link layer (ECSS-E-ST-50-12C).

Models the receiver bit-recovery front-end, character codec and link state
machine of the SpaceWire Light core, with tooling to simulate two link ends,
watch a link come up, and bridge a link end to a remote peer.

Connection modes for the bridge:
  Serial:    --port /dev/ttyUSB0 [--baud 115200]
  WebSocket: --url ws://host/path [--username user], or --listen :8460

For WebSocket authentication, the password is read from the SPW_PASSWORD
environment variable, or prompted interactively if not set. The --password
flag is intentionally not provided to avoid leaking credentials in shell
history.`,
	Version: "1.0.0",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if verbose {
			log.SetLevel(log.DebugLevel)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Link configuration YAML file")
	rootCmd.PersistentFlags().BoolVar(&autoStart, "autostart", false, "Start the link on the first received NULL")
	rootCmd.PersistentFlags().IntVar(&divisor, "divisor", 0, "Transmit clock divisor")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	// Bridge connection flags
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "Serial port device")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", 115200, "Baud rate (serial only)")
	rootCmd.PersistentFlags().StringVarP(&wsURL, "url", "u", "", "WebSocket URL (ws:// or wss://)")
	rootCmd.PersistentFlags().StringVar(&wsListen, "listen", "", "WebSocket listen address (bridge only)")
	rootCmd.PersistentFlags().StringVar(&wsUsername, "username", "", "Username for HTTP Basic auth")
	rootCmd.PersistentFlags().BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")
}

// linkConfig builds the link configuration from the config file and flags.
func linkConfig() (spacewire.LinkConfig, error) {
	cfg := spacewire.DefaultConfig()
	if configPath != "" {
		var err error
		cfg, err = spacewire.LoadConfig(configPath)
		if err != nil {
			return cfg, err
		}
	}
	if autoStart {
		cfg.AutoStart = true
	}
	if divisor > 0 {
		cfg.Divisor = divisor
	}
	return cfg, cfg.Validate()
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
