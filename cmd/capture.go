// SPDX-License-Identifier: LGPL-2.1-or-later
// Copyright (c) 2025 SpaceWire Light contributors

package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/freecores/spacewire-light/pkg/spacewire"
)

var captureCmd = &cobra.Command{
	Use:   "capture",
	Short: "Work with link event capture files",
}

var captureDumpCmd = &cobra.Command{
	Use:   "dump <file>",
	Short: "Print a CBOR capture file as text",
	Long: `Decode a capture file written by 'simulate --capture' and print one
event per line: characters in both directions, link state transitions and
protocol errors, each stamped with the system tick it occurred on.`,
	Args: cobra.ExactArgs(1),
	RunE: runCaptureDump,
}

func init() {
	captureCmd.AddCommand(captureDumpCmd)
	rootCmd.AddCommand(captureCmd)
}

func runCaptureDump(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open capture file: %w", err)
	}
	defer f.Close()

	reader := spacewire.NewCaptureReader(f)
	count := 0
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		fmt.Println(rec)
		count++
	}
	fmt.Printf("%d events\n", count)
	return nil
}
