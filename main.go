// SPDX-License-Identifier: LGPL-2.1-or-later
// Copyright (c) 2025 SpaceWire Light contributors
//
// spwlight - SpaceWire link-layer model
//
// A software model of the SpaceWire (ECSS-E-ST-50-12C) link layer with a
// CLI for simulating, monitoring and bridging link ends.

package main

import (
	"os"

	"github.com/freecores/spacewire-light/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
