// SPDX-License-Identifier: LGPL-2.1-or-later
// Copyright (c) 2025 SpaceWire Light contributors

package spacewire

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LinkConfig describes one link end. The zero value is not usable; start
// from DefaultConfig.
type LinkConfig struct {
	// SysClockHz is the system/processing clock rate the tick deadlines are
	// derived from.
	SysClockHz int `yaml:"sys_clock_hz"`
	// SampleClockHz is the receiver sampling clock rate. It must exceed the
	// incoming bit rate; the standard recovery front-end needs
	// SampleClockHz >= SysClockHz.
	SampleClockHz int `yaml:"sample_clock_hz"`
	// ChunkWidth is the number of recovered bits handed to the system domain
	// per processing tick (1-4).
	ChunkWidth int `yaml:"chunk_width"`
	// Divisor scales the transmit bit rate: one bit per Divisor+1 system
	// ticks.
	Divisor int `yaml:"divisor"`
	// AutoStart starts the link on the first received NULL instead of an
	// explicit start request.
	AutoStart bool `yaml:"autostart"`
	// QueueDepth is the application token queue capacity in each direction.
	QueueDepth int `yaml:"queue_depth"`

	// Timing overrides in nanoseconds; zero selects the ECSS values.
	ResetTimeNs      int `yaml:"reset_time_ns"`
	WaitTimeNs       int `yaml:"wait_time_ns"`
	DisconnectTimeNs int `yaml:"disconnect_time_ns"`
}

// DefaultConfig returns the configuration matching the reference core's
// generics: 10 MHz system clock, double-rate sampling clock, one-bit chunks.
func DefaultConfig() LinkConfig {
	return LinkConfig{
		SysClockHz:    DefaultSysClockHz,
		SampleClockHz: DefaultSampleClockHz,
		ChunkWidth:    1,
		QueueDepth:    64,
	}
}

// Validate checks the configuration for usable values.
func (c *LinkConfig) Validate() error {
	if c.SysClockHz <= 0 {
		return fmt.Errorf("sys_clock_hz must be positive, got %d", c.SysClockHz)
	}
	if c.SampleClockHz < c.SysClockHz {
		return fmt.Errorf("sample_clock_hz %d below sys_clock_hz %d", c.SampleClockHz, c.SysClockHz)
	}
	if c.ChunkWidth < MinChunkWidth || c.ChunkWidth > MaxChunkWidth {
		return fmt.Errorf("chunk_width must be %d-%d, got %d", MinChunkWidth, MaxChunkWidth, c.ChunkWidth)
	}
	if c.Divisor < 0 {
		return fmt.Errorf("divisor must not be negative, got %d", c.Divisor)
	}
	if c.QueueDepth < FCTGrant {
		return fmt.Errorf("queue_depth must be at least %d, got %d", FCTGrant, c.QueueDepth)
	}
	return nil
}

// timing converts the configured (or default ECSS) deadlines to ticks.
func (c *LinkConfig) timing() linkTiming {
	reset, wait, disc := c.ResetTimeNs, c.WaitTimeNs, c.DisconnectTimeNs
	if reset == 0 {
		reset = resetTimeNs
	}
	if wait == 0 {
		wait = waitTimeNs
	}
	if disc == 0 {
		disc = disconnectNs
	}
	return linkTiming{
		resetTicks:      ticksFromNs(c.SysClockHz, reset),
		waitTicks:       ticksFromNs(c.SysClockHz, wait),
		disconnectTicks: ticksFromNs(c.SysClockHz, disc),
	}
}

// LoadConfig reads a LinkConfig from a YAML file, filling unset fields from
// DefaultConfig.
func LoadConfig(path string) (LinkConfig, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}
