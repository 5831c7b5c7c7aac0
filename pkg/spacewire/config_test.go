// SPDX-License-Identifier: LGPL-2.1-or-later
// Copyright (c) 2025 SpaceWire Light contributors

package spacewire

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, DefaultSysClockHz, cfg.SysClockHz)
	assert.Equal(t, DefaultSampleClockHz, cfg.SampleClockHz)
}

func TestConfigValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*LinkConfig)
	}{
		{"zero-sys-clock", func(c *LinkConfig) { c.SysClockHz = 0 }},
		{"sample-below-sys", func(c *LinkConfig) { c.SampleClockHz = c.SysClockHz - 1 }},
		{"chunk-too-small", func(c *LinkConfig) { c.ChunkWidth = 0 }},
		{"chunk-too-big", func(c *LinkConfig) { c.ChunkWidth = MaxChunkWidth + 1 }},
		{"negative-divisor", func(c *LinkConfig) { c.Divisor = -1 }},
		{"queue-below-grant", func(c *LinkConfig) { c.QueueDepth = FCTGrant - 1 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestConfigTimingDefaults(t *testing.T) {
	cfg := DefaultConfig()
	tm := cfg.timing()
	// ECSS deadlines at 10 MHz: 6.4 us, 12.8 us, 850 ns.
	assert.Equal(t, 64, tm.resetTicks)
	assert.Equal(t, 128, tm.waitTicks)
	assert.Equal(t, 9, tm.disconnectTicks)
}

func TestConfigTimingOverrides(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ResetTimeNs = 1000
	cfg.WaitTimeNs = 2000
	cfg.DisconnectTimeNs = 100
	tm := cfg.timing()
	assert.Equal(t, 10, tm.resetTicks)
	assert.Equal(t, 20, tm.waitTicks)
	assert.Equal(t, 1, tm.disconnectTicks)
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "link.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"sys_clock_hz: 20000000\nchunk_width: 2\nautostart: true\n"), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 20_000_000, cfg.SysClockHz)
	assert.Equal(t, 2, cfg.ChunkWidth)
	assert.True(t, cfg.AutoStart)
	// Unset fields keep their defaults.
	assert.Equal(t, DefaultSampleClockHz, cfg.SampleClockHz)
	assert.Equal(t, 64, cfg.QueueDepth)
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("chunk_width: [oops"), 0o644))
	_, err = LoadConfig(bad)
	assert.Error(t, err)

	invalid := filepath.Join(t.TempDir(), "invalid.yaml")
	require.NoError(t, os.WriteFile(invalid, []byte("chunk_width: 9\n"), 0o644))
	_, err = LoadConfig(invalid)
	assert.Error(t, err)
}
