// SPDX-License-Identifier: LGPL-2.1-or-later
// Copyright (c) 2025 SpaceWire Light contributors

package spacewire

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCaptureRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewCaptureWriter(&buf)

	w.RecordState(10, StateStarted)
	w.RecordChar(12, DirRx, Character{Kind: KindNull})
	w.RecordChar(20, DirTx, Character{Kind: KindData, Byte: 0x5A})
	w.RecordError(33, ErrParity)

	r := NewCaptureReader(&buf)
	want := []CaptureRecord{
		{Tick: 10, Type: RecordState, Kind: int(StateStarted)},
		{Tick: 12, Type: RecordChar, Dir: uint8(DirRx), Kind: int(KindNull)},
		{Tick: 20, Type: RecordChar, Dir: uint8(DirTx), Kind: int(KindData), Byte: 0x5A},
		{Tick: 33, Type: RecordError, Kind: int(ErrParity)},
	}
	for i, wr := range want {
		rec, err := r.Read()
		require.NoError(t, err, "record %d", i)
		assert.Equal(t, wr, rec, "record %d", i)
	}
	_, err := r.Read()
	assert.Equal(t, io.EOF, err)
}

func TestCaptureReaderRejectsGarbage(t *testing.T) {
	r := NewCaptureReader(bytes.NewReader([]byte{0xFF, 0xFF, 0xFF}))
	_, err := r.Read()
	assert.Error(t, err)
	assert.NotEqual(t, io.EOF, err)
}

func TestCaptureRecordString(t *testing.T) {
	rec := CaptureRecord{Tick: 7, Type: RecordChar, Dir: uint8(DirTx), Kind: int(KindData), Byte: 0xAB}
	assert.Contains(t, rec.String(), "tx")
	assert.Contains(t, rec.String(), "Data(0xAB)")

	rec = CaptureRecord{Tick: 9, Type: RecordState, Kind: int(StateRun)}
	assert.Contains(t, rec.String(), "Run")

	rec = CaptureRecord{Tick: 11, Type: RecordError, Kind: int(ErrDisconnect)}
	assert.Contains(t, rec.String(), "error")
}

func TestCaptureFromSimulation(t *testing.T) {
	var buf bytes.Buffer
	sim, err := NewSimulator(DefaultConfig(), 1)
	require.NoError(t, err)
	sim.A.SetCapture(NewCaptureWriter(&buf))
	sim.A.Start()
	sim.B.Start()
	require.True(t, sim.RunUntil(sim.BothInRun, 1000))
	sim.A.SetCapture(nil)

	// The capture must contain the state walk to Run plus the handshake
	// characters in tick order.
	r := NewCaptureReader(&buf)
	var states []LinkState
	var chars int
	lastTick := uint64(0)
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		require.GreaterOrEqual(t, rec.Tick, lastTick, "capture out of order")
		lastTick = rec.Tick
		switch rec.Type {
		case RecordState:
			states = append(states, LinkState(rec.Kind))
		case RecordChar:
			chars++
		}
	}
	assert.Contains(t, states, StateStarted)
	assert.Contains(t, states, StateConnecting)
	assert.Contains(t, states, StateRun)
	assert.Greater(t, chars, 0)
}
