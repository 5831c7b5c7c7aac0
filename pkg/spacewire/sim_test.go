// SPDX-License-Identifier: LGPL-2.1-or-later
// Copyright (c) 2025 SpaceWire Light contributors

package spacewire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSim(t *testing.T, delay int) *Simulator {
	t.Helper()
	sim, err := NewSimulator(DefaultConfig(), delay)
	require.NoError(t, err)
	return sim
}

// drainTokens empties a node's receive queue.
func drainTokens(n *Node) []Token {
	var out []Token
	for {
		tok, ok := n.Dequeue()
		if !ok {
			return out
		}
		out = append(out, tok)
	}
}

// enqueuePacket queues payload bytes followed by an EOP.
func enqueuePacket(t *testing.T, n *Node, payload []byte) {
	t.Helper()
	for _, b := range payload {
		require.NoError(t, n.EnqueueByte(b))
	}
	require.NoError(t, n.EnqueueEOP())
}

func TestSimHandshakeBothStart(t *testing.T) {
	sim := newTestSim(t, 2)
	sim.A.Start()
	sim.B.Start()

	require.True(t, sim.RunUntil(sim.BothInRun, 1000),
		"handshake did not complete; A=%v B=%v",
		sim.A.Status().State, sim.B.Status().State)

	// The handshake is bounded: dead time + wait + a handful of character
	// exchanges, nowhere near the timeout ceiling.
	assert.Less(t, sim.Ticks(), uint64(400))
	statsA := sim.A.Stats()
	statsB := sim.B.Stats()
	assert.Zero(t, statsA.TotalErrors())
	assert.Zero(t, statsB.TotalErrors())
}

func TestSimAutostartFollowsPeer(t *testing.T) {
	cfg := DefaultConfig()
	sim, err := NewSimulator(cfg, 1)
	require.NoError(t, err)
	sim.A.Start()
	sim.B.SetAutoStart(true)

	require.True(t, sim.RunUntil(sim.BothInRun, 2000))
}

func TestSimPassiveEndStaysDown(t *testing.T) {
	sim := newTestSim(t, 1)
	sim.A.Start()
	// B neither starts nor autostarts: A must cycle on the handshake
	// deadline and never reach Run.

	sim.Run(2000)
	assert.NotEqual(t, StateRun, sim.A.Status().State)
	assert.GreaterOrEqual(t, sim.A.Stats().Timeouts, uint64(1))
	assert.Equal(t, StateReady, sim.B.Status().State)
}

func TestSimBidirectionalTransfer(t *testing.T) {
	sim := newTestSim(t, 2)
	sim.A.Start()
	sim.B.Start()
	require.True(t, sim.RunUntil(sim.BothInRun, 1000))

	aOut := []byte("cassini")
	bOut := []byte{0x01, 0x02, 0x03}
	enqueuePacket(t, sim.A, aOut)
	enqueuePacket(t, sim.B, bOut)

	var atB, atA []Token
	done := func() bool {
		atB = append(atB, drainTokens(sim.B)...)
		atA = append(atA, drainTokens(sim.A)...)
		return len(atB) == len(aOut)+1 && len(atA) == len(bOut)+1
	}
	require.True(t, sim.RunUntil(done, 2000), "transfer incomplete: %d/%d tokens", len(atB), len(atA))

	for i, b := range aOut {
		assert.Equal(t, Token{Type: TokenData, Byte: b}, atB[i])
	}
	assert.Equal(t, TokenEOP, atB[len(aOut)].Type)
	for i, b := range bOut {
		assert.Equal(t, Token{Type: TokenData, Byte: b}, atA[i])
	}
	assert.Equal(t, TokenEOP, atA[len(bOut)].Type)

	statsA := sim.A.Stats()
	statsB := sim.B.Stats()
	assert.Zero(t, statsA.TotalErrors())
	assert.Zero(t, statsB.TotalErrors())
}

func TestSimSustainedTrafficRespectsCredit(t *testing.T) {
	sim := newTestSim(t, 1)
	sim.A.Start()
	sim.B.Start()
	require.True(t, sim.RunUntil(sim.BothInRun, 1000))

	// Several queue-depth-sized packets force multiple FCT exchanges.
	const packets = 4
	const size = 32
	sent := 0
	received := 0
	for p := 0; p < packets; p++ {
		for i := 0; i < size; i++ {
			require.NoError(t, sim.A.EnqueueByte(byte(sent)))
			sent++
		}
		require.NoError(t, sim.A.EnqueueEOP())

		ok := sim.RunUntil(func() bool {
			for {
				tok, found := sim.B.Dequeue()
				if !found {
					return false
				}
				if tok.Type == TokenEOP {
					return true
				}
				require.Equal(t, TokenData, tok.Type)
				require.Equal(t, byte(received), tok.Byte)
				received++
			}
		}, 5000)
		require.True(t, ok, "packet %d stalled", p)
	}
	assert.Equal(t, packets*size, received)
	assert.Zero(t, sim.B.Stats().CreditViolations)
	assert.GreaterOrEqual(t, sim.B.Stats().TxFCTs, uint64(packets), "flow control never replenished")
}

func TestSimTimecodePropagation(t *testing.T) {
	sim := newTestSim(t, 1)
	sim.A.Start()
	sim.B.Start()
	require.True(t, sim.RunUntil(sim.BothInRun, 1000))

	var got []byte
	sim.B.SetTickHandler(func(v byte) { got = append(got, v) })

	for i := 0; i < 3; i++ {
		sim.A.TickIn()
		sim.Run(40)
	}
	assert.Equal(t, []byte{1, 2, 3}, got)
}

func TestSimDisableTearsDownBothEnds(t *testing.T) {
	sim := newTestSim(t, 1)
	sim.A.Start()
	sim.B.Start()
	require.True(t, sim.RunUntil(sim.BothInRun, 1000))

	sim.A.Disable(true)
	require.True(t, sim.RunUntil(func() bool {
		return sim.B.Status().State != StateRun
	}, 100), "B never noticed A going away")

	// A was switched off deliberately; B saw a line failure.
	assert.Equal(t, StateErrorReset, sim.A.Status().State)
	statsB := sim.B.Stats()
	assert.GreaterOrEqual(t, statsB.TotalErrors(), uint64(1))
}

func TestSimRecoversAfterDisable(t *testing.T) {
	sim := newTestSim(t, 1)
	sim.A.Start()
	sim.B.Start()
	require.True(t, sim.RunUntil(sim.BothInRun, 1000))

	sim.A.Disable(true)
	sim.Run(50)
	sim.A.Disable(false)
	sim.A.Start()

	require.True(t, sim.RunUntil(sim.BothInRun, 2000), "link did not come back")
}

func TestSimExternalErrorRestartsHandshake(t *testing.T) {
	sim := newTestSim(t, 1)
	sim.A.Start()
	sim.B.Start()
	require.True(t, sim.RunUntil(sim.BothInRun, 1000))
	resets := sim.A.Stats().LinkResets

	sim.A.SignalError()
	sim.Run(5)
	assert.Equal(t, resets+1, sim.A.Stats().LinkResets)

	require.True(t, sim.RunUntil(sim.BothInRun, 2000))
}
