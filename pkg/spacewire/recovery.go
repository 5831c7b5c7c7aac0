// SPDX-License-Identifier: LGPL-2.1-or-later
// Copyright (c) 2025 SpaceWire Light contributors

package spacewire

import "sync/atomic"

// recoveryFrontend recovers the self-clocked data/strobe encoding into a bit
// stream and carries it across the sampling-to-system clock boundary.
//
// The sampling domain calls sample once per sampling tick with the line
// values seen on both clock edges, so a single tick can yield zero, one or
// two recovered bits. The system domain calls systemTick to drain up to one
// chunk of bits per processing tick. The only shared state is the SPSC bit
// ring and the atomic enable flag, which crosses into the sampling domain
// through a modelled two-stage synchronizer.
type recoveryFrontend struct {
	ring  *bitRing
	chunk int

	enable atomic.Bool

	// Sampling-domain state. Only touched by sample.
	sync0   bool
	sync1   bool
	running bool
	prevXor bool

	// System-domain state. Only touched by systemTick and activity.
	lastHead  uint32
	idleTicks int

	overruns atomic.Uint32
}

func newRecoveryFrontend(chunk int) *recoveryFrontend {
	if chunk < MinChunkWidth {
		chunk = MinChunkWidth
	}
	if chunk > MaxChunkWidth {
		chunk = MaxChunkWidth
	}
	return &recoveryFrontend{
		ring:  newBitRing(4 * chunk),
		chunk: chunk,
	}
}

// setEnable is called from the system domain. The sampling domain observes
// the change after its two-stage synchronizer, i.e. within two sampling
// ticks.
func (f *recoveryFrontend) setEnable(on bool) {
	f.enable.Store(on)
}

// sample processes the line values captured on the rising edge (d0, s0) and
// falling edge (d1, s1) of one sampling tick. A new bit is present whenever
// data XOR strobe differs from its value one sample earlier; the bit value
// is the data sample itself.
func (f *recoveryFrontend) sample(d0, s0, d1, s1 bool) {
	f.running, f.sync1, f.sync0 = f.sync1, f.sync0, f.enable.Load()

	if !f.running {
		// Track the line while disabled so enabling starts from the
		// current line state instead of a phantom transition.
		f.prevXor = d1 != s1
		return
	}
	f.sampleEdge(d0, s0)
	f.sampleEdge(d1, s1)
}

func (f *recoveryFrontend) sampleEdge(d, s bool) {
	x := d != s
	if x == f.prevXor {
		return
	}
	f.prevXor = x
	if !f.ring.push(d) {
		// Overrun: the caller violated the rate precondition
		// (bit rate > chunk width x system clock).
		f.overruns.Add(1)
	}
}

// systemTick drains up to one chunk of recovered bits into dst and updates
// the activity window. dst must hold at least chunk bits.
func (f *recoveryFrontend) systemTick(dst []bool) int {
	head := f.ring.headSnapshot()
	if head != f.lastHead {
		f.lastHead = head
		f.idleTicks = 0
	} else if f.idleTicks < 2 {
		f.idleTicks++
	}
	if dst == nil {
		return 0
	}
	if len(dst) > f.chunk {
		dst = dst[:f.chunk]
	}
	return f.ring.drain(dst)
}

// active reports whether any new bit arrived within the last two system
// ticks. The link state machine uses this for disconnect detection.
func (f *recoveryFrontend) active() bool {
	return f.idleTicks < 2
}

// reset reinitializes the consumer side. Called from the system domain
// after disable has propagated; bits pushed during the synchronizer latency
// are discarded here and any stragglers are absorbed by the decoder's NULL
// hunt after restart.
func (f *recoveryFrontend) reset() {
	f.ring.reset()
	f.lastHead = f.ring.headSnapshot()
	f.idleTicks = 2
}
