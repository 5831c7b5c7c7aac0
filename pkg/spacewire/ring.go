// SPDX-License-Identifier: LGPL-2.1-or-later
// Copyright (c) 2025 SpaceWire Light contributors

package spacewire

import "sync/atomic"

// bitRing is the clock-domain-crossing handoff between the sampling domain
// and the system domain: a lock-free single-producer/single-consumer ring of
// recovered bits.
//
// The hardware design uses Gray-coded pointers so that at most one pointer
// bit changes per advance; in software the atomic head/tail pair with Go's
// memory ordering provides the same single-writer-per-pointer guarantee.
// The producer writes cells and head only, the consumer writes tail only.
// Indexes increase monotonically and wrap modulo 2^32; capacity math stays
// valid across the wrap because it only ever subtracts them.
type bitRing struct {
	buf  []bool
	size uint32

	head atomic.Uint32 // producer side
	tail atomic.Uint32 // consumer side
}

// newBitRing creates a ring holding size bits. The front-end sizes it at
// four times the chunk width.
func newBitRing(size int) *bitRing {
	return &bitRing{
		buf:  make([]bool, size),
		size: uint32(size),
	}
}

// push appends one recovered bit. It returns false when the ring is full;
// the caller treats that as an input overrun, which is a violated design
// precondition rather than a recoverable condition.
func (r *bitRing) push(bit bool) bool {
	head := r.head.Load()
	if head-r.tail.Load() == r.size {
		return false
	}
	r.buf[head%r.size] = bit
	r.head.Store(head + 1)
	return true
}

// pop removes one bit from the consumer side.
func (r *bitRing) pop() (bit bool, ok bool) {
	tail := r.tail.Load()
	if r.head.Load() == tail {
		return false, false
	}
	bit = r.buf[tail%r.size]
	r.tail.Store(tail + 1)
	return bit, true
}

// drain copies up to len(dst) pending bits into dst and returns the count.
func (r *bitRing) drain(dst []bool) int {
	n := 0
	for n < len(dst) {
		bit, ok := r.pop()
		if !ok {
			break
		}
		dst[n] = bit
		n++
	}
	return n
}

// len reports the number of bits currently buffered.
func (r *bitRing) len() int {
	return int(r.head.Load() - r.tail.Load())
}

// headSnapshot exposes the producer index for activity tracking on the
// consumer side.
func (r *bitRing) headSnapshot() uint32 {
	return r.head.Load()
}

// reset empties the ring. Only legal while both domains are quiesced by a
// synchronized disable, which is the only time the single-writer ownership
// of both pointers can be suspended.
func (r *bitRing) reset() {
	r.tail.Store(r.head.Load())
}
