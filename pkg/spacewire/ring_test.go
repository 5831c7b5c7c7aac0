// SPDX-License-Identifier: LGPL-2.1-or-later
// Copyright (c) 2025 SpaceWire Light contributors

package spacewire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestBitRingOrder(t *testing.T) {
	r := newBitRing(4)

	assert.True(t, r.push(true))
	assert.True(t, r.push(false))
	assert.True(t, r.push(true))
	assert.Equal(t, 3, r.len())

	bit, ok := r.pop()
	require.True(t, ok)
	assert.True(t, bit)
	bit, ok = r.pop()
	require.True(t, ok)
	assert.False(t, bit)
	bit, ok = r.pop()
	require.True(t, ok)
	assert.True(t, bit)

	_, ok = r.pop()
	assert.False(t, ok, "pop from empty ring should fail")
}

func TestBitRingFull(t *testing.T) {
	r := newBitRing(4)
	for i := 0; i < 4; i++ {
		require.True(t, r.push(i%2 == 0))
	}
	assert.False(t, r.push(true), "push into full ring should fail")
	assert.Equal(t, 4, r.len())

	_, ok := r.pop()
	require.True(t, ok)
	assert.True(t, r.push(true), "ring should accept a push after a pop")
}

func TestBitRingWrapAround(t *testing.T) {
	r := newBitRing(4)
	// Cycle enough times to wrap the indexes past the buffer size repeatedly.
	for i := 0; i < 64; i++ {
		want := i&1 == 0
		require.True(t, r.push(want))
		got, ok := r.pop()
		require.True(t, ok)
		assert.Equal(t, want, got, "bit %d corrupted across wrap", i)
	}
}

func TestBitRingCapacityInvariant(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		size := rapid.IntRange(2, 16).Draw(t, "size")
		r := newBitRing(size)
		ops := rapid.SliceOf(rapid.Bool()).Draw(t, "ops")

		pushed, popped := 0, 0
		for _, isPush := range ops {
			if isPush {
				if r.push(true) {
					pushed++
				}
			} else {
				if _, ok := r.pop(); ok {
					popped++
				}
			}
			fill := r.len()
			if fill < 0 || fill > size {
				t.Fatalf("ring holds %d bits with capacity %d", fill, size)
			}
			if fill != pushed-popped {
				t.Fatalf("ring reports %d bits, accounting says %d", fill, pushed-popped)
			}
		}
	})
}

func TestBitRingConcurrent(t *testing.T) {
	const total = 10000
	r := newBitRing(8)

	// Deterministic pseudo-random bit sequence shared by both sides.
	bitAt := func(i int) bool {
		return (i*2654435761)>>16&1 == 1
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < total; {
			if r.push(bitAt(i)) {
				i++
			}
		}
	}()

	for i := 0; i < total; {
		bit, ok := r.pop()
		if !ok {
			continue
		}
		if bit != bitAt(i) {
			t.Fatalf("bit %d: got %v, want %v", i, bit, bitAt(i))
		}
		i++
	}
	<-done
}
