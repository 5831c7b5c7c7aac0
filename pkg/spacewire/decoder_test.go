// SPDX-License-Identifier: LGPL-2.1-or-later
// Copyright (c) 2025 SpaceWire Light contributors

package spacewire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// charStream builds raw decoder input with the same cross-character parity
// rule the transmitter uses, independently of the Encoder implementation.
type charStream struct {
	accum bool
	bits  []bool
}

func (s *charStream) put(c Character) {
	s.putFlipped(c, false)
}

// putFlipped appends a character with an optionally inverted parity bit.
// NULL and timecode tokens are expanded into their ESC-prefixed pairs; the
// flip then lands on the ESC half.
func (s *charStream) putFlipped(c Character, flip bool) {
	switch c.Kind {
	case KindNull:
		s.putFlipped(Character{Kind: KindESC}, flip)
		s.put(Character{Kind: KindFCT})
		return
	case KindTimecode:
		s.putFlipped(Character{Kind: KindESC}, flip)
		s.put(Character{Kind: KindData, Byte: c.Byte})
		return
	}

	payload, n := c.payloadBits()
	flag := n == 2
	parity := !(s.accum != flag)
	if flip {
		parity = !parity
	}
	s.bits = append(s.bits, parity, flag)
	s.accum = false
	for i := 0; i < n; i++ {
		bit := payload&(1<<i) != 0
		s.bits = append(s.bits, bit)
		if bit {
			s.accum = !s.accum
		}
	}
}

// decodeBits runs the bit sequence through a decoder, returning all emitted
// characters and the first error.
func decodeBits(d *Decoder, bits []bool) ([]Character, error) {
	var out []Character
	for _, b := range bits {
		c, err := d.DecodeBit(b)
		if err != nil {
			return out, err
		}
		if c != nil {
			out = append(out, *c)
		}
	}
	return out, nil
}

func TestDecoderHuntsForNull(t *testing.T) {
	var s charStream
	s.put(Character{Kind: KindNull})

	// Idle ones before the first NULL must be consumed silently.
	bits := append(make([]bool, 0, 16), true, true, true, true, true, true)
	bits = append(bits, s.bits...)

	d := NewDecoder()
	chars, err := decodeBits(d, bits)
	require.NoError(t, err)
	require.Len(t, chars, 1)
	assert.Equal(t, KindNull, chars[0].Kind)
	assert.True(t, d.Synced())
}

func TestDecoderCharacterSequence(t *testing.T) {
	var s charStream
	s.put(Character{Kind: KindNull})
	s.put(Character{Kind: KindData, Byte: 0xA5})
	s.put(Character{Kind: KindFCT})
	s.put(Character{Kind: KindData, Byte: 0x00})
	s.put(Character{Kind: KindEOP})
	s.put(Character{Kind: KindEEP})
	s.put(Character{Kind: KindTimecode, Byte: 0x15})
	s.put(Character{Kind: KindNull})

	chars, err := decodeBits(NewDecoder(), s.bits)
	require.NoError(t, err)
	want := []Character{
		{Kind: KindNull},
		{Kind: KindData, Byte: 0xA5},
		{Kind: KindFCT},
		{Kind: KindData, Byte: 0x00},
		{Kind: KindEOP},
		{Kind: KindEEP},
		{Kind: KindTimecode, Byte: 0x15},
		{Kind: KindNull},
	}
	assert.Equal(t, want, chars)
}

func TestDecoderParityError(t *testing.T) {
	var s charStream
	s.put(Character{Kind: KindNull})
	s.putFlipped(Character{Kind: KindData, Byte: 0x42}, true)

	chars, err := decodeBits(NewDecoder(), s.bits)
	require.Error(t, err)
	var le *LinkError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, ErrParity, le.Kind)
	// Only the sync NULL got through before the corrupt character.
	require.Len(t, chars, 1)
	assert.Equal(t, KindNull, chars[0].Kind)
}

func TestDecoderInvalidEscape(t *testing.T) {
	cases := []struct {
		name   string
		follow CharKind
	}{
		{"esc-eop", KindEOP},
		{"esc-eep", KindEEP},
		{"esc-esc", KindESC},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var s charStream
			s.put(Character{Kind: KindNull})
			s.put(Character{Kind: KindESC})
			s.put(Character{Kind: tc.follow})

			_, err := decodeBits(NewDecoder(), s.bits)
			var le *LinkError
			require.ErrorAs(t, err, &le)
			assert.Equal(t, ErrInvalidControlCode, le.Kind)
		})
	}
}

func TestDecoderTimecodeMasked(t *testing.T) {
	var s charStream
	s.put(Character{Kind: KindNull})
	// Two reserved flag bits set on the wire; the decoder strips them.
	s.put(Character{Kind: KindESC})
	s.put(Character{Kind: KindData, Byte: 0xC5})

	chars, err := decodeBits(NewDecoder(), s.bits)
	require.NoError(t, err)
	require.Len(t, chars, 2)
	assert.Equal(t, KindTimecode, chars[1].Kind)
	assert.Equal(t, byte(0x05), chars[1].Byte)
}

func TestDecoderResetRehunts(t *testing.T) {
	var s charStream
	s.put(Character{Kind: KindNull})

	d := NewDecoder()
	_, err := decodeBits(d, s.bits)
	require.NoError(t, err)
	require.True(t, d.Synced())

	d.Reset()
	assert.False(t, d.Synced())

	// Data bits without a fresh NULL must not produce characters.
	var junk charStream
	junk.put(Character{Kind: KindData, Byte: 0x55})
	chars, err := decodeBits(d, junk.bits)
	require.NoError(t, err)
	assert.Empty(t, chars)
}

func TestDecoderFirstCharAfterNullParity(t *testing.T) {
	// The parity of the character following the sync NULL covers the FCT
	// half of the NULL, so the decoder must leave the hunt with the right
	// running parity. A wrong initial accumulator fails on any first char
	// whose payload parity differs from FCT's.
	for b := 0; b < 256; b++ {
		var s charStream
		s.put(Character{Kind: KindNull})
		s.put(Character{Kind: KindData, Byte: byte(b)})

		chars, err := decodeBits(NewDecoder(), s.bits)
		require.NoError(t, err, "byte %#02x", b)
		require.Len(t, chars, 2)
		assert.Equal(t, byte(b), chars[1].Byte)
	}
}
