// SPDX-License-Identifier: LGPL-2.1-or-later
// Copyright (c) 2025 SpaceWire Light contributors

package spacewire

// Decoder converts the recovered bit stream into SpaceWire characters.
//
// Data characters are parity + data-control flag (0) + 8 data bits LSB
// first; control characters are parity + flag (1) + 2 control bits. The
// parity bit covers the payload bits of the previous character plus the
// current parity and flag bits, odd overall. ESC+FCT forms a NULL token and
// ESC+data a timecode; any other character after ESC is invalid.
//
// After a reset the decoder hunts bit by bit for the NULL pattern before
// emitting anything, so partial characters and stale front-end bits are
// discarded rather than decoded.
type Decoder struct {
	synced bool
	hunt   byte

	pos    int  // bit position within the current character
	flag   bool // data-control flag of the current character
	parity bool // parity bit of the current character
	accum  bool // parity of the previous character's payload bits
	cur    byte // payload bits collected so far, LSB first
	escape bool // previous character was ESC
}

// NewDecoder creates a character decoder in its post-reset hunt state.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Reset returns the decoder to the hunt state, discarding any partial
// character. The decoder is not restartable mid-character.
func (d *Decoder) Reset() {
	*d = Decoder{}
}

// Synced reports whether the decoder has seen its first NULL since reset.
func (d *Decoder) Synced() bool {
	return d.synced
}

// DecodeBit consumes one recovered bit. It returns a completed character or
// token, or nil while one is still in progress. A parity failure or an
// invalid escape sequence is returned as a *LinkError; the caller is
// expected to force a link reset and call Reset.
func (d *Decoder) DecodeBit(bit bool) (*Character, error) {
	if !d.synced {
		d.hunt >>= 1
		if bit {
			d.hunt |= 0x80
		}
		if d.hunt != nullPattern {
			return nil, nil
		}
		// Aligned on the first NULL. The FCT half of the token carries
		// payload bits 00, so the running parity starts even.
		d.synced = true
		d.hunt = 0
		d.pos = 0
		d.accum = false
		d.escape = false
		return &Character{Kind: KindNull}, nil
	}

	switch d.pos {
	case 0:
		d.parity = bit
		d.pos = 1
		return nil, nil
	case 1:
		d.flag = bit
		// Odd parity over previous payload + parity bit + flag bit.
		if !(d.accum != d.parity != d.flag) {
			return nil, &LinkError{Kind: ErrParity}
		}
		d.accum = false
		d.cur = 0
		d.pos = 2
		return nil, nil
	}

	if bit {
		d.cur |= 1 << (d.pos - 2)
		d.accum = !d.accum
	}
	d.pos++

	want := dataCharBits
	if d.flag {
		want = controlCharBits
	}
	if d.pos < want {
		return nil, nil
	}
	d.pos = 0
	return d.complete()
}

// complete finishes the character collected in cur, applying the ESC token
// rules.
func (d *Decoder) complete() (*Character, error) {
	if !d.flag {
		if d.escape {
			d.escape = false
			return &Character{Kind: KindTimecode, Byte: d.cur & timecodeMask}, nil
		}
		return &Character{Kind: KindData, Byte: d.cur}, nil
	}

	code := d.cur & 0x3
	if d.escape {
		d.escape = false
		switch code {
		case codeFCT:
			return &Character{Kind: KindNull}, nil
		default:
			// ESC+EOP, ESC+EEP and ESC+ESC are all invalid.
			return nil, &LinkError{Kind: ErrInvalidControlCode}
		}
	}
	switch code {
	case codeFCT:
		return &Character{Kind: KindFCT}, nil
	case codeEOP:
		return &Character{Kind: KindEOP}, nil
	case codeEEP:
		return &Character{Kind: KindEEP}, nil
	default:
		d.escape = true
		return nil, nil
	}
}
