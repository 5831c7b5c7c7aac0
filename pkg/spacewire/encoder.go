// SPDX-License-Identifier: LGPL-2.1-or-later
// Copyright (c) 2025 SpaceWire Light contributors

package spacewire

// Encoder serializes outgoing characters into the data/strobe line encoding.
//
// The strobe line toggles whenever two consecutive output bits are equal, so
// exactly one of the two lines changes per bit period. Parity is generated
// with the same cross-character rule the decoder checks. A new character is
// selected from the supplied source only at a character boundary; once a
// token starts, nothing interleaves with it, including the second half of an
// ESC-prefixed token. This is what keeps a NULL from ever splitting an FCT
// burst.
type Encoder struct {
	divisor     int
	nextDivisor int
	countdown   int

	bits  [dataCharBits]bool
	nbits int
	idx   int

	accum  bool // parity of the previous character's payload bits
	second *Character

	running bool
	data    bool
	strobe  bool
	prev    bool
}

// NewEncoder creates a transmitter with divisor 0 (one bit per system tick).
func NewEncoder() *Encoder {
	e := &Encoder{}
	e.reset()
	return e
}

// SetDivisor schedules a new transmit clock divisor: the output advances one
// bit every divisor+1 system ticks. It takes effect at the next character
// boundary.
func (e *Encoder) SetDivisor(d int) {
	if d < 0 {
		d = 0
	}
	e.nextDivisor = d
}

// SetRunning enables or disables the transmitter. Disabling drives both
// lines low and discards any character in progress.
func (e *Encoder) SetRunning(on bool) {
	if on == e.running {
		return
	}
	e.running = on
	if !on {
		e.reset()
	}
}

func (e *Encoder) reset() {
	e.idx = 0
	e.nbits = 0
	e.accum = false
	e.second = nil
	e.countdown = 0
	e.data = false
	e.strobe = false
	e.prev = false
}

// Lines returns the current data and strobe output values.
func (e *Encoder) Lines() (data, strobe bool) {
	return e.data, e.strobe
}

// Tick advances the transmitter by one system tick. When a bit period
// elapses and no character is in progress, next is asked for the following
// character; it may return nil to leave the line idle (only legal before the
// link has started).
func (e *Encoder) Tick(next func() *Character) {
	if !e.running {
		return
	}
	if e.countdown > 0 {
		e.countdown--
		return
	}
	if e.idx == e.nbits {
		if !e.loadNext(next) {
			return
		}
	}
	bit := e.bits[e.idx]
	e.idx++
	if bit == e.prev {
		e.strobe = !e.strobe
	}
	e.data = bit
	e.prev = bit
	e.countdown = e.divisor
}

// loadNext fetches and serializes the next character, expanding NULL and
// timecode tokens into their ESC-prefixed character pairs.
func (e *Encoder) loadNext(next func() *Character) bool {
	var c Character
	if e.second != nil {
		c = *e.second
		e.second = nil
	} else {
		e.divisor = e.nextDivisor
		nc := next()
		if nc == nil {
			return false
		}
		switch nc.Kind {
		case KindNull:
			c = Character{Kind: KindESC}
			e.second = &Character{Kind: KindFCT}
		case KindTimecode:
			c = Character{Kind: KindESC}
			e.second = &Character{Kind: KindData, Byte: nc.Byte}
		default:
			c = *nc
		}
	}
	e.serialize(c)
	return true
}

// serialize fills the bit buffer with parity, data-control flag and payload
// bits, LSB first, and rolls the payload parity forward for the next
// character.
func (e *Encoder) serialize(c Character) {
	payload, n := c.payloadBits()
	flag := n == 2

	// Odd parity over previous payload + parity bit + flag bit.
	parity := !(e.accum != flag)

	e.bits[0] = parity
	e.bits[1] = flag
	e.accum = false
	for i := 0; i < n; i++ {
		bit := payload&(1<<i) != 0
		e.bits[2+i] = bit
		if bit {
			e.accum = !e.accum
		}
	}
	e.nbits = 2 + n
	e.idx = 0
}
