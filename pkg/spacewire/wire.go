// SPDX-License-Identifier: LGPL-2.1-or-later
// Copyright (c) 2025 SpaceWire Light contributors

package spacewire

import "fmt"

// Wire framing for carrying a link's physical data/strobe signal across a
// byte pipe (serial port or websocket) between two processes running real
// link ends. Sample pairs are packed four to a byte behind a count byte,
// framed with start/end markers and byte stuffing so a receiver can
// resynchronize on a corrupted stream.

// Framing bytes.
const (
	FrameStart  = 0x7E
	FrameEnd    = 0x7F
	FrameEsc    = 0x7D
	frameEscXor = 0x20
)

// MaxFrameSamples is the largest number of sample pairs one frame carries.
const MaxFrameSamples = 255

// SamplePair is one captured (data, strobe) line sample.
type SamplePair struct {
	Data   bool
	Strobe bool
}

// packSamples packs pairs four to a byte, data in the even bit positions and
// strobe in the odd ones.
func packSamples(samples []SamplePair) []byte {
	out := make([]byte, (len(samples)+3)/4)
	for i, s := range samples {
		var v byte
		if s.Data {
			v |= 1
		}
		if s.Strobe {
			v |= 2
		}
		out[i/4] |= v << uint((i%4)*2)
	}
	return out
}

// EncodeFrame builds a complete stuffed frame from up to MaxFrameSamples
// sample pairs.
func EncodeFrame(samples []SamplePair) ([]byte, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("empty sample frame")
	}
	if len(samples) > MaxFrameSamples {
		return nil, fmt.Errorf("frame too large: %d samples (max %d)", len(samples), MaxFrameSamples)
	}
	payload := append([]byte{byte(len(samples))}, packSamples(samples)...)

	out := make([]byte, 0, len(payload)*2+2)
	out = append(out, FrameStart)
	for _, b := range payload {
		if b == FrameStart || b == FrameEnd || b == FrameEsc {
			out = append(out, FrameEsc, b^frameEscXor)
		} else {
			out = append(out, b)
		}
	}
	out = append(out, FrameEnd)
	return out, nil
}

// Frame decoder states.
const (
	frameIdle = iota
	frameCount
	framePayload
)

// FrameDecoder reassembles sample frames from a byte stream.
type FrameDecoder struct {
	state   int
	escape  bool
	count   int
	payload []byte
}

// NewFrameDecoder creates a frame decoder waiting for a start byte.
func NewFrameDecoder() *FrameDecoder {
	return &FrameDecoder{payload: make([]byte, 0, MaxFrameSamples/4+1)}
}

// Reset discards any frame in progress.
func (d *FrameDecoder) Reset() {
	d.state = frameIdle
	d.escape = false
	d.count = 0
	d.payload = d.payload[:0]
}

// DecodeByte consumes one byte and returns a complete batch of sample pairs
// when a frame closes, or nil while one is in progress. Bytes outside a
// frame are ignored so the decoder can join a running stream.
func (d *FrameDecoder) DecodeByte(b byte) ([]SamplePair, error) {
	switch b {
	case FrameStart:
		d.Reset()
		d.state = frameCount
		return nil, nil
	case FrameEnd:
		if d.state != framePayload || d.escape {
			state := d.state
			d.Reset()
			if state == frameIdle {
				return nil, nil
			}
			return nil, fmt.Errorf("truncated sample frame")
		}
		return d.finish()
	case FrameEsc:
		if d.state == frameIdle {
			return nil, nil
		}
		if d.escape {
			d.Reset()
			return nil, fmt.Errorf("double escape in sample frame")
		}
		d.escape = true
		return nil, nil
	}

	if d.escape {
		b ^= frameEscXor
		d.escape = false
	}
	switch d.state {
	case frameIdle:
		return nil, nil
	case frameCount:
		if b == 0 {
			d.Reset()
			return nil, fmt.Errorf("empty sample frame")
		}
		d.count = int(b)
		d.state = framePayload
		return nil, nil
	default:
		d.payload = append(d.payload, b)
		if len(d.payload) > (MaxFrameSamples+3)/4 {
			d.Reset()
			return nil, fmt.Errorf("oversized sample frame")
		}
		return nil, nil
	}
}

// finish unpacks the completed frame.
func (d *FrameDecoder) finish() ([]SamplePair, error) {
	want := (d.count + 3) / 4
	if len(d.payload) != want {
		n, count := len(d.payload), d.count
		d.Reset()
		return nil, fmt.Errorf("sample frame length mismatch: %d bytes for %d samples", n, count)
	}
	samples := make([]SamplePair, d.count)
	for i := range samples {
		v := d.payload[i/4] >> uint((i%4)*2)
		samples[i] = SamplePair{Data: v&1 != 0, Strobe: v&2 != 0}
	}
	d.Reset()
	return samples, nil
}
