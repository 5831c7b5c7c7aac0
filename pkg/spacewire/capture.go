// SPDX-License-Identifier: LGPL-2.1-or-later
// Copyright (c) 2025 SpaceWire Light contributors

package spacewire

import (
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
)

// Direction tags a captured character as received or transmitted.
type Direction uint8

// Capture directions.
const (
	DirRx Direction = 0
	DirTx Direction = 1
)

// Capture record types.
const (
	RecordChar  = 0
	RecordState = 1
	RecordError = 2
)

// CaptureRecord is one link event in a capture stream. Records are encoded
// as a CBOR sequence with integer keys to keep capture files compact.
type CaptureRecord struct {
	Tick uint64 `cbor:"1,keyasint"`
	Type uint8  `cbor:"2,keyasint"`
	Dir  uint8  `cbor:"3,keyasint,omitempty"`
	Kind int    `cbor:"4,keyasint,omitempty"` // character kind, link state or error kind
	Byte byte   `cbor:"5,keyasint,omitempty"`
}

// String renders the record for the capture dump command.
func (r CaptureRecord) String() string {
	switch r.Type {
	case RecordChar:
		dir := "rx"
		if Direction(r.Dir) == DirTx {
			dir = "tx"
		}
		c := Character{Kind: CharKind(r.Kind), Byte: r.Byte}
		return fmt.Sprintf("%10d  %s  %s", r.Tick, dir, c)
	case RecordState:
		return fmt.Sprintf("%10d  --  state %s", r.Tick, LinkState(r.Kind))
	case RecordError:
		return fmt.Sprintf("%10d  --  error %s", r.Tick, ErrorKind(r.Kind))
	}
	return fmt.Sprintf("%10d  --  unknown record type %d", r.Tick, r.Type)
}

// CaptureWriter streams link events as CBOR records.
type CaptureWriter struct {
	enc *cbor.Encoder
}

// NewCaptureWriter creates a capture writer on w.
func NewCaptureWriter(w io.Writer) *CaptureWriter {
	return &CaptureWriter{enc: cbor.NewEncoder(w)}
}

// RecordChar appends a character event. Encoding failures are dropped; a
// capture must never disturb the link model.
func (c *CaptureWriter) RecordChar(tick uint64, dir Direction, ch Character) {
	_ = c.enc.Encode(CaptureRecord{
		Tick: tick,
		Type: RecordChar,
		Dir:  uint8(dir),
		Kind: int(ch.Kind),
		Byte: ch.Byte,
	})
}

// RecordState appends a state transition event.
func (c *CaptureWriter) RecordState(tick uint64, s LinkState) {
	_ = c.enc.Encode(CaptureRecord{Tick: tick, Type: RecordState, Kind: int(s)})
}

// RecordError appends a protocol error event.
func (c *CaptureWriter) RecordError(tick uint64, kind ErrorKind) {
	_ = c.enc.Encode(CaptureRecord{Tick: tick, Type: RecordError, Kind: int(kind)})
}

// CaptureReader reads back a capture stream.
type CaptureReader struct {
	dec *cbor.Decoder
}

// NewCaptureReader creates a capture reader on r.
func NewCaptureReader(r io.Reader) *CaptureReader {
	return &CaptureReader{dec: cbor.NewDecoder(r)}
}

// Read returns the next record, or io.EOF at the end of the stream.
func (c *CaptureReader) Read() (CaptureRecord, error) {
	var rec CaptureRecord
	if err := c.dec.Decode(&rec); err != nil {
		if err == io.EOF {
			return rec, io.EOF
		}
		return rec, fmt.Errorf("failed to decode capture record: %w", err)
	}
	return rec, nil
}
