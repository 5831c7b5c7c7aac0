// SPDX-License-Identifier: LGPL-2.1-or-later
// Copyright (c) 2025 SpaceWire Light contributors

package spacewire

import "fmt"

// CharKind identifies a decoded SpaceWire character or token.
type CharKind int

// Character kinds. FCT, EOP, EEP and ESC are the four control characters;
// Null and Timecode are the two-character tokens built from an ESC prefix.
const (
	KindData CharKind = iota
	KindFCT
	KindEOP
	KindEEP
	KindESC
	KindNull
	KindTimecode
)

// Character is one decoded SpaceWire character or token. Byte carries the
// data value for KindData and the time value (low six bits) for
// KindTimecode; it is zero otherwise.
type Character struct {
	Kind CharKind
	Byte byte
}

// DataChar returns a data character carrying b.
func DataChar(b byte) Character { return Character{Kind: KindData, Byte: b} }

// TimecodeChar returns a timecode token carrying the low six bits of v.
func TimecodeChar(v byte) Character {
	return Character{Kind: KindTimecode, Byte: v & timecodeMask}
}

// payloadBits returns the character's payload (the bits following parity and
// flag) LSB first, for parity accumulation and serialization. ESC-prefixed
// tokens are not single characters and have no payload of their own.
func (c Character) payloadBits() (bits byte, n int) {
	switch c.Kind {
	case KindData:
		return c.Byte, 8
	case KindFCT:
		return codeFCT, 2
	case KindEOP:
		return codeEOP, 2
	case KindEEP:
		return codeEEP, 2
	case KindESC:
		return codeESC, 2
	}
	return 0, 0
}

// String returns a short human-readable form used by the CLI and captures.
func (c Character) String() string {
	switch c.Kind {
	case KindData:
		return fmt.Sprintf("Data(0x%02X)", c.Byte)
	case KindFCT:
		return "FCT"
	case KindEOP:
		return "EOP"
	case KindEEP:
		return "EEP"
	case KindESC:
		return "ESC"
	case KindNull:
		return "NULL"
	case KindTimecode:
		return fmt.Sprintf("Timecode(%d)", c.Byte)
	}
	return "Invalid"
}

// TokenType identifies an entry in the application-facing byte/token queues.
type TokenType int

// Token types exchanged with the application.
const (
	TokenData TokenType = iota
	TokenEOP
	TokenEEP
)

// Token is one unit of the application interface: a data byte or a packet
// delimiter.
type Token struct {
	Type TokenType
	Byte byte
}

// String returns a short human-readable form.
func (t Token) String() string {
	switch t.Type {
	case TokenData:
		return fmt.Sprintf("0x%02X", t.Byte)
	case TokenEOP:
		return "EOP"
	case TokenEEP:
		return "EEP"
	}
	return "Invalid"
}
