// SPDX-License-Identifier: LGPL-2.1-or-later
// Copyright (c) 2025 SpaceWire Light contributors

// Package spacewire implements a software model of the SpaceWire link layer
// as defined by ECSS-E-ST-50-12C.
//
// The package covers the receiver front-end (data/strobe bit recovery across
// an asynchronous clock-domain boundary), the character decoder and encoder,
// and the link state machine that governs connection establishment, flow
// control and error recovery. Two cooperating tick-driven domains model the
// hardware's sampling and system clocks; all cross-domain traffic passes
// through a lock-free single-producer/single-consumer bit ring.
package spacewire

// Control character codes (the two control bits following the data-control
// flag, LSB first on the wire).
const (
	codeFCT = 0x0 // flow control token
	codeEOP = 0x1 // end of packet
	codeEEP = 0x2 // error end of packet
	codeESC = 0x3 // escape prefix
)

// Bit lengths of the two character classes, including parity and flag bits.
const (
	dataCharBits    = 10 // parity + flag + 8 data bits
	controlCharBits = 4  // parity + flag + 2 control bits
)

// nullPattern is the raw bit sequence of a NULL token (ESC followed by FCT)
// as it appears after link reset, shifted LSB first into a byte:
// 0,1,1,1 then 0,1,0,0. The receiver hunts for this pattern to acquire
// character alignment.
const nullPattern = 0x2E

// Flow control limits per ECSS-E-ST-50-12C clause 8.3.
const (
	// FCTGrant is the number of data characters one FCT authorizes.
	FCTGrant = 8
	// MaxCredit is the ceiling on outstanding credit in either direction.
	// Receiving an FCT that would push credit beyond this is a credit error.
	MaxCredit = 56
)

// Timecode values occupy the low six bits of the data byte carried by an
// ESC + data sequence; the top two bits are control flags.
const timecodeMask = 0x3F

// Chunk width limits for the recovery front-end (bits handed to the system
// domain per processing tick).
const (
	MinChunkWidth = 1
	MaxChunkWidth = 4
)

// Default clock rates used when a LinkConfig leaves them zero.
const (
	DefaultSysClockHz    = 10_000_000
	DefaultSampleClockHz = 20_000_000
)

// ECSS-mandated link timing, independent of clock rate. Tick counts are
// derived from these and the configured system clock.
const (
	// resetTimeNs is the dead time spent in ErrorReset (6.4 us).
	resetTimeNs = 6400
	// waitTimeNs is the observation window in ErrorWait and the handshake
	// deadline in Started and Connecting (12.8 us).
	waitTimeNs = 12800
	// disconnectNs is the maximum input silence before a disconnect error
	// once the receiver has seen its first NULL (850 ns).
	disconnectNs = 850
)

// LinkState is the state of the ECSS link finite state machine.
type LinkState int

// Link states per ECSS-E-ST-50-12C clause 8.5.
const (
	StateErrorReset LinkState = iota
	StateErrorWait
	StateReady
	StateStarted
	StateConnecting
	StateRun
)

// String returns the ECSS name of the state.
func (s LinkState) String() string {
	switch s {
	case StateErrorReset:
		return "ErrorReset"
	case StateErrorWait:
		return "ErrorWait"
	case StateReady:
		return "Ready"
	case StateStarted:
		return "Started"
	case StateConnecting:
		return "Connecting"
	case StateRun:
		return "Run"
	}
	return "Unknown"
}
