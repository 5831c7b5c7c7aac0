// SPDX-License-Identifier: LGPL-2.1-or-later
// Copyright (c) 2025 SpaceWire Light contributors

package spacewire

// ErrorKind classifies the protocol violations that force a link reset.
type ErrorKind int

// Protocol error taxonomy. Every member is handled identically: an
// unconditional transition to ErrorReset, no retry, no partial recovery.
const (
	ErrNone ErrorKind = iota
	ErrParity
	ErrInvalidControlCode
	ErrCreditViolation
	ErrDisconnect
	ErrLinkTimeout
	ErrExternalLink
)

// String returns the error name.
func (k ErrorKind) String() string {
	switch k {
	case ErrNone:
		return "None"
	case ErrParity:
		return "ParityError"
	case ErrInvalidControlCode:
		return "InvalidControlCode"
	case ErrCreditViolation:
		return "CreditViolation"
	case ErrDisconnect:
		return "DisconnectError"
	case ErrLinkTimeout:
		return "LinkTimeout"
	case ErrExternalLink:
		return "ExternalLinkError"
	}
	return "Unknown"
}

// LinkError is a protocol violation detected by the receiver or the link
// state machine.
type LinkError struct {
	Kind ErrorKind
}

// Error implements the error interface.
func (e *LinkError) Error() string {
	return "spacewire: " + e.Kind.String()
}
