// SPDX-License-Identifier: LGPL-2.1-or-later
// Copyright (c) 2025 SpaceWire Light contributors

package spacewire

// linkTiming holds the ECSS link deadlines converted to system ticks.
type linkTiming struct {
	resetTicks      int // ErrorReset dead time (6.4 us)
	waitTicks       int // ErrorWait window and handshake deadline (12.8 us)
	disconnectTicks int // input silence tolerated in Run (850 ns)
}

// ticksFromNs converts a nanosecond deadline to system ticks, rounding up so
// a deadline never fires early.
func ticksFromNs(clockHz int, ns int) int {
	t := (int64(clockHz)*int64(ns) + 999_999_999) / 1_000_000_000
	if t < 1 {
		t = 1
	}
	return int(t)
}

// linkFSM is the ECSS-E-ST-50-12C clause 8.5 link state machine, evaluated
// once per system tick. It owns the flow-control credit in both directions;
// character selection and the application queues live in Node.
//
// Every protocol violation takes the same path: fail records the cause and
// forces ErrorReset. Nothing is retried in place; recovery is a fresh
// handshake.
type linkFSM struct {
	timing linkTiming

	state LinkState
	timer int

	start     bool // link-start request
	autostart bool
	disabled  bool

	gotNull bool
	lastErr ErrorKind
	reset   bool // set by fail, consumed by Node for teardown

	// Credit we hold to transmit N-chars (granted by remote FCTs).
	txCredit int
	// Outstanding credit we have granted the remote.
	rxCredit int
	// FCTs scheduled but not yet transmitted.
	pendingFCT int

	idleTicks int // disconnect timer
}

func newLinkFSM(timing linkTiming) *linkFSM {
	l := &linkFSM{timing: timing}
	l.enterReset()
	return l
}

func (l *linkFSM) enterReset() {
	l.state = StateErrorReset
	l.timer = l.timing.resetTicks
	l.gotNull = false
	l.txCredit = 0
	l.rxCredit = 0
	l.pendingFCT = 0
	l.idleTicks = 0
}

// fail records the error and forces ErrorReset. Safe to call repeatedly
// within one tick; the first cause wins.
func (l *linkFSM) fail(kind ErrorKind) {
	if l.reset {
		return
	}
	l.lastErr = kind
	l.reset = true
	l.enterReset()
}

// consumeReset reports whether a reset was forced since the last call, so
// Node can tear down the session exactly once.
func (l *linkFSM) consumeReset() bool {
	r := l.reset
	l.reset = false
	return r
}

// rxEnabled reports whether the receiver front-end should run. The receiver
// listens from ErrorWait onward so autostart can see the remote's NULLs.
func (l *linkFSM) rxEnabled() bool {
	return l.state != StateErrorReset
}

// txEnabled reports whether the transmitter runs (NULLs at minimum).
func (l *linkFSM) txEnabled() bool {
	switch l.state {
	case StateStarted, StateConnecting, StateRun:
		return true
	}
	return false
}

// tick advances timers and timed transitions. active is the front-end
// activity indicator used for disconnect detection.
func (l *linkFSM) tick(active bool) {
	if l.disabled {
		// Deliberate disable: reset without recording an error, and hold
		// the dead time until the disable is released.
		if l.state != StateErrorReset {
			l.reset = true
			l.enterReset()
		}
		l.timer = l.timing.resetTicks
		return
	}

	switch l.state {
	case StateErrorReset:
		if l.timer > 0 {
			l.timer--
			break
		}
		l.state = StateErrorWait
		l.timer = l.timing.waitTicks
	case StateErrorWait:
		if l.timer > 0 {
			l.timer--
			break
		}
		l.state = StateReady
	case StateReady:
		if l.start || (l.autostart && l.gotNull) {
			l.state = StateStarted
			l.timer = l.timing.waitTicks
		}
	case StateStarted, StateConnecting:
		l.checkDisconnect(active)
		if l.timer > 0 {
			l.timer--
			break
		}
		l.fail(ErrLinkTimeout)
	case StateRun:
		l.checkDisconnect(active)
	}
}

// checkDisconnect fires a disconnect error after the configured silence once
// the first NULL has been seen.
func (l *linkFSM) checkDisconnect(active bool) {
	if !l.gotNull {
		return
	}
	if active {
		l.idleTicks = 0
		return
	}
	l.idleTicks++
	if l.idleTicks >= l.timing.disconnectTicks {
		l.fail(ErrDisconnect)
	}
}

// handleChar applies one received character to the state machine and reports
// whether it is an N-char the Node must deliver to the application.
func (l *linkFSM) handleChar(c Character) (deliver bool) {
	switch c.Kind {
	case KindNull:
		l.gotNull = true
		if l.state == StateStarted {
			l.state = StateConnecting
			l.timer = l.timing.waitTicks
		}
		return false

	case KindFCT:
		switch l.state {
		case StateConnecting:
			l.state = StateRun
			l.addTxCredit()
		case StateRun:
			l.addTxCredit()
		default:
			// FCT before the handshake reaches Connecting.
			l.fail(ErrInvalidControlCode)
		}
		return false

	case KindTimecode:
		if l.state != StateRun {
			l.fail(ErrInvalidControlCode)
			return false
		}
		return true

	case KindData, KindEOP, KindEEP:
		if l.state != StateRun {
			l.fail(ErrInvalidControlCode)
			return false
		}
		if l.rxCredit == 0 {
			// Remote sent an N-char we never authorized.
			l.fail(ErrCreditViolation)
			return false
		}
		l.rxCredit--
		return true
	}
	return false
}

func (l *linkFSM) addTxCredit() {
	l.txCredit += FCTGrant
	if l.txCredit > MaxCredit {
		l.fail(ErrCreditViolation)
	}
}

// scheduleFCTs grants receive credit in units of FCTGrant while the
// application receive queue has room, up to the MaxCredit ceiling. free is
// the number of tokens the queue can still absorb beyond already-granted
// credit.
func (l *linkFSM) scheduleFCTs(free int) {
	if l.state != StateConnecting && l.state != StateRun {
		return
	}
	for l.rxCredit+FCTGrant <= MaxCredit && free >= FCTGrant {
		l.rxCredit += FCTGrant
		l.pendingFCT++
		free -= FCTGrant
	}
}

// takeFCT consumes one scheduled FCT for transmission.
func (l *linkFSM) takeFCT() bool {
	if l.pendingFCT == 0 {
		return false
	}
	l.pendingFCT--
	return true
}

// takeDataCredit consumes one unit of transmit credit. Sends beyond the
// granted credit are refused here, never silently emitted.
func (l *linkFSM) takeDataCredit() bool {
	if l.state != StateRun || l.txCredit == 0 {
		return false
	}
	l.txCredit--
	return true
}
