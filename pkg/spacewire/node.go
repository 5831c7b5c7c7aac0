// SPDX-License-Identifier: LGPL-2.1-or-later
// Copyright (c) 2025 SpaceWire Light contributors

package spacewire

import (
	"fmt"
	"sync"
)

// ErrQueueFull is returned by the enqueue methods when the transmit token
// queue is at capacity.
var ErrQueueFull = fmt.Errorf("spacewire: transmit queue full")

// LinkStatus is a snapshot of one link end for the application.
type LinkStatus struct {
	State     LinkState
	TxCredit  int
	RxCredit  int
	LastError ErrorKind
	Synced    bool
	Tick      uint64
}

// Node is one complete link end: recovery front-end, character decoder, link
// state machine and transmitter, plus the application-facing byte/token
// queues.
//
// StepSampling belongs to the sampling clock domain and StepSystem to the
// system clock domain; they may run on different goroutines. Everything
// else (queues, control knobs, status) is safe from any goroutine.
// LineState and StepSystem share the system domain.
type Node struct {
	cfg LinkConfig

	fe  *recoveryFrontend
	dec *Decoder
	enc *Encoder
	fsm *linkFSM

	mu        sync.Mutex
	txq       []Token
	rxq       []Token
	startReq  bool
	autostart bool
	disabled  bool
	pendingTC *byte
	lastTCIn  byte
	lastTCOut byte
	onTick    func(byte)
	txOpen    bool
	rxOpen    bool
	prevState LinkState
	tick      uint64

	stats   *Statistics
	capture *CaptureWriter
	chunk   []bool
}

// NewNode creates a link end from cfg.
func NewNode(cfg LinkConfig) (*Node, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	n := &Node{
		cfg:   cfg,
		fe:    newRecoveryFrontend(cfg.ChunkWidth),
		dec:   NewDecoder(),
		enc:   NewEncoder(),
		fsm:   newLinkFSM(cfg.timing()),
		stats: NewStatistics(),
		chunk: make([]bool, cfg.ChunkWidth),
	}
	n.enc.SetDivisor(cfg.Divisor)
	n.fsm.autostart = cfg.AutoStart
	n.autostart = cfg.AutoStart
	return n, nil
}

// Start requests link start. The request stays latched until the link is
// disabled.
func (n *Node) Start() {
	n.mu.Lock()
	n.startReq = true
	n.mu.Unlock()
}

// SetAutoStart enables or disables autostart-on-NULL.
func (n *Node) SetAutoStart(on bool) {
	n.mu.Lock()
	n.autostart = on
	n.mu.Unlock()
}

// Disable asserts or releases link-disable. Asserting it forces the link to
// ErrorReset and clears a pending start request.
func (n *Node) Disable(on bool) {
	n.mu.Lock()
	n.disabled = on
	if on {
		n.startReq = false
	}
	n.mu.Unlock()
}

// SetDivisor changes the transmit clock divisor at the next character
// boundary.
func (n *Node) SetDivisor(d int) {
	n.mu.Lock()
	n.enc.SetDivisor(d)
	n.mu.Unlock()
}

// SetTickHandler installs the callback invoked from the system domain when a
// valid (sequential) timecode arrives.
func (n *Node) SetTickHandler(fn func(byte)) {
	n.mu.Lock()
	n.onTick = fn
	n.mu.Unlock()
}

// SetCapture attaches an event capture writer, or detaches it when nil.
func (n *Node) SetCapture(w *CaptureWriter) {
	n.mu.Lock()
	n.capture = w
	n.mu.Unlock()
}

// TickIn schedules transmission of the next sequential timecode. It is
// ignored unless the link is in Run.
func (n *Node) TickIn() {
	n.mu.Lock()
	v := (n.lastTCIn + 1) & timecodeMask
	n.lastTCIn = v
	n.pendingTC = &v
	n.mu.Unlock()
}

// EnqueueByte queues one data byte for transmission.
func (n *Node) EnqueueByte(b byte) error {
	return n.enqueue(Token{Type: TokenData, Byte: b})
}

// EnqueueEOP queues an end-of-packet marker.
func (n *Node) EnqueueEOP() error {
	return n.enqueue(Token{Type: TokenEOP})
}

// EnqueueEEP queues an error-end-of-packet marker.
func (n *Node) EnqueueEEP() error {
	return n.enqueue(Token{Type: TokenEEP})
}

func (n *Node) enqueue(t Token) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.txq) >= n.cfg.QueueDepth {
		return ErrQueueFull
	}
	n.txq = append(n.txq, t)
	return nil
}

// Dequeue removes the oldest received token, if any.
func (n *Node) Dequeue() (Token, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.rxq) == 0 {
		return Token{}, false
	}
	t := n.rxq[0]
	n.rxq = n.rxq[1:]
	return t, true
}

// Status returns a snapshot of the link state.
func (n *Node) Status() LinkStatus {
	n.mu.Lock()
	defer n.mu.Unlock()
	return LinkStatus{
		State:     n.fsm.state,
		TxCredit:  n.fsm.txCredit,
		RxCredit:  n.fsm.rxCredit,
		LastError: n.fsm.lastErr,
		Synced:    n.dec.Synced(),
		Tick:      n.tick,
	}
}

// Stats returns a copy of the link statistics.
func (n *Node) Stats() Statistics {
	n.mu.Lock()
	defer n.mu.Unlock()
	s := *n.stats
	return s
}

// StepSampling advances the sampling clock domain by one tick, consuming the
// line values seen on both clock edges.
func (n *Node) StepSampling(d0, s0, d1, s1 bool) {
	n.fe.sample(d0, s0, d1, s1)
}

// LineState returns the transmitter's current data and strobe outputs. It
// belongs to the system domain.
func (n *Node) LineState() (data, strobe bool) {
	return n.enc.Lines()
}

// StepSystem advances the system clock domain by one tick: drain recovered
// bits through the decoder into the state machine, advance timers, schedule
// flow control and emit the next transmit bit.
func (n *Node) StepSystem() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.tick++

	n.fsm.start = n.startReq
	n.fsm.autostart = n.autostart
	n.fsm.disabled = n.disabled

	if n.fsm.rxEnabled() {
		nbits := n.fe.systemTick(n.chunk)
		for i := 0; i < nbits; i++ {
			c, err := n.dec.DecodeBit(n.chunk[i])
			if err != nil {
				kind := ErrParity
				if le, ok := err.(*LinkError); ok {
					kind = le.Kind
				}
				n.linkError(kind)
				break
			}
			if c != nil {
				n.receiveChar(*c)
			}
			if n.fsm.reset {
				break
			}
		}
	}

	n.fsm.tick(n.fe.active())
	n.fsm.scheduleFCTs(n.rxFree())

	n.enc.SetRunning(n.fsm.txEnabled())
	n.enc.Tick(n.nextChar)

	if n.fsm.consumeReset() {
		n.teardown()
	}
	n.fe.setEnable(n.fsm.rxEnabled())

	if n.fsm.state != n.prevState {
		if n.capture != nil {
			n.capture.RecordState(n.tick, n.fsm.state)
		}
		n.prevState = n.fsm.state
	}
}

// receiveChar applies one decoded character.
func (n *Node) receiveChar(c Character) {
	n.stats.CountRx(c)
	if n.capture != nil {
		n.capture.RecordChar(n.tick, DirRx, c)
	}
	deliver := n.fsm.handleChar(c)
	if !deliver {
		return
	}
	switch c.Kind {
	case KindTimecode:
		// A timecode is valid only when exactly one ahead of the last.
		if c.Byte == (n.lastTCOut+1)&timecodeMask && n.onTick != nil {
			n.onTick(c.Byte)
		}
		n.lastTCOut = c.Byte
	case KindData:
		n.rxOpen = true
		n.rxq = append(n.rxq, Token{Type: TokenData, Byte: c.Byte})
	case KindEOP:
		n.rxOpen = false
		n.rxq = append(n.rxq, Token{Type: TokenEOP})
	case KindEEP:
		n.rxOpen = false
		n.rxq = append(n.rxq, Token{Type: TokenEEP})
	}
}

// linkError records and applies one protocol error.
func (n *Node) linkError(kind ErrorKind) {
	n.stats.CountError(kind)
	if n.capture != nil {
		n.capture.RecordError(n.tick, kind)
	}
	n.fsm.fail(kind)
}

// SignalError injects an external link error from the surrounding system.
func (n *Node) SignalError() {
	n.mu.Lock()
	n.linkError(ErrExternalLink)
	n.mu.Unlock()
}

// rxFree returns the receive queue space not yet promised to the remote.
func (n *Node) rxFree() int {
	free := n.cfg.QueueDepth - len(n.rxq) - n.fsm.rxCredit
	if free < 0 {
		free = 0
	}
	return free
}

// teardown recreates the per-session receive and transmit pipeline after a
// transition into ErrorReset.
func (n *Node) teardown() {
	n.stats.LinkResets++
	n.dec.Reset()
	n.enc.SetRunning(false)
	n.fe.reset()
	n.pendingTC = nil
	if n.rxOpen {
		// Truncate the packet in progress for the application.
		n.rxq = append(n.rxq, Token{Type: TokenEEP})
		n.rxOpen = false
	}
	if n.txOpen {
		// Discard the remainder of the partially transmitted packet.
		for len(n.txq) > 0 {
			t := n.txq[0]
			n.txq = n.txq[1:]
			if t.Type != TokenData {
				break
			}
		}
		n.txOpen = false
	}
}

// nextChar supplies the transmitter with the next character at a character
// boundary. Priority: timecode, then FCT, then data, then NULL.
func (n *Node) nextChar() *Character {
	if n.pendingTC != nil && n.fsm.state == StateRun {
		v := *n.pendingTC
		n.pendingTC = nil
		n.stats.TxTimecodes++
		c := TimecodeChar(v)
		n.recordTx(c)
		return &c
	}
	if n.fsm.takeFCT() {
		n.stats.TxFCTs++
		c := Character{Kind: KindFCT}
		n.recordTx(c)
		return &c
	}
	if n.fsm.state == StateRun && len(n.txq) > 0 && n.fsm.txCredit > 0 {
		tok := n.txq[0]
		if n.fsm.takeDataCredit() {
			n.txq = n.txq[1:]
			var c Character
			switch tok.Type {
			case TokenData:
				n.txOpen = true
				n.stats.TxData++
				c = DataChar(tok.Byte)
			case TokenEOP:
				n.txOpen = false
				c = Character{Kind: KindEOP}
			case TokenEEP:
				n.txOpen = false
				c = Character{Kind: KindEEP}
			}
			n.recordTx(c)
			return &c
		}
	}
	return &Character{Kind: KindNull}
}

func (n *Node) recordTx(c Character) {
	if n.capture != nil {
		n.capture.RecordChar(n.tick, DirTx, c)
	}
}
