// SPDX-License-Identifier: LGPL-2.1-or-later
// Copyright (c) 2025 SpaceWire Light contributors

package spacewire

import (
	"fmt"
	"time"
)

// Statistics tracks per-link character counts, error counts and rates.
type Statistics struct {
	StartTime      time.Time
	LastUpdateTime time.Time

	// Receive counters
	RxCharacters uint64
	RxNulls      uint64
	RxFCTs       uint64
	RxData       uint64
	RxEOPs       uint64
	RxEEPs       uint64
	RxTimecodes  uint64

	// Transmit counters
	TxFCTs      uint64
	TxData      uint64
	TxTimecodes uint64

	// Error counters
	ParityErrors     uint64
	InvalidControls  uint64
	CreditViolations uint64
	Disconnects      uint64
	Timeouts         uint64
	ExternalErrors   uint64
	LinkResets       uint64

	// Rates (calculated)
	CharRate  float64 // received characters/sec
	ErrorRate float64 // errors/sec
}

// NewStatistics creates a statistics tracker.
func NewStatistics() *Statistics {
	now := time.Now()
	return &Statistics{
		StartTime:      now,
		LastUpdateTime: now,
	}
}

// CountRx records one received character or token.
func (s *Statistics) CountRx(c Character) {
	s.RxCharacters++
	switch c.Kind {
	case KindNull:
		s.RxNulls++
	case KindFCT:
		s.RxFCTs++
	case KindData:
		s.RxData++
	case KindEOP:
		s.RxEOPs++
	case KindEEP:
		s.RxEEPs++
	case KindTimecode:
		s.RxTimecodes++
	}
}

// CountError records one protocol error by kind.
func (s *Statistics) CountError(kind ErrorKind) {
	switch kind {
	case ErrParity:
		s.ParityErrors++
	case ErrInvalidControlCode:
		s.InvalidControls++
	case ErrCreditViolation:
		s.CreditViolations++
	case ErrDisconnect:
		s.Disconnects++
	case ErrLinkTimeout:
		s.Timeouts++
	case ErrExternalLink:
		s.ExternalErrors++
	}
}

// TotalErrors returns the sum of all error counters.
func (s *Statistics) TotalErrors() uint64 {
	return s.ParityErrors + s.InvalidControls + s.CreditViolations +
		s.Disconnects + s.Timeouts + s.ExternalErrors
}

// UpdateRates recalculates the character and error rates over the elapsed
// wall-clock time.
func (s *Statistics) UpdateRates() {
	now := time.Now()
	elapsed := now.Sub(s.StartTime).Seconds()
	if elapsed > 0 {
		s.CharRate = float64(s.RxCharacters) / elapsed
		s.ErrorRate = float64(s.TotalErrors()) / elapsed
	}
	s.LastUpdateTime = now
}

// Summary returns a one-line text summary for the CLI.
func (s *Statistics) Summary() string {
	return fmt.Sprintf(
		"rx=%d (null=%d fct=%d data=%d eop=%d eep=%d tc=%d) tx=(fct=%d data=%d tc=%d) errors=%d resets=%d",
		s.RxCharacters, s.RxNulls, s.RxFCTs, s.RxData, s.RxEOPs, s.RxEEPs,
		s.RxTimecodes, s.TxFCTs, s.TxData, s.TxTimecodes,
		s.TotalErrors(), s.LinkResets)
}
