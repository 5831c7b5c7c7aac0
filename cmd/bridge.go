// SPDX-License-Identifier: LGPL-2.1-or-later
// Copyright (c) 2025 SpaceWire Light contributors

package cmd

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/freecores/spacewire-light/pkg/spacewire"
)

var (
	bridgeTickHz int
	bridgeBatch  int
)

var bridgeCmd = &cobra.Command{
	Use:   "bridge",
	Short: "Attach a local link end to a remote peer over serial or WebSocket",
	Long: `Run one complete link end locally and carry its physical data/strobe
signal to a remote peer as framed sample batches over a serial port or a
WebSocket.

Two spwlight processes bridged together perform the full ECSS handshake and
exchange packets exactly as the in-process simulation does. One side dials
with --url (or attaches with --port), the other accepts with --listen.

Packets are sent by typing hex bytes on stdin, one packet per line; received
packets are printed as they complete.`,
	RunE: runBridge,
}

func init() {
	rootCmd.AddCommand(bridgeCmd)
	bridgeCmd.Flags().IntVar(&bridgeTickHz, "tick-hz", 200, "Stepping cycles per second")
	bridgeCmd.Flags().IntVar(&bridgeBatch, "batch", 128, "Sampling ticks simulated per cycle (samples per frame)")
}

func runBridge(cmd *cobra.Command, args []string) error {
	cfg, err := linkConfig()
	if err != nil {
		return err
	}
	node, err := spacewire.NewNode(cfg)
	if err != nil {
		return err
	}

	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}
	defer conn.Close()
	log.Info("bridge up", "connection", connInfo)

	// Remote line samples, decoded off the connection.
	inCh := make(chan spacewire.SamplePair, 4*bridgeBatch)
	readErr := make(chan error, 1)
	go func() {
		dec := spacewire.NewFrameDecoder()
		buf := make([]byte, 1024)
		for {
			n, err := conn.Read(buf)
			if err != nil {
				readErr <- err
				return
			}
			for _, b := range buf[:n] {
				samples, err := dec.DecodeByte(b)
				if err != nil {
					log.Debug("bad sample frame", "err", err)
					continue
				}
				for _, sp := range samples {
					inCh <- sp
				}
			}
		}
	}()

	// Outgoing packets from stdin, one hex line per packet.
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			text := strings.ReplaceAll(scanner.Text(), " ", "")
			if text == "" {
				continue
			}
			data, err := hex.DecodeString(text)
			if err != nil {
				log.Error("invalid hex packet", "err", err)
				continue
			}
			for _, b := range data {
				if err := node.EnqueueByte(b); err != nil {
					log.Error("transmit queue full, packet dropped")
					break
				}
			}
			if err := node.EnqueueEOP(); err != nil {
				log.Error("transmit queue full, packet truncated")
			}
		}
	}()

	node.Start()
	node.SetTickHandler(func(v byte) {
		log.Info("timecode tick", "value", v)
	})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	interval := time.Second / time.Duration(bridgeTickHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var (
		lastIn    spacewire.SamplePair
		outBatch  = make([]spacewire.SamplePair, 0, bridgeBatch)
		rxPacket  []byte
		lastState = node.Status().State
	)
	for {
		select {
		case <-sigCh:
			stats := node.Stats()
			log.Info("shutting down", "stats", stats.Summary())
			return nil
		case err := <-readErr:
			return fmt.Errorf("bridge connection lost: %w", err)
		case <-ticker.C:
		}

		// The local system and sampling domains advance together here;
		// the remote end is the second clock domain pair.
		for i := 0; i < bridgeBatch; i++ {
			node.StepSystem()

			select {
			case lastIn = <-inCh:
			default:
				// Hold the last line state; a silent remote looks like
				// a disconnected link, which is what it is.
			}
			node.StepSampling(lastIn.Data, lastIn.Strobe, lastIn.Data, lastIn.Strobe)

			d, s := node.LineState()
			outBatch = append(outBatch, spacewire.SamplePair{Data: d, Strobe: s})
			if len(outBatch) == spacewire.MaxFrameSamples {
				if err := writeFrame(conn, outBatch); err != nil {
					return err
				}
				outBatch = outBatch[:0]
			}
		}
		if len(outBatch) > 0 {
			if err := writeFrame(conn, outBatch); err != nil {
				return err
			}
			outBatch = outBatch[:0]
		}

		if st := node.Status().State; st != lastState {
			log.Info("link state", "state", st)
			lastState = st
		}
		for {
			tok, ok := node.Dequeue()
			if !ok {
				break
			}
			switch tok.Type {
			case spacewire.TokenData:
				rxPacket = append(rxPacket, tok.Byte)
			case spacewire.TokenEOP:
				log.Info("packet received", "bytes", hex.EncodeToString(rxPacket))
				rxPacket = rxPacket[:0]
			case spacewire.TokenEEP:
				log.Warn("packet truncated by link error", "bytes", hex.EncodeToString(rxPacket))
				rxPacket = rxPacket[:0]
			}
		}
	}
}

func writeFrame(conn Connection, samples []spacewire.SamplePair) error {
	frame, err := spacewire.EncodeFrame(samples)
	if err != nil {
		return err
	}
	if _, err := conn.Write(frame); err != nil {
		return fmt.Errorf("bridge write failed: %w", err)
	}
	return nil
}
