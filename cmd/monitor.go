// SPDX-License-Identifier: LGPL-2.1-or-later
// Copyright (c) 2025 SpaceWire Light contributors

package cmd

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/freecores/spacewire-light/pkg/spacewire"
)

var (
	monTicksPerFrame int
	monLineDelay     int
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Watch a simulated link come up in a terminal UI",
	Long: `Run the two-node simulation with a live terminal UI showing both link
states, flow-control credit and statistics.

Keys:
  ctrl+s  start both ends
  ctrl+d  toggle link-disable on node A
  ctrl+e  inject an external link error on node A
  ctrl+t  send a timecode from node A
  enter   send the hex bytes in the input field as a packet from node A
  q       quit`,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
	monitorCmd.Flags().IntVar(&monTicksPerFrame, "ticks-per-frame", 20000, "System ticks simulated per UI frame")
	monitorCmd.Flags().IntVar(&monLineDelay, "line-delay", 2, "One-way line delay in sampling ticks")
}

type monitorLogEntry struct {
	timestamp time.Time
	message   string
	isError   bool
}

type monitorModel struct {
	sim   *spacewire.Simulator
	input textinput.Model

	prevA spacewire.LinkStatus
	prevB spacewire.LinkStatus

	eventLog      []monitorLogEntry
	maxLogEntries int
	aDisabled     bool
	rxBytes       int
	width         int
	height        int
	quitting      bool
}

type frameMsg time.Time

func frameCmd() tea.Cmd {
	return tea.Tick(50*time.Millisecond, func(t time.Time) tea.Msg {
		return frameMsg(t)
	})
}

func initialMonitorModel(sim *spacewire.Simulator) monitorModel {
	ti := textinput.New()
	ti.Placeholder = "01 02 03"
	ti.CharLimit = 48
	ti.Width = 24
	ti.Focus()

	return monitorModel{
		sim:           sim,
		input:         ti,
		prevA:         sim.A.Status(),
		prevB:         sim.B.Status(),
		eventLog:      make([]monitorLogEntry, 0),
		maxLogEntries: 100,
		width:         80,
		height:        24,
	}
}

func (m monitorModel) Init() tea.Cmd {
	return tea.Batch(frameCmd(), tea.EnterAltScreen)
}

func (m monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "ctrl+s":
			m.sim.A.Start()
			m.sim.B.Start()
			m.addLogEntry("link start requested on both ends", false)
			return m, nil
		case "ctrl+d":
			m.aDisabled = !m.aDisabled
			m.sim.A.Disable(m.aDisabled)
			m.addLogEntry(fmt.Sprintf("node A disable=%v", m.aDisabled), false)
			return m, nil
		case "ctrl+e":
			m.sim.A.SignalError()
			m.addLogEntry("external link error injected on node A", true)
			return m, nil
		case "ctrl+t":
			m.sim.A.TickIn()
			m.addLogEntry("timecode queued on node A", false)
			return m, nil
		case "enter":
			m.sendPacket()
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case frameMsg:
		m.sim.Run(monTicksPerFrame)
		m.noteTransitions()
		for {
			tok, ok := m.sim.B.Dequeue()
			if !ok {
				break
			}
			if tok.Type == spacewire.TokenData {
				m.rxBytes++
			} else {
				m.addLogEntry(fmt.Sprintf("node B received packet end: %s", tok), false)
			}
		}
		return m, frameCmd()
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// sendPacket parses the hex input field and queues it as one packet on A.
func (m *monitorModel) sendPacket() {
	text := strings.ReplaceAll(m.input.Value(), " ", "")
	if text == "" {
		text = strings.ReplaceAll(m.input.Placeholder, " ", "")
	}
	data, err := hex.DecodeString(text)
	if err != nil {
		m.addLogEntry(fmt.Sprintf("invalid hex input: %v", err), true)
		return
	}
	for _, b := range data {
		if err := m.sim.A.EnqueueByte(b); err != nil {
			m.addLogEntry(err.Error(), true)
			return
		}
	}
	if err := m.sim.A.EnqueueEOP(); err != nil {
		m.addLogEntry(err.Error(), true)
		return
	}
	m.addLogEntry(fmt.Sprintf("queued %d byte packet on node A", len(data)), false)
	m.input.SetValue("")
}

// noteTransitions logs state and error changes since the last frame. Ticks
// run in batches, so only the latest state within a frame is observed.
func (m *monitorModel) noteTransitions() {
	a, b := m.sim.A.Status(), m.sim.B.Status()
	if a.State != m.prevA.State {
		m.addLogEntry(fmt.Sprintf("node A: %s -> %s", m.prevA.State, a.State), false)
	}
	if b.State != m.prevB.State {
		m.addLogEntry(fmt.Sprintf("node B: %s -> %s", m.prevB.State, b.State), false)
	}
	if a.LastError != m.prevA.LastError && a.LastError != spacewire.ErrNone {
		m.addLogEntry(fmt.Sprintf("node A error: %s", a.LastError), true)
	}
	if b.LastError != m.prevB.LastError && b.LastError != spacewire.ErrNone {
		m.addLogEntry(fmt.Sprintf("node B error: %s", b.LastError), true)
	}
	m.prevA, m.prevB = a, b
}

func (m *monitorModel) addLogEntry(message string, isError bool) {
	m.eventLog = append(m.eventLog, monitorLogEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	})
	if len(m.eventLog) > m.maxLogEntries {
		m.eventLog = m.eventLog[len(m.eventLog)-m.maxLogEntries:]
	}
}

func (m monitorModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)

	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	labelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")).
		Bold(true)

	valueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))

	errorStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("9")).
		Bold(true)

	infoStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("11"))

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	var s strings.Builder
	s.WriteString(titleStyle.Render("SPWLIGHT - LINK MONITOR"))
	s.WriteString("\n")
	s.WriteString(headerStyle.Render(fmt.Sprintf(
		"tick %d | ^S start, ^D disable, ^E error, ^T timecode, enter send, q quit", m.sim.Ticks())))
	s.WriteString("\n\n")

	nodes := []struct {
		name   string
		status spacewire.LinkStatus
		stats  spacewire.Statistics
	}{
		{"Node A", m.sim.A.Status(), m.sim.A.Stats()},
		{"Node B", m.sim.B.Status(), m.sim.B.Stats()},
	}
	var panels []string
	for _, n := range nodes {
		content := strings.Builder{}
		stateStyle := valueStyle
		if n.status.State != spacewire.StateRun {
			stateStyle = infoStyle
		}
		content.WriteString(fmt.Sprintf("%s\n", labelStyle.Render(n.name)))
		content.WriteString(fmt.Sprintf("%s %s\n",
			labelStyle.Render("State:"), stateStyle.Render(n.status.State.String())))
		content.WriteString(fmt.Sprintf("%s %d  %s %d\n",
			labelStyle.Render("TX credit:"), n.status.TxCredit,
			labelStyle.Render("RX credit:"), n.status.RxCredit))
		content.WriteString(fmt.Sprintf("%s %d null, %d fct, %d data\n",
			labelStyle.Render("RX:"), n.stats.RxNulls, n.stats.RxFCTs, n.stats.RxData))
		content.WriteString(fmt.Sprintf("%s %d  %s %d",
			labelStyle.Render("Errors:"), n.stats.TotalErrors(),
			labelStyle.Render("Resets:"), n.stats.LinkResets))
		if n.status.LastError != spacewire.ErrNone {
			content.WriteString(fmt.Sprintf("\n%s %s",
				labelStyle.Render("Last error:"), errorStyle.Render(n.status.LastError.String())))
		}
		panels = append(panels, boxStyle.Render(content.String()))
	}
	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, panels...))
	s.WriteString("\n\n")

	s.WriteString(fmt.Sprintf("%s %s   %s %d bytes\n\n",
		labelStyle.Render("Send (hex):"), m.input.View(),
		labelStyle.Render("B received:"), m.rxBytes))

	s.WriteString(labelStyle.Render("Recent Events:"))
	s.WriteString("\n")

	logHeight := m.height - 18
	if logHeight < 5 {
		logHeight = 5
	}
	logContent := strings.Builder{}
	startIdx := len(m.eventLog) - logHeight
	if startIdx < 0 {
		startIdx = 0
	}
	if len(m.eventLog) == 0 {
		logContent.WriteString(headerStyle.Render("  (no events yet)"))
	} else {
		for i := startIdx; i < len(m.eventLog); i++ {
			entry := m.eventLog[i]
			timestamp := entry.timestamp.Format("15:04:05.000")
			if entry.isError {
				logContent.WriteString(fmt.Sprintf("%s %s\n",
					headerStyle.Render(timestamp), errorStyle.Render("✗ "+entry.message)))
			} else {
				logContent.WriteString(fmt.Sprintf("%s %s\n",
					headerStyle.Render(timestamp), infoStyle.Render("ℹ "+entry.message)))
			}
		}
	}
	s.WriteString(boxStyle.Width(m.width - 4).Render(logContent.String()))

	return s.String()
}

func runMonitor(cmd *cobra.Command, args []string) error {
	cfg, err := linkConfig()
	if err != nil {
		return err
	}
	sim, err := spacewire.NewSimulator(cfg, monLineDelay)
	if err != nil {
		return err
	}

	p := tea.NewProgram(initialMonitorModel(sim))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("monitor UI failed: %w", err)
	}
	return nil
}
