// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Thermoquad/aerostat/pkg/link"
	"github.com/Thermoquad/aerostat/pkg/session"
	"github.com/Thermoquad/aerostat/pkg/telemetry"
)

const (
	maxLogEntries = 100
	maxRawLines   = 200
	alarmHold     = 2 * time.Second
)

// Event log entry
type logEntry struct {
	timestamp time.Time
	message   string
	isError   bool
}

// monitorModel is the Bubble Tea model shared by monitor and dummy
type monitorModel struct {
	sess       *session.Session
	connInfo   string
	fieldNames []string

	lastRecord *telemetry.Record
	rawLog     []string
	eventLog   []logEntry
	alarmUntil time.Time

	sendInput   textinput.Model
	sendFocused bool

	width    int
	height   int
	quitting bool
}

type tickMsg time.Time

func initialMonitorModel(sess *session.Session, connInfo string) monitorModel {
	ti := textinput.New()
	ti.Placeholder = "text to send"
	ti.CharLimit = 256
	ti.Width = 40

	return monitorModel{
		sess:       sess,
		connInfo:   connInfo,
		fieldNames: cfg.Display.FieldNames,
		rawLog:     make([]string, 0, maxRawLines),
		eventLog:   make([]logEntry, 0),
		sendInput:  ti,
		width:      80,
		height:     24,
	}
}

func (m monitorModel) Init() tea.Cmd {
	return tickCmd()
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tickMsg:
		return m, tickCmd()

	case batchMsg:
		m.applyBatch(msg)
	}

	return m, nil
}

func (m monitorModel) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.sendFocused {
		switch msg.String() {
		case "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "esc", "tab":
			m.sendFocused = false
			m.sendInput.Blur()
			return m, nil
		case "enter":
			text := m.sendInput.Value()
			if text == "" {
				return m, nil
			}
			if err := m.sess.Send(text + "\n"); err != nil {
				m.addLogEntry(fmt.Sprintf("SEND FAILED: %v", err), true)
			} else {
				m.addLogEntry("Sent: "+text, false)
				m.sendInput.Reset()
			}
			return m, nil
		}
		var cmd tea.Cmd
		m.sendInput, cmd = m.sendInput.Update(msg)
		return m, cmd
	}

	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		return m, tea.Quit

	case "r":
		on := !m.sess.Recording()
		m.sess.SetRecording(on)
		if on {
			m.addLogEntry("Recording on", false)
		} else {
			m.addLogEntry("Recording off", false)
		}

	case "+", "=":
		m.scaleInterval(2)

	case "-", "_":
		m.scaleInterval(0.5)

	case "tab":
		if m.sess.Mode() == session.ModeDevice {
			m.sendFocused = true
			return m, m.sendInput.Focus()
		}
	}

	return m, nil
}

func (m *monitorModel) scaleInterval(factor float64) {
	if m.sess.Mode() != session.ModeDummy {
		return
	}
	next := time.Duration(float64(m.sess.DummyInterval()) * factor)
	if next < 10*time.Millisecond {
		next = 10 * time.Millisecond
	}
	if err := m.sess.SetDummyInterval(next); err != nil {
		m.addLogEntry(err.Error(), true)
		return
	}
	m.addLogEntry(fmt.Sprintf("Interval %s", next), false)
}

func (m *monitorModel) applyBatch(b batchMsg) {
	m.rawLog = append(m.rawLog, b.raw...)
	if len(m.rawLog) > maxRawLines {
		m.rawLog = m.rawLog[len(m.rawLog)-maxRawLines:]
	}

	if n := len(b.records); n > 0 {
		rec := b.records[n-1]
		m.lastRecord = &rec
	}

	for _, ev := range b.events {
		if ev.Kind == link.EventReconnectAttemptFailed {
			m.alarmUntil = time.Now().Add(alarmHold)
			continue
		}
		m.addLogEntry(ev.Message, ev.Kind.IsError())
	}
}

func (m *monitorModel) addLogEntry(message string, isError bool) {
	m.eventLog = append(m.eventLog, logEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	})

	// Keep only last N entries
	if len(m.eventLog) > maxLogEntries {
		m.eventLog = m.eventLog[len(m.eventLog)-maxLogEntries:]
	}
}

func (m monitorModel) fieldName(i int) string {
	if i < len(m.fieldNames) {
		return m.fieldNames[i]
	}
	return fmt.Sprintf("Field %d", i)
}

func (m monitorModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	// Styles
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

	warningStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("11"))

	badgeStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("0")).
		Padding(0, 1)

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	// Header
	var s strings.Builder
	s.WriteString(titleStyle.Render("AEROSTAT"))
	if m.sess.Recording() {
		s.WriteString(" ")
		s.WriteString(badgeStyle.Background(lipgloss.Color("10")).Render("REC"))
	}
	if time.Now().Before(m.alarmUntil) {
		s.WriteString(" ")
		s.WriteString(badgeStyle.Background(lipgloss.Color("9")).Render("ALARM"))
	}
	s.WriteString("\n")
	s.WriteString(headerStyle.Render(fmt.Sprintf("%s | Press 'q' to quit", m.connInfo)))
	s.WriteString("\n")

	status := m.sess.StatusLine()
	switch m.sess.State() {
	case link.Unplugged, link.ReconnectRetrying:
		s.WriteString(errorStyle.Render(status))
	default:
		s.WriteString(valueStyle.Render(status))
	}
	s.WriteString("\n\n")

	// Statistics
	stats := m.sess.Stats()
	statsContent := strings.Builder{}
	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
		labelStyle.Render("Lines:"), valueStyle.Render(fmt.Sprintf("%d", stats.TotalLines)),
		labelStyle.Render("Records:"), valueStyle.Render(fmt.Sprintf("%d", stats.Records+stats.DummyTicks)),
		labelStyle.Render("Rejected:"), headerStyle.Render(fmt.Sprintf("%d", stats.Rejected)),
	))
	if stats.DecodeErrors > 0 || stats.DeviceErrors > 0 || stats.Reconnects > 0 {
		statsContent.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
			labelStyle.Render("Decode Errors:"), errorStyle.Render(fmt.Sprintf("%d", stats.DecodeErrors)),
			labelStyle.Render("Unplugs:"), errorStyle.Render(fmt.Sprintf("%d", stats.DeviceErrors)),
			labelStyle.Render("Reconnects:"), warningStyle.Render(fmt.Sprintf("%d", stats.Reconnects)),
		))
	}
	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s",
		labelStyle.Render("Record Rate:"), valueStyle.Render(fmt.Sprintf("%.1f rec/s", stats.RecordRate)),
		labelStyle.Render("Error Rate:"), func() string {
			if stats.ErrorRate > 0 {
				return errorStyle.Render(fmt.Sprintf("%.1f err/s", stats.ErrorRate))
			}
			return valueStyle.Render(fmt.Sprintf("%.1f err/s", stats.ErrorRate))
		}(),
	))
	s.WriteString(boxStyle.Render(statsContent.String()))
	s.WriteString("\n\n")

	// Latest record
	if m.lastRecord != nil {
		s.WriteString(labelStyle.Render("Latest Record:"))
		s.WriteString("\n")
		recordContent := strings.Builder{}
		for i, field := range m.lastRecord.Fields {
			recordContent.WriteString(fmt.Sprintf("%s %s\n",
				labelStyle.Render(m.fieldName(i)+":"), valueStyle.Render(field)))
		}
		recordContent.WriteString(headerStyle.Render(m.lastRecord.Time.Format("15:04:05.000")))
		s.WriteString(boxStyle.Render(recordContent.String()))
		s.WriteString("\n\n")
	}

	// Raw lines
	s.WriteString(labelStyle.Render("Raw:"))
	s.WriteString("\n")
	rawHeight := (m.height - 20) / 2
	if rawHeight < 3 {
		rawHeight = 3
	}
	rawContent := strings.Builder{}
	if len(m.rawLog) == 0 {
		rawContent.WriteString(headerStyle.Render("  (nothing received yet)"))
	} else {
		start := len(m.rawLog) - rawHeight
		if start < 0 {
			start = 0
		}
		rawContent.WriteString(strings.Join(m.rawLog[start:], "\n"))
	}
	s.WriteString(boxStyle.Width(m.width - 4).Render(rawContent.String()))
	s.WriteString("\n")

	// Event log
	s.WriteString(labelStyle.Render("Recent Events:"))
	s.WriteString("\n")
	logHeight := rawHeight
	logContent := strings.Builder{}
	if len(m.eventLog) == 0 {
		logContent.WriteString(headerStyle.Render("  (no events yet)"))
	} else {
		start := len(m.eventLog) - logHeight
		if start < 0 {
			start = 0
		}
		for _, entry := range m.eventLog[start:] {
			timestamp := entry.timestamp.Format("01/02/06 15:04:05.000")
			if entry.isError {
				logContent.WriteString(fmt.Sprintf("%s %s\n",
					headerStyle.Render(timestamp),
					errorStyle.Render("✗ "+entry.message),
				))
			} else {
				logContent.WriteString(fmt.Sprintf("%s %s\n",
					headerStyle.Render(timestamp),
					warningStyle.Render("ℹ "+entry.message),
				))
			}
		}
	}
	s.WriteString(boxStyle.Width(m.width - 4).Render(logContent.String()))

	// Send box
	if m.sess.Mode() == session.ModeDevice {
		s.WriteString("\n")
		if m.sendFocused {
			s.WriteString(labelStyle.Render("Send: "))
		} else {
			s.WriteString(headerStyle.Render("Send (tab): "))
		}
		s.WriteString(m.sendInput.View())
	}

	return s.String()
}
