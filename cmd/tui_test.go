// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/Thermoquad/aerostat/pkg/config"
	"github.com/Thermoquad/aerostat/pkg/link"
	"github.com/Thermoquad/aerostat/pkg/relay"
	"github.com/Thermoquad/aerostat/pkg/session"
	"github.com/Thermoquad/aerostat/pkg/telemetry"
)

func setupSession(t *testing.T) *session.Session {
	t.Helper()
	cfg = config.Default()
	cfg.Recording.LogsDir = t.TempDir()
	cfg.Dummy.UpdateInterval = time.Hour
	logger = zap.NewNop()

	sess, err := newSession()
	if err != nil {
		t.Fatalf("newSession: %v", err)
	}
	t.Cleanup(func() { sess.Close() })
	return sess
}

func keyPress(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestMonitorModel_Batch(t *testing.T) {
	sess := setupSession(t)
	m := initialMonitorModel(sess, "test")

	rec := telemetry.Record{Fields: []string{"21.5", "40.1"}, Raw: "21.5;40.1", Time: time.Now()}
	updated, _ := m.Update(batchMsg{
		raw:     []string{"21.5;40.1"},
		records: []telemetry.Record{rec},
		events: []link.Event{
			{Kind: link.EventReconnectAttemptFailed, Message: "reconnect attempt 1 failed"},
			{Kind: link.EventWriteFailed, Message: "write failed"},
		},
	})
	m = updated.(monitorModel)

	if m.lastRecord == nil || m.lastRecord.Raw != "21.5;40.1" {
		t.Fatalf("lastRecord = %+v, want the batch record", m.lastRecord)
	}
	if len(m.rawLog) != 1 {
		t.Errorf("rawLog has %d lines, want 1", len(m.rawLog))
	}
	// the alarm raises the badge instead of a log line
	if len(m.eventLog) != 1 || !m.eventLog[0].isError {
		t.Errorf("eventLog = %+v, want one error entry", m.eventLog)
	}
	if !time.Now().Before(m.alarmUntil) {
		t.Error("alarm not raised")
	}

	view := m.View()
	for _, want := range []string{"ALARM", "Temperature:", "Humidity:", "21.5;40.1"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

func TestMonitorModel_LogTrim(t *testing.T) {
	sess := setupSession(t)
	m := initialMonitorModel(sess, "test")

	for i := 0; i < maxLogEntries+50; i++ {
		m.addLogEntry(fmt.Sprintf("entry %d", i), false)
	}
	if len(m.eventLog) != maxLogEntries {
		t.Fatalf("eventLog has %d entries, want %d", len(m.eventLog), maxLogEntries)
	}
	if got := m.eventLog[len(m.eventLog)-1].message; got != fmt.Sprintf("entry %d", maxLogEntries+49) {
		t.Errorf("last entry = %q", got)
	}

	raw := make([]string, maxRawLines+10)
	m.applyBatch(batchMsg{raw: raw})
	if len(m.rawLog) != maxRawLines {
		t.Errorf("rawLog has %d lines, want %d", len(m.rawLog), maxRawLines)
	}
}

func TestMonitorModel_RecordingToggle(t *testing.T) {
	sess := setupSession(t)
	var model tea.Model = initialMonitorModel(sess, "test")

	model, _ = model.Update(keyPress("r"))
	if !sess.Recording() {
		t.Fatal("recording not switched on")
	}
	model, _ = model.Update(keyPress("r"))
	if sess.Recording() {
		t.Fatal("recording not switched off")
	}
	if !strings.Contains(model.View(), "Recording off") {
		t.Error("toggle not logged")
	}
}

func TestMonitorModel_IntervalKeys(t *testing.T) {
	sess := setupSession(t)
	if err := sess.StartDummy(); err != nil {
		t.Fatalf("StartDummy: %v", err)
	}
	var model tea.Model = initialMonitorModel(sess, "test")

	model, _ = model.Update(keyPress("+"))
	if got := sess.DummyInterval(); got != 2*time.Hour {
		t.Errorf("after +: interval = %s, want 2h", got)
	}
	model, _ = model.Update(keyPress("-"))
	model, _ = model.Update(keyPress("-"))
	if got := sess.DummyInterval(); got != 30*time.Minute {
		t.Errorf("after - -: interval = %s, want 30m", got)
	}

	// the send box only exists for a device session
	model, _ = model.Update(tea.KeyMsg{Type: tea.KeyTab})
	if model.(monitorModel).sendFocused {
		t.Error("send box focused in dummy mode")
	}
}

func TestMonitorModel_Quit(t *testing.T) {
	sess := setupSession(t)
	model, cmd := initialMonitorModel(sess, "test").Update(keyPress("q"))
	if !model.(monitorModel).quitting || cmd == nil {
		t.Error("q did not quit")
	}
}

func TestPump_DeliversBatches(t *testing.T) {
	sess := setupSession(t)
	if err := sess.SetDummyInterval(5 * time.Millisecond); err != nil {
		t.Fatal(err)
	}
	if err := sess.StartDummy(); err != nil {
		t.Fatalf("StartDummy: %v", err)
	}

	p := newPump(sess, relay.NewHub(nil))
	batches := make(chan batchMsg, 64)
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		p.run(func(b batchMsg) {
			select {
			case batches <- b:
			default:
			}
		})
	}()

	var records, raw int
	timeout := time.After(2 * time.Second)
	for records == 0 || raw == 0 {
		select {
		case b := <-batches:
			records += len(b.records)
			raw += len(b.raw)
		case <-timeout:
			t.Fatalf("got %d records, %d raw lines; want both", records, raw)
		}
	}

	p.stop()
	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("pump did not stop")
	}
}
