// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/Thermoquad/aerostat/pkg/link"
	"github.com/Thermoquad/aerostat/pkg/relay"
	"github.com/Thermoquad/aerostat/pkg/session"
)

// Shell flags shared by monitor and dummy
var (
	shellRecord bool
	shellRelay  bool
	shellPlain  bool
)

// runShell starts a session with start, then drives the TUI when stdout is
// a terminal or prints plain lines otherwise. It returns when the user quits
// or the process is interrupted.
func runShell(start func(*session.Session) error, connInfo string) error {
	sess, err := newSession()
	if err != nil {
		return err
	}
	defer sess.Close()

	srv, err := startRelay(shellRelay)
	if err != nil {
		return err
	}
	defer stopRelay(srv)

	var hub *relay.Hub
	if srv != nil {
		hub = srv.Hub()
	}

	sess.SetRecording(shellRecord || cfg.Recording.Enabled)
	if err := start(sess); err != nil {
		return err
	}

	p := newPump(sess, hub)

	if !shellPlain && term.IsTerminal(int(os.Stdout.Fd())) {
		return runTUI(sess, p, connInfo)
	}
	return runText(sess, p)
}

func runTUI(sess *session.Session, p *pump, connInfo string) error {
	m := initialMonitorModel(sess, connInfo)
	prog := tea.NewProgram(m, tea.WithAltScreen())

	go p.run(func(b batchMsg) { prog.Send(b) })
	defer p.stop()

	if _, err := prog.Run(); err != nil {
		return fmt.Errorf("TUI error: %v", err)
	}
	return nil
}

// runText prints every raw line on stdout and events on stderr. A failed
// reconnect attempt rings the terminal bell when the alarm is enabled.
func runText(sess *session.Session, p *pump) error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	fmt.Fprintln(os.Stderr, sess.StatusLine())

	finished := make(chan struct{})
	go func() {
		defer close(finished)
		p.run(printBatch)
	}()

	select {
	case sig := <-sigChan:
		logger.Info("Signal received, stopping", zap.String("signal", sig.String()))
	case <-finished:
	}

	p.stop()
	<-finished

	stats := sess.Stats()
	fmt.Fprintf(os.Stderr, "\n%s\n", strings.TrimSpace(stats.String()))
	return nil
}

func printBatch(b batchMsg) {
	for _, text := range b.raw {
		fmt.Println(text)
	}
	for _, ev := range b.events {
		switch {
		case ev.Kind == link.EventReconnectAttemptFailed:
			fmt.Fprint(os.Stderr, "\a")
		case ev.Kind == link.EventUnplugged, ev.Kind == link.EventReplugged:
			// already printed from the raw channel
		case ev.Kind.IsError():
			fmt.Fprintf(os.Stderr, "%s %s: %s\n", ev.Time.Format("15:04:05.000"), ev.Kind, ev.Message)
		default:
			fmt.Fprintf(os.Stderr, "%s %s\n", ev.Time.Format("15:04:05.000"), ev.Message)
		}
	}
}
