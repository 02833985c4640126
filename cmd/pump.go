// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/Thermoquad/aerostat/pkg/link"
	"github.com/Thermoquad/aerostat/pkg/logging"
	"github.com/Thermoquad/aerostat/pkg/relay"
	"github.com/Thermoquad/aerostat/pkg/session"
	"github.com/Thermoquad/aerostat/pkg/telemetry"
)

const batchInterval = 50 * time.Millisecond

// batchMsg carries everything the session produced since the last batch
type batchMsg struct {
	raw     []string
	records []telemetry.Record
	events  []link.Event
}

func (b batchMsg) empty() bool {
	return len(b.raw) == 0 && len(b.records) == 0 && len(b.events) == 0
}

// pump is the single consumer of a session's channels. It forwards every
// value to the relay hub immediately and hands batches to the shell at a
// fixed rate so a fast device cannot flood the UI.
type pump struct {
	sess *session.Session
	hub  *relay.Hub
	done chan struct{}
}

func newPump(sess *session.Session, hub *relay.Hub) *pump {
	return &pump{
		sess: sess,
		hub:  hub,
		done: make(chan struct{}),
	}
}

// run blocks until stop is called or the session closes its channels
func (p *pump) run(deliver func(batchMsg)) {
	ticker := time.NewTicker(batchInterval)
	defer ticker.Stop()

	raw := p.sess.Raw()
	records := p.sess.Records()
	events := p.sess.Events()

	var batch batchMsg
	for raw != nil || records != nil {
		select {
		case <-p.done:
			return

		case text, ok := <-raw:
			if !ok {
				raw = nil
				continue
			}
			batch.raw = append(batch.raw, text)
			if text == cfg.Connection.UnpluggedMessage || text == cfg.Connection.RepluggedMessage {
				p.broadcast(relay.TextFrame(text, time.Now()))
			}

		case rec, ok := <-records:
			if !ok {
				records = nil
				continue
			}
			batch.records = append(batch.records, rec)
			p.broadcast(relay.RecordFrame(rec))

		case ev := <-events:
			batch.events = append(batch.events, ev)
			// unplug and replug already went out as text frames
			if ev.Kind != link.EventUnplugged && ev.Kind != link.EventReplugged {
				p.broadcast(relay.EventFrame(ev))
			}

		case <-ticker.C:
			if !batch.empty() {
				deliver(batch)
				batch = batchMsg{}
			}
		}
	}
	if !batch.empty() {
		deliver(batch)
	}
}

func (p *pump) stop() {
	close(p.done)
}

func (p *pump) broadcast(f relay.Frame) {
	if p.hub == nil {
		return
	}
	if err := p.hub.Broadcast(f); err != nil {
		logger.Warn("Relay broadcast failed", zap.Error(err))
	}
}

// newSession builds a session from the loaded configuration
func newSession() (*session.Session, error) {
	return session.New(cfg, session.WithLogger(logger))
}

// startRelay starts the relay server when enabled in config or by flag
func startRelay(enabled bool) (*relay.Server, error) {
	if !enabled && !cfg.Relay.Enabled {
		return nil, nil
	}
	relayCfg := cfg.Relay
	relayCfg.Enabled = true
	if relayCfg.Username != "" && relayCfg.Password == "" {
		relayCfg.Password = os.Getenv(relayPasswordEnv)
	}
	srv := relay.NewServer(relayCfg, logging.Component(logger, "relay"))
	if err := srv.Start(); err != nil {
		return nil, err
	}
	fmt.Fprintf(os.Stderr, "Relay: ws://%s%s\n", srv.Addr(), relayCfg.Path)
	return srv, nil
}

func stopRelay(srv *relay.Server) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Warn("Relay shutdown", zap.Error(err))
	}
}
