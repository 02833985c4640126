// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package link

import (
	"time"

	"go.uber.org/zap"
)

// EventKind classifies an Event
type EventKind uint8

const (
	EventConnected EventKind = iota
	EventConnectFailed
	EventDisconnected
	EventUnplugged
	EventReconnectAttemptFailed
	EventReplugged
	EventWriteFailed
	EventDecodeFailed
	EventEnumerationFailed
	EventRecorderFailed
)

func (k EventKind) String() string {
	switch k {
	case EventConnected:
		return "connected"
	case EventConnectFailed:
		return "connect_failed"
	case EventDisconnected:
		return "disconnected"
	case EventUnplugged:
		return "unplugged"
	case EventReconnectAttemptFailed:
		return "reconnect_attempt_failed"
	case EventReplugged:
		return "replugged"
	case EventWriteFailed:
		return "write_failed"
	case EventDecodeFailed:
		return "decode_failed"
	case EventEnumerationFailed:
		return "enumeration_failed"
	case EventRecorderFailed:
		return "recorder_failed"
	default:
		return "unknown"
	}
}

// IsError reports whether the event describes a failure
func (k EventKind) IsError() bool {
	switch k {
	case EventConnectFailed, EventUnplugged, EventReconnectAttemptFailed,
		EventWriteFailed, EventDecodeFailed, EventEnumerationFailed, EventRecorderFailed:
		return true
	}
	return false
}

// Event is a diagnostic notification for the shell
type Event struct {
	Kind    EventKind
	Port    string
	Message string
	Err     error
	Time    time.Time
}

// Notifier is a bounded event channel. Publish never blocks; when the
// consumer falls behind new events are dropped.
type Notifier struct {
	events chan Event
	logger *zap.Logger
}

// NewNotifier creates a notifier buffering up to size events
func NewNotifier(size int, logger *zap.Logger) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	if size < 1 {
		size = 1
	}
	return &Notifier{
		events: make(chan Event, size),
		logger: logger,
	}
}

// Publish queues an event
func (n *Notifier) Publish(ev Event) {
	if n == nil {
		return
	}
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	select {
	case n.events <- ev:
	default:
		n.logger.Warn("Event channel full, dropping event",
			zap.Stringer("event", ev.Kind),
		)
	}
}

// Events returns the receive side of the channel
func (n *Notifier) Events() <-chan Event {
	return n.events
}
