// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package link

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Thermoquad/aerostat/pkg/config"
)

// MaxLineLength bounds a line without terminator; longer input is flushed as a line
const MaxLineLength = 4096

const readChunk = 256

// Controller owns the serial handle and the connection state machine:
//
//	Disconnected      -> Connected          Open succeeded
//	Connected         -> Unplugged          MarkUnplugged after a device error
//	Unplugged         -> ReconnectRetrying  Reconnect
//	ReconnectRetrying -> Connected          reopen succeeded
//	any               -> Disconnected       Close
//
// ReadLine, MarkUnplugged and Reconnect belong to a single reader goroutine.
// Open, Close, Send and the accessors may be called from anywhere.
type Controller struct {
	cfg      config.ConnectionConfig
	open     Opener
	notifier *Notifier
	logger   *zap.Logger

	mu       sync.Mutex
	state    State
	port     Port
	portName string
	baud     int
	opening  bool

	writeMu sync.Mutex

	// reader goroutine only
	pending []byte
	buf     []byte
}

// NewController creates a disconnected controller. A nil opener uses OpenSerial.
func NewController(cfg config.ConnectionConfig, opener Opener, notifier *Notifier, logger *zap.Logger) *Controller {
	if opener == nil {
		opener = OpenSerial
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		cfg:      cfg,
		open:     opener,
		notifier: notifier,
		logger:   logger,
		state:    Disconnected,
		buf:      make([]byte, readChunk),
	}
}

// State returns the current state
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Port returns the name of the last opened port
func (c *Controller) Port() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.portName
}

// Baud returns the baud rate of the last opened port
func (c *Controller) Baud() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.baud
}

// Open opens port at baud. On failure the controller stays Disconnected.
func (c *Controller) Open(port string, baud int) error {
	if !c.cfg.SupportsBaud(baud) {
		err := &ConnectError{Port: port, Baud: baud, Err: fmt.Errorf("unsupported baud rate (allowed: %v)", c.cfg.BaudRates)}
		c.connectFailed(err)
		return err
	}

	c.mu.Lock()
	if c.state != Disconnected || c.opening {
		c.mu.Unlock()
		return ErrAlreadyOpen
	}
	c.opening = true
	c.mu.Unlock()

	// the accessors stay responsive while a slow device opens
	p, err := c.open(port, baud, c.cfg.Timeout)

	c.mu.Lock()
	c.opening = false
	if err != nil {
		c.mu.Unlock()
		cerr := &ConnectError{Port: port, Baud: baud, Err: err}
		c.connectFailed(cerr)
		return cerr
	}

	c.port = p
	c.portName = port
	c.baud = baud
	c.state = Connected
	c.pending = nil
	c.mu.Unlock()

	c.logger.Info("Serial port opened",
		zap.String("port", port),
		zap.Int("baud", baud),
		zap.Duration("timeout", c.cfg.Timeout),
	)
	c.notifier.Publish(Event{
		Kind:    EventConnected,
		Port:    port,
		Message: fmt.Sprintf("#CONNECTED -> %s <- %d", port, baud),
	})
	return nil
}

func (c *Controller) connectFailed(err *ConnectError) {
	c.logger.Error("Failed to open serial port",
		zap.String("port", err.Port),
		zap.Int("baud", err.Baud),
		zap.Error(err.Err),
	)
	c.notifier.Publish(Event{
		Kind:    EventConnectFailed,
		Port:    err.Port,
		Message: err.Error(),
		Err:     err,
	})
}

// ReadLine returns the next line including its terminator. It returns
// ErrReadTimeout when no complete line arrived within the read timeout,
// ErrNotOpen when the controller is not Connected (including after a
// concurrent Close), and *DeviceIOError for any other read failure.
func (c *Controller) ReadLine() ([]byte, error) {
	for {
		if i := bytes.IndexByte(c.pending, '\n'); i >= 0 {
			line := make([]byte, i+1)
			copy(line, c.pending[:i+1])
			c.pending = c.pending[i+1:]
			return line, nil
		}
		if len(c.pending) >= MaxLineLength {
			line := c.pending
			c.pending = nil
			return line, nil
		}

		c.mu.Lock()
		port, state, name := c.port, c.state, c.portName
		c.mu.Unlock()
		if port == nil || state != Connected {
			return nil, ErrNotOpen
		}

		n, err := port.Read(c.buf)
		if n > 0 {
			c.pending = append(c.pending, c.buf[:n]...)
		}
		if err != nil {
			if c.State() != Connected {
				return nil, ErrNotOpen
			}
			return nil, &DeviceIOError{Port: name, Err: err}
		}
		if n == 0 {
			return nil, ErrReadTimeout
		}
	}
}

// MarkUnplugged moves a Connected controller to Unplugged and releases the
// handle. It does nothing in any other state.
func (c *Controller) MarkUnplugged(cause error) {
	c.mu.Lock()
	if c.state != Connected {
		c.mu.Unlock()
		return
	}
	p := c.port
	c.port = nil
	c.state = Unplugged
	c.pending = nil
	name := c.portName
	c.mu.Unlock()

	if p != nil {
		p.Close()
	}

	c.logger.Warn("Serial device unplugged", zap.String("port", name), zap.Error(cause))
	c.notifier.Publish(Event{
		Kind:    EventUnplugged,
		Port:    name,
		Message: c.cfg.UnpluggedMessage,
		Err:     cause,
	})
}

// Reconnect retries opening the last port every ReconnectInterval until it
// succeeds, ctx is cancelled or Close is called. Each failed attempt raises
// EventReconnectAttemptFailed when the alarm is enabled; success raises a
// single EventReplugged.
func (c *Controller) Reconnect(ctx context.Context) error {
	c.mu.Lock()
	switch c.state {
	case Connected:
		c.mu.Unlock()
		return nil
	case Disconnected:
		c.mu.Unlock()
		return ErrClosed
	}
	c.state = ReconnectRetrying
	name, baud := c.portName, c.baud
	c.mu.Unlock()

	c.logger.Info("Reconnecting", zap.String("port", name), zap.Duration("interval", c.cfg.ReconnectInterval))

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		p, err := c.open(name, baud, c.cfg.Timeout)
		if err == nil {
			c.mu.Lock()
			if c.state != ReconnectRetrying || ctx.Err() != nil {
				c.mu.Unlock()
				p.Close()
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return ErrClosed
			}
			c.port = p
			c.state = Connected
			c.pending = nil
			c.mu.Unlock()

			c.logger.Info("Serial device replugged", zap.String("port", name), zap.Int("attempts", attempt))
			c.notifier.Publish(Event{
				Kind:    EventReplugged,
				Port:    name,
				Message: c.cfg.RepluggedMessage,
			})
			return nil
		}

		c.logger.Debug("Reconnect attempt failed", zap.String("port", name), zap.Int("attempt", attempt), zap.Error(err))
		if c.cfg.Alarm {
			c.notifier.Publish(Event{
				Kind:    EventReconnectAttemptFailed,
				Port:    name,
				Message: fmt.Sprintf("reconnect attempt %d failed", attempt),
				Err:     err,
			})
		}

		if c.State() != ReconnectRetrying {
			return ErrClosed
		}

		if c.cfg.ReconnectInterval > 0 {
			timer := time.NewTimer(c.cfg.ReconnectInterval)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
	}
}

// Close releases the handle from any state. A pending ReadLine returns
// ErrNotOpen and a running Reconnect gives up.
func (c *Controller) Close() error {
	c.mu.Lock()
	prev := c.state
	p := c.port
	c.port = nil
	c.state = Disconnected
	name := c.portName
	c.mu.Unlock()

	var err error
	if p != nil {
		err = p.Close()
	}

	if prev != Disconnected {
		c.logger.Info("Serial port closed", zap.String("port", name), zap.Stringer("from", prev))
		c.notifier.Publish(Event{
			Kind:    EventDisconnected,
			Port:    name,
			Message: "#DISCONNECTED",
		})
	}
	return err
}

// Send writes data to the open port
func (c *Controller) Send(data []byte) error {
	c.mu.Lock()
	p, name := c.port, c.portName
	c.mu.Unlock()

	if p == nil {
		return c.writeFailed(&WriteError{Total: len(data), Err: ErrNotOpen})
	}

	c.writeMu.Lock()
	n, err := p.Write(data)
	c.writeMu.Unlock()

	if err == nil && n < len(data) {
		err = io.ErrShortWrite
	}
	if err != nil {
		return c.writeFailed(&WriteError{Port: name, Written: n, Total: len(data), Err: err})
	}

	c.logger.Debug("Data sent", zap.String("port", name), zap.Int("bytes", n))
	return nil
}

func (c *Controller) writeFailed(err *WriteError) error {
	c.logger.Warn("Write failed", zap.Error(err))
	c.notifier.Publish(Event{
		Kind:    EventWriteFailed,
		Port:    err.Port,
		Message: err.Error(),
		Err:     err,
	})
	return err
}
