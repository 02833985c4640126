// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package session

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/Thermoquad/aerostat/pkg/config"
	"github.com/Thermoquad/aerostat/pkg/link"
	"github.com/Thermoquad/aerostat/pkg/logging"
	"github.com/Thermoquad/aerostat/pkg/recorder"
	"github.com/Thermoquad/aerostat/pkg/telemetry"
)

var (
	// ErrSessionActive is returned when starting while a session runs
	ErrSessionActive = errors.New("session already active")
	// ErrNotActive is returned when stopping without a running session
	ErrNotActive = errors.New("no active session")
	// ErrWrongMode is returned when stopping a session of the other mode
	ErrWrongMode = errors.New("active session has a different mode")
	// ErrClosed is returned after Close
	ErrClosed = errors.New("session closed")
)

// Mode is what the background worker is doing
type Mode uint8

const (
	ModeIdle Mode = iota
	ModeDevice
	ModeDummy
)

func (m Mode) String() string {
	switch m {
	case ModeIdle:
		return "idle"
	case ModeDevice:
		return "device"
	case ModeDummy:
		return "dummy"
	default:
		return "unknown"
	}
}

// Session runs at most one background worker at a time, either reading the
// serial device or generating dummy records, and publishes the results on
// two bounded channels.
type Session struct {
	cfg      *config.Config
	logger   *zap.Logger
	notifier *link.Notifier
	ctrl     *link.Controller
	rec      *recorder.Recorder
	framer   *telemetry.Framer
	lister   link.Lister
	newRand  func() telemetry.Rand

	raw     *outlet[string]
	records *outlet[telemetry.Record]

	dummyInterval atomic.Int64

	mu     sync.Mutex
	mode   Mode
	cancel context.CancelFunc
	done   chan struct{}
	closed bool

	statsMu sync.Mutex
	stats   *telemetry.Statistics
}

// Option configures a Session
type Option func(*options)

type options struct {
	logger     *zap.Logger
	opener     link.Opener
	lister     link.Lister
	newRand    func() telemetry.Rand
	recOptions []recorder.Option
}

// WithLogger sets the diagnostic logger
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithOpener replaces the serial opener
func WithOpener(opener link.Opener) Option {
	return func(o *options) { o.opener = opener }
}

// WithLister replaces the port lister
func WithLister(lister link.Lister) Option {
	return func(o *options) { o.lister = lister }
}

// WithRand supplies the randomness for each dummy session
func WithRand(newRand func() telemetry.Rand) Option {
	return func(o *options) { o.newRand = newRand }
}

// WithRecorderOptions passes options to the recorder
func WithRecorderOptions(opts ...recorder.Option) Option {
	return func(o *options) { o.recOptions = append(o.recOptions, opts...) }
}

// New builds an idle session from a validated configuration
func New(cfg *config.Config, opts ...Option) (*Session, error) {
	o := options{
		lister: link.SystemLister{},
		newRand: func() telemetry.Rand {
			return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
		},
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}

	framer, err := telemetry.NewFramer(cfg.Connection.FilterCharacter, cfg.Connection.Delimiter)
	if err != nil {
		return nil, fmt.Errorf("invalid framing configuration: %w", err)
	}

	notifier := link.NewNotifier(cfg.Channels.BufferSize, logging.Component(o.logger, "events"))

	s := &Session{
		cfg:      cfg,
		logger:   logging.Component(o.logger, "session"),
		notifier: notifier,
		ctrl:     link.NewController(cfg.Connection, o.opener, notifier, logging.Component(o.logger, "link")),
		rec:      recorder.New(cfg.Recording, logging.Component(o.logger, "recorder"), o.recOptions...),
		framer:   framer,
		lister:   o.lister,
		newRand:  o.newRand,
		raw:      newOutlet[string](cfg.Channels.BufferSize),
		records:  newOutlet[telemetry.Record](cfg.Channels.BufferSize),
		stats:    telemetry.NewStatistics(),
	}
	s.dummyInterval.Store(int64(cfg.Dummy.UpdateInterval))

	return s, nil
}

// Raw receives matched pre-split text, dummy vectors and unplug/replug notices
func (s *Session) Raw() <-chan string {
	return s.raw.ch
}

// Records receives framed and dummy records
func (s *Session) Records() <-chan telemetry.Record {
	return s.records.ch
}

// Events receives diagnostics
func (s *Session) Events() <-chan link.Event {
	return s.notifier.Events()
}

// Dropped returns how many raw and record values were discarded because the
// consumer fell behind
func (s *Session) Dropped() (raw, records uint64) {
	return s.raw.dropped.Load(), s.records.dropped.Load()
}

// Mode returns the active mode
func (s *Session) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// State returns the connection state
func (s *Session) State() link.State {
	return s.ctrl.State()
}

// Ports lists the serial ports; the result is empty on failure
func (s *Session) Ports() []link.PortInfo {
	return link.ListPorts(s.lister, s.notifier, s.logger)
}

// Connect opens the port and starts reading it in the background
func (s *Session) Connect(port string, baud int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.canStart(); err != nil {
		return err
	}

	if err := s.ctrl.Open(port, baud); err != nil {
		return err
	}

	info := fmt.Sprintf("port=%s, baud=%d, timeout=%s, filter=%q, delimiter=%q",
		port, baud, s.cfg.Connection.Timeout, s.cfg.Connection.FilterCharacter, s.cfg.Connection.Delimiter)
	if err := s.rec.Begin(info); err != nil {
		s.ctrl.Close()
		s.recorderFailed(err)
		return err
	}

	s.start(ModeDevice, s.readLoop)
	return nil
}

// Disconnect stops the device session and closes the port
func (s *Session) Disconnect() error {
	return s.stop(ModeDevice)
}

// StartDummy starts generating synthetic records
func (s *Session) StartDummy() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.canStart(); err != nil {
		return err
	}
	if s.ctrl.State() != link.Disconnected {
		return ErrSessionActive
	}

	if err := s.rec.Begin(fmt.Sprintf("dummy, interval=%s", s.DummyInterval())); err != nil {
		s.recorderFailed(err)
		return err
	}

	s.start(ModeDummy, s.dummyLoop)
	return nil
}

// StopDummy stops the dummy session
func (s *Session) StopDummy() error {
	return s.stop(ModeDummy)
}

// Stop stops whichever session is active
func (s *Session) Stop() error {
	return s.stop(ModeIdle)
}

// SetDummyInterval changes the tick interval; it applies from the next tick
func (s *Session) SetDummyInterval(d time.Duration) error {
	if d <= 0 {
		return fmt.Errorf("dummy interval must be positive, got %s", d)
	}
	s.dummyInterval.Store(int64(d))
	s.logger.Debug("Dummy interval changed", zap.Duration("interval", d))
	return nil
}

// DummyInterval returns the current tick interval
func (s *Session) DummyInterval() time.Duration {
	return time.Duration(s.dummyInterval.Load())
}

// Send writes text to the device
func (s *Session) Send(text string) error {
	return s.ctrl.Send([]byte(text))
}

// SetRecording switches the session CSV on or off
func (s *Session) SetRecording(on bool) {
	s.rec.SetRecording(on)
	s.logger.Info("Recording toggled", zap.Bool("recording", on))
}

// Recording reports whether the session CSV is on
func (s *Session) Recording() bool {
	return s.rec.Recording()
}

// Stats returns a snapshot of the counters
func (s *Session) Stats() telemetry.Statistics {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	s.stats.CalculateRates()
	return *s.stats
}

// StatusLine is a one-line summary for shells
func (s *Session) StatusLine() string {
	switch s.Mode() {
	case ModeDummy:
		return fmt.Sprintf("// DUMMY -> ON <- %s", s.DummyInterval())
	case ModeDevice:
		switch s.ctrl.State() {
		case link.Connected:
			return fmt.Sprintf("// #CONNECTED -> %s <- %d", s.ctrl.Port(), s.ctrl.Baud())
		case link.Unplugged, link.ReconnectRetrying:
			return s.cfg.Connection.UnpluggedMessage
		}
	}
	return "// #DISCONNECTED"
}

// Close stops any session and closes the output channels. No session can
// start once Close has begun.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	err := s.Stop()
	if errors.Is(err, ErrNotActive) {
		err = nil
	}

	close(s.raw.ch)
	close(s.records.ch)
	return err
}

// canStart must be called with s.mu held
func (s *Session) canStart() error {
	if s.closed {
		return ErrClosed
	}
	if s.mode != ModeIdle {
		return ErrSessionActive
	}
	return nil
}

// start must be called with s.mu held
func (s *Session) start(mode Mode, loop func(context.Context)) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	s.mode = mode
	s.cancel = cancel
	s.done = done

	s.statsMu.Lock()
	s.stats.Reset()
	s.statsMu.Unlock()

	s.logger.Info("Session started", zap.Stringer("mode", mode), zap.String("session_id", s.rec.SessionID()))

	go func() {
		defer close(done)
		defer func() {
			if err := s.rec.End(); err != nil {
				s.logger.Error("Failed to close recorder", zap.Error(err))
			}
		}()
		loop(ctx)
	}()
}

// stop cancels the worker, closes the port so a pending read returns, and
// waits for the worker to exit. want == ModeIdle stops any mode.
func (s *Session) stop(want Mode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.mode == ModeIdle {
		return ErrNotActive
	}
	if want != ModeIdle && s.mode != want {
		return ErrWrongMode
	}

	mode := s.mode
	s.cancel()
	if mode == ModeDevice {
		if err := s.ctrl.Close(); err != nil {
			s.logger.Warn("Error closing port", zap.Error(err))
		}
	}
	<-s.done

	s.mode = ModeIdle
	s.cancel = nil
	s.done = nil

	s.logger.Info("Session stopped", zap.Stringer("mode", mode))
	return nil
}

func (s *Session) readLoop(ctx context.Context) {
	for ctx.Err() == nil {
		if s.ctrl.State() != link.Connected {
			if err := s.ctrl.Reconnect(ctx); err != nil {
				return
			}
			s.statsMu.Lock()
			s.stats.Reconnected()
			s.statsMu.Unlock()
			s.raw.push(s.cfg.Connection.RepluggedMessage)
			continue
		}

		line, err := s.ctrl.ReadLine()
		var dio *link.DeviceIOError
		switch {
		case err == nil:
			s.handleLine(line)
		case errors.Is(err, link.ErrReadTimeout), errors.Is(err, link.ErrNotOpen):
		case errors.As(err, &dio):
			if ctx.Err() != nil {
				return
			}
			s.statsMu.Lock()
			s.stats.DeviceError()
			s.statsMu.Unlock()
			s.ctrl.MarkUnplugged(err)
			s.raw.push(s.cfg.Connection.UnpluggedMessage)
		default:
			s.logger.Error("Unexpected read error", zap.Error(err))
		}
	}
}

func (s *Session) handleLine(raw []byte) {
	text, err := telemetry.Decode(raw)
	if err != nil {
		s.countLine(false, err)
		s.logger.Warn("Failed to decode line", zap.Error(err), zap.Binary("raw", raw))
		if rerr := s.rec.Exception(err); rerr != nil {
			s.recorderFailed(rerr)
		}
		s.notifier.Publish(link.Event{
			Kind:    link.EventDecodeFailed,
			Port:    s.ctrl.Port(),
			Message: err.Error(),
			Err:     err,
		})
		return
	}

	if err := s.rec.Line(text); err != nil {
		s.recorderFailed(err)
	}

	record, ok := s.framer.Frame(text)
	s.countLine(ok, nil)
	if !ok {
		return
	}

	if err := s.rec.Record(record); err != nil {
		s.recorderFailed(err)
		_ = s.rec.Exception(err)
	}
	s.raw.push(record.Raw)
	s.records.push(record)
}

func (s *Session) dummyLoop(ctx context.Context) {
	rng := s.newRand()
	state := telemetry.InitialDummyState()

	for ctx.Err() == nil {
		var record telemetry.Record
		record, state = telemetry.Tick(state, rng)

		s.statsMu.Lock()
		s.stats.Dummy()
		s.statsMu.Unlock()

		if err := s.rec.Record(record); err != nil {
			s.recorderFailed(err)
			_ = s.rec.Exception(err)
		}
		s.raw.push(record.Raw)
		s.records.push(record)

		timer := time.NewTimer(s.DummyInterval())
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

func (s *Session) countLine(framed bool, decodeErr error) {
	s.statsMu.Lock()
	s.stats.Line(framed, decodeErr)
	s.statsMu.Unlock()
}

func (s *Session) recorderFailed(err error) {
	s.logger.Error("Recorder failure", zap.Error(err))
	s.notifier.Publish(link.Event{
		Kind:    link.EventRecorderFailed,
		Message: err.Error(),
		Err:     err,
	})
}
