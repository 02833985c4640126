// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package recorder persists a session to disk: the black box audit file that
// receives every raw line, and the session CSV that receives framed records
// while recording is switched on.
package recorder

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Thermoquad/aerostat/pkg/config"
	"github.com/Thermoquad/aerostat/pkg/telemetry"
)

// TimestampLayout is used for audit entries and the CSV timestamp column
const TimestampLayout = "2006-01-02 15:04:05.000000"

// ErrNotActive is returned when writing outside Begin/End
var ErrNotActive = errors.New("recorder: no active session")

// Recorder owns both sinks of one session. Begin, Line, Exception, Record
// and End must be called from the same goroutine; SetRecording and
// Recording are safe from any goroutine.
type Recorder struct {
	cfg    config.RecordingConfig
	logger *zap.Logger
	now    func() time.Time

	recording atomic.Bool

	sessionID string
	audit     *os.File
	csvFile   *os.File
	csvWriter *csv.Writer
}

// Option configures a Recorder
type Option func(*Recorder)

// WithClock replaces time.Now for timestamps
func WithClock(now func() time.Time) Option {
	return func(r *Recorder) {
		r.now = now
	}
}

// New creates a recorder. Nothing is opened until Begin.
func New(cfg config.RecordingConfig, logger *zap.Logger, opts ...Option) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Recorder{
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.recording.Store(cfg.Enabled)
	return r
}

// SetRecording switches the session CSV sink on or off. The file itself is
// opened or closed on the next Record call.
func (r *Recorder) SetRecording(on bool) {
	r.recording.Store(on)
}

// Recording reports whether the CSV sink is switched on
func (r *Recorder) Recording() bool {
	return r.recording.Load()
}

// Active reports whether a session is between Begin and End
func (r *Recorder) Active() bool {
	return r.audit != nil
}

// SessionID returns the id written into the current black box header
func (r *Recorder) SessionID() string {
	return r.sessionID
}

// Begin truncates the black box file and writes the session header.
// info describes the connection (port and baud, or dummy interval).
func (r *Recorder) Begin(info string) error {
	if r.audit != nil {
		return fmt.Errorf("recorder: session %s already active", r.sessionID)
	}

	path := r.cfg.BlackBoxPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create black box directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open black box: %w", err)
	}

	r.audit = f
	r.sessionID = uuid.New().String()

	header := fmt.Sprintf("[LATEST FLIGHT]: [%s] [SESSION: %s] [CONNECTION INFO: (%s)]\n",
		r.timestamp(), r.sessionID, info)
	if _, err := f.WriteString(header); err != nil {
		r.logger.Error("Failed to write black box header", zap.Error(err))
	}

	r.logger.Info("Recording session started",
		zap.String("session_id", r.sessionID),
		zap.String("black_box", path),
		zap.Bool("csv", r.Recording()),
	)
	return nil
}

// Line appends "[<timestamp>]: <text>" to the black box
func (r *Recorder) Line(text string) error {
	if r.audit == nil {
		return ErrNotActive
	}
	_, err := fmt.Fprintf(r.audit, "[%s]: %s\n", r.timestamp(), text)
	if err != nil {
		return fmt.Errorf("black box write: %w", err)
	}
	return nil
}

// Exception appends "[EXCEPTION]: <message>" to the black box
func (r *Recorder) Exception(cause error) error {
	if r.audit == nil {
		return ErrNotActive
	}
	_, err := fmt.Fprintf(r.audit, "[EXCEPTION]: %v\n", cause)
	if err != nil {
		return fmt.Errorf("black box write: %w", err)
	}
	return nil
}

// Record appends the record fields followed by a timestamp to the session
// CSV when recording is on. It is a no-op when recording is off.
func (r *Recorder) Record(rec telemetry.Record) error {
	if r.audit == nil {
		return ErrNotActive
	}

	if !r.Recording() {
		return r.closeCSV()
	}

	if r.csvWriter == nil {
		if err := r.openCSV(); err != nil {
			return err
		}
	}

	row := make([]string, 0, len(rec.Fields)+1)
	row = append(row, rec.Fields...)
	row = append(row, r.timestamp())

	if err := r.csvWriter.Write(row); err != nil {
		return fmt.Errorf("csv write: %w", err)
	}
	r.csvWriter.Flush()
	if err := r.csvWriter.Error(); err != nil {
		return fmt.Errorf("csv flush: %w", err)
	}
	return nil
}

// End closes both sinks. Further writes return ErrNotActive.
func (r *Recorder) End() error {
	if r.audit == nil {
		return nil
	}

	csvErr := r.closeCSV()
	auditErr := r.audit.Close()
	r.audit = nil

	r.logger.Info("Recording session ended", zap.String("session_id", r.sessionID))

	return errors.Join(csvErr, auditErr)
}

func (r *Recorder) openCSV() error {
	path := r.cfg.CSVPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create csv directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open session csv: %w", err)
	}

	r.csvFile = f
	r.csvWriter = csv.NewWriter(f)
	r.logger.Debug("Session CSV opened", zap.String("path", path))
	return nil
}

func (r *Recorder) closeCSV() error {
	if r.csvFile == nil {
		return nil
	}
	r.csvWriter.Flush()
	err := errors.Join(r.csvWriter.Error(), r.csvFile.Close())
	r.csvFile = nil
	r.csvWriter = nil
	r.logger.Debug("Session CSV closed")
	return err
}

func (r *Recorder) timestamp() string {
	return r.now().Format(TimestampLayout)
}
