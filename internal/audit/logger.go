// Castellan - Authorization and Security Monitoring for Content Platforms
// Copyright 2026 Castellan Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/castellan-io/castellan

package audit

import (
	"context"
	"errors"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/castellan-io/castellan/internal/logging"
)

// ErrBufferFull is returned when the async buffer cannot accept a record.
var ErrBufferFull = errors.New("audit buffer full")

// Config holds configuration for the audit logger.
type Config struct {
	// Enabled controls whether audit logging is active. A disabled logger
	// silently accepts and drops records.
	Enabled bool

	// BufferSize is the size of the async write buffer.
	BufferSize int

	// WriteTimeout bounds each sink write.
	WriteTimeout time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Enabled:      true,
		BufferSize:   1000,
		WriteTimeout: 5 * time.Second,
	}
}

// Logger buffers audit records and writes them to a sink from a background
// goroutine, so the security pipeline never blocks on the audit trail.
type Logger struct {
	config     *Config
	sink       Sink
	recordChan chan *Record
	stopChan   chan struct{}
	done       chan struct{}
}

// NewLogger creates an audit logger and starts its async writer.
func NewLogger(sink Sink, config *Config) *Logger {
	if config == nil {
		config = DefaultConfig()
	}
	if config.BufferSize <= 0 {
		config.BufferSize = DefaultConfig().BufferSize
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = DefaultConfig().WriteTimeout
	}

	l := &Logger{
		config:     config,
		sink:       sink,
		recordChan: make(chan *Record, config.BufferSize),
		stopChan:   make(chan struct{}),
		done:       make(chan struct{}),
	}
	go l.asyncWriter()
	return l
}

// asyncWriter drains the buffer until Close, then flushes what remains.
func (l *Logger) asyncWriter() {
	defer close(l.done)

	for {
		select {
		case <-l.stopChan:
			for {
				select {
				case record := <-l.recordChan:
					l.writeRecord(record)
				default:
					return
				}
			}
		case record := <-l.recordChan:
			l.writeRecord(record)
		}
	}
}

func (l *Logger) writeRecord(record *Record) {
	if l.sink == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), l.config.WriteTimeout)
	defer cancel()

	if err := l.sink.Write(ctx, record); err != nil {
		logging.Error().Err(err).
			Str("audit_id", record.ID).
			Str("category", record.Category).
			Msg("failed to write audit record")
	}
}

// LogSecurity enqueues a security audit record. Returns ErrBufferFull when
// the async buffer has no room; the record is dropped in that case.
func (l *Logger) LogSecurity(_ context.Context, actorID, category string, details json.RawMessage, ip, userAgent string) error {
	if !l.config.Enabled {
		return nil
	}

	record := &Record{
		ID:        uuid.NewString(),
		Timestamp: time.Now(),
		ActorID:   actorID,
		Category:  category,
		Details:   details,
		IPAddress: ip,
		UserAgent: userAgent,
	}

	select {
	case l.recordChan <- record:
		return nil
	default:
		logging.Warn().
			Str("audit_id", record.ID).
			Str("category", category).
			Msg("audit buffer full, dropping record")
		return ErrBufferFull
	}
}

// Close stops the writer after flushing buffered records. Safe to call once.
func (l *Logger) Close() error {
	close(l.stopChan)
	<-l.done
	return nil
}
