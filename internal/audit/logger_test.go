// Castellan - Authorization and Security Monitoring for Content Platforms
// Copyright 2026 Castellan Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/castellan-io/castellan

package audit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// mockSink records writes and can be told to fail or block.
type mockSink struct {
	mu      sync.Mutex
	records []*Record
	err     error
	block   chan struct{}
}

func (m *mockSink) Write(_ context.Context, record *Record) error {
	if m.block != nil {
		<-m.block
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.records = append(m.records, record)
	return nil
}

func (m *mockSink) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

func (m *mockSink) last() *Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.records) == 0 {
		return nil
	}
	return m.records[len(m.records)-1]
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met within deadline")
}

func TestLogger_WritesRecordToSink(t *testing.T) {
	sink := &mockSink{}
	l := NewLogger(sink, nil)
	defer l.Close()

	err := l.LogSecurity(context.Background(), "actor-1", "FAILED_AUTHENTICATION", nil, "192.0.2.1", "curl/8")
	if err != nil {
		t.Fatalf("LogSecurity: %v", err)
	}

	waitFor(t, func() bool { return sink.count() == 1 })

	record := sink.last()
	if record.ActorID != "actor-1" {
		t.Errorf("actor = %s, want actor-1", record.ActorID)
	}
	if record.Category != "FAILED_AUTHENTICATION" {
		t.Errorf("category = %s", record.Category)
	}
	if record.ID == "" || record.Timestamp.IsZero() {
		t.Error("id or timestamp not assigned")
	}
	if record.IPAddress != "192.0.2.1" || record.UserAgent != "curl/8" {
		t.Errorf("source = %s / %s", record.IPAddress, record.UserAgent)
	}
}

func TestLogger_DisabledDropsSilently(t *testing.T) {
	sink := &mockSink{}
	l := NewLogger(sink, &Config{Enabled: false, BufferSize: 10, WriteTimeout: time.Second})
	defer l.Close()

	if err := l.LogSecurity(context.Background(), "actor-1", "X", nil, "", ""); err != nil {
		t.Fatalf("LogSecurity on disabled logger: %v", err)
	}

	time.Sleep(20 * time.Millisecond)
	if sink.count() != 0 {
		t.Error("disabled logger wrote to sink")
	}
}

func TestLogger_BufferFullReturnsError(t *testing.T) {
	block := make(chan struct{})
	sink := &mockSink{block: block}
	l := NewLogger(sink, &Config{Enabled: true, BufferSize: 1, WriteTimeout: time.Second})
	defer func() {
		close(block)
		l.Close()
	}()

	ctx := context.Background()

	// First record occupies the writer, second fills the buffer; the third
	// must be rejected, not block.
	if err := l.LogSecurity(ctx, "actor-1", "A", nil, "", ""); err != nil {
		t.Fatalf("first: %v", err)
	}
	time.Sleep(20 * time.Millisecond) // let the writer pick up the first
	if err := l.LogSecurity(ctx, "actor-1", "B", nil, "", ""); err != nil {
		t.Fatalf("second: %v", err)
	}
	if err := l.LogSecurity(ctx, "actor-1", "C", nil, "", ""); !errors.Is(err, ErrBufferFull) {
		t.Errorf("third = %v, want ErrBufferFull", err)
	}
}

func TestLogger_CloseFlushesBuffer(t *testing.T) {
	sink := &mockSink{}
	l := NewLogger(sink, &Config{Enabled: true, BufferSize: 100, WriteTimeout: time.Second})

	ctx := context.Background()
	for i := 0; i < 20; i++ {
		if err := l.LogSecurity(ctx, "actor-1", "X", nil, "", ""); err != nil {
			t.Fatalf("LogSecurity %d: %v", i, err)
		}
	}

	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if got := sink.count(); got != 20 {
		t.Errorf("sink received %d records after Close, want 20", got)
	}
}

func TestLogger_SinkErrorDoesNotPropagate(t *testing.T) {
	sink := &mockSink{err: errors.New("sink down")}
	l := NewLogger(sink, nil)
	defer l.Close()

	if err := l.LogSecurity(context.Background(), "actor-1", "X", nil, "", ""); err != nil {
		t.Errorf("LogSecurity surfaced sink error: %v", err)
	}
}

func TestLogSink_Write(t *testing.T) {
	s := NewLogSink()
	err := s.Write(context.Background(), &Record{
		ID:        "r-1",
		Timestamp: time.Now(),
		ActorID:   "actor-1",
		Category:  "PERMISSION_DENIED",
		Details:   []byte(`{"route":"/admin/users"}`),
	})
	if err != nil {
		t.Errorf("Write: %v", err)
	}
}
