// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package events is the structured event port of the indexing and impact
// pipeline.
//
// # Overview
//
// Pipeline components never log business outcomes directly. They emit
// Events to a Sink, and the host decides where those go:
//
//	┌──────────────┐   Emit()   ┌──────────────────────────────┐
//	│ Orchestrator │──────────▶│ Sink                         │
//	│ Analyzer     │            │  SlogSink │ Recorder │ Multi │
//	└──────────────┘            └──────────────────────────────┘
//
// # Thread Safety
//
// All Sink implementations in this package are safe for concurrent use.
package events

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// Kind names what happened.
type Kind string

const (
	KindIndexStarted    Kind = "index.started"
	KindBatchCompleted  Kind = "index.batch_completed"
	KindFileCacheHit    Kind = "index.file_cache_hit"
	KindFileIndexed     Kind = "index.file_indexed"
	KindFileFailed      Kind = "index.file_failed"
	KindIndexCompleted  Kind = "index.completed"
	KindIndexCancelled  Kind = "index.cancelled"
	KindOracleDegraded  Kind = "oracle.degraded"
	KindChangeValidated Kind = "impact.change_validated"
	KindBlastRadius     Kind = "impact.blast_radius"
)

// Event is one structured pipeline event.
type Event struct {
	Kind   Kind
	Time   time.Time
	RunID  string
	Path   string
	Err    error
	Fields map[string]any
}

// Sink receives events. Emit must not block for long and must not fail
// the caller.
type Sink interface {
	Emit(ctx context.Context, e Event)
}

// Discard drops every event.
var Discard Sink = discard{}

type discard struct{}

func (discard) Emit(context.Context, Event) {}

// SlogSink writes events to a slog.Logger. Failures log at Warn,
// everything else at Debug.
type SlogSink struct {
	logger *slog.Logger
}

// NewSlogSink creates a sink writing to logger, or slog.Default() when
// logger is nil.
func NewSlogSink(logger *slog.Logger) *SlogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogSink{logger: logger}
}

// Emit implements Sink.
func (s *SlogSink) Emit(ctx context.Context, e Event) {
	attrs := make([]slog.Attr, 0, len(e.Fields)+3)
	if e.RunID != "" {
		attrs = append(attrs, slog.String("run_id", e.RunID))
	}
	if e.Path != "" {
		attrs = append(attrs, slog.String("file_path", e.Path))
	}
	if e.Err != nil {
		attrs = append(attrs, slog.String("error", e.Err.Error()))
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		attrs = append(attrs, slog.Any(k, e.Fields[k]))
	}

	level := slog.LevelDebug
	switch e.Kind {
	case KindFileFailed, KindOracleDegraded, KindIndexCancelled:
		level = slog.LevelWarn
	case KindIndexCompleted:
		level = slog.LevelInfo
	}
	s.logger.LogAttrs(ctx, level, string(e.Kind), attrs...)
}

// Recorder keeps every event in memory. Used by tests and by the CLI to
// summarise a run.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Emit implements Sink.
func (r *Recorder) Emit(_ context.Context, e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// Events returns a copy of the recorded events in emission order.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Count returns how many events of kind k were recorded.
func (r *Recorder) Count(k Kind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Kind == k {
			n++
		}
	}
	return n
}

// Reset drops all recorded events.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

// Multi fans each event out to several sinks in order.
func Multi(sinks ...Sink) Sink {
	out := make(multi, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

type multi []Sink

func (m multi) Emit(ctx context.Context, e Event) {
	for _, s := range m {
		s.Emit(ctx, e)
	}
}

// Stamp fills Time when unset. Emitters call it so sinks see a time on
// every event.
func Stamp(e Event) Event {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	return e
}
