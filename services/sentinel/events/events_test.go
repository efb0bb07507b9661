// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package events

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder_ConcurrentEmit(t *testing.T) {
	r := NewRecorder()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Emit(context.Background(), Event{Kind: KindFileIndexed})
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, r.Count(KindFileIndexed))
	assert.Len(t, r.Events(), 50)

	r.Reset()
	assert.Empty(t, r.Events())
}

func TestSlogSink_LevelsAndFields(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
	s := NewSlogSink(logger)

	s.Emit(context.Background(), Event{Kind: KindFileIndexed, Path: "a.ts"})
	assert.Empty(t, buf.String(), "debug events are filtered at info level")

	s.Emit(context.Background(), Event{
		Kind:   KindFileFailed,
		RunID:  "run-1",
		Path:   "b.ts",
		Err:    errors.New("boom"),
		Fields: map[string]any{"batch": 2},
	})
	out := buf.String()
	assert.Contains(t, out, "level=WARN")
	assert.Contains(t, out, "index.file_failed")
	assert.Contains(t, out, "run_id=run-1")
	assert.Contains(t, out, "file_path=b.ts")
	assert.Contains(t, out, "error=boom")
	assert.Contains(t, out, "batch=2")
}

func TestMulti_SkipsNilAndFansOut(t *testing.T) {
	a, b := NewRecorder(), NewRecorder()
	m := Multi(a, nil, b, Discard)
	m.Emit(context.Background(), Event{Kind: KindIndexStarted})

	require.Len(t, a.Events(), 1)
	require.Len(t, b.Events(), 1)
}

func TestStamp(t *testing.T) {
	e := Stamp(Event{Kind: KindIndexStarted})
	assert.False(t, e.Time.IsZero())

	fixed := e.Time
	again := Stamp(e)
	assert.Equal(t, fixed, again.Time)
}
