// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package watch re-indexes a codebase when its files change.
//
// A Watcher follows every non-excluded directory under a root with
// fsnotify and batches changes to source files over a debounce window, so
// a burst of saves triggers one re-index. Sync folds a batch into the
// current snapshot; unchanged files keep their content and stay cache
// hits on the next index run.
//
// # Thread Safety
//
// The handler is called from a single goroutine, never concurrently.
package watch

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/tawfig2020/ArchLensyst-sub001/services/sentinel/model"
	"github.com/tawfig2020/ArchLensyst-sub001/services/sentinel/scan"
)

// DefaultDebounce is the quiet period before a batch is delivered.
const DefaultDebounce = 500 * time.Millisecond

const changeBuffer = 1024

// ErrAlreadyStarted is returned by Start on a running watcher.
var ErrAlreadyStarted = errors.New("watcher already started")

// Op is the kind of file change.
type Op int

const (
	OpCreate Op = iota
	OpWrite
	OpRemove
	OpRename
)

// String returns the operation name.
func (op Op) String() string {
	switch op {
	case OpCreate:
		return "create"
	case OpWrite:
		return "write"
	case OpRemove:
		return "remove"
	case OpRename:
		return "rename"
	default:
		return "unknown"
	}
}

// Change is one debounced file change.
type Change struct {
	// Path is relative to the watched root, with forward slashes.
	Path string
	Op   Op
	Time time.Time
}

// Handler receives debounced batches. Each path appears at most once per
// batch, with its latest operation.
type Handler func(ctx context.Context, changes []Change)

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets the debounce window.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithLogger sets the watcher's logger.
func WithLogger(l *slog.Logger) Option {
	return func(w *Watcher) {
		if l != nil {
			w.logger = l
		}
	}
}

// Watcher watches a directory tree for source changes.
type Watcher struct {
	root     string
	handler  Handler
	debounce time.Duration
	logger   *slog.Logger

	fsw      *fsnotify.Watcher
	changes  chan Change
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	mu      sync.Mutex
	started bool

	// pending is the size of the batch waiting for the debounce timer.
	pending atomic.Int32
}

// New creates a watcher for root. Call Start to begin watching.
func New(root string, handler Handler, opts ...Option) (*Watcher, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		root:     abs,
		handler:  handler,
		debounce: DefaultDebounce,
		logger:   slog.Default(),
		fsw:      fsw,
		changes:  make(chan Change, changeBuffer),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Start adds the tree to the watch list and starts delivering batches.
// Watching ends when ctx is cancelled or Stop is called. Cancelling ctx
// drops a batch still waiting for the debounce timer, since the handler
// would only see a cancelled context; Stop delivers it first.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return ErrAlreadyStarted
	}
	w.started = true
	w.mu.Unlock()

	if err := w.addTree(w.root); err != nil {
		return err
	}

	w.wg.Add(2)
	go w.processEvents(ctx)
	go w.debounceLoop(ctx)
	return nil
}

// Stop stops watching and waits for a pending batch to be delivered.
// After ctx passed to Start is cancelled there is nothing left to deliver.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		_ = w.fsw.Close()
	})
	w.wg.Wait()
}

func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		if p != w.root && scan.SkipDir(d.Name()) {
			return filepath.SkipDir
		}
		return w.fsw.Add(p)
	})
}

func (w *Watcher) processEvents(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", slog.String("error", err.Error()))
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	if ev.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if !scan.SkipDir(filepath.Base(ev.Name)) {
				if err := w.addTree(ev.Name); err != nil {
					w.logger.Warn("watch directory failed",
						slog.String("path", ev.Name),
						slog.String("error", err.Error()),
					)
				}
			}
			return
		}
	}

	rel, err := filepath.Rel(w.root, ev.Name)
	if err != nil {
		return
	}
	rel = filepath.ToSlash(rel)
	if !scan.Included(rel) {
		return
	}

	select {
	case w.changes <- Change{Path: rel, Op: convertOp(ev.Op), Time: time.Now()}:
	default:
		w.logger.Warn("watch buffer full, change dropped", slog.String("file_path", rel))
	}
}

func convertOp(op fsnotify.Op) Op {
	switch {
	case op.Has(fsnotify.Create):
		return OpCreate
	case op.Has(fsnotify.Write):
		return OpWrite
	case op.Has(fsnotify.Remove):
		return OpRemove
	case op.Has(fsnotify.Rename):
		return OpRename
	default:
		return OpWrite
	}
}

func (w *Watcher) debounceLoop(ctx context.Context) {
	defer w.wg.Done()

	var (
		batch  []Change
		timer  *time.Timer
		timerC <-chan time.Time
	)
	flush := func() {
		if timer != nil {
			timer.Stop()
			timer, timerC = nil, nil
		}
		if len(batch) == 0 {
			return
		}
		deduped := dedupe(batch)
		batch = batch[:0]
		w.pending.Store(0)
		if w.handler != nil {
			w.handler(ctx, deduped)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			if len(batch) > 0 {
				w.logger.Debug("watch cancelled with pending changes",
					slog.Int("dropped", len(batch)),
				)
			}
			w.pending.Store(0)
			return
		case <-w.done:
			flush()
			return
		case c := <-w.changes:
			batch = append(batch, c)
			w.pending.Store(int32(len(batch)))
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				timer.Reset(w.debounce)
			}
		case <-timerC:
			timer, timerC = nil, nil
			flush()
		}
	}
}

// dedupe keeps the latest change per path, in first-seen order.
func dedupe(changes []Change) []Change {
	seen := make(map[string]int, len(changes))
	out := make([]Change, 0, len(changes))
	for _, c := range changes {
		if i, ok := seen[c.Path]; ok {
			out[i] = c
			continue
		}
		seen[c.Path] = len(out)
		out = append(out, c)
	}
	return out
}

// Sync applies changes to a snapshot loaded from root and returns the
// updated snapshot sorted by path.
//
// Changed files are re-read from disk; files that no longer exist or are
// no longer loadable are dropped. Files not named in changes are returned
// as-is, derived fields included.
func Sync(root string, files []*model.SourceFile, changes []Change) ([]*model.SourceFile, error) {
	byPath := make(map[string]*model.SourceFile, len(files))
	for _, f := range files {
		if f != nil {
			byPath[f.Path] = f
		}
	}

	for _, c := range changes {
		f, err := scan.LoadFile(root, c.Path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			delete(byPath, c.Path)
		case err != nil:
			return nil, err
		case f == nil:
			delete(byPath, c.Path)
		default:
			if old, ok := byPath[c.Path]; ok && old.Content == f.Content {
				continue
			}
			byPath[c.Path] = f
		}
	}

	out := make([]*model.SourceFile, 0, len(byPath))
	for _, f := range byPath {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}
