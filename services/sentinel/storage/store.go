// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package storage persists per-file analysis artifacts by content hash.
//
// # Contract
//
// The store is write-once and read-by-hash: the first Put for a hash wins
// and later Puts for the same hash are no-ops. An artifact never changes
// once written because its key is the hash of the content it describes.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/dgraph-io/badger/v4"

	"github.com/tawfig2020/ArchLensyst-sub001/services/sentinel/model"
)

var (
	// ErrNotFound is returned when no artifact exists for a hash.
	ErrNotFound = errors.New("artifact not found")

	// ErrPathRequired is returned when an on-disk store has no path.
	ErrPathRequired = errors.New("path is required for persistent database")

	// ErrClosed is returned by operations on a closed store.
	ErrClosed = errors.New("store is closed")

	// ErrEmptyHash is returned for an empty content hash.
	ErrEmptyHash = errors.New("content hash is empty")
)

const artifactPrefix = "artifact/"

// ArtifactStore persists FileAnalysis values keyed by content hash.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use.
type ArtifactStore interface {
	// Get returns the artifact for hash, or ErrNotFound.
	Get(ctx context.Context, hash string) (*model.FileAnalysis, error)

	// Put stores a for hash unless an artifact already exists.
	Put(ctx context.Context, hash string, a *model.FileAnalysis) error
}

// BadgerStore is an ArtifactStore on BadgerDB.
type BadgerStore struct {
	db *badger.DB
	gc *gcRunner

	mu     sync.RWMutex
	closed bool
}

// Open opens a BadgerStore.
//
// # Inputs
//
//   - cfg: Database configuration. Path is required unless InMemory.
//
// # Outputs
//
//   - *BadgerStore: The open store. Close it when done.
//   - error: ErrPathRequired, or an error opening the database.
func Open(cfg Config) (*BadgerStore, error) {
	db, err := openDB(cfg)
	if err != nil {
		return nil, err
	}
	s := &BadgerStore{db: db}
	if cfg.GCInterval > 0 && !cfg.InMemory {
		runner, err := newGCRunner(db, cfg.GCInterval, cfg.GCDiscardRatio, cfg.Logger)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("create GC runner: %w", err)
		}
		s.gc = runner
		runner.start()
	}
	return s, nil
}

// OpenInMemory opens an in-memory store.
func OpenInMemory() (*BadgerStore, error) {
	return Open(InMemoryConfig())
}

// Get implements ArtifactStore.
func (s *BadgerStore) Get(ctx context.Context, hash string) (*model.FileAnalysis, error) {
	if hash == "" {
		return nil, ErrEmptyHash
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}

	var out model.FileAnalysis
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(artifactPrefix + hash))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &out)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read artifact %s: %w", hash, err)
	}
	return &out, nil
}

// Put implements ArtifactStore.
func (s *BadgerStore) Put(ctx context.Context, hash string, a *model.FileAnalysis) error {
	if hash == "" {
		return ErrEmptyHash
	}
	if a == nil {
		return errors.New("artifact is nil")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("encode artifact %s: %w", hash, err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}

	key := []byte(artifactPrefix + hash)
	err = s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(key); err == nil {
			return nil
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return txn.Set(key, data)
	})
	if errors.Is(err, badger.ErrConflict) {
		// A concurrent writer stored the same hash first.
		return nil
	}
	if err != nil {
		return fmt.Errorf("write artifact %s: %w", hash, err)
	}
	return nil
}

// Len counts stored artifacts.
func (s *BadgerStore) Len() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, ErrClosed
	}
	n := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(artifactPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			n++
		}
		return nil
	})
	return n, err
}

// Close stops GC and closes the database. Safe to call more than once.
func (s *BadgerStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.gc != nil {
		s.gc.stop()
	}
	return s.db.Close()
}

// MemoryStore is a map-backed ArtifactStore.
type MemoryStore struct {
	mu        sync.RWMutex
	artifacts map[string]model.FileAnalysis
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{artifacts: make(map[string]model.FileAnalysis)}
}

// Get implements ArtifactStore.
func (m *MemoryStore) Get(_ context.Context, hash string) (*model.FileAnalysis, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.artifacts[hash]
	if !ok {
		return nil, ErrNotFound
	}
	return &a, nil
}

// Put implements ArtifactStore.
func (m *MemoryStore) Put(_ context.Context, hash string, a *model.FileAnalysis) error {
	if hash == "" {
		return ErrEmptyHash
	}
	if a == nil {
		return errors.New("artifact is nil")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.artifacts[hash]; !exists {
		m.artifacts[hash] = *a
	}
	return nil
}

// Len returns the number of stored artifacts.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.artifacts)
}
