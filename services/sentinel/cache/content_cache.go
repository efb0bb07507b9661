// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package cache provides the content-addressable cache used to skip
// redundant per-file work.
package cache

import (
	"context"
	"sync"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/tawfig2020/ArchLensyst-sub001/services/sentinel/model"
)

// Well-known cache names, used as the "cache" metric attribute.
const (
	NameMetadata    = "metadata"
	NameBlastRadius = "blast_radius"
)

// Option configures a ContentCache.
type Option func(*options)

type options struct {
	maxEntries int
}

// WithMaxEntries caps the cache at n entries with LRU eviction.
// n <= 0 leaves the cache unbounded.
func WithMaxEntries(n int) Option {
	return func(o *options) {
		o.maxEntries = n
	}
}

// ContentCache maps a key (a file path, or an impact target) to a
// CacheEntry.
//
// # Description
//
// An entry is valid for a key only while its stored hash equals the
// caller's current content hash; comparisons are exact. Put overwrites.
// Without WithMaxEntries the cache grows without bound, which suits a
// single analysis session.
//
// # Thread Safety
//
// Safe for concurrent use.
type ContentCache struct {
	name string

	mu      sync.RWMutex
	entries map[string]model.CacheEntry
	bounded *lru.Cache[string, model.CacheEntry]

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

// New creates a cache. name labels its metrics.
func New(name string, opts ...Option) *ContentCache {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	c := &ContentCache{name: name}
	if o.maxEntries > 0 {
		// lru.New only fails for a non-positive size.
		c.bounded, _ = lru.New[string, model.CacheEntry](o.maxEntries)
	} else {
		c.entries = make(map[string]model.CacheEntry)
	}
	return c
}

// Name returns the cache's metric label.
func (c *ContentCache) Name() string {
	return c.name
}

// Get returns the entry stored under key, valid or not.
func (c *ContentCache) Get(key string) (model.CacheEntry, bool) {
	if c.bounded != nil {
		return c.bounded.Get(key)
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	return e, ok
}

// Put stores entry under key, replacing any previous entry.
func (c *ContentCache) Put(key string, entry model.CacheEntry) {
	if c.bounded != nil {
		if evicted := c.bounded.Add(key, entry); evicted {
			c.evictions.Add(1)
			recordEviction(context.Background(), c.name)
		}
		return
	}
	c.mu.Lock()
	c.entries[key] = entry
	c.mu.Unlock()
}

// IsValid reports whether key has an entry whose hash equals currentHash.
func (c *ContentCache) IsValid(key, currentHash string) bool {
	e, ok := c.Get(key)
	return ok && e.Hash == currentHash
}

// Lookup returns the entry under key if it is valid for currentHash,
// and records a hit or miss.
func (c *ContentCache) Lookup(ctx context.Context, key, currentHash string) (model.CacheEntry, bool) {
	e, ok := c.Get(key)
	if ok && e.Hash == currentHash {
		c.hits.Add(1)
		recordHit(ctx, c.name)
		return e, true
	}
	c.misses.Add(1)
	recordMiss(ctx, c.name, ok)
	return model.CacheEntry{}, false
}

// Invalidate removes key.
func (c *ContentCache) Invalidate(key string) {
	if c.bounded != nil {
		c.bounded.Remove(key)
		return
	}
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Purge removes every entry.
func (c *ContentCache) Purge() {
	if c.bounded != nil {
		c.bounded.Purge()
		return
	}
	c.mu.Lock()
	c.entries = make(map[string]model.CacheEntry)
	c.mu.Unlock()
}

// Len returns the number of entries.
func (c *ContentCache) Len() int {
	if c.bounded != nil {
		return c.bounded.Len()
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Stats is a snapshot of cache counters.
type Stats struct {
	Name      string  `json:"name"`
	Entries   int     `json:"entries"`
	Hits      int64   `json:"hits"`
	Misses    int64   `json:"misses"`
	Evictions int64   `json:"evictions"`
	HitRate   float64 `json:"hitRate"`
}

// Stats returns the current counters. Only Lookup counts hits and misses.
func (c *ContentCache) Stats() Stats {
	hits := c.hits.Load()
	misses := c.misses.Load()
	s := Stats{
		Name:      c.name,
		Entries:   c.Len(),
		Hits:      hits,
		Misses:    misses,
		Evictions: c.evictions.Load(),
	}
	if total := hits + misses; total > 0 {
		s.HitRate = float64(hits) / float64(total)
	}
	return s
}
