// Package cache provides read caches for stored mantle documents.
package cache

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/xraph/mantle"
	"github.com/xraph/mantle/internal/docmatch"
)

// Compile-time interface check.
var _ mantle.Cache = (*Memory)(nil)

// Memory is an in-memory cache with TTL-based expiration and a size cap.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]*entry
	ttl     time.Duration
	maxSize int
}

type entry struct {
	doc       bson.M
	expiresAt time.Time
}

// MemoryOption configures the memory cache.
type MemoryOption func(*Memory)

// WithTTL sets the cache entry time-to-live.
func WithTTL(ttl time.Duration) MemoryOption {
	return func(m *Memory) { m.ttl = ttl }
}

// WithMaxSize sets the maximum number of cache entries.
func WithMaxSize(n int) MemoryOption {
	return func(m *Memory) { m.maxSize = n }
}

// NewMemory creates a new in-memory cache.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		entries: make(map[string]*entry),
		ttl:     time.Minute,
		maxSize: 10000,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Get returns a copy of a cached document.
func (m *Memory) Get(_ context.Context, typeName, id string) (bson.M, bool) {
	key := cacheKey(typeName, id)
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if time.Now().After(e.expiresAt) {
		m.mu.Lock()
		delete(m.entries, key)
		m.mu.Unlock()
		return nil, false
	}
	return docmatch.Clone(e.doc), true
}

// Set stores a copy of doc.
func (m *Memory) Set(_ context.Context, typeName, id string, doc bson.M) {
	key := cacheKey(typeName, id)
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.entries[key]; !exists && len(m.entries) >= m.maxSize {
		m.evictExpired()
		if len(m.entries) >= m.maxSize {
			m.evictOne()
		}
	}

	m.entries[key] = &entry{
		doc:       docmatch.Clone(doc),
		expiresAt: time.Now().Add(m.ttl),
	}
}

// Invalidate removes one cached document.
func (m *Memory) Invalidate(_ context.Context, typeName, id string) {
	m.mu.Lock()
	delete(m.entries, cacheKey(typeName, id))
	m.mu.Unlock()
}

// InvalidateType removes all cached documents of a type.
func (m *Memory) InvalidateType(_ context.Context, typeName string) {
	prefix := typeName + ":"
	m.mu.Lock()
	defer m.mu.Unlock()
	for k := range m.entries {
		if strings.HasPrefix(k, prefix) {
			delete(m.entries, k)
		}
	}
}

// Len returns the number of entries, expired ones included.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

func cacheKey(typeName, id string) string {
	return typeName + ":" + id
}

// evictExpired removes all expired entries. Must hold write lock.
func (m *Memory) evictExpired() {
	now := time.Now()
	for k, e := range m.entries {
		if now.After(e.expiresAt) {
			delete(m.entries, k)
		}
	}
}

// evictOne removes one arbitrary entry. Must hold write lock.
func (m *Memory) evictOne() {
	for k := range m.entries {
		delete(m.entries, k)
		return
	}
}
