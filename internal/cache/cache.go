// Package cache stores computed analytics keyed by the exact input they were
// derived from. An entry is only returned for the identical asset, series
// version and parameter fingerprint, so a new bar or a parameter change can
// never serve a stale result.
package cache

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/aristath/portfolio-analytics/internal/domain"
)

// Key identifies a cached result
type Key struct {
	Asset   string
	Version domain.SeriesVersion
	Params  string
}

// String renders the key. Keys sharing Asset and Params share the prefix
// returned by family.
func (k Key) String() string {
	return k.family() + k.Version.String()
}

func (k Key) family() string {
	return fmt.Sprintf("%s|%s|", strings.ToUpper(k.Asset), k.Params)
}

// Cache is implemented by the in-memory and sqlite stores. Values are
// msgpack-encoded on Set and decoded into dst on Get, so callers never share
// memory with the cache.
type Cache interface {
	Get(ctx context.Context, key Key, dst any) (bool, error)
	Set(ctx context.Context, key Key, value any) error
	InvalidateAsset(ctx context.Context, asset string) error
}

// Stats counts lookups
type Stats struct {
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
	Entries int   `json:"entries"`
}

type entry struct {
	family string
	asset  string
	data   []byte
}

// Memory is a map-backed cache guarded by a RWMutex. Setting a key drops
// every other version of the same (asset, params) family.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]entry
	hits    atomic.Int64
	misses  atomic.Int64
	log     zerolog.Logger
}

// NewMemory creates an empty in-memory cache
func NewMemory(log zerolog.Logger) *Memory {
	return &Memory{
		entries: make(map[string]entry),
		log:     log.With().Str("component", "memory_cache").Logger(),
	}
}

// Get decodes the entry for key into dst
func (m *Memory) Get(_ context.Context, key Key, dst any) (bool, error) {
	m.mu.RLock()
	e, ok := m.entries[key.String()]
	m.mu.RUnlock()

	if !ok {
		m.misses.Add(1)
		return false, nil
	}
	if err := msgpack.Unmarshal(e.data, dst); err != nil {
		return false, fmt.Errorf("failed to decode cache entry %s: %w", key, err)
	}
	m.hits.Add(1)
	return true, nil
}

// Set stores value under key
func (m *Memory) Set(_ context.Context, key Key, value any) error {
	data, err := msgpack.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode cache entry %s: %w", key, err)
	}

	k := key.String()
	family := key.family()

	m.mu.Lock()
	defer m.mu.Unlock()
	for existing, e := range m.entries {
		if e.family == family && existing != k {
			delete(m.entries, existing)
		}
	}
	m.entries[k] = entry{family: family, asset: strings.ToUpper(key.Asset), data: data}
	return nil
}

// InvalidateAsset drops every entry of asset
func (m *Memory) InvalidateAsset(_ context.Context, asset string) error {
	asset = strings.ToUpper(asset)

	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for k, e := range m.entries {
		if e.asset == asset {
			delete(m.entries, k)
			removed++
		}
	}
	m.log.Debug().Str("asset", asset).Int("removed", removed).Msg("Cache invalidated")
	return nil
}

// Stats returns the hit and miss counters and the entry count
func (m *Memory) Stats() Stats {
	m.mu.RLock()
	n := len(m.entries)
	m.mu.RUnlock()
	return Stats{Hits: m.hits.Load(), Misses: m.misses.Load(), Entries: n}
}
