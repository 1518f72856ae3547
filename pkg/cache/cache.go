// Package cache provides a content-addressable store for extraction
// results, keyed by a SHA-256 hash of the inputs that produced them.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/pagesift/pagesift/internal/logger"
	"github.com/pagesift/pagesift/pkg/schema"
)

// fileVersion identifies the persisted cache format.
const fileVersion = 1

// Config holds cache configuration.
type Config struct {
	TTL        time.Duration
	MaxEntries int
	// FilePath enables persistence: the full table is rewritten on
	// every store. Single-process, low write-rate use only; there is
	// no cross-process locking.
	FilePath string
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		TTL:        24 * time.Hour,
		MaxEntries: 1000,
	}
}

// Entry is a cached extraction result.
type Entry struct {
	Data        map[string]any `json:"data"`
	RawResponse string         `json:"rawResponse,omitempty"`
	Timestamp   time.Time      `json:"timestamp"`
}

// Cache is an in-memory table with TTL expiry, size-bounded eviction,
// and optional JSON file persistence. All operations are guarded by
// one mutex; no mutation spans a blocking call.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*Entry
	cfg     Config
}

// New creates a cache. If a file path is configured and the file
// exists, entries still within TTL are loaded.
func New(cfg Config) *Cache {
	def := DefaultConfig()
	if cfg.TTL == 0 {
		cfg.TTL = def.TTL
	}
	if cfg.MaxEntries == 0 {
		cfg.MaxEntries = def.MaxEntries
	}

	c := &Cache{
		entries: make(map[string]*Entry),
		cfg:     cfg,
	}

	if cfg.FilePath != "" {
		if err := c.load(); err != nil {
			logger.Warn("cache file load failed, starting empty",
				"path", cfg.FilePath, "error", err)
		}
	}

	return c
}

// keyInput is the canonical form hashed into a cache key. Go sorts
// map keys when marshaling, so identical inputs always produce
// identical JSON.
type keyInput struct {
	Content  string            `json:"content"`
	Schema   map[string]string `json:"schema"`
	Provider string            `json:"provider"`
	Options  map[string]any    `json:"options,omitempty"`
}

// Key derives the cache key for a (content, schema, provider,
// options) tuple. Changing any input changes the key.
func Key(content string, s schema.Schema, providerID string, options map[string]any) string {
	canonical, _ := json.Marshal(keyInput{
		Content:  content,
		Schema:   s.Fields,
		Provider: providerID,
		Options:  options,
	})
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:])
}

// Get returns the entry for key if present and within TTL. Expired
// entries are evicted immediately and reported as a miss.
func (c *Cache) Get(key string) (*Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if time.Since(entry.Timestamp) >= c.cfg.TTL {
		delete(c.entries, key)
		return nil, false
	}
	return entry, true
}

// Store inserts or overwrites an entry, then removes expired entries,
// evicts oldest-first down to MaxEntries, and persists the table if a
// file path is configured.
func (c *Cache) Store(key string, data map[string]any, rawResponse string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = &Entry{
		Data:        data,
		RawResponse: rawResponse,
		Timestamp:   time.Now(),
	}

	c.cleanupLocked()

	if c.cfg.FilePath != "" {
		return c.persistLocked()
	}
	return nil
}

// Len returns the number of live entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// cleanupLocked removes expired entries, then evicts oldest-first
// until the table fits MaxEntries. Caller holds the mutex.
func (c *Cache) cleanupLocked() {
	for key, entry := range c.entries {
		if time.Since(entry.Timestamp) >= c.cfg.TTL {
			delete(c.entries, key)
		}
	}

	if len(c.entries) <= c.cfg.MaxEntries {
		return
	}

	type keyed struct {
		key string
		ts  time.Time
	}
	ordered := make([]keyed, 0, len(c.entries))
	for key, entry := range c.entries {
		ordered = append(ordered, keyed{key, entry.Timestamp})
	}
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].ts.Before(ordered[j].ts)
	})

	for _, k := range ordered[:len(c.entries)-c.cfg.MaxEntries] {
		delete(c.entries, k.key)
	}
}

// cacheFile is the persisted representation.
type cacheFile struct {
	Version   int                  `json:"version"`
	Timestamp time.Time            `json:"timestamp"`
	Entries   map[string]fileEntry `json:"entries"`
}

type fileEntry struct {
	Data        map[string]any `json:"data"`
	Timestamp   time.Time      `json:"timestamp"`
	RawResponse string         `json:"rawResponse,omitempty"`
	InputHash   string         `json:"inputHash"`
}

// persistLocked rewrites the cache file wholesale. Caller holds the
// mutex.
func (c *Cache) persistLocked() error {
	out := cacheFile{
		Version:   fileVersion,
		Timestamp: time.Now(),
		Entries:   make(map[string]fileEntry, len(c.entries)),
	}
	for key, entry := range c.entries {
		out.Entries[key] = fileEntry{
			Data:        entry.Data,
			Timestamp:   entry.Timestamp,
			RawResponse: entry.RawResponse,
			InputHash:   key,
		}
	}

	data, err := json.Marshal(out)
	if err != nil {
		return fmt.Errorf("failed to encode cache file: %w", err)
	}
	if err := os.WriteFile(c.cfg.FilePath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	return nil
}

// load reads the cache file, discarding entries already past TTL.
func (c *Cache) load() error {
	data, err := os.ReadFile(c.cfg.FilePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	var in cacheFile
	if err := json.Unmarshal(data, &in); err != nil {
		return fmt.Errorf("failed to decode cache file: %w", err)
	}
	if in.Version != fileVersion {
		return fmt.Errorf("unsupported cache file version %d", in.Version)
	}

	loaded := 0
	for key, entry := range in.Entries {
		if time.Since(entry.Timestamp) >= c.cfg.TTL {
			continue
		}
		c.entries[key] = &Entry{
			Data:        entry.Data,
			RawResponse: entry.RawResponse,
			Timestamp:   entry.Timestamp,
		}
		loaded++
	}

	logger.Debug("cache file loaded",
		"path", c.cfg.FilePath,
		"loaded", loaded,
		"discarded", len(in.Entries)-loaded)
	return nil
}
