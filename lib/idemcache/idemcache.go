// Package idemcache is a minimal on-disk idempotency cache. The whole
// key -> entry mapping lives in a single JSON file which is read fully
// on every lookup and rewritten fully on every store. There is no file
// locking, concurrent invocations of separate processes may race on the
// mapping file.
package idemcache

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

const DefaultTTL = time.Hour

type Summary struct {
	RecordCount int    `json:"record_count"`
	OutputPath  string `json:"output_path"`
}

type Entry struct {
	Timestamp time.Time `json:"timestamp"`
	Summary   Summary   `json:"summary"`
}

type Cache struct {
	path string
	ttl  time.Duration
	now  func() time.Time
}

// New creates a cache backed by the JSON file at path. A ttl of 0
// falls back to DefaultTTL.
func New(path string, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		path: path,
		ttl:  ttl,
		now:  time.Now,
	}
}

// read loads the mapping file. A missing or unreadable file degrades
// to an empty mapping, it never fails the caller.
func (c *Cache) read() map[string]Entry {
	raw, err := os.ReadFile(c.path)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("failed to read idempotency mapping, treating as empty", "path", c.path, "err", err)
		}
		return map[string]Entry{}
	}

	entries := map[string]Entry{}
	err = json.Unmarshal(raw, &entries)
	if err != nil {
		slog.Warn("corrupt idempotency mapping, treating as empty", "path", c.path, "err", err)
		return map[string]Entry{}
	}
	return entries
}

// Lookup returns the entry for key if one exists and its age is within
// the TTL. Stale entries are reported as misses, they stay on disk
// until the next Store overwrites them.
func (c *Cache) Lookup(key string) (Entry, bool) {
	entry, ok := c.read()[key]
	if !ok {
		return Entry{}, false
	}
	if c.now().Sub(entry.Timestamp) > c.ttl {
		slog.Debug("idempotency entry expired", "key", key, "stored_at", entry.Timestamp)
		return Entry{}, false
	}
	return entry, true
}

// Store writes/overwrites the entry for key with the current
// timestamp, creating the mapping file and its directory on first use.
func (c *Cache) Store(key string, summary Summary) error {
	entries := c.read()
	entries[key] = Entry{
		Timestamp: c.now(),
		Summary:   summary,
	}

	serialized, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	err = os.MkdirAll(filepath.Dir(c.path), 0755)
	if err != nil {
		return err
	}
	return os.WriteFile(c.path, serialized, 0644)
}
