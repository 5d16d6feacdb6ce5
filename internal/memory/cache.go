package memory

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"

	"github.com/nextlevelbuilder/memkit/internal/fsx"
)

const cacheVersion = 1

// cacheEntry is one document's cached chunks keyed by the mtime observed
// when they were built.
type cacheEntry struct {
	Mtime  int64   `json:"mtime"`
	Chunks []Chunk `json:"chunks"`
}

// cacheFile is the persisted cache document shape.
type cacheFile struct {
	Version int                   `json:"version"`
	Files   map[string]cacheEntry `json:"files"`
}

// Cache is the persistent document→chunks store. A document is re-read and
// re-chunked only when its modification timestamp changes; a search over an
// unchanged corpus performs zero reads and zero writes.
type Cache struct {
	path            string
	maxEntries      int
	maxBytes        int
	maxChunkChars   int
	maxChunksPerDoc int

	mu    sync.Mutex
	files map[string]cacheEntry
	dirty bool
}

// CacheConfig bounds the cache and its chunking.
type CacheConfig struct {
	MaxEntries      int
	MaxBytes        int
	MaxChunkChars   int
	MaxChunksPerDoc int
}

// OpenCache loads the persisted cache at path. Corrupt or missing cache
// files degrade to an empty cache: the next search rebuilds from the corpus.
func OpenCache(path string, cfg CacheConfig) *Cache {
	c := &Cache{
		path:            path,
		maxEntries:      cfg.MaxEntries,
		maxBytes:        cfg.MaxBytes,
		maxChunkChars:   cfg.MaxChunkChars,
		maxChunksPerDoc: cfg.MaxChunksPerDoc,
		files:           make(map[string]cacheEntry),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("chunk cache unreadable, starting empty", "path", path, "error", err)
		}
		return c
	}

	var cf cacheFile
	if err := json.Unmarshal(data, &cf); err != nil || cf.Files == nil {
		slog.Warn("chunk cache corrupt, starting empty", "path", path)
		return c
	}
	if cf.Version != cacheVersion {
		slog.Warn("chunk cache version mismatch, starting empty",
			"path", path, "got", cf.Version, "want", cacheVersion)
		return c
	}
	c.files = cf.Files
	return c
}

// GetOrRefresh returns the chunks for path, rebuilding them iff the file's
// modification timestamp differs from the cached one. Within a single
// process, a refreshed entry is immediately visible to subsequent reads.
func (c *Cache) GetOrRefresh(path string) ([]Chunk, error) {
	st, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	mtime := st.ModTime().UnixNano()

	c.mu.Lock()
	entry, ok := c.files[path]
	c.mu.Unlock()
	if ok && entry.Mtime == mtime {
		return entry.Chunks, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	chunks := ChunkText(string(data), c.maxChunkChars, c.maxChunksPerDoc)

	c.mu.Lock()
	c.files[path] = cacheEntry{Mtime: mtime, Chunks: chunks}
	c.dirty = true
	c.mu.Unlock()

	return chunks, nil
}

// Prune drops entries whose path was not requested this batch (deleted or
// renamed documents), then evicts oldest-modification-first until the entry
// count and serialized byte ceilings both hold.
func (c *Cache) Prune(requested map[string]bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for path := range c.files {
		if !requested[path] {
			delete(c.files, path)
			c.dirty = true
		}
	}
	c.enforceLimitsLocked()
}

func (c *Cache) enforceLimitsLocked() {
	if c.maxEntries <= 0 && c.maxBytes <= 0 {
		return
	}

	type sized struct {
		path  string
		mtime int64
		bytes int
	}
	entries := make([]sized, 0, len(c.files))
	total := 0
	for path, e := range c.files {
		b, _ := json.Marshal(e)
		n := len(b) + len(path) + 4
		entries = append(entries, sized{path: path, mtime: e.Mtime, bytes: n})
		total += n
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].mtime < entries[j].mtime })

	for _, e := range entries {
		overCount := c.maxEntries > 0 && len(c.files) > c.maxEntries
		overBytes := c.maxBytes > 0 && total > c.maxBytes
		if !overCount && !overBytes {
			break
		}
		delete(c.files, e.path)
		total -= e.bytes
		c.dirty = true
	}
}

// Flush persists the cache atomically, but only when it actually changed
// since load or the last flush.
func (c *Cache) Flush() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.dirty {
		return nil
	}

	data, err := json.Marshal(cacheFile{Version: cacheVersion, Files: c.files})
	if err != nil {
		return fmt.Errorf("marshal cache: %w", err)
	}
	if err := fsx.WriteFileAtomic(c.path, data, 0644); err != nil {
		return fmt.Errorf("persist cache: %w", err)
	}
	c.dirty = false
	return nil
}

// Len returns the number of cached documents.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.files)
}

// SizeBytes returns the serialized size of the cache document.
func (c *Cache) SizeBytes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, err := json.Marshal(cacheFile{Version: cacheVersion, Files: c.files})
	if err != nil {
		return 0
	}
	return len(data)
}
