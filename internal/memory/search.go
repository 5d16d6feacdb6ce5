package memory

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/nextlevelbuilder/memkit/internal/config"
	"github.com/nextlevelbuilder/memkit/internal/corpus"
)

// warmConcurrency bounds parallel document reads during cache warmup.
const warmConcurrency = 4

// Engine drives a query through scan → cache → score → rank → truncate.
type Engine struct {
	cfg   *config.Config
	cache *Cache
}

// NewEngine creates a retrieval engine backed by the persistent chunk cache
// under the configured memory dir.
func NewEngine(cfg *config.Config) *Engine {
	cache := OpenCache(cfg.CachePath(), CacheConfig{
		MaxEntries:      cfg.CacheMaxEntries,
		MaxBytes:        cfg.CacheMaxBytes,
		MaxChunkChars:   cfg.MaxChunkChars,
		MaxChunksPerDoc: cfg.MaxChunksPerDoc,
	})
	return &Engine{cfg: cfg, cache: cache}
}

// Cache exposes the engine's chunk cache for introspection.
func (e *Engine) Cache() *Cache { return e.cache }

// Search returns ranked chunks relevant to the query. Queries shorter than
// MinQueryLen or yielding no keywords return an empty result without
// touching the corpus. Ties keep scan order (stable sort).
func (e *Engine) Search(query string, opts Options) []SearchResult {
	if len(strings.TrimSpace(query)) < MinQueryLen {
		return nil
	}
	keywords := ExtractKeywords(query)
	if len(keywords) == 0 {
		return nil
	}
	matchers := CompileMatchers(keywords)

	dir := opts.Dir
	if dir == "" {
		dir = e.cfg.MemoryDir
	}
	maxResults := opts.MaxResults
	if maxResults <= 0 {
		maxResults = e.cfg.MaxResults
	}

	paths := corpus.Scan(dir)
	requested := make(map[string]bool, len(paths))

	var results []SearchResult
	for _, path := range paths {
		requested[path] = true
		chunks, err := e.cache.GetOrRefresh(path)
		if err != nil {
			slog.Debug("skipping unreadable document", "path", path, "error", err)
			continue
		}
		for _, chunk := range chunks {
			score := ScoreChunk(matchers, strings.ToLower(chunk.Text), e.cfg.GateKeywords, e.cfg.GateMinHits)
			if score == 0 || score < opts.MinScore {
				continue
			}
			results = append(results, SearchResult{
				Path:    path,
				Score:   score,
				Snippet: truncateSnippet(chunk.Text, e.cfg.PerSnippetBytes),
			})
		}
	}

	e.cache.Prune(requested)
	if err := e.cache.Flush(); err != nil {
		slog.Warn("chunk cache flush failed", "error", err)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > maxResults {
		results = results[:maxResults]
	}
	return results
}

// Warm touches every corpus document once so the first real query hits a
// hot cache. Reads run with bounded concurrency; unreadable documents are
// skipped.
func (e *Engine) Warm(ctx context.Context) error {
	paths := corpus.Scan(e.cfg.MemoryDir)
	requested := make(map[string]bool, len(paths))
	for _, p := range paths {
		requested[p] = true
	}

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(warmConcurrency)
	for _, path := range paths {
		path := path
		g.Go(func() error {
			if _, err := e.cache.GetOrRefresh(path); err != nil {
				slog.Debug("warmup skipped document", "path", path, "error", err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	e.cache.Prune(requested)
	return e.cache.Flush()
}

// truncateSnippet caps s at maxLen bytes, backing up so a multibyte rune is
// never split at the tail.
func truncateSnippet(s string, maxLen int) string {
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
