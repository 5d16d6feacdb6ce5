// Package config holds the resolved engine configuration. The config is
// constructed once at process start and threaded into every component
// constructor; nothing reads ambient global state.
//
// Precedence, lowest to highest: built-in defaults, JSON5 config file,
// MEMKIT_* environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/titanous/json5"
)

// Fallback modes for internal retrieval errors.
const (
	FallbackContinue     = "continue"      // proceed without injected context
	FallbackAssumeLoaded = "assume-loaded" // behave as if the full corpus were present
)

// CoreDocName is the long-lived document the optimizer watches for bloat.
const CoreDocName = "MEMORY.md"

// Config is the full tuning surface of the engine.
type Config struct {
	Enabled     bool   `json:"enabled"`
	MemoryDir   string `json:"memoryDir"`
	SessionsDir string `json:"sessionsDir"`

	// Retrieval
	MaxResults    int     `json:"maxResults"`
	MaxCandidates int     `json:"maxCandidates"`
	MinScore      float64 `json:"minScore"`
	GateKeywords  int     `json:"gateKeywords"`
	GateMinHits   int     `json:"gateMinHits"`

	// Chunking and cache
	MaxChunkChars   int `json:"maxChunkChars"`
	MaxChunksPerDoc int `json:"maxChunksPerDoc"`
	CacheMaxEntries int `json:"cacheMaxEntries"`
	CacheMaxBytes   int `json:"cacheMaxBytes"`

	// Injection budgets (bytes of snippet content)
	TotalSnippetBytes int `json:"totalSnippetBytes"`
	PerSnippetBytes   int `json:"perSnippetBytes"`

	// Maintenance
	DatedBloatBytes int `json:"datedBloatBytes"`
	CoreBloatBytes  int `json:"coreBloatBytes"`
	SnoozeHours     int `json:"snoozeHours"`
	DigestMaxBytes  int `json:"digestMaxBytes"`
	DigestSessions  int `json:"digestSessions"`
	MaxSummaryLines int `json:"maxSummaryLines"`

	// Fallback behavior on internal retrieval errors:
	// "continue" (default) or "assume-loaded".
	Fallback string `json:"fallback"`
}

// Default returns the built-in configuration. The memory dir defaults to
// ./memory under the working directory; callers normally override it.
func Default() *Config {
	return &Config{
		Enabled:           true,
		MemoryDir:         "memory",
		SessionsDir:       "sessions",
		MaxResults:        6,
		MaxCandidates:     50,
		MinScore:          0.25,
		GateKeywords:      4,
		GateMinHits:       2,
		MaxChunkChars:     1200,
		MaxChunksPerDoc:   50,
		CacheMaxEntries:   400,
		CacheMaxBytes:     4 << 20,
		TotalSnippetBytes: 2800,
		PerSnippetBytes:   700,
		DatedBloatBytes:   50_000,
		CoreBloatBytes:    30_000,
		SnoozeHours:       24,
		DigestMaxBytes:    4096,
		DigestSessions:    5,
		MaxSummaryLines:   60,
		Fallback:          FallbackContinue,
	}
}

// Load reads a JSON5 config file and merges it over the defaults.
// A missing file is not an error: defaults (plus env) apply.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// fall through to env overrides
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := json5.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	cfg.applyEnv()
	cfg.normalize()
	return cfg, nil
}

// SnoozeDuration returns the decline snooze window.
func (c *Config) SnoozeDuration() time.Duration {
	return time.Duration(c.SnoozeHours) * time.Hour
}

// StateDir is the hidden directory holding the chunk cache, maintenance
// state, and per-session markers. Hidden so the corpus scanner never
// indexes it.
func (c *Config) StateDir() string {
	return filepath.Join(c.MemoryDir, ".state")
}

// ArchiveDir holds full-document snapshots taken before optimization.
func (c *Config) ArchiveDir() string {
	return filepath.Join(c.MemoryDir, "archive")
}

// CachePath is the persisted chunk cache document.
func (c *Config) CachePath() string {
	return filepath.Join(c.StateDir(), "cache.json")
}

// StatePath is the persisted maintenance state document.
func (c *Config) StatePath() string {
	return filepath.Join(c.StateDir(), "maintenance.json")
}

// SessionMarkerDir holds the per-(session, day) injection dedupe markers.
func (c *Config) SessionMarkerDir() string {
	return filepath.Join(c.StateDir(), "sessions")
}

// CoreDocPath is the long-lived core document.
func (c *Config) CoreDocPath() string {
	return filepath.Join(c.MemoryDir, CoreDocName)
}

// DatedDocPath is the per-day output document for the given time.
func (c *Config) DatedDocPath(t time.Time) string {
	return filepath.Join(c.MemoryDir, t.Format("2006-01-02")+".md")
}

// DigestPath is the cross-session digest document.
func (c *Config) DigestPath() string {
	return filepath.Join(c.MemoryDir, "digest.md")
}

func (c *Config) applyEnv() {
	if v := os.Getenv("MEMKIT_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Enabled = b
		}
	}
	if v := os.Getenv("MEMKIT_MEMORY_DIR"); v != "" {
		c.MemoryDir = v
	}
	if v := os.Getenv("MEMKIT_SESSIONS_DIR"); v != "" {
		c.SessionsDir = v
	}
	if v := os.Getenv("MEMKIT_MAX_RESULTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.MaxResults = n
		}
	}
	if v := os.Getenv("MEMKIT_MIN_SCORE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.MinScore = f
		}
	}
	if v := os.Getenv("MEMKIT_FALLBACK"); v != "" {
		c.Fallback = v
	}
}

// normalize clamps nonsensical values back to defaults so a partial or
// hand-edited config file cannot wedge the engine.
func (c *Config) normalize() {
	d := Default()
	if c.MaxResults <= 0 {
		c.MaxResults = d.MaxResults
	}
	if c.MaxCandidates < c.MaxResults {
		c.MaxCandidates = d.MaxCandidates
	}
	if c.MinScore < 0 || c.MinScore > 1 {
		c.MinScore = d.MinScore
	}
	if c.GateKeywords <= 0 {
		c.GateKeywords = d.GateKeywords
	}
	if c.GateMinHits <= 0 {
		c.GateMinHits = d.GateMinHits
	}
	if c.MaxChunkChars <= 0 {
		c.MaxChunkChars = d.MaxChunkChars
	}
	if c.MaxChunksPerDoc <= 0 {
		c.MaxChunksPerDoc = d.MaxChunksPerDoc
	}
	if c.CacheMaxEntries <= 0 {
		c.CacheMaxEntries = d.CacheMaxEntries
	}
	if c.CacheMaxBytes <= 0 {
		c.CacheMaxBytes = d.CacheMaxBytes
	}
	if c.PerSnippetBytes <= 0 {
		c.PerSnippetBytes = d.PerSnippetBytes
	}
	if c.TotalSnippetBytes < c.PerSnippetBytes {
		c.TotalSnippetBytes = d.TotalSnippetBytes
	}
	if c.SnoozeHours <= 0 {
		c.SnoozeHours = d.SnoozeHours
	}
	if c.DigestMaxBytes <= 0 {
		c.DigestMaxBytes = d.DigestMaxBytes
	}
	if c.DigestSessions <= 0 {
		c.DigestSessions = d.DigestSessions
	}
	if c.MaxSummaryLines <= 0 {
		c.MaxSummaryLines = d.MaxSummaryLines
	}
	if c.Fallback != FallbackContinue && c.Fallback != FallbackAssumeLoaded {
		c.Fallback = FallbackContinue
	}
}
