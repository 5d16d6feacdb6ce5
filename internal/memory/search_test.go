package memory

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/nextlevelbuilder/memkit/internal/config"
)

func testEngine(t *testing.T) (*Engine, string) {
	t.Helper()
	cfg := config.Default()
	cfg.MemoryDir = t.TempDir()
	return NewEngine(cfg), cfg.MemoryDir
}

func writeDoc(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestEngine_Search(t *testing.T) {
	e, dir := testEngine(t)
	writeDoc(t, dir, "MEMORY.md", "# Notes\n\nThe backend deploys through the blue-green pipeline.")
	writeDoc(t, dir, "infra.md", "# Infra\n\nDatabase backups run nightly to object storage.")

	results := e.Search("backend pipeline", Options{MaxResults: 5, MinScore: 0.1})
	if len(results) == 0 {
		t.Fatal("expected results")
	}
	if filepath.Base(results[0].Path) != "MEMORY.md" {
		t.Errorf("top result = %s", results[0].Path)
	}
	for _, r := range results {
		if r.Score < 0.1 || r.Score > 1 {
			t.Errorf("score %f outside filter range", r.Score)
		}
		if r.Snippet == "" {
			t.Error("empty snippet")
		}
	}
}

func TestEngine_ShortQuery(t *testing.T) {
	e, dir := testEngine(t)
	writeDoc(t, dir, "a.md", "anything")

	if got := e.Search("ab", Options{}); got != nil {
		t.Errorf("short query returned %v", got)
	}
	if got := e.Search("  a ", Options{}); got != nil {
		t.Errorf("whitespace query returned %v", got)
	}
}

func TestEngine_NoKeywords(t *testing.T) {
	e, dir := testEngine(t)
	writeDoc(t, dir, "a.md", "anything")

	// All stop words / too short: corpus must stay untouched.
	if got := e.Search("the and for", Options{}); got != nil {
		t.Errorf("stopword query returned %v", got)
	}
	if e.Cache().Len() != 0 {
		t.Error("stopword query touched the corpus")
	}
}

func TestEngine_MaxResults(t *testing.T) {
	e, dir := testEngine(t)
	for i := 0; i < 8; i++ {
		writeDoc(t, dir, filepath.Join("notes", string(rune('a'+i))+".md"),
			"# Note\n\nkubernetes cluster maintenance notes")
	}

	results := e.Search("kubernetes cluster", Options{MaxResults: 3, MinScore: 0.1})
	if len(results) != 3 {
		t.Errorf("got %d results, want 3", len(results))
	}
}

func TestEngine_StableTieOrder(t *testing.T) {
	e, dir := testEngine(t)
	writeDoc(t, dir, "aaa.md", "release checklist for the api gateway")
	writeDoc(t, dir, "zzz.md", "release checklist for the api gateway")

	results := e.Search("release checklist", Options{MaxResults: 10, MinScore: 0.1})
	if len(results) != 2 {
		t.Fatalf("got %d results", len(results))
	}
	// Equal scores keep scan order (lexicographic in the scanner).
	if filepath.Base(results[0].Path) != "aaa.md" {
		t.Errorf("tie order broken: %s first", results[0].Path)
	}
}

func TestEngine_SecondSearchUsesCache(t *testing.T) {
	e, dir := testEngine(t)
	writeDoc(t, dir, "a.md", "# A\n\nterraform state locking notes")

	e.Search("terraform state", Options{MinScore: 0.1})

	cachePath := e.cfg.CachePath()
	first, err := os.Stat(cachePath)
	if err != nil {
		t.Fatalf("cache not persisted after first search: %v", err)
	}

	e.Search("terraform state", Options{MinScore: 0.1})
	second, _ := os.Stat(cachePath)
	if !second.ModTime().Equal(first.ModTime()) {
		t.Error("second search over unchanged corpus rewrote the cache")
	}
}

func TestEngine_Warm(t *testing.T) {
	e, dir := testEngine(t)
	writeDoc(t, dir, "a.md", "alpha content")
	writeDoc(t, dir, "b.md", "beta content")
	writeDoc(t, dir, "nested/c.md", "gamma content")

	if err := e.Warm(context.Background()); err != nil {
		t.Fatalf("Warm: %v", err)
	}
	if e.Cache().Len() != 3 {
		t.Errorf("cache has %d entries after warm, want 3", e.Cache().Len())
	}
	if _, err := os.Stat(e.cfg.CachePath()); err != nil {
		t.Errorf("cache not persisted after warm: %v", err)
	}
	_ = dir
}

func TestEngine_RegexHazard(t *testing.T) {
	e, dir := testEngine(t)
	writeDoc(t, dir, "a.md", "notes about c++ tests")

	// Must not panic and must return 0+ results.
	results := e.Search(`C++ what? (test)`, Options{MinScore: 0.0})
	for _, r := range results {
		if r.Score < 0 || r.Score > 1 {
			t.Errorf("score %f", r.Score)
		}
	}
}

func TestTruncateSnippet_RuneBoundary(t *testing.T) {
	s := strings.Repeat("é", 50) // 2 bytes per rune

	got := truncateSnippet(s, 25)
	if !utf8.ValidString(got) {
		t.Errorf("truncation split a rune: %q", got)
	}
	if len(got) != 24 {
		t.Errorf("len = %d, want 24 (backed up to rune boundary)", len(got))
	}
	if truncateSnippet(s, len(s)) != s {
		t.Error("string within the cap must be returned unchanged")
	}
}
