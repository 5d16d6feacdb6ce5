package lifecycle

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nextlevelbuilder/memkit/internal/config"
)

func TestOptimize_ArchivesAndRewrites(t *testing.T) {
	cfg := config.Default()
	cfg.MemoryDir = t.TempDir()
	now := time.Date(2026, 3, 14, 15, 4, 5, 0, time.UTC)

	core := strings.Join([]string{
		"# Preferences",
		"",
		"- prefers concise answers",
		"- deploys on fridays",
		"",
		"Some long prose paragraph that the summary drops entirely because",
		"it is neither a heading nor a bullet.",
	}, "\n") + "\n"
	if err := os.WriteFile(cfg.CoreDocPath(), []byte(core), 0644); err != nil {
		t.Fatal(err)
	}
	dated := "## Today\n\n- shipped the billing fix\n\nfiller prose\n"
	if err := os.WriteFile(cfg.DatedDocPath(now), []byte(dated), 0644); err != nil {
		t.Fatal(err)
	}

	if err := Optimize(cfg, now); err != nil {
		t.Fatal(err)
	}

	// Full snapshots land in the archive with timestamped names.
	for _, name := range []string{"MEMORY-20260314-150405.md", "2026-03-14-20260314-150405.md"} {
		if _, err := os.Stat(filepath.Join(cfg.ArchiveDir(), name)); err != nil {
			t.Errorf("missing archive snapshot %s: %v", name, err)
		}
	}
	snap, err := os.ReadFile(filepath.Join(cfg.ArchiveDir(), "MEMORY-20260314-150405.md"))
	if err != nil {
		t.Fatal(err)
	}
	if string(snap) != core {
		t.Error("archive snapshot is not a byte-for-byte copy")
	}

	// The live documents are compacted to their structural lines.
	got, err := os.ReadFile(cfg.CoreDocPath())
	if err != nil {
		t.Fatal(err)
	}
	want := "# Preferences\n- prefers concise answers\n- deploys on fridays\n"
	if string(got) != want {
		t.Errorf("core doc = %q, want %q", got, want)
	}
	if rewritten, _ := os.ReadFile(cfg.DatedDocPath(now)); strings.Contains(string(rewritten), "filler prose") {
		t.Error("dated doc kept non-structural prose")
	}
}

func TestOptimize_MissingDocsAreSkipped(t *testing.T) {
	cfg := config.Default()
	cfg.MemoryDir = t.TempDir()
	if err := Optimize(cfg, time.Now()); err != nil {
		t.Fatal(err)
	}
}

func TestSummarize(t *testing.T) {
	if got := summarize("# A\n- b\n- c\n- d\n", 2); got != "# A\n- b\n" {
		t.Errorf("line cap: got %q", got)
	}

	flat := summarize("no structure\nat   all here\n", 10)
	if flat != "no structure at all here\n" {
		t.Errorf("fallback: got %q", flat)
	}

	long := strings.Repeat("word ", 1000)
	if got := summarize(long, 10); len(got) > fallbackSummaryBytes+1 {
		t.Errorf("fallback not truncated: %d bytes", len(got))
	}

	if got := summarize("", 10); got != "" {
		t.Errorf("empty input: got %q", got)
	}
}
