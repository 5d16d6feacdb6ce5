package lifecycle

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/nextlevelbuilder/memkit/internal/config"
	"github.com/nextlevelbuilder/memkit/internal/inject"
)

func TestCompactDatedDoc(t *testing.T) {
	cfg := config.Default()
	cfg.MemoryDir = t.TempDir()
	day := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

	doc := strings.Join([]string{
		"# Notes for today",
		"",
		"Hand-written content that must survive.",
		"",
		inject.InjectMarkerLine("sess-a"),
		"## Recalled context",
		"Query: postgres connection pooling",
		"",
		"### infra.md (score 0.81)",
		"pool sizes and timeouts",
		"",
		inject.EndMarker,
		inject.InjectMarkerLine("sess-b"),
		"Query: billing deploy steps",
		"",
		"### infra.md (score 0.44)",
		"### billing.md (score 0.72)",
		"snippet text",
		inject.EndMarker,
		inject.NoticeMarker,
		"Memory files are getting large.",
		inject.EndMarker,
		"",
		"Trailing hand-written line.",
	}, "\n") + "\n"
	if err := os.WriteFile(cfg.DatedDocPath(day), []byte(doc), 0644); err != nil {
		t.Fatal(err)
	}

	if err := CompactDatedDoc(cfg, day); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(cfg.DatedDocPath(day))
	if err != nil {
		t.Fatal(err)
	}
	got := string(data)

	for _, keep := range []string{"# Notes for today", "must survive", "Trailing hand-written line."} {
		if !strings.Contains(got, keep) {
			t.Errorf("compaction dropped hand-written content %q", keep)
		}
	}
	for _, gone := range []string{
		inject.InjectMarkerLine("sess-a"),
		inject.NoticeMarker,
		"pool sizes and timeouts",
		"Memory files are getting large.",
	} {
		if strings.Contains(got, gone) {
			t.Errorf("compaction kept stripped content %q", gone)
		}
	}

	// One compacted digest replaces the stripped sections, crediting the
	// queries and the most-frequent source first.
	if strings.Count(got, inject.DigestMarker) != 1 {
		t.Fatalf("want exactly one digest section:\n%s", got)
	}
	if !strings.Contains(got, "- postgres connection pooling") ||
		!strings.Contains(got, "- billing deploy steps") {
		t.Error("compacted digest missing queries")
	}
	if !strings.Contains(got, "- infra.md (2)") {
		t.Error("compacted digest missing ranked source infra.md")
	}
	if strings.Index(got, "infra.md (2)") > strings.Index(got, "billing.md (1)") {
		t.Error("sources not ordered by frequency")
	}
}

func TestCompactDatedDoc_Reentrant(t *testing.T) {
	cfg := config.Default()
	cfg.MemoryDir = t.TempDir()
	day := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

	doc := inject.InjectMarkerLine("s1") + "\nQuery: alpha\n" + inject.EndMarker + "\n"
	if err := os.WriteFile(cfg.DatedDocPath(day), []byte(doc), 0644); err != nil {
		t.Fatal(err)
	}

	if err := CompactDatedDoc(cfg, day); err != nil {
		t.Fatal(err)
	}
	// A second compaction strips the digest it just wrote and replaces it:
	// still exactly one digest section, never an accumulation.
	if err := CompactDatedDoc(cfg, day); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(cfg.DatedDocPath(day))
	if err != nil {
		t.Fatal(err)
	}
	if strings.Count(string(data), inject.DigestMarker) != 1 {
		t.Errorf("want one digest section after recompaction:\n%s", data)
	}
}

func TestCompactDatedDoc_NoSections(t *testing.T) {
	cfg := config.Default()
	cfg.MemoryDir = t.TempDir()
	day := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

	original := "# Plain notes\n\nNothing engine-written here.\n"
	if err := os.WriteFile(cfg.DatedDocPath(day), []byte(original), 0644); err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(cfg.DatedDocPath(day))
	if err != nil {
		t.Fatal(err)
	}
	sentinel := info.ModTime().Add(-time.Hour)
	if err := os.Chtimes(cfg.DatedDocPath(day), sentinel, sentinel); err != nil {
		t.Fatal(err)
	}

	if err := CompactDatedDoc(cfg, day); err != nil {
		t.Fatal(err)
	}
	after, err := os.Stat(cfg.DatedDocPath(day))
	if err != nil {
		t.Fatal(err)
	}
	if !after.ModTime().Equal(sentinel) {
		t.Error("document without engine sections was rewritten")
	}
}

func TestCompactDatedDoc_MissingDoc(t *testing.T) {
	cfg := config.Default()
	cfg.MemoryDir = t.TempDir()
	if err := CompactDatedDoc(cfg, time.Now()); err != nil {
		t.Fatal(err)
	}
}
