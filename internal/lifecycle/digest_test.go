package lifecycle

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/nextlevelbuilder/memkit/internal/config"
	"github.com/nextlevelbuilder/memkit/internal/sessions"
)

func digestFixture(t *testing.T) (*config.Config, *sessions.Store) {
	t.Helper()
	cfg := config.Default()
	cfg.MemoryDir = t.TempDir()
	cfg.SessionsDir = t.TempDir()

	transcript := strings.Join([]string{
		`{"role":"user","text":"we decided to use postgres for the billing service"}`,
		`{"role":"assistant","text":"decided noted"}`,
		`{"role":"user","text":"todo: migrate the billing schema next week"}`,
		`{"role":"user","text":"the billing deploy went fine"}`,
	}, "\n") + "\n"
	if err := os.WriteFile(filepath.Join(cfg.SessionsDir, "s1.jsonl"), []byte(transcript), 0644); err != nil {
		t.Fatal(err)
	}
	return cfg, sessions.NewStore(cfg.SessionsDir)
}

func TestRefreshDigest_Content(t *testing.T) {
	cfg, src := digestFixture(t)

	if err := RefreshDigest(cfg, src); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(cfg.DigestPath())
	if err != nil {
		t.Fatal(err)
	}
	digest := string(data)

	if !strings.Contains(digest, "billing") {
		t.Error("digest missing the dominant topic")
	}
	if !strings.Contains(digest, "decided to use postgres") {
		t.Error("digest missing the decision line")
	}
	if !strings.Contains(digest, "migrate the billing schema") {
		t.Error("digest missing the open thread line")
	}
}

func TestRefreshDigest_OnlyWritesOnChange(t *testing.T) {
	cfg, src := digestFixture(t)

	if err := RefreshDigest(cfg, src); err != nil {
		t.Fatal(err)
	}
	first, err := os.Stat(cfg.DigestPath())
	if err != nil {
		t.Fatal(err)
	}

	// Mark the digest with a sentinel mtime; an unchanged regeneration must
	// not rewrite the file.
	sentinel := first.ModTime().Add(-time.Hour)
	if err := os.Chtimes(cfg.DigestPath(), sentinel, sentinel); err != nil {
		t.Fatal(err)
	}
	if err := RefreshDigest(cfg, src); err != nil {
		t.Fatal(err)
	}
	second, err := os.Stat(cfg.DigestPath())
	if err != nil {
		t.Fatal(err)
	}
	if !second.ModTime().Equal(sentinel) {
		t.Error("unchanged digest was rewritten")
	}
}

func TestRefreshDigest_ByteCap(t *testing.T) {
	cfg, src := digestFixture(t)
	cfg.DigestMaxBytes = 64

	if err := RefreshDigest(cfg, src); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(cfg.DigestPath())
	if err != nil {
		t.Fatal(err)
	}
	if len(data) > 64 {
		t.Errorf("digest is %d bytes, cap is 64", len(data))
	}
}

func TestRefreshDigest_NoSessions(t *testing.T) {
	cfg := config.Default()
	cfg.MemoryDir = t.TempDir()
	cfg.SessionsDir = filepath.Join(t.TempDir(), "absent")

	if err := RefreshDigest(cfg, sessions.NewStore(cfg.SessionsDir)); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(cfg.DigestPath()); !os.IsNotExist(err) {
		t.Error("digest written despite having no sessions")
	}
}

func TestRefreshDigest_MultibyteCapStaysValid(t *testing.T) {
	cfg := config.Default()
	cfg.MemoryDir = t.TempDir()
	cfg.SessionsDir = t.TempDir()

	// A decision line longer than the per-line cap, all multibyte runes.
	line := "we decided " + strings.Repeat("ö", 120)
	transcript := `{"role":"user","text":"` + line + `"}` + "\n"
	if err := os.WriteFile(filepath.Join(cfg.SessionsDir, "s1.jsonl"), []byte(transcript), 0644); err != nil {
		t.Fatal(err)
	}

	if err := RefreshDigest(cfg, sessions.NewStore(cfg.SessionsDir)); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(cfg.DigestPath())
	if err != nil {
		t.Fatal(err)
	}
	if !utf8.Valid(data) {
		t.Error("digest contains invalid UTF-8 after truncation")
	}
}
