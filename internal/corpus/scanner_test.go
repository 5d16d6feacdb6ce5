package corpus

import (
	"os"
	"path/filepath"
	"testing"
)

func write(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestScan_Exclusions(t *testing.T) {
	root := t.TempDir()

	write(t, filepath.Join(root, "MEMORY.md"), "# Core")
	write(t, filepath.Join(root, "notes", "project.md"), "# Project")
	write(t, filepath.Join(root, "2026-08-26.md"), "# Dated output")
	write(t, filepath.Join(root, "archive", "MEMORY-20260801-120000.md"), "# Snapshot")
	write(t, filepath.Join(root, ".state", "cache.json"), "{}")
	write(t, filepath.Join(root, ".hidden", "secret.md"), "# Hidden")
	write(t, filepath.Join(root, "readme.txt"), "not markdown")

	paths := Scan(root)

	want := map[string]bool{
		filepath.Join(root, "MEMORY.md"):           true,
		filepath.Join(root, "notes", "project.md"): true,
	}
	if len(paths) != len(want) {
		t.Fatalf("Scan returned %d paths: %v", len(paths), paths)
	}
	for _, p := range paths {
		if !want[p] {
			t.Errorf("unexpected path %s", p)
		}
	}
}

func TestScan_FrontmatterOptOut(t *testing.T) {
	root := t.TempDir()

	write(t, filepath.Join(root, "private.md"), "---\nsearch: false\n---\n# Private")
	write(t, filepath.Join(root, "public.md"), "---\nsearch: true\n---\n# Public")
	write(t, filepath.Join(root, "plain.md"), "# Plain note")
	write(t, filepath.Join(root, "broken.md"), "---\n{{not yaml\n---\n# Broken frontmatter")

	paths := Scan(root)

	if len(paths) != 3 {
		t.Fatalf("Scan returned %d paths: %v", len(paths), paths)
	}
	for _, p := range paths {
		if filepath.Base(p) == "private.md" {
			t.Error("opted-out note was scanned")
		}
	}
}

func TestScan_MissingRoot(t *testing.T) {
	if paths := Scan(filepath.Join(t.TempDir(), "nope")); len(paths) != 0 {
		t.Errorf("missing root returned %v", paths)
	}
}

func TestScan_Deterministic(t *testing.T) {
	root := t.TempDir()
	write(t, filepath.Join(root, "b.md"), "b")
	write(t, filepath.Join(root, "a.md"), "a")
	write(t, filepath.Join(root, "c.md"), "c")

	first := Scan(root)
	second := Scan(root)
	if len(first) != 3 {
		t.Fatalf("got %d paths", len(first))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("scan order not deterministic: %v vs %v", first, second)
		}
	}
}

func TestIsDatedDoc(t *testing.T) {
	cases := map[string]bool{
		"2026-08-26.md":  true,
		"1999-01-01.md":  true,
		"MEMORY.md":      false,
		"2026-08-26.txt": false,
		"x2026-08-26.md": false,
	}
	for name, want := range cases {
		if got := IsDatedDoc(name); got != want {
			t.Errorf("IsDatedDoc(%q) = %v, want %v", name, got, want)
		}
	}
}
