// Package corpus enumerates the markdown documents eligible for retrieval.
package corpus

import (
	"bytes"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// ArchiveDirName is the reserved snapshot directory, never scanned.
const ArchiveDirName = "archive"

// datedDocRe matches the per-day output documents the engine writes itself.
// Excluding them from the corpus keeps injected sections from feeding back
// into the search index.
var datedDocRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}\.md$`)

// frontmatter is the subset of note frontmatter the scanner honors.
type frontmatter struct {
	Search *bool `yaml:"search"`
}

// IsDatedDoc reports whether name matches the dated-output pattern.
func IsDatedDoc(name string) bool {
	return datedDocRe.MatchString(name)
}

// Scan returns the eligible document paths under root, sorted for a
// deterministic scan order. Hidden directories (dot-prefixed), the archive
// directory, non-markdown files, dated output documents, and notes that opt
// out via `search: false` frontmatter are all excluded. Unreadable
// directories are treated as empty.
func Scan(root string) []string {
	var paths []string
	walk(root, &paths)
	sort.Strings(paths)
	return paths
}

func walk(dir string, paths *[]string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}

	for _, e := range entries {
		name := e.Name()
		if e.IsDir() {
			if strings.HasPrefix(name, ".") || name == ArchiveDirName {
				continue
			}
			walk(filepath.Join(dir, name), paths)
			continue
		}

		if !strings.HasSuffix(name, ".md") || IsDatedDoc(name) {
			continue
		}
		path := filepath.Join(dir, name)
		if optedOut(path) {
			continue
		}
		*paths = append(*paths, path)
	}
}

// optedOut reports whether the document's frontmatter sets `search: false`.
// Only the leading frontmatter block is read; malformed frontmatter is
// treated as no opt-out.
func optedOut(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	head := make([]byte, 4096)
	n, _ := f.Read(head)
	head = head[:n]

	if !bytes.HasPrefix(head, []byte("---\n")) {
		return false
	}
	rest := head[4:]
	end := bytes.Index(rest, []byte("\n---"))
	if end < 0 {
		return false
	}

	var fm frontmatter
	if err := yaml.Unmarshal(rest[:end], &fm); err != nil {
		return false
	}
	return fm.Search != nil && !*fm.Search
}
