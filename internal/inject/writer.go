package inject

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/nextlevelbuilder/memkit/internal/config"
	"github.com/nextlevelbuilder/memkit/internal/fsx"
	"github.com/nextlevelbuilder/memkit/internal/memory"
)

// Writer appends marker-delimited retrieval sections to the dated output
// document, at most once per (session, day).
type Writer struct {
	cfg *config.Config
	now func() time.Time
}

// NewWriter creates an injection writer. The clock is replaceable for tests.
func NewWriter(cfg *config.Config) *Writer {
	return &Writer{cfg: cfg, now: time.Now}
}

// Inject renders the ranked results into today's dated document and returns
// the number of snippets written. A zero return with nil error means the
// session already injected today, a defined outcome, not a failure.
func (w *Writer) Inject(sessionID, query string, results []memory.SearchResult) (int, error) {
	if len(results) == 0 {
		return 0, nil
	}

	day := w.now()
	marker := SanitizeSessionMarker(sessionID)
	markerFile := SessionMarkerPath(w.cfg.SessionMarkerDir(), sessionID, day)

	// Existence test on the private marker file first: it narrows the
	// concurrent-append race to this session's own retries without reading
	// the shared document at all.
	if _, err := os.Stat(markerFile); err == nil {
		return 0, nil
	}

	docPath := w.cfg.DatedDocPath(day)
	existing, err := os.ReadFile(docPath)
	if err != nil && !os.IsNotExist(err) {
		return 0, fmt.Errorf("read dated document: %w", err)
	}
	if strings.Contains(string(existing), InjectMarkerLine(marker)) {
		w.writeMarkerFile(markerFile)
		return 0, nil
	}

	section, count := w.renderSection(marker, query, results)
	if count == 0 {
		return 0, nil
	}

	doc := string(existing)
	if doc != "" && !strings.HasSuffix(doc, "\n") {
		doc += "\n"
	}
	doc += section

	if err := fsx.WriteFileAtomic(docPath, []byte(doc), 0644); err != nil {
		return 0, fmt.Errorf("append injection section: %w", err)
	}
	w.writeMarkerFile(markerFile)

	slog.Info("injected retrieval results", "session", marker, "count", count, "doc", filepath.Base(docPath))
	return count, nil
}

// ClearSessionMarker removes the dedupe marker so a new session epoch can
// inject again the same day.
func (w *Writer) ClearSessionMarker(sessionID string) {
	markerFile := SessionMarkerPath(w.cfg.SessionMarkerDir(), sessionID, w.now())
	if err := os.Remove(markerFile); err != nil && !os.IsNotExist(err) {
		slog.Warn("failed to clear session marker", "error", err)
	}
}

func (w *Writer) writeMarkerFile(path string) {
	if err := fsx.WriteFileAtomic(path, []byte(w.now().Format(time.RFC3339)+"\n"), 0644); err != nil {
		slog.Warn("failed to write session marker", "error", err)
	}
}

// renderSection builds the marker-delimited block. Each snippet is capped at
// PerSnippetBytes and the section stops once TotalSnippetBytes of snippet
// content are used.
func (w *Writer) renderSection(marker, query string, results []memory.SearchResult) (string, int) {
	var sb strings.Builder
	sb.WriteString(InjectMarkerLine(marker))
	sb.WriteString("\n## Recalled context\n")
	fmt.Fprintf(&sb, "Query: %s\n\n", strings.ReplaceAll(query, "\n", " "))

	budget := w.cfg.TotalSnippetBytes
	count := 0
	for _, r := range results {
		if budget <= 0 {
			break
		}
		snippet := truncateBytes(r.Snippet, w.cfg.PerSnippetBytes)
		snippet = truncateBytes(snippet, budget)
		if strings.TrimSpace(snippet) == "" {
			continue
		}
		fmt.Fprintf(&sb, "### %s (score %.2f)\n%s\n\n", r.Path, r.Score, snippet)
		budget -= len(snippet)
		count++
	}

	sb.WriteString(EndMarker)
	sb.WriteString("\n")
	return sb.String(), count
}

// truncateBytes caps s at max bytes, backing up so a multibyte rune is never
// split at the tail.
func truncateBytes(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
