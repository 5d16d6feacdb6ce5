package lifecycle

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/nextlevelbuilder/memkit/internal/config"
	"github.com/nextlevelbuilder/memkit/internal/fsx"
)

// fallbackSummaryBytes caps the flattened-text summary used when a document
// has no headings or bullets to keep.
const fallbackSummaryBytes = 2048

// Optimize archives full snapshots of the core document and the day's dated
// document, then rewrites each to a compacted heading/bullet summary. It
// only ever runs after an explicit affirmative user message; the archive
// snapshot is written before the document is touched so nothing is lost.
func Optimize(cfg *config.Config, now time.Time) error {
	var firstErr error
	for _, docPath := range []string{cfg.CoreDocPath(), cfg.DatedDocPath(now)} {
		if err := optimizeDoc(cfg, docPath, now); err != nil {
			slog.Error("optimization failed for document", "doc", filepath.Base(docPath), "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func optimizeDoc(cfg *config.Config, docPath string, now time.Time) error {
	data, err := os.ReadFile(docPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read document: %w", err)
	}

	archivePath := archiveSnapshotPath(cfg.ArchiveDir(), docPath, now)
	if err := fsx.WriteFileAtomic(archivePath, data, 0644); err != nil {
		return fmt.Errorf("write archive snapshot: %w", err)
	}

	summary := summarize(string(data), cfg.MaxSummaryLines)
	if err := fsx.WriteFileAtomic(docPath, []byte(summary), 0644); err != nil {
		return fmt.Errorf("rewrite document: %w", err)
	}

	slog.Info("optimized document",
		"doc", filepath.Base(docPath),
		"archived", filepath.Base(archivePath),
		"before", len(data), "after", len(summary))
	return nil
}

// archiveSnapshotPath names snapshots with a second-resolution timestamp so
// concurrent lifecycle checks duplicating the archival step collide into
// distinct, equally valid files.
func archiveSnapshotPath(archiveDir, docPath string, now time.Time) string {
	base := strings.TrimSuffix(filepath.Base(docPath), ".md")
	return filepath.Join(archiveDir, fmt.Sprintf("%s-%s.md", base, now.Format("20060102-150405")))
}

// summarize keeps the document's structural lines (headings and bullets) up
// to the line cap. A document with no structure falls back to a truncated
// flattened-text summary.
func summarize(text string, maxLines int) string {
	var kept []string
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if strings.HasPrefix(trimmed, "#") ||
			strings.HasPrefix(trimmed, "- ") ||
			strings.HasPrefix(trimmed, "* ") {
			kept = append(kept, trimmed)
			if len(kept) >= maxLines {
				break
			}
		}
	}
	if len(kept) > 0 {
		return strings.Join(kept, "\n") + "\n"
	}

	flat := truncateBytes(strings.Join(strings.Fields(text), " "), fallbackSummaryBytes)
	if flat == "" {
		return ""
	}
	return flat + "\n"
}
