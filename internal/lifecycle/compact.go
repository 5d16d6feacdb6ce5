package lifecycle

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/nextlevelbuilder/memkit/internal/config"
	"github.com/nextlevelbuilder/memkit/internal/fsx"
	"github.com/nextlevelbuilder/memkit/internal/inject"
)

const maxCompactSources = 8

// sectionSummary accumulates what the stripped sections contained so the
// replacement digest can credit the queries and most-frequent sources.
type sectionSummary struct {
	queries []string
	sources map[string]int
}

// CompactDatedDoc strips every prior injection, digest, and notice section
// from the day's output document and replaces them with one compacted digest
// listing the removed queries and their most-frequent source documents. A
// document with no engine-written sections is left untouched.
func CompactDatedDoc(cfg *config.Config, day time.Time) error {
	docPath := cfg.DatedDocPath(day)
	data, err := os.ReadFile(docPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read dated document: %w", err)
	}

	kept, summary, stripped := stripSections(string(data))
	if stripped == 0 {
		return nil
	}

	doc := strings.TrimRight(kept, "\n")
	if doc != "" {
		doc += "\n\n"
	}
	doc += renderCompactedDigest(summary)

	return fsx.WriteFileAtomic(docPath, []byte(doc), 0644)
}

// stripSections walks the document line by line. Engine sections open with
// an inject, digest, or notice marker and close at the end marker; their
// interior lines are parsed for query text and source headings, then
// dropped. Everything outside a section is kept verbatim.
func stripSections(doc string) (kept string, summary sectionSummary, stripped int) {
	summary.sources = map[string]int{}

	var out []string
	inSection := false
	for _, line := range strings.Split(doc, "\n") {
		trimmed := strings.TrimSpace(line)
		if !inSection {
			if isSectionStart(trimmed) {
				inSection = true
				stripped++
				continue
			}
			out = append(out, line)
			continue
		}
		if trimmed == inject.EndMarker {
			inSection = false
			continue
		}
		if q, ok := strings.CutPrefix(trimmed, "Query: "); ok {
			summary.queries = append(summary.queries, q)
		}
		if h, ok := strings.CutPrefix(trimmed, "### "); ok {
			// Source headings carry a trailing score suffix.
			if i := strings.LastIndex(h, " (score "); i > 0 {
				h = h[:i]
			}
			summary.sources[h]++
		}
	}
	return strings.Join(out, "\n"), summary, stripped
}

func isSectionStart(line string) bool {
	if line == inject.DigestMarker || line == inject.NoticeMarker {
		return true
	}
	return strings.HasPrefix(line, inject.InjectMarkerPrefix) &&
		strings.HasSuffix(line, inject.InjectMarkerSuffix)
}

func renderCompactedDigest(summary sectionSummary) string {
	var b strings.Builder
	b.WriteString(inject.DigestMarker + "\n")
	b.WriteString("## Compacted history\n\n")

	if len(summary.queries) > 0 {
		b.WriteString("Queries:\n")
		for _, q := range summary.queries {
			b.WriteString("- " + q + "\n")
		}
		b.WriteString("\n")
	}
	if srcs := rankSources(summary.sources); len(srcs) > 0 {
		b.WriteString("Top sources:\n")
		for _, s := range srcs {
			b.WriteString(fmt.Sprintf("- %s (%d)\n", s, summary.sources[s]))
		}
		b.WriteString("\n")
	}
	b.WriteString(inject.EndMarker + "\n")
	return b.String()
}

func rankSources(sources map[string]int) []string {
	names := make([]string, 0, len(sources))
	for name := range sources {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if sources[names[i]] != sources[names[j]] {
			return sources[names[i]] > sources[names[j]]
		}
		return names[i] < names[j]
	})
	if len(names) > maxCompactSources {
		names = names[:maxCompactSources]
	}
	return names
}
