package lifecycle

import (
	"bytes"
	"fmt"
	"os"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/nextlevelbuilder/memkit/internal/config"
	"github.com/nextlevelbuilder/memkit/internal/fsx"
	"github.com/nextlevelbuilder/memkit/internal/memory"
	"github.com/nextlevelbuilder/memkit/internal/sessions"
)

const (
	maxDigestTopics  = 8
	maxDigestEntries = 10
	maxDigestLineLen = 200
)

var decisionCues = []string{
	"decided", "agreed", "we will", "we'll", "chose", "going with", "settled on",
}

var openThreadCues = []string{
	"todo", "need to", "needs to", "open question", "next step", "follow up", "still need",
}

// RefreshDigest regenerates the cross-session digest from recent transcript
// files: candidate topics by keyword frequency, decision sentences, and
// open-thread sentences, capped to the configured byte budget. The file is
// rewritten only when its content actually changed, so an unchanged digest
// never touches the document's mtime.
func RefreshDigest(cfg *config.Config, src sessions.TranscriptSource) error {
	ids, err := src.RecentSessions(cfg.DigestSessions)
	if err != nil {
		return fmt.Errorf("list recent sessions: %w", err)
	}
	if len(ids) == 0 {
		return nil
	}

	topicFreq := map[string]int{}
	var decisions, threads []string
	for _, id := range ids {
		turns, err := src.UserTurns(id)
		if err != nil {
			// Unreadable transcripts are skipped, never fatal.
			continue
		}
		for _, turn := range turns {
			for _, kw := range memory.ExtractKeywords(turn.Text) {
				topicFreq[kw]++
			}
			for _, line := range strings.Split(turn.Text, "\n") {
				classifyDigestLine(line, &decisions, &threads)
			}
		}
	}

	content := truncateBytes(renderDigest(topicFreq, decisions, threads), cfg.DigestMaxBytes)

	existing, err := os.ReadFile(cfg.DigestPath())
	if err == nil && bytes.Equal(existing, []byte(content)) {
		return nil
	}
	return fsx.WriteFileAtomic(cfg.DigestPath(), []byte(content), 0644)
}

func classifyDigestLine(line string, decisions, threads *[]string) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return
	}
	lower := strings.ToLower(trimmed)
	trimmed = truncateBytes(trimmed, maxDigestLineLen)
	for _, cue := range decisionCues {
		if strings.Contains(lower, cue) {
			appendUnique(decisions, trimmed)
			return
		}
	}
	for _, cue := range openThreadCues {
		if strings.Contains(lower, cue) {
			appendUnique(threads, trimmed)
			return
		}
	}
}

func appendUnique(list *[]string, line string) {
	if len(*list) >= maxDigestEntries {
		return
	}
	for _, existing := range *list {
		if existing == line {
			return
		}
	}
	*list = append(*list, line)
}

func renderDigest(topicFreq map[string]int, decisions, threads []string) string {
	var b strings.Builder
	b.WriteString("# Session digest\n\n")

	if topics := topTopics(topicFreq, maxDigestTopics); len(topics) > 0 {
		b.WriteString("Topics: " + strings.Join(topics, ", ") + "\n\n")
	}
	if len(decisions) > 0 {
		b.WriteString("## Decisions\n\n")
		for _, d := range decisions {
			b.WriteString("- " + d + "\n")
		}
		b.WriteString("\n")
	}
	if len(threads) > 0 {
		b.WriteString("## Open threads\n\n")
		for _, t := range threads {
			b.WriteString("- " + t + "\n")
		}
		b.WriteString("\n")
	}
	return b.String()
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

// topTopics returns the n most frequent keywords, frequency descending with
// alphabetical tie-break so the digest is deterministic across runs.
func topTopics(freq map[string]int, n int) []string {
	type entry struct {
		kw    string
		count int
	}
	all := make([]entry, 0, len(freq))
	for kw, count := range freq {
		if count > 1 {
			all = append(all, entry{kw, count})
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].count != all[j].count {
			return all[i].count > all[j].count
		}
		return all[i].kw < all[j].kw
	})
	if len(all) > n {
		all = all[:n]
	}
	topics := make([]string, len(all))
	for i, e := range all {
		topics[i] = e.kw
	}
	return topics
}
