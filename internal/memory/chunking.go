package memory

import (
	"regexp"
	"strings"
)

// Chunking defaults; tunable via config.
const (
	DefaultMaxChunkChars   = 1200
	DefaultMaxChunksPerDoc = 50
)

var headingRe = regexp.MustCompile(`^#{1,6}\s`)

// ChunkText splits markdown text into bounded chunks: first at heading
// boundaries, then by packing paragraphs up to maxLen. A single paragraph
// longer than maxLen becomes one oversized chunk rather than being split
// mid-sentence. At most maxChunks chunks are returned; the remainder of a
// pathological document is dropped.
//
// Pure and deterministic: identical input always yields identical chunks.
func ChunkText(text string, maxLen, maxChunks int) []Chunk {
	if maxLen <= 0 {
		maxLen = DefaultMaxChunkChars
	}
	if maxChunks <= 0 {
		maxChunks = DefaultMaxChunksPerDoc
	}

	var chunks []Chunk
	for _, block := range splitAtHeadings(text) {
		cur := ""
		for _, para := range splitParagraphs(block) {
			if cur == "" {
				cur = para
				continue
			}
			if len(cur)+2+len(para) > maxLen {
				chunks = append(chunks, Chunk{Text: cur})
				cur = para
				continue
			}
			cur += "\n\n" + para
		}
		if cur != "" {
			chunks = append(chunks, Chunk{Text: cur})
		}
	}

	if len(chunks) > maxChunks {
		chunks = chunks[:maxChunks]
	}
	return chunks
}

// splitAtHeadings cuts text into blocks, each starting at a heading line.
// Text before the first heading forms its own block.
func splitAtHeadings(text string) []string {
	lines := strings.Split(text, "\n")
	var blocks []string
	var cur []string

	for _, line := range lines {
		if headingRe.MatchString(line) && len(cur) > 0 {
			blocks = append(blocks, strings.Join(cur, "\n"))
			cur = cur[:0]
		}
		cur = append(cur, line)
	}
	if len(cur) > 0 {
		blocks = append(blocks, strings.Join(cur, "\n"))
	}
	return blocks
}

// splitParagraphs splits a block on blank lines, dropping empty paragraphs.
func splitParagraphs(block string) []string {
	var paras []string
	var cur []string

	flush := func() {
		p := strings.TrimRight(strings.Join(cur, "\n"), " \t\n")
		if strings.TrimSpace(p) != "" {
			paras = append(paras, p)
		}
		cur = cur[:0]
	}

	for _, line := range strings.Split(block, "\n") {
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		cur = append(cur, line)
	}
	flush()
	return paras
}
