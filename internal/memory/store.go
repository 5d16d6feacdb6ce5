// Package memory implements the retrieval engine: markdown-aware chunking,
// an mtime-keyed persistent chunk cache, and lexical relevance scoring over
// the note corpus.
package memory

// Chunk is a bounded excerpt of a document, the unit of relevance scoring.
// Original casing is preserved; scoring lowercases on the fly.
type Chunk struct {
	Text string `json:"text"`
}

// SearchResult is a single ranked retrieval hit.
type SearchResult struct {
	Path    string  `json:"path"`
	Score   float64 `json:"score"`
	Snippet string  `json:"snippet"`
}

// Options configures a single search call.
type Options struct {
	Dir        string  // corpus root; empty uses the engine's configured dir
	MaxResults int     // top-K truncation
	MinScore   float64 // filter threshold in [0,1]
}
