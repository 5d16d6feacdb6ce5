package memory

import (
	"math"
	"regexp"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Scoring weights and bounds. The coverage-gate thresholds live in config;
// these weights are fixed.
const (
	hitWeight        = 0.85
	bonusWeight      = 0.3
	maxCountedRepeat = 8   // occurrences counted per keyword per chunk
	maxKeywordBonus  = 1.0 // per-keyword repetition bonus cap
	minKeywordLen    = 3
)

// MinQueryLen is the minimum query length the orchestrator accepts.
const MinQueryLen = 3

// stopWords are never extracted as keywords.
var stopWords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "are": {}, "was": {}, "were": {},
	"but": {}, "not": {}, "you": {}, "your": {}, "our": {}, "this": {},
	"that": {}, "these": {}, "those": {}, "with": {}, "from": {}, "into": {},
	"have": {}, "has": {}, "had": {}, "what": {}, "when": {}, "where": {},
	"which": {}, "who": {}, "why": {}, "how": {}, "will": {}, "would": {},
	"could": {}, "should": {}, "can": {}, "may": {}, "might": {}, "about": {},
	"over": {}, "under": {}, "then": {}, "than": {}, "they": {}, "them": {},
	"their": {}, "there": {}, "here": {}, "just": {}, "like": {}, "some": {},
	"more": {}, "most": {}, "also": {}, "been": {}, "being": {}, "does": {},
	"did": {}, "doing": {}, "any": {}, "all": {}, "its": {}, "it's": {},
	"out": {}, "get": {}, "got": {}, "use": {}, "used": {}, "using": {},
	"please": {}, "tell": {}, "know": {}, "want": {}, "need": {},
}

// keywordChars is the set a keyword may contain after normalization:
// letters, digits, and _+#.- so identifiers like "c++" or "node.js"
// survive extraction intact.
func isKeywordChar(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
		return true
	case r == '_' || r == '+' || r == '#' || r == '.' || r == '-':
		return true
	}
	return false
}

var wordOnlyRe = regexp.MustCompile(`^[a-z0-9_]+$`)

// matcherCache reuses compiled word-boundary regexes across queries within
// one process. Keyed by keyword; bounded so a pathological query stream
// cannot grow it without limit.
var matcherCache, _ = lru.New[string, *regexp.Regexp](512)

// ExtractKeywords normalizes a free-text query into search keywords:
// lowercased, stripped to the allowed character set, longer than two
// characters, not a stop word, deduplicated in order.
func ExtractKeywords(query string) []string {
	var keywords []string
	seen := make(map[string]bool)

	for _, field := range strings.Fields(strings.ToLower(query)) {
		var b strings.Builder
		for _, r := range field {
			if isKeywordChar(r) {
				b.WriteRune(r)
			}
		}
		kw := strings.Trim(b.String(), ".-")
		if len(kw) < minKeywordLen {
			continue
		}
		if _, stop := stopWords[kw]; stop {
			continue
		}
		if seen[kw] {
			continue
		}
		seen[kw] = true
		keywords = append(keywords, kw)
	}
	return keywords
}

// Matcher matches one keyword against lowercased chunk text. Word-only
// keywords use compiled \b-boundary regexes; keywords containing
// punctuation (c++, node.js) use a literal scan with explicit boundary
// checks, since \b treats the punctuation itself as a boundary.
type Matcher struct {
	keyword string
	re      *regexp.Regexp // nil for literal matchers
}

// CompileMatchers builds one matcher per keyword. Matchers are compiled
// once per query and reused across every chunk of every document: scoring
// cost per chunk must not include regex compilation.
func CompileMatchers(keywords []string) []*Matcher {
	matchers := make([]*Matcher, 0, len(keywords))
	for _, kw := range keywords {
		m := &Matcher{keyword: kw}
		if wordOnlyRe.MatchString(kw) {
			if re, ok := matcherCache.Get(kw); ok {
				m.re = re
			} else {
				re = regexp.MustCompile(`\b` + regexp.QuoteMeta(kw) + `\b`)
				matcherCache.Add(kw, re)
				m.re = re
			}
		}
		matchers = append(matchers, m)
	}
	return matchers
}

// Count returns the number of occurrences in textLower, capped at max.
func (m *Matcher) Count(textLower string, max int) int {
	if m.re != nil {
		return len(m.re.FindAllStringIndex(textLower, max))
	}
	return countLiteral(textLower, m.keyword, max)
}

// countLiteral counts non-overlapping boundary-respecting occurrences of a
// punctuation-bearing keyword.
func countLiteral(text, kw string, max int) int {
	count := 0
	for i := 0; count < max; {
		j := strings.Index(text[i:], kw)
		if j < 0 {
			break
		}
		start := i + j
		end := start + len(kw)
		if boundaryAt(text, start-1) && boundaryAt(text, end) {
			count++
		}
		i = end
	}
	return count
}

// boundaryAt reports whether position idx is outside the text or holds a
// non-word byte.
func boundaryAt(text string, idx int) bool {
	if idx < 0 || idx >= len(text) {
		return true
	}
	b := text[idx]
	return !(b >= 'a' && b <= 'z' || b >= '0' && b <= '9' || b == '_')
}

// ScoreChunk scores one chunk against pre-compiled matchers. Result is in
// [0,1]. Repetition of a keyword adds a logarithmic bonus, capped per
// keyword, so repeating a term never lowers the score. The coverage gate
// zeroes the score of queries with gateKeywords or more keywords unless at
// least gateMinHits distinct keywords matched, since one generic term must not
// carry a long query.
func ScoreChunk(matchers []*Matcher, textLower string, gateKeywords, gateMinHits int) float64 {
	n := len(matchers)
	if n == 0 {
		return 0
	}

	hits := 0
	bonus := 0.0
	for _, m := range matchers {
		c := m.Count(textLower, maxCountedRepeat)
		if c == 0 {
			continue
		}
		hits++
		bonus += math.Min(maxKeywordBonus, math.Log1p(float64(c-1)))
	}

	if hits == 0 {
		return 0
	}
	if gateKeywords > 0 && n >= gateKeywords && hits < gateMinHits {
		return 0
	}

	score := hitWeight*float64(hits)/float64(n) + bonusWeight*bonus/float64(n)
	return math.Min(1, score)
}
