package inject

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/nextlevelbuilder/memkit/internal/config"
	"github.com/nextlevelbuilder/memkit/internal/memory"
)

// Status communicates the outcome of a first-message injection attempt.
type Status string

const (
	StatusDisabled         Status = "disabled"
	StatusSkippedShort     Status = "skipped-short-message"
	StatusSkippedHeuristic Status = "skipped-heuristic"
	StatusNoMemory         Status = "no-relevant-memory"
	StatusInjected         Status = "injected"
	StatusFallback         Status = "fallback"
)

// minInjectMessageLen is the shortest first message worth searching for.
const minInjectMessageLen = 10

// previewLen bounds each preview returned to the host.
const previewLen = 80

// Result is the injection entry point's outcome.
type Result struct {
	Status   Status   `json:"status"`
	Injected int      `json:"injected"`
	Previews []string `json:"previews,omitempty"`
	Fallback string   `json:"fallback,omitempty"`
}

// technicalCues mark messages that look like raw tool output or code rather
// than something with retrievable personal or project context.
var technicalCues = []*regexp.Regexp{
	regexp.MustCompile("```"),
	regexp.MustCompile(`(?i)\bstack\s*trace\b|\btraceback\b|\bpanic:|\bexception\b|\bsegfault\b`),
	regexp.MustCompile(`(?i)\berror\s*(code)?\s*[:=]?\s*\d+`),
	regexp.MustCompile(`^\s*[{\[]`),
	regexp.MustCompile(`(?m)^\s{4,}at\s`),
}

// personalCues indicate the message references shared history worth
// recalling.
var personalCues = regexp.MustCompile(`(?i)\b(my|our|we|me|remember|last time|yesterday|earlier|before|project|decided|decision|plan|preference)\b`)

// HandleFirstMessage is the injection entry point: given the session's first
// user message, retrieve relevant memory and inject it into today's dated
// document. It never returns an error; internal failures collapse into the
// configured fallback mode.
func HandleFirstMessage(cfg *config.Config, engine *memory.Engine, writer *Writer, sessionID, text string) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("injection failed, applying fallback", "panic", fmt.Sprint(r), "mode", cfg.Fallback)
			res = Result{Status: StatusFallback, Fallback: cfg.Fallback}
		}
	}()

	if !cfg.Enabled {
		return Result{Status: StatusDisabled}
	}

	trimmed := strings.TrimSpace(text)
	if len(trimmed) < minInjectMessageLen {
		return Result{Status: StatusSkippedShort}
	}
	if looksPurelyTechnical(trimmed) {
		return Result{Status: StatusSkippedHeuristic}
	}

	// Search the wider candidate pool; the writer's budgets pick the final
	// top-K from it.
	results := engine.Search(trimmed, memory.Options{
		MaxResults: cfg.MaxCandidates,
		MinScore:   cfg.MinScore,
	})
	if len(results) == 0 {
		return Result{Status: StatusNoMemory}
	}
	if len(results) > cfg.MaxResults {
		results = results[:cfg.MaxResults]
	}

	n, err := writer.Inject(sessionID, trimmed, results)
	if err != nil {
		slog.Error("injection write failed, applying fallback", "error", err, "mode", cfg.Fallback)
		return Result{Status: StatusFallback, Fallback: cfg.Fallback}
	}

	previews := make([]string, 0, len(results))
	if n > 0 {
		for _, r := range results[:n] {
			previews = append(previews, truncateBytes(r.Snippet, previewLen))
		}
	}
	return Result{Status: StatusInjected, Injected: n, Previews: previews}
}

// looksPurelyTechnical reports whether the message reads like raw tool
// output with no personal or project cues to anchor retrieval.
func looksPurelyTechnical(text string) bool {
	technical := false
	for _, re := range technicalCues {
		if re.MatchString(text) {
			technical = true
			break
		}
	}
	return technical && !personalCues.MatchString(text)
}
