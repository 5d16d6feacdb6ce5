// Package inject renders retrieval results into the dated output document,
// bounded by snippet budgets and deduplicated per (session, day).
package inject

import (
	"crypto/sha1"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// Section delimiters. All engine-written sections are HTML comments so they
// render invisibly and can be stripped structurally during compaction.
const (
	InjectMarkerPrefix = "<!-- memkit:inject "
	InjectMarkerSuffix = " -->"
	DigestMarker       = "<!-- memkit:digest -->"
	NoticeMarker       = "<!-- memkit:notice -->"
	EndMarker          = "<!-- memkit:end -->"
)

const maxMarkerLen = 48

var (
	unsafeMarkerChars = regexp.MustCompile(`[^A-Za-z0-9_-]+`)
	repeatedDashes    = regexp.MustCompile(`-{2,}`)
)

// SanitizeSessionMarker reduces a session id to a marker that cannot collide
// with the HTML-comment delimiter syntax: the allowed set excludes <, >, and
// whitespace entirely, so a marker can never terminate its own comment.
func SanitizeSessionMarker(sessionID string) string {
	m := unsafeMarkerChars.ReplaceAllString(sessionID, "-")
	m = repeatedDashes.ReplaceAllString(m, "-")
	m = strings.Trim(m, "-")
	if len(m) > maxMarkerLen {
		m = m[:maxMarkerLen]
	}
	if m == "" {
		m = "session"
	}
	return m
}

// InjectMarkerLine is the opening delimiter of a session's injected section.
func InjectMarkerLine(marker string) string {
	return InjectMarkerPrefix + marker + InjectMarkerSuffix
}

// SessionMarkerPath is the per-(session, day) dedupe file. It lives in the
// hidden state dir, keyed by a hash of the raw session id, so checking it is
// a plain existence test that never reads the shared document.
func SessionMarkerPath(markerDir, sessionID string, day time.Time) string {
	sum := sha1.Sum([]byte(sessionID))
	name := fmt.Sprintf("%x-%s", sum[:8], day.Format("2006-01-02"))
	return filepath.Join(markerDir, name)
}
