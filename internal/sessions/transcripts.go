// Package sessions reads the conversation transcripts persisted by the host
// runtime. Transcripts are append-only JSONL files, one per session; this
// package only ever reads them.
package sessions

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// Turn is one transcript entry.
type Turn struct {
	Role string `json:"role"`
	Text string `json:"text"`
	TS   int64  `json:"ts,omitempty"`
}

// TranscriptSource yields the ordered user turns of a session. The digest
// builder and the consent detector both consume transcripts only through
// this interface.
type TranscriptSource interface {
	UserTurns(sessionID string) ([]Turn, error)
	RecentSessions(limit int) ([]string, error)
}

// Store reads transcripts from a directory of <session>.jsonl files.
type Store struct {
	dir string
}

// NewStore creates a transcript reader over dir.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

var unsafeSessionChars = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// fileFor maps a session id to its transcript file, collapsing characters
// that cannot appear in a filename.
func (s *Store) fileFor(sessionID string) string {
	name := unsafeSessionChars.ReplaceAllString(sessionID, "-")
	return filepath.Join(s.dir, name+".jsonl")
}

// UserTurns returns the session's user turns in transcript order.
// Unparseable lines are skipped; a missing transcript is an error the
// caller is expected to log and move past.
func (s *Store) UserTurns(sessionID string) ([]Turn, error) {
	f, err := os.Open(s.fileFor(sessionID))
	if err != nil {
		return nil, fmt.Errorf("open transcript: %w", err)
	}
	defer f.Close()

	var turns []Turn
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var turn Turn
		if err := json.Unmarshal(line, &turn); err != nil {
			continue
		}
		if turn.Role == "user" && strings.TrimSpace(turn.Text) != "" {
			turns = append(turns, turn)
		}
	}
	if err := scanner.Err(); err != nil {
		return turns, fmt.Errorf("read transcript: %w", err)
	}
	return turns, nil
}

// RecentSessions lists up to limit session ids, most recently written
// first. A missing transcript directory yields an empty list.
func (s *Store) RecentSessions(limit int) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list transcripts: %w", err)
	}

	type aged struct {
		id    string
		mtime int64
	}
	var sessions []aged
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".jsonl") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		sessions = append(sessions, aged{
			id:    strings.TrimSuffix(e.Name(), ".jsonl"),
			mtime: info.ModTime().UnixNano(),
		})
	}
	sort.Slice(sessions, func(i, j int) bool { return sessions[i].mtime > sessions[j].mtime })

	if limit > 0 && len(sessions) > limit {
		sessions = sessions[:limit]
	}
	ids := make([]string, len(sessions))
	for i, s := range sessions {
		ids[i] = s.id
	}
	return ids, nil
}
