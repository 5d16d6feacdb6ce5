package sessions

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestUserTurns(t *testing.T) {
	dir := t.TempDir()
	content := `{"role":"user","text":"first question","ts":1}
{"role":"assistant","text":"an answer","ts":2}
not json at all
{"role":"user","text":"second question","ts":3}
{"role":"user","text":"   ","ts":4}
`
	os.WriteFile(filepath.Join(dir, "sess-1.jsonl"), []byte(content), 0644)

	store := NewStore(dir)
	turns, err := store.UserTurns("sess-1")
	if err != nil {
		t.Fatalf("UserTurns: %v", err)
	}
	if len(turns) != 2 {
		t.Fatalf("got %d turns, want 2: %+v", len(turns), turns)
	}
	if turns[0].Text != "first question" || turns[1].Text != "second question" {
		t.Errorf("turns out of order: %+v", turns)
	}
}

func TestUserTurns_SanitizedSessionID(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "agent-main-42.jsonl"),
		[]byte(`{"role":"user","text":"hello"}`+"\n"), 0644)

	store := NewStore(dir)
	turns, err := store.UserTurns("agent:main/42")
	if err != nil {
		t.Fatalf("UserTurns: %v", err)
	}
	if len(turns) != 1 {
		t.Errorf("got %d turns", len(turns))
	}
}

func TestUserTurns_Missing(t *testing.T) {
	store := NewStore(t.TempDir())
	if _, err := store.UserTurns("nope"); err == nil {
		t.Error("expected error for missing transcript")
	}
}

func TestRecentSessions(t *testing.T) {
	dir := t.TempDir()
	base := time.Now().Add(-time.Hour)
	for i, id := range []string{"old", "mid", "new"} {
		p := filepath.Join(dir, id+".jsonl")
		os.WriteFile(p, []byte(`{"role":"user","text":"x"}`+"\n"), 0644)
		mt := base.Add(time.Duration(i) * time.Minute)
		os.Chtimes(p, mt, mt)
	}

	store := NewStore(dir)
	ids, err := store.RecentSessions(2)
	if err != nil {
		t.Fatalf("RecentSessions: %v", err)
	}
	if len(ids) != 2 || ids[0] != "new" || ids[1] != "mid" {
		t.Errorf("ids = %v", ids)
	}
}

func TestRecentSessions_MissingDir(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "nope"))
	ids, err := store.RecentSessions(5)
	if err != nil || len(ids) != 0 {
		t.Errorf("ids = %v, err = %v", ids, err)
	}
}
