// Package lifecycle reacts to host session events: it warms the chunk cache,
// refreshes the cross-session digest, compacts the dated output document on
// session epochs, and runs a consent-gated archive-then-compact optimization
// when the long-lived documents grow past their bloat thresholds.
package lifecycle

import (
	"encoding/json"
	"log/slog"
	"os"
	"time"

	"github.com/nextlevelbuilder/memkit/internal/fsx"
)

// Phase is the derived maintenance phase. It is not persisted directly; it
// falls out of the pendingConsent flag and the snooze deadline.
type Phase string

const (
	PhaseIdle          Phase = "idle"
	PhasePromptPending Phase = "prompt_pending"
	PhaseSnoozed       Phase = "snoozed"
)

// State is the persisted maintenance record. Timestamps are Unix
// milliseconds; zero means never.
type State struct {
	PendingConsent bool  `json:"pendingConsent"`
	LastPromptAt   int64 `json:"lastPromptAt,omitempty"`
	OptimizedAt    int64 `json:"optimizedAt,omitempty"`
	SnoozeUntil    int64 `json:"snoozeUntil,omitempty"`
	DeclinedAt     int64 `json:"declinedAt,omitempty"`
}

// Phase derives the maintenance phase at the given instant.
func (s *State) Phase(now time.Time) Phase {
	switch {
	case s.PendingConsent:
		return PhasePromptPending
	case s.SnoozeUntil > now.UnixMilli():
		return PhaseSnoozed
	default:
		return PhaseIdle
	}
}

// StateStore persists the maintenance state as a small JSON document.
type StateStore struct {
	path string
}

func NewStateStore(path string) *StateStore {
	return &StateStore{path: path}
}

// Load reads the persisted state. A missing or corrupt file yields a fresh
// state so maintenance keeps working after manual edits or partial writes.
func (ss *StateStore) Load() *State {
	st := &State{}
	data, err := os.ReadFile(ss.path)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("failed to read maintenance state, starting fresh", "path", ss.path, "error", err)
		}
		return st
	}
	if err := json.Unmarshal(data, st); err != nil {
		slog.Warn("corrupt maintenance state, starting fresh", "path", ss.path, "error", err)
		return &State{}
	}
	return st
}

// Save writes the state atomically.
func (ss *StateStore) Save(st *State) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	return fsx.WriteFileAtomic(ss.path, append(data, '\n'), 0644)
}
