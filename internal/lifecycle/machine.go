package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/memkit/internal/config"
	"github.com/nextlevelbuilder/memkit/internal/fsx"
	"github.com/nextlevelbuilder/memkit/internal/inject"
	"github.com/nextlevelbuilder/memkit/internal/memory"
	"github.com/nextlevelbuilder/memkit/internal/sessions"
	"github.com/nextlevelbuilder/memkit/pkg/protocol"
)

// Machine coordinates the lifecycle actions. Each incoming event runs the
// actions appropriate to it; every action failure is logged and skipped so
// one broken file never blocks the rest of the check.
type Machine struct {
	cfg         *config.Config
	engine      *memory.Engine
	writer      *inject.Writer
	transcripts sessions.TranscriptSource
	states      *StateStore
	now         func() time.Time
}

func NewMachine(cfg *config.Config, engine *memory.Engine, writer *inject.Writer, transcripts sessions.TranscriptSource) *Machine {
	return &Machine{
		cfg:         cfg,
		engine:      engine,
		writer:      writer,
		transcripts: transcripts,
		states:      NewStateStore(cfg.StatePath()),
		now:         time.Now,
	}
}

// HandleEvent dispatches a host event to its lifecycle actions.
func (m *Machine) HandleEvent(ctx context.Context, ev *protocol.HookEvent) {
	runID := uuid.NewString()[:8]
	log := slog.With("run", runID, "kind", ev.Kind, "action", ev.Action)

	switch {
	case ev.Kind == protocol.KindStartup:
		m.runCheck(ctx, log, false, "")
	case ev.IsSessionEpoch():
		m.runCheck(ctx, log, true, ev.SessionID)
	case ev.Action == protocol.ActionStop:
		// Session ended: the transcript is final, so the digest is worth
		// refreshing once more.
		if err := RefreshDigest(m.cfg, m.transcripts); err != nil {
			log.Error("digest refresh failed", "error", err)
		}
	case ev.IsTurn():
		m.OnTurn(ev.SessionID, ev.Message)
	}
}

// runCheck is the startup / session-epoch sequence: warm the cache, refresh
// the digest, on epochs compact the dated document and clear the session's
// dedupe marker, then look for document bloat.
func (m *Machine) runCheck(ctx context.Context, log *slog.Logger, epoch bool, sessionID string) {
	if err := m.engine.Warm(ctx); err != nil {
		log.Error("cache warmup failed", "error", err)
	}
	if err := RefreshDigest(m.cfg, m.transcripts); err != nil {
		log.Error("digest refresh failed", "error", err)
	}
	if epoch {
		if err := CompactDatedDoc(m.cfg, m.now()); err != nil {
			log.Error("dated document compaction failed", "error", err)
		}
		if sessionID != "" {
			m.writer.ClearSessionMarker(sessionID)
		}
	}
	m.checkBloat(log)
}

// OnTurn inspects a user message while a consent prompt is pending. Consent
// runs the optimization and returns to idle; a decline snoozes the prompt.
// Anything ambiguous leaves the state untouched.
func (m *Machine) OnTurn(sessionID, message string) Verdict {
	st := m.states.Load()
	if !st.PendingConsent {
		return VerdictAmbiguous
	}

	verdict := ClassifyConsent(message)
	now := m.now()
	switch verdict {
	case VerdictConsent:
		if err := Optimize(m.cfg, now); err != nil {
			slog.Error("optimization failed, prompt stays pending", "error", err)
			return verdict
		}
		st.PendingConsent = false
		st.OptimizedAt = now.UnixMilli()
	case VerdictDecline:
		st.PendingConsent = false
		st.DeclinedAt = now.UnixMilli()
		st.SnoozeUntil = now.Add(m.cfg.SnoozeDuration()).UnixMilli()
	default:
		return verdict
	}

	if err := m.states.Save(st); err != nil {
		slog.Error("failed to persist maintenance state", "error", err)
	}
	slog.Info("consent prompt resolved", "session", sessionID, "verdict", verdict.String())
	return verdict
}

// checkBloat measures the dated and core documents against their thresholds
// and, when either is oversized, appends a maintenance notice and marks the
// consent prompt pending. Skipped while a prompt is already pending or the
// snooze window is still open.
func (m *Machine) checkBloat(log *slog.Logger) {
	st := m.states.Load()
	now := m.now()
	if st.Phase(now) != PhaseIdle {
		return
	}

	oversized := describeBloat(m.cfg, now)
	if oversized == "" {
		return
	}

	if err := m.appendNotice(now, oversized); err != nil {
		log.Error("failed to append maintenance notice", "error", err)
		return
	}
	st.PendingConsent = true
	st.LastPromptAt = now.UnixMilli()
	if err := m.states.Save(st); err != nil {
		log.Error("failed to persist maintenance state", "error", err)
	}
	log.Info("maintenance prompt added", "reason", oversized)
}

// describeBloat returns a human-readable description of which documents
// exceed their thresholds, or "" when neither does.
func describeBloat(cfg *config.Config, now time.Time) string {
	var parts []string
	if n := fileSize(cfg.DatedDocPath(now)); n > int64(cfg.DatedBloatBytes) {
		parts = append(parts, fmt.Sprintf("%s is %d bytes", filepath.Base(cfg.DatedDocPath(now)), n))
	}
	if n := fileSize(cfg.CoreDocPath()); n > int64(cfg.CoreBloatBytes) {
		parts = append(parts, fmt.Sprintf("%s is %d bytes", config.CoreDocName, n))
	}
	return strings.Join(parts, ", ")
}

func fileSize(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}

func (m *Machine) appendNotice(now time.Time, reason string) error {
	docPath := m.cfg.DatedDocPath(now)
	existing, err := os.ReadFile(docPath)
	if err != nil && !os.IsNotExist(err) {
		return err
	}

	var b strings.Builder
	b.Write(existing)
	if len(existing) > 0 && existing[len(existing)-1] != '\n' {
		b.WriteByte('\n')
	}
	b.WriteString(inject.NoticeMarker + "\n")
	b.WriteString("Memory files are getting large (" + reason + ").\n")
	b.WriteString("Reply \"yes, optimize memory\" to archive and compact them, or \"no\" to snooze.\n")
	b.WriteString(inject.EndMarker + "\n")

	return fsx.WriteFileAtomic(docPath, []byte(b.String()), 0644)
}
