// Package protocol defines the event contract between the host agent
// runtime and the memory engine. The host dispatches lifecycle events
// (startup, session commands, ordinary turns); the engine never invents
// events on its own.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Event kinds dispatched by the host runtime.
const (
	KindStartup = "startup"
	KindCommand = "command"
)

// Command actions. An empty action is an ordinary per-turn event.
const (
	ActionNew   = "new"
	ActionReset = "reset"
	ActionStop  = "stop"
	ActionTurn  = ""
)

// ErrIgnoreEvent signals an event that must be silently dropped
// (missing or unusable session identifier on a command event).
var ErrIgnoreEvent = errors.New("event ignored")

// HookEvent is a single lifecycle event from the host runtime.
type HookEvent struct {
	Kind      string `json:"kind"`
	Action    string `json:"action,omitempty"`
	SessionID string `json:"sessionId,omitempty"`
	Message   string `json:"message,omitempty"`
}

// IsSessionEpoch reports whether the event starts a new session epoch
// (a `new` or `reset` command).
func (e *HookEvent) IsSessionEpoch() bool {
	return e.Kind == KindCommand && (e.Action == ActionNew || e.Action == ActionReset)
}

// IsTurn reports whether the event is an ordinary user turn.
func (e *HookEvent) IsTurn() bool {
	return e.Kind == KindCommand && e.Action == ActionTurn
}

// ParseHookEvent decodes a host event from JSON. Command events without a
// session identifier return ErrIgnoreEvent: the host occasionally emits
// synthetic commands with no session attached and those must not trigger
// any memory side effects.
func ParseHookEvent(data []byte) (*HookEvent, error) {
	var ev HookEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, fmt.Errorf("parse hook event: %w", err)
	}

	switch ev.Kind {
	case KindStartup:
		return &ev, nil
	case KindCommand:
		if strings.TrimSpace(ev.SessionID) == "" {
			return nil, ErrIgnoreEvent
		}
		switch ev.Action {
		case ActionNew, ActionReset, ActionStop, ActionTurn:
			return &ev, nil
		default:
			return nil, fmt.Errorf("unknown command action %q", ev.Action)
		}
	default:
		return nil, fmt.Errorf("unknown event kind %q", ev.Kind)
	}
}
