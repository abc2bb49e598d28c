// Package notify delivers workflow events to the notification/audit sink.
// Emission failures are logged by callers and never roll back a transfer.
package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Notifier receives structured events emitted by the workflow engine.
type Notifier interface {
	Emit(ctx context.Context, event Event) error
}

// Log writes events to the structured log. Used when no broker is configured.
type Log struct {
	logger *slog.Logger
}

func NewLog(logger *slog.Logger) *Log {
	return &Log{logger: logger}
}

func (n *Log) Emit(ctx context.Context, event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	n.logger.InfoContext(ctx, "transfer event",
		"kind", event.Kind,
		"transfer_id", event.TransferID,
		"family_id", event.FamilyID,
		"from_office", event.FromOfficeID,
		"to_office", event.ToOfficeID,
		"actor", event.Actor,
	)
	return nil
}

// Memory captures events for assertions in tests.
type Memory struct {
	mu     sync.Mutex
	events []Event
	// FailWith, when set, is returned from Emit to exercise the engine's
	// fire-and-forget policy.
	FailWith error
}

func NewMemory() *Memory {
	return &Memory{}
}

func (n *Memory) Emit(_ context.Context, event Event) error {
	if n.FailWith != nil {
		return n.FailWith
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	return nil
}

// Events returns a snapshot of everything captured so far.
func (n *Memory) Events() []Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]Event, len(n.events))
	copy(out, n.events)
	return out
}
