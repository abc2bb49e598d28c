package notify

import (
	"context"
	"log/slog"
)

// Worker drains an inbox channel into a sink so slow brokers never sit on the
// request path. Delivery failures are logged and dropped; the ledger remains
// the source of truth.
type Worker struct {
	sink   Notifier
	inbox  <-chan Event
	logger *slog.Logger
}

func NewWorker(sink Notifier, inbox <-chan Event, logger *slog.Logger) *Worker {
	return &Worker{sink: sink, inbox: inbox, logger: logger}
}

func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-w.inbox:
			if err := w.sink.Emit(ctx, event); err != nil {
				w.logger.ErrorContext(ctx, "notification delivery failed",
					"kind", event.Kind,
					"transfer_id", event.TransferID,
					"error", err,
				)
			}
		}
	}
}

// Inbox is a Notifier that enqueues onto a channel for a Worker. Emit never
// blocks: when the buffer is full the event is dropped and counted against
// the caller's log, matching the fire-and-forget contract.
type Inbox struct {
	ch     chan<- Event
	logger *slog.Logger
}

func NewInbox(ch chan<- Event, logger *slog.Logger) *Inbox {
	return &Inbox{ch: ch, logger: logger}
}

func (i *Inbox) Emit(ctx context.Context, event Event) error {
	select {
	case i.ch <- event:
		return nil
	default:
		i.logger.WarnContext(ctx, "notification inbox full, dropping event",
			"kind", event.Kind,
			"transfer_id", event.TransferID,
		)
		return nil
	}
}
