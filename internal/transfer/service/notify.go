package service

import (
	"context"
	"log/slog"

	"civreg/internal/notify"
	"civreg/internal/transfer/models"
	id "civreg/pkg/domain"
	"civreg/pkg/requestcontext"
)

// eventEmitter delivers workflow events best-effort. The transition has
// already committed by the time we get here, so a failed emit is logged and
// swallowed rather than rolled into the response.
type eventEmitter struct {
	notifier Notifier
	logger   *slog.Logger
}

func newEventEmitter(logger *slog.Logger, notifier Notifier) *eventEmitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &eventEmitter{notifier: notifier, logger: logger}
}

func (e *eventEmitter) emit(ctx context.Context, event notify.Event) {
	if e.notifier == nil {
		return
	}
	event.RequestID = requestcontext.RequestID(ctx)
	if event.Timestamp.IsZero() {
		event.Timestamp = requestcontext.Now(ctx)
	}
	if err := e.notifier.Emit(ctx, event); err != nil {
		e.logger.WarnContext(ctx, "failed to emit transfer event",
			"kind", event.Kind,
			"transfer_id", event.TransferID,
			"error", err,
		)
	}
}

func eventFor(kind notify.Kind, req *models.TransferRequest, actor id.ActorID, note string) notify.Event {
	return notify.Event{
		Kind:         kind,
		TransferID:   req.ID,
		FamilyID:     req.FamilyID,
		FromOfficeID: req.FromOfficeID,
		ToOfficeID:   req.ToOfficeID,
		Actor:        actor,
		Note:         note,
	}
}
