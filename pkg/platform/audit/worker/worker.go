package worker

import (
	"context"
	"log/slog"

	audit "brick/pkg/platform/audit"
)

// Worker drains audit events from a channel into a store. It returns when the
// inbox is closed and empty or when ctx is cancelled.
type Worker struct {
	store  audit.Store
	inbox  <-chan audit.Event
	logger *slog.Logger
}

func NewWorker(store audit.Store, inbox <-chan audit.Event) *Worker {
	return &Worker{store: store, inbox: inbox, logger: slog.Default()}
}

func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.inbox:
			if !ok {
				return nil
			}
			// A single failing event is logged and skipped so the pipeline keeps draining.
			if err := w.store.Append(ctx, event); err != nil {
				w.logger.WarnContext(ctx, "audit append failed",
					"event_id", event.ID,
					"action", event.Action,
					"error", err,
				)
			}
		}
	}
}
