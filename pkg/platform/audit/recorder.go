package audit

import (
	"context"
	"log/slog"

	"brick/pkg/requestcontext"
)

// CommitScheduler defers work until the unit of work carried by ctx commits.
type CommitScheduler interface {
	AfterCommit(ctx context.Context, fn func())
}

// Recorder stamps events and emits them only once the surrounding unit of
// work has committed. A nil Recorder is a no-op so services can treat auditing
// as optional.
type Recorder struct {
	emitter   Emitter
	scheduler CommitScheduler
	logger    *slog.Logger
}

func NewRecorder(emitter Emitter, scheduler CommitScheduler, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{emitter: emitter, scheduler: scheduler, logger: logger}
}

// Record schedules ev for emission after commit.
func (r *Recorder) Record(ctx context.Context, action AuditEvent, ev Event) {
	if r == nil || r.emitter == nil {
		return
	}
	ev.Action = string(action)
	ev.Category = action.Category()
	if ev.Timestamp.IsZero() {
		ev.Timestamp = requestcontext.Now(ctx)
	}
	if ev.RequestID == "" {
		ev.RequestID = requestcontext.RequestID(ctx)
	}
	emit := func() {
		// Emission happens after commit; a failing sink must not undo settled work.
		if err := r.emitter.Emit(context.WithoutCancel(ctx), ev); err != nil {
			r.logger.WarnContext(ctx, "audit emit failed",
				"action", ev.Action,
				"entity_type", ev.EntityType,
				"entity_id", ev.EntityID,
				"error", err,
			)
		}
	}
	if r.scheduler == nil {
		emit()
		return
	}
	r.scheduler.AfterCommit(ctx, emit)
}
