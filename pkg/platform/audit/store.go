package audit

import (
	"context"

	"brick/pkg/domain"
)

// Store is an append-only audit sink.
type Store interface {
	Append(ctx context.Context, event Event) error
}

// Reader is implemented by sinks that can be queried back (memory, postgres).
type Reader interface {
	ListByEntity(ctx context.Context, entityType, entityID string) ([]Event, error)
	ListByActor(ctx context.Context, actor domain.Principal) ([]Event, error)
	ListRecent(ctx context.Context, limit int) ([]Event, error)
}

// Emitter is what domain services depend on.
type Emitter interface {
	Emit(ctx context.Context, event Event) error
}

// MultiStore appends to every store in order and returns the first error.
type MultiStore []Store

func (m MultiStore) Append(ctx context.Context, event Event) error {
	for _, s := range m {
		if err := s.Append(ctx, event); err != nil {
			return err
		}
	}
	return nil
}
