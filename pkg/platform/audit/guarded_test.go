package audit

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"brick/pkg/platform/circuit"
)

type flakyStore struct {
	err   error
	calls int
}

func (f *flakyStore) Append(context.Context, Event) error {
	f.calls++
	return f.err
}

func TestGuardedStoreDropsWhileOpen(t *testing.T) {
	inner := &flakyStore{err: errors.New("broker down")}
	g := NewGuardedStore(inner, circuit.New("audit_kafka", circuit.WithFailureThreshold(2)))
	ctx := context.Background()

	assert.Error(t, g.Append(ctx, Event{Action: string(EventOrderCreated)}))
	assert.Error(t, g.Append(ctx, Event{Action: string(EventOrderCreated)}))
	assert.ErrorIs(t, g.Append(ctx, Event{Action: string(EventOrderCreated)}), ErrSinkUnavailable)
	assert.Equal(t, 2, inner.calls)
}

func TestGuardedStorePassesThrough(t *testing.T) {
	inner := &flakyStore{}
	g := NewGuardedStore(inner, circuit.New("audit_postgres"))
	assert.NoError(t, g.Append(context.Background(), Event{}))
	assert.Equal(t, 1, inner.calls)
}
