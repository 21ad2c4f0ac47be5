package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	audit "brick/pkg/platform/audit"
	"brick/pkg/platform/audit/store/memory"
)

func TestWorker_DrainsUntilInboxCloses(t *testing.T) {
	store := memory.NewInMemoryStore()
	inbox := make(chan audit.Event, 3)
	for _, id := range []string{"1", "2", "3"} {
		inbox <- audit.Event{EntityType: "order", EntityID: id}
	}
	close(inbox)

	require.NoError(t, NewWorker(store, inbox).Run(context.Background()))

	events, err := store.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, "3", events[2].EntityID)
}

type flakyStore struct {
	inner audit.Store
	fail  string
}

func (f flakyStore) Append(ctx context.Context, ev audit.Event) error {
	if ev.EntityID == f.fail {
		return errors.New("rejected")
	}
	return f.inner.Append(ctx, ev)
}

func TestWorker_SkipsFailedEvents(t *testing.T) {
	store := memory.NewInMemoryStore()
	inbox := make(chan audit.Event, 2)
	inbox <- audit.Event{EntityType: "order", EntityID: "bad"}
	inbox <- audit.Event{EntityType: "order", EntityID: "good"}
	close(inbox)

	require.NoError(t, NewWorker(flakyStore{inner: store, fail: "bad"}, inbox).Run(context.Background()))

	events, err := store.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "good", events[0].EntityID)
}

func TestWorker_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- NewWorker(memory.NewInMemoryStore(), make(chan audit.Event)).Run(ctx)
	}()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}
