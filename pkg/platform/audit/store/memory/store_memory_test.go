package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"brick/pkg/domain"
	audit "brick/pkg/platform/audit"
)

func TestInMemoryStore_Queries(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.Append(ctx, audit.Event{Actor: "alice", EntityType: "order", EntityID: "1", Timestamp: base}))
	require.NoError(t, s.Append(ctx, audit.Event{Actor: "bob", EntityType: "order", EntityID: "1", Timestamp: base.Add(time.Minute)}))
	require.NoError(t, s.Append(ctx, audit.Event{Actor: "alice", EntityType: "property", EntityID: "P1", Timestamp: base.Add(2 * time.Minute)}))

	byEntity, err := s.ListByEntity(ctx, "order", "1")
	require.NoError(t, err)
	assert.Len(t, byEntity, 2)

	byActor, err := s.ListByActor(ctx, domain.Principal("alice"))
	require.NoError(t, err)
	assert.Len(t, byActor, 2)

	recent, err := s.ListRecent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "P1", recent[0].EntityID)
	assert.Equal(t, domain.Principal("bob"), recent[1].Actor)

	s.Clear()
	all, err := s.ListAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}
