//go:build integration

package kafka

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	audit "brick/pkg/platform/audit"
	"brick/pkg/testutil/containers"
)

func TestAppendProducesRecord(t *testing.T) {
	ctx := context.Background()
	broker := containers.Redpanda(t)

	store, err := New([]string{broker}, "brick.audit")
	require.NoError(t, err)
	defer store.Close()
	require.NoError(t, store.EnsureTopic(ctx, 1, 1))

	event := audit.Event{
		ID:         uuid.New(),
		Timestamp:  time.Now(),
		Action:     string(audit.EventTokenIssued),
		EntityType: "token",
		EntityID:   "prop-1",
		Amount:     1000,
	}
	require.NoError(t, store.Append(ctx, event))

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(broker),
		kgo.ConsumeTopics("brick.audit"),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	require.NoError(t, err)
	defer consumer.Close()

	pollCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	fetches := consumer.PollFetches(pollCtx)
	require.NoError(t, fetches.Err())
	records := fetches.Records()
	require.Len(t, records, 1)
	require.Equal(t, "token:prop-1", string(records[0].Key))
}
