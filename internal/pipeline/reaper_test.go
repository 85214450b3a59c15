package pipeline

import (
	"context"
	"testing"
	"time"

	"scout/internal/model"
	"scout/internal/pipeline/pipelinetest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestSweepReapsStaleBatch(t *testing.T) {
	ctx := context.Background()
	store := pipelinetest.NewMemStore()
	seedBatch(t, store, &model.Batch{
		ID:            "stale-1",
		OwnerID:       "owner-1",
		TotalJobs:     3,
		CompletedJobs: 1,
		Status:        model.BatchProcessing,
		StartedAt:     time.Now().Add(-20 * time.Minute),
	})

	reaper := NewReaper(store, NewNotifier(store, testContacts()), time.Minute, 10*time.Minute)

	reaped, err := reaper.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, reaped)

	batch, err := store.GetBatchByID(ctx, "stale-1")
	require.NoError(t, err)
	assert.Equal(t, model.BatchTimeout, batch.Status)
	assert.Equal(t, "processed 1/3", batch.Note)
	assert.True(t, batch.NotificationSent)
	require.NotNil(t, batch.CompletedAt)

	intents, err := store.ListNotificationIntentsByBatch(ctx, "stale-1")
	require.NoError(t, err)
	require.Len(t, intents, 1)
	assert.Contains(t, intents[0].Subject, "partially ready")
	assert.Contains(t, intents[0].Body, "processed 1/3")
}

func TestSweepLeavesFreshBatchesAlone(t *testing.T) {
	ctx := context.Background()
	store := pipelinetest.NewMemStore()
	seedBatch(t, store, &model.Batch{
		ID:        "fresh-1",
		OwnerID:   "owner-1",
		TotalJobs: 3,
		Status:    model.BatchProcessing,
		StartedAt: time.Now().Add(-2 * time.Minute),
	})

	reaper := NewReaper(store, NewNotifier(store, testContacts()), time.Minute, 10*time.Minute)

	reaped, err := reaper.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, reaped)

	batch, err := store.GetBatchByID(ctx, "fresh-1")
	require.NoError(t, err)
	assert.Equal(t, model.BatchProcessing, batch.Status)
}

func TestSweepSkipsClaimedNotification(t *testing.T) {
	ctx := context.Background()
	store := pipelinetest.NewMemStore()

	// A handler claimed the request id but has not finished its dispatch;
	// the batch is not the reaper's to touch
	claimed := primitive.NewObjectID()
	seedBatch(t, store, &model.Batch{
		ID:                    "racing-1",
		OwnerID:               "owner-1",
		TotalJobs:             2,
		CompletedJobs:         2,
		Status:                model.BatchProcessing,
		NotificationRequestID: &claimed,
		StartedAt:             time.Now().Add(-20 * time.Minute),
	})

	reaper := NewReaper(store, NewNotifier(store, testContacts()), time.Minute, 10*time.Minute)

	reaped, err := reaper.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, reaped)

	batch, err := store.GetBatchByID(ctx, "racing-1")
	require.NoError(t, err)
	assert.Equal(t, model.BatchProcessing, batch.Status)
}

func TestSweepIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := pipelinetest.NewMemStore()
	seedBatch(t, store, &model.Batch{
		ID:        "stale-1",
		OwnerID:   "owner-1",
		TotalJobs: 1,
		Status:    model.BatchProcessing,
		StartedAt: time.Now().Add(-30 * time.Minute),
	})

	reaper := NewReaper(store, NewNotifier(store, testContacts()), time.Minute, 10*time.Minute)

	reaped, err := reaper.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, reaped)

	reaped, err = reaper.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, reaped)

	intents, err := store.ListNotificationIntentsByBatch(ctx, "stale-1")
	require.NoError(t, err)
	assert.Len(t, intents, 1)
}
