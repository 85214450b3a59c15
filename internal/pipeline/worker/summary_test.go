package worker

import (
	"context"
	"testing"

	"scout/internal/model"
	"scout/internal/pipeline"
	"scout/internal/rabbitmq"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scoreToSummaryStage pushes the item through basics and preference so the
// summary stage receives it in a legal state
func scoreToSummaryStage(t *testing.T, r *rig, msg model.WorkItem) {
	t.Helper()
	scoreBasics(t, r, msg, `{"score": 80}`)
	w := NewPreferenceWorker(r.store, r.queue, scriptedScorer(`{"score": 90}`), stubProfiles{text: "profile"}, r.tracker, 50)
	require.NoError(t, w.Handle(context.Background(), msg))
	r.queue.Drain(rabbitmq.QueueSummary)
}

func TestSummaryCompletesItem(t *testing.T) {
	ctx := context.Background()
	r := newRig()
	msg := r.seedItem(t, "batch-1", "item-1", 1)
	scoreToSummaryStage(t, r, msg)

	w := NewSummaryWorker(r.store, scriptedScorer(`{"summary": "A strong backend role at Acme."}`), stubProfiles{text: "profile"}, r.tracker)
	require.NoError(t, w.Handle(ctx, msg))

	item, err := r.store.GetItemByID(ctx, "item-1")
	require.NoError(t, err)
	assert.Equal(t, model.StageSummaryScored, item.Stage)
	assert.Equal(t, "A strong backend role at Acme.", item.Summary)

	batch, err := r.store.GetBatchByID(ctx, "batch-1")
	require.NoError(t, err)
	assert.Equal(t, 1, batch.CompletedJobs)
	assert.Equal(t, model.BatchComplete, batch.Status)
	assert.True(t, batch.NotificationSent)
}

func TestSummaryDuplicateDeliveryCountsOnce(t *testing.T) {
	ctx := context.Background()
	r := newRig()
	msg := r.seedItem(t, "batch-1", "item-1", 2)
	scoreToSummaryStage(t, r, msg)

	w := NewSummaryWorker(r.store, scriptedScorer(`{"summary": "A strong backend role."}`), stubProfiles{text: "profile"}, r.tracker)
	require.NoError(t, w.Handle(ctx, msg))
	require.NoError(t, w.Handle(ctx, msg))

	batch, err := r.store.GetBatchByID(ctx, "batch-1")
	require.NoError(t, err)
	assert.Equal(t, 1, batch.CompletedJobs)
}

func TestSummaryUnparseableOutputIsPermanent(t *testing.T) {
	ctx := context.Background()
	r := newRig()
	msg := r.seedItem(t, "batch-1", "item-1", 1)
	scoreToSummaryStage(t, r, msg)

	w := NewSummaryWorker(r.store, scriptedScorer("here is your summary"), stubProfiles{text: "profile"}, r.tracker)
	err := w.Handle(ctx, msg)
	require.Error(t, err)
	assert.True(t, pipeline.IsPermanent(err))

	// The failed item must not count toward completion
	batch, err := r.store.GetBatchByID(ctx, "batch-1")
	require.NoError(t, err)
	assert.Zero(t, batch.CompletedJobs)
}
