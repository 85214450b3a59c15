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

// scoreBasics runs the basics stage so the item carries a real basics score
func scoreBasics(t *testing.T, r *rig, msg model.WorkItem, score string) {
	t.Helper()
	w := NewBasicsWorker(r.store, r.queue, scriptedScorer(score), stubProfiles{text: "profile"}, r.tracker, 50)
	require.NoError(t, w.Handle(context.Background(), msg))
	r.queue.Drain(rabbitmq.QueuePreference)
}

func TestPreferenceForwardsAboveThreshold(t *testing.T) {
	ctx := context.Background()
	r := newRig()
	msg := r.seedItem(t, "batch-1", "item-1", 1)
	scoreBasics(t, r, msg, `{"score": 80}`)

	w := NewPreferenceWorker(r.store, r.queue, scriptedScorer(`{"score": 90, "reasons": ["great fit"]}`), stubProfiles{text: "profile"}, r.tracker, 50)
	require.NoError(t, w.Handle(ctx, msg))

	item, err := r.store.GetItemByID(ctx, "item-1")
	require.NoError(t, err)
	assert.Equal(t, model.StagePreferenceForward, item.Stage)
	require.NotNil(t, item.AdjustedScore)
	assert.Equal(t, 75, *item.AdjustedScore)
	assert.Empty(t, item.Summary)

	published := r.queue.Published(rabbitmq.QueueSummary)
	require.Len(t, published, 1)
	assert.Equal(t, "item-1", published[0].ItemID)
}

func TestPreferenceStopsWithPlaceholderSummary(t *testing.T) {
	ctx := context.Background()
	r := newRig()
	msg := r.seedItem(t, "batch-1", "item-1", 1)
	scoreBasics(t, r, msg, `{"score": 60}`)

	w := NewPreferenceWorker(r.store, r.queue, scriptedScorer(`{"score": 20}`), stubProfiles{text: "profile"}, r.tracker, 50)
	require.NoError(t, w.Handle(ctx, msg))

	item, err := r.store.GetItemByID(ctx, "item-1")
	require.NoError(t, err)
	assert.Equal(t, model.StagePreferenceStop, item.Stage)
	require.NotNil(t, item.AdjustedScore)
	assert.Equal(t, 20, *item.AdjustedScore)
	assert.Contains(t, item.Summary, "Not summarized")

	assert.Empty(t, r.queue.Published(rabbitmq.QueueSummary))

	batch, err := r.store.GetBatchByID(ctx, "batch-1")
	require.NoError(t, err)
	assert.Equal(t, 1, batch.CompletedJobs)
	assert.Equal(t, model.BatchComplete, batch.Status)
}

func TestPreferenceWithoutBasicsScoreIsPermanent(t *testing.T) {
	ctx := context.Background()
	r := newRig()

	// Stage says basics ran but the score is missing: corrupt item
	_, err := r.store.BulkUpsertItems(ctx, []*model.Item{{
		ID:          "item-1",
		OwnerID:     "owner-1",
		BatchID:     "batch-1",
		Title:       "Backend Engineer",
		Description: "desc",
		Stage:       model.StageRaw,
	}})
	require.NoError(t, err)
	require.NoError(t, r.store.SetItemStage(ctx, "item-1", model.StageBasicsScored))

	w := NewPreferenceWorker(r.store, r.queue, scriptedScorer(`{"score": 90}`), stubProfiles{text: "profile"}, r.tracker, 50)
	err = w.Handle(ctx, model.WorkItem{OwnerID: "owner-1", ItemID: "item-1", BatchID: "batch-1"})
	require.Error(t, err)
	assert.True(t, pipeline.IsPermanent(err))
}

func TestPreferenceDuplicateDeliveryPublishesOnce(t *testing.T) {
	ctx := context.Background()
	r := newRig()
	msg := r.seedItem(t, "batch-1", "item-1", 1)
	scoreBasics(t, r, msg, `{"score": 80}`)

	w := NewPreferenceWorker(r.store, r.queue, scriptedScorer(`{"score": 90}`), stubProfiles{text: "profile"}, r.tracker, 50)
	require.NoError(t, w.Handle(ctx, msg))
	require.NoError(t, w.Handle(ctx, msg))

	assert.Len(t, r.queue.Published(rabbitmq.QueueSummary), 1)
}
