package pipelinetest

import (
	"context"
	"testing"

	"scout/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClaimStageClaimsEachStageOnce(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()
	require.NoError(t, store.CreateBatch(ctx, &model.Batch{
		ID:        "batch-1",
		OwnerID:   "owner-1",
		TotalJobs: 1,
		Status:    model.BatchProcessing,
	}))

	claimed, err := store.ClaimStage(ctx, "batch-1", "item-1", model.StageBasicsScored)
	require.NoError(t, err)
	assert.True(t, claimed)

	claimed, err = store.ClaimStage(ctx, "batch-1", "item-1", model.StagePreferenceForward)
	require.NoError(t, err)
	assert.True(t, claimed)

	// A stale basics redelivery after the item advanced must lose the claim,
	// or the forward publish keyed to it would fire a second time
	claimed, err = store.ClaimStage(ctx, "batch-1", "item-1", model.StageBasicsScored)
	require.NoError(t, err)
	assert.False(t, claimed)

	batch, err := store.GetBatchByID(ctx, "batch-1")
	require.NoError(t, err)
	assert.Equal(t, model.StagePreferenceForward, batch.ItemStages["item-1"])
	assert.Equal(t, []model.Stage{model.StageBasicsScored, model.StagePreferenceForward}, batch.StageHistory["item-1"])
}
