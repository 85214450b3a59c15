package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"scout/internal/model"
	"scout/internal/pipeline/pipelinetest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type staticContacts struct {
	contact *model.OwnerContact
	err     error
}

func (c staticContacts) Lookup(ctx context.Context, ownerID string) (*model.OwnerContact, error) {
	if c.err != nil {
		return nil, c.err
	}
	return c.contact, nil
}

func testContacts() staticContacts {
	return staticContacts{contact: &model.OwnerContact{
		OwnerID: "owner-1",
		Name:    "Test Owner",
		Email:   "owner@example.com",
	}}
}

func seedBatch(t *testing.T, store *pipelinetest.MemStore, batch *model.Batch) {
	t.Helper()
	require.NoError(t, store.CreateBatch(context.Background(), batch))
}

func TestDispatchCreatesExactlyOneIntent(t *testing.T) {
	ctx := context.Background()
	store := pipelinetest.NewMemStore()
	seedBatch(t, store, &model.Batch{
		ID:            "batch-1",
		OwnerID:       "owner-1",
		TotalJobs:     2,
		CompletedJobs: 2,
		Status:        model.BatchProcessing,
		StartedAt:     time.Now(),
	})

	notifier := NewNotifier(store, testContacts())

	const callers = 8
	ids := make([]primitive.ObjectID, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id, err := notifier.Dispatch(ctx, "owner-1", "batch-1")
			assert.NoError(t, err)
			ids[i] = id
		}(i)
	}
	wg.Wait()

	for _, id := range ids[1:] {
		assert.Equal(t, ids[0], id, "all callers must see the same request id")
	}

	intents, err := store.ListNotificationIntentsByBatch(ctx, "batch-1")
	require.NoError(t, err)
	require.Len(t, intents, 1)
	assert.Equal(t, ids[0], intents[0].ID)
	assert.Equal(t, "owner@example.com", intents[0].To)
	assert.Equal(t, model.NotificationPending, intents[0].Status)

	batch, err := store.GetBatchByID(ctx, "batch-1")
	require.NoError(t, err)
	assert.True(t, batch.NotificationSent)
	require.NotNil(t, batch.NotificationRequestID)
	assert.Equal(t, ids[0], *batch.NotificationRequestID)
}

func TestDispatchRepeatReturnsWinningID(t *testing.T) {
	ctx := context.Background()
	store := pipelinetest.NewMemStore()
	seedBatch(t, store, &model.Batch{
		ID:        "batch-1",
		OwnerID:   "owner-1",
		Status:    model.BatchProcessing,
		StartedAt: time.Now(),
	})

	notifier := NewNotifier(store, testContacts())

	first, err := notifier.Dispatch(ctx, "owner-1", "batch-1")
	require.NoError(t, err)
	second, err := notifier.Dispatch(ctx, "owner-1", "batch-1")
	require.NoError(t, err)

	assert.Equal(t, first, second)

	intents, err := store.ListNotificationIntentsByBatch(ctx, "batch-1")
	require.NoError(t, err)
	assert.Len(t, intents, 1)
}

func TestDispatchContactLookupFailureClaimsNothing(t *testing.T) {
	ctx := context.Background()
	store := pipelinetest.NewMemStore()
	seedBatch(t, store, &model.Batch{
		ID:        "batch-1",
		OwnerID:   "owner-1",
		Status:    model.BatchProcessing,
		StartedAt: time.Now(),
	})

	notifier := NewNotifier(store, staticContacts{err: errors.New("directory down")})

	_, err := notifier.Dispatch(ctx, "owner-1", "batch-1")
	require.Error(t, err)

	batch, err := store.GetBatchByID(ctx, "batch-1")
	require.NoError(t, err)
	assert.False(t, batch.NotificationSent)
	assert.Nil(t, batch.NotificationRequestID, "a failed dispatch must not consume the claim")
}

func TestSubjectAndBodyVariants(t *testing.T) {
	empty := &model.Batch{ID: "b", Status: model.BatchEmpty}
	assert.Contains(t, subjectFor(empty), "no new matches")
	assert.Contains(t, bodyFor(empty), "did not return any items")

	timedOut := &model.Batch{
		ID:            "b",
		Status:        model.BatchTimeout,
		CompletedJobs: 2,
		TotalJobs:     5,
		Note:          "processed 2/5",
	}
	assert.Contains(t, subjectFor(timedOut), "partially ready")
	assert.Contains(t, bodyFor(timedOut), "Scored 2 of 5 items")
	assert.Contains(t, bodyFor(timedOut), "processed 2/5")

	complete := &model.Batch{
		ID:            "b",
		Status:        model.BatchComplete,
		CompletedJobs: 5,
		TotalJobs:     5,
	}
	assert.Contains(t, subjectFor(complete), "ready")
	assert.Contains(t, bodyFor(complete), "Scored 5 of 5 items")
}
