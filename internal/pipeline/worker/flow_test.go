package worker

import (
	"context"
	"strings"
	"testing"

	"scout/internal/config"
	"scout/internal/model"
	"scout/internal/pipeline"
	"scout/internal/rabbitmq"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// routingScorer answers by stage and listing so one batch can exercise every
// branch of the pipeline
func routingScorer() *stubScorer {
	return &stubScorer{fn: func(prompt, instructions string) (string, error) {
		pick := func(platform, analyst, sales string) string {
			switch {
			case strings.Contains(prompt, "Platform Engineer"):
				return platform
			case strings.Contains(prompt, "Data Analyst"):
				return analyst
			default:
				return sales
			}
		}

		switch instructions {
		case basicsInstructions:
			return pick(`{"score": 80}`, `{"score": 60}`, `{"score": 10}`), nil
		case preferenceInstructions:
			return pick(`{"score": 90}`, `{"score": 20}`, `{"score": 0}`), nil
		default:
			return `{"summary": "Platform role worth a close look."}`, nil
		}
	}}
}

func TestBatchFlowsToSingleNotification(t *testing.T) {
	ctx := context.Background()
	r := newRig()
	scorer := routingScorer()
	profiles := stubProfiles{text: "Senior engineer, prefers platform work."}

	dispatcher := pipeline.NewDispatcher(r.store, r.queue, r.notifier, r.tracker, config.PipelineConfig{})
	basics := NewBasicsWorker(r.store, r.queue, scorer, profiles, r.tracker, 50)
	preference := NewPreferenceWorker(r.store, r.queue, scorer, profiles, r.tracker, 50)
	summary := NewSummaryWorker(r.store, scorer, profiles, r.tracker)

	raw := []model.RawItem{
		{ItemID: "job-a", Title: "Platform Engineer", Company: "Acme", Description: "Run the platform."},
		{ItemID: "job-b", Title: "Data Analyst", Company: "Acme", Description: "Analyze the data."},
		{ItemID: "job-c", Title: "Sales Associate", Company: "Acme", Description: "Sell the product."},
	}

	batch, err := dispatcher.Dispatch(ctx, "owner-1", "batch-1", "source-1", "search-1", raw)
	require.NoError(t, err)
	require.Equal(t, 3, batch.TotalJobs)

	for _, msg := range r.queue.Drain(rabbitmq.QueueBasics) {
		require.NoError(t, basics.Handle(ctx, msg))
	}

	prefMsgs := r.queue.Drain(rabbitmq.QueuePreference)
	require.Len(t, prefMsgs, 2, "only the two items above the basics threshold move on")
	for _, msg := range prefMsgs {
		require.NoError(t, preference.Handle(ctx, msg))
	}

	sumMsgs := r.queue.Drain(rabbitmq.QueueSummary)
	require.Len(t, sumMsgs, 1, "only the preference-forwarded item reaches summary")
	assert.Equal(t, "job-a", sumMsgs[0].ItemID)
	for _, msg := range sumMsgs {
		require.NoError(t, summary.Handle(ctx, msg))
	}

	// Ledger closed exactly once
	final, err := r.store.GetBatchByID(ctx, "batch-1")
	require.NoError(t, err)
	assert.Equal(t, model.BatchComplete, final.Status)
	assert.Equal(t, 3, final.CompletedJobs)
	assert.ElementsMatch(t, []string{"job-a", "job-b", "job-c"}, final.CompletedItemIDs)
	assert.True(t, final.NotificationSent)

	intents, err := r.store.ListNotificationIntentsByBatch(ctx, "batch-1")
	require.NoError(t, err)
	require.Len(t, intents, 1)
	assert.Contains(t, intents[0].Body, "Scored 3 of 3 items")

	// Per-item outcomes
	jobA, err := r.store.GetItemByID(ctx, "job-a")
	require.NoError(t, err)
	assert.Equal(t, model.StageSummaryScored, jobA.Stage)
	assert.Equal(t, 75, *jobA.AdjustedScore)
	assert.Equal(t, "Platform role worth a close look.", jobA.Summary)

	jobB, err := r.store.GetItemByID(ctx, "job-b")
	require.NoError(t, err)
	assert.Equal(t, model.StagePreferenceStop, jobB.Stage)
	assert.Equal(t, 20, *jobB.AdjustedScore)
	assert.Contains(t, jobB.Summary, "Not summarized")

	jobC, err := r.store.GetItemByID(ctx, "job-c")
	require.NoError(t, err)
	assert.Equal(t, model.StageBasicsScored, jobC.Stage)
	assert.Equal(t, 10, *jobC.BasicsScore)
	assert.Empty(t, jobC.Summary)
}

func TestRedeliveredTerminalMessageChangesNothing(t *testing.T) {
	ctx := context.Background()
	r := newRig()
	scorer := routingScorer()
	profiles := stubProfiles{text: "profile"}

	dispatcher := pipeline.NewDispatcher(r.store, r.queue, r.notifier, r.tracker, config.PipelineConfig{})
	basics := NewBasicsWorker(r.store, r.queue, scorer, profiles, r.tracker, 50)

	raw := []model.RawItem{
		{ItemID: "job-c", Title: "Sales Associate", Company: "Acme", Description: "Sell the product."},
	}
	_, err := dispatcher.Dispatch(ctx, "owner-1", "batch-1", "", "", raw)
	require.NoError(t, err)

	msgs := r.queue.Drain(rabbitmq.QueueBasics)
	require.Len(t, msgs, 1)
	require.NoError(t, basics.Handle(ctx, msgs[0]))
	require.NoError(t, basics.Handle(ctx, msgs[0]))

	final, err := r.store.GetBatchByID(ctx, "batch-1")
	require.NoError(t, err)
	assert.Equal(t, 1, final.CompletedJobs)
	assert.Equal(t, model.BatchComplete, final.Status)

	intents, err := r.store.ListNotificationIntentsByBatch(ctx, "batch-1")
	require.NoError(t, err)
	assert.Len(t, intents, 1)
}
