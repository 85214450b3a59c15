package worker

import (
	"context"
	"testing"
	"time"

	"scout/internal/model"
	"scout/internal/pipeline"
	"scout/internal/pipeline/pipelinetest"

	"github.com/stretchr/testify/require"
)

type stubScorer struct {
	fn func(prompt, instructions string) (string, error)
}

func (s *stubScorer) Score(ctx context.Context, promptText, instructionTemplate string) (string, error) {
	return s.fn(promptText, instructionTemplate)
}

func scriptedScorer(output string) *stubScorer {
	return &stubScorer{fn: func(string, string) (string, error) { return output, nil }}
}

type stubProfiles struct {
	text string
}

func (p stubProfiles) GetProfile(ctx context.Context, ownerID string) (string, error) {
	return p.text, nil
}

type stubContacts struct{}

func (stubContacts) Lookup(ctx context.Context, ownerID string) (*model.OwnerContact, error) {
	return &model.OwnerContact{OwnerID: ownerID, Email: ownerID + "@example.com"}, nil
}

// rig bundles the in-memory collaborators every worker test needs
type rig struct {
	store    *pipelinetest.MemStore
	queue    *pipelinetest.MemQueue
	notifier *pipeline.Notifier
	tracker  *pipeline.Tracker
}

func newRig() *rig {
	store := pipelinetest.NewMemStore()
	queue := pipelinetest.NewMemQueue()
	notifier := pipeline.NewNotifier(store, stubContacts{})
	return &rig{
		store:    store,
		queue:    queue,
		notifier: notifier,
		tracker:  pipeline.NewTracker(store, notifier),
	}
}

// seedItem persists one raw item and its single-item ledger
func (r *rig) seedItem(t *testing.T, batchID, itemID string, totalJobs int) model.WorkItem {
	t.Helper()
	ctx := context.Background()

	_, err := r.store.BulkUpsertItems(ctx, []*model.Item{{
		ID:          itemID,
		OwnerID:     "owner-1",
		BatchID:     batchID,
		Title:       "Backend Engineer",
		Company:     "Acme",
		Description: "Build and run backend services.",
		Stage:       model.StageRaw,
	}})
	require.NoError(t, err)

	if batchID != "" {
		if _, getErr := r.store.GetBatchByID(ctx, batchID); getErr != nil {
			require.NoError(t, r.store.CreateBatch(ctx, &model.Batch{
				ID:        batchID,
				OwnerID:   "owner-1",
				TotalJobs: totalJobs,
				Status:    model.BatchProcessing,
				StartedAt: time.Now(),
			}))
		}
	}

	return model.WorkItem{
		OwnerID:    "owner-1",
		ItemID:     itemID,
		BatchID:    batchID,
		EnqueuedAt: time.Now(),
	}
}
