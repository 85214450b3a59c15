package pipeline

import (
	"context"
	"fmt"
	"time"

	"scout/internal/model"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Notifier is the side-effect dispatcher: it creates at most one
// notification-intent record per batch, no matter how many concurrent
// callers converge on it. The ledger's notification claim is the sole
// deduplication point.
type Notifier struct {
	store    Store
	contacts Contacts
}

func NewNotifier(store Store, contacts Contacts) *Notifier {
	return &Notifier{store: store, contacts: contacts}
}

// Dispatch idempotently requests the batch notification and returns the
// stable request id. Losing a claim race is not an error: the winner's id
// comes back unchanged.
func (n *Notifier) Dispatch(ctx context.Context, ownerID, batchID string) (primitive.ObjectID, error) {
	contact, err := n.contacts.Lookup(ctx, ownerID)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("failed to look up contact for owner %s: %w", ownerID, err)
	}

	requestID := primitive.NewObjectID()
	winner, claimed, err := n.store.ClaimNotification(ctx, batchID, requestID)
	if err != nil {
		return primitive.NilObjectID, err
	}
	if !claimed {
		log.Debug().
			Str("batchID", batchID).
			Str("requestID", winner.Hex()).
			Msg("Notification already dispatched, returning existing request id")
		return winner, nil
	}

	batch, err := n.store.GetBatchByID(ctx, batchID)
	if err != nil {
		return requestID, err
	}

	intent := &model.NotificationIntent{
		ID:        requestID,
		OwnerID:   ownerID,
		BatchID:   batchID,
		To:        contact.Email,
		Subject:   subjectFor(batch),
		Body:      bodyFor(batch),
		Status:    model.NotificationPending,
		CreatedAt: time.Now(),
	}
	if err := n.store.CreateNotificationIntent(ctx, intent); err != nil {
		return requestID, err
	}

	log.Info().
		Str("batchID", batchID).
		Str("ownerID", ownerID).
		Str("requestID", requestID.Hex()).
		Msg("Notification intent dispatched")
	return requestID, nil
}

// Subject/body here are minimal; the delivery collaborator owns the real
// rendering and may replace them.
func subjectFor(batch *model.Batch) string {
	switch batch.Status {
	case model.BatchEmpty:
		return "Your search finished with no new matches"
	case model.BatchTimeout:
		return "Your search results are partially ready"
	default:
		return "Your scored search results are ready"
	}
}

func bodyFor(batch *model.Batch) string {
	if batch.Status == model.BatchEmpty {
		return "The latest search did not return any items."
	}
	body := fmt.Sprintf("Scored %d of %d items for batch %s.", batch.CompletedJobs, batch.TotalJobs, batch.ID)
	if batch.Note != "" {
		body += " " + batch.Note
	}
	return body
}
