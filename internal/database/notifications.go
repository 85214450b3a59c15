package database

import (
	"context"
	"errors"
	"time"

	"scout/internal/model"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// NotificationDatabase defines notification-intent operations. The pipeline
// only creates pending intents; the delivery collaborator flips their status.
type NotificationDatabase interface {
	CreateNotificationIntent(ctx context.Context, intent *model.NotificationIntent) error
	GetNotificationIntent(ctx context.Context, id primitive.ObjectID) (*model.NotificationIntent, error)
	ListNotificationIntentsByBatch(ctx context.Context, batchID string) ([]*model.NotificationIntent, error)
}

// CreateNotificationIntent persists a pending intent record
func (m *mongoDB) CreateNotificationIntent(ctx context.Context, intent *model.NotificationIntent) error {
	if intent.ID.IsZero() {
		intent.ID = primitive.NewObjectID()
	}
	if intent.CreatedAt.IsZero() {
		intent.CreatedAt = time.Now()
	}
	if intent.Status == "" {
		intent.Status = model.NotificationPending
	}

	_, err := m.notificationsCol.InsertOne(ctx, intent)
	if err != nil {
		log.Error().Err(err).Str("batchID", intent.BatchID).Msg("Failed to create notification intent")
		return err
	}

	log.Info().
		Str("intentID", intent.ID.Hex()).
		Str("batchID", intent.BatchID).
		Str("ownerID", intent.OwnerID).
		Msg("Created notification intent")
	return nil
}

// GetNotificationIntent retrieves an intent by its ID
func (m *mongoDB) GetNotificationIntent(ctx context.Context, id primitive.ObjectID) (*model.NotificationIntent, error) {
	var intent model.NotificationIntent
	err := m.notificationsCol.FindOne(ctx, bson.M{"_id": id}).Decode(&intent)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		log.Error().Err(err).Str("intentID", id.Hex()).Msg("Failed to get notification intent")
		return nil, err
	}

	return &intent, nil
}

// ListNotificationIntentsByBatch returns the intents recorded for a batch
func (m *mongoDB) ListNotificationIntentsByBatch(ctx context.Context, batchID string) ([]*model.NotificationIntent, error) {
	cursor, err := m.notificationsCol.Find(ctx, bson.M{"batch_id": batchID}, options.Find().SetSort(bson.M{"created_at": 1}))
	if err != nil {
		log.Error().Err(err).Str("batchID", batchID).Msg("Failed to list notification intents")
		return nil, err
	}
	defer cursor.Close(ctx)

	var intents []*model.NotificationIntent
	if err := cursor.All(ctx, &intents); err != nil {
		log.Error().Err(err).Msg("Failed to decode notification intents")
		return nil, err
	}

	return intents, nil
}
