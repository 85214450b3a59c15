package database

import (
	"context"
	"errors"
	"time"

	"scout/internal/model"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ItemDatabase defines per-item document operations. All writes are merge
// writes so a redelivered stage can safely repeat them.
type ItemDatabase interface {
	// BulkUpsertItems merge-upserts the fan-out item records, returning the
	// number of documents written
	BulkUpsertItems(ctx context.Context, items []*model.Item) (int, error)

	// GetItemByID loads an item or returns ErrNotFound
	GetItemByID(ctx context.Context, id string) (*model.Item, error)

	// SaveBasicsResult merges the basics stage outputs onto the item
	SaveBasicsResult(ctx context.Context, itemID string, score int, reasons []string) error

	// SavePreferenceResult merges the preference stage outputs; stage is
	// either preference_scored_stop or preference_scored_forward
	SavePreferenceResult(ctx context.Context, itemID string, preferenceScore, adjustedScore int, reasons []string, stage model.Stage) error

	// SaveSummary merges the summary text onto the item at the given stage;
	// the preference-stop placeholder keeps its stop stage
	SaveSummary(ctx context.Context, itemID, summary string, stage model.Stage) error

	// SetItemStage updates only the stage marker
	SetItemStage(ctx context.Context, itemID string, stage model.Stage) error

	// ListItemsByBatch returns the items belonging to a batch
	ListItemsByBatch(ctx context.Context, batchID string) ([]*model.Item, error)
}

// BulkUpsertItems writes the fan-out records with merge semantics so a
// redelivered ingestion call does not clobber already-scored fields
func (m *mongoDB) BulkUpsertItems(ctx context.Context, items []*model.Item) (int, error) {
	if len(items) == 0 {
		return 0, nil
	}

	now := time.Now()
	models := make([]mongo.WriteModel, 0, len(items))
	for _, item := range items {
		set := bson.M{
			"owner_id":    item.OwnerID,
			"title":       item.Title,
			"company":     item.Company,
			"location":    item.Location,
			"url":         item.URL,
			"description": item.Description,
			"updated_at":  now,
		}
		if item.BatchID != "" {
			set["batch_id"] = item.BatchID
		}

		models = append(models, mongo.NewUpdateOneModel().
			SetFilter(bson.M{"_id": item.ID}).
			SetUpdate(bson.M{
				"$set": set,
				"$setOnInsert": bson.M{
					"stage":      model.StageRaw,
					"created_at": now,
				},
			}).
			SetUpsert(true))
	}

	result, err := m.itemsCol.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false))
	if err != nil {
		log.Error().Err(err).Int("itemCount", len(items)).Msg("Failed to bulk upsert items")
		return 0, err
	}

	log.Debug().
		Int("upserted", int(result.UpsertedCount)).
		Int("matched", int(result.MatchedCount)).
		Msg("Bulk upserted items")
	return len(items), nil
}

// GetItemByID retrieves an item by its ID
func (m *mongoDB) GetItemByID(ctx context.Context, id string) (*model.Item, error) {
	var item model.Item
	err := m.itemsCol.FindOne(ctx, bson.M{"_id": id}).Decode(&item)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		log.Error().Err(err).Str("itemID", id).Msg("Failed to get item")
		return nil, err
	}

	return &item, nil
}

// SaveBasicsResult merges basics outputs onto the item document
func (m *mongoDB) SaveBasicsResult(ctx context.Context, itemID string, score int, reasons []string) error {
	update := bson.M{
		"$set": bson.M{
			"stage":          model.StageBasicsScored,
			"basics_score":   score,
			"basics_reasons": reasons,
			"updated_at":     time.Now(),
		},
	}

	_, err := m.itemsCol.UpdateOne(ctx, bson.M{"_id": itemID}, update)
	if err != nil {
		log.Error().Err(err).Str("itemID", itemID).Int("score", score).Msg("Failed to save basics result")
		return err
	}

	log.Debug().Str("itemID", itemID).Int("score", score).Msg("Saved basics result")
	return nil
}

// SavePreferenceResult merges preference outputs onto the item document
func (m *mongoDB) SavePreferenceResult(ctx context.Context, itemID string, preferenceScore, adjustedScore int, reasons []string, stage model.Stage) error {
	update := bson.M{
		"$set": bson.M{
			"stage":              stage,
			"preference_score":   preferenceScore,
			"adjusted_score":     adjustedScore,
			"preference_reasons": reasons,
			"updated_at":         time.Now(),
		},
	}

	_, err := m.itemsCol.UpdateOne(ctx, bson.M{"_id": itemID}, update)
	if err != nil {
		log.Error().Err(err).Str("itemID", itemID).Int("adjustedScore", adjustedScore).Msg("Failed to save preference result")
		return err
	}

	log.Debug().
		Str("itemID", itemID).
		Int("preferenceScore", preferenceScore).
		Int("adjustedScore", adjustedScore).
		Str("stage", string(stage)).
		Msg("Saved preference result")
	return nil
}

// SaveSummary merges the summary text onto the item document
func (m *mongoDB) SaveSummary(ctx context.Context, itemID, summary string, stage model.Stage) error {
	update := bson.M{
		"$set": bson.M{
			"stage":      stage,
			"summary":    summary,
			"updated_at": time.Now(),
		},
	}

	_, err := m.itemsCol.UpdateOne(ctx, bson.M{"_id": itemID}, update)
	if err != nil {
		log.Error().Err(err).Str("itemID", itemID).Msg("Failed to save summary")
		return err
	}

	log.Debug().Str("itemID", itemID).Msg("Saved summary")
	return nil
}

// SetItemStage updates only the stage marker
func (m *mongoDB) SetItemStage(ctx context.Context, itemID string, stage model.Stage) error {
	update := bson.M{
		"$set": bson.M{
			"stage":      stage,
			"updated_at": time.Now(),
		},
	}

	_, err := m.itemsCol.UpdateOne(ctx, bson.M{"_id": itemID}, update)
	if err != nil {
		log.Error().Err(err).Str("itemID", itemID).Str("stage", string(stage)).Msg("Failed to set item stage")
		return err
	}

	return nil
}

// ListItemsByBatch returns the items belonging to a batch
func (m *mongoDB) ListItemsByBatch(ctx context.Context, batchID string) ([]*model.Item, error) {
	cursor, err := m.itemsCol.Find(ctx, bson.M{"batch_id": batchID}, options.Find().SetSort(bson.M{"created_at": 1}))
	if err != nil {
		log.Error().Err(err).Str("batchID", batchID).Msg("Failed to list items by batch")
		return nil, err
	}
	defer cursor.Close(ctx)

	var items []*model.Item
	if err := cursor.All(ctx, &items); err != nil {
		log.Error().Err(err).Msg("Failed to decode items")
		return nil, err
	}

	return items, nil
}
