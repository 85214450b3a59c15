package database

import (
	"context"
	"errors"
	"time"

	"scout/internal/config"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrNotFound signals that the requested document does not exist
var ErrNotFound = errors.New("document not found")

type Database interface {
	Health() error
	BatchDatabase
	ItemDatabase
	NotificationDatabase
	OwnerDatabase
	TokenDatabase
}

type mongoDB struct {
	client *mongo.Client
	db     *mongo.Database

	batchesCol       *mongo.Collection
	itemsCol         *mongo.Collection
	notificationsCol *mongo.Collection
	ownersCol        *mongo.Collection
	tokensCol        *mongo.Collection
}

func New(config *config.Config) (Database, error) {
	clientOptions := options.Client().ApplyURI(config.MongoDB.URI)
	if config.MongoDB.Username != "" {
		clientOptions.SetAuth(options.Credential{
			Username: config.MongoDB.Username,
			Password: config.MongoDB.Password,
		})
	}

	client, err := mongo.Connect(context.TODO(), clientOptions)
	if err != nil {
		return nil, err
	}

	db := client.Database(config.MongoDB.DB)

	batchesCol := db.Collection("batches")
	batchIndexModels := []mongo.IndexModel{
		{
			// Index for the reaper's stale sweep
			Keys:    bson.D{{Key: "status", Value: 1}, {Key: "started_at", Value: 1}},
			Options: options.Index(),
		},
		{
			Keys:    bson.D{{Key: "owner_id", Value: 1}},
			Options: options.Index(),
		},
		{
			Keys:    bson.D{{Key: "source_id", Value: 1}},
			Options: options.Index(),
		},
	}

	itemsCol := db.Collection("items")
	itemIndexModels := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "batch_id", Value: 1}},
			Options: options.Index(),
		},
		{
			Keys:    bson.D{{Key: "owner_id", Value: 1}, {Key: "stage", Value: 1}},
			Options: options.Index(),
		},
	}

	notificationsCol := db.Collection("notifications")
	notificationIndexModels := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "batch_id", Value: 1}},
			Options: options.Index(),
		},
		{
			Keys:    bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index(),
		},
	}

	tokensCol := db.Collection("api_tokens")
	tokenIndexModels := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "token_hash", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "name", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}

	if _, err := batchesCol.Indexes().CreateMany(context.Background(), batchIndexModels); err != nil {
		log.Warn().Err(err).Str("Collection", "Batches").Msg("Error creating indexes")
	}
	if _, err := itemsCol.Indexes().CreateMany(context.Background(), itemIndexModels); err != nil {
		log.Warn().Err(err).Str("Collection", "Items").Msg("Error creating indexes")
	}
	if _, err := notificationsCol.Indexes().CreateMany(context.Background(), notificationIndexModels); err != nil {
		log.Warn().Err(err).Str("Collection", "Notifications").Msg("Error creating indexes")
	}
	if _, err := tokensCol.Indexes().CreateMany(context.Background(), tokenIndexModels); err != nil {
		log.Warn().Err(err).Str("Collection", "Tokens").Msg("Error creating indexes")
	}

	return &mongoDB{
		client:           client,
		db:               db,
		batchesCol:       batchesCol,
		itemsCol:         itemsCol,
		notificationsCol: notificationsCol,
		ownersCol:        db.Collection("owners"),
		tokensCol:        tokensCol,
	}, nil
}

// Health implements Database interface
func (m *mongoDB) Health() error {
	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	if err := m.client.Ping(ctx, nil); err != nil {
		log.Error().Msgf("Database health error: %v", err)
		return err
	}

	return nil
}
