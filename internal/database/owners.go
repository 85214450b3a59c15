package database

import (
	"context"
	"errors"

	"scout/internal/model"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// OwnerDatabase resolves owner contact details for the notifier
type OwnerDatabase interface {
	GetOwnerContact(ctx context.Context, ownerID string) (*model.OwnerContact, error)
	UpsertOwnerContact(ctx context.Context, contact *model.OwnerContact) error
}

// GetOwnerContact loads the contact record for an owner
func (m *mongoDB) GetOwnerContact(ctx context.Context, ownerID string) (*model.OwnerContact, error) {
	var contact model.OwnerContact
	err := m.ownersCol.FindOne(ctx, bson.M{"_id": ownerID}).Decode(&contact)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		log.Error().Err(err).Str("ownerID", ownerID).Msg("Failed to get owner contact")
		return nil, err
	}

	return &contact, nil
}

// UpsertOwnerContact writes the contact record for an owner
func (m *mongoDB) UpsertOwnerContact(ctx context.Context, contact *model.OwnerContact) error {
	update := bson.M{
		"$set": bson.M{
			"name":  contact.Name,
			"email": contact.Email,
		},
	}

	_, err := m.ownersCol.UpdateOne(ctx, bson.M{"_id": contact.OwnerID}, update, options.Update().SetUpsert(true))
	if err != nil {
		log.Error().Err(err).Str("ownerID", contact.OwnerID).Msg("Failed to upsert owner contact")
		return err
	}

	return nil
}
