package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"scout/internal/cache"
	"scout/internal/database"
	"scout/internal/model"

	"github.com/rs/zerolog/log"
)

const contactCacheTTL = time.Hour

// ContactDirectory resolves owner contacts from the store with a cache in
// front, since the notifier may hit the same owner many times in a burst
type ContactDirectory struct {
	db    database.OwnerDatabase
	cache cache.Cache
}

func NewContactDirectory(db database.OwnerDatabase, c cache.Cache) *ContactDirectory {
	return &ContactDirectory{db: db, cache: c}
}

func contactCacheKey(ownerID string) string {
	return "contact:" + ownerID
}

// Lookup implements Contacts
func (d *ContactDirectory) Lookup(ctx context.Context, ownerID string) (*model.OwnerContact, error) {
	if d.cache != nil {
		if cached, err := d.cache.Get(ctx, contactCacheKey(ownerID)); err == nil {
			var contact model.OwnerContact
			if err := json.Unmarshal(cached, &contact); err == nil {
				return &contact, nil
			}
		} else if !errors.Is(err, cache.ErrCacheMiss) {
			log.Warn().Err(err).Str("ownerID", ownerID).Msg("Contact cache read failed, falling back to store")
		}
	}

	contact, err := d.db.GetOwnerContact(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	if d.cache != nil {
		if encoded, err := json.Marshal(contact); err == nil {
			if err := d.cache.Set(ctx, contactCacheKey(ownerID), encoded, contactCacheTTL); err != nil {
				log.Warn().Err(err).Str("ownerID", ownerID).Msg("Contact cache write failed")
			}
		}
	}

	return contact, nil
}
