package controller

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"time"

	"scout/internal/database"
	"scout/internal/model"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TokenController manages ingestion API bearer tokens
type TokenController interface {
	// Mint creates a token and returns its one-time raw value
	Mint(ctx context.Context, name, role string, expiresInDays int) (string, *model.APIToken, error)

	// Verify resolves a raw bearer token to its record
	Verify(ctx context.Context, rawToken string) (*model.APIToken, error)

	// Revoke disables a token by id
	Revoke(ctx context.Context, id string) error

	// List returns all tokens
	List(ctx context.Context) ([]model.APIToken, error)
}

type tokenController struct {
	db database.TokenDatabase
}

func NewTokenController(db database.TokenDatabase) TokenController {
	return &tokenController{db: db}
}

func hashToken(raw string) string {
	h := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(h[:])
}

// Mint generates a secure random token and stores only its hash
func (c *tokenController) Mint(ctx context.Context, name, role string, expiresInDays int) (string, *model.APIToken, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", nil, fmt.Errorf("failed to generate random token: %w", err)
	}
	rawToken := base64.URLEncoding.EncodeToString(b)

	token := &model.APIToken{
		ID:        primitive.NewObjectID(),
		TokenHash: hashToken(rawToken),
		Name:      name,
		Role:      role,
		CreatedAt: time.Now(),
		Revoked:   false,
	}
	if expiresInDays > 0 {
		token.ExpiresAt = time.Now().AddDate(0, 0, expiresInDays)
	}

	if err := c.db.CreateToken(ctx, token); err != nil {
		return "", nil, err
	}

	return rawToken, token, nil
}

// Verify resolves a raw bearer token by its hash
func (c *tokenController) Verify(ctx context.Context, rawToken string) (*model.APIToken, error) {
	return c.db.VerifyToken(ctx, hashToken(rawToken))
}

// Revoke disables a token
func (c *tokenController) Revoke(ctx context.Context, id string) error {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return err
	}
	return c.db.RevokeToken(ctx, objectID)
}

// List returns all tokens
func (c *tokenController) List(ctx context.Context) ([]model.APIToken, error) {
	return c.db.ListTokens(ctx)
}
