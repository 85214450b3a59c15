package controller

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"scout/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type memTokenDB struct {
	mu     sync.Mutex
	tokens map[primitive.ObjectID]*model.APIToken
}

func newMemTokenDB() *memTokenDB {
	return &memTokenDB{tokens: make(map[primitive.ObjectID]*model.APIToken)}
}

func (db *memTokenDB) CreateToken(ctx context.Context, token *model.APIToken) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	stored := *token
	db.tokens[token.ID] = &stored
	return nil
}

func (db *memTokenDB) VerifyToken(ctx context.Context, tokenHash string) (*model.APIToken, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	for _, token := range db.tokens {
		if token.TokenHash != tokenHash || token.Revoked {
			continue
		}
		if !token.ExpiresAt.IsZero() && !token.ExpiresAt.After(time.Now()) {
			continue
		}
		stored := *token
		return &stored, nil
	}
	return nil, fmt.Errorf("invalid or expired token")
}

func (db *memTokenDB) ListTokens(ctx context.Context) ([]model.APIToken, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	out := make([]model.APIToken, 0, len(db.tokens))
	for _, token := range db.tokens {
		out = append(out, *token)
	}
	return out, nil
}

func (db *memTokenDB) RevokeToken(ctx context.Context, id primitive.ObjectID) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	token, ok := db.tokens[id]
	if !ok {
		return fmt.Errorf("token not found")
	}
	token.Revoked = true
	return nil
}

func TestMintAndVerify(t *testing.T) {
	ctx := context.Background()
	tc := NewTokenController(newMemTokenDB())

	raw, token, err := tc.Mint(ctx, "ingest token", model.RoleIngest, 30)
	require.NoError(t, err)
	assert.NotEmpty(t, raw)
	assert.NotEqual(t, raw, token.TokenHash, "the raw token must never be stored")
	assert.Equal(t, model.RoleIngest, token.Role)
	assert.False(t, token.ExpiresAt.IsZero())

	verified, err := tc.Verify(ctx, raw)
	require.NoError(t, err)
	assert.Equal(t, token.ID, verified.ID)

	_, err = tc.Verify(ctx, raw+"tampered")
	assert.Error(t, err)
}

func TestMintedTokensAreUnique(t *testing.T) {
	ctx := context.Background()
	tc := NewTokenController(newMemTokenDB())

	rawA, _, err := tc.Mint(ctx, "a", model.RoleAdmin, 0)
	require.NoError(t, err)
	rawB, _, err := tc.Mint(ctx, "b", model.RoleAdmin, 0)
	require.NoError(t, err)

	assert.NotEqual(t, rawA, rawB)
}

func TestRevokedTokenFailsVerification(t *testing.T) {
	ctx := context.Background()
	tc := NewTokenController(newMemTokenDB())

	raw, token, err := tc.Mint(ctx, "short lived", model.RoleAdmin, 0)
	require.NoError(t, err)

	require.NoError(t, tc.Revoke(ctx, token.ID.Hex()))

	_, err = tc.Verify(ctx, raw)
	assert.Error(t, err)
}
