package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/game-sync-engine/internal/models"
	"github.com/game-sync-engine/internal/types"
)

// TokenRepository maintains the registry of tokens seen as coin feeds.
type TokenRepository struct {
	db *PostgresDB
}

// NewTokenRepository creates a new token repository
func NewTokenRepository(db *PostgresDB) *TokenRepository {
	return &TokenRepository{db: db}
}

// Ensure registers a token with placeholder metadata if it has not been
// seen on this chain before. Metadata enrichment happens elsewhere.
func (r *TokenRepository) Ensure(ctx context.Context, chainID types.ChainID, address string) error {
	query := `
		INSERT INTO game_tokens (id, address, chain_id, symbol, name, decimals)
		VALUES ($1, $2, $3, $4, '', 18)
		ON CONFLICT (address, chain_id) DO NOTHING
	`
	_, err := r.db.Pool().Exec(ctx, query,
		uuid.New().String(), types.NormalizeAddress(address), chainID, models.TokenSymbolUnknown,
	)
	if err != nil {
		return fmt.Errorf("failed to register token %s on chain %d: %w", address, chainID, err)
	}
	return nil
}
