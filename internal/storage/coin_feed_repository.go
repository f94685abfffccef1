package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/game-sync-engine/internal/models"
	"github.com/game-sync-engine/internal/types"
)

// CoinFeedRepository handles per-game coin price/score persistence.
type CoinFeedRepository struct {
	db *PostgresDB
}

// NewCoinFeedRepository creates a new coin feed repository
func NewCoinFeedRepository(db *PostgresDB) *CoinFeedRepository {
	return &CoinFeedRepository{db: db}
}

// Upsert inserts or updates a coin feed keyed by (game_id,
// token_address). Price and score fields only ever move from NULL to a
// value as the contract publishes them.
func (r *CoinFeedRepository) Upsert(ctx context.Context, feed *models.GameCoinFeed) error {
	if feed.ID == "" {
		feed.ID = uuid.New().String()
	}
	feed.TokenAddress = types.NormalizeAddress(feed.TokenAddress)

	query := `
		INSERT INTO game_coin_feeds (id, game_id, token_address, start_price, end_price, score)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (game_id, token_address) DO UPDATE SET
			start_price = EXCLUDED.start_price,
			end_price = COALESCE(EXCLUDED.end_price, game_coin_feeds.end_price),
			score = COALESCE(EXCLUDED.score, game_coin_feeds.score)
	`

	_, err := r.db.Pool().Exec(ctx, query,
		feed.ID, feed.GameID, feed.TokenAddress, nullableNumeric(feed.StartPrice), feed.EndPrice, feed.Score,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert coin feed %s for game %s: %w", feed.TokenAddress, feed.GameID, err)
	}
	return nil
}
