package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/game-sync-engine/internal/models"
	"github.com/game-sync-engine/internal/types"
)

// ParticipantRepository handles game participant persistence. Written
// only by the detail enricher.
type ParticipantRepository struct {
	db *PostgresDB
}

// NewParticipantRepository creates a new participant repository
func NewParticipantRepository(db *PostgresDB) *ParticipantRepository {
	return &ParticipantRepository{db: db}
}

// Upsert inserts or updates a participant keyed by (game_id,
// user_address) and returns its id.
func (r *ParticipantRepository) Upsert(ctx context.Context, p *models.GameParticipant) (string, error) {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	p.UserAddress = types.NormalizeAddress(p.UserAddress)

	query := `
		INSERT INTO game_participants (id, game_id, user_address, captain_coin, affiliate, player_index)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (game_id, user_address) DO UPDATE SET
			captain_coin = EXCLUDED.captain_coin,
			affiliate = EXCLUDED.affiliate,
			player_index = EXCLUDED.player_index
		RETURNING id
	`

	var id string
	err := r.db.Pool().QueryRow(ctx, query,
		p.ID, p.GameID, p.UserAddress, p.CaptainCoin, p.Affiliate, p.Index,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("failed to upsert participant %s in game %s: %w", p.UserAddress, p.GameID, err)
	}
	p.ID = id
	return id, nil
}

// AppendCoinFeed records one non-captain coin for a participant.
// Append-only; a duplicate token is skipped silently.
func (r *ParticipantRepository) AppendCoinFeed(ctx context.Context, participantID, tokenAddress string) error {
	query := `
		INSERT INTO game_participant_coin_feeds (id, participant_id, token_address)
		VALUES ($1, $2, $3)
		ON CONFLICT (participant_id, token_address) DO NOTHING
	`
	_, err := r.db.Pool().Exec(ctx, query, uuid.New().String(), participantID, types.NormalizeAddress(tokenAddress))
	if err != nil {
		return fmt.Errorf("failed to append coin feed for participant %s: %w", participantID, err)
	}
	return nil
}
