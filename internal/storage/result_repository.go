package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/game-sync-engine/internal/models"
	"github.com/game-sync-engine/internal/types"
)

// ResultRepository persists final game results. At most one row per game.
type ResultRepository struct {
	db *PostgresDB
}

// NewResultRepository creates a new result repository
func NewResultRepository(db *PostgresDB) *ResultRepository {
	return &ResultRepository{db: db}
}

// Upsert writes the winner row for a finished game. The row is written
// exactly once; a replayed sync hits the conflict and changes nothing.
// Returns true when the row was newly created.
func (r *ResultRepository) Upsert(ctx context.Context, result *models.GameResult) (bool, error) {
	if result.ID == "" {
		result.ID = uuid.New().String()
	}
	result.WinnerAddress = types.NormalizeAddress(result.WinnerAddress)

	query := `
		INSERT INTO game_results (id, game_id, winner_address, score, prize)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (game_id) DO NOTHING
	`

	tag, err := r.db.Pool().Exec(ctx, query,
		result.ID, result.GameID, result.WinnerAddress,
		nullableNumeric(result.Score), nullableNumeric(result.Prize),
	)
	if err != nil {
		return false, fmt.Errorf("failed to upsert result for game %s: %w", result.GameID, err)
	}
	return tag.RowsAffected() > 0, nil
}
