package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/game-sync-engine/internal/models"
	"github.com/game-sync-engine/internal/types"
)

// GameRepository handles game persistence
type GameRepository struct {
	db *PostgresDB
}

// NewGameRepository creates a new game repository
func NewGameRepository(db *PostgresDB) *GameRepository {
	return &GameRepository{db: db}
}

// ErrGameNotFound is returned when a game does not exist.
var ErrGameNotFound = errors.New("game not found")

const gameColumns = `
	id, int_id, chain_id, address, type, status, duration,
	num_coins, num_players, current_players, entry, coin_to_play,
	amount_to_play, start_timestamp, abort_timestamp, started_at, ended_at,
	total_amount_collected, creator_address, created_at, updated_at`

// Upsert inserts or updates a game keyed by (int_id, chain_id). Returns
// true when a new row was created. Idempotent under retry.
func (r *GameRepository) Upsert(ctx context.Context, game *models.Game) (bool, error) {
	if game.ID == "" {
		game.ID = uuid.New().String()
	}
	now := time.Now()
	if game.CreatedAt.IsZero() {
		game.CreatedAt = now
	}
	game.UpdatedAt = now

	// xmax = 0 distinguishes an insert from a conflict-update.
	query := `
		INSERT INTO games (` + gameColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
		ON CONFLICT (int_id, chain_id) DO UPDATE SET
			address = EXCLUDED.address,
			type = EXCLUDED.type,
			status = EXCLUDED.status,
			duration = EXCLUDED.duration,
			num_coins = EXCLUDED.num_coins,
			num_players = EXCLUDED.num_players,
			current_players = EXCLUDED.current_players,
			entry = EXCLUDED.entry,
			coin_to_play = EXCLUDED.coin_to_play,
			amount_to_play = EXCLUDED.amount_to_play,
			start_timestamp = EXCLUDED.start_timestamp,
			abort_timestamp = EXCLUDED.abort_timestamp,
			started_at = COALESCE(EXCLUDED.started_at, games.started_at),
			ended_at = COALESCE(EXCLUDED.ended_at, games.ended_at),
			total_amount_collected = COALESCE(EXCLUDED.total_amount_collected, games.total_amount_collected),
			creator_address = EXCLUDED.creator_address,
			updated_at = EXCLUDED.updated_at
		RETURNING id, (xmax = 0) AS inserted
	`

	var inserted bool
	err := r.db.Pool().QueryRow(ctx, query,
		game.ID,
		game.IntID,
		game.ChainID,
		game.Address,
		game.Type,
		game.Status,
		game.Duration,
		game.NumCoins,
		game.NumPlayers,
		game.CurrentPlayers,
		nullableNumeric(game.Entry),
		game.CoinToPlay,
		nullableNumeric(game.AmountToPlay),
		game.StartTimestamp,
		game.AbortTimestamp,
		game.StartedAt,
		game.EndedAt,
		game.TotalAmountCollected,
		game.CreatorAddress,
		game.CreatedAt,
		game.UpdatedAt,
	).Scan(&game.ID, &inserted)
	if err != nil {
		return false, fmt.Errorf("failed to upsert game %d/%d: %w", game.IntID, game.ChainID, err)
	}
	return inserted, nil
}

// ListByIntIDs bulk-loads existing games for a chain keyed by intId.
// Used by the pipeline to avoid N+1 lookups per page.
func (r *GameRepository) ListByIntIDs(ctx context.Context, chainID types.ChainID, intIDs []int64) (map[int64]*models.Game, error) {
	out := make(map[int64]*models.Game, len(intIDs))
	if len(intIDs) == 0 {
		return out, nil
	}

	query := `SELECT ` + gameColumns + ` FROM games WHERE chain_id = $1 AND int_id = ANY($2)`
	rows, err := r.db.Pool().Query(ctx, query, chainID, intIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to list games by int ids: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		game, err := scanGame(rows)
		if err != nil {
			return nil, err
		}
		out[game.IntID] = game
	}
	return out, rows.Err()
}

// GetByIntID loads one game by its chain-scoped id.
func (r *GameRepository) GetByIntID(ctx context.Context, chainID types.ChainID, intID int64) (*models.Game, error) {
	query := `SELECT ` + gameColumns + ` FROM games WHERE chain_id = $1 AND int_id = $2`
	rows, err := r.db.Pool().Query(ctx, query, chainID, intID)
	if err != nil {
		return nil, fmt.Errorf("failed to get game %d/%d: %w", intID, chainID, err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, ErrGameNotFound
	}
	return scanGame(rows)
}

func scanGame(row pgx.Row) (*models.Game, error) {
	var game models.Game
	var entry, amountToPlay string
	err := row.Scan(
		&game.ID,
		&game.IntID,
		&game.ChainID,
		&game.Address,
		&game.Type,
		&game.Status,
		&game.Duration,
		&game.NumCoins,
		&game.NumPlayers,
		&game.CurrentPlayers,
		&entry,
		&game.CoinToPlay,
		&amountToPlay,
		&game.StartTimestamp,
		&game.AbortTimestamp,
		&game.StartedAt,
		&game.EndedAt,
		&game.TotalAmountCollected,
		&game.CreatorAddress,
		&game.CreatedAt,
		&game.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan game: %w", err)
	}
	game.Entry = entry
	game.AmountToPlay = amountToPlay
	return &game, nil
}

// nullableNumeric maps an empty amount string to "0" so NUMERIC columns
// never see an empty literal.
func nullableNumeric(v string) string {
	if v == "" {
		return "0"
	}
	return v
}
