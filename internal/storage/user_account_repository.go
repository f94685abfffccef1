package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/game-sync-engine/internal/types"
)

// UserAccountRepository handles user account persistence. Accounts are
// created lazily and never deleted by the sync engine.
type UserAccountRepository struct {
	db *PostgresDB
}

// NewUserAccountRepository creates a new user account repository
func NewUserAccountRepository(db *PostgresDB) *UserAccountRepository {
	return &UserAccountRepository{db: db}
}

// EnsureAccounts inserts accounts for any addresses not yet on file.
// Duplicate-safe: existing rows are left untouched.
func (r *UserAccountRepository) EnsureAccounts(ctx context.Context, addresses []string) error {
	if len(addresses) == 0 {
		return nil
	}

	query := `
		INSERT INTO user_accounts (id, address, created_at, updated_at)
		VALUES ($1, $2, $3, $3)
		ON CONFLICT (address) DO NOTHING
	`

	now := time.Now()
	for _, addr := range addresses {
		normalized := types.NormalizeAddress(addr)
		if normalized == "" {
			continue
		}
		if _, err := r.db.Pool().Exec(ctx, query, uuid.New().String(), normalized, now); err != nil {
			return fmt.Errorf("failed to ensure account %s: %w", normalized, err)
		}
	}
	return nil
}

// FilterExisting returns the subset of addresses already on file,
// lowercase. One round trip regardless of input size.
func (r *UserAccountRepository) FilterExisting(ctx context.Context, addresses []string) (map[string]bool, error) {
	existing := make(map[string]bool, len(addresses))
	if len(addresses) == 0 {
		return existing, nil
	}

	normalized := make([]string, 0, len(addresses))
	for _, addr := range addresses {
		normalized = append(normalized, types.NormalizeAddress(addr))
	}

	rows, err := r.db.Pool().Query(ctx, `SELECT address FROM user_accounts WHERE address = ANY($1)`, normalized)
	if err != nil {
		return nil, fmt.Errorf("failed to filter existing accounts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var addr string
		if err := rows.Scan(&addr); err != nil {
			return nil, err
		}
		existing[addr] = true
	}
	return existing, rows.Err()
}

// IncrementGamesWon bumps the win counter for an address.
func (r *UserAccountRepository) IncrementGamesWon(ctx context.Context, address string) error {
	query := `
		UPDATE user_accounts
		SET games_won = games_won + 1, updated_at = NOW()
		WHERE address = $1
	`
	_, err := r.db.Pool().Exec(ctx, query, types.NormalizeAddress(address))
	if err != nil {
		return fmt.Errorf("failed to increment games won for %s: %w", address, err)
	}
	return nil
}

// IncrementGamesPlayed bumps the played counter for a batch of addresses.
func (r *UserAccountRepository) IncrementGamesPlayed(ctx context.Context, addresses []string) error {
	if len(addresses) == 0 {
		return nil
	}
	normalized := make([]string, 0, len(addresses))
	for _, addr := range addresses {
		normalized = append(normalized, types.NormalizeAddress(addr))
	}
	query := `
		UPDATE user_accounts
		SET games_played = games_played + 1, updated_at = NOW()
		WHERE address = ANY($1)
	`
	_, err := r.db.Pool().Exec(ctx, query, normalized)
	if err != nil {
		return fmt.Errorf("failed to increment games played: %w", err)
	}
	return nil
}
