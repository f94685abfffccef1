package models

import "time"

// UserAccount is created lazily whenever an address is first referenced as
// a creator, player, or affiliate. The sync engine never deletes accounts.
type UserAccount struct {
	ID          string    `json:"id"`
	Address     string    `json:"address"` // lowercase, unique
	Username    *string   `json:"username,omitempty"`
	GamesPlayed int       `json:"gamesPlayed"`
	GamesWon    int       `json:"gamesWon"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// GameToken is the registry of ERC-20-like tokens observed as coin feeds.
// Auto-created with placeholder metadata when first seen; metadata is
// enriched by a separate service.
type GameToken struct {
	ID        string    `json:"id"`
	Address   string    `json:"address"`
	ChainID   int64     `json:"chainId"`
	Symbol    string    `json:"symbol"`
	Name      string    `json:"name"`
	Decimals  int       `json:"decimals"`
	CreatedAt time.Time `json:"createdAt"`
}

// TokenSymbolUnknown is the placeholder symbol for tokens whose metadata
// has not been enriched yet.
const TokenSymbolUnknown = "UNKNOWN"
