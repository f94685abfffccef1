// Package models defines the persistent entities managed by the sync engine.
package models

import (
	"time"

	"github.com/game-sync-engine/internal/types"
)

// Game is the canonical record of an on-chain prediction game.
// Unique per (IntID, ChainID). Created on first indexer sighting, mutated
// by every reconciliation pass until Ended, then immutable.
type Game struct {
	ID                   string           `json:"id"`
	IntID                int64            `json:"intId"`
	ChainID              types.ChainID    `json:"chainId"`
	Address              string           `json:"address"`
	Type                 types.GameType   `json:"type"`
	Status               types.GameStatus `json:"status"`
	Duration             int64            `json:"duration"`
	NumCoins             int              `json:"numCoins"`
	NumPlayers           int              `json:"numPlayers"`
	CurrentPlayers       int              `json:"currentPlayers"`
	Entry                string           `json:"entry"`
	CoinToPlay           string           `json:"coinToPlay"`
	AmountToPlay         string           `json:"amountToPlay"`
	StartTimestamp       int64            `json:"startTimestamp"`
	AbortTimestamp       int64            `json:"abortTimestamp"`
	StartedAt            *time.Time       `json:"startedAt,omitempty"`
	EndedAt              *time.Time       `json:"endedAt,omitempty"`
	TotalAmountCollected *string          `json:"totalAmountCollected,omitempty"`
	CreatorAddress       string           `json:"creatorAddress"`
	CreatedAt            time.Time        `json:"createdAt"`
	UpdatedAt            time.Time        `json:"updatedAt"`
}

// GameParticipant joins a user account to a game. Unique per
// (GameID, UserAddress); written only by the detail enricher.
type GameParticipant struct {
	ID          string  `json:"id"`
	GameID      string  `json:"gameId"`
	UserAddress string  `json:"userAddress"`
	CaptainCoin string  `json:"captainCoin"`
	Affiliate   *string `json:"affiliate,omitempty"`
	Index       int     `json:"index"`
}

// GameParticipantCoinFeed is one non-captain coin selected by a
// participant. Append-only with duplicate-skip semantics.
type GameParticipantCoinFeed struct {
	ID            string `json:"id"`
	ParticipantID string `json:"participantId"`
	TokenAddress  string `json:"tokenAddress"`
}

// GameCoinFeed holds on-chain price and score data for one coin in one
// game. Unique per (GameID, TokenAddress); upserted as data becomes
// available on-chain.
type GameCoinFeed struct {
	ID           string  `json:"id"`
	GameID       string  `json:"gameId"`
	TokenAddress string  `json:"tokenAddress"`
	StartPrice   string  `json:"startPrice"`
	EndPrice     *string `json:"endPrice,omitempty"`
	Score        *string `json:"score,omitempty"`
}

// GameResult is written exactly once per finished game, when the contract
// reports finished && scores_done. Only the winner's row is persisted.
type GameResult struct {
	ID            string    `json:"id"`
	GameID        string    `json:"gameId"`
	WinnerAddress string    `json:"winnerAddress"`
	Score         string    `json:"score"`
	Prize         string    `json:"prize"`
	CreatedAt     time.Time `json:"createdAt"`
}
