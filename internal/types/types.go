// Package types provides common type definitions for the game sync engine.
package types

// ChainID identifies an EVM-compatible network by its numeric chain id.
type ChainID int64

const (
	// ChainEthereum is Ethereum mainnet
	ChainEthereum ChainID = 1
	// ChainBNB is BNB Smart Chain
	ChainBNB ChainID = 56
	// ChainPolygon is the Polygon PoS network
	ChainPolygon ChainID = 137
	// ChainBase is the Base network
	ChainBase ChainID = 8453
	// ChainArbitrum is Arbitrum One
	ChainArbitrum ChainID = 42161
)

// GameType represents the direction a game is played in.
// Bear games rank scores ascending, bull games descending.
type GameType int

const (
	// GameTypeBear represents a bear (price-down) game
	GameTypeBear GameType = 0
	// GameTypeBull represents a bull (price-up) game
	GameTypeBull GameType = 1
)

// GameStatus represents the lifecycle stage of a game.
type GameStatus string

const (
	// StatusWaiting means the game has been created but not started
	StatusWaiting GameStatus = "Waiting"
	// StatusStarted means the game is in progress
	StatusStarted GameStatus = "Started"
	// StatusEnded means the game has finished; ended games are immutable
	StatusEnded GameStatus = "Ended"
)

// ZeroAddress is the EVM zero address, used as the sentinel creator
// when the indexer has no creator on record.
const ZeroAddress = "0x0000000000000000000000000000000000000000"

// ServiceError represents a structured error response
type ServiceError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *ServiceError) Error() string {
	return e.Message
}
