package models

import (
	"time"

	"github.com/game-sync-engine/internal/types"
)

// SyncWorkerState is the in-memory, process-lifetime status of one chain's
// polling worker. Not persisted; rebuilt on process restart.
type SyncWorkerState struct {
	ChainID      types.ChainID `json:"chainId"`
	IsRunning    bool          `json:"isRunning"`
	LastSyncTime *time.Time    `json:"lastSyncTime,omitempty"`
	LastError    string        `json:"lastError,omitempty"`
	GamesSynced  int           `json:"gamesSynced"`
	Errors       int           `json:"errors"`
	StartTime    time.Time     `json:"startTime"`
}
