package api

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/game-sync-engine/internal/models"
	"github.com/game-sync-engine/internal/types"
)

// workerResponse is the response for worker lifecycle calls.
type workerResponse struct {
	Success bool   `json:"success"`
	ChainID int64  `json:"chainId"`
	Status  string `json:"status"`
	Error   string `json:"error,omitempty"`
}

// chainIDFromPath parses the {chainId} path variable and checks the chain
// is enabled.
func (s *Server) chainIDFromPath(w http.ResponseWriter, r *http.Request) (types.ChainID, bool) {
	raw := mux.Vars(r)["chainId"]
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "chainId must be a positive integer", nil)
		return 0, false
	}
	chainID := types.ChainID(id)
	if _, ok := s.chains.Chains[chainID]; !ok {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "chain is not enabled", map[string]interface{}{
			"chainId": id,
		})
		return 0, false
	}
	return chainID, true
}

// handleStartWorker starts the polling worker for a chain. Starting an
// already-running worker is a no-op.
func (s *Server) handleStartWorker(w http.ResponseWriter, r *http.Request) {
	chainID, ok := s.chainIDFromPath(w, r)
	if !ok {
		return
	}

	s.workers.StartWorker(chainID, s.chains.Chains[chainID].PollInterval)
	respondJSON(w, http.StatusOK, workerResponse{
		Success: true,
		ChainID: int64(chainID),
		Status:  "started",
	})
}

// handleStopWorker stops the polling worker for a chain.
func (s *Server) handleStopWorker(w http.ResponseWriter, r *http.Request) {
	chainID, ok := s.chainIDFromPath(w, r)
	if !ok {
		return
	}

	if err := s.workers.StopWorker(chainID); err != nil {
		respondError(w, http.StatusNotFound, ErrCodeNotFound, err.Error(), map[string]interface{}{
			"chainId": int64(chainID),
		})
		return
	}
	respondJSON(w, http.StatusOK, workerResponse{
		Success: true,
		ChainID: int64(chainID),
		Status:  "stopped",
	})
}

// handleWorkersStatus returns the live state of every active worker,
// keyed by decimal chain id.
func (s *Server) handleWorkersStatus(w http.ResponseWriter, r *http.Request) {
	states := s.workers.GetAllWorkersState()
	out := make(map[string]*models.SyncWorkerState, len(states))
	for chainID, state := range states {
		out[strconv.FormatInt(int64(chainID), 10)] = state
	}
	respondJSON(w, http.StatusOK, out)
}
