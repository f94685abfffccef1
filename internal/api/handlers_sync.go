package api

import (
	"errors"
	"net/http"

	apperrors "github.com/game-sync-engine/internal/errors"
	"github.com/game-sync-engine/internal/sync"
	"github.com/game-sync-engine/internal/types"
)

// syncRequest is the POST /api/sync body.
type syncRequest struct {
	ChainID        int64   `json:"chainId"`
	Limit          int     `json:"limit,omitempty"`
	Status         *string `json:"status,omitempty"`
	Skip           int     `json:"skip,omitempty"`
	SyncAll        bool    `json:"syncAll,omitempty"`
	UpdateExisting bool    `json:"updateExisting,omitempty"`
}

// syncResponse always carries an explicit success flag and the counter
// set, even on failure.
type syncResponse struct {
	Success       bool     `json:"success"`
	Synced        int      `json:"synced"`
	Updated       int      `json:"updated"`
	Skipped       int      `json:"skipped"`
	Errors        int      `json:"errors"`
	ErrorsDetails []string `json:"errorsDetails,omitempty"`
	Error         string   `json:"error,omitempty"`
}

// handleSync runs one reconciliation pass for a chain.
func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	var req syncRequest
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "invalid request body: "+err.Error(), nil)
		return
	}
	if req.ChainID <= 0 {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "chainId must be a positive integer", nil)
		return
	}
	chainID := types.ChainID(req.ChainID)
	if _, ok := s.chains.Chains[chainID]; !ok {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "chain is not enabled", map[string]interface{}{
			"chainId": req.ChainID,
		})
		return
	}
	if req.Limit < 0 || req.Skip < 0 {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "limit and skip must not be negative", nil)
		return
	}

	result, err := s.syncService.Sync(r.Context(), chainID, sync.Options{
		Status:         req.Status,
		Limit:          req.Limit,
		Skip:           req.Skip,
		SyncAll:        req.SyncAll,
		UpdateExisting: req.UpdateExisting,
	})

	resp := syncResponse{Success: err == nil}
	if result != nil {
		resp.Synced = result.Synced
		resp.Updated = result.Updated
		resp.Skipped = result.Skipped
		resp.Errors = result.Errors
		resp.ErrorsDetails = result.ErrorDetails
	}
	if err != nil {
		resp.Error = err.Error()
		respondJSON(w, syncErrorStatus(err), resp)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

// syncErrorStatus maps sync failures to HTTP status codes. Categorized
// errors carry their own code; anything else is a gateway-side failure.
func syncErrorStatus(err error) int {
	var ce *apperrors.CategorizedError
	if errors.As(err, &ce) && ce.StatusCode != 0 {
		return ce.StatusCode
	}
	return http.StatusBadGateway
}
