package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/game-sync-engine/internal/config"
	apperrors "github.com/game-sync-engine/internal/errors"
	"github.com/game-sync-engine/internal/models"
	"github.com/game-sync-engine/internal/sync"
	"github.com/game-sync-engine/internal/types"
)

// Mock services for testing

type mockSyncService struct {
	syncFunc func(ctx context.Context, chainID types.ChainID, opts sync.Options) (*sync.Result, error)
	lastOpts sync.Options
}

func (m *mockSyncService) Sync(ctx context.Context, chainID types.ChainID, opts sync.Options) (*sync.Result, error) {
	m.lastOpts = opts
	if m.syncFunc != nil {
		return m.syncFunc(ctx, chainID, opts)
	}
	return &sync.Result{Synced: 3, Updated: 1, Skipped: 2}, nil
}

type mockWorkerManager struct {
	started []types.ChainID
	stopped []types.ChainID
	stopErr error
	states  map[types.ChainID]*models.SyncWorkerState
}

func (m *mockWorkerManager) StartWorker(chainID types.ChainID, pollInterval time.Duration) {
	m.started = append(m.started, chainID)
}

func (m *mockWorkerManager) StopWorker(chainID types.ChainID) error {
	if m.stopErr != nil {
		return m.stopErr
	}
	m.stopped = append(m.stopped, chainID)
	return nil
}

func (m *mockWorkerManager) GetWorkerState(chainID types.ChainID) (*models.SyncWorkerState, bool) {
	state, ok := m.states[chainID]
	return state, ok
}

func (m *mockWorkerManager) GetAllWorkersState() map[types.ChainID]*models.SyncWorkerState {
	return m.states
}

func createTestServer(syncService SyncService, workers WorkerManager) *Server {
	cfg := &ServerConfig{
		Host:              "localhost",
		Port:              "8080",
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
		RequestsPerSecond: 1000,
	}
	chains := config.ChainsConfig{
		Enabled: []types.ChainID{types.ChainPolygon},
		Chains: map[types.ChainID]config.ChainConfig{
			types.ChainPolygon: {PollInterval: 30 * time.Second},
		},
	}
	return NewServer(cfg, syncService, workers, chains)
}

func doRequest(s *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHandleHealth(t *testing.T) {
	s := createTestServer(&mockSyncService{}, &mockWorkerManager{})
	rec := doRequest(s, "GET", "/health", nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON response: %v", err)
	}
	if resp["status"] != "healthy" {
		t.Errorf("expected healthy status, got %v", resp["status"])
	}
}

func TestHandleSyncSuccess(t *testing.T) {
	svc := &mockSyncService{}
	s := createTestServer(svc, &mockWorkerManager{})

	rec := doRequest(s, "POST", "/api/sync", map[string]interface{}{
		"chainId":        137,
		"limit":          50,
		"syncAll":        true,
		"updateExisting": true,
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp syncResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON response: %v", err)
	}
	if !resp.Success {
		t.Error("expected success=true")
	}
	if resp.Synced != 3 || resp.Updated != 1 || resp.Skipped != 2 {
		t.Errorf("unexpected counters: %+v", resp)
	}
	if svc.lastOpts.Limit != 50 || !svc.lastOpts.SyncAll || !svc.lastOpts.UpdateExisting {
		t.Errorf("options not passed through: %+v", svc.lastOpts)
	}
}

func TestHandleSyncValidation(t *testing.T) {
	s := createTestServer(&mockSyncService{}, &mockWorkerManager{})

	tests := []struct {
		name string
		body map[string]interface{}
	}{
		{"missing chainId", map[string]interface{}{}},
		{"negative chainId", map[string]interface{}{"chainId": -1}},
		{"chain not enabled", map[string]interface{}{"chainId": 1}},
		{"negative limit", map[string]interface{}{"chainId": 137, "limit": -5}},
		{"unknown field", map[string]interface{}{"chainId": 137, "bogus": true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(s, "POST", "/api/sync", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", rec.Code)
			}
		})
	}
}

func TestHandleSyncTerminalErrorReportsFailure(t *testing.T) {
	svc := &mockSyncService{
		syncFunc: func(ctx context.Context, chainID types.ChainID, opts sync.Options) (*sync.Result, error) {
			return &sync.Result{Skipped: 1}, apperrors.NewEndpointRemovedError(chainID, fmt.Errorf("gone"))
		},
	}
	s := createTestServer(svc, &mockWorkerManager{})

	rec := doRequest(s, "POST", "/api/sync", map[string]interface{}{"chainId": 137})
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rec.Code)
	}
	var resp syncResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON response: %v", err)
	}
	if resp.Success {
		t.Error("expected success=false")
	}
	if resp.Error == "" {
		t.Error("expected error message")
	}
	if resp.Skipped != 1 {
		t.Errorf("partial counters must survive: %+v", resp)
	}
}

func TestHandleStartWorker(t *testing.T) {
	workers := &mockWorkerManager{}
	s := createTestServer(&mockSyncService{}, workers)

	rec := doRequest(s, "POST", "/api/workers/137/start", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if len(workers.started) != 1 || workers.started[0] != types.ChainPolygon {
		t.Errorf("worker not started: %v", workers.started)
	}
}

func TestHandleStartWorkerUnknownChain(t *testing.T) {
	s := createTestServer(&mockSyncService{}, &mockWorkerManager{})

	rec := doRequest(s, "POST", "/api/workers/999/start", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}

	rec = doRequest(s, "POST", "/api/workers/abc/start", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for non-numeric chain id, got %d", rec.Code)
	}
}

func TestHandleStopWorkerNotRunning(t *testing.T) {
	workers := &mockWorkerManager{stopErr: fmt.Errorf("no worker running for chain 137")}
	s := createTestServer(&mockSyncService{}, workers)

	rec := doRequest(s, "POST", "/api/workers/137/stop", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestHandleWorkersStatus(t *testing.T) {
	now := time.Now()
	workers := &mockWorkerManager{
		states: map[types.ChainID]*models.SyncWorkerState{
			types.ChainPolygon: {
				ChainID:      types.ChainPolygon,
				IsRunning:    true,
				LastSyncTime: &now,
				GamesSynced:  12,
				StartTime:    now,
			},
		},
	}
	s := createTestServer(&mockSyncService{}, workers)

	rec := doRequest(s, "GET", "/api/workers/status", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp map[string]models.SyncWorkerState
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON response: %v", err)
	}
	state, ok := resp["137"]
	if !ok {
		t.Fatalf("expected state keyed by chain id, got %v", resp)
	}
	if !state.IsRunning || state.GamesSynced != 12 {
		t.Errorf("unexpected state: %+v", state)
	}
}

func TestRateLimiterRejectsBurst(t *testing.T) {
	cfg := &ServerConfig{Host: "localhost", Port: "8080", RequestsPerSecond: 1}
	s := NewServer(cfg, &mockSyncService{}, &mockWorkerManager{}, config.ChainsConfig{})

	limited := false
	for i := 0; i < 10; i++ {
		rec := doRequest(s, "GET", "/health", nil)
		if rec.Code == http.StatusTooManyRequests {
			limited = true
			break
		}
	}
	if !limited {
		t.Error("expected at least one request to be rate limited")
	}
}
