// Package api provides the HTTP API server implementation.
package api

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/game-sync-engine/internal/config"
	"github.com/game-sync-engine/internal/models"
	"github.com/game-sync-engine/internal/sync"
	"github.com/game-sync-engine/internal/types"
)

// SyncService runs reconciliation passes on demand.
type SyncService interface {
	Sync(ctx context.Context, chainID types.ChainID, opts sync.Options) (*sync.Result, error)
}

// WorkerManager controls the per-chain polling workers.
type WorkerManager interface {
	StartWorker(chainID types.ChainID, pollInterval time.Duration)
	StopWorker(chainID types.ChainID) error
	GetWorkerState(chainID types.ChainID) (*models.SyncWorkerState, bool)
	GetAllWorkersState() map[types.ChainID]*models.SyncWorkerState
}

// Server represents the HTTP API server.
type Server struct {
	router      *mux.Router
	httpServer  *http.Server
	syncService SyncService
	workers     WorkerManager
	chains      config.ChainsConfig
	config      *ServerConfig
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Host              string
	Port              string
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	ShutdownTimeout   time.Duration
	RequestsPerSecond int
}

// NewServer creates a new API server instance.
func NewServer(cfg *ServerConfig, syncService SyncService, workers WorkerManager, chains config.ChainsConfig) *Server {
	s := &Server{
		router:      mux.NewRouter(),
		syncService: syncService,
		workers:     workers,
		chains:      chains,
		config:      cfg,
	}

	s.setupRouter()

	return s
}

// setupRouter configures the router with middleware and routes
func (s *Server) setupRouter() {
	rateLimiter := NewRateLimiter(s.config.RequestsPerSecond)

	// Set up middleware (order matters!)
	s.router.Use(LoggingMiddleware)
	s.router.Use(RecoveryMiddleware)
	s.router.Use(CORSMiddleware)
	s.router.Use(RateLimitMiddleware(rateLimiter))
	s.router.Use(CompressionMiddleware)

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%s", s.config.Host, s.config.Port),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	api := s.router.PathPrefix("/api").Subrouter()

	// Sync endpoint
	api.HandleFunc("/sync", s.handleSync).Methods("POST")

	// Worker lifecycle endpoints
	api.HandleFunc("/workers/status", s.handleWorkersStatus).Methods("GET")
	api.HandleFunc("/workers/{chainId}/start", s.handleStartWorker).Methods("POST")
	api.HandleFunc("/workers/{chainId}/stop", s.handleStopWorker).Methods("POST")
}

// handleHealth handles health check requests.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":        "healthy",
		"service":       "game-sync-engine",
		"activeWorkers": len(s.workers.GetAllWorkersState()),
	})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	log.Printf("Starting API server on %s", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Println("Shutting down API server...")
	return s.httpServer.Shutdown(ctx)
}

// Handler exposes the router. Tests only.
func (s *Server) Handler() http.Handler {
	return s.router
}
