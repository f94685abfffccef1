// Package worker schedules one polling sync loop per enabled chain and
// exposes worker lifecycle control and live state snapshots.
package worker

import (
	"context"
	"fmt"
	"log"
	stdsync "sync"
	"time"

	"github.com/game-sync-engine/internal/models"
	"github.com/game-sync-engine/internal/sync"
	"github.com/game-sync-engine/internal/types"
)

// SyncRunner runs one reconciliation pass for a chain.
type SyncRunner interface {
	Sync(ctx context.Context, chainID types.ChainID, opts sync.Options) (*sync.Result, error)
}

// chainWorker is the per-chain polling loop plus its observable state.
type chainWorker struct {
	chainID      types.ChainID
	pollInterval time.Duration
	stopCh       chan struct{}
	doneCh       chan struct{}

	mu           stdsync.RWMutex
	isProcessing bool
	state        models.SyncWorkerState
}

// Manager owns all chain workers. At most one worker per chain, and at
// most one sync in flight per worker.
type Manager struct {
	runner      SyncRunner
	syncOptions sync.Options

	mu      stdsync.Mutex
	workers map[types.ChainID]*chainWorker
}

// NewManager creates a worker manager. opts is applied to every
// scheduled sync pass.
func NewManager(runner SyncRunner, opts sync.Options) *Manager {
	return &Manager{
		runner:      runner,
		syncOptions: opts,
		workers:     make(map[types.ChainID]*chainWorker),
	}
}

// StartWorker starts the polling loop for a chain. A second start for
// the same chain is a warning no-op; duplicate pollers are never created.
func (m *Manager) StartWorker(chainID types.ChainID, pollInterval time.Duration) {
	if pollInterval <= 0 {
		pollInterval = 60 * time.Second
	}

	m.mu.Lock()
	if _, exists := m.workers[chainID]; exists {
		m.mu.Unlock()
		log.Printf("[WorkerManager] chain %d: worker already running, ignoring start", chainID)
		return
	}
	w := &chainWorker{
		chainID:      chainID,
		pollInterval: pollInterval,
		stopCh:       make(chan struct{}),
		doneCh:       make(chan struct{}),
		state: models.SyncWorkerState{
			ChainID:   chainID,
			IsRunning: true,
			StartTime: time.Now(),
		},
	}
	m.workers[chainID] = w
	m.mu.Unlock()

	log.Printf("[WorkerManager] chain %d: starting worker with poll interval %v", chainID, pollInterval)
	go m.run(w)
}

// StopWorker disarms a chain's poller. A sync already in flight finishes;
// only the timer is cancelled.
func (m *Manager) StopWorker(chainID types.ChainID) error {
	m.mu.Lock()
	w, exists := m.workers[chainID]
	if !exists {
		m.mu.Unlock()
		return fmt.Errorf("no worker running for chain %d", chainID)
	}
	delete(m.workers, chainID)
	m.mu.Unlock()

	log.Printf("[WorkerManager] chain %d: stopping worker", chainID)
	close(w.stopCh)
	<-w.doneCh

	w.mu.Lock()
	w.state.IsRunning = false
	w.mu.Unlock()
	return nil
}

// StopAll stops every worker. Used on process shutdown.
func (m *Manager) StopAll() {
	m.mu.Lock()
	chains := make([]types.ChainID, 0, len(m.workers))
	for chainID := range m.workers {
		chains = append(chains, chainID)
	}
	m.mu.Unlock()

	for _, chainID := range chains {
		if err := m.StopWorker(chainID); err != nil {
			log.Printf("[WorkerManager] chain %d: stop failed: %v", chainID, err)
		}
	}
}

// GetWorkerState returns a snapshot of one chain's worker state.
func (m *Manager) GetWorkerState(chainID types.ChainID) (*models.SyncWorkerState, bool) {
	m.mu.Lock()
	w, exists := m.workers[chainID]
	m.mu.Unlock()
	if !exists {
		return nil, false
	}
	state := w.snapshot()
	return &state, true
}

// GetAllWorkersState returns snapshots for every active chain.
func (m *Manager) GetAllWorkersState() map[types.ChainID]*models.SyncWorkerState {
	m.mu.Lock()
	workers := make([]*chainWorker, 0, len(m.workers))
	for _, w := range m.workers {
		workers = append(workers, w)
	}
	m.mu.Unlock()

	out := make(map[types.ChainID]*models.SyncWorkerState, len(workers))
	for _, w := range workers {
		state := w.snapshot()
		out[w.chainID] = &state
	}
	return out
}

// run is the polling loop. It fires an immediate sync, then one per tick
// until stopped.
func (m *Manager) run(w *chainWorker) {
	defer close(w.doneCh)

	m.runSync(w)

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			log.Printf("[WorkerManager] chain %d: stop signal received", w.chainID)
			return
		case <-ticker.C:
			m.runSync(w)
		}
	}
}

// runSync executes one sync pass under the single-flight guard: when the
// previous pass is still running the tick is skipped entirely.
func (m *Manager) runSync(w *chainWorker) {
	w.mu.Lock()
	if w.isProcessing {
		w.mu.Unlock()
		log.Printf("[WorkerManager] chain %d: previous sync still running, skipping tick", w.chainID)
		return
	}
	w.isProcessing = true
	w.mu.Unlock()

	defer func() {
		// A panicking sync must not kill the polling loop; the next
		// tick still fires.
		if r := recover(); r != nil {
			log.Printf("[WorkerManager] chain %d: sync panicked: %v", w.chainID, r)
			w.recordError(fmt.Errorf("sync panicked: %v", r))
		}
		w.mu.Lock()
		w.isProcessing = false
		w.mu.Unlock()
	}()

	res, err := m.runner.Sync(context.Background(), w.chainID, m.syncOptions)
	if err != nil {
		log.Printf("[WorkerManager] chain %d: sync failed: %v", w.chainID, err)
		w.recordError(err)
		return
	}

	now := time.Now()
	w.mu.Lock()
	w.state.LastSyncTime = &now
	w.state.LastError = ""
	w.state.GamesSynced += res.Synced + res.Updated
	w.state.Errors += res.Errors
	w.mu.Unlock()
}

func (w *chainWorker) recordError(err error) {
	now := time.Now()
	w.mu.Lock()
	w.state.LastSyncTime = &now
	w.state.LastError = err.Error()
	w.state.Errors++
	w.mu.Unlock()
}

func (w *chainWorker) snapshot() models.SyncWorkerState {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.state
}
