package worker

import (
	"context"
	"fmt"
	stdsync "sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/game-sync-engine/internal/sync"
	"github.com/game-sync-engine/internal/types"
)

const testChain = types.ChainPolygon

// stubRunner counts sync invocations and can block until released.
type stubRunner struct {
	mu        stdsync.Mutex
	calls     int
	active    int
	maxActive int

	release chan struct{}
	result  *sync.Result
	err     error
	panics  bool
}

func (r *stubRunner) Sync(ctx context.Context, chainID types.ChainID, opts sync.Options) (*sync.Result, error) {
	r.mu.Lock()
	r.calls++
	r.active++
	if r.active > r.maxActive {
		r.maxActive = r.active
	}
	r.mu.Unlock()

	if r.release != nil {
		<-r.release
	}

	r.mu.Lock()
	r.active--
	r.mu.Unlock()

	if r.panics {
		panic("boom")
	}
	if r.err != nil {
		return nil, r.err
	}
	if r.result != nil {
		return r.result, nil
	}
	return &sync.Result{Synced: 1}, nil
}

func (r *stubRunner) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func TestStartWorkerDuplicateIsNoop(t *testing.T) {
	runner := &stubRunner{}
	m := NewManager(runner, sync.Options{})
	defer m.StopAll()

	m.StartWorker(testChain, time.Hour)
	m.StartWorker(testChain, time.Hour)

	assert.Eventually(t, func() bool { return runner.callCount() == 1 }, time.Second, 5*time.Millisecond,
		"only one worker fires the immediate sync")
	assert.Len(t, m.GetAllWorkersState(), 1)
}

func TestSingleFlightSkipsOverlappingTick(t *testing.T) {
	runner := &stubRunner{release: make(chan struct{})}
	m := NewManager(runner, sync.Options{})
	defer m.StopAll()

	m.StartWorker(testChain, time.Hour)

	// Wait until the immediate sync is in flight and blocked.
	assert.Eventually(t, func() bool { return runner.callCount() == 1 }, time.Second, 5*time.Millisecond)

	m.mu.Lock()
	w := m.workers[testChain]
	m.mu.Unlock()
	require.NotNil(t, w)

	// A second tick while the first sync is still running is a no-op.
	m.runSync(w)
	m.runSync(w)
	assert.Equal(t, 1, runner.callCount())

	close(runner.release)
	assert.Eventually(t, func() bool {
		w.mu.RLock()
		defer w.mu.RUnlock()
		return !w.isProcessing
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, 1, runner.maxActive, "at most one sync in flight")

	// With the first sync done, the next tick runs again.
	runner.release = nil
	m.runSync(w)
	assert.Equal(t, 2, runner.callCount())
}

func TestStopWorkerLetsInFlightSyncFinish(t *testing.T) {
	runner := &stubRunner{release: make(chan struct{})}
	m := NewManager(runner, sync.Options{})

	m.StartWorker(testChain, time.Hour)
	assert.Eventually(t, func() bool { return runner.callCount() == 1 }, time.Second, 5*time.Millisecond)

	stopped := make(chan error, 1)
	go func() { stopped <- m.StopWorker(testChain) }()

	// Stop must not return while the sync is still running: the loop
	// only exits after the current pass completes.
	select {
	case <-stopped:
		t.Fatal("StopWorker returned while sync was in flight")
	case <-time.After(50 * time.Millisecond):
	}

	close(runner.release)
	require.NoError(t, <-stopped)

	_, exists := m.GetWorkerState(testChain)
	assert.False(t, exists)
}

func TestStopWorkerUnknownChain(t *testing.T) {
	m := NewManager(&stubRunner{}, sync.Options{})
	assert.Error(t, m.StopWorker(types.ChainBase))
}

func TestWorkerRecordsSyncOutcome(t *testing.T) {
	runner := &stubRunner{result: &sync.Result{Synced: 3, Updated: 2, Errors: 1}}
	m := NewManager(runner, sync.Options{})
	defer m.StopAll()

	m.StartWorker(testChain, time.Hour)
	assert.Eventually(t, func() bool {
		state, ok := m.GetWorkerState(testChain)
		return ok && state.LastSyncTime != nil
	}, time.Second, 5*time.Millisecond)

	state, ok := m.GetWorkerState(testChain)
	require.True(t, ok)
	assert.True(t, state.IsRunning)
	assert.Equal(t, 5, state.GamesSynced, "synced plus updated")
	assert.Equal(t, 1, state.Errors)
	assert.Empty(t, state.LastError)
}

func TestWorkerRecordsErrorAndKeepsPolling(t *testing.T) {
	runner := &stubRunner{err: fmt.Errorf("indexer unreachable")}
	m := NewManager(runner, sync.Options{})
	defer m.StopAll()

	m.StartWorker(testChain, 20*time.Millisecond)

	assert.Eventually(t, func() bool { return runner.callCount() >= 2 }, time.Second, 5*time.Millisecond,
		"the loop keeps ticking after a failed sync")

	state, ok := m.GetWorkerState(testChain)
	require.True(t, ok)
	assert.Contains(t, state.LastError, "indexer unreachable")
	assert.GreaterOrEqual(t, state.Errors, 2)
}

func TestWorkerRecoversFromPanic(t *testing.T) {
	runner := &stubRunner{panics: true}
	m := NewManager(runner, sync.Options{})
	defer m.StopAll()

	m.StartWorker(testChain, 20*time.Millisecond)

	assert.Eventually(t, func() bool { return runner.callCount() >= 2 }, time.Second, 5*time.Millisecond,
		"a panicking sync does not kill the loop")

	state, ok := m.GetWorkerState(testChain)
	require.True(t, ok)
	assert.Contains(t, state.LastError, "panicked")
}

func TestStopAll(t *testing.T) {
	runner := &stubRunner{}
	m := NewManager(runner, sync.Options{})

	m.StartWorker(types.ChainPolygon, time.Hour)
	m.StartWorker(types.ChainBase, time.Hour)
	assert.Len(t, m.GetAllWorkersState(), 2)

	m.StopAll()
	assert.Empty(t, m.GetAllWorkersState())
}
