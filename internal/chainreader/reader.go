// Package chainreader executes read-only contract calls against a pool of
// JSON-RPC endpoints with endpoint rotation, rate-limit cooldowns, and
// exponential backoff.
package chainreader

import (
	"context"
	"fmt"
	"log"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"golang.org/x/time/rate"

	"github.com/game-sync-engine/internal/circuitbreaker"
	"github.com/game-sync-engine/internal/types"
)

// ContractCaller is the slice of the ethclient surface the reader needs.
type ContractCaller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	Close()
}

// ethCaller adapts *ethclient.Client to ContractCaller.
type ethCaller struct {
	client *ethclient.Client
}

func (c *ethCaller) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	return c.client.CallContract(ctx, msg, blockNumber)
}

func (c *ethCaller) Close() {
	c.client.Close()
}

// DialFunc creates a caller for an endpoint URL. Injectable for tests.
type DialFunc func(ctx context.Context, url string) (ContractCaller, error)

func dialEthclient(ctx context.Context, url string) (ContractCaller, error) {
	client, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, err
	}
	return &ethCaller{client: client}, nil
}

// Config configures a Reader.
type Config struct {
	// Endpoints is the ordered candidate list per chain. Required.
	Endpoints map[types.ChainID][]string
	// Breaker is the shared endpoint cooldown map. Injected so every
	// chain worker in the process shares one instance and tests get a
	// fresh one. Required.
	Breaker *circuitbreaker.EndpointBreaker
	// MinCallSpacing is the fixed minimum delay between calls to the
	// same endpoint. Default 200ms.
	MinCallSpacing time.Duration
	// CallTimeout bounds each outbound call. Default 15s.
	CallTimeout time.Duration
	// MaxPasses bounds how many times the whole candidate list is
	// walked before giving up. Default 3.
	MaxPasses int
	// MaxRetriesPerEndpoint bounds backoff retries of a retryable error
	// on one endpoint. Default 3.
	MaxRetriesPerEndpoint int
	// BackoffBase is the base of the exponential backoff. Default 500ms.
	BackoffBase time.Duration
	// GlobalRateLimitDelay is slept when every endpoint is rate limited
	// before clearing breakers and starting over. Default 5s.
	GlobalRateLimitDelay time.Duration
	// Dial overrides endpoint dialing. Tests only.
	Dial DialFunc
}

// Reader is the resilient contract read client shared by all chain
// workers. The breaker and the per-endpoint limiter map are the shared
// mutable state; both are guarded (breaker internally, limiters by mu).
type Reader struct {
	endpoints map[types.ChainID][]string
	breaker   *circuitbreaker.EndpointBreaker
	dial      DialFunc

	minSpacing           time.Duration
	callTimeout          time.Duration
	maxPasses            int
	maxRetriesPerEP      int
	backoffBase          time.Duration
	globalRateLimitDelay time.Duration

	mu                    sync.Mutex
	clients               map[string]ContractCaller
	limiters              map[string]*rate.Limiter
	consecutiveRateLimits int
}

// NewReader creates a reader from config, applying defaults.
func NewReader(cfg *Config) (*Reader, error) {
	if cfg == nil || len(cfg.Endpoints) == 0 {
		return nil, fmt.Errorf("at least one chain with RPC endpoints is required")
	}
	if cfg.Breaker == nil {
		return nil, fmt.Errorf("endpoint breaker is required")
	}

	r := &Reader{
		endpoints:            cfg.Endpoints,
		breaker:              cfg.Breaker,
		dial:                 cfg.Dial,
		minSpacing:           cfg.MinCallSpacing,
		callTimeout:          cfg.CallTimeout,
		maxPasses:            cfg.MaxPasses,
		maxRetriesPerEP:      cfg.MaxRetriesPerEndpoint,
		backoffBase:          cfg.BackoffBase,
		globalRateLimitDelay: cfg.GlobalRateLimitDelay,
		clients:              make(map[string]ContractCaller),
		limiters:             make(map[string]*rate.Limiter),
	}
	if r.dial == nil {
		r.dial = dialEthclient
	}
	if r.minSpacing <= 0 {
		r.minSpacing = 200 * time.Millisecond
	}
	if r.callTimeout <= 0 {
		r.callTimeout = 15 * time.Second
	}
	if r.maxPasses <= 0 {
		r.maxPasses = 3
	}
	if r.maxRetriesPerEP <= 0 {
		r.maxRetriesPerEP = 3
	}
	if r.backoffBase <= 0 {
		r.backoffBase = 500 * time.Millisecond
	}
	if r.globalRateLimitDelay <= 0 {
		r.globalRateLimitDelay = 5 * time.Second
	}
	return r, nil
}

// HasChain reports whether the reader has endpoints for a chain.
func (r *Reader) HasChain(chainID types.ChainID) bool {
	return len(r.endpoints[chainID]) > 0
}

// Call executes a read-only contract call, rotating across the chain's
// endpoints. After exhausting every endpoint and retry pass it returns the
// last observed error; it never substitutes a default value.
func (r *Reader) Call(ctx context.Context, chainID types.ChainID, contractAddr string, contractABI abi.ABI, method string, args ...interface{}) ([]interface{}, error) {
	endpoints := r.endpoints[chainID]
	if len(endpoints) == 0 {
		return nil, fmt.Errorf("no RPC endpoints configured for chain %d", chainID)
	}

	input, err := contractABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s call: %w", method, err)
	}
	to := common.HexToAddress(contractAddr)
	msg := ethereum.CallMsg{To: &to, Data: input}

	var lastErr error
	for pass := 0; pass < r.maxPasses; pass++ {
		candidates := r.breaker.Filter(endpoints)
		if len(candidates) == 0 {
			// Fail-open: a possibly throttled endpoint beats none.
			log.Printf("[ChainReader] chain %d: all %d endpoints disabled, clearing breakers", chainID, len(endpoints))
			r.breaker.Clear()
			candidates = endpoints
		}

		allRateLimited := true
		for _, endpoint := range candidates {
			out, callErr := r.callEndpoint(ctx, endpoint, msg, contractABI, method)
			if callErr == nil {
				r.resetRateLimitStreak()
				return out, nil
			}
			lastErr = callErr

			switch Classify(callErr) {
			case ClassFatal:
				return nil, callErr
			case ClassRateLimited:
				r.breaker.Trip(endpoint)
				r.recordRateLimit(ctx, endpoint)
			default:
				allRateLimited = false
			}
		}

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if allRateLimited {
			log.Printf("[ChainReader] chain %d: every endpoint rate limited, sleeping %v before retry pass %d",
				chainID, r.globalRateLimitDelay, pass+1)
			if err := sleepCtx(ctx, r.globalRateLimitDelay); err != nil {
				return nil, err
			}
			r.breaker.Clear()
		}
	}

	return nil, fmt.Errorf("contract call %s failed on chain %d after %d passes: %w", method, chainID, r.maxPasses, lastErr)
}

// callEndpoint runs the call against one endpoint with per-endpoint
// spacing and exponential backoff on retryable errors.
func (r *Reader) callEndpoint(ctx context.Context, endpoint string, msg ethereum.CallMsg, contractABI abi.ABI, method string) ([]interface{}, error) {
	var lastErr error
	for attempt := 0; attempt < r.maxRetriesPerEP; attempt++ {
		if err := r.limiter(endpoint).Wait(ctx); err != nil {
			return nil, err
		}

		client, err := r.client(ctx, endpoint)
		if err != nil {
			lastErr = err
			if Classify(err) != ClassRetryable {
				return nil, err
			}
			if err := sleepCtx(ctx, r.backoff(attempt)); err != nil {
				return nil, err
			}
			continue
		}

		callCtx, cancel := context.WithTimeout(ctx, r.callTimeout)
		raw, err := client.CallContract(callCtx, msg, nil)
		cancel()
		if err != nil {
			lastErr = err
			if Classify(err) != ClassRetryable {
				return nil, err
			}
			if err := sleepCtx(ctx, r.backoff(attempt)); err != nil {
				return nil, err
			}
			continue
		}

		out, err := contractABI.Unpack(method, raw)
		if err != nil {
			// Decode failures are data-shape problems, not transport ones.
			return nil, fmt.Errorf("abi: failed to unpack %s result: %w", method, err)
		}
		return out, nil
	}
	return nil, lastErr
}

// backoff computes base * 2^attempt.
func (r *Reader) backoff(attempt int) time.Duration {
	return r.backoffBase * time.Duration(1<<attempt)
}

// client returns the cached caller for an endpoint, dialing lazily.
func (r *Reader) client(ctx context.Context, endpoint string) (ContractCaller, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.clients[endpoint]; ok {
		return c, nil
	}
	c, err := r.dial(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", endpoint, err)
	}
	r.clients[endpoint] = c
	return c, nil
}

// limiter returns the per-endpoint spacing limiter, creating it on first
// use. Strict fixed spacing, not adaptive.
func (r *Reader) limiter(endpoint string) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()

	if l, ok := r.limiters[endpoint]; ok {
		return l
	}
	l := rate.NewLimiter(rate.Every(r.minSpacing), 1)
	r.limiters[endpoint] = l
	return l
}

// recordRateLimit bumps the consecutive rate-limit counter and drops the
// client handle once the streak grows, with backoff scaled by the streak.
// Some providers throttle per connection; a fresh handle recovers sooner.
func (r *Reader) recordRateLimit(ctx context.Context, endpoint string) {
	r.mu.Lock()
	r.consecutiveRateLimits++
	streak := r.consecutiveRateLimits
	if streak >= 2 {
		if c, ok := r.clients[endpoint]; ok {
			c.Close()
			delete(r.clients, endpoint)
		}
	}
	r.mu.Unlock()

	if streak >= 2 {
		scaled := streak
		if scaled > 5 {
			scaled = 5
		}
		_ = sleepCtx(ctx, r.backoffBase*time.Duration(scaled))
	}
}

func (r *Reader) resetRateLimitStreak() {
	r.mu.Lock()
	r.consecutiveRateLimits = 0
	r.mu.Unlock()
}

// Close closes all dialed clients.
func (r *Reader) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for ep, c := range r.clients {
		c.Close()
		delete(r.clients, ep)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
