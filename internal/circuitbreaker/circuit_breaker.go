// Package circuitbreaker implements per-endpoint cooldown tracking for
// RPC endpoints shared by all chain workers in the process.
package circuitbreaker

import (
	"sync"
	"time"
)

// EndpointBreaker tracks which endpoints are temporarily disabled after
// rate-limit responses. It is shared, mutable, per-process state keyed by
// endpoint URL and must be safe under concurrent access from multiple
// chains' workers; all map mutation happens under the mutex.
type EndpointBreaker struct {
	mu            sync.Mutex
	disabledUntil map[string]time.Time
	cooldown      time.Duration
	now           func() time.Time
}

// DefaultCooldown is how long an endpoint stays disabled after a
// rate-limit error.
const DefaultCooldown = 60 * time.Second

// NewEndpointBreaker creates a breaker with the given cooldown window.
// A zero cooldown falls back to DefaultCooldown.
func NewEndpointBreaker(cooldown time.Duration) *EndpointBreaker {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &EndpointBreaker{
		disabledUntil: make(map[string]time.Time),
		cooldown:      cooldown,
		now:           time.Now,
	}
}

// Trip disables an endpoint for the cooldown window.
func (b *EndpointBreaker) Trip(endpoint string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.disabledUntil[endpoint] = b.now().Add(b.cooldown)
}

// Available reports whether an endpoint may be called. An expired entry is
// removed as a side effect.
func (b *EndpointBreaker) Available(endpoint string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	until, exists := b.disabledUntil[endpoint]
	if !exists {
		return true
	}
	if b.now().After(until) {
		delete(b.disabledUntil, endpoint)
		return true
	}
	return false
}

// Filter returns the endpoints that are currently callable, preserving
// order.
func (b *EndpointBreaker) Filter(endpoints []string) []string {
	available := make([]string, 0, len(endpoints))
	for _, ep := range endpoints {
		if b.Available(ep) {
			available = append(available, ep)
		}
	}
	return available
}

// Clear resets the breaker map. Used for fail-open recovery when every
// endpoint is disabled: serving with a possibly rate-limited endpoint
// beats serving nothing.
func (b *EndpointBreaker) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.disabledUntil = make(map[string]time.Time)
}

// DisabledCount returns how many endpoints are currently disabled.
func (b *EndpointBreaker) DisabledCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := 0
	now := b.now()
	for _, until := range b.disabledUntil {
		if now.Before(until) {
			n++
		}
	}
	return n
}

// Snapshot returns a copy of the disabled map for status reporting.
func (b *EndpointBreaker) Snapshot() map[string]time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make(map[string]time.Time, len(b.disabledUntil))
	for ep, until := range b.disabledUntil {
		out[ep] = until
	}
	return out
}

// SetNowFunc overrides the clock. Tests only.
func (b *EndpointBreaker) SetNowFunc(now func() time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.now = now
}
