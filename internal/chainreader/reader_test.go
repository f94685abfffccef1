package chainreader

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/game-sync-engine/internal/circuitbreaker"
	"github.com/game-sync-engine/internal/contracts"
	"github.com/game-sync-engine/internal/types"
)

// fakeCaller returns scripted responses per endpoint.
type fakeCaller struct {
	mu        sync.Mutex
	responses []fakeResponse
	calls     int
	closed    bool
}

type fakeResponse struct {
	data []byte
	err  error
}

func (f *fakeCaller) CallContract(_ context.Context, _ ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	idx := f.calls
	if idx >= len(f.responses) {
		idx = len(f.responses) - 1
	}
	f.calls++
	resp := f.responses[idx]
	return resp.data, resp.err
}

func (f *fakeCaller) Close() {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
}

func fastConfig(endpoints map[types.ChainID][]string, callers map[string]*fakeCaller) *Config {
	return &Config{
		Endpoints:             endpoints,
		Breaker:               circuitbreaker.NewEndpointBreaker(time.Minute),
		MinCallSpacing:        time.Microsecond,
		CallTimeout:           time.Second,
		MaxPasses:             3,
		MaxRetriesPerEndpoint: 2,
		BackoffBase:           time.Microsecond,
		GlobalRateLimitDelay:  time.Microsecond,
		Dial: func(_ context.Context, url string) (ContractCaller, error) {
			c, ok := callers[url]
			if !ok {
				return nil, errors.New("unknown endpoint " + url)
			}
			return c, nil
		},
	}
}

func packedAddress(t *testing.T, addr string) []byte {
	t.Helper()
	out, err := contracts.RegistryABI.Methods["gameAddress"].Outputs.Pack(common.HexToAddress(addr))
	require.NoError(t, err)
	return out
}

func TestCallRotatesOnRateLimit(t *testing.T) {
	want := "0x00000000000000000000000000000000000000aa"
	callers := map[string]*fakeCaller{
		"ep-a": {responses: []fakeResponse{{err: errors.New("429 too many requests")}}},
		"ep-b": {responses: []fakeResponse{{data: packedAddress(t, want)}}},
	}
	reader, err := NewReader(fastConfig(map[types.ChainID][]string{types.ChainPolygon: {"ep-a", "ep-b"}}, callers))
	require.NoError(t, err)

	out, err := reader.Call(context.Background(), types.ChainPolygon, "0x01", contracts.RegistryABI, "gameAddress", big.NewInt(7))
	require.NoError(t, err)

	addr, err := contracts.DecodeAddress(out)
	require.NoError(t, err)
	assert.Equal(t, want, types.NormalizeAddress(addr.Hex()))

	// the throttled endpoint must now be in cooldown
	assert.False(t, reader.breaker.Available("ep-a"))
}

func TestCallRecoversWhenAllEndpointsDisabled(t *testing.T) {
	// Both endpoints rate-limit once, then one recovers. The reader must
	// clear breakers and still succeed rather than fail with "no
	// endpoints available".
	callers := map[string]*fakeCaller{
		"ep-a": {responses: []fakeResponse{
			{err: errors.New("rate limit exceeded")},
			{data: packedAddress(t, "0x00000000000000000000000000000000000000bb")},
		}},
		"ep-b": {responses: []fakeResponse{{err: errors.New("429")}}},
	}
	cfg := fastConfig(map[types.ChainID][]string{types.ChainPolygon: {"ep-a", "ep-b"}}, callers)
	reader, err := NewReader(cfg)
	require.NoError(t, err)

	// first call exhausts pass 1 on rate limits, then succeeds on a later pass
	out, err := reader.Call(context.Background(), types.ChainPolygon, "0x01", contracts.RegistryABI, "gameAddress", big.NewInt(1))
	require.NoError(t, err)
	addr, err := contracts.DecodeAddress(out)
	require.NoError(t, err)
	assert.Equal(t, "0x00000000000000000000000000000000000000bb", types.NormalizeAddress(addr.Hex()))
}

func TestCallFatalErrorPropagatesImmediately(t *testing.T) {
	caller := &fakeCaller{responses: []fakeResponse{{err: errors.New("execution reverted: game does not exist")}}}
	callers := map[string]*fakeCaller{"ep-a": caller}
	reader, err := NewReader(fastConfig(map[types.ChainID][]string{types.ChainBase: {"ep-a"}}, callers))
	require.NoError(t, err)

	_, err = reader.Call(context.Background(), types.ChainBase, "0x02", contracts.RegistryABI, "gameAddress", big.NewInt(1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "execution reverted")
	assert.Equal(t, 1, caller.calls, "fatal errors must not be retried")
}

func TestCallRetryableErrorBacksOffThenSucceeds(t *testing.T) {
	caller := &fakeCaller{responses: []fakeResponse{
		{err: errors.New("connection reset by peer")},
		{data: packedAddress(t, "0x00000000000000000000000000000000000000cc")},
	}}
	reader, err := NewReader(fastConfig(map[types.ChainID][]string{types.ChainBase: {"ep-a"}}, map[string]*fakeCaller{"ep-a": caller}))
	require.NoError(t, err)

	out, err := reader.Call(context.Background(), types.ChainBase, "0x02", contracts.RegistryABI, "gameAddress", big.NewInt(1))
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, 2, caller.calls)
}

func TestCallReturnsLastErrorOnExhaustion(t *testing.T) {
	caller := &fakeCaller{responses: []fakeResponse{{err: errors.New("connection refused")}}}
	reader, err := NewReader(fastConfig(map[types.ChainID][]string{types.ChainBase: {"ep-a"}}, map[string]*fakeCaller{"ep-a": caller}))
	require.NoError(t, err)

	_, err = reader.Call(context.Background(), types.ChainBase, "0x02", contracts.RegistryABI, "gameAddress", big.NewInt(1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestCallUnknownChain(t *testing.T) {
	reader, err := NewReader(fastConfig(map[types.ChainID][]string{types.ChainBase: {"ep-a"}}, map[string]*fakeCaller{"ep-a": {responses: []fakeResponse{{}}}}))
	require.NoError(t, err)

	_, err = reader.Call(context.Background(), types.ChainEthereum, "0x02", contracts.RegistryABI, "gameAddress", big.NewInt(1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no RPC endpoints configured")
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		want ErrorClass
	}{
		{errors.New("429 Too Many Requests"), ClassRateLimited},
		{errors.New("daily quota exceeded"), ClassRateLimited},
		{errors.New("request throttled"), ClassRateLimited},
		{errors.New("execution reverted"), ClassFatal},
		{errors.New("i/o timeout"), ClassRetryable},
		{errors.New("502 bad gateway"), ClassRetryable},
		{context.Canceled, ClassFatal},
	}
	for _, tt := range tests {
		if got := Classify(tt.err); got != tt.want {
			t.Errorf("Classify(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}
