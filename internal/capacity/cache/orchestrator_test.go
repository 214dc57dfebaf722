package cache

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"examgate/internal/capacity/ports"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

// countingTier wraps a MemoryTier and counts lookups so fallback order is
// observable.
type countingTier struct {
	*MemoryTier
	name string
	gets atomic.Int64
}

func newCountingTier(name string) *countingTier {
	return &countingTier{MemoryTier: NewMemoryTier(), name: name}
}

func (t *countingTier) Name() string { return t.name }

func (t *countingTier) TryGet(ctx context.Context, key string) ([]byte, bool) {
	t.gets.Add(1)
	return t.MemoryTier.TryGet(ctx, key)
}

// brokenTier fails every operation; the chain must absorb it silently.
type brokenTier struct{}

func (brokenTier) Name() string                                          { return "broken" }
func (brokenTier) TryGet(context.Context, string) ([]byte, bool)         { return nil, false }
func (brokenTier) TrySet(context.Context, string, []byte, time.Duration) {}
func (brokenTier) TryDelete(context.Context, string)                     {}
func (brokenTier) Health(context.Context) error                          { return errors.New("down") }

func origin(payload string, calls *atomic.Int64) ComputeFn {
	return func(context.Context) ([]byte, error) {
		calls.Add(1)
		return []byte(payload), nil
	}
}

func TestTierOneHitShortCircuits(t *testing.T) {
	tier1 := newCountingTier("config")
	tier2 := newCountingTier("regional")
	tier1.TrySet(context.Background(), "status:demo", []byte("warm"), time.Minute)

	orch := New([]ports.CacheTier{tier1, tier2}, WithLogger(quietLogger()))

	var originCalls atomic.Int64
	val, err := orch.GetOrCompute(context.Background(), "status", "demo", time.Minute, origin("fresh", &originCalls))
	require.NoError(t, err)
	assert.Equal(t, []byte("warm"), val)
	assert.Zero(t, originCalls.Load(), "origin must not run on a tier 1 hit")
	assert.Zero(t, tier2.gets.Load(), "tier 2 must not be consulted on a tier 1 hit")
}

func TestTierTwoHitSkipsOrigin(t *testing.T) {
	tier1 := newCountingTier("config")
	tier2 := newCountingTier("regional")
	tier2.TrySet(context.Background(), "status:demo", []byte("regional"), time.Minute)

	orch := New([]ports.CacheTier{tier1, tier2}, WithLogger(quietLogger()))

	var originCalls atomic.Int64
	val, err := orch.GetOrCompute(context.Background(), "status", "demo", time.Minute, origin("fresh", &originCalls))
	require.NoError(t, err)
	assert.Equal(t, []byte("regional"), val)
	assert.Zero(t, originCalls.Load())
}

func TestFullMissComputesOnceAndWritesThrough(t *testing.T) {
	tier2 := newCountingTier("regional")
	orch := New([]ports.CacheTier{NewConfigTier(nil), tier2}, WithLogger(quietLogger()))

	var originCalls atomic.Int64
	val, err := orch.GetOrCompute(context.Background(), "status", "demo", time.Minute, origin("fresh", &originCalls))
	require.NoError(t, err)
	assert.Equal(t, []byte("fresh"), val)
	assert.Equal(t, int64(1), originCalls.Load())

	// Write-through is asynchronous; wait for tier 2 to fill, then verify the
	// next read stays off the origin.
	require.Eventually(t, func() bool {
		_, ok := tier2.MemoryTier.TryGet(context.Background(), "status:demo")
		return ok
	}, time.Second, 5*time.Millisecond, "write-through should populate tier 2")

	val, err = orch.GetOrCompute(context.Background(), "status", "demo", time.Minute, origin("fresh", &originCalls))
	require.NoError(t, err)
	assert.Equal(t, []byte("fresh"), val)
	assert.Equal(t, int64(1), originCalls.Load(), "repeated reads within TTL must not hit the origin")
}

func TestBrokenTierDegradesSilently(t *testing.T) {
	orch := New([]ports.CacheTier{brokenTier{}, NewMemoryTier()}, WithLogger(quietLogger()))

	var originCalls atomic.Int64
	val, err := orch.GetOrCompute(context.Background(), "status", "demo", time.Minute, origin("fresh", &originCalls))
	require.NoError(t, err, "a failing tier must not fail the read")
	assert.Equal(t, []byte("fresh"), val)
}

func TestOriginFailureIsFatal(t *testing.T) {
	orch := New([]ports.CacheTier{NewMemoryTier()}, WithLogger(quietLogger()))

	boom := errors.New("ledger unreachable")
	_, err := orch.GetOrCompute(context.Background(), "status", "demo", time.Minute,
		func(context.Context) ([]byte, error) { return nil, boom })
	assert.ErrorIs(t, err, boom)
}

func TestConcurrentMissesShareOneOriginCall(t *testing.T) {
	orch := New([]ports.CacheTier{NewMemoryTier()}, WithLogger(quietLogger()))

	var originCalls atomic.Int64
	slowOrigin := func(context.Context) ([]byte, error) {
		originCalls.Add(1)
		time.Sleep(20 * time.Millisecond)
		return []byte("shared"), nil
	}

	const readers = 25
	var wg sync.WaitGroup
	wg.Add(readers)
	for i := 0; i < readers; i++ {
		go func() {
			defer wg.Done()
			val, err := orch.GetOrCompute(context.Background(), "status", "demo", time.Minute, slowOrigin)
			assert.NoError(t, err)
			assert.Equal(t, []byte("shared"), val)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), originCalls.Load(), "concurrent misses must collapse into one origin load")
}

func TestInvalidateRemovesTierTwoOnly(t *testing.T) {
	ctx := context.Background()
	tier1 := NewConfigTier(func(context.Context) (map[string][]byte, error) {
		return map[string][]byte{"status:demo": []byte("snapshot")}, nil
	})
	require.NoError(t, tier1.Refresh(ctx))
	tier2 := NewMemoryTier()
	tier2.TrySet(ctx, "status:demo", []byte("regional"), time.Minute)

	orch := New([]ports.CacheTier{tier1, tier2}, WithLogger(quietLogger()))
	orch.Invalidate(ctx, "status", "demo")

	_, ok := tier2.TryGet(ctx, "status:demo")
	assert.False(t, ok, "tier 2 entry should be deleted")

	val, ok := tier1.TryGet(ctx, "status:demo")
	assert.True(t, ok, "tier 1 is refresh-driven and keeps its snapshot")
	assert.Equal(t, []byte("snapshot"), val)
}

func TestHealthReportsPerTier(t *testing.T) {
	orch := New([]ports.CacheTier{brokenTier{}, NewMemoryTier()}, WithLogger(quietLogger()))
	health := orch.Health(context.Background())

	assert.Error(t, health["broken"])
	assert.NoError(t, health["memory"])
}
