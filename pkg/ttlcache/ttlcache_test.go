package ttlcache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetCachesValue(t *testing.T) {
	c := New[string](time.Minute)
	var calls int32

	loader := func(ctx context.Context) (string, error) {
		atomic.AddInt32(&calls, 1)
		return "v1", nil
	}

	v, err := c.Get(context.Background(), "k", loader)
	require.NoError(t, err)
	assert.Equal(t, "v1", v)

	v, err = c.Get(context.Background(), "k", loader)
	require.NoError(t, err)
	assert.Equal(t, "v1", v)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestTTLExpiry(t *testing.T) {
	now := time.Date(2025, 1, 2, 9, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	advance := func(d time.Duration) {
		mu.Lock()
		now = now.Add(d)
		mu.Unlock()
	}

	c := New[int](60*time.Second, WithClock[int](clock))
	var calls int32
	loader := func(ctx context.Context) (int, error) {
		return int(atomic.AddInt32(&calls, 1)), nil
	}

	v, err := c.Get(context.Background(), "k", loader)
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	// 59 秒后仍在 TTL 内，不回源
	advance(59 * time.Second)
	v, err = c.Get(context.Background(), "k", loader)
	require.NoError(t, err)
	assert.Equal(t, 1, v)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	// 61 秒后过期，触发一次新的回源
	advance(2 * time.Second)
	v, err = c.Get(context.Background(), "k", loader)
	require.NoError(t, err)
	assert.Equal(t, 2, v)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestConcurrentGetCoalesces(t *testing.T) {
	c := New[string](time.Minute)
	var calls int32
	release := make(chan struct{})

	loader := func(ctx context.Context) (string, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return "shared", nil
	}

	const n = 20
	var wg sync.WaitGroup
	results := make([]string, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = c.Get(context.Background(), "cold", loader)
		}(i)
	}

	// 等待所有 goroutine 阻塞在同一次回源上
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, "shared", results[i])
	}
}

func TestErrorNotCached(t *testing.T) {
	c := New[string](time.Minute)
	var calls int32
	boom := errors.New("upstream down")

	loader := func(ctx context.Context) (string, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			return "", boom
		}
		return "ok", nil
	}

	_, err := c.Get(context.Background(), "k", loader)
	require.ErrorIs(t, err, boom)

	v, err := c.Get(context.Background(), "k", loader)
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestHitMissHooks(t *testing.T) {
	var hits, misses int32
	c := New[string](time.Minute, WithHitMissHooks[string](
		func() { atomic.AddInt32(&hits, 1) },
		func() { atomic.AddInt32(&misses, 1) },
	))

	loader := func(ctx context.Context) (string, error) { return "v", nil }

	_, _ = c.Get(context.Background(), "k", loader)
	_, _ = c.Get(context.Background(), "k", loader)

	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
	assert.Equal(t, int32(1), atomic.LoadInt32(&misses))
}
