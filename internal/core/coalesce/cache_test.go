package coalesce_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DanielPopoola/checkout-sessions/internal/core/coalesce"
)

func TestCache_ConcurrentCallersShareOneFetch(t *testing.T) {
	release := make(chan struct{})
	var calls atomic.Int32
	cache := coalesce.New(func(ctx context.Context, key string) (string, error) {
		calls.Add(1)
		<-release
		return "pk-" + key, nil
	})

	const callers = 50
	var wg sync.WaitGroup
	results := make([]string, callers)
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := cache.Get(context.Background(), "client")
			assert.NoError(t, err)
			results[i] = v
		}()
	}

	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, 1, cache.Fetches())
	for _, v := range results {
		assert.Equal(t, "pk-client", v)
	}
}

func TestCache_KeysAreIndependent(t *testing.T) {
	cache := coalesce.New(func(ctx context.Context, key string) (int, error) {
		return len(key), nil
	})

	a, err := cache.Get(context.Background(), "a")
	require.NoError(t, err)
	abc, err := cache.Get(context.Background(), "abc")
	require.NoError(t, err)

	assert.Equal(t, 1, a)
	assert.Equal(t, 3, abc)
	assert.Equal(t, 2, cache.Fetches())
}

func TestCache_FailuresAreNotCached(t *testing.T) {
	boom := errors.New("boom")
	var calls atomic.Int32
	cache := coalesce.New(func(ctx context.Context, key string) (string, error) {
		if calls.Add(1) == 1 {
			return "", boom
		}
		return "pk", nil
	})

	_, err := cache.Get(context.Background(), "client")
	assert.ErrorIs(t, err, boom)

	v, err := cache.Get(context.Background(), "client")
	require.NoError(t, err)
	assert.Equal(t, "pk", v)

	v, err = cache.Get(context.Background(), "client")
	require.NoError(t, err)
	assert.Equal(t, "pk", v)
	assert.Equal(t, 2, cache.Fetches())
}

func TestCache_AbandonedCallDoesNotCancelFetch(t *testing.T) {
	release := make(chan struct{})
	cache := coalesce.New(func(ctx context.Context, key string) (string, error) {
		<-release
		if err := ctx.Err(); err != nil {
			return "", err
		}
		return "pk", nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	errs := make(chan error, 1)
	go func() {
		_, err := cache.Get(ctx, "client")
		errs <- err
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-errs, context.Canceled)

	close(release)
	require.Eventually(t, func() bool {
		v, err := cache.Get(context.Background(), "client")
		return err == nil && v == "pk"
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, cache.Fetches())
}

func TestCache_TTL(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	var calls atomic.Int32
	cache := coalesce.New(
		func(ctx context.Context, key string) (int32, error) {
			return calls.Add(1), nil
		},
		coalesce.WithTTL[int32](time.Minute),
		coalesce.WithClock[int32](func() time.Time { return now }),
	)

	v, _ := cache.Get(context.Background(), "k")
	assert.Equal(t, int32(1), v)

	now = now.Add(59 * time.Second)
	v, _ = cache.Get(context.Background(), "k")
	assert.Equal(t, int32(1), v)

	now = now.Add(time.Second)
	v, _ = cache.Get(context.Background(), "k")
	assert.Equal(t, int32(2), v)
}

func TestCache_InvalidateAndPurge(t *testing.T) {
	var calls atomic.Int32
	cache := coalesce.New(func(ctx context.Context, key string) (int32, error) {
		return calls.Add(1), nil
	})

	_, _ = cache.Get(context.Background(), "a")
	_, _ = cache.Get(context.Background(), "b")
	require.Equal(t, 2, cache.Fetches())

	cache.Invalidate("a")
	_, _ = cache.Get(context.Background(), "a")
	_, _ = cache.Get(context.Background(), "b")
	assert.Equal(t, 3, cache.Fetches())

	cache.Purge()
	_, _ = cache.Get(context.Background(), "a")
	_, _ = cache.Get(context.Background(), "b")
	assert.Equal(t, 5, cache.Fetches())
}

func TestCache_FetchCallback(t *testing.T) {
	cache := coalesce.New(func(ctx context.Context, key string) (string, error) {
		return "pk", nil
	})

	done := make(chan string, 1)
	cache.Fetch(context.Background(), "client", func(v string, err error) {
		assert.NoError(t, err)
		done <- v
	})

	select {
	case v := <-done:
		assert.Equal(t, "pk", v)
	case <-time.After(time.Second):
		t.Fatal("completion was not called")
	}
}
