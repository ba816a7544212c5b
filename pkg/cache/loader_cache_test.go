package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoaderCacheGet(t *testing.T) {
	c, err := NewLoaderCache[string, string](8, func(k string) string { return k })
	require.NoError(t, err)

	var loads atomic.Int32

	load := func(_ context.Context, k string) (string, error) {
		loads.Add(1)

		return "config:" + k, nil
	}

	v, err := c.Get(context.Background(), "treatment-a", load)
	require.NoError(t, err)
	assert.Equal(t, "config:treatment-a", v)

	v, err = c.Get(context.Background(), "treatment-a", load)
	require.NoError(t, err)
	assert.Equal(t, "config:treatment-a", v)
	assert.Equal(t, int32(1), loads.Load(), "second get is a hit")
}

func TestLoaderCacheErrorNotCached(t *testing.T) {
	c, err := NewLoaderCache[string, string](8, func(k string) string { return k })
	require.NoError(t, err)

	boom := errors.New("db down")
	_, err = c.Get(context.Background(), "slug", func(context.Context, string) (string, error) {
		return "", boom
	})
	require.ErrorIs(t, err, boom)

	v, err := c.Get(context.Background(), "slug", func(context.Context, string) (string, error) {
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
}

func TestLoaderCacheCoalescesConcurrentLoads(t *testing.T) {
	c, err := NewLoaderCache[string, string](8, func(k string) string { return k })
	require.NoError(t, err)

	var loads atomic.Int32

	release := make(chan struct{})
	load := func(_ context.Context, k string) (string, error) {
		loads.Add(1)
		<-release

		return k, nil
	}

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			v, err := c.Get(context.Background(), "slug", load)
			assert.NoError(t, err)
			assert.Equal(t, "slug", v)
		}()
	}

	close(release)
	wg.Wait()

	assert.LessOrEqual(t, loads.Load(), int32(2), "concurrent misses coalesce")
}

func TestLoaderCacheInvalidate(t *testing.T) {
	c, err := NewLoaderCache[string, int](8, func(k string) string { return k })
	require.NoError(t, err)

	n := 0
	load := func(context.Context, string) (int, error) {
		n++

		return n, nil
	}

	v, _ := c.Get(context.Background(), "slug", load)
	assert.Equal(t, 1, v)

	c.Invalidate("slug")

	v, _ = c.Get(context.Background(), "slug", load)
	assert.Equal(t, 2, v, "invalidate forces a reload")
}
