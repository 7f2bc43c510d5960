package cache

import (
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/BaSui01/companion/config"
)

// =============================================================================
// 🧪 Manager 测试
// =============================================================================

type snapshot struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *Manager) {
	t.Helper()
	mr := miniredis.RunT(t)

	manager, err := NewManager(Config{
		Addr:       mr.Addr(),
		KeyPrefix:  "test:",
		DefaultTTL: time.Minute,
	}, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = manager.Close() })

	return mr, manager
}

func TestNewManager_ConnectFailure(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewManager(Config{Addr: addr, DialTimeout: time.Second}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), addr)
}

func TestFromRedisConfig(t *testing.T) {
	c := FromRedisConfig(config.RedisConfig{Addr: "redis:6379", DB: 2, TLS: true}, 3*time.Minute)
	assert.Equal(t, "redis:6379", c.Addr)
	assert.Equal(t, 2, c.DB)
	assert.True(t, c.TLS)
	assert.Equal(t, 3*time.Minute, c.DefaultTTL)
	assert.Equal(t, "companion:", c.KeyPrefix)
	assert.Equal(t, 10, c.PoolSize)

	c = FromRedisConfig(config.RedisConfig{KeyPrefix: "x:", PoolSize: 4}, 0)
	assert.Equal(t, "x:", c.KeyPrefix)
	assert.Equal(t, 4, c.PoolSize)
	assert.Equal(t, 10*time.Minute, c.DefaultTTL)
}

func TestManager_StoreAndLoad(t *testing.T) {
	mr, manager := setupTestRedis(t)
	ctx := t.Context()

	want := []snapshot{{ID: "week1_day0", Text: "Hi"}}
	require.NoError(t, manager.Store(ctx, "entries", want, 0))

	var got []snapshot
	require.NoError(t, manager.Load(ctx, "entries", &got))
	assert.Equal(t, want, got)

	// 前缀写入 Redis，默认 TTL 生效
	assert.True(t, mr.Exists("test:entries"))
	assert.Equal(t, time.Minute, mr.TTL("test:entries"))
}

func TestManager_LoadMiss(t *testing.T) {
	_, manager := setupTestRedis(t)

	var got []snapshot
	err := manager.Load(t.Context(), "missing", &got)
	assert.True(t, IsCacheMiss(err))
	assert.Nil(t, got)
}

func TestManager_LoadCorrupt(t *testing.T) {
	mr, manager := setupTestRedis(t)
	require.NoError(t, mr.Set("test:broken", "{not json"))

	var dest map[string]string
	err := manager.Load(t.Context(), "broken", &dest)
	require.Error(t, err)
	assert.False(t, IsCacheMiss(err))
}

func TestManager_StoreUnencodable(t *testing.T) {
	_, manager := setupTestRedis(t)
	assert.Error(t, manager.Store(t.Context(), "bad", make(chan int), 0))
}

func TestManager_Invalidate(t *testing.T) {
	mr, manager := setupTestRedis(t)
	ctx := t.Context()

	require.NoError(t, manager.Store(ctx, "a", 1, 0))
	require.NoError(t, manager.Store(ctx, "b", 2, 0))
	require.NoError(t, manager.Invalidate(ctx, "a", "b", "never-set"))
	require.NoError(t, manager.Invalidate(ctx))

	assert.False(t, mr.Exists("test:a"))
	assert.False(t, mr.Exists("test:b"))
}

func TestManager_TTL(t *testing.T) {
	mr, manager := setupTestRedis(t)
	ctx := t.Context()

	require.NoError(t, manager.Store(ctx, "short", "v", time.Second))
	mr.FastForward(2 * time.Second)

	var v string
	assert.True(t, IsCacheMiss(manager.Load(ctx, "short", &v)))
}

func TestManager_Closed(t *testing.T) {
	_, manager := setupTestRedis(t)
	ctx := t.Context()

	require.NoError(t, manager.Close())
	require.NoError(t, manager.Close())

	var v string
	assert.ErrorIs(t, manager.Load(ctx, "k", &v), ErrClosed)
	assert.ErrorIs(t, manager.Store(ctx, "k", "v", 0), ErrClosed)
	assert.ErrorIs(t, manager.Invalidate(ctx, "k"), ErrClosed)
	assert.ErrorIs(t, manager.Ping(ctx), ErrClosed)
	assert.False(t, manager.Healthy())
}

func TestManager_ProbeTracksReachability(t *testing.T) {
	mr := miniredis.RunT(t)
	manager, err := NewManager(Config{
		Addr:                mr.Addr(),
		DialTimeout:         100 * time.Millisecond,
		HealthCheckInterval: 5 * time.Millisecond,
	}, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = manager.Close() })
	require.True(t, manager.Healthy())

	mr.Close()
	assert.Eventually(t, func() bool { return !manager.Healthy() }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, mr.Restart())
	assert.Eventually(t, manager.Healthy, 2*time.Second, 5*time.Millisecond)
}

func TestManager_ConcurrentOperations(t *testing.T) {
	_, manager := setupTestRedis(t)
	ctx := t.Context()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, manager.Store(ctx, "shared", snapshot{ID: "x"}, 0))
			var got snapshot
			assert.NoError(t, manager.Load(ctx, "shared", &got))
		}()
	}
	wg.Wait()
}
