package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/BaSui01/companion/config"
	"github.com/BaSui01/companion/internal/tlsutil"
)

var (
	// ErrCacheMiss 缓存未命中
	ErrCacheMiss = errors.New("cache miss")

	// ErrClosed is returned by every operation after Close.
	ErrClosed = errors.New("cache manager is closed")
)

// IsCacheMiss 判断是否为缓存未命中错误
func IsCacheMiss(err error) bool {
	return errors.Is(err, ErrCacheMiss)
}

// =============================================================================
// 💾 快照缓存
// =============================================================================

// Config 缓存配置
type Config struct {
	Addr         string
	Password     string
	DB           int
	KeyPrefix    string
	DefaultTTL   time.Duration
	MaxRetries   int
	PoolSize     int
	MinIdleConns int
	TLS          bool

	// DialTimeout bounds the initial ping and every health probe.
	DialTimeout time.Duration

	// 健康检查间隔，0 表示关闭
	HealthCheckInterval time.Duration
}

// DefaultConfig 返回默认缓存配置
func DefaultConfig() Config {
	return Config{
		Addr:                "localhost:6379",
		KeyPrefix:           "companion:",
		DefaultTTL:          10 * time.Minute,
		MaxRetries:          3,
		PoolSize:            10,
		MinIdleConns:        2,
		DialTimeout:         5 * time.Second,
		HealthCheckInterval: 30 * time.Second,
	}
}

// FromRedisConfig overlays the redis section of the application config on
// DefaultConfig. ttl is the catalog snapshot lifetime.
func FromRedisConfig(rc config.RedisConfig, ttl time.Duration) Config {
	c := DefaultConfig()
	c.Addr = rc.Addr
	c.Password = rc.Password
	c.DB = rc.DB
	c.TLS = rc.TLS
	c.MinIdleConns = rc.MinIdleConns
	if rc.KeyPrefix != "" {
		c.KeyPrefix = rc.KeyPrefix
	}
	if rc.PoolSize > 0 {
		c.PoolSize = rc.PoolSize
	}
	if ttl > 0 {
		c.DefaultTTL = ttl
	}
	return c
}

// Manager stores JSON snapshots in Redis under a key prefix. A background
// probe keeps Healthy current so callers can skip an unreachable cache
// instead of paying a timeout per request.
type Manager struct {
	client  *redis.Client
	cfg     Config
	logger  *zap.Logger
	healthy atomic.Bool

	mu     sync.RWMutex
	closed bool
	stop   chan struct{}
	done   chan struct{}
}

// NewManager connects to Redis and verifies the connection with a ping.
func NewManager(cfg Config, logger *zap.Logger) (*Manager, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 5 * time.Second
	}
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		MaxRetries:   cfg.MaxRetries,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		TLSConfig:    tlsutil.RedisConfig(cfg.TLS),
	})

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect redis %s: %w", cfg.Addr, err)
	}

	m := &Manager{
		client: client,
		cfg:    cfg,
		logger: logger.With(zap.String("component", "cache")),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	m.healthy.Store(true)

	if cfg.HealthCheckInterval > 0 {
		go m.probeLoop()
	} else {
		close(m.done)
	}

	m.logger.Info("cache connected",
		zap.String("addr", cfg.Addr),
		zap.String("prefix", cfg.KeyPrefix),
		zap.Duration("ttl", cfg.DefaultTTL),
		zap.Bool("tls", cfg.TLS),
	)
	return m, nil
}

func (m *Manager) key(k string) string {
	return m.cfg.KeyPrefix + k
}

// Healthy reports the result of the last probe.
func (m *Manager) Healthy() bool {
	return m.healthy.Load()
}

// Load decodes the snapshot stored under key into dest. ErrCacheMiss when
// absent.
func (m *Manager) Load(ctx context.Context, key string, dest any) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return ErrClosed
	}

	data, err := m.client.Get(ctx, m.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrCacheMiss
	}
	if err != nil {
		return fmt.Errorf("cache load %s: %w", key, err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("cache decode %s: %w", key, err)
	}
	return nil
}

// Store writes value as JSON under key. A zero ttl uses DefaultTTL.
func (m *Manager) Store(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache encode %s: %w", key, err)
	}
	if ttl <= 0 {
		ttl = m.cfg.DefaultTTL
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return ErrClosed
	}
	if err := m.client.Set(ctx, m.key(key), data, ttl).Err(); err != nil {
		return fmt.Errorf("cache store %s: %w", key, err)
	}
	return nil
}

// Invalidate removes keys. Missing keys are not an error.
func (m *Manager) Invalidate(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	prefixed := make([]string, len(keys))
	for i, k := range keys {
		prefixed[i] = m.key(k)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return ErrClosed
	}
	if err := m.client.Del(ctx, prefixed...).Err(); err != nil {
		return fmt.Errorf("cache invalidate: %w", err)
	}
	return nil
}

// Ping checks the Redis connection.
func (m *Manager) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return ErrClosed
	}
	return m.client.Ping(ctx).Err()
}

// Close stops the probe and releases the connection pool.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	close(m.stop)
	m.mu.Unlock()

	<-m.done
	m.healthy.Store(false)
	return m.client.Close()
}

// =============================================================================
// 🏥 健康探测
// =============================================================================

func (m *Manager) probeLoop() {
	defer close(m.done)
	ticker := time.NewTicker(m.cfg.HealthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.probe()
		}
	}
}

func (m *Manager) probe() {
	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.DialTimeout)
	defer cancel()

	err := m.Ping(ctx)
	if errors.Is(err, ErrClosed) {
		return
	}
	ok := err == nil
	// 只在状态翻转时记录
	if was := m.healthy.Swap(ok); was != ok {
		if ok {
			m.logger.Info("cache reachable again")
		} else {
			m.logger.Warn("cache unreachable, bypassing", zap.Error(err))
		}
	}
}
