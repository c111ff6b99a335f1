package dedup

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/itsneelabh/sdkguard/core"
)

// RedisSeenSet shares reported error names through Redis.
// Each name is one key, {prefix}{namespace}:{name}, claimed with SETNX so that
// exactly one process wins the right to report it.
//
// Redis failures never block reporting: the set falls back to its local
// memory and the caller gets the Redis error alongside the local answer.
type RedisSeenSet struct {
	client    *redis.Client
	prefix    string
	namespace string
	ttl       time.Duration
	local     *MemorySeenSet
	logger    core.Logger

	// Stats (atomic for thread-safety)
	claimed     int64
	suppressed  int64
	redisErrors int64
}

// RedisOption customizes a RedisSeenSet.
type RedisOption func(*RedisSeenSet)

// WithPrefix sets the key prefix. Default is core.DefaultDedupPrefix.
func WithPrefix(prefix string) RedisOption {
	return func(r *RedisSeenSet) { r.prefix = prefix }
}

// WithNamespace separates deployments that share one Redis.
func WithNamespace(namespace string) RedisOption {
	return func(r *RedisSeenSet) { r.namespace = namespace }
}

// WithTTL expires claimed names, letting an error be reported again later.
// Zero (the default) keeps names forever.
func WithTTL(ttl time.Duration) RedisOption {
	return func(r *RedisSeenSet) { r.ttl = ttl }
}

// WithLogger sets the logger used for degraded-mode warnings.
func WithLogger(logger core.Logger) RedisOption {
	return func(r *RedisSeenSet) { r.logger = core.ComponentLogger(logger, "sdkguard/dedup") }
}

// NewRedisSeenSet wraps an existing client.
func NewRedisSeenSet(client *redis.Client, opts ...RedisOption) *RedisSeenSet {
	r := &RedisSeenSet{
		client: client,
		prefix: core.DefaultDedupPrefix,
		local:  NewMemorySeenSet(),
		logger: &core.NoOpLogger{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NewRedisClient parses redisURL and checks the connection.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	if redisURL == "" {
		return nil, fmt.Errorf("redis URL is required: %w", core.ErrInvalidConfiguration)
	}
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid Redis URL: %w", core.ErrInvalidConfiguration)
	}
	client := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %v: %w", err, core.ErrConnectionFailed)
	}
	return client, nil
}

func (r *RedisSeenSet) key(name string) string {
	if r.namespace == "" {
		return r.prefix + name
	}
	return fmt.Sprintf("%s%s:%s", r.prefix, r.namespace, name)
}

// MarkSeen claims name. Names this process already saw are answered locally
// without a round trip.
func (r *RedisSeenSet) MarkSeen(ctx context.Context, name string) (bool, error) {
	if !r.local.add(name) {
		atomic.AddInt64(&r.suppressed, 1)
		return false, nil
	}

	claimed, err := r.client.SetNX(ctx, r.key(name), time.Now().Unix(), r.ttl).Result()
	if err != nil {
		// Redis error - degrade to the local answer
		atomic.AddInt64(&r.redisErrors, 1)
		r.logger.Warn("Redis dedup unavailable, using local set", map[string]interface{}{
			"error":      err.Error(),
			"error_type": fmt.Sprintf("%T", err),
			"exception":  name,
		})
		atomic.AddInt64(&r.claimed, 1)
		return true, fmt.Errorf("redis SETNX %s: %w", name, err)
	}

	if !claimed {
		atomic.AddInt64(&r.suppressed, 1)
		r.logger.Debug("Error already reported by another process", map[string]interface{}{
			"exception": name,
		})
		return false, nil
	}

	atomic.AddInt64(&r.claimed, 1)
	return true, nil
}

// Seen checks the local set, then Redis. Redis errors count as not seen.
func (r *RedisSeenSet) Seen(ctx context.Context, name string) bool {
	if r.local.Seen(ctx, name) {
		return true
	}
	n, err := r.client.Exists(ctx, r.key(name)).Result()
	if err != nil {
		atomic.AddInt64(&r.redisErrors, 1)
		return false
	}
	return n > 0
}

// Len returns how many names this process has observed.
func (r *RedisSeenSet) Len() int {
	return r.local.Len()
}

// Stats returns dedup statistics for monitoring.
func (r *RedisSeenSet) Stats() map[string]interface{} {
	return map[string]interface{}{
		"claimed":      atomic.LoadInt64(&r.claimed),
		"suppressed":   atomic.LoadInt64(&r.suppressed),
		"redis_errors": atomic.LoadInt64(&r.redisErrors),
	}
}

// Close closes the underlying client.
func (r *RedisSeenSet) Close() error {
	return r.client.Close()
}
