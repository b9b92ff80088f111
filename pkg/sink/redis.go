package sink

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vnykmshr/prioflow/pkg/task"
)

// DefaultRedisKey is the list key used when RedisConfig.Key is empty.
const DefaultRedisKey = "prioflow:records"

// RedisClient is the subset of the go-redis API the Redis sink needs.
// *redis.Client and redis.UniversalClient satisfy it.
type RedisClient interface {
	RPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
}

// RedisConfig configures a Redis sink.
type RedisConfig struct {
	Client RedisClient

	// Key is the list that receives rendered records. Within a run, records
	// go to "<Key>:<runID>" and the run id is appended to "<Key>:runs".
	Key string

	// TTL, when positive, is applied to every list the sink writes.
	TTL time.Duration

	// Close is called by the sink's Close, typically the client's Close.
	Close func() error
}

// Redis appends each rendered record to a Redis list with RPUSH.
type Redis struct {
	config RedisConfig

	mu  sync.Mutex
	key string
}

// NewRedis creates a Redis sink.
func NewRedis(config RedisConfig) (*Redis, error) {
	if config.Client == nil {
		return nil, fmt.Errorf("redis sink: client is required")
	}
	if config.Key == "" {
		config.Key = DefaultRedisKey
	}
	return &Redis{config: config, key: config.Key}, nil
}

// BeginRun implements RunScoped.
func (r *Redis) BeginRun(ctx context.Context, _, runID string) error {
	runs := r.config.Key + ":runs"
	if err := r.config.Client.RPush(ctx, runs, runID).Err(); err != nil {
		return fmt.Errorf("rpush %s: %w", runs, err)
	}
	if err := r.expire(ctx, runs); err != nil {
		return err
	}
	r.mu.Lock()
	r.key = r.config.Key + ":" + runID
	r.mu.Unlock()
	return nil
}

// Consume implements Sink.
func (r *Redis) Consume(ctx context.Context, rec task.Record) error {
	key := r.Key()
	if err := r.config.Client.RPush(ctx, key, rec.String()).Err(); err != nil {
		return fmt.Errorf("rpush %s: %w", key, err)
	}
	return r.expire(ctx, key)
}

// Key returns the list currently receiving records.
func (r *Redis) Key() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.key
}

func (r *Redis) expire(ctx context.Context, key string) error {
	if r.config.TTL <= 0 {
		return nil
	}
	if err := r.config.Client.Expire(ctx, key, r.config.TTL).Err(); err != nil {
		return fmt.Errorf("expire %s: %w", key, err)
	}
	return nil
}

// Close implements Sink.
func (r *Redis) Close() error {
	if r.config.Close != nil {
		return r.config.Close()
	}
	return nil
}
