package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	manifestKeyPrefix = "silverline:manifest:"
	datasetsKey       = "silverline:datasets"
)

// RedisStore implements Store using Redis. It lets the catalog service
// read manifests committed by separate refiner runs.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	mu     sync.RWMutex
}

// NewRedisStore creates a new Redis-backed store.
//
// Parameters:
//   - addr: Redis server address (e.g., "localhost:6379")
//   - password: Redis password (empty string for no auth)
//   - db: Redis database number (typically 0)
//   - ttl: Manifest expiration (0 keeps manifests until overwritten)
//
// Returns an error if the connection to Redis fails or if parameters are invalid.
func NewRedisStore(addr, password string, db int, ttl time.Duration) (*RedisStore, error) {
	if addr == "" {
		return nil, errors.New("redis address cannot be empty")
	}
	if db < 0 {
		return nil, errors.New("redis database number must be >= 0")
	}
	if ttl < 0 {
		return nil, errors.New("redis ttl must be >= 0")
	}

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}

	return &RedisStore{
		client: client,
		ttl:    ttl,
	}, nil
}

// Put stores a manifest under "silverline:manifest:{dataset}" and records
// the dataset name in the "silverline:datasets" set.
func (r *RedisStore) Put(ctx context.Context, m Manifest) error {
	if err := validDataset(m.Dataset); err != nil {
		return err
	}

	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, manifestKeyPrefix+m.Dataset, data, r.ttl)
		pipe.SAdd(ctx, datasetsKey, m.Dataset)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to store manifest in redis: %w", err)
	}
	return nil
}

// GetLatest retrieves the manifest for a dataset.
//
// Returns:
//   - manifest: the stored manifest (zero value if not found)
//   - found: true if a manifest exists, false if not found
//   - error: non-nil if an error occurred (excluding "not found")
func (r *RedisStore) GetLatest(ctx context.Context, dataset string) (Manifest, bool, error) {
	if err := validDataset(dataset); err != nil {
		return Manifest{}, false, err
	}

	data, err := r.client.Get(ctx, manifestKeyPrefix+dataset).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			// an expired manifest leaves its name behind in the set
			if err := r.client.SRem(ctx, datasetsKey, dataset).Err(); err != nil {
				return Manifest{}, false, fmt.Errorf("failed to prune dataset: %w", err)
			}
			return Manifest{}, false, nil
		}
		return Manifest{}, false, fmt.Errorf("failed to get manifest from redis: %w", err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return Manifest{}, false, fmt.Errorf("failed to unmarshal manifest: %w", err)
	}
	return m, true, nil
}

// Datasets returns the names of datasets with a live manifest in sorted
// order. Names whose manifest expired are removed from the set.
func (r *RedisStore) Datasets(ctx context.Context) ([]string, error) {
	names, err := r.client.SMembers(ctx, datasetsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list datasets: %w", err)
	}
	if len(names) == 0 {
		return names, nil
	}

	exists := make([]*redis.IntCmd, len(names))
	_, err = r.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, name := range names {
			exists[i] = pipe.Exists(ctx, manifestKeyPrefix+name)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to check manifests: %w", err)
	}

	live := make([]string, 0, len(names))
	var expired []any
	for i, name := range names {
		if exists[i].Val() > 0 {
			live = append(live, name)
		} else {
			expired = append(expired, name)
		}
	}
	if len(expired) > 0 {
		if err := r.client.SRem(ctx, datasetsKey, expired...).Err(); err != nil {
			return nil, fmt.Errorf("failed to prune datasets: %w", err)
		}
	}

	slices.Sort(live)
	return live, nil
}

// Close closes the Redis client connection.
// It is safe to call multiple times.
func (r *RedisStore) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.client == nil {
		return nil
	}

	err := r.client.Close()
	r.client = nil
	if errors.Is(err, redis.ErrClosed) {
		return nil
	}
	return err
}

// Ping checks the Redis connection health.
func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
