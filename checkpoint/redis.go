package checkpoint

import (
	"context"
	"errors"
	"fmt"

	"github.com/c360studio/taxorank/taxonomy"
	"github.com/redis/go-redis/v9"
)

// RedisStore keeps each snapshot as a string value under "<prefix><id>/<seq>".
type RedisStore struct {
	client *redis.Client
	prefix string
}

var _ Store = (*RedisStore)(nil)

// ConnectRedis parses url, connects and pings the server.
func ConnectRedis(ctx context.Context, url, prefix string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return NewRedisStore(client, prefix), nil
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

// Backend implements Store.
func (r *RedisStore) Backend() string { return BackendRedis }

// Close closes the client.
func (r *RedisStore) Close() error { return r.client.Close() }

// Save takes the next number from the taxonomy's counter, sets the snapshot
// value and appends its location to the history set.
func (r *RedisStore) Save(ctx context.Context, s *taxonomy.Snapshot) (string, error) {
	data, err := encode(s)
	if err != nil {
		return "", err
	}
	seq, err := r.client.Incr(ctx, r.counterKey(s.ID)).Result()
	if err != nil {
		return "", fmt.Errorf("allocate sequence: %w", err)
	}
	key := formatKey(s.ID, seq)
	location := Location{Backend: BackendRedis, Key: key}.String()

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, r.prefix+key, data, 0)
	pipe.ZAdd(ctx, r.historyKey(s.ID), redis.Z{Score: float64(seq), Member: location})
	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("store snapshot: %w", err)
	}
	return location, nil
}

// Load gets the snapshot at a redis:// location.
func (r *RedisStore) Load(ctx context.Context, location string) (*taxonomy.Snapshot, error) {
	loc, err := locate(location, BackendRedis)
	if err != nil {
		return nil, err
	}
	if _, _, err := splitKey(loc.Key); err != nil {
		return nil, err
	}

	data, err := r.client.Get(ctx, r.prefix+loc.Key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%s: %w", location, ErrNotFound)
		}
		return nil, fmt.Errorf("get snapshot: %w", err)
	}
	return decode(data)
}

// Latest returns the location of the newest save of a taxonomy.
func (r *RedisStore) Latest(ctx context.Context, taxonomyID string) (string, error) {
	locs, err := r.client.ZRevRange(ctx, r.historyKey(taxonomyID), 0, 0).Result()
	if err != nil {
		return "", fmt.Errorf("read history: %w", err)
	}
	if len(locs) == 0 {
		return "", fmt.Errorf("%s: %w", taxonomyID, ErrNotFound)
	}
	return locs[0], nil
}

func (r *RedisStore) historyKey(taxonomyID string) string {
	return r.prefix + taxonomyID + ":saves"
}

func (r *RedisStore) counterKey(taxonomyID string) string {
	return r.prefix + taxonomyID + ":seq"
}
