package infra

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tnqbao/gau-media-service/config"
)

var ErrCacheMiss = errors.New("key not found in cache")

// versionTTL must outlive any read that started before an invalidation.
const versionTTL = time.Hour

// KEYS[1] value key, KEYS[2] version key; ARGV version, payload, ttl ms.
var setIfVersionScript = redis.NewScript(`
local current = redis.call("GET", KEYS[2])
if not current then
	current = "0"
end
if current ~= ARGV[1] then
	return 0
end
redis.call("SET", KEYS[1], ARGV[2], "PX", ARGV[3])
return 1
`)

var deleteIfValueScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type RedisClient struct {
	Client *redis.Client
}

func InitRedisClient(cfg *config.EnvConfig) *RedisClient {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.RedisHost + ":" + cfg.Redis.RedisPort,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.Database,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		panic(fmt.Sprintf("Redis connection failed: %v", err))
	}

	return NewRedisClient(client)
}

func NewRedisClient(client *redis.Client) *RedisClient {
	return &RedisClient{Client: client}
}

// Get decodes the cached JSON into dest, or returns ErrCacheMiss.
func (r *RedisClient) Get(ctx context.Context, key string, dest any) error {
	data, err := r.Client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrCacheMiss
		}
		return err
	}
	return json.Unmarshal(data, dest)
}

// Version returns the invalidation counter stored at versionKey, 0 when unset.
func (r *RedisClient) Version(ctx context.Context, versionKey string) (int64, error) {
	version, err := r.Client.Get(ctx, versionKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return version, err
}

// SetIfVersion writes value only while versionKey still holds version, so a
// read that raced an invalidation never repopulates the key.
func (r *RedisClient) SetIfVersion(ctx context.Context, key, versionKey string, version int64, value any, expiration time.Duration) (bool, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return false, err
	}
	if expiration <= 0 {
		return false, fmt.Errorf("cache expiration must be positive, got %s", expiration)
	}
	written, err := setIfVersionScript.Run(ctx, r.Client,
		[]string{key, versionKey},
		strconv.FormatInt(version, 10), data, expiration.Milliseconds(),
	).Int()
	if err != nil {
		return false, err
	}
	return written == 1, nil
}

// Invalidate bumps the version counter and drops the cached value.
func (r *RedisClient) Invalidate(ctx context.Context, key, versionKey string) error {
	_, err := r.Client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, versionKey)
		pipe.Expire(ctx, versionKey, versionTTL)
		pipe.Del(ctx, key)
		return nil
	})
	return err
}

func (r *RedisClient) SetNX(ctx context.Context, key string, value any, expiration time.Duration) (bool, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return false, err
	}
	return r.Client.SetNX(ctx, key, data, expiration).Result()
}

// DeleteIfValue removes key only while it still holds value.
func (r *RedisClient) DeleteIfValue(ctx context.Context, key string, value any) (bool, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return false, err
	}
	deleted, err := deleteIfValueScript.Run(ctx, r.Client, []string{key}, data).Int()
	if err != nil {
		return false, err
	}
	return deleted == 1, nil
}

func (r *RedisClient) Close() error {
	return r.Client.Close()
}
