package store

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisKV keeps blobs in Redis under "<namespace>:<key>".
// Durability is whatever the server's persistence settings give.
type RedisKV struct {
	client    *redis.Client
	namespace string
	timeout   time.Duration
}

// RedisConfig holds connection settings for RedisKV.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisKV connects to Redis and checks the connection.
func NewRedisKV(cfg RedisConfig, namespace string) (*RedisKV, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	kv := NewRedisKVFromClient(client, namespace)

	ctx, cancel := kv.ctx()
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, storeErr("open", "", err)
	}
	return kv, nil
}

// NewRedisKVFromClient wraps an existing client.
func NewRedisKVFromClient(client *redis.Client, namespace string) *RedisKV {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return &RedisKV{client: client, namespace: namespace, timeout: 2 * time.Second}
}

func (r *RedisKV) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), r.timeout)
}

func (r *RedisKV) key(k string) string {
	return r.namespace + ":" + k
}

// Get reads the blob for key.
func (r *RedisKV) Get(key string) ([]byte, error) {
	ctx, cancel := r.ctx()
	defer cancel()

	data, err := r.client.Get(ctx, r.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, storeErr("get", key, err)
	}
	return data, nil
}

// Set replaces the blob for key. A single SET is atomic on the server.
func (r *RedisKV) Set(key string, blob []byte) error {
	ctx, cancel := r.ctx()
	defer cancel()

	if err := r.client.Set(ctx, r.key(key), blob, 0).Err(); err != nil {
		return storeErr("set", key, err)
	}
	return nil
}

// Erase removes key.
func (r *RedisKV) Erase(key string) error {
	ctx, cancel := r.ctx()
	defer cancel()

	if err := r.client.Del(ctx, r.key(key)).Err(); err != nil {
		return storeErr("erase", key, err)
	}
	return nil
}

// EraseAll deletes every key under the namespace prefix.
func (r *RedisKV) EraseAll() error {
	ctx, cancel := r.ctx()
	defer cancel()

	var keys []string
	iter := r.client.Scan(ctx, 0, r.namespace+":*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return storeErr("erase all", "", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return storeErr("erase all", "", err)
	}
	return nil
}

// Close disconnects from Redis.
func (r *RedisKV) Close() error {
	return r.client.Close()
}
