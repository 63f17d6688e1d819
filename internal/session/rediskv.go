package session

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	redisTokenKey  = "docuscan:access_token"
	redisExpiryKey = "docuscan:token_expiry"
)

// RedisKV stores the credential in Redis under two keys, for setups
// where several workstations share one login (kiosk deployments).
type RedisKV struct {
	Client *redis.Client
}

// NewRedisKV connects to redis with short timeouts.
func NewRedisKV(addr string) *RedisKV {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  1 * time.Second,
		WriteTimeout: 1 * time.Second,
	})
	return &RedisKV{Client: client}
}

// Put writes both keys in a single MSET.
func (r *RedisKV) Put(ctx context.Context, cred Credential) error {
	err := r.Client.MSet(ctx,
		redisTokenKey, cred.Token,
		redisExpiryKey, strconv.FormatInt(cred.ExpiresAt.UnixMilli(), 10),
	).Err()
	if err != nil {
		return fmt.Errorf("session: redis put: %w", err)
	}
	return nil
}

// Get reads both keys in a single MGET.
func (r *RedisKV) Get(ctx context.Context) (Credential, bool, error) {
	vals, err := r.Client.MGet(ctx, redisTokenKey, redisExpiryKey).Result()
	if err != nil {
		return Credential{}, false, fmt.Errorf("session: redis get: %w", err)
	}
	token, _ := vals[0].(string)
	if token == "" {
		return Credential{}, false, nil
	}
	cred := Credential{Token: token}
	if raw, ok := vals[1].(string); ok {
		if ms, err := strconv.ParseInt(raw, 10, 64); err == nil && ms > 0 {
			cred.ExpiresAt = time.UnixMilli(ms)
		}
	}
	return cred, true, nil
}

// Clear deletes both keys together.
func (r *RedisKV) Clear(ctx context.Context) error {
	if err := r.Client.Del(ctx, redisTokenKey, redisExpiryKey).Err(); err != nil {
		return fmt.Errorf("session: redis clear: %w", err)
	}
	return nil
}
