package data

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const tokenPrefix = "swapboard:payload:"

// MustRedis connects or exits.
func MustRedis(url string) *redis.Client {
	opt, err := redis.ParseURL(url)
	if err != nil {
		log.Fatalf("redis: %v", err)
	}
	return redis.NewClient(opt)
}

// TokenStore hands out opaque tokens for interaction payloads. A component
// custom-id carries only the token; the payload itself lives in redis with
// a short TTL, so nothing user-controlled is ever parsed out of the id.
type TokenStore struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewTokenStore creates a store with the given payload lifetime.
func NewTokenStore(rdb *redis.Client, ttl time.Duration) *TokenStore {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &TokenStore{rdb: rdb, ttl: ttl}
}

// Put stores the payload and returns its token.
func (t *TokenStore) Put(ctx context.Context, payload any) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	token := uuid.New().String()
	if err := t.rdb.Set(ctx, tokenPrefix+token, raw, t.ttl).Err(); err != nil {
		return "", err
	}
	return token, nil
}

// Take resolves a token into payload and deletes it. Expired or unknown
// tokens return redis.Nil.
func (t *TokenStore) Take(ctx context.Context, token string, payload any) error {
	raw, err := t.rdb.GetDel(ctx, tokenPrefix+token).Result()
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(raw), payload)
}
