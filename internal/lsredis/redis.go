package lsredis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// CaptchaStore implémente base64Captcha.Store au dessus de Redis,
// pour partager les CAPTCHA entre plusieurs instances du site.
type CaptchaStore struct {
	client     *redis.Client
	expiration time.Duration
}

func New(client *redis.Client) *CaptchaStore {
	return &CaptchaStore{
		client:     client,
		expiration: 5 * time.Minute,
	}
}

func (r *CaptchaStore) Set(id string, value string) error {
	ctx := context.Background()
	return r.client.Set(ctx, "captcha:"+id, value, r.expiration).Err()
}

func (r *CaptchaStore) Get(id string, clear bool) string {
	ctx := context.Background()
	key := "captcha:" + id
	val, _ := r.client.Get(ctx, key).Result()
	if clear {
		r.client.Del(ctx, key)
	}
	return val
}

func (r *CaptchaStore) Verify(id, answer string, clear bool) bool {
	v := r.Get(id, clear)
	return v == answer
}
