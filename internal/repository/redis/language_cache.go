package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const languageCachePrefix = "player:lang:"

// DefaultLanguageTTL bounds how long a detected subtitle language is kept.
const DefaultLanguageTTL = 30 * 24 * time.Hour

// LanguageCache stores detected subtitle languages keyed by content digest.
type LanguageCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewLanguageCache(client *redis.Client, ttl time.Duration) *LanguageCache {
	if ttl <= 0 {
		ttl = DefaultLanguageTTL
	}
	return &LanguageCache{client: client, ttl: ttl}
}

// Connect parses a redis:// URL and verifies the server answers.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

func (c *LanguageCache) Get(ctx context.Context, key string) (string, bool, error) {
	lang, err := c.client.Get(ctx, languageCachePrefix+key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, err
	}
	return lang, true, nil
}

// Set stores lang under key. An empty language is cached too so undetectable
// content is not analysed again.
func (c *LanguageCache) Set(ctx context.Context, key, lang string) error {
	return c.client.Set(ctx, languageCachePrefix+key, lang, c.ttl).Err()
}

func (c *LanguageCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
