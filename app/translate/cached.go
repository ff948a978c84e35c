package translate

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"time"
)

// ResultCache is the subset of cache operations the cached translator
// needs. The Redis cache satisfies it.
type ResultCache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

// Cached wraps a translation client with a result cache. Item labels repeat
// across flyers and cycles; a hit skips the translation service entirely.
// Cache failures degrade to a plain service call.
type Cached struct {
	client *Client
	cache  ResultCache
	ttl    time.Duration
}

func NewCached(client *Client, cache ResultCache, ttl time.Duration) *Cached {
	return &Cached{
		client: client,
		cache:  cache,
		ttl:    ttl,
	}
}

func (t *Cached) Translate(ctx context.Context, text, source, target string) (string, error) {
	key := cacheKey(source, target, text)

	if cached, err := t.cache.Get(ctx, key); err != nil {
		slog.Debug("Translation cache lookup failed", "error", err)
	} else if cached != "" {
		return cached, nil
	}

	translated, err := t.client.Translate(ctx, text, source, target)
	if err != nil {
		return "", err
	}

	if err := t.cache.Set(ctx, key, translated, t.ttl); err != nil {
		slog.Debug("Translation cache store failed", "error", err)
	}

	return translated, nil
}

func cacheKey(source, target, text string) string {
	hash := sha256.Sum256([]byte(source + ":" + target + ":" + text))
	return fmt.Sprintf("translation:%x", hash[:8])
}
