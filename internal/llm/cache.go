package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	lru "github.com/hashicorp/golang-lru/v2"
)

// WithCache memoizes successful responses in an LRU keyed by
// (stage, prompt hash). Re-running a pipeline over the same document
// then skips the already-answered stages. Errors are never cached.
func WithCache(size int) Middleware {
	if size <= 0 {
		size = 128
	}
	return func(next Client) Client {
		cache, err := lru.New[string, string](size)
		if err != nil {
			// Only reachable with size <= 0, which is normalized above.
			return next
		}
		return &cached{next: next, cache: cache}
	}
}

type cached struct {
	next  Client
	cache *lru.Cache[string, string]
}

func (c *cached) Name() string { return c.next.Name() }
func (c *cached) Close() error { return c.next.Close() }
func (c *cached) Generate(ctx context.Context, prompt string) (string, error) {
	key := cacheKey(StageFrom(ctx), prompt)
	if resp, ok := c.cache.Get(key); ok {
		return resp, nil
	}
	resp, err := c.next.Generate(ctx, prompt)
	if err != nil {
		return "", err
	}
	c.cache.Add(key, resp)
	return resp, nil
}

func cacheKey(stage, prompt string) string {
	sum := sha256.Sum256([]byte(prompt))
	return stage + ":" + hex.EncodeToString(sum[:])
}
