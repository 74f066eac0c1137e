package geocode

import (
	"context"
	"crypto/sha256"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Cache stores geocode results keyed by normalized address hash.
// Non-matches are cached too, so known-bad addresses are not resubmitted.
type Cache interface {
	Get(ctx context.Context, addressHash string) (*Result, bool, error)
	Put(ctx context.Context, addressHash string, result Result) error
}

// CacheKey returns the SHA-256 hex of the normalized address.
func CacheKey(addr AddressInput) string {
	normalized := fmt.Sprintf("%s|%s|%s|%s",
		strings.ToLower(strings.TrimSpace(addr.Street)),
		strings.ToLower(strings.TrimSpace(addr.City)),
		strings.ToLower(strings.TrimSpace(addr.State)),
		strings.TrimSpace(addr.ZipCode),
	)
	return fmt.Sprintf("%x", sha256.Sum256([]byte(normalized)))
}

// WithCache wraps a Client so previously resolved addresses are served
// from the cache and only misses reach the underlying service. Cache
// read/write failures degrade to uncached calls, never fail the batch.
func WithCache(inner Client, cache Cache) Client {
	return &cachingClient{inner: inner, cache: cache}
}

type cachingClient struct {
	inner Client
	cache Cache
}

func (c *cachingClient) Geocode(ctx context.Context, addr AddressInput) (*Result, error) {
	key := CacheKey(addr)
	if cached, ok, err := c.cache.Get(ctx, key); err == nil && ok {
		out := *cached
		out.ID = addr.ID
		return &out, nil
	}

	result, err := c.inner.Geocode(ctx, addr)
	if err != nil {
		return nil, err
	}
	if putErr := c.cache.Put(ctx, key, *result); putErr != nil {
		zap.L().Warn("geocode cache write failed", zap.Error(putErr))
	}
	return result, nil
}

func (c *cachingClient) BatchGeocode(ctx context.Context, addrs []AddressInput) ([]Result, error) {
	results := make([]Result, len(addrs))

	var misses []AddressInput
	missIdx := make([]int, 0, len(addrs))
	for i, addr := range addrs {
		cached, ok, err := c.cache.Get(ctx, CacheKey(addr))
		if err == nil && ok {
			results[i] = *cached
			results[i].ID = addr.ID
			continue
		}
		misses = append(misses, addr)
		missIdx = append(missIdx, i)
	}

	if len(misses) > 0 {
		fresh, err := c.inner.BatchGeocode(ctx, misses)
		if err != nil {
			return nil, err
		}
		for j, r := range fresh {
			results[missIdx[j]] = r
			if putErr := c.cache.Put(ctx, CacheKey(misses[j]), r); putErr != nil {
				zap.L().Warn("geocode cache write failed", zap.Error(putErr))
			}
		}
	}

	if len(misses) < len(addrs) {
		zap.L().Debug("geocode cache hits",
			zap.Int("hits", len(addrs)-len(misses)),
			zap.Int("misses", len(misses)),
		)
	}
	return results, nil
}
