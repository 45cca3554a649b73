package backend

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/safar/go-pos-register/internal/models"
)

type VariationFetcher interface {
	Variations(ctx context.Context, productID int64) ([]models.Variation, error)
}

type variationEntry struct {
	variations []models.Variation
	fetchedAt  time.Time
}

// VariationCache keeps each product's variations for a fixed TTL so that
// reopening a product does not refetch them. Failed fetches are not cached.
type VariationCache struct {
	fetcher VariationFetcher
	ttl     time.Duration
	logger  *zap.Logger
	now     func() time.Time

	mu      sync.Mutex
	entries map[int64]variationEntry
}

func NewVariationCache(fetcher VariationFetcher, ttl time.Duration, logger *zap.Logger) *VariationCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VariationCache{
		fetcher: fetcher,
		ttl:     ttl,
		logger:  logger,
		now:     time.Now,
		entries: make(map[int64]variationEntry),
	}
}

func (c *VariationCache) Get(ctx context.Context, productID int64) ([]models.Variation, error) {
	now := c.now()

	c.mu.Lock()
	entry, ok := c.entries[productID]
	c.mu.Unlock()
	if ok && now.Sub(entry.fetchedAt) < c.ttl {
		return cloneVariations(entry.variations), nil
	}

	variations, err := c.fetcher.Variations(ctx, productID)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.entries[productID] = variationEntry{variations: variations, fetchedAt: now}
	c.mu.Unlock()

	c.logger.Debug("cached variations",
		zap.Int64("product_id", productID),
		zap.Int("count", len(variations)),
	)
	return cloneVariations(variations), nil
}

// Variations lets the cache stand in for a VariationFetcher.
func (c *VariationCache) Variations(ctx context.Context, productID int64) ([]models.Variation, error) {
	return c.Get(ctx, productID)
}

func (c *VariationCache) Invalidate(productID int64) {
	c.mu.Lock()
	delete(c.entries, productID)
	c.mu.Unlock()
}

func (c *VariationCache) InvalidateAll() {
	c.mu.Lock()
	c.entries = make(map[int64]variationEntry)
	c.mu.Unlock()
}

func cloneVariations(in []models.Variation) []models.Variation {
	out := make([]models.Variation, len(in))
	copy(out, in)
	return out
}
