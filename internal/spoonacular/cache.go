package spoonacular

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const recipeCacheTTL = 24 * time.Hour

// CachedClient decorates an API with a Redis cache for recipe lookups.
// Recipe detail is immutable on the provider side for practical purposes,
// and each plan creation fetches every meal's recipe, so caching cuts the
// quota cost of repeated recipes dramatically. The cache is best-effort:
// any Redis failure falls through to the inner client.
type CachedClient struct {
	inner API
	rdb   *redis.Client
	log   *zap.SugaredLogger
}

// NewCachedClient wraps an API implementation with a Redis recipe cache.
func NewCachedClient(inner API, rdb *redis.Client, logger *zap.SugaredLogger) *CachedClient {
	return &CachedClient{inner: inner, rdb: rdb, log: logger}
}

// GeneratePlan is never cached: every call should produce a fresh plan.
func (c *CachedClient) GeneratePlan(ctx context.Context, targetKcal *int, days int) (*GeneratedPlan, error) {
	return c.inner.GeneratePlan(ctx, targetKcal, days)
}

// GetRecipe serves recipe detail from Redis when present.
func (c *CachedClient) GetRecipe(ctx context.Context, id int64) (*RecipeDetails, error) {
	key := fmt.Sprintf("recipe:%d", id)

	if cached, err := c.rdb.Get(ctx, key).Result(); err == nil {
		var details RecipeDetails
		if err := json.Unmarshal([]byte(cached), &details); err == nil {
			return &details, nil
		}
		c.log.Warnw("discarding corrupt cached recipe", "key", key)
	}

	details, err := c.inner.GetRecipe(ctx, id)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(details); err == nil {
		if err := c.rdb.Set(ctx, key, data, recipeCacheTTL).Err(); err != nil {
			c.log.Warnw("failed to cache recipe", "key", key, "error", err)
		}
	}

	return details, nil
}

// NutritionWidget is not cached; it is already best-effort at the call site.
func (c *CachedClient) NutritionWidget(ctx context.Context, id int64) (*NutritionWidget, error) {
	return c.inner.NutritionWidget(ctx, id)
}
