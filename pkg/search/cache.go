package search

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/protocol-evidence-server/internal/domain"
)

// CacheClient wraps Redis with caching for literature search results
type CacheClient struct {
	redis      *redis.Client
	defaultTTL time.Duration
}

// NewCacheClient creates a new cache client
func NewCacheClient(config domain.CacheConfig) (*CacheClient, error) {
	opts, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	// Apply cache-specific configurations
	opts.PoolSize = config.PoolSize
	opts.PoolTimeout = config.PoolTimeout
	opts.MaxRetries = config.MaxRetries

	client := redis.NewClient(opts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &CacheClient{
		redis:      client,
		defaultTTL: config.DefaultTTL,
	}, nil
}

// cachedStudies represents cached search results with metadata
type cachedStudies struct {
	Studies   []domain.StudyRecord `json:"studies"`
	CachedAt  time.Time            `json:"cached_at"`
	ExpiresAt time.Time            `json:"expires_at"`
}

// GetStudies retrieves cached search results for a query
func (c *CacheClient) GetStudies(ctx context.Context, query domain.SearchQuery) ([]domain.StudyRecord, bool, error) {
	key := searchCacheKey(query)

	val, err := c.redis.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, false, nil // Cache miss
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get search cache: %w", err)
	}

	var cached cachedStudies
	if err := json.Unmarshal([]byte(val), &cached); err != nil {
		// Remove corrupted cache entry
		c.redis.Del(ctx, key)
		return nil, false, nil
	}

	// Check if expired
	if time.Now().After(cached.ExpiresAt) {
		c.redis.Del(ctx, key)
		return nil, false, nil
	}

	return cached.Studies, true, nil
}

// SetStudies caches search results for a query
func (c *CacheClient) SetStudies(ctx context.Context, query domain.SearchQuery, studies []domain.StudyRecord, ttl time.Duration) error {
	if ttl == 0 {
		ttl = c.defaultTTL
	}

	cached := cachedStudies{
		Studies:   studies,
		CachedAt:  time.Now(),
		ExpiresAt: time.Now().Add(ttl),
	}

	jsonData, err := json.Marshal(cached)
	if err != nil {
		return fmt.Errorf("failed to marshal search cache data: %w", err)
	}

	return c.redis.Set(ctx, searchCacheKey(query), jsonData, ttl).Err()
}

// InvalidateQuery removes cached results for a query
func (c *CacheClient) InvalidateQuery(ctx context.Context, query domain.SearchQuery) error {
	return c.redis.Del(ctx, searchCacheKey(query)).Err()
}

// Close closes the Redis connection
func (c *CacheClient) Close() error {
	return c.redis.Close()
}

// searchCacheKey derives a stable cache key from the normalized query terms.
func searchCacheKey(query domain.SearchQuery) string {
	normalized := strings.ToLower(strings.TrimSpace(query.Terms()))
	hash := sha256.Sum256([]byte(normalized))
	return fmt.Sprintf("search:studies:%x", hash[:16])
}
