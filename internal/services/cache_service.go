package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/guildmint/backend/internal/models"
)

const (
	guildCurrenciesKeyPrefix = "guild_currencies:"
	scanBatchSize            = 100
)

// CacheService is an advisory read-through cache of guild enabled-currency
// lists. It is never the source of truth: mutation paths go straight to the
// database and invalidate the affected entries before returning. A nil redis
// client degrades every call to a no-op.
type CacheService struct {
	redis *redis.Client
	ttl   time.Duration
}

func NewCacheService(rdb *redis.Client) *CacheService {
	return &CacheService{
		redis: rdb,
		ttl:   5 * time.Minute,
	}
}

func guildCurrenciesKey(scopeID int64) string {
	return fmt.Sprintf("%s%d", guildCurrenciesKeyPrefix, scopeID)
}

// GetGuildCurrencies returns the cached currency list for a scope, if any.
func (c *CacheService) GetGuildCurrencies(ctx context.Context, scopeID int64) ([]models.Currency, bool) {
	if c.redis == nil {
		return nil, false
	}

	val, err := c.redis.Get(ctx, guildCurrenciesKey(scopeID)).Result()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		log.Printf("[CACHE] Read failed for scope %d: %v", scopeID, err)
		return nil, false
	}

	var currencies []models.Currency
	if err := json.Unmarshal([]byte(val), &currencies); err != nil {
		log.Printf("[CACHE] Corrupt entry for scope %d: %v", scopeID, err)
		return nil, false
	}
	return currencies, true
}

// SetGuildCurrencies fills the cache entry for a scope.
func (c *CacheService) SetGuildCurrencies(ctx context.Context, scopeID int64, currencies []models.Currency) {
	if c.redis == nil {
		return
	}

	data, err := json.Marshal(currencies)
	if err != nil {
		log.Printf("[CACHE] Marshal failed for scope %d: %v", scopeID, err)
		return
	}
	if err := c.redis.Set(ctx, guildCurrenciesKey(scopeID), data, c.ttl).Err(); err != nil {
		log.Printf("[CACHE] Write failed for scope %d: %v", scopeID, err)
	}
}

// Invalidate drops the cache entry for one scope.
func (c *CacheService) Invalidate(ctx context.Context, scopeID int64) {
	if c.redis == nil {
		return
	}
	if err := c.redis.Del(ctx, guildCurrenciesKey(scopeID)).Err(); err != nil {
		log.Printf("[CACHE] Invalidate failed for scope %d: %v", scopeID, err)
	}
}

// InvalidateAll drops every guild currency entry. Used after a currency
// deletion, which may touch any number of guild lists. Keys are collected
// with SCAN so a large keyspace never blocks the server.
func (c *CacheService) InvalidateAll(ctx context.Context) {
	if c.redis == nil {
		return
	}

	keys := []string{}
	iter := c.redis.Scan(ctx, 0, guildCurrenciesKeyPrefix+"*", scanBatchSize).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		log.Printf("[CACHE] Key scan failed: %v", err)
		return
	}
	if len(keys) == 0 {
		return
	}
	if err := c.redis.Del(ctx, keys...).Err(); err != nil {
		log.Printf("[CACHE] Bulk invalidate failed: %v", err)
	}
}
