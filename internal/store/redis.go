package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/papertrade/api/internal/metrics"
	"github.com/papertrade/api/internal/model"
)

// CachedStore wraps a primary Store (PostgreSQL) with a short-TTL Redis
// read-through cache for product reads only. Writes go to the primary
// store and invalidate the cache; reads check Redis first then fall back
// to the primary. The cache carries no consistency guarantee beyond
// "eventually fresh within the TTL window". All non-product operations
// pass through via the embedded Store.
type CachedStore struct {
	Store
	rdb *redis.Client
	ttl time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		Store: primary,
		rdb:   rdb,
		ttl:   ttl,
	}
}

// --- Read-through (check cache first) ---

func (s *CachedStore) GetProduct(ctx context.Context, id string) (*model.Product, error) {
	data, err := s.rdb.Get(ctx, productKey(id)).Bytes()
	if err == nil {
		var p model.Product
		if json.Unmarshal(data, &p) == nil {
			metrics.CacheHits.Inc()
			return &p, nil
		}
	}
	metrics.CacheMisses.Inc()

	p, err := s.Store.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}

	s.cacheProduct(ctx, p)
	return p, nil
}

func (s *CachedStore) ListProducts(ctx context.Context) ([]model.Product, error) {
	return s.listThrough(ctx, productListKey, func() ([]model.Product, error) {
		return s.Store.ListProducts(ctx)
	})
}

func (s *CachedStore) ListProductsByCategory(ctx context.Context, category string) ([]model.Product, error) {
	return s.listThrough(ctx, categoryKey(category), func() ([]model.Product, error) {
		return s.Store.ListProductsByCategory(ctx, category)
	})
}

func (s *CachedStore) listThrough(ctx context.Context, key string, load func() ([]model.Product, error)) ([]model.Product, error) {
	data, err := s.rdb.Get(ctx, key).Bytes()
	if err == nil {
		var products []model.Product
		if json.Unmarshal(data, &products) == nil {
			metrics.CacheHits.Inc()
			return products, nil
		}
	}
	metrics.CacheMisses.Inc()

	products, err := load()
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(products); err == nil {
		s.rdb.Set(ctx, key, data, s.ttl)
	}
	return products, nil
}

// --- Write-through (write to primary, invalidate) ---

func (s *CachedStore) CreateProduct(ctx context.Context, p *model.Product) error {
	if err := s.Store.CreateProduct(ctx, p); err != nil {
		return err
	}
	s.invalidateLists(ctx, p.Category)
	s.cacheProduct(ctx, p)
	return nil
}

func (s *CachedStore) UpdateProduct(ctx context.Context, p *model.Product) error {
	if err := s.Store.UpdateProduct(ctx, p); err != nil {
		return err
	}
	// Category may have changed; drop all list keys plus the product.
	s.rdb.Del(ctx, productKey(p.ID))
	s.invalidateAllLists(ctx)
	return nil
}

func (s *CachedStore) UpdateProductPrice(ctx context.Context, id string, price decimal.Decimal) error {
	if err := s.Store.UpdateProductPrice(ctx, id, price); err != nil {
		return err
	}
	s.rdb.Del(ctx, productKey(id))
	s.invalidateAllLists(ctx)
	return nil
}

func (s *CachedStore) DeleteProduct(ctx context.Context, id string) error {
	if err := s.Store.DeleteProduct(ctx, id); err != nil {
		return err
	}
	s.rdb.Del(ctx, productKey(id))
	s.invalidateAllLists(ctx)
	return nil
}

// --- Cache helpers ---

func (s *CachedStore) cacheProduct(ctx context.Context, p *model.Product) {
	if data, err := json.Marshal(p); err == nil {
		s.rdb.Set(ctx, productKey(p.ID), data, s.ttl)
	}
}

func (s *CachedStore) invalidateLists(ctx context.Context, category string) {
	s.rdb.Del(ctx, productListKey, categoryKey(category))
}

func (s *CachedStore) invalidateAllLists(ctx context.Context) {
	s.rdb.Del(ctx, productListKey)
	iter := s.rdb.Scan(ctx, 0, "products:category:*", 0).Iterator()
	for iter.Next(ctx) {
		s.rdb.Del(ctx, iter.Val())
	}
}

const productListKey = "products:all"

func productKey(id string) string        { return "product:" + id }
func categoryKey(category string) string { return "products:category:" + category }
