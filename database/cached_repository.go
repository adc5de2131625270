package database

import (
	"context"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/gommon/log"
	"github.com/redis/go-redis/v9"
)

// modelCache is the narrow cache contract the decorator needs.
type modelCache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
	Del(ctx context.Context, key string)
}

type redisModelCache struct {
	client redis.UniversalClient
}

func (c redisModelCache) Get(ctx context.Context, key string) ([]byte, bool) {
	value, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	return value, true
}

func (c redisModelCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		log.Warnf("failed to cache %s: %v", key, err)
	}
}

func (c redisModelCache) Del(ctx context.Context, key string) {
	if err := c.client.Del(ctx, key).Err(); err != nil {
		log.Warnf("failed to invalidate %s: %v", key, err)
	}
}

// CachedRepository decorates a repository with a read-through cache for id
// lookups. Writes through UpdateById/DeleteById invalidate the cached entry;
// filter based writes bypass the cache, callers doing both should pick a TTL
// they can live with.
type CachedRepository[T IModel] struct {
	Repository[T]
	cache  modelCache
	ttl    time.Duration
	prefix string
}

// NewCachedRepository wraps a repository with a redis-backed id cache.
func NewCachedRepository[T IModel](inner Repository[T], client redis.UniversalClient, ttl time.Duration) *CachedRepository[T] {
	return &CachedRepository[T]{
		Repository: inner,
		cache:      redisModelCache{client: client},
		ttl:        ttl,
		prefix:     "odm:" + inner.GetSchema().CollectionName + ":",
	}
}

func (repository *CachedRepository[T]) cacheKey(id any) string {
	return fmt.Sprintf("%s%v", repository.prefix, id)
}

func (repository *CachedRepository[T]) FindById(ctx context.Context, id any) (*T, error) {
	if id == nil {
		return nil, ErrNilID
	}

	key := repository.cacheKey(id)
	if data, ok := repository.cache.Get(ctx, key); ok {
		receiver := new(T)
		if err := sonic.Unmarshal(data, receiver); err == nil {
			return receiver, nil
		}
		// Unreadable entry, drop it and fall through to the database.
		repository.cache.Del(ctx, key)
	}

	doc, err := repository.Repository.FindById(ctx, id)
	if err != nil || doc == nil {
		return doc, err
	}

	if data, err := sonic.Marshal(doc); err == nil {
		repository.cache.Set(ctx, key, data, repository.ttl)
	}

	return doc, nil
}

func (repository *CachedRepository[T]) UpdateById(ctx context.Context, id any, update any) error {
	if id == nil {
		return ErrNilID
	}

	repository.cache.Del(ctx, repository.cacheKey(id))
	return repository.Repository.UpdateById(ctx, id, update)
}

func (repository *CachedRepository[T]) DeleteById(ctx context.Context, id any) error {
	if id == nil {
		return ErrNilID
	}

	repository.cache.Del(ctx, repository.cacheKey(id))
	return repository.Repository.DeleteById(ctx, id)
}
