package database

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeModelCache struct {
	entries map[string][]byte
}

func newFakeModelCache() *fakeModelCache {
	return &fakeModelCache{entries: map[string][]byte{}}
}

func (c *fakeModelCache) Get(ctx context.Context, key string) ([]byte, bool) {
	value, ok := c.entries[key]
	return value, ok
}

func (c *fakeModelCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	c.entries[key] = value
}

func (c *fakeModelCache) Del(ctx context.Context, key string) {
	delete(c.entries, key)
}

type stubRepository struct {
	Repository[testUser]
	findByIdCalls int
	updated       []any
	deleted       []any
	doc           *testUser
}

func (s *stubRepository) FindById(ctx context.Context, id any) (*testUser, error) {
	s.findByIdCalls++
	return s.doc, nil
}

func (s *stubRepository) UpdateById(ctx context.Context, id any, update any) error {
	s.updated = append(s.updated, id)
	return nil
}

func (s *stubRepository) DeleteById(ctx context.Context, id any) error {
	s.deleted = append(s.deleted, id)
	return nil
}

func newStubCachedRepository(doc *testUser) (*CachedRepository[testUser], *stubRepository, *fakeModelCache) {
	inner := &stubRepository{doc: doc}
	cache := newFakeModelCache()
	cached := &CachedRepository[testUser]{
		Repository: inner,
		cache:      cache,
		ttl:        time.Minute,
		prefix:     "odm:users:",
	}
	return cached, inner, cache
}

func TestCachedRepositoryFindByIdReadThrough(t *testing.T) {
	doc := &testUser{Email: "a@b.c"}
	doc.ID = "user-1"
	cached, inner, cache := newStubCachedRepository(doc)

	ctx := context.Background()

	// First read misses the cache and hits the repository.
	found, err := cached.FindById(ctx, "user-1")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "a@b.c", found.Email)
	assert.Equal(t, 1, inner.findByIdCalls)
	assert.Contains(t, cache.entries, "odm:users:user-1")

	// Second read is served from the cache.
	found, err = cached.FindById(ctx, "user-1")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "a@b.c", found.Email)
	assert.Equal(t, 1, inner.findByIdCalls)
}

func TestCachedRepositoryDropsUnreadableEntries(t *testing.T) {
	doc := &testUser{Email: "a@b.c"}
	cached, inner, cache := newStubCachedRepository(doc)

	cache.entries["odm:users:user-1"] = []byte("{not json")

	found, err := cached.FindById(context.Background(), "user-1")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, 1, inner.findByIdCalls)

	// The broken entry was replaced with a fresh one.
	assert.NotEqual(t, []byte("{not json"), cache.entries["odm:users:user-1"])
}

func TestCachedRepositoryWritesInvalidate(t *testing.T) {
	doc := &testUser{Email: "a@b.c"}
	cached, inner, cache := newStubCachedRepository(doc)
	ctx := context.Background()

	_, err := cached.FindById(ctx, "user-1")
	require.NoError(t, err)
	require.Contains(t, cache.entries, "odm:users:user-1")

	require.NoError(t, cached.UpdateById(ctx, "user-1", map[string]any{"email": "new@b.c"}))
	assert.NotContains(t, cache.entries, "odm:users:user-1")
	assert.Equal(t, []any{"user-1"}, inner.updated)

	_, err = cached.FindById(ctx, "user-1")
	require.NoError(t, err)
	require.Contains(t, cache.entries, "odm:users:user-1")

	require.NoError(t, cached.DeleteById(ctx, "user-1"))
	assert.NotContains(t, cache.entries, "odm:users:user-1")
	assert.Equal(t, []any{"user-1"}, inner.deleted)
}

func TestCachedRepositoryNilID(t *testing.T) {
	cached, _, _ := newStubCachedRepository(nil)
	ctx := context.Background()

	_, err := cached.FindById(ctx, nil)
	assert.ErrorIs(t, err, ErrNilID)
	assert.ErrorIs(t, cached.UpdateById(ctx, nil, nil), ErrNilID)
	assert.ErrorIs(t, cached.DeleteById(ctx, nil), ErrNilID)
}
