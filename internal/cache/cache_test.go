package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lepinkainen/crate/internal/testutil"
)

type TestData struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

func setupTestCache(t *testing.T) *CacheDB {
	t.Helper()

	env := testutil.NewTestEnv(t)
	cache, err := Open(env.DBPath("test_cache"), time.Hour)
	if err != nil {
		t.Fatalf("Failed to create cache database: %v", err)
	}
	t.Cleanup(func() { _ = cache.Close() })
	return cache
}

func TestGetOrFetch_CacheHit(t *testing.T) {
	cache := setupTestCache(t)
	ctx := context.Background()

	if err := cache.Set(ctx, DiscogsReleaseTable, "1", `{"id":1,"name":"Test"}`, 0); err != nil {
		t.Fatalf("Failed to pre-populate cache: %v", err)
	}

	fetchCalled := false
	result, fromCache, err := GetOrFetch(ctx, cache, DiscogsReleaseTable, "1", func() (TestData, error) {
		fetchCalled = true
		return TestData{}, nil
	}, nil)

	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !fromCache {
		t.Error("Expected fromCache to be true")
	}
	if fetchCalled {
		t.Error("Expected fetch function not to be called")
	}
	if result.ID != 1 || result.Name != "Test" {
		t.Errorf("Unexpected cached result %+v", result)
	}
}

func TestGetOrFetch_CacheMissStoresResult(t *testing.T) {
	cache := setupTestCache(t)
	ctx := context.Background()
	expected := TestData{ID: 2, Name: "Fetched"}

	fetchCalled := 0
	fetch := func() (TestData, error) {
		fetchCalled++
		return expected, nil
	}

	result, fromCache, err := GetOrFetch(ctx, cache, DiscogsReleaseTable, "2", fetch, nil)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if fromCache {
		t.Error("Expected fromCache to be false")
	}
	if result != expected {
		t.Errorf("Expected %+v, got %+v", expected, result)
	}

	result, fromCache, err = GetOrFetch(ctx, cache, DiscogsReleaseTable, "2", fetch, nil)
	if err != nil {
		t.Fatalf("Expected no error on second call, got %v", err)
	}
	if !fromCache {
		t.Error("Expected second call to return from cache")
	}
	if fetchCalled != 1 {
		t.Errorf("Expected fetch to be called once, got %d", fetchCalled)
	}
	if result != expected {
		t.Errorf("Expected %+v from cache, got %+v", expected, result)
	}
}

func TestGetOrFetch_ExpiredEntryRefetches(t *testing.T) {
	cache := setupTestCache(t)
	ctx := context.Background()

	if err := cache.Set(ctx, DiscogsReleaseTable, "3", `{"id":3,"name":"stale"}`, time.Minute); err != nil {
		t.Fatalf("Failed to seed cache: %v", err)
	}
	cache.now = func() time.Time { return time.Now().Add(2 * time.Minute) }

	result, fromCache, err := GetOrFetch(ctx, cache, DiscogsReleaseTable, "3", func() (TestData, error) {
		return TestData{ID: 3, Name: "fresh"}, nil
	}, nil)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if fromCache {
		t.Fatal("Expected cache miss due to expiration")
	}
	if result.Name != "fresh" {
		t.Fatalf("Expected fresh data, got %+v", result)
	}
}

func TestGetOrFetch_FetchErrorIsNotCached(t *testing.T) {
	cache := setupTestCache(t)
	ctx := context.Background()
	fetchErr := errors.New("boom")

	_, _, err := GetOrFetch(ctx, cache, DiscogsSearchTable, "k", func() (TestData, error) {
		return TestData{}, fetchErr
	}, nil)
	if !errors.Is(err, fetchErr) {
		t.Fatalf("Expected fetch error, got %v", err)
	}

	_, found, err := cache.Get(ctx, DiscogsSearchTable, "k")
	if err != nil || found {
		t.Fatalf("Expected no cache entry, found=%v err=%v", found, err)
	}
}

func TestGetOrFetch_NilCacheFetchesDirectly(t *testing.T) {
	result, fromCache, err := GetOrFetch(context.Background(), nil, DiscogsSearchTable, "k", func() (TestData, error) {
		return TestData{ID: 9}, nil
	}, nil)
	if err != nil || fromCache || result.ID != 9 {
		t.Fatalf("Unexpected result %+v fromCache=%v err=%v", result, fromCache, err)
	}
}

func TestSelectNegativeCacheTTL(t *testing.T) {
	long, err := Open(testutil.NewTestEnv(t).DBPath("long"), 30*24*time.Hour)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer func() { _ = long.Close() }()

	selector := SelectNegativeCacheTTL(long, func(r TestData) bool { return r.ID == 0 })
	if got := selector(TestData{}); got != NegativeCacheTTL {
		t.Errorf("not-found TTL = %s, want %s", got, NegativeCacheTTL)
	}
	if got := selector(TestData{ID: 1}); got != 30*24*time.Hour {
		t.Errorf("found TTL = %s, want 720h", got)
	}

	short := setupTestCache(t)
	shortSelector := SelectNegativeCacheTTL(short, func(r TestData) bool { return r.ID == 0 })
	if got := shortSelector(TestData{}); got != time.Hour {
		t.Errorf("negative TTL should be capped at the cache default, got %s", got)
	}
}

func TestInvalidateSourceAndValidation(t *testing.T) {
	cache := setupTestCache(t)
	ctx := context.Background()

	for _, key := range []string{"a", "b"} {
		if err := cache.Set(ctx, DiscogsSearchTable, key, `{}`, 0); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
	}

	rows, err := cache.InvalidateSource(ctx, DiscogsSearchTable)
	if err != nil {
		t.Fatalf("InvalidateSource failed: %v", err)
	}
	if rows != 2 {
		t.Errorf("Expected 2 rows deleted, got %d", rows)
	}

	if _, err := cache.InvalidateSource(ctx, "users; DROP TABLE x"); err == nil {
		t.Error("Expected invalid table name to be rejected")
	}
}

func TestClearExpired(t *testing.T) {
	cache := setupTestCache(t)
	ctx := context.Background()

	if err := cache.Set(ctx, DiscogsReleaseTable, "old", `{}`, time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := cache.Set(ctx, DiscogsReleaseTable, "new", `{}`, time.Hour); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	cache.now = func() time.Time { return time.Now().Add(10 * time.Minute) }

	rows, err := cache.ClearExpired(ctx, DiscogsReleaseTable)
	if err != nil {
		t.Fatalf("ClearExpired failed: %v", err)
	}
	if rows != 1 {
		t.Errorf("Expected 1 expired row, got %d", rows)
	}
}
