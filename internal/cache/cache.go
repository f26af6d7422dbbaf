// Package cache stores Discogs responses in sqlite so repeated lookups do not
// spend the request budget.
package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

const (
	// DefaultCacheTTL is the default time-to-live for cached entries (30 days)
	DefaultCacheTTL = 720 * time.Hour
	// NegativeCacheTTL is the TTL for "not found" responses (7 days)
	NegativeCacheTTL = 168 * time.Hour
)

// FetchFunc represents a function that fetches data from an external source
type FetchFunc[T any] func() (T, error)

// CacheDB manages the SQLite database connection for caching
type CacheDB struct {
	db   *sql.DB
	mu   sync.RWMutex
	path string
	ttl  time.Duration
	now  func() time.Time
}

// Open opens (creating if needed) the cache database at dbPath and initializes
// all cache tables. ttl is the default lifetime of new entries.
func Open(dbPath string, ttl time.Duration) (*CacheDB, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

	if err := db.Ping(); err != nil {
		closeErr := db.Close()
		return nil, errors.Join(fmt.Errorf("failed to connect to cache database: %w", err), closeErr)
	}

	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}

	c := &CacheDB{db: db, path: dbPath, ttl: ttl, now: time.Now}
	for _, schema := range AllCacheSchemas {
		if _, err := db.Exec(schema); err != nil {
			closeErr := db.Close()
			return nil, errors.Join(fmt.Errorf("failed to create cache table: %w", err), closeErr)
		}
	}
	return c, nil
}

// Close closes the database connection
func (c *CacheDB) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// TTL returns the default entry lifetime.
func (c *CacheDB) TTL() time.Duration {
	return c.ttl
}

// validateTableName checks if the table name is in the whitelist
// to prevent SQL injection attacks
func validateTableName(tableName string) error {
	if !ValidCacheTableNames[tableName] {
		return fmt.Errorf("invalid cache table name: %s", tableName)
	}
	return nil
}

// Get retrieves an unexpired cached value.
// Returns the cached data, whether it was found, and any error.
func (c *CacheDB) Get(ctx context.Context, tableName, key string) (string, bool, error) {
	if err := validateTableName(tableName); err != nil {
		return "", false, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	query := fmt.Sprintf(`
		SELECT data, expires_at
		FROM %s
		WHERE cache_key = ?
	`, tableName)

	var data string
	var expiresAt int64
	err := c.db.QueryRowContext(ctx, query, key).Scan(&data, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to query cache: %w", err)
	}

	if c.now().Unix() >= expiresAt {
		slog.Debug("Cache expired", "table", tableName, "key", key)
		return "", false, nil
	}

	return data, true, nil
}

// Set stores a value that expires after ttl.
func (c *CacheDB) Set(ctx context.Context, tableName, key, data string, ttl time.Duration) error {
	if err := validateTableName(tableName); err != nil {
		return err
	}
	if ttl <= 0 {
		ttl = c.ttl
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	query := fmt.Sprintf(`
		INSERT OR REPLACE INTO %s (cache_key, data, cached_at, expires_at)
		VALUES (?, ?, ?, ?)
	`, tableName)

	if _, err := c.db.ExecContext(ctx, query, key, data, now.Unix(), now.Add(ttl).Unix()); err != nil {
		return fmt.Errorf("failed to set cache: %w", err)
	}
	return nil
}

// InvalidateSource deletes all entries from the specified cache table.
// Returns the number of rows deleted
func (c *CacheDB) InvalidateSource(ctx context.Context, tableName string) (int64, error) {
	if err := validateTableName(tableName); err != nil {
		return 0, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	result, err := c.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s", tableName))
	if err != nil {
		return 0, fmt.Errorf("failed to delete cache entries: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	slog.Debug("Cache table cleared", "table", tableName, "rows_deleted", rowsAffected)
	return rowsAffected, nil
}

// ClearExpired removes expired entries from the specified table
func (c *CacheDB) ClearExpired(ctx context.Context, tableName string) (int64, error) {
	if err := validateTableName(tableName); err != nil {
		return 0, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	result, err := c.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE expires_at <= ?", tableName), c.now().Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to clear expired cache: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows > 0 {
		slog.Info("Cleared expired cache entries", "table", tableName, "count", rows)
	}
	return rows, nil
}

// GetOrFetch retrieves data from cache or fetches it using the provided function.
// A nil cache fetches directly. ttlSelector may be nil, in which case every
// fetched value is stored with the cache's default TTL.
func GetOrFetch[T any](ctx context.Context, c *CacheDB, tableName, cacheKey string, fetchFunc FetchFunc[T], ttlSelector func(T) time.Duration) (T, bool, error) {
	var zero T

	if c == nil {
		data, err := fetchFunc()
		return data, false, err
	}

	cached, found, err := c.Get(ctx, tableName, cacheKey)
	if err != nil {
		slog.Warn("Cache lookup failed, fetching directly", "table", tableName, "key", cacheKey, "error", err)
	}
	if err == nil && found {
		var result T
		if err := json.Unmarshal([]byte(cached), &result); err == nil {
			slog.Debug("Cache hit", "table", tableName, "key", cacheKey)
			return result, true, nil
		}
		slog.Warn("Failed to unmarshal cached data, will refetch", "table", tableName, "key", cacheKey, "error", err)
	}

	slog.Debug("Cache miss, fetching data", "table", tableName, "key", cacheKey)
	data, err := fetchFunc()
	if err != nil {
		return zero, false, err
	}

	ttl := c.ttl
	if ttlSelector != nil {
		ttl = ttlSelector(data)
	}
	if ttl <= 0 {
		slog.Debug("Skipping cache store per policy", "table", tableName, "key", cacheKey)
		return data, false, nil
	}

	jsonData, err := json.Marshal(data)
	if err != nil {
		slog.Warn("Failed to marshal data for caching", "table", tableName, "key", cacheKey, "error", err)
		return data, false, nil
	}
	// Caching failure shouldn't stop the lookup.
	if err := c.Set(ctx, tableName, cacheKey, string(jsonData), ttl); err != nil {
		slog.Warn("Failed to cache data", "table", tableName, "key", cacheKey, "error", err)
	}

	return data, false, nil
}

// SelectNegativeCacheTTL returns a TTL selector that keeps "not found" results
// for NegativeCacheTTL (capped at the cache default) and everything else for the default.
func SelectNegativeCacheTTL[T any](c *CacheDB, isNotFound func(T) bool) func(T) time.Duration {
	return func(result T) time.Duration {
		ttl := DefaultCacheTTL
		if c != nil {
			ttl = c.ttl
		}
		if isNotFound(result) && NegativeCacheTTL < ttl {
			return NegativeCacheTTL
		}
		return ttl
	}
}
