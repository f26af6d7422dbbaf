package cache

// SQL schemas for cache tables
// All cache tables use "cache_key" as the primary key column for consistency

// DiscogsReleaseTable caches release detail responses keyed by release id.
const DiscogsReleaseTable = "discogs_release_cache"

// DiscogsSearchTable caches database search responses keyed by the normalized query.
const DiscogsSearchTable = "discogs_search_cache"

// DiscogsReleaseCacheSchema defines the schema for the Discogs release cache
const DiscogsReleaseCacheSchema = `
CREATE TABLE IF NOT EXISTS discogs_release_cache (
	cache_key TEXT PRIMARY KEY NOT NULL,
	data TEXT NOT NULL,
	cached_at INTEGER NOT NULL,
	expires_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_discogs_release_expires_at ON discogs_release_cache(expires_at);
`

// DiscogsSearchCacheSchema defines the schema for the Discogs search cache
const DiscogsSearchCacheSchema = `
CREATE TABLE IF NOT EXISTS discogs_search_cache (
	cache_key TEXT PRIMARY KEY NOT NULL,
	data TEXT NOT NULL,
	cached_at INTEGER NOT NULL,
	expires_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_discogs_search_expires_at ON discogs_search_cache(expires_at);
`

// AllCacheSchemas contains all cache table schemas for easy initialization
var AllCacheSchemas = []string{
	DiscogsReleaseCacheSchema,
	DiscogsSearchCacheSchema,
}

// ValidCacheTableNames is the whitelist of allowed cache table names
// Used to prevent SQL injection when interpolating table names
var ValidCacheTableNames = map[string]bool{
	DiscogsReleaseTable: true,
	DiscogsSearchTable:  true,
}

// SourceTables maps the user-facing source names accepted by "cache invalidate"
// to the tables they clear.
var SourceTables = map[string][]string{
	"releases": {DiscogsReleaseTable},
	"search":   {DiscogsSearchTable},
	"discogs":  {DiscogsReleaseTable, DiscogsSearchTable},
}
