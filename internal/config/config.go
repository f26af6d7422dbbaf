package config

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the resolved application configuration.
type Config struct {
	Discogs     DiscogsConfig
	Enrichment  EnrichmentConfig
	Collection  CollectionConfig
	Cache       CacheConfig
	Artwork     ArtworkConfig
	Metrics     MetricsConfig
	Credentials CredentialsConfig
}

// DiscogsConfig holds API credentials and request pacing.
type DiscogsConfig struct {
	Token             string
	ConsumerKey       string
	ConsumerSecret    string
	CallbackURL       string
	UserAgent         string
	RequestsPerMinute int
	ExhaustedCooldown time.Duration
	RequestTimeout    time.Duration
	MaxRetries        int
}

// OAuthConfigured reports whether a consumer key pair is available for the
// OAuth connect flow.
func (d DiscogsConfig) OAuthConfigured() bool {
	return d.ConsumerKey != "" && d.ConsumerSecret != ""
}

// EnrichmentConfig tunes the lookup coordinator.
type EnrichmentConfig struct {
	JitterMin   time.Duration
	JitterMax   time.Duration
	Concurrency int
}

// CollectionConfig locates the collection database.
type CollectionConfig struct {
	DBFile string
}

// CacheConfig locates the response cache.
type CacheConfig struct {
	DBFile string
	TTL    time.Duration
}

// ArtworkConfig controls cover downloads.
type ArtworkConfig struct {
	Dir      string
	MaxWidth int
	Interval time.Duration
}

// CredentialsConfig locates the credential store.
type CredentialsConfig struct {
	DBFile string
}

// MetricsConfig controls the Prometheus endpoint. An empty Addr disables it.
type MetricsConfig struct {
	Addr string
}

// envBindings maps config keys to the environment variables that override them.
var envBindings = map[string]string{
	"discogs.token":           "DISCOGS_TOKEN",
	"discogs.consumer_key":    "DISCOGS_CONSUMER_KEY",
	"discogs.consumer_secret": "DISCOGS_CONSUMER_SECRET",
}

// InitConfig sets defaults and binds environment variables.
func InitConfig() {
	SetDefaults()
	for key, env := range envBindings {
		if err := viper.BindEnv(key, env); err != nil {
			slog.Error("Failed to bind environment variable", "key", key, "env", env, "error", err)
		}
	}
}

// SetDefaults registers the default value of every key.
func SetDefaults() {
	viper.SetDefault("discogs.token", "")
	viper.SetDefault("discogs.consumer_key", "")
	viper.SetDefault("discogs.consumer_secret", "")
	viper.SetDefault("discogs.callback_url", "oob")
	viper.SetDefault("discogs.user_agent", "crate/1.0 +https://github.com/lepinkainen/crate")
	viper.SetDefault("discogs.requests_per_minute", 60)
	viper.SetDefault("discogs.exhausted_cooldown", "60s")
	viper.SetDefault("discogs.request_timeout", "30s")
	viper.SetDefault("discogs.max_retries", 3)

	viper.SetDefault("enrichment.jitter_min", "500ms")
	viper.SetDefault("enrichment.jitter_max", "2s")
	viper.SetDefault("enrichment.concurrency", 8)

	viper.SetDefault("collection.dbfile", "./crate.db")

	viper.SetDefault("cache.dbfile", "./cache.db")
	viper.SetDefault("cache.ttl", "720h") // 30 days

	viper.SetDefault("artwork.dir", "./covers")
	viper.SetDefault("artwork.max_width", 1000)
	viper.SetDefault("artwork.interval", "1s")

	viper.SetDefault("metrics.addr", "")

	viper.SetDefault("credentials.dbfile", defaultCredentialsPath())
}

// defaultCredentialsPath keeps tokens out of the working directory so they are
// not committed alongside a collection database.
func defaultCredentialsPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "./credentials.db"
	}
	return filepath.Join(dir, "crate", "credentials.db")
}

// LoadDotEnv loads variables from the given .env files (default ".env") into the
// process environment. Missing files are ignored; variables already set win.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, file := range files {
		if err := godotenv.Load(file); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return err
		}
		slog.Debug("Loaded environment file", "file", file)
	}
	return nil
}

// Load resolves the configuration from viper.
func Load() Config {
	return Config{
		Discogs: DiscogsConfig{
			Token:             viper.GetString("discogs.token"),
			ConsumerKey:       viper.GetString("discogs.consumer_key"),
			ConsumerSecret:    viper.GetString("discogs.consumer_secret"),
			CallbackURL:       viper.GetString("discogs.callback_url"),
			UserAgent:         viper.GetString("discogs.user_agent"),
			RequestsPerMinute: viper.GetInt("discogs.requests_per_minute"),
			ExhaustedCooldown: viper.GetDuration("discogs.exhausted_cooldown"),
			RequestTimeout:    viper.GetDuration("discogs.request_timeout"),
			MaxRetries:        viper.GetInt("discogs.max_retries"),
		},
		Enrichment: EnrichmentConfig{
			JitterMin:   viper.GetDuration("enrichment.jitter_min"),
			JitterMax:   viper.GetDuration("enrichment.jitter_max"),
			Concurrency: viper.GetInt("enrichment.concurrency"),
		},
		Collection: CollectionConfig{
			DBFile: viper.GetString("collection.dbfile"),
		},
		Cache: CacheConfig{
			DBFile: viper.GetString("cache.dbfile"),
			TTL:    viper.GetDuration("cache.ttl"),
		},
		Artwork: ArtworkConfig{
			Dir:      viper.GetString("artwork.dir"),
			MaxWidth: viper.GetInt("artwork.max_width"),
			Interval: viper.GetDuration("artwork.interval"),
		},
		Metrics: MetricsConfig{
			Addr: viper.GetString("metrics.addr"),
		},
		Credentials: CredentialsConfig{
			DBFile: viper.GetString("credentials.dbfile"),
		},
	}
}
