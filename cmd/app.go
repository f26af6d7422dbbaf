package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/lepinkainen/crate/internal/artwork"
	"github.com/lepinkainen/crate/internal/cache"
	"github.com/lepinkainen/crate/internal/collection"
	"github.com/lepinkainen/crate/internal/config"
	"github.com/lepinkainen/crate/internal/credstore"
	"github.com/lepinkainen/crate/internal/discogs"
	"github.com/lepinkainen/crate/internal/enrichment"
	crateerrors "github.com/lepinkainen/crate/internal/errors"
	"github.com/lepinkainen/crate/internal/metrics"
	"github.com/lepinkainen/crate/internal/ratelimit"
)

// App builds the collaborators a command needs from the resolved config.
// Everything is constructed lazily and released by Close.
type App struct {
	cfg config.Config

	in          io.Reader
	out         io.Writer
	interactive bool

	// Overrides used by tests.
	baseURL    string
	httpClient discogs.HTTPDoer
	clock      ratelimit.Clock
	authOpts   []discogs.AuthorizerOption

	registry *prometheus.Registry
	metrics  *metrics.Metrics
	server   *metrics.Server

	session    *discogs.Session
	client     *discogs.Client
	cacheDB    *cache.CacheDB
	store      *collection.Store
	creds      *credstore.SQLiteStore
	downloader *artwork.Downloader
}

// NewApp creates an App writing to stdout and reading from stdin.
func NewApp(cfg config.Config) *App {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	return &App{
		cfg:         cfg,
		in:          os.Stdin,
		out:         os.Stdout,
		interactive: isTerminal(os.Stdout),
		registry:    registry,
		metrics:     metrics.New(registry),
	}
}

// Config returns the resolved configuration.
func (a *App) Config() config.Config { return a.cfg }

// StartMetrics serves /metrics on the configured address until Close.
func (a *App) StartMetrics() {
	if a.cfg.Metrics.Addr == "" || a.server != nil {
		return
	}
	a.server = metrics.NewServer(a.cfg.Metrics.Addr, a.registry)
	go func() {
		if err := a.server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Metrics server failed", "error", err)
		}
	}()
}

// Credentials opens the credential store.
func (a *App) Credentials() (*credstore.SQLiteStore, error) {
	if a.creds != nil {
		return a.creds, nil
	}
	store, err := credstore.OpenSQLite(a.cfg.Credentials.DBFile)
	if err != nil {
		return nil, fmt.Errorf("failed to open credential store: %w", err)
	}
	a.creds = store
	return store, nil
}

// Session returns the credential session. A stored OAuth connection takes
// precedence over the personal token.
func (a *App) Session(ctx context.Context) *discogs.Session {
	if a.session != nil {
		return a.session
	}
	a.session = discogs.NewSession(a.cfg.Discogs.Token)

	if !a.cfg.Discogs.OAuthConfigured() {
		return a.session
	}
	store, err := a.Credentials()
	if err != nil {
		slog.Warn("Credential store unavailable, using personal token only", "error", err)
		return a.session
	}
	creds, err := store.Load(ctx, credstore.ServiceDiscogs)
	switch {
	case errors.Is(err, credstore.ErrNotFound):
	case err != nil:
		slog.Warn("Failed to load stored Discogs credentials", "error", err)
	default:
		a.session.Connect(discogs.OAuthCredential{
			ConsumerKey:    a.cfg.Discogs.ConsumerKey,
			ConsumerSecret: a.cfg.Discogs.ConsumerSecret,
			Token:          creds.Token,
			TokenSecret:    creds.Secret,
		})
		slog.Debug("Using stored Discogs connection", "username", creds.Username)
	}
	return a.session
}

// Client returns the Discogs client, opening the response cache on first use.
func (a *App) Client(ctx context.Context) (*discogs.Client, error) {
	if a.client != nil {
		return a.client, nil
	}

	d := a.cfg.Discogs
	gateOpts := []ratelimit.GateOption{ratelimit.WithExhaustedCooldown(d.ExhaustedCooldown)}
	if a.clock != nil {
		gateOpts = append(gateOpts, ratelimit.WithClock(a.clock))
	}

	opts := []discogs.Option{
		discogs.WithGate(ratelimit.NewGate(d.RequestsPerMinute, gateOpts...)),
		discogs.WithUserAgent(d.UserAgent),
		discogs.WithRequestTimeout(d.RequestTimeout),
		discogs.WithMaxRetries(d.MaxRetries),
		discogs.WithMetrics(a.metrics),
	}
	if a.httpClient != nil {
		opts = append(opts, discogs.WithHTTPClient(a.httpClient))
	}
	if a.baseURL != "" {
		opts = append(opts, discogs.WithBaseURL(a.baseURL))
	}

	if a.cfg.Cache.DBFile != "" {
		cacheDB, err := cache.Open(a.cfg.Cache.DBFile, a.cfg.Cache.TTL)
		if err != nil {
			return nil, fmt.Errorf("failed to open cache database: %w", err)
		}
		a.cacheDB = cacheDB
		opts = append(opts, discogs.WithCache(cacheDB))
	}

	client := discogs.NewClient(a.Session(ctx), opts...)
	if !client.Enabled() {
		return nil, fmt.Errorf("%w: set DISCOGS_TOKEN or run `crate auth login`", crateerrors.ErrDisabled)
	}
	a.client = client
	return client, nil
}

// Collection opens the collection database.
func (a *App) Collection() (*collection.Store, error) {
	if a.store != nil {
		return a.store, nil
	}
	store, err := collection.Open(a.cfg.Collection.DBFile)
	if err != nil {
		return nil, fmt.Errorf("failed to open collection database: %w", err)
	}
	a.store = store
	return store, nil
}

// Coordinator creates a lookup coordinator over gateway.
func (a *App) Coordinator(gateway enrichment.Gateway, onUnauthorized func(error)) *enrichment.Coordinator {
	e := a.cfg.Enrichment
	opts := []enrichment.Option{
		enrichment.WithJitter(e.JitterMin, e.JitterMax),
		enrichment.WithConcurrency(e.Concurrency),
		enrichment.WithMetrics(a.metrics),
		enrichment.WithUnauthorizedHandler(onUnauthorized),
	}
	if a.clock != nil {
		opts = append(opts, enrichment.WithClock(a.clock))
	}
	return enrichment.NewCoordinator(gateway, opts...)
}

// Downloader creates the cover downloader writing into dir.
func (a *App) Downloader(dir string, overwrite bool) *artwork.Downloader {
	if a.downloader != nil {
		return a.downloader
	}
	if dir == "" {
		dir = a.cfg.Artwork.Dir
	}
	opts := []artwork.Option{
		artwork.WithLimiter(ratelimit.New("discogs-images", a.cfg.Artwork.Interval, 1)),
		artwork.WithMaxWidth(a.cfg.Artwork.MaxWidth),
		artwork.WithUserAgent(a.cfg.Discogs.UserAgent),
		artwork.WithOverwrite(overwrite),
	}
	if a.httpClient != nil {
		opts = append(opts, artwork.WithHTTPClient(a.httpClient))
	}
	a.downloader = artwork.NewDownloader(dir, opts...)
	return a.downloader
}

// Close releases everything the App opened.
func (a *App) Close() error {
	var errs []error
	if a.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		errs = append(errs, a.server.Shutdown(ctx))
		cancel()
	}
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	if a.cacheDB != nil {
		errs = append(errs, a.cacheDB.Close())
	}
	if a.creds != nil {
		errs = append(errs, a.creds.Close())
	}
	return errors.Join(errs...)
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}
