package cmd

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/lepinkainen/humanlog"
	"github.com/spf13/viper"

	"github.com/lepinkainen/crate/internal/cache"
	"github.com/lepinkainen/crate/internal/config"
)

// CLI represents the complete command structure for the crate application
type CLI struct {
	// Global flags
	Verbose bool `short:"v" help:"Enable debug logging"`

	CollectionDB string `help:"Path to collection SQLite database (default ./crate.db)"`
	CacheDBFile  string `help:"Path to cache SQLite database file (default ./cache.db)"`
	CacheTTL     string `help:"Cache time-to-live duration (e.g., 720h for 30 days)"`
	MetricsAddr  string `help:"Serve Prometheus metrics on this address while the command runs (e.g. :9090)"`
	NoProgress   bool   `help:"Log progress lines instead of showing a progress bar"`

	Import ImportCmd `cmd:"" help:"Import a collection CSV and enrich it from Discogs"`
	Scan   ScanCmd   `cmd:"" help:"Look up a batch of barcodes"`
	Lookup LookupCmd `cmd:"" help:"Look up a single release"`
	Auth   AuthCmd   `cmd:"" help:"Manage the Discogs account connection"`
	Cache  CacheCmd  `cmd:"" help:"Manage the Discogs response cache"`
}

// CacheCmd groups cache maintenance commands.
type CacheCmd struct {
	Invalidate cache.InvalidateCacheCmd `cmd:"" help:"Delete cached Discogs responses"`
}

// Execute runs the Kong-based CLI
func Execute() {
	initLogging(false)
	if err := initConfig(); err != nil {
		slog.Error("Fatal error config file", "error", err)
		os.Exit(1)
	}

	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("crate"),
		kong.Description("Catalogue a record collection and enrich it with Discogs data."),
		kong.UsageOnError(),
	)
	if cli.Verbose {
		initLogging(true)
	}

	updateGlobalConfig(&cli)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := NewApp(config.Load())
	if cli.NoProgress {
		app.interactive = false
	}
	app.StartMetrics()

	err := run(ctx, kctx, app)
	if closeErr := app.Close(); closeErr != nil {
		slog.Warn("Failed to release resources", "error", closeErr)
	}
	if err != nil {
		slog.Error("Command failed", "error", err)
		os.Exit(1)
	}
}

// run executes the selected command with ctx and app bound for its Run method.
func run(ctx context.Context, kctx *kong.Context, app *App) error {
	kctx.BindTo(ctx, (*context.Context)(nil))
	return kctx.Run(app)
}

func initConfig() error {
	if err := config.LoadDotEnv(); err != nil {
		slog.Warn("Failed to load .env file", "error", err)
	}
	config.InitConfig()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return err
		}
		slog.Info("Config file not found, writing default config file...")
		if err := viper.SafeWriteConfig(); err != nil {
			slog.Warn("Error writing config file", "error", err)
		}
	}
	return nil
}

func updateGlobalConfig(cli *CLI) {
	if cli.CollectionDB != "" {
		viper.Set("collection.dbfile", cli.CollectionDB)
	}
	if cli.CacheDBFile != "" {
		viper.Set("cache.dbfile", cli.CacheDBFile)
	}
	if cli.CacheTTL != "" {
		viper.Set("cache.ttl", cli.CacheTTL)
	}
	if cli.MetricsAddr != "" {
		viper.Set("metrics.addr", cli.MetricsAddr)
	}
}

func initLogging(verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	handler := humanlog.NewHandler(os.Stdout, &humanlog.Options{
		Level: level,
	})
	slog.SetDefault(slog.New(handler))
}
