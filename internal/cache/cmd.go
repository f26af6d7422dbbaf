package cache

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/spf13/viper"
)

// InvalidateCacheCmd represents the cache invalidate subcommand
type InvalidateCacheCmd struct {
	Source string `arg:"" help:"Cache source to invalidate: releases, search, discogs" required:""`
}

func (i *InvalidateCacheCmd) Run() error {
	tables, ok := SourceTables[i.Source]
	if !ok {
		return fmt.Errorf("invalid cache source '%s'; valid sources are: %s", i.Source, strings.Join(validSources(), ", "))
	}

	dbPath := viper.GetString("cache.dbfile")
	slog.Info("Invalidating cache", "source", i.Source, "database", dbPath)

	cacheDB, err := Open(dbPath, viper.GetDuration("cache.ttl"))
	if err != nil {
		return fmt.Errorf("failed to open cache database: %w", err)
	}
	defer func() { _ = cacheDB.Close() }()

	var total int64
	for _, table := range tables {
		rows, err := cacheDB.InvalidateSource(context.Background(), table)
		if err != nil {
			return fmt.Errorf("failed to invalidate cache: %w", err)
		}
		total += rows
	}

	slog.Info("Cache invalidated", "source", i.Source, "rows_deleted", total)
	return nil
}

func validSources() []string {
	sources := make([]string, 0, len(SourceTables))
	for source := range SourceTables {
		sources = append(sources, source)
	}
	sort.Strings(sources)
	return sources
}
