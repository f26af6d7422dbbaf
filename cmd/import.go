package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/spf13/viper"

	"github.com/lepinkainen/crate/internal/artwork"
	"github.com/lepinkainen/crate/internal/collection"
	crateerrors "github.com/lepinkainen/crate/internal/errors"
)

// ImportCmd imports a collection CSV export and enriches it from Discogs.
type ImportCmd struct {
	Input           string `short:"f" help:"Path to collection CSV export"`
	All             bool   `help:"Look up every record again, not only ones without Discogs data"`
	NoEnrich        bool   `help:"Only import the CSV, skip Discogs lookups"`
	DownloadCovers  string `help:"Directory to save resized cover art into" placeholder:"DIR"`
	OverwriteCovers bool   `help:"Re-download covers that already exist"`
}

func (i *ImportCmd) Run(ctx context.Context, app *App) error {
	input := i.Input
	if input == "" {
		input = viper.GetString("collection.csvfile")
	}
	if input == "" {
		return fmt.Errorf("input CSV file is required (provide via --input flag or collection.csvfile in config)")
	}

	records, err := collection.ReadCSVFile(input)
	if err != nil {
		return fmt.Errorf("failed to read collection CSV: %w", err)
	}

	store, err := app.Collection()
	if err != nil {
		return err
	}
	ids, err := store.InsertRecords(ctx, records)
	if err != nil {
		return fmt.Errorf("failed to store records: %w", err)
	}
	slog.Info("Imported records", "file", input, "count", len(ids))

	if i.NoEnrich {
		return nil
	}

	pending, err := store.List(ctx, collection.ListOptions{Unenriched: !i.All})
	if err != nil {
		return fmt.Errorf("failed to list records: %w", err)
	}
	if err := enrichCollection(ctx, app, store, pending); err != nil {
		return err
	}

	if i.DownloadCovers != "" {
		return downloadCovers(ctx, app, store, i.DownloadCovers, i.OverwriteCovers)
	}
	return nil
}

// enrichCollection looks records up and merges matches into the store.
func enrichCollection(ctx context.Context, app *App, store *collection.Store, records []collection.Record) error {
	if len(records) == 0 {
		slog.Info("Nothing to enrich")
		return nil
	}

	client, err := app.Client(ctx)
	if errors.Is(err, crateerrors.ErrDisabled) {
		slog.Warn("Discogs disabled, records stored without enrichment", "records", len(records))
		return nil
	}
	if err != nil {
		return err
	}

	jobs := make([]lookupJob, len(records))
	for idx, rec := range records {
		jobs[idx] = lookupJob{Key: strconv.FormatInt(rec.ID, 10), Query: rec.Query()}
	}

	results, summary := runBatch(ctx, app, client, jobs)

	for _, rec := range records {
		result, ok := results[strconv.FormatInt(rec.ID, 10)]
		if !ok {
			continue
		}
		if err := store.ApplyLookup(ctx, rec.ID, result); err != nil {
			return fmt.Errorf("failed to save lookup for record %d: %w", rec.ID, err)
		}
	}

	slog.Info("Enrichment complete", "records", len(records), "summary", summary.String())
	return ctx.Err()
}

func downloadCovers(ctx context.Context, app *App, store *collection.Store, dir string, overwrite bool) error {
	records, err := store.List(ctx, collection.ListOptions{})
	if err != nil {
		return fmt.Errorf("failed to list records: %w", err)
	}

	downloader := app.Downloader(dir, overwrite)
	var downloaded, failed int
	for _, rec := range records {
		if rec.ArtworkURL == "" {
			continue
		}
		res, err := downloader.Download(ctx, rec.ArtworkURL, artwork.CoverFilename(rec.Artist, rec.Title))
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			slog.Warn("Failed to download cover", "record", rec.ID, "artist", rec.Artist, "title", rec.Title, "error", err)
			failed++
			continue
		}
		if res.Downloaded {
			downloaded++
		}
	}

	slog.Info("Cover download complete", "dir", dir, "downloaded", downloaded, "failed", failed)
	return nil
}
