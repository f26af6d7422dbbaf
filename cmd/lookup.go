package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/lepinkainen/crate/internal/discogs"
	"github.com/lepinkainen/crate/internal/enrichment"
	"github.com/lepinkainen/crate/internal/output"
	"github.com/lepinkainen/crate/internal/tui"
)

const interactiveSearchLimit = 10

var selectRelease = tui.SelectRelease

// errSelectionStopped is returned when the user quits the release picker.
var errSelectionStopped = errors.New("selection stopped")

// LookupCmd looks up a single release.
type LookupCmd struct {
	Barcode     string `help:"Barcode (UPC/EAN) to look up" xor:"query"`
	Catno       string `help:"Catalog number to look up" xor:"query"`
	Artist      string `help:"Artist name"`
	Title       string `help:"Release title"`
	Interactive bool   `short:"i" help:"Pick the release from a list of search results"`
	Format      string `help:"Output format: json or yaml" default:"json" enum:"json,yaml"`
	Output      string `short:"o" help:"Write the result to this file instead of stdout"`
	Overwrite   bool   `help:"Overwrite an existing output file"`
}

func (l *LookupCmd) query() (enrichment.Query, error) {
	switch {
	case strings.TrimSpace(l.Barcode) != "":
		return enrichment.BarcodeQuery(strings.TrimSpace(l.Barcode)), nil
	case strings.TrimSpace(l.Catno) != "":
		return enrichment.CatalogNumberQuery(strings.TrimSpace(l.Catno)), nil
	case strings.TrimSpace(l.Artist) != "" && strings.TrimSpace(l.Title) != "":
		return enrichment.ArtistTitleQuery(l.Artist, l.Title), nil
	default:
		return enrichment.Query{}, fmt.Errorf("provide --barcode, --catno, or both --artist and --title")
	}
}

func (l *LookupCmd) Run(ctx context.Context, app *App) error {
	query, err := l.query()
	if err != nil {
		return err
	}
	if l.Interactive && query.Kind != enrichment.KindArtistTitle {
		return fmt.Errorf("--interactive needs --artist and --title")
	}
	format, err := output.ParseFormat(l.Format)
	if err != nil {
		return err
	}

	client, err := app.Client(ctx)
	if err != nil {
		return err
	}

	var result enrichment.Result
	if l.Interactive {
		result, err = pickRelease(ctx, client, query)
		if errors.Is(err, errSelectionStopped) {
			slog.Info("No release selected")
			return nil
		}
	} else {
		result, err = lookupOne(ctx, app, client, query)
	}
	if err != nil {
		return err
	}

	if l.Output != "" {
		_, err := output.WriteFile(l.Output, format, result, l.Overwrite)
		return err
	}
	return output.Write(app.out, format, result)
}

// lookupOne runs a single lookup through the coordinator so it gets the same
// jitter and failure handling as a batch.
func lookupOne(ctx context.Context, app *App, gateway enrichment.Gateway, query enrichment.Query) (enrichment.Result, error) {
	var (
		result    enrichment.Result
		delivered bool
	)
	coordinator := app.Coordinator(gateway, nil)
	stop := context.AfterFunc(ctx, coordinator.CancelAll)
	defer stop()

	coordinator.Start(query.String(), query, func(r enrichment.Result) {
		result = r
		delivered = true
	})
	coordinator.Wait()

	if !delivered {
		if err := ctx.Err(); err != nil {
			return enrichment.Result{}, err
		}
		return enrichment.Result{}, fmt.Errorf("lookup for %s was cancelled", query)
	}
	if result.Outcome == enrichment.OutcomeFailed {
		return result, fmt.Errorf("lookup for %s failed: %w", query, result.Err)
	}
	return result, nil
}

// releaseSearcher is the part of the Discogs client the release picker uses.
type releaseSearcher interface {
	SearchReleases(ctx context.Context, artist, title string, limit int) ([]discogs.SearchHit, error)
	GetTracklist(ctx context.Context, releaseID int) (discogs.ReleaseDetail, error)
}

func pickRelease(ctx context.Context, client releaseSearcher, query enrichment.Query) (enrichment.Result, error) {
	hits, err := client.SearchReleases(ctx, query.Artist, query.Title, interactiveSearchLimit)
	if err != nil {
		return enrichment.Result{}, err
	}
	if len(hits) == 0 {
		return enrichment.Result{Key: query.String(), Outcome: enrichment.OutcomeNoMatch}, nil
	}

	selection, err := selectRelease(query.String(), hits)
	if err != nil {
		return enrichment.Result{}, err
	}
	if selection.Action != tui.ActionSelected || selection.Selection == nil {
		return enrichment.Result{}, errSelectionStopped
	}

	summary := selection.Selection.Summary()
	result := enrichment.Result{
		Key:        query.String(),
		Outcome:    enrichment.OutcomeMatched,
		Artist:     summary.Artist,
		Title:      summary.Title,
		ArtworkURL: summary.CoverURL,
		ThumbURL:   summary.ThumbURL,
		Genre:      summary.Genre,
		Year:       summary.Year,
		ReleaseID:  summary.ReleaseID,
	}

	detail, err := client.GetTracklist(ctx, summary.ReleaseID)
	if err != nil {
		if ctx.Err() != nil {
			return enrichment.Result{}, ctx.Err()
		}
		slog.Warn("Tracklist fetch failed", "release_id", summary.ReleaseID, "error", err)
		return result, nil
	}
	result.Tracklist = detail.Tracks
	result.Notes = detail.Notes
	if result.Genre == "" {
		result.Genre = detail.Genre
	}
	if result.Year == "" {
		result.Year = detail.Year
	}
	return result, nil
}
