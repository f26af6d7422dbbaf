package discogs

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/lepinkainen/crate/internal/cache"
	crateerrors "github.com/lepinkainen/crate/internal/errors"
)

var searchTermStripper = strings.NewReplacer("&", "", "+", "")

// SearchByArtistTitle looks for cover artwork for an artist and title. The first
// of up to five hits with a real cover image wins. No usable hit is not an error:
// the returned match is simply empty.
func (c *Client) SearchByArtistTitle(ctx context.Context, artist, title string) (ArtworkMatch, error) {
	params := url.Values{}
	params.Set("type", "release")
	params.Set("artist", cleanArtist(artist))
	params.Set("release_title", cleanTitle(title))

	resp, err := c.search(ctx, params)
	if err != nil {
		return ArtworkMatch{}, fmt.Errorf("artwork search %q / %q: %w", artist, title, err)
	}

	for i, hit := range resp.Results {
		if i >= maxArtworkCandidates {
			break
		}
		if IsPlaceholderImage(hit.CoverImage) {
			continue
		}
		return ArtworkMatch{CoverURL: hit.CoverImage, ThumbURL: hit.Thumb, ReleaseID: hit.ID}, nil
	}

	slog.Debug("No usable artwork in search results", "artist", artist, "title", title, "hits", len(resp.Results))
	return ArtworkMatch{}, nil
}

// SearchByBarcode resolves a barcode to its first matching release.
func (c *Client) SearchByBarcode(ctx context.Context, code string) (ReleaseSummary, error) {
	summary, err := c.searchFirst(ctx, "barcode", code)
	if err != nil {
		return ReleaseSummary{}, fmt.Errorf("barcode %s: %w", code, err)
	}
	return summary, nil
}

// SearchByIdentifier resolves a catalog number to its first matching release.
func (c *Client) SearchByIdentifier(ctx context.Context, catno string) (ReleaseSummary, error) {
	summary, err := c.searchFirst(ctx, "catno", catno)
	if err != nil {
		return ReleaseSummary{}, fmt.Errorf("catalog number %s: %w", catno, err)
	}
	return summary, nil
}

// SearchReleases returns up to limit raw release hits for interactive selection.
func (c *Client) SearchReleases(ctx context.Context, artist, title string, limit int) ([]SearchHit, error) {
	params := url.Values{}
	params.Set("type", "release")
	if a := cleanArtist(artist); a != "" {
		params.Set("artist", a)
	}
	if t := cleanTitle(title); t != "" {
		params.Set("release_title", t)
	}
	if limit > 0 {
		params.Set("per_page", strconv.Itoa(limit))
	}

	resp, err := c.search(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("release search %q / %q: %w", artist, title, err)
	}

	hits := resp.Results
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func (c *Client) searchFirst(ctx context.Context, field, value string) (ReleaseSummary, error) {
	params := url.Values{}
	params.Set("type", "release")
	params.Set(field, strings.TrimSpace(value))

	resp, err := c.search(ctx, params)
	if err != nil {
		return ReleaseSummary{}, err
	}
	if len(resp.Results) == 0 {
		return ReleaseSummary{}, crateerrors.ErrNoResults
	}

	return summarize(resp.Results[0]), nil
}

// search runs database/search, served from the response cache when configured.
// Empty result sets are cached for the shorter negative TTL.
func (c *Client) search(ctx context.Context, params url.Values) (*searchResponse, error) {
	query := params.Encode()
	endpoint := c.baseURL + "/database/search?" + query

	resp, _, err := cache.GetOrFetch(ctx, c.cache, cache.DiscogsSearchTable, query, func() (*searchResponse, error) {
		var out searchResponse
		if err := c.getJSON(ctx, endpoint, &out); err != nil {
			return nil, err
		}
		return &out, nil
	}, cache.SelectNegativeCacheTTL(c.cache, func(r *searchResponse) bool {
		return r == nil || len(r.Results) == 0
	}))
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return &searchResponse{}, nil
	}
	return resp, nil
}

// Summary splits the hit's "Artist - Title" into a ReleaseSummary.
func (h SearchHit) Summary() ReleaseSummary {
	return summarize(h)
}

func summarize(hit SearchHit) ReleaseSummary {
	left, right, split := strings.Cut(hit.Title, " - ")

	artist := strings.TrimSpace(hit.Artist)
	if artist == "" && split {
		artist = strings.TrimSpace(left)
	}

	title := strings.TrimSpace(hit.Title)
	if split {
		title = strings.TrimSpace(right)
	}

	return ReleaseSummary{
		ReleaseID: hit.ID,
		Artist:    artist,
		Title:     title,
		Genre:     hit.FirstGenre(),
		Year:      hit.YearString(),
		CoverURL:  hit.CoverImage,
		ThumbURL:  hit.Thumb,
	}
}

func cleanArtist(artist string) string {
	return collapseSpaces(searchTermStripper.Replace(artist))
}

// cleanTitle drops everything from the first comma, which in collection exports
// usually starts an edition note.
func cleanTitle(title string) string {
	if i := strings.Index(title, ","); i >= 0 {
		title = title[:i]
	}
	return collapseSpaces(searchTermStripper.Replace(title))
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// IsPlaceholderImage reports whether a cover URL is missing or points at one of
// the Discogs spacer images.
func IsPlaceholderImage(raw string) bool {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return true
	}

	lower := strings.ToLower(raw)
	if strings.HasSuffix(lower, "spacer.gif") || strings.HasSuffix(lower, "spacer.png") {
		return true
	}

	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return true
	}
	return u.Path == "" || u.Path == "/"
}
