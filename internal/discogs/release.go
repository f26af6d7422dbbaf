package discogs

import (
	"context"
	"fmt"
	"strconv"

	"github.com/lepinkainen/crate/internal/cache"
)

// GetTracklist fetches a release and returns its tracklist, notes, first genre,
// year and primary image.
func (c *Client) GetTracklist(ctx context.Context, releaseID int) (ReleaseDetail, error) {
	rel, err := c.getRelease(ctx, releaseID)
	if err != nil {
		return ReleaseDetail{}, fmt.Errorf("release %d: %w", releaseID, err)
	}

	detail := ReleaseDetail{
		ReleaseID: rel.ID,
		Tracks:    rel.Tracklist,
		Notes:     rel.Notes,
	}
	if detail.ReleaseID == 0 {
		detail.ReleaseID = releaseID
	}
	if len(rel.Genres) > 0 {
		detail.Genre = rel.Genres[0]
	}
	if rel.Year != 0 {
		detail.Year = strconv.Itoa(rel.Year)
	}
	if img, ok := rel.coverImage(); ok {
		detail.CoverURL = img.URI
		detail.ThumbURL = img.URI150
	}
	return detail, nil
}

func (c *Client) getRelease(ctx context.Context, releaseID int) (*release, error) {
	key := strconv.Itoa(releaseID)
	endpoint := fmt.Sprintf("%s/releases/%d", c.baseURL, releaseID)

	rel, _, err := cache.GetOrFetch(ctx, c.cache, cache.DiscogsReleaseTable, key, func() (*release, error) {
		var out release
		if err := c.getJSON(ctx, endpoint, &out); err != nil {
			return nil, err
		}
		return &out, nil
	}, nil)
	if err != nil {
		return nil, err
	}
	return rel, nil
}
