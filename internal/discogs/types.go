package discogs

import (
	"bytes"
	"encoding/json"
)

// Track is one tracklist entry as Discogs lists it.
type Track struct {
	Position string `json:"position" yaml:"position"`
	Title    string `json:"title" yaml:"title"`
	Duration string `json:"duration" yaml:"duration"`
}

// SearchHit is one result of database/search.
type SearchHit struct {
	ID         int        `json:"id"`
	Title      string     `json:"title"`
	Artist     string     `json:"artist,omitempty"`
	CoverImage string     `json:"cover_image"`
	Thumb      string     `json:"thumb"`
	Genre      []string   `json:"genre"`
	Year       flexString `json:"year"`
	Country    string     `json:"country,omitempty"`
	Format     []string   `json:"format,omitempty"`
	Label      []string   `json:"label,omitempty"`
	CatNo      string     `json:"catno,omitempty"`
}

// YearString returns the release year, or "" when Discogs did not report one.
func (h SearchHit) YearString() string {
	if h.Year == "0" {
		return ""
	}
	return string(h.Year)
}

// FirstGenre returns the first listed genre.
func (h SearchHit) FirstGenre() string {
	if len(h.Genre) == 0 {
		return ""
	}
	return h.Genre[0]
}

type searchResponse struct {
	Results []SearchHit `json:"results"`
}

type release struct {
	ID        int        `json:"id"`
	Tracklist []Track    `json:"tracklist"`
	Notes     string     `json:"notes"`
	Genres    []string   `json:"genres"`
	Year      int        `json:"year"`
	Images    []imageRef `json:"images"`
}

type imageRef struct {
	Type   string `json:"type"`
	URI    string `json:"uri"`
	URI150 string `json:"uri150"`
}

// coverImage picks the primary image, falling back to the first usable one.
func (r *release) coverImage() (imageRef, bool) {
	var fallback *imageRef
	for i := range r.Images {
		img := &r.Images[i]
		if IsPlaceholderImage(img.URI) {
			continue
		}
		if img.Type == "primary" {
			return *img, true
		}
		if fallback == nil {
			fallback = img
		}
	}
	if fallback == nil {
		return imageRef{}, false
	}
	return *fallback, true
}

type identityResponse struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
}

// ArtworkMatch is the outcome of an artist+title artwork search. A zero value
// means no usable artwork was found.
type ArtworkMatch struct {
	CoverURL  string
	ThumbURL  string
	ReleaseID int
}

// Found reports whether the search resolved a release with artwork.
func (m ArtworkMatch) Found() bool {
	return m.ReleaseID != 0 || m.CoverURL != ""
}

// ReleaseSummary is the first hit of a barcode or catalog-number search.
type ReleaseSummary struct {
	ReleaseID int
	Artist    string
	Title     string
	Genre     string
	Year      string
	CoverURL  string
	ThumbURL  string
}

// ReleaseDetail holds the fields of a full release used for enrichment.
// CoverURL and ThumbURL come from the release's primary image.
type ReleaseDetail struct {
	ReleaseID int
	Tracks    []Track
	Notes     string
	Genre     string
	Year      string
	CoverURL  string
	ThumbURL  string
}

// flexString accepts both JSON strings and numbers. Discogs reports search years
// as strings but some mirrors and older responses use numbers.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = flexString(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}
