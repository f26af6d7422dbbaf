// Package enrichment runs concurrent, cancellable Discogs lookups for collection
// records and tracks batch progress.
package enrichment

import (
	"context"
	"fmt"

	"github.com/lepinkainen/crate/internal/discogs"
)

// Gateway is the subset of the Discogs client the coordinator needs.
type Gateway interface {
	SearchByArtistTitle(ctx context.Context, artist, title string) (discogs.ArtworkMatch, error)
	SearchByBarcode(ctx context.Context, code string) (discogs.ReleaseSummary, error)
	SearchByIdentifier(ctx context.Context, catno string) (discogs.ReleaseSummary, error)
	GetTracklist(ctx context.Context, releaseID int) (discogs.ReleaseDetail, error)
}

// QueryKind selects which search a lookup runs.
type QueryKind int

const (
	KindBarcode QueryKind = iota
	KindCatalogNumber
	KindArtistTitle
)

func (k QueryKind) String() string {
	switch k {
	case KindBarcode:
		return "barcode"
	case KindCatalogNumber:
		return "catno"
	case KindArtistTitle:
		return "artist_title"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Query identifies what to look up.
type Query struct {
	Kind          QueryKind
	Barcode       string
	CatalogNumber string
	Artist        string
	Title         string
}

// BarcodeQuery looks a record up by barcode.
func BarcodeQuery(code string) Query {
	return Query{Kind: KindBarcode, Barcode: code}
}

// CatalogNumberQuery looks a record up by catalog number.
func CatalogNumberQuery(catno string) Query {
	return Query{Kind: KindCatalogNumber, CatalogNumber: catno}
}

// ArtistTitleQuery looks a record up by artist and title.
func ArtistTitleQuery(artist, title string) Query {
	return Query{Kind: KindArtistTitle, Artist: artist, Title: title}
}

// String renders the query for logs.
func (q Query) String() string {
	switch q.Kind {
	case KindBarcode:
		return "barcode:" + q.Barcode
	case KindCatalogNumber:
		return "catno:" + q.CatalogNumber
	default:
		return fmt.Sprintf("%s - %s", q.Artist, q.Title)
	}
}

// Outcome classifies a delivered result.
type Outcome string

const (
	OutcomeMatched Outcome = "matched"
	OutcomeNoMatch Outcome = "no_match"
	OutcomeFailed  Outcome = "failed"
)

// Result is what a lookup delivers to its sink. Absent fields are zero values.
type Result struct {
	Key        string          `json:"key" yaml:"key"`
	Outcome    Outcome         `json:"outcome" yaml:"outcome"`
	Err        error           `json:"-" yaml:"-"`
	Artist     string          `json:"artist,omitempty" yaml:"artist,omitempty"`
	Title      string          `json:"title,omitempty" yaml:"title,omitempty"`
	ArtworkURL string          `json:"artwork_url,omitempty" yaml:"artwork_url,omitempty"`
	ThumbURL   string          `json:"thumb_url,omitempty" yaml:"thumb_url,omitempty"`
	Tracklist  []discogs.Track `json:"tracklist,omitempty" yaml:"tracklist,omitempty"`
	Genre      string          `json:"genre,omitempty" yaml:"genre,omitempty"`
	Year       string          `json:"year,omitempty" yaml:"year,omitempty"`
	Notes      string          `json:"notes,omitempty" yaml:"notes,omitempty"`
	ReleaseID  int             `json:"release_id,omitempty" yaml:"release_id,omitempty"`
}

// Matched reports whether the lookup resolved a release.
func (r Result) Matched() bool {
	return r.Outcome == OutcomeMatched
}

// State is the lifecycle of a lookup task.
type State int

const (
	StatePending State = iota
	StateRunning
	StateCompleted
	StateFailed
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transitions can happen.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}
