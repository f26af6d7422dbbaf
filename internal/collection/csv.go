package collection

import (
	"fmt"
	"io"
	"strconv"

	"github.com/lepinkainen/crate/internal/csvutil"
)

// csvAliases maps the header spellings seen in collection exports to columns.
var csvAliases = map[string]string{
	"artist":           "artist",
	"artist name":      "artist",
	"performer":        "artist",
	"title":            "title",
	"album":            "title",
	"release title":    "title",
	"barcode":          "barcode",
	"upc":              "barcode",
	"ean":              "barcode",
	"catalog#":         "catno",
	"catalog number":   "catno",
	"catalog":          "catno",
	"cat#":             "catno",
	"catno":            "catno",
	"format":           "format",
	"media":            "format",
	"discogs release":  "release_id",
	"discogs_release":  "release_id",
	"release_id":       "release_id",
	"collection notes": "notes",
	"notes":            "notes",
}

func parseRecordRow(row csvutil.Row) (Record, error) {
	rec := Record{
		Artist:        row.Get("artist"),
		Title:         row.Get("title"),
		Barcode:       row.Get("barcode"),
		CatalogNumber: row.Get("catno"),
		Format:        row.Get("format"),
		Notes:         row.Get("notes"),
	}
	if id := row.Get("release_id"); id != "" {
		releaseID, err := strconv.Atoi(id)
		if err != nil {
			return Record{}, fmt.Errorf("invalid release id %q", id)
		}
		rec.ReleaseID = releaseID
	}
	if rec.Barcode == "" && rec.CatalogNumber == "" && (rec.Artist == "" || rec.Title == "") {
		return Record{}, fmt.Errorf("row needs a barcode, catalog number or both artist and title")
	}
	return rec, nil
}

// ReadCSV parses a collection export. Rows that cannot be looked up are skipped
// with a warning.
func ReadCSV(r io.Reader) ([]Record, error) {
	return csvutil.ProcessCSV(r, parseRecordRow, csvutil.ProcessorOptions{
		Aliases:     csvAliases,
		SkipInvalid: true,
	})
}

// ReadCSVFile parses the collection export at path.
func ReadCSVFile(path string) ([]Record, error) {
	return csvutil.ProcessFile(path, parseRecordRow, csvutil.ProcessorOptions{
		Aliases:     csvAliases,
		SkipInvalid: true,
	})
}
