// Package collection persists the record collection in sqlite.
package collection

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/lepinkainen/crate/internal/discogs"
	"github.com/lepinkainen/crate/internal/enrichment"
)

// ErrNotFound is returned when a record id does not exist.
var ErrNotFound = errors.New("record not found")

const schema = `CREATE TABLE IF NOT EXISTS records (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	artist TEXT NOT NULL DEFAULT '',
	title TEXT NOT NULL DEFAULT '',
	barcode TEXT NOT NULL DEFAULT '',
	catalog_number TEXT NOT NULL DEFAULT '',
	format TEXT NOT NULL DEFAULT '',
	release_id INTEGER NOT NULL DEFAULT 0,
	artwork_url TEXT NOT NULL DEFAULT '',
	thumb_url TEXT NOT NULL DEFAULT '',
	genre TEXT NOT NULL DEFAULT '',
	year TEXT NOT NULL DEFAULT '',
	notes TEXT NOT NULL DEFAULT '',
	tracklist TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL,
	enriched_at INTEGER
)`

const recordColumns = `id, artist, title, barcode, catalog_number, format, release_id,
	artwork_url, thumb_url, genre, year, notes, tracklist, created_at, enriched_at`

// Record is one item of the collection.
type Record struct {
	ID            int64           `json:"id" yaml:"id"`
	Artist        string          `json:"artist" yaml:"artist"`
	Title         string          `json:"title" yaml:"title"`
	Barcode       string          `json:"barcode,omitempty" yaml:"barcode,omitempty"`
	CatalogNumber string          `json:"catalog_number,omitempty" yaml:"catalog_number,omitempty"`
	Format        string          `json:"format,omitempty" yaml:"format,omitempty"`
	ReleaseID     int             `json:"release_id,omitempty" yaml:"release_id,omitempty"`
	ArtworkURL    string          `json:"artwork_url,omitempty" yaml:"artwork_url,omitempty"`
	ThumbURL      string          `json:"thumb_url,omitempty" yaml:"thumb_url,omitempty"`
	Genre         string          `json:"genre,omitempty" yaml:"genre,omitempty"`
	Year          string          `json:"year,omitempty" yaml:"year,omitempty"`
	Notes         string          `json:"notes,omitempty" yaml:"notes,omitempty"`
	Tracklist     []discogs.Track `json:"tracklist,omitempty" yaml:"tracklist,omitempty"`
	CreatedAt     time.Time       `json:"created_at" yaml:"created_at"`
	EnrichedAt    time.Time       `json:"enriched_at,omitempty" yaml:"enriched_at,omitempty"`
}

// Enriched reports whether a lookup result has been merged into the record.
func (r Record) Enriched() bool {
	return !r.EnrichedAt.IsZero()
}

// Query picks the lookup to run for the record: barcode first, then catalog
// number, then artist and title.
func (r Record) Query() enrichment.Query {
	switch {
	case strings.TrimSpace(r.Barcode) != "":
		return enrichment.BarcodeQuery(r.Barcode)
	case strings.TrimSpace(r.CatalogNumber) != "":
		return enrichment.CatalogNumberQuery(r.CatalogNumber)
	default:
		return enrichment.ArtistTitleQuery(r.Artist, r.Title)
	}
}

// ListOptions filters List.
type ListOptions struct {
	Unenriched bool
}

// Store is the sqlite-backed collection.
type Store struct {
	db     *sql.DB
	dbPath string
	now    func() time.Time
}

// Open opens (creating if needed) the collection database.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		closeErr := db.Close()
		return nil, errors.Join(fmt.Errorf("failed to create table: %w", err), closeErr)
	}
	return &Store{db: db, dbPath: dbPath, now: time.Now}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// InsertRecords adds records in a single transaction and returns their ids.
func (s *Store) InsertRecords(ctx context.Context, records []Record) ([]int64, error) {
	if len(records) == 0 {
		return nil, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		// Rollback after a successful commit is a no-op.
		_ = tx.Rollback()
	}()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO records
		(artist, title, barcode, catalog_number, format, release_id, artwork_url, thumb_url,
		 genre, year, notes, tracklist, created_at, enriched_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	now := s.now()
	ids := make([]int64, 0, len(records))
	for _, rec := range records {
		tracklist, err := encodeTracklist(rec.Tracklist)
		if err != nil {
			return nil, err
		}
		res, err := stmt.ExecContext(ctx,
			strings.TrimSpace(rec.Artist), strings.TrimSpace(rec.Title),
			strings.TrimSpace(rec.Barcode), strings.TrimSpace(rec.CatalogNumber), strings.TrimSpace(rec.Format),
			rec.ReleaseID, rec.ArtworkURL, rec.ThumbURL, rec.Genre, rec.Year, rec.Notes, tracklist,
			now.Unix(), nullableUnix(rec.EnrichedAt),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to insert record: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("failed to read record id: %w", err)
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return ids, nil
}

// Get loads one record.
func (s *Store) Get(ctx context.Context, id int64) (Record, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+recordColumns+" FROM records WHERE id = ?", id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, fmt.Errorf("record %d: %w", id, ErrNotFound)
	}
	return rec, err
}

// List returns records ordered by id.
func (s *Store) List(ctx context.Context, opts ListOptions) ([]Record, error) {
	query := "SELECT " + recordColumns + " FROM records"
	if opts.Unenriched {
		query += " WHERE enriched_at IS NULL"
	}
	query += " ORDER BY id"

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// ApplyLookup merges a lookup result into a stored record. Only empty fields are
// filled, so values the user entered are never overwritten. Failed lookups leave
// the record untouched so it is retried on the next import.
func (s *Store) ApplyLookup(ctx context.Context, id int64, result enrichment.Result) error {
	if result.Outcome == enrichment.OutcomeFailed {
		return nil
	}

	rec, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	fillString(&rec.Artist, result.Artist)
	fillString(&rec.Title, result.Title)
	fillString(&rec.ArtworkURL, result.ArtworkURL)
	fillString(&rec.ThumbURL, result.ThumbURL)
	fillString(&rec.Genre, result.Genre)
	fillString(&rec.Year, result.Year)
	fillString(&rec.Notes, result.Notes)
	if rec.ReleaseID == 0 {
		rec.ReleaseID = result.ReleaseID
	}
	if len(rec.Tracklist) == 0 && len(result.Tracklist) > 0 {
		rec.Tracklist = result.Tracklist
	}

	tracklist, err := encodeTracklist(rec.Tracklist)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `UPDATE records SET
		artist = ?, title = ?, release_id = ?, artwork_url = ?, thumb_url = ?,
		genre = ?, year = ?, notes = ?, tracklist = ?, enriched_at = ?
		WHERE id = ?`,
		rec.Artist, rec.Title, rec.ReleaseID, rec.ArtworkURL, rec.ThumbURL,
		rec.Genre, rec.Year, rec.Notes, tracklist, s.now().Unix(), id)
	if err != nil {
		return fmt.Errorf("failed to update record %d: %w", id, err)
	}
	return nil
}

// Count returns the number of records and how many of them are enriched.
func (s *Store) Count(ctx context.Context) (total, enriched int, err error) {
	err = s.db.QueryRowContext(ctx,
		"SELECT COUNT(*), COUNT(enriched_at) FROM records").Scan(&total, &enriched)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count records: %w", err)
	}
	return total, enriched, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (Record, error) {
	var (
		rec        Record
		tracklist  string
		createdAt  int64
		enrichedAt sql.NullInt64
	)
	err := row.Scan(&rec.ID, &rec.Artist, &rec.Title, &rec.Barcode, &rec.CatalogNumber, &rec.Format,
		&rec.ReleaseID, &rec.ArtworkURL, &rec.ThumbURL, &rec.Genre, &rec.Year, &rec.Notes,
		&tracklist, &createdAt, &enrichedAt)
	if err != nil {
		return Record{}, err
	}

	if tracklist != "" {
		if err := json.Unmarshal([]byte(tracklist), &rec.Tracklist); err != nil {
			return Record{}, fmt.Errorf("record %d: invalid tracklist: %w", rec.ID, err)
		}
	}
	rec.CreatedAt = time.Unix(createdAt, 0)
	if enrichedAt.Valid {
		rec.EnrichedAt = time.Unix(enrichedAt.Int64, 0)
	}
	return rec, nil
}

func encodeTracklist(tracks []discogs.Track) (string, error) {
	if len(tracks) == 0 {
		return "", nil
	}
	data, err := json.Marshal(tracks)
	if err != nil {
		return "", fmt.Errorf("failed to encode tracklist: %w", err)
	}
	return string(data), nil
}

func nullableUnix(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.Unix()
}

func fillString(dst *string, value string) {
	if strings.TrimSpace(*dst) == "" && value != "" {
		*dst = value
	}
}
