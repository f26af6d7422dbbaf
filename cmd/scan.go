package cmd

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/lepinkainen/crate/internal/collection"
	"github.com/lepinkainen/crate/internal/enrichment"
	"github.com/lepinkainen/crate/internal/output"
)

// ScanCmd looks up a batch of barcodes, e.g. from a handheld scanner.
type ScanCmd struct {
	Barcodes []string `arg:"" optional:"" help:"Barcodes to look up"`
	File     string   `short:"f" help:"File with one barcode per line"`
	Save     bool     `help:"Add matched records to the collection"`
	Format   string   `help:"Output format: json or yaml" default:"json" enum:"json,yaml"`
}

func (s *ScanCmd) Run(ctx context.Context, app *App) error {
	codes := s.Barcodes
	if s.File != "" {
		fromFile, err := readBarcodes(s.File)
		if err != nil {
			return err
		}
		codes = append(codes, fromFile...)
	}
	codes = uniqueBarcodes(codes)
	if len(codes) == 0 {
		return fmt.Errorf("at least one barcode is required (as arguments or via --file)")
	}

	format, err := output.ParseFormat(s.Format)
	if err != nil {
		return err
	}

	client, err := app.Client(ctx)
	if err != nil {
		return err
	}

	jobs := make([]lookupJob, len(codes))
	for i, code := range codes {
		jobs[i] = lookupJob{Key: code, Query: enrichment.BarcodeQuery(code)}
	}
	results, summary := runBatch(ctx, app, client, jobs)

	ordered := make([]enrichment.Result, 0, len(results))
	for _, code := range codes {
		if result, ok := results[code]; ok {
			ordered = append(ordered, result)
		}
	}
	if err := output.Write(app.out, format, ordered); err != nil {
		return err
	}

	if s.Save {
		if err := saveScanned(ctx, app, codes, results); err != nil {
			return err
		}
	}

	if summary.Cancelled > 0 {
		return fmt.Errorf("scan interrupted: %s", summary)
	}
	return ctx.Err()
}

// saveScanned stores every matched barcode as a new collection record.
func saveScanned(ctx context.Context, app *App, codes []string, results map[string]enrichment.Result) error {
	var records []collection.Record
	var matched []enrichment.Result
	for _, code := range codes {
		result, ok := results[code]
		if !ok || !result.Matched() {
			continue
		}
		records = append(records, collection.Record{Barcode: code})
		matched = append(matched, result)
	}
	if len(records) == 0 {
		return nil
	}

	store, err := app.Collection()
	if err != nil {
		return err
	}
	ids, err := store.InsertRecords(ctx, records)
	if err != nil {
		return fmt.Errorf("failed to store scanned records: %w", err)
	}
	for i, id := range ids {
		if err := store.ApplyLookup(ctx, id, matched[i]); err != nil {
			return fmt.Errorf("failed to save lookup for %s: %w", records[i].Barcode, err)
		}
	}
	slog.Info("Saved scanned records", "count", len(ids), "database", app.cfg.Collection.DBFile)
	return nil
}

func readBarcodes(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open barcode file: %w", err)
	}
	defer func() { _ = f.Close() }()

	var codes []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		codes = append(codes, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read barcode file: %w", err)
	}
	return codes, nil
}

// uniqueBarcodes trims codes and drops blanks and repeats, keeping first-seen order.
func uniqueBarcodes(codes []string) []string {
	seen := make(map[string]bool, len(codes))
	out := make([]string, 0, len(codes))
	for _, code := range codes {
		code = strings.TrimSpace(code)
		if code == "" || seen[code] {
			continue
		}
		seen[code] = true
		out = append(out, code)
	}
	return out
}
