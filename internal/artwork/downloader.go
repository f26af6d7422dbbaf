// Package artwork downloads and resizes cover images.
package artwork

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/disintegration/imaging"

	"github.com/lepinkainen/crate/internal/ratelimit"
)

const (
	defaultMaxWidth = 1000
	jpegQuality     = 85
)

// HTTPDoer is an interface for making HTTP requests.
type HTTPDoer interface {
	Do(*http.Request) (*http.Response, error)
}

// Downloader saves cover images as JPEGs no wider than maxWidth.
type Downloader struct {
	dir        string
	httpClient HTTPDoer
	limiter    *ratelimit.Limiter
	maxWidth   int
	userAgent  string
	overwrite  bool
}

// Option configures a Downloader.
type Option func(*Downloader)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c HTTPDoer) Option {
	return func(d *Downloader) {
		if c != nil {
			d.httpClient = c
		}
	}
}

// WithLimiter paces downloads. A nil limiter disables pacing.
func WithLimiter(l *ratelimit.Limiter) Option {
	return func(d *Downloader) {
		d.limiter = l
	}
}

// WithMaxWidth sets the width images are scaled down to.
func WithMaxWidth(w int) Option {
	return func(d *Downloader) {
		if w > 0 {
			d.maxWidth = w
		}
	}
}

// WithUserAgent sets the User-Agent header. The Discogs image CDN rejects
// requests without one.
func WithUserAgent(ua string) Option {
	return func(d *Downloader) {
		d.userAgent = ua
	}
}

// WithOverwrite re-downloads covers that already exist.
func WithOverwrite(overwrite bool) Option {
	return func(d *Downloader) {
		d.overwrite = overwrite
	}
}

// NewDownloader creates a downloader writing into dir.
func NewDownloader(dir string, opts ...Option) *Downloader {
	d := &Downloader{
		dir:        dir,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    ratelimit.New("discogs-images", time.Second, 1),
		maxWidth:   defaultMaxWidth,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Result describes a finished download.
type Result struct {
	Path       string
	Downloaded bool
}

// Download fetches imageURL and saves it as name inside the download directory.
// An existing file is kept unless overwrite is enabled.
func (d *Downloader) Download(ctx context.Context, imageURL, name string) (Result, error) {
	if imageURL == "" {
		return Result{}, fmt.Errorf("no image URL for %s", name)
	}

	path := filepath.Join(d.dir, name)
	result := Result{Path: path}
	if !d.overwrite {
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			slog.Debug("Cover already exists, skipping download", "path", path)
			return result, nil
		}
	}

	if err := d.limiter.Wait(ctx); err != nil {
		return result, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return result, err
	}
	if d.userAgent != "" {
		req.Header.Set("User-Agent", d.userAgent)
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return result, fmt.Errorf("failed to download cover: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return result, fmt.Errorf("unexpected status %d downloading cover from %s", resp.StatusCode, imageURL)
	}

	img, err := imaging.Decode(resp.Body, imaging.AutoOrientation(true))
	if err != nil {
		return result, fmt.Errorf("failed to decode cover: %w", err)
	}
	if img.Bounds().Dx() > d.maxWidth {
		img = imaging.Resize(img, d.maxWidth, 0, imaging.Lanczos)
	}

	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return result, fmt.Errorf("failed to create cover directory: %w", err)
	}
	if err := imaging.Save(img, path, imaging.JPEGQuality(jpegQuality)); err != nil {
		return result, fmt.Errorf("failed to save cover: %w", err)
	}

	slog.Info("Downloaded cover", "path", path)
	result.Downloaded = true
	return result, nil
}

// CoverFilename builds "Artist - Title - cover.jpg" with path separators removed.
func CoverFilename(artist, title string) string {
	name := strings.TrimSpace(artist)
	if t := strings.TrimSpace(title); t != "" {
		if name != "" {
			name += " - "
		}
		name += t
	}
	if name == "" {
		name = "unknown"
	}
	return sanitizeFilename(name) + " - cover.jpg"
}

func sanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, ":", " -")
	name = strings.ReplaceAll(name, "/", "-")
	name = strings.ReplaceAll(name, "\\", "-")
	return name
}
