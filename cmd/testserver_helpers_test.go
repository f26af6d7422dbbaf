package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/lepinkainen/crate/internal/config"
	"github.com/lepinkainen/crate/internal/testutil"
)

// fakeDiscogs serves the subset of the Discogs API the commands use.
type fakeDiscogs struct {
	server *httptest.Server

	mu       sync.Mutex
	searches map[string][]map[string]any // keyed by "field=value"
	releases map[int]map[string]any
	username string
	status   int
	requests []string
	auth     []string
}

func newFakeDiscogs(t *testing.T) *fakeDiscogs {
	t.Helper()
	f := &fakeDiscogs{
		searches: make(map[string][]map[string]any),
		releases: make(map[int]map[string]any),
		username: "vinylhead",
	}
	f.server = httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeDiscogs) URL() string { return f.server.URL }

// addSearch registers hits returned for a search on field=value.
func (f *fakeDiscogs) addSearch(field, value string, hits ...map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searches[field+"="+value] = hits
}

func (f *fakeDiscogs) addRelease(id int, release map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.releases[id] = release
}

// failWith makes every API request answer with status.
func (f *fakeDiscogs) failWith(status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status = status
}

func (f *fakeDiscogs) coverURL(id int) string {
	return fmt.Sprintf("%s/images/%d.png", f.server.URL, id)
}

func (f *fakeDiscogs) requestCount(prefix string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, r := range f.requests {
		if strings.HasPrefix(r, prefix) {
			n++
		}
	}
	return n
}

func (f *fakeDiscogs) authHeaders() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.auth...)
}

func (f *fakeDiscogs) handle(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.requests = append(f.requests, r.URL.Path)
	status := f.status
	if !strings.HasPrefix(r.URL.Path, "/images/") {
		f.auth = append(f.auth, r.Header.Get("Authorization"))
	}
	f.mu.Unlock()

	if strings.HasPrefix(r.URL.Path, "/images/") {
		img := image.NewRGBA(image.Rect(0, 0, 400, 400))
		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(buf.Bytes())
		return
	}

	if status != 0 {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"message": "fake failure"}`))
		return
	}

	switch {
	case r.URL.Path == "/database/search":
		f.handleSearch(w, r)
	case strings.HasPrefix(r.URL.Path, "/releases/"):
		var id int
		if _, err := fmt.Sscanf(strings.TrimPrefix(r.URL.Path, "/releases/"), "%d", &id); err != nil {
			http.NotFound(w, r)
			return
		}
		f.mu.Lock()
		release, ok := f.releases[id]
		f.mu.Unlock()
		if !ok {
			http.NotFound(w, r)
			return
		}
		writeJSON(w, release)
	case r.URL.Path == "/oauth/request_token":
		_, _ = w.Write([]byte("oauth_token=request-token&oauth_token_secret=request-secret&oauth_callback_confirmed=true"))
	case r.URL.Path == "/oauth/access_token":
		_, _ = w.Write([]byte("oauth_token=access-token&oauth_token_secret=access-secret"))
	case r.URL.Path == "/oauth/identity":
		writeJSON(w, map[string]any{"id": 1, "username": f.username})
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeDiscogs) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var key string
	for _, field := range []string{"barcode", "catno", "release_title"} {
		if v := q.Get(field); v != "" {
			key = field + "=" + v
			break
		}
	}

	f.mu.Lock()
	hits := f.searches[key]
	f.mu.Unlock()
	if hits == nil {
		hits = []map[string]any{}
	}
	writeJSON(w, map[string]any{"results": hits})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Discogs-Ratelimit-Remaining", "59")
	_ = json.NewEncoder(w).Encode(v)
}

// newTestApp builds an App talking to the fake server with sqlite files in a
// sandbox and no jitter.
func newTestApp(t *testing.T, f *fakeDiscogs) (*App, *bytes.Buffer, *testutil.TestEnv) {
	t.Helper()
	env := testutil.NewTestEnv(t)

	cfg := config.Config{
		Discogs: config.DiscogsConfig{
			Token:             "test-token",
			UserAgent:         "crate-test/1.0",
			RequestsPerMinute: 1000,
			ExhaustedCooldown: time.Second,
			RequestTimeout:    5 * time.Second,
			MaxRetries:        1,
		},
		Enrichment:  config.EnrichmentConfig{Concurrency: 4},
		Collection:  config.CollectionConfig{DBFile: env.DBPath("crate")},
		Cache:       config.CacheConfig{DBFile: env.DBPath("cache"), TTL: time.Hour},
		Artwork:     config.ArtworkConfig{Dir: env.Path("covers"), MaxWidth: 100},
		Credentials: config.CredentialsConfig{DBFile: env.DBPath("credentials")},
	}

	app := NewApp(cfg)
	app.baseURL = f.URL()
	app.httpClient = f.server.Client()
	app.interactive = false
	out := &bytes.Buffer{}
	app.out = out
	app.in = strings.NewReader("")
	t.Cleanup(func() { _ = app.Close() })
	return app, out, env
}

func kindOfBlueHit(f *fakeDiscogs) map[string]any {
	return map[string]any{
		"id":          1,
		"title":       "Miles Davis - Kind Of Blue",
		"cover_image": f.coverURL(1),
		"thumb":       f.coverURL(1),
		"genre":       []string{"Jazz"},
		"year":        "1959",
	}
}

func kindOfBlueRelease() map[string]any {
	return map[string]any{
		"id":     1,
		"title":  "Kind Of Blue",
		"year":   1959,
		"genres": []string{"Jazz"},
		"notes":  "Recorded at Columbia 30th Street Studio.",
		"tracklist": []map[string]any{
			{"position": "A1", "title": "So What", "duration": "9:22"},
			{"position": "A2", "title": "Freddie Freeloader", "duration": "9:46"},
		},
	}
}
