package artwork

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lepinkainen/crate/internal/testutil"
)

func pngBytes(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		img.Set(x, 0, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestDownloadResizesAndSkipsExisting(t *testing.T) {
	body := pngBytes(t, 1200, 600)
	var hits atomic.Int32
	var userAgent string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		userAgent = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(body)
	}))
	defer server.Close()

	env := testutil.NewTestEnv(t)
	dl := NewDownloader(env.Path("covers"),
		WithHTTPClient(server.Client()),
		WithLimiter(nil),
		WithMaxWidth(300),
		WithUserAgent("crate-test"),
	)

	name := CoverFilename("Can", "Tago Mago")
	res, err := dl.Download(context.Background(), server.URL+"/cover.png", name)
	require.NoError(t, err)
	assert.True(t, res.Downloaded)
	assert.Equal(t, "crate-test", userAgent)

	saved, err := imaging.Open(res.Path)
	require.NoError(t, err)
	assert.Equal(t, 300, saved.Bounds().Dx())
	assert.Equal(t, 150, saved.Bounds().Dy())

	res, err = dl.Download(context.Background(), server.URL+"/cover.png", name)
	require.NoError(t, err)
	assert.False(t, res.Downloaded)
	assert.Equal(t, int32(1), hits.Load())
}

func TestDownloadErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("not an image"))
	}))
	defer server.Close()

	dl := NewDownloader(testutil.NewTestEnv(t).Path("covers"), WithHTTPClient(server.Client()), WithLimiter(nil))

	_, err := dl.Download(context.Background(), server.URL+"/missing", "a.jpg")
	assert.ErrorContains(t, err, "unexpected status 404")

	_, err = dl.Download(context.Background(), server.URL+"/garbage", "b.jpg")
	assert.ErrorContains(t, err, "decode")

	_, err = dl.Download(context.Background(), "", "c.jpg")
	assert.Error(t, err)
}

func TestCoverFilename(t *testing.T) {
	assert.Equal(t, "AC-DC - Back In Black - cover.jpg", CoverFilename("AC/DC", "Back In Black"))
	assert.Equal(t, "Title Only - cover.jpg", CoverFilename("", "Title Only"))
	assert.Equal(t, "Live - Side A - cover.jpg", CoverFilename("Live", "Side A"))
	assert.Equal(t, "unknown - cover.jpg", CoverFilename(" ", ""))
}
