package output

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/lepinkainen/crate/internal/discogs"
	"github.com/lepinkainen/crate/internal/enrichment"
	"github.com/lepinkainen/crate/internal/testutil"
)

func sampleResult() enrichment.Result {
	return enrichment.Result{
		Key:       "barcode:074646393523",
		Outcome:   enrichment.OutcomeMatched,
		Artist:    "Miles Davis",
		Title:     "Kind Of Blue",
		Tracklist: []discogs.Track{{Position: "A1", Title: "So What", Duration: "9:22"}},
		Year:      "1959",
		ReleaseID: 1,
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", FormatJSON, false},
		{"JSON", FormatJSON, false},
		{"yaml", FormatYAML, false},
		{" yml ", FormatYAML, false},
		{"toml", "", true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatJSON, sampleResult()))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "matched", decoded["outcome"])
	assert.Equal(t, "Miles Davis", decoded["artist"])
	assert.NotContains(t, decoded, "notes")
	assert.NotContains(t, decoded, "Err")
}

func TestWriteYAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatYAML, []enrichment.Result{sampleResult()}))
	assert.Contains(t, buf.String(), "release_id: 1")

	var decoded []map[string]any
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded, 1)
	assert.Equal(t, "1959", decoded[0]["year"])
	tracks, ok := decoded[0]["tracklist"].([]any)
	require.True(t, ok)
	assert.Len(t, tracks, 1)
}

func TestWriteUnsupportedFormat(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, Write(&buf, Format("xml"), sampleResult()))
	assert.Zero(t, buf.Len())
}

func TestWriteFileRespectsOverwrite(t *testing.T) {
	env := testutil.NewTestEnv(t)
	path := filepath.Join(env.Path("out"), "lookup.yaml")

	written, err := WriteFile(path, FormatYAML, sampleResult(), false)
	require.NoError(t, err)
	assert.True(t, written)

	written, err = WriteFile(path, FormatYAML, enrichment.Result{Key: "other"}, false)
	require.NoError(t, err)
	assert.False(t, written)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Miles Davis")

	written, err = WriteFile(path, FormatYAML, enrichment.Result{Key: "other"}, true)
	require.NoError(t, err)
	assert.True(t, written)
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "key: other")
}
